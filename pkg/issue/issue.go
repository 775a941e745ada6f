// Package issue defines HL7 v2 validation diagnostics.
//
// Severity and Code values are aligned with FHIR OperationOutcome so a
// Result can be rendered as an OperationOutcome without translation tables.
package issue

import (
	"fmt"
	"strings"
)

// Severity represents the severity of a validation issue.
type Severity string

// Severity constants aligned with FHIR IssueSeverity.
const (
	SeverityFatal       Severity = "fatal"
	SeverityError       Severity = "error"
	SeverityWarning     Severity = "warning"
	SeverityInformation Severity = "information"
)

// Code represents the type of validation issue (FHIR IssueType).
type Code string

// Code constants used by the HL7 v2 diagnostics.
const (
	CodeInvalid       Code = "invalid"
	CodeStructure     Code = "structure"
	CodeRequired      Code = "required"
	CodeValue         Code = "value"
	CodeProcessing    Code = "processing"
	CodeNotSupported  Code = "not-supported"
	CodeTooLong       Code = "too-long"
	CodeCodeInvalid   Code = "code-invalid"
	CodeInformational Code = "informational"
)

// Issue represents a single validation issue.
type Issue struct {
	// Severity indicates the severity level (error, warning, etc.)
	Severity Severity

	// Code indicates the type of issue
	Code Code

	// Diagnostics is the report line, coordinates included
	Diagnostics string

	// Expression holds the dotted HL7 coordinate, e.g. "PID-3.1"
	Expression []string

	// Location is the segment/field position of the issue
	Location *Location

	// MessageID is the identifier from the diagnostic catalogue
	MessageID string
}

// IsError reports whether the issue is an error or fatal.
func (i Issue) IsError() bool {
	return i.Severity == SeverityError || i.Severity == SeverityFatal
}

// Location is the coordinate of an issue inside a message.
// Segment and Repetition are 1-based; zero means not applicable.
type Location struct {
	Segment      int
	SegmentID    string
	Field        string // PID-3
	Repetition   int
	Component    string // PID-3.1
	SubComponent string // PID-3.1.2

	// Line and Column locate the unit in the message text; zero when unknown
	Line   int
	Column int
}

// Path returns the most specific coordinate of the location.
func (l *Location) Path() string {
	switch {
	case l == nil:
		return ""
	case l.SubComponent != "":
		return l.SubComponent
	case l.Component != "":
		return l.Component
	case l.Field != "":
		return l.Field
	default:
		return l.SegmentID
	}
}

// String renders the location as the suffix used in report lines.
func (l *Location) String() string {
	if l == nil {
		return ""
	}
	var b strings.Builder
	if l.SegmentID != "" {
		b.WriteString("in Segment ")
		b.WriteString(l.SegmentID)
		b.WriteByte(' ')
	}
	fmt.Fprintf(&b, "at segment %d", l.Segment)
	if l.Field != "" {
		fmt.Fprintf(&b, ", field [%s]", l.Field)
	}
	if l.Repetition > 0 {
		fmt.Fprintf(&b, ", repetition %d", l.Repetition)
	}
	if l.Component != "" {
		fmt.Fprintf(&b, ", component [%s]", l.Component)
	}
	if l.SubComponent != "" {
		fmt.Fprintf(&b, ", subcomponent [%s]", l.SubComponent)
	}
	return b.String()
}

// Stats contains per-message statistics.
type Stats struct {
	// Structure is the resolved message structure, e.g. ADT_A01
	Structure string
	// Segments is the number of segments in the message
	Segments int
	// MessageSize is the size of the input in bytes
	MessageSize int
	// Duration is the total validation time
	Duration int64 // nanoseconds
}

// DurationMs returns the duration in milliseconds.
func (s *Stats) DurationMs() float64 {
	return float64(s.Duration) / 1e6
}

// Result holds the collection of issues from validation.
type Result struct {
	Issues []Issue
	Stats  *Stats
}

// defaultIssueCapacity is the pre-allocated capacity for Issues slice.
const defaultIssueCapacity = 16

// NewResult creates a new empty Result with pre-allocated capacity.
func NewResult() *Result {
	return &Result{
		Issues: make([]Issue, 0, defaultIssueCapacity),
	}
}

// AddIssue adds an issue to the result.
func (r *Result) AddIssue(issue Issue) {
	r.Issues = append(r.Issues, issue)
}

// AddError adds an error-level issue.
func (r *Result) AddError(code Code, diagnostics string, expression ...string) {
	r.Issues = append(r.Issues, Issue{
		Severity:    SeverityError,
		Code:        code,
		Diagnostics: diagnostics,
		Expression:  expression,
	})
}

// AddWarning adds a warning-level issue.
func (r *Result) AddWarning(code Code, diagnostics string, expression ...string) {
	r.Issues = append(r.Issues, Issue{
		Severity:    SeverityWarning,
		Code:        code,
		Diagnostics: diagnostics,
		Expression:  expression,
	})
}

// HasErrors returns true if there are any error-level issues.
func (r *Result) HasErrors() bool {
	for _, issue := range r.Issues {
		if issue.IsError() {
			return true
		}
	}
	return false
}

// ErrorCount returns the number of error-level issues.
func (r *Result) ErrorCount() int {
	return r.count(func(i Issue) bool { return i.IsError() })
}

// WarningCount returns the number of warning-level issues.
func (r *Result) WarningCount() int {
	return r.count(func(i Issue) bool { return i.Severity == SeverityWarning })
}

// InfoCount returns the number of information-level issues.
func (r *Result) InfoCount() int {
	return r.count(func(i Issue) bool { return i.Severity == SeverityInformation })
}

func (r *Result) count(match func(Issue) bool) int {
	n := 0
	for _, issue := range r.Issues {
		if match(issue) {
			n++
		}
	}
	return n
}

// Merge combines another result into this one.
func (r *Result) Merge(other *Result) {
	if other == nil {
		return
	}
	r.Issues = append(r.Issues, other.Issues...)
}

// Filter returns a new Result with only issues matching the given severity.
func (r *Result) Filter(severity Severity) *Result {
	filtered := NewResult()
	for _, issue := range r.Issues {
		if issue.Severity == severity {
			filtered.Issues = append(filtered.Issues, issue)
		}
	}
	return filtered
}

// ByMessageID returns the issues raised from the given catalogue entry.
func (r *Result) ByMessageID(id DiagnosticID) []Issue {
	var out []Issue
	for _, issue := range r.Issues {
		if issue.MessageID == string(id) {
			out = append(out, issue)
		}
	}
	return out
}

// EnrichLocations fills Line and Column of every issue location the locator
// can place.
func (r *Result) EnrichLocations(locator func(loc *Location) (line, column int, ok bool)) {
	for i := range r.Issues {
		loc := r.Issues[i].Location
		if loc == nil {
			continue
		}
		if line, col, ok := locator(loc); ok {
			loc.Line, loc.Column = line, col
		}
	}
}
