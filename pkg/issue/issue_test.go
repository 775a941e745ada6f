package issue

import (
	"bytes"
	"strings"
	"testing"

	"github.com/beevik/etree"
)

func TestNewResult(t *testing.T) {
	r := NewResult()
	if r == nil {
		t.Fatal("NewResult() returned nil")
	}
	if len(r.Issues) != 0 {
		t.Errorf("NewResult() should have no issues, got %d", len(r.Issues))
	}
}

func TestResultAddError(t *testing.T) {
	r := NewResult()
	r.AddError(CodeStructure, `Unexpected Segment "ZZZ|1"`, "ZZZ")

	if len(r.Issues) != 1 {
		t.Fatalf("Result should have 1 issue, got %d", len(r.Issues))
	}
	if r.Issues[0].Severity != SeverityError {
		t.Errorf("Issue severity = %q, want %q", r.Issues[0].Severity, SeverityError)
	}
	if r.Issues[0].Code != CodeStructure {
		t.Errorf("Issue code = %q, want %q", r.Issues[0].Code, CodeStructure)
	}
	if len(r.Issues[0].Expression) != 1 || r.Issues[0].Expression[0] != "ZZZ" {
		t.Errorf("Issue expression = %v, want [ZZZ]", r.Issues[0].Expression)
	}
}

func TestResultCounts(t *testing.T) {
	r := NewResult()
	if r.HasErrors() {
		t.Error("Empty result should not have errors")
	}

	r.AddWarning(CodeNotSupported, "Undefined field type", "ZPI-1")
	if r.HasErrors() {
		t.Error("Result with only warnings should not have errors")
	}

	r.AddError(CodeRequired, "Missing required field", "PID-3")
	r.AddError(CodeTooLong, "Illegally long value", "PID-5")
	if !r.HasErrors() {
		t.Error("Result with errors should have errors")
	}
	if got := r.ErrorCount(); got != 2 {
		t.Errorf("ErrorCount() = %d, want 2", got)
	}
	if got := r.WarningCount(); got != 1 {
		t.Errorf("WarningCount() = %d, want 1", got)
	}
	if got := r.Filter(SeverityWarning); len(got.Issues) != 1 {
		t.Errorf("Filter(warning) returned %d issues, want 1", len(got.Issues))
	}

	other := NewResult()
	other.AddError(CodeValue, "Illegally formatted number", "OBX-5")
	r.Merge(other)
	r.Merge(nil)
	if got := r.ErrorCount(); got != 3 {
		t.Errorf("ErrorCount() after Merge = %d, want 3", got)
	}
}

func TestLocationString(t *testing.T) {
	tests := []struct {
		name string
		loc  *Location
		want string
		path string
	}{
		{"nil", nil, "", ""},
		{"segment only", &Location{Segment: 4}, "at segment 4", ""},
		{
			"field",
			&Location{Segment: 2, SegmentID: "PID", Field: "PID-3", Repetition: 2},
			"in Segment PID at segment 2, field [PID-3], repetition 2",
			"PID-3",
		},
		{
			"subcomponent",
			&Location{Segment: 2, SegmentID: "PID", Field: "PID-3", Repetition: 1, Component: "PID-3.4", SubComponent: "PID-3.4.1"},
			"in Segment PID at segment 2, field [PID-3], repetition 1, component [PID-3.4], subcomponent [PID-3.4.1]",
			"PID-3.4.1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.loc.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
			if got := tt.loc.Path(); got != tt.path {
				t.Errorf("Path() = %q, want %q", got, tt.path)
			}
		})
	}
}

func TestNewFromCatalogue(t *testing.T) {
	loc := &Location{Segment: 3, SegmentID: "PID", Field: "PID-7", Repetition: 1}
	iss := New(DiagIllegalLength, map[string]any{"value": "2023010112", "max": 8}, loc)

	want := `Illegally long value "2023010112" - maximum length 8 in Segment PID at segment 3, field [PID-7], repetition 1`
	if iss.Diagnostics != want {
		t.Errorf("Diagnostics = %q, want %q", iss.Diagnostics, want)
	}
	if iss.Severity != SeverityError || iss.Code != CodeTooLong {
		t.Errorf("Severity/Code = %s/%s, want error/too-long", iss.Severity, iss.Code)
	}
	if iss.MessageID != string(DiagIllegalLength) {
		t.Errorf("MessageID = %q", iss.MessageID)
	}
	if len(iss.Expression) != 1 || iss.Expression[0] != "PID-7" {
		t.Errorf("Expression = %v, want [PID-7]", iss.Expression)
	}

	warn := New(DiagUndefinedFieldType, nil, &Location{Segment: 5, SegmentID: "ZPI", Field: "ZPI-1"})
	if warn.Severity != SeverityWarning {
		t.Errorf("UndefinedFieldType severity = %s, want warning", warn.Severity)
	}
}

func TestFormatDiagnostic(t *testing.T) {
	got := FormatDiagnostic(DiagMissingRequiredSegment, map[string]any{"ref": "PV1", "tag": "ADT_A01"})
	if got != "Missing required segment [PV1] in ADT_A01" {
		t.Errorf("FormatDiagnostic() = %q", got)
	}
	if got := FormatDiagnostic("NOT_A_DIAGNOSTIC", nil); got != "NOT_A_DIAGNOSTIC" {
		t.Errorf("FormatDiagnostic(unknown) = %q", got)
	}
	for id := range diagnosticTemplates {
		tmpl, ok := GetDiagnosticTemplate(id)
		if !ok || tmpl.ID != id || tmpl.Template == "" {
			t.Errorf("GetDiagnosticTemplate(%s) = %+v, %v", id, tmpl, ok)
		}
	}
}

func TestFormatDiagnosticValueWithPlaceholder(t *testing.T) {
	params := map[string]any{"value": "{table}", "table": "HL70001", "tableType": "User"}
	want := `Illegal value "{table}" - not in User table HL70001`
	for i := 0; i < 100; i++ {
		if got := FormatDiagnostic(DiagIllegalCodeValue, params); got != want {
			t.Fatalf("FormatDiagnostic() = %q, want %q", got, want)
		}
	}

	if got := formatTemplate("{a} and {missing}", map[string]any{"a": "{missing}"}); got != "{missing} and {missing}" {
		t.Errorf("formatTemplate() = %q", got)
	}
}

func TestRecorderEmit(t *testing.T) {
	var buf bytes.Buffer
	res := NewResult()
	rec := NewRecorder(res, NewWriterSink(&buf))

	el := etree.NewElement("PID.3")
	rec.Raise(el, DiagUnexpectedField, map[string]any{"value": "a--b-"}, &Location{Segment: 2, SegmentID: "PID", Field: "PID-3"})
	rec.Raise(nil, DiagUnexpectedSegment, map[string]any{"text": "ZZZ|1"}, &Location{Segment: 9})

	if len(res.Issues) != 2 {
		t.Fatalf("recorded %d issues, want 2", len(res.Issues))
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("sink got %d lines, want 2: %q", len(lines), buf.String())
	}
	if lines[1] != `Unexpected Segment "ZZZ|1" at segment 9` {
		t.Errorf("second line = %q", lines[1])
	}

	comments := 0
	for _, tok := range el.Child {
		if c, ok := tok.(*etree.Comment); ok {
			comments++
			if strings.Contains(c.Data, "--") {
				t.Errorf("comment contains --: %q", c.Data)
			}
		}
	}
	if comments != 1 {
		t.Errorf("element has %d comments, want 1", comments)
	}
}

func TestCommentText(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"plain", "plain"},
		{"a--b", "a- -b"},
		{"a---b", "a- - -b"},
		{"ends-", "ends- "},
	}
	for _, tt := range tests {
		if got := CommentText(tt.in); got != tt.want {
			t.Errorf("CommentText(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
