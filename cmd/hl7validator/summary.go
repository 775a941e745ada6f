package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"

	hl7validator "github.com/gofhir/hl7validator"
	"github.com/gofhir/hl7validator/pkg/issue"
	"github.com/gofhir/hl7validator/pkg/validator"
)

// summary prints the console view of a run: one block per message and
// the totals at the end.
type summary struct {
	w io.Writer

	valid   *color.Color
	invalid *color.Color
	warning *color.Color
	faint   *color.Color
}

func newSummary(w io.Writer, enabled bool) *summary {
	s := &summary{
		w:       w,
		valid:   color.New(color.FgGreen, color.Bold),
		invalid: color.New(color.FgRed, color.Bold),
		warning: color.New(color.FgYellow),
		faint:   color.New(color.Faint),
	}
	for _, c := range []*color.Color{s.valid, s.invalid, s.warning, s.faint} {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return s
}

// useColor resolves the --color setting for w. In auto mode only a
// terminal gets colors.
func useColor(mode string, w io.Writer) bool {
	switch mode {
	case "on":
		return true
	case "off":
		return false
	}
	f, ok := w.(*os.File)
	return ok && isTerminal(f)
}

func (s *summary) message(name string, res *validator.Result) {
	status := s.valid.Sprint("VALID")
	if res.HasErrors() {
		status = s.invalid.Sprint("INVALID")
	}

	_, _ = fmt.Fprintf(s.w, "== %s ==\n", name)
	_, _ = fmt.Fprintf(s.w, "Status: %s\n", status)
	if res.Stats != nil {
		_, _ = fmt.Fprintf(s.w, "Structure: %s (%d segments)\n", res.Stats.Structure, res.Stats.Segments)
		_, _ = fmt.Fprintf(s.w, "Duration: %s\n", time.Duration(res.Stats.Duration).Round(time.Microsecond))
	}
	_, _ = fmt.Fprintf(s.w, "Errors: %d, Warnings: %d, Info: %d\n", res.ErrorCount(), res.WarningCount(), res.InfoCount())

	if len(res.Issues) > 0 {
		_, _ = fmt.Fprintln(s.w, "\nIssues:")
		for _, iss := range res.Issues {
			location := ""
			if len(iss.Expression) > 0 {
				location = s.faint.Sprintf(" @ %s", strings.Join(iss.Expression, ", "))
			}
			_, _ = fmt.Fprintf(s.w, "  %s [%s] %s%s\n", s.severity(iss.Severity), iss.Code, iss.Diagnostics, location)
		}
	}
	_, _ = fmt.Fprintln(s.w)
}

func (s *summary) failure(name string, err error) {
	_, _ = fmt.Fprintf(s.w, "== %s ==\n", name)
	_, _ = fmt.Fprintf(s.w, "Status: %s\n", s.invalid.Sprint("MALFORMED"))
	_, _ = fmt.Fprintf(s.w, "%v\n\n", err)
}

func (s *summary) totals(m *hl7validator.Metrics) {
	total := m.ValidationsTotal() + m.MalformedTotal()
	if total < 2 {
		return
	}
	_, _ = fmt.Fprintf(s.w, "%d messages: %s, %s, %s\n",
		total,
		s.valid.Sprintf("%d valid", m.ValidationsValid()),
		s.invalid.Sprintf("%d invalid", m.ValidationsTotal()-m.ValidationsValid()),
		s.warning.Sprintf("%d malformed", m.MalformedTotal()))
}

func (s *summary) severity(severity issue.Severity) string {
	switch severity {
	case issue.SeverityError:
		return s.invalid.Sprint("ERROR")
	case issue.SeverityWarning:
		return s.warning.Sprint("WARN ")
	case issue.SeverityInformation:
		return s.faint.Sprint("INFO ")
	default:
		return "     "
	}
}
