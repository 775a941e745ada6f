package outcome

import (
	"testing"

	"github.com/gofhir/hl7validator/pkg/issue"
)

func TestAssertion(t *testing.T) {
	tests := []struct {
		name       string
		expression string
		res        *issue.Result
		want       bool
	}{
		{
			name:       "no errors on a clean result",
			expression: "issue.where(severity='error').empty()",
			res:        issue.NewResult(),
			want:       true,
		},
		{
			name:       "no errors fails",
			expression: "issue.where(severity='error').empty()",
			res:        sampleResult(),
			want:       false,
		},
		{
			name:       "count",
			expression: "issue.count() = 2",
			res:        sampleResult(),
			want:       true,
		},
		{
			name:       "non-boolean result is truthy",
			expression: "issue.diagnostics",
			res:        sampleResult(),
			want:       true,
		},
		{
			name:       "empty result is false",
			expression: "issue.where(code='too-long')",
			res:        sampleResult(),
			want:       false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := NewAssertion(tt.expression)
			if err != nil {
				t.Fatalf("NewAssertion() error = %v", err)
			}
			got, err := a.Check(tt.res)
			if err != nil {
				t.Fatalf("Check() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Check() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAssertionCompileError(t *testing.T) {
	if _, err := NewAssertion("issue.where("); err == nil {
		t.Error("NewAssertion() accepted a malformed expression")
	}
}

func TestAssertionString(t *testing.T) {
	a, err := NewAssertion("issue.exists()")
	if err != nil {
		t.Fatal(err)
	}
	if a.String() != "issue.exists()" {
		t.Errorf("String() = %q", a.String())
	}
}
