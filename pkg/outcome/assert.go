package outcome

import (
	"fmt"

	"github.com/gofhir/fhirpath"

	"github.com/gofhir/hl7validator/pkg/issue"
)

// Assertion is a FHIRPath expression checked against the OperationOutcome
// of each validated message, e.g. "issue.where(severity='error').empty()".
type Assertion struct {
	source   string
	compiled *fhirpath.Expression
}

// NewAssertion compiles a FHIRPath expression.
func NewAssertion(expression string) (*Assertion, error) {
	compiled, err := fhirpath.Compile(expression)
	if err != nil {
		return nil, fmt.Errorf("failed to compile FHIRPath expression '%s': %w", expression, err)
	}
	return &Assertion{source: expression, compiled: compiled}, nil
}

// String returns the expression text.
func (a *Assertion) String() string {
	return a.source
}

// Check evaluates the assertion against the OperationOutcome of res.
// An empty result is false; a single boolean is its value; any other
// non-empty result is true.
func (a *Assertion) Check(res *issue.Result) (bool, error) {
	data, err := JSON(res)
	if err != nil {
		return false, err
	}
	result, err := a.compiled.Evaluate(data)
	if err != nil {
		return false, fmt.Errorf("failed to evaluate FHIRPath expression '%s': %w", a.source, err)
	}
	return truthy(result), nil
}

func truthy(result fhirpath.Collection) bool {
	if result.Empty() {
		return false
	}
	if len(result) == 1 {
		if b, err := result.ToBoolean(); err == nil {
			return b
		}
	}
	return true
}
