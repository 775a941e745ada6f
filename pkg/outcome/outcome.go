// Package outcome renders validation results as FHIR R4 OperationOutcome
// resources.
package outcome

import (
	"encoding/json"
	"fmt"

	"github.com/gofhir/fhir/r4"

	"github.com/gofhir/hl7validator/pkg/issue"
)

// ResourceType is the FHIR resource type of the rendered document.
const ResourceType = "OperationOutcome"

// okMessage is the diagnostics of the single issue of a clean result.
const okMessage = "All OK"

// FromResult converts a validation result to an OperationOutcome. Each
// issue carries its HL7 coordinate as expression; its location holds the
// coordinate and, when known, the "Line[n] Col[m]" position in the message.
// A result without issues yields one informational issue, as FHIR requires
// at least one.
func FromResult(res *issue.Result) *r4.OperationOutcome {
	oo := &r4.OperationOutcome{}
	if res == nil || len(res.Issues) == 0 {
		severity := r4.IssueSeverity(issue.SeverityInformation)
		code := r4.IssueType(issue.CodeInformational)
		diagnostics := okMessage
		oo.Issue = append(oo.Issue, r4.OperationOutcomeIssue{
			Severity:    &severity,
			Code:        &code,
			Diagnostics: &diagnostics,
		})
		return oo
	}

	oo.Issue = make([]r4.OperationOutcomeIssue, 0, len(res.Issues))
	for _, iss := range res.Issues {
		oo.Issue = append(oo.Issue, convertIssue(iss))
	}
	return oo
}

func convertIssue(iss issue.Issue) r4.OperationOutcomeIssue {
	severity := r4.IssueSeverity(iss.Severity)
	code := r4.IssueType(iss.Code)
	diagnostics := iss.Diagnostics

	out := r4.OperationOutcomeIssue{
		Severity:    &severity,
		Code:        &code,
		Diagnostics: &diagnostics,
		Expression:  iss.Expression,
	}
	if loc := iss.Location; loc != nil {
		if path := loc.Path(); path != "" {
			out.Location = append(out.Location, path)
		}
		if loc.Line > 0 {
			out.Location = append(out.Location, fmt.Sprintf("Line[%d] Col[%d]", loc.Line, loc.Column))
		}
	}
	return out
}

// document adds the resourceType member to the serialized resource.
type document struct {
	ResourceType string `json:"resourceType"`
	*r4.OperationOutcome
}

// JSON renders res as an indented OperationOutcome JSON document.
func JSON(res *issue.Result) ([]byte, error) {
	data, err := json.MarshalIndent(document{ResourceType: ResourceType, OperationOutcome: FromResult(res)}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal OperationOutcome: %w", err)
	}
	return data, nil
}
