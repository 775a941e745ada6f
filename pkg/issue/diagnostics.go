package issue

import (
	"fmt"
	"regexp"
)

// DiagnosticID identifies a specific diagnostic message.
type DiagnosticID string

// Structural diagnostics, raised by the grammar matcher.
const (
	DiagUnexpectedSegment      DiagnosticID = "UNEXPECTED_SEGMENT"
	DiagMissingRequiredSegment DiagnosticID = "MISSING_REQUIRED_SEGMENT"
	DiagMissingRequiredGroup   DiagnosticID = "MISSING_REQUIRED_GROUP"
)

// Presence and repetition diagnostics, raised by the field decomposer.
const (
	DiagMissingRequiredField        DiagnosticID = "MISSING_REQUIRED_FIELD"
	DiagMissingRequiredComponent    DiagnosticID = "MISSING_REQUIRED_COMPONENT"
	DiagMissingRequiredSubComponent DiagnosticID = "MISSING_REQUIRED_SUBCOMPONENT"
	DiagUnexpectedRepeat            DiagnosticID = "UNEXPECTED_REPEAT"
	DiagUnexpectedField             DiagnosticID = "UNEXPECTED_FIELD"
	DiagUnexpectedComponent         DiagnosticID = "UNEXPECTED_COMPONENT"
	DiagUnexpectedSubComponent      DiagnosticID = "UNEXPECTED_SUBCOMPONENT"
	DiagUndefinedFieldType          DiagnosticID = "UNDEFINED_FIELD_TYPE"
	DiagUndefinedComponentType      DiagnosticID = "UNDEFINED_COMPONENT_TYPE"
	DiagUndefinedSubComponentType   DiagnosticID = "UNDEFINED_SUBCOMPONENT_TYPE"
)

// Value diagnostics.
const (
	DiagIllegalFormat              DiagnosticID = "ILLEGAL_FORMAT"
	DiagIllegalCodeValue           DiagnosticID = "ILLEGAL_CODE_VALUE"
	DiagIllegalLength              DiagnosticID = "ILLEGAL_LENGTH"
	DiagIllegalValueSetCombination DiagnosticID = "ILLEGAL_VALUE_SET_COMBINATION"
)

// DiagnosticTemplate defines the structure for a diagnostic message.
type DiagnosticTemplate struct {
	ID       DiagnosticID
	Severity Severity
	Code     Code
	Template string
}

// diagnosticTemplates maps diagnostic IDs to their templates.
// Templates use {placeholder} syntax; the location suffix is appended by New.
var diagnosticTemplates = map[DiagnosticID]DiagnosticTemplate{
	DiagUnexpectedSegment: {
		Severity: SeverityError,
		Code:     CodeStructure,
		Template: `Unexpected Segment "{text}"`,
	},
	DiagMissingRequiredSegment: {
		Severity: SeverityError,
		Code:     CodeRequired,
		Template: "Missing required segment [{ref}] in {tag}",
	},
	DiagMissingRequiredGroup: {
		Severity: SeverityError,
		Code:     CodeRequired,
		Template: "Missing required group [{ref}] in {tag}",
	},

	DiagMissingRequiredField: {
		Severity: SeverityError,
		Code:     CodeRequired,
		Template: "Missing required field",
	},
	DiagMissingRequiredComponent: {
		Severity: SeverityError,
		Code:     CodeRequired,
		Template: "Missing required component",
	},
	DiagMissingRequiredSubComponent: {
		Severity: SeverityError,
		Code:     CodeRequired,
		Template: "Missing required subcomponent",
	},
	DiagUnexpectedRepeat: {
		Severity: SeverityError,
		Code:     CodeStructure,
		Template: "Unexpected field repeat [{repeat}] (maximum {max})",
	},
	DiagUnexpectedField: {
		Severity: SeverityError,
		Code:     CodeStructure,
		Template: `Unexpected field - "{value}"`,
	},
	DiagUnexpectedComponent: {
		Severity: SeverityError,
		Code:     CodeStructure,
		Template: `Unexpected component - "{value}"`,
	},
	DiagUnexpectedSubComponent: {
		Severity: SeverityError,
		Code:     CodeStructure,
		Template: `Unexpected subcomponent - "{value}"`,
	},
	DiagUndefinedFieldType: {
		Severity: SeverityWarning,
		Code:     CodeNotSupported,
		Template: "Undefined field type",
	},
	DiagUndefinedComponentType: {
		Severity: SeverityWarning,
		Code:     CodeNotSupported,
		Template: "Undefined component type",
	},
	DiagUndefinedSubComponentType: {
		Severity: SeverityWarning,
		Code:     CodeNotSupported,
		Template: "Undefined subcomponent type",
	},

	DiagIllegalFormat: {
		Severity: SeverityError,
		Code:     CodeValue,
		Template: "{details}",
	},
	DiagIllegalCodeValue: {
		Severity: SeverityError,
		Code:     CodeCodeInvalid,
		Template: `Illegal value "{value}" - not in {tableType} table {table}`,
	},
	DiagIllegalLength: {
		Severity: SeverityError,
		Code:     CodeTooLong,
		Template: `Illegally long value "{value}" - maximum length {max}`,
	},
	DiagIllegalValueSetCombination: {
		Severity: SeverityError,
		Code:     CodeCodeInvalid,
		Template: `Identifier "{identifier}" not in coding system "{system}"`,
	},
}

// FormatDiagnostic formats a diagnostic message with the given parameters.
func FormatDiagnostic(id DiagnosticID, params map[string]any) string {
	tmpl, ok := diagnosticTemplates[id]
	if !ok {
		return string(id)
	}
	return formatTemplate(tmpl.Template, params)
}

// GetDiagnosticTemplate returns the template for a diagnostic ID.
func GetDiagnosticTemplate(id DiagnosticID) (DiagnosticTemplate, bool) {
	tmpl, ok := diagnosticTemplates[id]
	if ok {
		tmpl.ID = id
	}
	return tmpl, ok
}

// placeholderPattern matches a {placeholder} of a template.
var placeholderPattern = regexp.MustCompile(`\{(\w+)\}`)

// formatTemplate replaces {placeholder} with values from params in one pass
// over the template; substituted values are never scanned again.
// Placeholders without a value are left as they are.
func formatTemplate(template string, params map[string]any) string {
	return placeholderPattern.ReplaceAllStringFunc(template, func(placeholder string) string {
		value, ok := params[placeholder[1:len(placeholder)-1]]
		if !ok {
			return placeholder
		}
		return fmt.Sprint(value)
	})
}

// New builds an Issue from the catalogue. The report line is the formatted
// template followed by the location suffix.
func New(id DiagnosticID, params map[string]any, loc *Location) Issue {
	tmpl, ok := diagnosticTemplates[id]
	if !ok {
		tmpl = DiagnosticTemplate{Severity: SeverityError, Code: CodeProcessing, Template: string(id)}
	}

	text := formatTemplate(tmpl.Template, params)
	if suffix := loc.String(); suffix != "" {
		text += " " + suffix
	}

	iss := Issue{
		Severity:    tmpl.Severity,
		Code:        tmpl.Code,
		Diagnostics: text,
		Location:    loc,
		MessageID:   string(id),
	}
	if path := loc.Path(); path != "" {
		iss.Expression = []string{path}
	}
	return iss
}
