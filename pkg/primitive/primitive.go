// Package primitive checks the literal format of HL7 primitive values.
//
// Checks are held in one ordered rule table keyed by declared type, or by
// enclosing datatype and position. Rules are evaluated top to bottom and the
// first applicable rule decides. Free text types without an applicable rule
// get their escape sequences rewritten instead.
package primitive

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/beevik/etree"

	"github.com/gofhir/hl7validator/pkg/escape"
)

// Unit is one leaf value to check: a field repetition, component or
// sub-component.
type Unit struct {
	// Text is the literal value.
	Text string
	// Type is the declared datatype of the unit, e.g. "DTM".
	Type string
	// Parent is the datatype of the enclosing unit; empty for fields.
	Parent string
	// Position is the 1-based position within Parent.
	Position int
	// Enclosing is the element of the enclosing unit, used to read sibling
	// values such as ED.4. It may be nil.
	Enclosing *etree.Element
}

// Deleted is the explicit deletion marker.
const Deleted = `""`

var (
	dtPattern  = regexp.MustCompile(`^[12]\d{3}((0[1-9]|1[0-2])(0[1-9]|[12]\d|3[01])?)?$`)
	dtmPattern = regexp.MustCompile(`^[12]\d{3}((0[1-9]|1[0-2])((0[1-9]|[12]\d|3[01])(([01]\d|2[0-4])([0-5]\d([0-5]\d(\.\d{1,4})?)?)?)?)?)?([-+]?(0\d|1[0-3])[0-5]\d)?$`)
	nmPattern  = regexp.MustCompile(`^[-+]?\d+(\.\d*)?$`)
	riPattern  = regexp.MustCompile(`^([01]\d|2[0-4])[0-5]\d(,([01]\d|2[0-4])[0-5]\d)*$`)
	siPattern  = regexp.MustCompile(`^\d{1,4}$`)
	tmPattern  = regexp.MustCompile(`^([01]\d|2[0-4])([0-5]\d([0-5]\d(\.\d{1,4})?)?)?([-+]?(0\d|1[0-3])[0-5]\d)?$`)
	tnPattern  = regexp.MustCompile(`^(\d\d)?(\(\d{3}\)|\d{3})?\d{3}-\d{4}(X\d{1,5})?(B\d{1,5})?(C.*)?$`)
	ts2Pattern = regexp.MustCompile(`^[YLDMHS]$`)
	hexPattern = regexp.MustCompile(`^[A-Fa-f0-9]*$`)
	b64Pattern = regexp.MustCompile(`^[A-Za-z0-9+/]*={0,2}$`)
)

var (
	encodings   = []string{"Hex", "Base64"}
	comparators = []string{"<", ">", "=", "<=", ">=", "<>"}
)

// FreeText are the types whose values carry escape sequences.
var FreeText = []string{"TX", "FT", "CF"}

// rule is one row of the rule table. A rule applies when typ matches the
// unit's declared type, or when parent and position match its enclosing
// datatype and position. check returns "" for a valid value.
type rule struct {
	typ      string
	parent   string
	position int
	check    func(Unit) string
}

func (r rule) applies(u Unit) bool {
	if r.typ != "" {
		return u.Type == r.typ
	}
	return u.Parent == r.parent && u.Position == r.position
}

// rules is the ordered rule table.
var rules = []rule{
	{typ: "DT", check: matches(dtPattern, "date")},
	{typ: "DTM", check: matches(dtmPattern, "date/time")},
	{parent: "ED", position: 4, check: oneOf(encodings, "Illegal Encapsulated Data encoding")},
	{parent: "ED", position: 5, check: encapsulatedData},
	{typ: "NM", check: matches(nmPattern, "number")},
	{parent: "RI", position: 2, check: matches(riPattern, "time interval")},
	{typ: "SI", check: matches(siPattern, "sequence identifier")},
	{parent: "SN", position: 1, check: oneOf(comparators, "Illegally formatted numeric comparator")},
	{parent: "SN", position: 3, check: numericSeparator},
	{typ: "TM", check: matches(tmPattern, "time")},
	{typ: "TN", check: matches(tnPattern, "telephone number")},
	{parent: "TS", position: 1, check: matches(dtmPattern, "date/time")},
	{parent: "TS", position: 2, check: matches(ts2Pattern, "time degree of precision")},
	{parent: "XTN", position: 1, check: matches(tnPattern, "telephone number")},
}

func matches(re *regexp.Regexp, what string) func(Unit) string {
	return func(u Unit) string {
		if re.MatchString(u.Text) {
			return ""
		}
		return fmt.Sprintf("Illegally formatted %s \"%s\"", what, u.Text)
	}
}

func oneOf(values []string, message string) func(Unit) string {
	return func(u Unit) string {
		if slices.Contains(values, u.Text) {
			return ""
		}
		return fmt.Sprintf("%s \"%s\"", message, u.Text)
	}
}

// encapsulatedData checks ED.5 against the encoding named in ED.4.
func encapsulatedData(u Unit) string {
	if u.Enclosing == nil {
		return ""
	}
	ed4 := u.Enclosing.SelectElement("ED.4")
	if ed4 == nil || ed4.Text() == "" {
		return ""
	}
	if ed4.Text() == "Hex" {
		if len(u.Text)%2 != 0 || !hexPattern.MatchString(u.Text) {
			return "Illegally formatted Hex data"
		}
		return ""
	}
	if len(u.Text)%4 != 0 || !b64Pattern.MatchString(u.Text) {
		return "Illegally formatted Base64 encoded data"
	}
	return ""
}

func numericSeparator(u Unit) string {
	if len(u.Text) == 1 && strings.Contains("+-/.:", u.Text) {
		return ""
	}
	return fmt.Sprintf("Illegally formatted numeric separator/suffix \"%s\"", u.Text)
}

// Validate checks the literal format of u. It returns the diagnostic text,
// or "" when the value is acceptable or no rule applies.
func Validate(u Unit) string {
	details, _ := check(u)
	return details
}

// check evaluates the rule table. ok reports whether a rule applied.
func check(u Unit) (details string, ok bool) {
	if u.Text == "" || u.Text == Deleted {
		return "", true
	}
	for _, r := range rules {
		if r.applies(u) {
			return r.check(u), true
		}
	}
	return "", false
}

// IsFreeText reports whether values of typ carry escape sequences.
func IsFreeText(typ string) bool {
	return slices.Contains(FreeText, typ)
}

// Validator sets leaf text on output elements and checks it.
type Validator struct {
	escapes *escape.Rewriter
}

// New creates a Validator rewriting free text with escapes. A nil rewriter
// leaves free text unchanged.
func New(escapes *escape.Rewriter) *Validator {
	if escapes == nil {
		escapes = escape.New("")
	}
	return &Validator{escapes: escapes}
}

// Fix sets the text of el from u and validates it. Free text with no
// applicable rule has its escape sequences rewritten into el; rewriting
// never produces a diagnostic.
func (v *Validator) Fix(el *etree.Element, u Unit) string {
	details, ok := check(u)
	if !ok && IsFreeText(u.Type) {
		v.escapes.Apply(el, u.Text)
		return ""
	}
	el.SetText(u.Text)
	return details
}
