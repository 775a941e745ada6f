// Package field decomposes a matched segment into fields, repetitions,
// components and sub-components, builds the segment's output element and
// checks every unit for presence, repetition, format, code table, length
// and value set membership.
package field

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/beevik/etree"

	"github.com/gofhir/hl7validator/pkg/issue"
	"github.com/gofhir/hl7validator/pkg/message"
	"github.com/gofhir/hl7validator/pkg/primitive"
	"github.com/gofhir/hl7validator/pkg/registry"
	"github.com/gofhir/hl7validator/pkg/terminology"
	"github.com/gofhir/hl7validator/pool"
)

// UndefinedType is the type assumed for schema-undefined units.
const UndefinedType = "ST"

// Varies is the declared type of fields whose type is carried by a sibling.
const Varies = "varies"

// variesSources maps a field declared "varies" to the 1-based field of the
// same segment whose value names the concrete type.
var variesSources = map[string]int{
	"OBX.5": 2,
	"MFE.4": 5,
}

// unsplitComponents lists components never split into sub-components.
var unsplitComponents = map[string]bool{
	"OBX-3.1": true,
}

// Value set checks run at these 1-based positions, which hold a coding
// system; the identifier it qualifies sits two positions earlier.
var codingSystemPositions = map[int]bool{3: true, 6: true}

// Decomposer builds segment elements for one message. It is not safe for
// concurrent use; each message gets its own.
type Decomposer struct {
	reg   *registry.Registry
	terms *terminology.Registry
	enc   message.Encoding
	fix   *primitive.Validator
	rec   *issue.Recorder
}

// New creates a Decomposer for a message with encoding enc. terms may be
// nil, which disables code table and value set checks.
func New(reg *registry.Registry, terms *terminology.Registry, enc message.Encoding, fix *primitive.Validator, rec *issue.Recorder) *Decomposer {
	if fix == nil {
		fix = primitive.New(nil)
	}
	return &Decomposer{reg: reg, terms: terms, enc: enc, fix: fix, rec: rec}
}

// segment carries what every unit of one segment needs.
type segment struct {
	code   string
	no     int
	fields []string // fields[i] is field i+1
}

func (s *segment) location() *issue.Location {
	return &issue.Location{Segment: s.no, SegmentID: s.code}
}

// Segment decomposes the segment text at 1-based position segNo and returns
// its element. A segment with no definition in the schema is a schema error.
func (d *Decomposer) Segment(ctx context.Context, text string, segNo int) (*etree.Element, error) {
	code := message.Code(text)
	content, err := d.reg.SegmentContent(code)
	if err != nil {
		return nil, err
	}

	fields := strings.Split(text, d.enc.Field)[1:]
	if code == "MSH" {
		// MSH-1 is the field separator itself.
		fields = append([]string{d.enc.Field}, fields...)
	}
	seg := &segment{code: code, no: segNo, fields: fields}

	el := etree.NewElement(code)
	for i, value := range fields {
		var node registry.Node
		if i < len(content) {
			node = content[i]
		}
		d.field(ctx, el, seg, i+1, node, value)
	}
	return el, nil
}

// field handles field n of a segment. node is the zero Node when the schema
// does not define the position.
func (d *Decomposer) field(ctx context.Context, parent *etree.Element, seg *segment, n int, node registry.Node, value string) {
	code := pool.FieldCoordinate(seg.code, n)
	loc := seg.location()
	loc.Field = code

	tag := code
	var attrs registry.Attributes
	if node.Defined() {
		tag = node.Ref
		attrs = d.reg.FieldAttributes(node.Ref)
	}

	if value == "" {
		if node.Defined() && node.MinOccurs > 0 {
			d.rec.Raise(parent.CreateElement(tag), issue.DiagMissingRequiredField, nil, loc)
		}
		return
	}

	reps := []string{value}
	encodingChars := seg.code == "MSH" && n == 2
	if !encodingChars && attrs.Type != "FT" {
		reps = strings.Split(value, d.enc.Repetition)
	}

	for j, rep := range reps {
		if rep == primitive.Deleted || rep == "" {
			continue
		}
		rloc := *loc
		rloc.Repetition = j + 1
		el := parent.CreateElement(tag)

		if node.Defined() && node.MaxOccurs != registry.Unbounded && j >= node.MaxOccurs {
			d.rec.Raise(el, issue.DiagUnexpectedRepeat, map[string]any{"repeat": j + 1, "max": node.MaxOccurs}, &rloc)
		}

		switch {
		case !node.Defined():
			d.rec.Raise(el, issue.DiagUnexpectedField, map[string]any{"value": rep}, &rloc)
			d.leaf(el, primitive.Unit{Text: rep, Type: UndefinedType}, &rloc)
			continue
		case attrs.Type == "":
			d.rec.Raise(el, issue.DiagUndefinedFieldType, nil, &rloc)
			d.leaf(el, primitive.Unit{Text: rep, Type: UndefinedType}, &rloc)
			continue
		}

		typ := resolveVaries(node.Ref, attrs.Type, seg.fields)
		if comps, ok := d.composite(typ); ok {
			d.components(ctx, el, &rloc, typ, comps, rep)
		} else {
			d.leaf(el, primitive.Unit{Text: rep, Type: typ}, &rloc)
			d.checkCode(ctx, el, rep, attrs.Table, &rloc)
		}
		if max, ok := d.reg.FieldMaxLength(code); ok {
			d.checkLength(el, rep, max, &rloc)
		}
	}
}

// components handles the components of one field repetition of type typ.
func (d *Decomposer) components(ctx context.Context, parent *etree.Element, floc *issue.Location, typ string, comps []registry.Node, value string) {
	parts := strings.Split(value, d.enc.Component)
	for k, part := range parts {
		if part == primitive.Deleted {
			continue
		}
		code := pool.ChildCoordinate(floc.Field, k+1)
		loc := *floc
		loc.Component = code

		var node registry.Node
		if k < len(comps) {
			node = comps[k]
		}
		tag := code
		var attrs registry.Attributes
		if node.Defined() {
			tag = node.Ref
			attrs = d.reg.ComponentAttributes(node.Ref)
		}

		if part == "" {
			if node.Defined() && node.MinOccurs > 0 {
				d.rec.Raise(parent.CreateElement(tag), issue.DiagMissingRequiredComponent, nil, &loc)
			}
			continue
		}

		el := parent.CreateElement(tag)
		unit := primitive.Unit{Text: part, Type: attrs.Type, Parent: typ, Position: k + 1, Enclosing: parent}
		switch {
		case !node.Defined():
			d.rec.Raise(el, issue.DiagUnexpectedComponent, map[string]any{"value": part}, &loc)
			unit.Type = UndefinedType
			d.leaf(el, unit, &loc)
			continue
		case attrs.Type == "":
			d.rec.Raise(el, issue.DiagUndefinedComponentType, nil, &loc)
			unit.Type = UndefinedType
			d.leaf(el, unit, &loc)
			continue
		}

		if subs, ok := d.composite(attrs.Type); ok && d.enc.SubComponent != "" && !unsplitComponents[code] {
			d.subComponents(ctx, el, &loc, attrs.Type, subs, part)
			continue
		}
		d.leaf(el, unit, &loc)
		d.checkCode(ctx, el, part, attrs.Table, &loc)
		if max, ok := d.reg.ComponentMaxLength(typ, k+1); ok {
			d.checkLength(el, part, max, &loc)
		}
		d.checkValueSet(el, floc.Field, parts, k, &loc)
	}
}

// subComponents handles the sub-components of one component of type typ.
// Sub-components are the deepest level and are never split further.
func (d *Decomposer) subComponents(ctx context.Context, parent *etree.Element, cloc *issue.Location, typ string, subs []registry.Node, value string) {
	parts := strings.Split(value, d.enc.SubComponent)
	for l, part := range parts {
		if part == primitive.Deleted {
			continue
		}
		code := pool.ChildCoordinate(cloc.Component, l+1)
		loc := *cloc
		loc.SubComponent = code

		var node registry.Node
		if l < len(subs) {
			node = subs[l]
		}
		tag := code
		var attrs registry.Attributes
		if node.Defined() {
			tag = node.Ref
			attrs = d.reg.ComponentAttributes(node.Ref)
		}

		if part == "" {
			if node.Defined() && node.MinOccurs > 0 {
				d.rec.Raise(parent.CreateElement(tag), issue.DiagMissingRequiredSubComponent, nil, &loc)
			}
			continue
		}

		el := parent.CreateElement(tag)
		unit := primitive.Unit{Text: part, Type: attrs.Type, Parent: typ, Position: l + 1, Enclosing: parent}
		switch {
		case !node.Defined():
			d.rec.Raise(el, issue.DiagUnexpectedSubComponent, map[string]any{"value": part}, &loc)
			unit.Type = UndefinedType
		case attrs.Type == "":
			d.rec.Raise(el, issue.DiagUndefinedSubComponentType, nil, &loc)
			unit.Type = UndefinedType
		}
		d.leaf(el, unit, &loc)
		d.checkCode(ctx, el, part, attrs.Table, &loc)
		if max, ok := d.reg.ComponentMaxLength(typ, l+1); ok {
			d.checkLength(el, part, max, &loc)
		}
		d.checkValueSet(el, cloc.Component, parts, l, &loc)
	}
}

// composite returns the component sequence of typ. FT, varies and atomic
// types are leaves.
func (d *Decomposer) composite(typ string) ([]registry.Node, bool) {
	if typ == "FT" || typ == Varies {
		return nil, false
	}
	nodes, ok := d.reg.DataTypeContent(typ)
	if !ok || len(nodes) == 0 {
		return nil, false
	}
	return nodes, true
}

// leaf sets the text of el and reports a format diagnostic.
func (d *Decomposer) leaf(el *etree.Element, u primitive.Unit, loc *issue.Location) {
	if details := d.fix.Fix(el, u); details != "" {
		d.rec.Raise(el, issue.DiagIllegalFormat, map[string]any{"details": details}, loc)
	}
}

// checkCode reports a value missing from the unit's code table.
func (d *Decomposer) checkCode(ctx context.Context, el *etree.Element, value, table string, loc *issue.Location) {
	if table == "" || d.terms == nil {
		return
	}
	valid, found := d.terms.ValidateCode(ctx, table, value)
	if !found || valid {
		return
	}
	d.rec.Raise(el, issue.DiagIllegalCodeValue, map[string]any{
		"value":     value,
		"tableType": d.terms.TableType(table),
		"table":     table,
	}, loc)
}

// checkLength reports a value longer than max characters.
func (d *Decomposer) checkLength(el *etree.Element, value string, max int, loc *issue.Location) {
	if utf8.RuneCountInString(value) <= max {
		return
	}
	d.rec.Raise(el, issue.DiagIllegalLength, map[string]any{"value": value, "max": max}, loc)
}

// checkValueSet checks a coding system at index i of parts against the
// value set of key, using the identifier two positions earlier.
func (d *Decomposer) checkValueSet(el *etree.Element, key string, parts []string, i int, loc *issue.Location) {
	if d.terms == nil || !codingSystemPositions[i+1] {
		return
	}
	system, identifier := parts[i], parts[i-2]
	valid, found := d.terms.ValidateIdentifier(key, system, identifier)
	if !found || valid {
		return
	}
	d.rec.Raise(el, issue.DiagIllegalValueSetCombination, map[string]any{
		"identifier": identifier,
		"system":     system,
	}, loc)
}

// resolveVaries returns the concrete type of a field declared "varies",
// read from the sibling field named in variesSources. Other types, and
// varies fields whose sibling is absent, are returned unchanged.
func resolveVaries(ref, typ string, fields []string) string {
	if typ != Varies {
		return typ
	}
	src, ok := variesSources[ref]
	if !ok || src > len(fields) || fields[src-1] == "" {
		return typ
	}
	return fields[src-1]
}
