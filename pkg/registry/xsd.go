package registry

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"
)

// xsdSchema is the subset of an HL7 v2.xml schema file the registry reads.
// Tags match on local name, so both xsd: and xs: prefixes decode.
type xsdSchema struct {
	ComplexTypes    []xsdComplexType    `xml:"complexType"`
	AttributeGroups []xsdAttributeGroup `xml:"attributeGroup"`
}

type xsdComplexType struct {
	Name     string        `xml:"name,attr"`
	Sequence *xsdParticles `xml:"sequence"`
	Choice   *xsdParticles `xml:"choice"`
}

type xsdParticles struct {
	Elements []xsdElement `xml:"element"`
}

// xsdElement keeps attributes as pointers so absent and empty differ.
type xsdElement struct {
	Ref       *string `xml:"ref,attr"`
	MinOccurs *string `xml:"minOccurs,attr"`
	MaxOccurs *string `xml:"maxOccurs,attr"`
}

type xsdAttributeGroup struct {
	Name       string         `xml:"name,attr"`
	Attributes []xsdAttribute `xml:"attribute"`
}

type xsdAttribute struct {
	Name  string  `xml:"name,attr"`
	Fixed *string `xml:"fixed,attr"`
}

func decodeSchema(name string, data []byte) (*xsdSchema, error) {
	var s xsdSchema
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Strict = false
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSchema, name, err)
	}
	return &s, nil
}

// contentTypes indexes the complexTypes of a schema by name.
func (s *xsdSchema) contentTypes() map[string]*xsdComplexType {
	m := make(map[string]*xsdComplexType, len(s.ComplexTypes))
	for i := range s.ComplexTypes {
		ct := &s.ComplexTypes[i]
		m[ct.Name] = ct
	}
	return m
}

// attributes collects the fixed Type and Table of every <ref>.ATTRIBUTES group.
func (s *xsdSchema) attributes() map[string]Attributes {
	m := make(map[string]Attributes, len(s.AttributeGroups))
	for _, g := range s.AttributeGroups {
		ref, ok := strings.CutSuffix(g.Name, ".ATTRIBUTES")
		if !ok {
			continue
		}
		var a Attributes
		for _, attr := range g.Attributes {
			if attr.Fixed == nil {
				continue
			}
			switch attr.Name {
			case "Type":
				a.Type = *attr.Fixed
			case "Table":
				a.Table = *attr.Fixed
			}
		}
		m[ref] = a
	}
	return m
}

// positions converts the elements of a segment or datatype sequence into
// Nodes. An element lacking any of the required attributes yields a Node
// with an empty Ref: the position exists but is schema-undefined.
func positions(elems []xsdElement, needMax bool) []Node {
	nodes := make([]Node, len(elems))
	for i, e := range elems {
		if e.Ref == nil || e.MinOccurs == nil || (needMax && e.MaxOccurs == nil) {
			continue
		}
		n := Node{Ref: *e.Ref, MaxOccurs: Unbounded}
		if v, err := strconv.Atoi(*e.MinOccurs); err == nil {
			n.MinOccurs = v
		}
		if e.MaxOccurs != nil {
			if v, err := strconv.Atoi(*e.MaxOccurs); err == nil {
				n.MaxOccurs = v
			}
		}
		nodes[i] = n
	}
	return nodes
}

// grammarNodes converts the members of a message grammar list. Unlike
// segment fields, every attribute is mandatory here.
func grammarNodes(structure, list string, elems []xsdElement) ([]Node, error) {
	nodes := make([]Node, 0, len(elems))
	for i, e := range elems {
		if e.Ref == nil {
			return nil, fmt.Errorf("%w: %s: %s member %d is missing \"ref\"", ErrSchema, structure, list, i+1)
		}
		if e.MinOccurs == nil {
			return nil, fmt.Errorf("%w: %s: %s member %s is missing \"minOccurs\"", ErrSchema, structure, list, *e.Ref)
		}
		if e.MaxOccurs == nil {
			return nil, fmt.Errorf("%w: %s: %s member %s is missing \"maxOccurs\"", ErrSchema, structure, list, *e.Ref)
		}
		minOccurs, err := strconv.Atoi(*e.MinOccurs)
		if err != nil || minOccurs < 0 {
			return nil, fmt.Errorf("%w: %s: %s member %s has minOccurs %q", ErrSchema, structure, list, *e.Ref, *e.MinOccurs)
		}
		maxOccurs := Unbounded
		if *e.MaxOccurs != "unbounded" {
			maxOccurs, err = strconv.Atoi(*e.MaxOccurs)
			if err != nil || maxOccurs < 1 {
				return nil, fmt.Errorf("%w: %s: %s member %s has maxOccurs %q", ErrSchema, structure, list, *e.Ref, *e.MaxOccurs)
			}
		}
		nodes = append(nodes, Node{Ref: *e.Ref, MinOccurs: minOccurs, MaxOccurs: maxOccurs})
	}
	return nodes, nil
}
