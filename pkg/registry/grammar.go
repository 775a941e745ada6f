package registry

import (
	"fmt"
	"strings"
)

// Unbounded is the MaxOccurs of a node declared maxOccurs="unbounded".
const Unbounded = -1

// Node is one member of a grammar list, segment or datatype sequence.
type Node struct {
	Ref       string
	MinOccurs int
	MaxOccurs int // Unbounded or >= 1
}

// IsGroup reports whether the node references a group rather than a segment.
// Segment codes are three characters; group codes are longer.
func (n Node) IsGroup() bool {
	return len(n.Ref) > 3
}

// Optional reports whether the node may be absent.
func (n Node) Optional() bool {
	return n.MinOccurs == 0
}

// Defined reports whether the node carries a reference.
func (n Node) Defined() bool {
	return n.Ref != ""
}

// Allows reports whether a node may occur n times.
func (n Node) Allows(occurs int) bool {
	return n.MaxOccurs == Unbounded || occurs <= n.MaxOccurs
}

// Kind distinguishes sequence and choice content.
type Kind int

const (
	// Sequence members are matched in order, each with repetition.
	Sequence Kind = iota
	// Choice members are alternatives; the first match wins.
	Choice
)

func (k Kind) String() string {
	if k == Choice {
		return "choice"
	}
	return "sequence"
}

// Content is the body of a message structure or one of its groups.
type Content struct {
	Kind    Kind
	Members []Node
}

// IsChoice reports whether the content is a choice.
func (c Content) IsChoice() bool {
	return c.Kind == Choice
}

// Grammar is the parsed grammar of one message structure, e.g. ADT_A01.
// It is immutable once built and shared between validations.
type Grammar struct {
	Structure string
	Root      Content
	groups    map[string]Content
}

// Content returns the content of a group by its code.
func (g *Grammar) Content(tag string) (Content, error) {
	if tag == g.Structure {
		return g.Root, nil
	}
	c, ok := g.groups[tag]
	if !ok {
		return Content{}, fmt.Errorf("%w: %s: no content defined for group %s", ErrSchema, g.Structure, tag)
	}
	return c, nil
}

// Groups returns the number of groups in the grammar.
func (g *Grammar) Groups() int {
	return len(g.groups)
}

// buildGrammar validates every list of a message structure schema. Every
// member must carry ref, minOccurs and maxOccurs, every referenced group must
// be defined and the structure must start with MSH.
func buildGrammar(structure string, schema *xsdSchema) (*Grammar, error) {
	g := &Grammar{
		Structure: structure,
		groups:    make(map[string]Content),
	}

	rootFound := false
	for _, ct := range schema.ComplexTypes {
		code, ok := strings.CutSuffix(ct.Name, ".CONTENT")
		if !ok {
			continue
		}

		var c Content
		var particles *xsdParticles
		switch {
		case ct.Sequence != nil:
			c.Kind, particles = Sequence, ct.Sequence
		case ct.Choice != nil:
			c.Kind, particles = Choice, ct.Choice
		default:
			return nil, fmt.Errorf("%w: %s: %s has neither xsd:sequence nor xsd:choice", ErrSchema, structure, ct.Name)
		}

		members, err := grammarNodes(structure, ct.Name, particles.Elements)
		if err != nil {
			return nil, err
		}
		c.Members = members

		if code == structure {
			if c.Kind != Sequence {
				return nil, fmt.Errorf("%w: %s: top-level content must be a sequence", ErrSchema, structure)
			}
			g.Root = c
			rootFound = true
			continue
		}
		g.groups[code] = c
	}

	if !rootFound {
		return nil, fmt.Errorf("%w: %s: no %s.CONTENT definition", ErrSchema, structure, structure)
	}
	if len(g.Root.Members) == 0 || g.Root.Members[0].Ref != "MSH" {
		return nil, fmt.Errorf("%w: MSH not defined for message structure %s", ErrSchema, structure)
	}

	check := func(list string, c Content) error {
		for _, m := range c.Members {
			if !m.IsGroup() {
				continue
			}
			if _, ok := g.groups[m.Ref]; !ok {
				return fmt.Errorf("%w: %s: %s references undefined group %s", ErrSchema, structure, list, m.Ref)
			}
		}
		return nil
	}
	if err := check(structure, g.Root); err != nil {
		return nil, err
	}
	for code, c := range g.groups {
		if err := check(code, c); err != nil {
			return nil, err
		}
	}

	return g, nil
}
