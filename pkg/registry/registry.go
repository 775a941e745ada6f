// Package registry is the read-only Schema Repository for one HL7 v2.x
// version: segment, field and datatype definitions from the v2.xml XSD
// files, message grammars, and the structure and length tables.
package registry

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/gofhir/hl7validator/cache"
	"github.com/gofhir/hl7validator/pkg/loader"
)

// Schema file names below the schema set root.
const (
	SegmentsFile  = "xsd/segments.xsd"
	FieldsFile    = "xsd/fields.xsd"
	DataTypesFile = "xsd/datatypes.xsd"
)

// Maximum lengths meaning "no limit" in hl7Fields.csv.
var unboundedLengths = map[int]bool{
	999999: true,
	65536:  true,
}

// DefaultGrammarCacheSize is the number of message grammars kept parsed.
const DefaultGrammarCacheSize = 64

var (
	// ErrSchema reports a defect in the schema set. The schema is trusted
	// input, so this aborts the whole run.
	ErrSchema = errors.New("schema error")

	// ErrUnknownStructure reports a message structure with no grammar file.
	ErrUnknownStructure = errors.New("unknown message structure")
)

// Attributes are the fixed attributes of a field or datatype component.
// An empty Type means the unit is schema-undefined.
type Attributes struct {
	Type  string
	Table string
}

// Registry answers the structural and type queries of the validator.
// Everything except the grammar cache is immutable after Load, so a
// Registry is safe for concurrent use.
type Registry struct {
	src loader.Source

	segments   map[string][]Node
	fields     map[string]Attributes
	dataTypes  map[string][]Node
	components map[string]Attributes

	structures       map[string]map[string]string // type -> trigger -> structure
	fieldLengths     map[string]int               // PID-3 -> length
	componentLengths map[string]map[int]int       // CX -> position -> length

	grammars *cache.Cache[string, *Grammar]
}

// Load reads the segment, field and datatype schemas and the tables of a
// schema set. Message grammars are parsed on first use and kept in an LRU
// cache of grammarCacheSize entries (DefaultGrammarCacheSize when <= 0).
func Load(src loader.Source, grammarCacheSize int) (*Registry, error) {
	if grammarCacheSize <= 0 {
		grammarCacheSize = DefaultGrammarCacheSize
	}
	r := &Registry{
		src:        src,
		segments:   make(map[string][]Node),
		dataTypes:  make(map[string][]Node),
		structures: make(map[string]map[string]string),
		grammars:   cache.New[string, *Grammar](grammarCacheSize),
	}

	segments, err := r.readSchema(SegmentsFile)
	if err != nil {
		return nil, err
	}
	for _, ct := range segments.ComplexTypes {
		if ct.Sequence == nil {
			continue
		}
		if code, ok := strings.CutSuffix(ct.Name, ".CONTENT"); ok && len(code) == 3 {
			r.segments[code] = positions(ct.Sequence.Elements, true)
		}
	}

	fields, err := r.readSchema(FieldsFile)
	if err != nil {
		return nil, err
	}
	r.fields = fields.attributes()

	dataTypes, err := r.readSchema(DataTypesFile)
	if err != nil {
		return nil, err
	}
	for _, ct := range dataTypes.ComplexTypes {
		if ct.Sequence != nil {
			r.dataTypes[ct.Name] = positions(ct.Sequence.Elements, false)
		}
	}
	r.components = dataTypes.attributes()

	if err := r.loadTables(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Registry) readSchema(name string) (*xsdSchema, error) {
	data, err := r.src.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("%w: no file %q in schema set %s", ErrSchema, name, r.src.Path())
	}
	return decodeSchema(name, data)
}

// Source returns the schema set the registry was loaded from.
func (r *Registry) Source() loader.Source {
	return r.src
}

// SegmentContent returns the field sequence of a segment. Positions whose
// schema element lacks ref, minOccurs or maxOccurs have an empty Ref.
func (r *Registry) SegmentContent(code string) ([]Node, error) {
	nodes, ok := r.segments[code]
	if !ok {
		return nil, fmt.Errorf("%w: missing segment definition for segment %s", ErrSchema, code)
	}
	return nodes, nil
}

// FieldAttributes returns the fixed Type and Table of a field reference
// such as "PID.3".
func (r *Registry) FieldAttributes(ref string) Attributes {
	return r.fields[ref]
}

// DataTypeContent returns the component sequence of a composite datatype.
// ok is false for atomic and unknown types.
func (r *Registry) DataTypeContent(code string) (nodes []Node, ok bool) {
	nodes, ok = r.dataTypes[code]
	return nodes, ok
}

// ComponentAttributes returns the fixed Type and Table of a datatype
// component reference such as "CX.1".
func (r *Registry) ComponentAttributes(ref string) Attributes {
	return r.components[ref]
}

// HasStructure reports whether a grammar file exists for structure.
func (r *Registry) HasStructure(structure string) bool {
	return r.src.Exists("xsd/" + structure + ".xsd")
}

// Grammar returns the parsed grammar of a message structure.
// A structure without grammar file yields ErrUnknownStructure; a grammar
// file with defects yields ErrSchema.
func (r *Registry) Grammar(structure string) (*Grammar, error) {
	return r.grammars.GetOrLoad(structure, func() (*Grammar, error) {
		name := "xsd/" + structure + ".xsd"
		data, err := r.src.ReadFile(name)
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w (%s)", ErrUnknownStructure, structure)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrSchema, name, err)
		}
		schema, err := decodeSchema(name, data)
		if err != nil {
			return nil, err
		}
		return buildGrammar(structure, schema)
	})
}

// GrammarCacheStats returns statistics of the grammar cache.
func (r *Registry) GrammarCacheStats() cache.Stats {
	return r.grammars.Stats()
}

// HasMessageType reports whether the structure table lists msgType.
func (r *Registry) HasMessageType(msgType string) bool {
	_, ok := r.structures[msgType]
	return ok
}

// MessageStructure looks up the structure for a message type and trigger
// event, e.g. ("ADT", "A04") -> "ADT_A01".
func (r *Registry) MessageStructure(msgType, trigger string) (string, bool) {
	triggers, ok := r.structures[msgType]
	if !ok {
		return "", false
	}
	s, ok := triggers[trigger]
	return s, ok
}

// FieldMaxLength returns the maximum length configured for a field code
// such as "PID-3". ok is false when no limit applies.
func (r *Registry) FieldMaxLength(fieldCode string) (int, bool) {
	n, ok := r.fieldLengths[fieldCode]
	if !ok || unboundedLengths[n] {
		return 0, false
	}
	return n, true
}

// ComponentMaxLength returns the maximum length of the component at the
// 1-based position of a datatype. ok is false when no limit applies.
func (r *Registry) ComponentMaxLength(typeCode string, position int) (int, bool) {
	lengths, ok := r.componentLengths[typeCode]
	if !ok {
		return 0, false
	}
	n, ok := lengths[position]
	if !ok || unboundedLengths[n] {
		return 0, false
	}
	return n, true
}

// Stats summarises what the registry holds.
type Stats struct {
	Segments        int
	Fields          int
	DataTypes       int
	Components      int
	MessageTypes    int
	FieldLengths    int
	DataTypeLengths int
}

// Stats returns counts of the loaded definitions.
func (r *Registry) Stats() Stats {
	return Stats{
		Segments:        len(r.segments),
		Fields:          len(r.fields),
		DataTypes:       len(r.dataTypes),
		Components:      len(r.components),
		MessageTypes:    len(r.structures),
		FieldLengths:    len(r.fieldLengths),
		DataTypeLengths: len(r.componentLengths),
	}
}
