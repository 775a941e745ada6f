package registry

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"

	"github.com/gofhir/hl7validator/pkg/loader"
)

func (r *Registry) loadTables() error {
	if err := r.loadStructures(); err != nil {
		return err
	}
	if err := r.loadFieldLengths(); err != nil {
		return err
	}
	return r.loadDataTypeLengths()
}

// optionalTable reads a table that may be absent from the schema set.
func (r *Registry) optionalTable(name string) ([][]string, bool, error) {
	rows, err := loader.ReadTable(r.src, name)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrSchema, err)
	}
	return rows, true, nil
}

// loadStructures reads hl7Table0354.csv: structure, comma separated trigger
// events. A trigger may be a range such as A01-A05, which expands to every
// event in between.
func (r *Registry) loadStructures() error {
	rows, err := loader.ReadTable(r.src, loader.MessageStructuresFile)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: no file %q in schema set %s", ErrSchema, loader.MessageStructuresFile, r.src.Path())
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSchema, err)
	}

	for _, row := range rows {
		if len(row) < 2 || len(row[0]) < 3 {
			continue
		}
		structure := row[0]
		msgType := structure[:3]
		triggers, ok := r.structures[msgType]
		if !ok {
			triggers = make(map[string]string)
			r.structures[msgType] = triggers
		}
		for _, trigger := range strings.Split(row[1], ",") {
			for _, event := range ExpandTrigger(strings.TrimSpace(trigger)) {
				triggers[event] = structure
			}
		}
	}
	return nil
}

// ExpandTrigger expands a trigger event specification. "A01" yields itself
// and "A01-A05" yields A01 through A05. Anything else yields nothing.
func ExpandTrigger(spec string) []string {
	if len(spec) == 3 {
		return []string{spec}
	}
	if len(spec) != 7 || spec[3] != '-' {
		return nil
	}
	letter := spec[:1]
	start, err1 := strconv.Atoi(spec[1:3])
	end, err2 := strconv.Atoi(spec[5:7])
	if err1 != nil || err2 != nil || end < start {
		return nil
	}
	events := make([]string, 0, end-start+1)
	for n := start; n <= end; n++ {
		events = append(events, fmt.Sprintf("%s%02d", letter, n))
	}
	return events
}

// loadFieldLengths reads hl7Fields.csv: segment, field number, length.
func (r *Registry) loadFieldLengths() error {
	rows, ok, err := r.optionalTable(loader.FieldLengthsFile)
	if err != nil || !ok {
		return err
	}

	r.fieldLengths = make(map[string]int, len(rows))
	for _, row := range rows {
		switch {
		case len(row) < 3:
			return fmt.Errorf("%w: %s: too few columns - %q", ErrSchema, loader.FieldLengthsFile, row)
		case len(row) > 3:
			return fmt.Errorf("%w: %s: too many columns - %q", ErrSchema, loader.FieldLengthsFile, row)
		}
		length, err := strconv.Atoi(row[2])
		if err != nil {
			return fmt.Errorf("%w: %s: illegal length [%s]", ErrSchema, loader.FieldLengthsFile, row[2])
		}
		r.fieldLengths[row[0]+"-"+row[1]] = length
	}
	return nil
}

// loadDataTypeLengths reads hl7DataTypes.csv. A single-column row names a
// datatype; the two-column rows after it give position and length.
func (r *Registry) loadDataTypeLengths() error {
	rows, ok, err := r.optionalTable(loader.DataTypeLengthsFile)
	if err != nil || !ok {
		return err
	}

	r.componentLengths = make(map[string]map[int]int)
	var current map[int]int
	for _, row := range rows {
		switch len(row) {
		case 0:
			continue
		case 1:
			lengths, ok := r.componentLengths[row[0]]
			if !ok {
				lengths = make(map[int]int)
				r.componentLengths[row[0]] = lengths
			}
			current = lengths
		case 2:
			position, err1 := strconv.Atoi(row[0])
			length, err2 := strconv.Atoi(row[1])
			if err1 != nil || err2 != nil {
				return fmt.Errorf("%w: %s: invalid sequence [%s] or length [%s]", ErrSchema, loader.DataTypeLengthsFile, row[0], row[1])
			}
			if current == nil {
				return fmt.Errorf("%w: %s: missing datatype at start of file", ErrSchema, loader.DataTypeLengthsFile)
			}
			current[position] = length
		default:
			return fmt.Errorf("%w: %s: too many columns - %q", ErrSchema, loader.DataTypeLengthsFile, row)
		}
	}
	return nil
}
