// Package terminology holds the HL7 and user code tables and the coded
// element value sets used for code-value and coding-system checks.
package terminology

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sync"

	"github.com/gofhir/hl7validator/pkg/loader"
	"github.com/gofhir/hl7validator/pkg/registry"
)

// Table is one HL7 or user-defined code table.
type Table struct {
	ID    string
	Type  string // "HL7", "User", ...
	Codes map[string]bool
}

// Contains reports whether code is a member of the table.
func (t *Table) Contains(code string) bool {
	return t.Codes[code]
}

// ValueSet maps a coding system to the identifiers it legitimises.
type ValueSet map[string]map[string]bool

// Registry holds the loaded code tables and value sets.
type Registry struct {
	mu        sync.RWMutex
	tables    map[string]*Table
	valueSets map[string]ValueSet
	provider  Provider
}

// NewRegistry creates a new terminology Registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Load reads both hl7Tables.csv and valueSets.csv. Either may be absent,
// which disables the corresponding check.
func (r *Registry) Load(src loader.Source) error {
	if err := r.LoadTables(src); err != nil {
		return err
	}
	return r.LoadValueSets(src)
}

// LoadTables reads hl7Tables.csv. Columns are table type, table id,
// description and code. Empty type or id cells continue the previous row's.
func (r *Registry) LoadTables(src loader.Source) error {
	rows, err := loader.ReadTable(src, loader.CodeTablesFile)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: %v", registry.ErrSchema, err)
	}

	tables := make(map[string]*Table)
	var tableType string
	var current *Table
	for _, row := range rows {
		if len(row) > 0 && row[0] != "" {
			tableType = row[0]
		}
		if len(row) > 1 && row[1] != "" {
			id := row[1]
			t, ok := tables[id]
			if !ok {
				if tableType == "" {
					return fmt.Errorf("%w: %s: table [%s] without table type", registry.ErrSchema, loader.CodeTablesFile, id)
				}
				t = &Table{ID: id, Type: tableType, Codes: make(map[string]bool)}
				tables[id] = t
			}
			current = t
		}
		if len(row) < 4 || row[3] == "" {
			continue
		}
		if current == nil {
			return fmt.Errorf("%w: %s: table code [%s] without table number", registry.ErrSchema, loader.CodeTablesFile, row[3])
		}
		current.Codes[row[3]] = true
	}

	r.mu.Lock()
	r.tables = tables
	r.mu.Unlock()
	return nil
}

// LoadValueSets reads valueSets.csv. Columns are field or component code,
// coding system and identifier. Empty cells continue the previous row's.
func (r *Registry) LoadValueSets(src loader.Source) error {
	rows, err := loader.ReadTable(src, loader.ValueSetsFile)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: %v", registry.ErrSchema, err)
	}

	valueSets := make(map[string]ValueSet)
	var code, system string
	for _, row := range rows {
		switch len(row) {
		case 0:
			continue
		case 1:
			code = row[0]
			continue
		case 2:
			if row[0] != "" {
				code = row[0]
			}
			system = row[1]
			continue
		case 3:
		default:
			return fmt.Errorf("%w: %s: too many columns - %q", registry.ErrSchema, loader.ValueSetsFile, row)
		}

		if row[0] != "" {
			code = row[0]
		}
		if row[1] != "" {
			system = row[1]
		}
		if code == "" {
			return fmt.Errorf("%w: %s: missing field or component at start of file", registry.ErrSchema, loader.ValueSetsFile)
		}
		if system == "" {
			return fmt.Errorf("%w: %s: missing coding system at start of file", registry.ErrSchema, loader.ValueSetsFile)
		}

		vs, ok := valueSets[code]
		if !ok {
			vs = make(ValueSet)
			valueSets[code] = vs
		}
		ids, ok := vs[system]
		if !ok {
			ids = make(map[string]bool)
			vs[system] = ids
		}
		ids[row[2]] = true
	}

	r.mu.Lock()
	r.valueSets = valueSets
	r.mu.Unlock()
	return nil
}

// HasTables reports whether a code table file was loaded.
func (r *Registry) HasTables() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tables != nil
}

// HasValueSets reports whether a value set file was loaded.
func (r *Registry) HasValueSets() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.valueSets != nil
}

// CodeTable returns a code table by id, e.g. "HL70001".
func (r *Registry) CodeTable(id string) (*Table, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tables[id]
	return t, ok
}

// ValidateCode checks if code is a member of a table.
// Returns (isValid, found) where found indicates if the table was found.
// A table configured without any codes accepts every value. Tables not
// configured locally are delegated to the Provider when one is set.
func (r *Registry) ValidateCode(ctx context.Context, table, code string) (isValid, found bool) {
	r.mu.RLock()
	t, ok := r.tables[table]
	provider := r.provider
	r.mu.RUnlock()

	if ok {
		if len(t.Codes) == 0 {
			return true, true
		}
		return t.Contains(code), true
	}
	if provider == nil {
		return false, false
	}
	valid, err := provider.ValidateCode(ctx, table, code)
	if err != nil {
		// Fail open: an unavailable provider does not invalidate messages.
		return true, false
	}
	return valid, true
}

// TableType returns the declared type of a table, e.g. "HL7" or "User".
// Tables answered by the Provider report "external".
func (r *Registry) TableType(table string) string {
	if t, ok := r.CodeTable(table); ok {
		return t.Type
	}
	return "external"
}

// ValueSet returns the value set configured for a field or component code.
func (r *Registry) ValueSet(code string) (ValueSet, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	vs, ok := r.valueSets[code]
	return vs, ok
}

// ValidateIdentifier checks that identifier belongs to the coding system in
// the value set of a field or component code.
// Returns (isValid, found) where found indicates if the value set lists
// the coding system at all.
func (r *Registry) ValidateIdentifier(code, system, identifier string) (isValid, found bool) {
	vs, ok := r.ValueSet(code)
	if !ok {
		return false, false
	}
	ids, ok := vs[system]
	if !ok {
		return false, false
	}
	return ids[identifier], true
}

// TableCount returns the number of loaded code tables.
func (r *Registry) TableCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tables)
}

// ValueSetCount returns the number of loaded value sets.
func (r *Registry) ValueSetCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.valueSets)
}
