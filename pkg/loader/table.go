package loader

import (
	"bytes"
	"encoding/csv"
	"fmt"
)

// Table file names found at the root of a schema set.
const (
	MessageStructuresFile = "hl7Table0354.csv"
	CodeTablesFile        = "hl7Tables.csv"
	FieldLengthsFile      = "hl7Fields.csv"
	DataTypeLengthsFile   = "hl7DataTypes.csv"
	ValueSetsFile         = "valueSets.csv"
)

// ReadTable reads a tab-separated table from src. The first row is a header
// and is not returned. Rows may have differing numbers of columns.
func ReadTable(src Source, name string) ([][]string, error) {
	data, err := src.ReadFile(name)
	if err != nil {
		return nil, err
	}

	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = '\t'
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[1:], nil
}
