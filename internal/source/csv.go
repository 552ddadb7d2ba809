// Package source reads the external tabular data source.
package source

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
)

// Table is the raw contents of a tabular source: the header row and every
// data row, all values preserved as text exactly as they appear in the file.
type Table struct {
	Columns []string
	Rows    [][]string
}

// RowCount returns the number of data rows.
func (t *Table) RowCount() int {
	return len(t.Rows)
}

// ReadCSV reads a CSV file into a Table without interpreting any value.
// Quoting is lazy and per-row field counts are tolerated up to the header
// width; seismic catalog extracts routinely carry ragged trailing fields.
func ReadCSV(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.LazyQuotes = true
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("source: %s is empty", path)
	}
	if err != nil {
		return nil, fmt.Errorf("source: failed to read header: %w", err)
	}

	table := &Table{Columns: header}
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("source: failed to read row %d: %w", len(table.Rows)+2, err)
		}

		// Pad or truncate ragged rows to the header width so every row
		// aligns column-for-column with the header.
		if len(record) < len(header) {
			padded := make([]string, len(header))
			copy(padded, record)
			record = padded
		} else if len(record) > len(header) {
			record = record[:len(header)]
		}
		table.Rows = append(table.Rows, record)
	}

	return table, nil
}
