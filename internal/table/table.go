// Package table models the tabular step arguments exchanged with a wire
// server and computes the structural diff used to confirm or reject a
// table mismatch reported by the remote side.
package table

import (
	"encoding/json"
	"fmt"
)

// Table is an immutable grid of cells.  The first row is the header.
type Table struct {
	rows [][]string
}

// New copies rows into a Table.  Ragged rows are padded with empty
// cells so every row has the width of the widest one.
func New(rows [][]string) *Table {
	width := 0
	for _, r := range rows {
		if len(r) > width {
			width = len(r)
		}
	}
	out := make([][]string, len(rows))
	for i, r := range rows {
		row := make([]string, width)
		copy(row, r)
		out[i] = row
	}
	return &Table{rows: out}
}

// FromValues builds a Table from loosely typed cells, as produced by
// decoding JSON or YAML into [][]any.  Non-string cells are rendered
// with their JSON representation so that 1 and "1" compare equal.
func FromValues(values [][]any) (*Table, error) {
	rows := make([][]string, len(values))
	for i, vr := range values {
		row := make([]string, len(vr))
		for j, v := range vr {
			s, err := cellString(v)
			if err != nil {
				return nil, fmt.Errorf("cell [%d][%d]: %w", i, j, err)
			}
			row[j] = s
		}
		rows[i] = row
	}
	return New(rows), nil
}

func cellString(v any) (string, error) {
	switch c := v.(type) {
	case nil:
		return "", nil
	case string:
		return c, nil
	default:
		b, err := json.Marshal(c)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
}

// Header returns the first row, or nil for an empty table.
func (t *Table) Header() []string {
	if t == nil || len(t.rows) == 0 {
		return nil
	}
	return t.rows[0]
}

// Body returns every row after the header.
func (t *Table) Body() [][]string {
	if t == nil || len(t.rows) < 2 {
		return nil
	}
	return t.rows[1:]
}

// Raw returns all rows including the header.
func (t *Table) Raw() [][]string {
	if t == nil {
		return nil
	}
	return t.rows
}

// Len returns the number of rows including the header.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.rows)
}

// MarshalJSON encodes the table as a JSON array of arrays of strings,
// the shape the wire protocol uses for table arguments.
func (t *Table) MarshalJSON() ([]byte, error) {
	if t == nil || t.rows == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(t.rows)
}

// UnmarshalJSON accepts an array of arrays of arbitrary scalars.
func (t *Table) UnmarshalJSON(data []byte) error {
	var values [][]any
	if err := json.Unmarshal(data, &values); err != nil {
		return err
	}
	parsed, err := FromValues(values)
	if err != nil {
		return err
	}
	*t = *parsed
	return nil
}

// UnmarshalYAML lets step files carry tables as nested sequences.
func (t *Table) UnmarshalYAML(unmarshal func(any) error) error {
	var values [][]any
	if err := unmarshal(&values); err != nil {
		return err
	}
	parsed, err := FromValues(values)
	if err != nil {
		return err
	}
	*t = *parsed
	return nil
}
