// Package table defines the immutable tabular snapshot passed between the
// pipeline stages.
//
// A Table is an ordered column schema plus positional rows ([]any), the same
// shape the storage layer copies into databases. Stages never write into a
// Table they received: every transformation builds a new Rows slice (see
// WithRows) so several consumers can read one snapshot concurrently.
//
// Cells hold one of: nil, string, int64, float64, bool, time.Time.
package table

import (
	"fmt"
	"time"
)

// Kind is the primitive type of a column.
type Kind string

const (
	Text     Kind = "text"
	Int      Kind = "int"
	Float    Kind = "float"
	Bool     Kind = "bool"
	Date     Kind = "date"
	DateTime Kind = "datetime"
)

// DateLayout is the canonical text form of Date cells.
const DateLayout = "2006-01-02"

// Column describes one column of a Table.
type Column struct {
	Name     string
	Kind     Kind
	Nullable bool
}

// Row is a positional row aligned to Table.Columns.
type Row []any

// Table is an immutable tabular snapshot.
type Table struct {
	Name    string
	Columns []Column
	Rows    []Row

	index map[string]int
}

// New builds a Table and its column index. rows are used as given; callers
// hand over ownership.
func New(name string, cols []Column, rows []Row) Table {
	t := Table{Name: name, Columns: cols, Rows: rows}
	t.index = make(map[string]int, len(cols))
	for i, c := range cols {
		t.index[c.Name] = i
	}
	return t
}

// Empty returns a zero-row table with the given schema.
func Empty(name string, cols []Column) Table {
	return New(name, cols, []Row{})
}

// Len returns the number of rows.
func (t Table) Len() int { return len(t.Rows) }

// Index returns the position of col, or -1 when absent.
func (t Table) Index(col string) int {
	if t.index != nil {
		if i, ok := t.index[col]; ok {
			return i
		}
		return -1
	}
	for i, c := range t.Columns {
		if c.Name == col {
			return i
		}
	}
	return -1
}

// Has reports whether the table carries col.
func (t Table) Has(col string) bool { return t.Index(col) >= 0 }

// ColumnNames returns the ordered column names.
func (t Table) ColumnNames() []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Name
	}
	return out
}

// Value returns the cell at row i for col, or nil when col is absent.
func (t Table) Value(i int, col string) any {
	ix := t.Index(col)
	if ix < 0 || i < 0 || i >= len(t.Rows) || ix >= len(t.Rows[i]) {
		return nil
	}
	return t.Rows[i][ix]
}

// WithRows returns a table sharing this schema but holding rows.
func (t Table) WithRows(rows []Row) Table {
	return New(t.Name, t.Columns, rows)
}

// String renders a short description, handy in logs.
func (t Table) String() string {
	return fmt.Sprintf("%s(%d cols, %d rows)", t.Name, len(t.Columns), len(t.Rows))
}

// NullCells counts nil cells across the whole table.
func (t Table) NullCells() int {
	n := 0
	for _, r := range t.Rows {
		for _, v := range r {
			if v == nil {
				n++
			}
		}
	}
	return n
}

// Day truncates ts to a UTC calendar date.
func Day(ts time.Time) time.Time {
	y, m, d := ts.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
