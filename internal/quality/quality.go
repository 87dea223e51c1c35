// Package quality defines the error and warning taxonomy shared by the
// transform stages.
//
// Only SchemaError is fatal. ValidationWarning, ImputationGap and JoinOrphan
// are recovered locally by the stage that finds them and accumulated into the
// run report so the pipeline produces output with documented gaps.
package quality

import (
	"errors"
	"fmt"
)

// ErrSchema is matched by every *SchemaError via errors.Is.
var ErrSchema = errors.New("schema error")

// SchemaError reports a missing required table or a required column absent
// from an otherwise present table.
type SchemaError struct {
	Table  string
	Column string // empty when the whole table is missing
}

func (e *SchemaError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("schema: required table %q is missing", e.Table)
	}
	return fmt.Sprintf("schema: table %q is missing required column %q", e.Table, e.Column)
}

// Is lets errors.Is(err, ErrSchema) match.
func (e *SchemaError) Is(target error) bool { return target == ErrSchema }

// Warning kinds.
const (
	KindNull             = "unexpected_null"
	KindTypeMismatch     = "type_mismatch"
	KindOutOfRange       = "out_of_range"
	KindRule             = "rule_violation"
	KindReference        = "missing_reference"
	KindUnexpectedColumn = "unexpected_column"
)

// ValidationWarning aggregates per-row issues of one kind on one column.
// Type mismatches drop the row; every other kind keeps it.
type ValidationWarning struct {
	Table   string `json:"table"`
	Column  string `json:"column"`
	Kind    string `json:"kind"`
	Count   int    `json:"count"`
	Message string `json:"message,omitempty"`
}

func (w ValidationWarning) String() string {
	s := fmt.Sprintf("%s.%s: %s x%d", w.Table, w.Column, w.Kind, w.Count)
	if w.Message != "" {
		s += " (" + w.Message + ")"
	}
	return s
}

// ImputationGap records cells left null because neither the group mean nor
// the global mean was defined.
type ImputationGap struct {
	Table  string `json:"table"`
	Column string `json:"column"`
	Rows   []int  `json:"rows"` // row positions in the cleaned table
}

func (g ImputationGap) String() string {
	return fmt.Sprintf("%s.%s: %d cells left null", g.Table, g.Column, len(g.Rows))
}

// JoinOrphan counts rows excluded from the fact view by an inner join.
type JoinOrphan struct {
	Join  string `json:"join"` // e.g. "order_items->products"
	Count int    `json:"count"`
}

func (o JoinOrphan) String() string {
	return fmt.Sprintf("%s: %d orphans", o.Join, o.Count)
}
