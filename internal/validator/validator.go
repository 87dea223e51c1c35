// Package validator checks raw extracts against their table contracts and
// coerces the text cells into typed values.
//
// Rows with a cell that cannot be coerced to its column kind are dropped and
// counted. Nulls in non-nullable columns, range violations and row-rule
// violations are counted as warnings and the row is kept. A missing required
// column is the only fatal condition.
package validator

import (
	"fmt"
	"log"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Gerardo1909/ecommerce-reporting-etl/internal/quality"
	"github.com/Gerardo1909/ecommerce-reporting-etl/internal/schema"
	"github.com/Gerardo1909/ecommerce-reporting-etl/internal/table"
)

// Options tune coercion.
type Options struct {
	// DateLayout is tried after a field's own layout and before the
	// built-in fallbacks.
	DateLayout string

	// Reject, when set, receives every dropped row.
	Reject func(RejectedRow)
}

// RejectedRow describes a row dropped because of an uncoercible cell.
type RejectedRow struct {
	Table  string
	Line   int // 1-based data row position in the raw table
	Column string
	Value  string
	Reason string
}

// ColumnStats are the per-column counters of one validation.
type ColumnStats struct {
	TypeMismatches  int `json:"type_mismatches"`
	UnexpectedNulls int `json:"unexpected_nulls"`
	OutOfRange      int `json:"out_of_range,omitempty"`
}

// Result is the validation report of one table.
type Result struct {
	Table       string                      `json:"table"`
	RowsIn      int                         `json:"rows_in"`
	RowsDropped int                         `json:"rows_dropped"`
	Columns     map[string]ColumnStats      `json:"columns"`
	Warnings    []quality.ValidationWarning `json:"warnings,omitempty"`
}

// Validate checks raw against c and returns the typed table. The output
// columns follow the contract order; optional contract columns absent from
// raw are materialised as nulls. raw is not modified.
func Validate(raw table.Table, c schema.Contract, opts Options) (table.Table, Result, error) {
	res := Result{Table: c.Name, RowsIn: raw.Len(), Columns: make(map[string]ColumnStats, len(c.Fields))}

	// Resolve raw header names (through the contract header map) to positions.
	src := make(map[string]int, len(raw.Columns))
	for i, col := range raw.Columns {
		name := col.Name
		if m, ok := c.HeaderMap[name]; ok && m != "" {
			name = m
		}
		if _, dup := src[name]; !dup {
			src[name] = i
		}
	}

	plans := make([]fieldPlan, len(c.Fields))
	for i, f := range c.Fields {
		ix, ok := src[f.Name]
		if !ok {
			if f.Required {
				return table.Table{}, res, &quality.SchemaError{Table: c.Name, Column: f.Name}
			}
			ix = -1
		}
		plans[i] = compileField(f, ix, opts.DateLayout)
	}

	for _, col := range raw.Columns {
		name := col.Name
		if m, ok := c.HeaderMap[name]; ok && m != "" {
			name = m
		}
		if _, known := c.Field(name); !known {
			res.Warnings = append(res.Warnings, quality.ValidationWarning{
				Table: c.Name, Column: name, Kind: quality.KindUnexpectedColumn, Count: 1,
				Message: "column ignored",
			})
		}
	}

	rules := compileRules(c)
	stats := make([]ColumnStats, len(plans))
	ruleHits := make([]int, len(rules))

	out := make([]table.Row, 0, raw.Len())
rows:
	for n, r := range raw.Rows {
		row := make(table.Row, len(plans))
		for i := range plans {
			p := &plans[i]
			var rawVal any
			if p.src >= 0 && p.src < len(r) {
				rawVal = r[p.src]
			}
			v, ok := coerceCell(rawVal, p)
			if !ok {
				stats[i].TypeMismatches++
				res.RowsDropped++
				if opts.Reject != nil {
					opts.Reject(RejectedRow{
						Table: c.Name, Line: n + 1, Column: p.field.Name,
						Value: table.AsString(rawVal), Reason: fmt.Sprintf("not a valid %s", p.kind),
					})
				}
				continue rows
			}
			row[i] = v
		}

		// Row survives coercion; count the non-fatal issues.
		for i := range plans {
			p := &plans[i]
			v := row[i]
			if v == nil {
				if !p.field.Nullable {
					stats[i].UnexpectedNulls++
				}
				continue
			}
			if outOfRange(p.field, v) {
				stats[i].OutOfRange++
			}
		}
		for k, rl := range rules {
			if rl.violated(row) {
				ruleHits[k]++
			}
		}
		out = append(out, row)
	}

	for i, p := range plans {
		st := stats[i]
		res.Columns[p.field.Name] = st
		if st.TypeMismatches > 0 {
			res.Warnings = append(res.Warnings, quality.ValidationWarning{
				Table: c.Name, Column: p.field.Name, Kind: quality.KindTypeMismatch, Count: st.TypeMismatches,
				Message: "rows dropped",
			})
		}
		if st.UnexpectedNulls > 0 {
			res.Warnings = append(res.Warnings, quality.ValidationWarning{
				Table: c.Name, Column: p.field.Name, Kind: quality.KindNull, Count: st.UnexpectedNulls,
			})
		}
		if st.OutOfRange > 0 {
			res.Warnings = append(res.Warnings, quality.ValidationWarning{
				Table: c.Name, Column: p.field.Name, Kind: quality.KindOutOfRange, Count: st.OutOfRange,
				Message: rangeText(p.field),
			})
		}
	}
	for k, rl := range rules {
		if ruleHits[k] > 0 {
			res.Warnings = append(res.Warnings, quality.ValidationWarning{
				Table: c.Name, Column: rl.column, Kind: quality.KindRule, Count: ruleHits[k],
				Message: rl.text,
			})
		}
	}

	// Retained nulls make the column nullable in the output schema.
	cols := c.Columns()
	for i := range plans {
		if stats[i].UnexpectedNulls > 0 {
			cols[i].Nullable = true
		}
	}
	return table.New(c.Name, cols, out), res, nil
}

// ValidateAll validates every contracted table concurrently. A required table
// absent from raw is a *quality.SchemaError. Optional tables absent from raw
// come back empty with the contract schema. Results follow schema.Ordered.
func ValidateAll(raw map[string]table.Table, contracts map[string]schema.Contract, opts Options) (map[string]table.Table, []Result, error) {
	names := schema.Ordered(contracts)
	for _, n := range names {
		if _, ok := raw[n]; !ok && contracts[n].Required {
			return nil, nil, &quality.SchemaError{Table: n}
		}
	}

	tables := make([]table.Table, len(names))
	results := make([]Result, len(names))
	var g errgroup.Group
	for i, n := range names {
		i := i
		c := contracts[n]
		in, ok := raw[n]
		if !ok {
			tables[i] = table.Empty(n, c.Columns())
			results[i] = Result{Table: n, Columns: map[string]ColumnStats{}}
			continue
		}
		g.Go(func() error {
			t, res, err := Validate(in, c, opts)
			if err != nil {
				return err
			}
			tables[i], results[i] = t, res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	out := make(map[string]table.Table, len(names))
	for i, n := range names {
		out[n] = tables[i]
		r := results[i]
		log.Printf("validator: table=%s rows_in=%d rows_dropped=%d warnings=%d", n, r.RowsIn, r.RowsDropped, len(r.Warnings))
	}
	return out, results, nil
}

// coerceCell converts one raw cell. nil and blank text are null.
func coerceCell(v any, p *fieldPlan) (any, bool) {
	switch t := v.(type) {
	case nil:
		return nil, true
	case string:
		s := t
		if hasEdgeSpace(s) {
			s = strings.TrimSpace(s)
		}
		if s == "" {
			return nil, true
		}
		if p.kind == table.Text {
			// Text keeps its raw form; the cleaner owns trimming.
			return t, true
		}
		return p.coerce(s)
	}
	return coerceTyped(v, p.kind)
}

// coerceTyped accepts cells that already carry a Go type, as produced by
// typed sources and by re-validating validated output.
func coerceTyped(v any, k table.Kind) (any, bool) {
	switch k {
	case table.Text:
		return table.AsString(v), true
	case table.Int:
		i, ok := table.AsInt(v)
		return i, ok
	case table.Float:
		f, ok := table.AsFloat(v)
		return f, ok
	case table.Bool:
		b, ok := v.(bool)
		return b, ok
	case table.Date:
		ts, ok := v.(time.Time)
		if !ok {
			return nil, false
		}
		return table.Day(ts), true
	case table.DateTime:
		ts, ok := v.(time.Time)
		if !ok {
			return nil, false
		}
		return ts.UTC(), true
	}
	return nil, false
}

func outOfRange(f schema.Field, v any) bool {
	x, ok := table.AsFloat(v)
	if !ok {
		return false
	}
	if f.Min != nil {
		if x < *f.Min || (f.MinExclusive && x == *f.Min) {
			return true
		}
	}
	return f.Max != nil && x > *f.Max
}

func rangeText(f schema.Field) string {
	var parts []string
	if f.Min != nil {
		op := ">="
		if f.MinExclusive {
			op = ">"
		}
		parts = append(parts, fmt.Sprintf("%s %s %g", f.Name, op, *f.Min))
	}
	if f.Max != nil {
		parts = append(parts, fmt.Sprintf("%s <= %g", f.Name, *f.Max))
	}
	return "expected " + strings.Join(parts, " and ")
}

type compiledRule struct {
	left, right int
	column      string
	text        string
}

func compileRules(c schema.Contract) []compiledRule {
	var out []compiledRule
	for _, r := range c.Rules {
		if r.Kind != "lte" {
			continue
		}
		l, r2 := -1, -1
		for i, f := range c.Fields {
			switch f.Name {
			case r.Left:
				l = i
			case r.Right:
				r2 = i
			}
		}
		if l < 0 || r2 < 0 {
			continue
		}
		out = append(out, compiledRule{left: l, right: r2, column: r.Left, text: r.Left + " <= " + r.Right})
	}
	return out
}

// violated reports Left > Right when both cells are non-null.
func (r compiledRule) violated(row table.Row) bool {
	a, b := row[r.left], row[r.right]
	if a == nil || b == nil {
		return false
	}
	if ta, ok := a.(time.Time); ok {
		tb, ok := b.(time.Time)
		return ok && ta.After(tb)
	}
	fa, okA := table.AsFloat(a)
	fb, okB := table.AsFloat(b)
	return okA && okB && fa > fb
}
