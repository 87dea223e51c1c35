// Package schema holds the per-table contracts the pipeline validates and
// cleans against: columns with kinds and nullability, natural keys, foreign
// key references, range rules and the categorical columns compared by folded
// key.
//
// Contracts are JSON-serializable so a pipeline file may override the
// built-in ecommerce contracts table by table.
package schema

import (
	"sort"
	"strings"

	"github.com/Gerardo1909/ecommerce-reporting-etl/internal/table"
)

// Field describes one column of a contract.
type Field struct {
	Name string `json:"name"`
	Type string `json:"type"` // "text" | "int" | "float" | "bool" | "date" | "datetime"

	// Required means the column must exist in the raw extract. A missing
	// required column aborts the run.
	Required bool `json:"required,omitempty"`

	// Nullable means null cells are expected. Nulls in a non-nullable column
	// are reported as warnings; the row is kept.
	Nullable bool `json:"nullable,omitempty"`

	// Categorical text is trimmed by the cleaner and compared through its
	// folded key in joins and grouping.
	Categorical bool `json:"categorical,omitempty"`

	Layout string   `json:"layout,omitempty"` // date layout
	Truthy []string `json:"truthy,omitempty"` // bool parsing
	Falsy  []string `json:"falsy,omitempty"`

	Min          *float64 `json:"min,omitempty"`
	MinExclusive bool     `json:"min_exclusive,omitempty"`
	Max          *float64 `json:"max,omitempty"`

	// References names a foreign key target as "table.column".
	References string `json:"references,omitempty"`
}

// Kind returns the table kind this field coerces to.
func (f Field) Kind() table.Kind { return NormalizeKind(f.Type) }

// Ref splits References into table and column.
func (f Field) Ref() (tbl, col string, ok bool) {
	tbl, col, ok = strings.Cut(f.References, ".")
	if !ok || tbl == "" || col == "" {
		return "", "", false
	}
	return tbl, col, true
}

// Rule is a row-level check between two columns of the same row.
type Rule struct {
	// Kind is currently "lte": Left <= Right when both are non-null.
	Kind  string `json:"kind"`
	Left  string `json:"left"`
	Right string `json:"right"`
}

// Contract is the schema of one input table.
type Contract struct {
	Name string `json:"name"`

	// Required tables must be present in the extract; the run aborts without
	// them. Optional tables are passed through when present.
	Required bool `json:"required,omitempty"`

	Fields []Field `json:"fields"`

	// Key is the natural key used for de-duplication.
	Key []string `json:"key"`

	Rules []Rule `json:"rules,omitempty"`

	// HeaderMap maps raw header text to canonical column names.
	HeaderMap map[string]string `json:"header_map,omitempty"`
}

// Field looks up a field by column name.
func (c Contract) Field(name string) (Field, bool) {
	for _, f := range c.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Columns returns the output column schema of the contract, in order.
func (c Contract) Columns() []table.Column {
	out := make([]table.Column, len(c.Fields))
	for i, f := range c.Fields {
		out[i] = table.Column{Name: f.Name, Kind: f.Kind(), Nullable: f.Nullable}
	}
	return out
}

// Categorical lists the categorical column names.
func (c Contract) Categorical() []string {
	var out []string
	for _, f := range c.Fields {
		if f.Categorical {
			out = append(out, f.Name)
		}
	}
	return out
}

// Imputation designates a numeric column whose nulls are filled with the mean
// of the rows sharing the same GroupBy value.
type Imputation struct {
	Table   string `json:"table"`
	Column  string `json:"column"`
	GroupBy string `json:"group_by"`
}

// NormalizeKind maps schema type names, including database-ish aliases, onto
// table kinds.
//
//	"bigint", "int8", "integer"          → int
//	"numeric", "decimal", "double", "real" → float
//	"boolean"                             → bool
//	"timestamp", "timestamptz"            → datetime
//	"string", "varchar", ""               → text
func NormalizeKind(t string) table.Kind {
	switch strings.ToLower(strings.TrimSpace(t)) {
	case "bigint", "int8", "integer", "int4", "int2", "int":
		return table.Int
	case "float", "float64", "double", "real", "numeric", "decimal":
		return table.Float
	case "boolean", "bool":
		return table.Bool
	case "date":
		return table.Date
	case "datetime", "timestamp", "timestamptz":
		return table.DateTime
	default:
		return table.Text
	}
}

// Ordered returns the contract names in TableNames order followed by any
// extra contracts sorted by name.
func Ordered(contracts map[string]Contract) []string {
	out := make([]string, 0, len(contracts))
	seen := make(map[string]bool, len(contracts))
	for _, n := range TableNames {
		if _, ok := contracts[n]; ok {
			out = append(out, n)
			seen[n] = true
		}
	}
	var extra []string
	for n := range contracts {
		if !seen[n] {
			extra = append(extra, n)
		}
	}
	sort.Strings(extra)
	return append(out, extra...)
}
