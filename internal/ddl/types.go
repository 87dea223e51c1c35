package ddl

import (
	"github.com/Gerardo1909/ecommerce-reporting-etl/internal/table"
)

// ColumnDef describes a single column in a table definition.
//
// Fields:
//   - Name: logical column name (unquoted; quoting happens at render time)
//   - SQLType: target SQL type (e.g., TEXT, BIGINT, TIMESTAMPTZ)
//   - Nullable: whether NULL is allowed
//   - PrimaryKey: whether the column is part of the primary key
type ColumnDef struct {
	Name       string
	SQLType    string
	Nullable   bool
	PrimaryKey bool
}

// TableDef holds the fully-qualified table name (FQN) and an ordered list of
// columns. The FQN is expected in dotted form (e.g., "schema.table").
type TableDef struct {
	FQN     string
	Columns []ColumnDef
}

// FromColumns derives a TableDef from a table schema. mapType turns column
// kinds into SQL types; key columns become the primary key.
func FromColumns(fqn string, cols []table.Column, key []string, mapType func(table.Kind) string) TableDef {
	pk := make(map[string]bool, len(key))
	for _, k := range key {
		pk[k] = true
	}
	td := TableDef{FQN: fqn, Columns: make([]ColumnDef, len(cols))}
	for i, c := range cols {
		td.Columns[i] = ColumnDef{
			Name:       c.Name,
			SQLType:    mapType(c.Kind),
			Nullable:   c.Nullable && !pk[c.Name],
			PrimaryKey: pk[c.Name],
		}
	}
	return td
}
