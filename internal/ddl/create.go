// Package ddl defines a small, backend-agnostic model for SQL DDL and a
// renderer for CREATE TABLE statements parameterised by dialect syntax.
//
// Backends (internal/storage/...) supply a Syntax with their identifier
// quoting and existence guard; everything else is shared.
package ddl

import (
	"fmt"
	"strings"
)

// Syntax captures the dialect differences that matter for CREATE TABLE.
type Syntax struct {
	// Name prefixes error messages, e.g. "postgres ddl".
	Name string

	// Quote quotes one identifier segment.
	Quote func(string) string

	// Guard wraps the bare CREATE TABLE statement for idempotence. When nil,
	// "CREATE TABLE IF NOT EXISTS" is used.
	Guard func(quotedFQN, create string) string
}

// QuoteFQN quotes every non-empty dotted segment of fqn.
func (s Syntax) QuoteFQN(fqn string) string {
	parts := strings.Split(fqn, ".")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, s.Quote(p))
	}
	return strings.Join(out, ".")
}

// BuildCreateTableSQL renders an idempotent CREATE TABLE statement.
//
// Rules:
//
//   - t.FQN must be non-empty.
//
//   - Each column must have a non-empty Name and SQLType.
//
//   - A column is rendered as:
//
//     <Name> <SQLType> [NOT NULL]
//
//     where NOT NULL is added when Nullable == false or the column is part
//     of the primary key.
//
//   - Primary key columns are rendered as a separate PRIMARY KEY clause in
//     declaration order.
func BuildCreateTableSQL(t TableDef, s Syntax) (string, error) {
	name := s.Name
	if name == "" {
		name = "ddl"
	}
	fqn := strings.TrimSpace(t.FQN)
	if fqn == "" {
		return "", fmt.Errorf("%s: table FQN must not be empty", name)
	}
	if len(t.Columns) == 0 {
		return "", fmt.Errorf("%s: at least one column is required", name)
	}

	cols := make([]string, 0, len(t.Columns)+1)
	pks := make([]string, 0, len(t.Columns))
	for _, c := range t.Columns {
		col := strings.TrimSpace(c.Name)
		if col == "" {
			return "", fmt.Errorf("%s: column with empty name in table %s", name, fqn)
		}
		typ := strings.TrimSpace(c.SQLType)
		if typ == "" {
			return "", fmt.Errorf("%s: column %s missing SQLType", name, col)
		}

		var sb strings.Builder
		sb.WriteString(s.Quote(col))
		sb.WriteByte(' ')
		sb.WriteString(typ)
		if !c.Nullable || c.PrimaryKey {
			sb.WriteString(" NOT NULL")
		}
		cols = append(cols, sb.String())

		if c.PrimaryKey {
			pks = append(pks, s.Quote(col))
		}
	}
	if len(pks) > 0 {
		cols = append(cols, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(pks, ", ")))
	}

	quoted := s.QuoteFQN(fqn)
	body := fmt.Sprintf("%s (\n  %s\n)", quoted, strings.Join(cols, ",\n  "))
	if s.Guard != nil {
		return s.Guard(quoted, "CREATE TABLE "+body), nil
	}
	return "CREATE TABLE IF NOT EXISTS " + body + ";", nil
}
