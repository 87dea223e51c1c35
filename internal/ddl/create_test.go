package ddl

import (
	"strings"
	"testing"

	"github.com/Gerardo1909/ecommerce-reporting-etl/internal/table"
)

var dq = Syntax{Name: "test ddl", Quote: func(s string) string { return `"` + strings.ReplaceAll(s, `"`, `""`) + `"` }}

// TestBuildCreateTableSQL verifies the rendered statement and the error cases.
func TestBuildCreateTableSQL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		def         TableDef
		syntax      Syntax
		wantSQL     string
		errContains string
	}{
		{
			name:        "empty FQN returns error",
			def:         TableDef{Columns: []ColumnDef{{Name: "id", SQLType: "INT"}}},
			syntax:      dq,
			errContains: "test ddl: table FQN must not be empty",
		},
		{
			name:        "no columns returns error",
			def:         TableDef{FQN: "public.t"},
			syntax:      dq,
			errContains: "at least one column is required",
		},
		{
			name:        "column with empty name returns error",
			def:         TableDef{FQN: "t", Columns: []ColumnDef{{SQLType: "INT"}}},
			syntax:      dq,
			errContains: "column with empty name",
		},
		{
			name:        "column with empty type returns error",
			def:         TableDef{FQN: "t", Columns: []ColumnDef{{Name: "id"}}},
			syntax:      dq,
			errContains: "missing SQLType",
		},
		{
			name: "nullable, not null and primary key",
			def: TableDef{FQN: "public.t", Columns: []ColumnDef{
				{Name: "id", SQLType: "TEXT", PrimaryKey: true, Nullable: true},
				{Name: "n", SQLType: "BIGINT"},
				{Name: `we"ird`, SQLType: "TEXT", Nullable: true},
			}},
			syntax: dq,
			wantSQL: "CREATE TABLE IF NOT EXISTS \"public\".\"t\" (\n" +
				"  \"id\" TEXT NOT NULL,\n" +
				"  \"n\" BIGINT NOT NULL,\n" +
				"  \"we\"\"ird\" TEXT,\n" +
				"  PRIMARY KEY (\"id\")\n);",
		},
		{
			name: "guarded dialect",
			def:  TableDef{FQN: "t", Columns: []ColumnDef{{Name: "id", SQLType: "INT", Nullable: true}}},
			syntax: Syntax{
				Quote: func(s string) string { return "[" + s + "]" },
				Guard: func(q, create string) string { return "IF OBJECT_ID(N'" + q + "') IS NULL " + create + ";" },
			},
			wantSQL: "IF OBJECT_ID(N'[t]') IS NULL CREATE TABLE [t] (\n  [id] INT\n);",
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := BuildCreateTableSQL(tc.def, tc.syntax)
			if tc.errContains != "" {
				if err == nil || !strings.Contains(err.Error(), tc.errContains) {
					t.Fatalf("err=%v want containing %q", err, tc.errContains)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.wantSQL {
				t.Fatalf("SQL mismatch\n got: %q\nwant: %q", got, tc.wantSQL)
			}
		})
	}
}

func TestFromColumns(t *testing.T) {
	t.Parallel()

	cols := []table.Column{
		{Name: "order_id", Kind: table.Text},
		{Name: "product_id", Kind: table.Text, Nullable: true},
		{Name: "quantity", Kind: table.Int, Nullable: true},
	}
	td := FromColumns("order_items", cols, []string{"order_id", "product_id"}, func(k table.Kind) string {
		return strings.ToUpper(string(k))
	})
	want := []ColumnDef{
		{Name: "order_id", SQLType: "TEXT", PrimaryKey: true},
		{Name: "product_id", SQLType: "TEXT", PrimaryKey: true},
		{Name: "quantity", SQLType: "INT", Nullable: true},
	}
	if td.FQN != "order_items" || len(td.Columns) != len(want) {
		t.Fatalf("td=%+v", td)
	}
	for i := range want {
		if td.Columns[i] != want[i] {
			t.Errorf("column %d = %+v want %+v", i, td.Columns[i], want[i])
		}
	}
}
