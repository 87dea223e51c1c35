package validator

import (
	"fmt"
	"log"

	"github.com/Gerardo1909/ecommerce-reporting-etl/internal/cleaner"
	"github.com/Gerardo1909/ecommerce-reporting-etl/internal/quality"
	"github.com/Gerardo1909/ecommerce-reporting-etl/internal/schema"
	"github.com/Gerardo1909/ecommerce-reporting-etl/internal/table"
)

// CheckReferences counts, per foreign key, the non-null values with no
// matching row in the referenced table. Values are compared by folded key.
// Rows are never removed here; the joiner drops orphans it cannot use.
// References to tables that are absent or empty are skipped: an optional
// table missing from the extract says nothing about its keys.
func CheckReferences(tables map[string]table.Table, contracts map[string]schema.Contract) []quality.ValidationWarning {
	keys := map[string]map[string]struct{}{} // "table.column" → folded keys
	lookup := func(tbl, col string) (map[string]struct{}, bool) {
		id := tbl + "." + col
		if s, ok := keys[id]; ok {
			return s, true
		}
		t, ok := tables[tbl]
		if !ok || !t.Has(col) || t.Len() == 0 {
			return nil, false
		}
		ix := t.Index(col)
		s := make(map[string]struct{}, t.Len())
		for _, r := range t.Rows {
			if k := cleaner.Fold(r[ix]); k != "" {
				s[k] = struct{}{}
			}
		}
		keys[id] = s
		return s, true
	}

	var out []quality.ValidationWarning
	for _, name := range schema.Ordered(contracts) {
		t, ok := tables[name]
		if !ok {
			continue
		}
		for _, f := range contracts[name].Fields {
			tbl, col, ok := f.Ref()
			if !ok {
				continue
			}
			ix := t.Index(f.Name)
			if ix < 0 {
				continue
			}
			target, ok := lookup(tbl, col)
			if !ok {
				continue
			}
			missing := 0
			for _, r := range t.Rows {
				k := cleaner.Fold(r[ix])
				if k == "" {
					continue
				}
				if _, hit := target[k]; !hit {
					missing++
				}
			}
			if missing == 0 {
				continue
			}
			w := quality.ValidationWarning{
				Table: name, Column: f.Name, Kind: quality.KindReference, Count: missing,
				Message: fmt.Sprintf("no match in %s", f.References),
			}
			log.Printf("validator: %s", w)
			out = append(out, w)
		}
	}
	return out
}
