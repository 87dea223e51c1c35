// Package cleaner repairs validated tables: it de-duplicates rows by natural
// key, imputes designated numeric columns from group means and trims the
// categorical text. Steps run in that fixed order. The cleaner never drops a
// row for quality reasons; folding duplicates is the only way the row count
// shrinks.
package cleaner

import (
	"log"

	"golang.org/x/sync/errgroup"

	"github.com/Gerardo1909/ecommerce-reporting-etl/internal/quality"
	"github.com/Gerardo1909/ecommerce-reporting-etl/internal/schema"
	"github.com/Gerardo1909/ecommerce-reporting-etl/internal/table"
)

// Result summarises one Clean call.
type Result struct {
	Table      string                  `json:"table"`
	RowsIn     int                     `json:"rows_in"`
	RowsOut    int                     `json:"rows_out"`
	Merged     int                     `json:"duplicates_merged"`
	Imputed    map[string]int          `json:"imputed,omitempty"`
	Normalized int                     `json:"cells_normalized"`
	Gaps       []quality.ImputationGap `json:"gaps,omitempty"`
}

// Options tune the cleaner. The zero value applies the default merge policy.
type Options struct {
	// DedupPolicy overrides the merge policy per table; see Dedup.
	DedupPolicy map[string]string
}

// Clean applies dedup, imputation and normalisation to t. imps entries for
// other tables are ignored. t is not modified.
func Clean(t table.Table, c schema.Contract, imps []schema.Imputation, opts Options) (table.Table, Result) {
	res := Result{Table: c.Name, RowsIn: t.Len()}

	out, merged := Dedup{Keys: c.Key, Policy: opts.DedupPolicy[c.Name]}.Apply(t)
	res.Merged = merged

	for _, imp := range imps {
		if imp.Table != c.Name {
			continue
		}
		var n int
		var gap *quality.ImputationGap
		out, n, gap = Impute(out, imp)
		if n > 0 {
			if res.Imputed == nil {
				res.Imputed = make(map[string]int)
			}
			res.Imputed[imp.Column] += n
		}
		if gap != nil {
			res.Gaps = append(res.Gaps, *gap)
		}
	}

	out, res.Normalized = Normalize(out, c.Categorical())
	res.RowsOut = out.Len()
	return out, res
}

// CleanAll cleans every contracted table concurrently. Each table is cleaned
// into its own output slot; results follow schema.Ordered.
func CleanAll(tables map[string]table.Table, contracts map[string]schema.Contract, imps []schema.Imputation, opts Options) (map[string]table.Table, []Result) {
	names := schema.Ordered(contracts)
	outs := make([]table.Table, len(names))
	results := make([]Result, len(names))

	var g errgroup.Group
	for i, n := range names {
		i := i
		t, ok := tables[n]
		if !ok {
			t = table.Empty(n, contracts[n].Columns())
		}
		c := contracts[n]
		g.Go(func() error {
			outs[i], results[i] = Clean(t, c, imps, opts)
			return nil
		})
	}
	_ = g.Wait() // Clean does not fail

	out := make(map[string]table.Table, len(names))
	for i, n := range names {
		out[n] = outs[i]
		r := results[i]
		log.Printf("cleaner: table=%s rows_in=%d rows_out=%d merged=%d imputed=%d normalized=%d gaps=%d",
			n, r.RowsIn, r.RowsOut, r.Merged, sum(r.Imputed), r.Normalized, len(r.Gaps))
	}
	return out, results
}

func sum(m map[string]int) int {
	n := 0
	for _, v := range m {
		n += v
	}
	return n
}
