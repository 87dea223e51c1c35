package report

import (
	"sort"

	"github.com/Gerardo1909/ecommerce-reporting-etl/internal/joiner"
	"github.com/Gerardo1909/ecommerce-reporting-etl/internal/table"
)

// TopProductRecord is one (product, month) row of the monthly top products report.
type TopProductRecord struct {
	ProductID string
	Month     string // YYYY-MM
	UnitsSold int64
	Rank      int
}

// TopProducts sums units per product and calendar month of the order date
// and ranks products within each month by units descending, ties by product
// id. Facts without an order date are skipped. Months come out ascending.
func TopProducts(v *joiner.View, opts Options) []TopProductRecord {
	type key struct{ product, month string }
	units := make(map[key]int64)
	display := make(map[string]string)
	for _, f := range v.Facts {
		if f.OrderDate.IsZero() {
			continue
		}
		k := key{f.ProductKey, f.OrderDate.UTC().Format(MonthLayout)}
		units[k] += f.Quantity
		if _, ok := display[f.ProductKey]; !ok {
			display[f.ProductKey] = f.ProductID
		}
	}

	recs := make([]TopProductRecord, 0, len(units))
	for k, n := range units {
		recs = append(recs, TopProductRecord{ProductID: display[k.product], Month: k.month, UnitsSold: n})
	}
	sort.Slice(recs, func(i, j int) bool {
		a, b := recs[i], recs[j]
		if a.Month != b.Month {
			return a.Month < b.Month
		}
		if a.UnitsSold != b.UnitsSold {
			return a.UnitsSold > b.UnitsSold
		}
		return a.ProductID < b.ProductID
	})

	out := recs[:0]
	rank, month := 0, ""
	for _, r := range recs {
		if r.Month != month {
			month, rank = r.Month, 0
		}
		rank++
		if opts.ProductsPerMonth > 0 && rank > opts.ProductsPerMonth {
			continue
		}
		r.Rank = rank
		out = append(out, r)
	}
	return out
}

var TopProductsColumns = []table.Column{
	{Name: "product_id", Kind: table.Text},
	{Name: "month", Kind: table.Text},
	{Name: "units_sold", Kind: table.Int},
	{Name: "rank_in_month", Kind: table.Int},
}

func TopProductsTable(recs []TopProductRecord) table.Table {
	rows := make([]table.Row, len(recs))
	for i, r := range recs {
		rows[i] = table.Row{r.ProductID, r.Month, r.UnitsSold, int64(r.Rank)}
	}
	return table.New(TopProductsName, TopProductsColumns, rows)
}
