package report

import (
	"sort"
	"time"

	"github.com/Gerardo1909/ecommerce-reporting-etl/internal/cleaner"
	"github.com/Gerardo1909/ecommerce-reporting-etl/internal/joiner"
	"github.com/Gerardo1909/ecommerce-reporting-etl/internal/table"
)

// PromotionUsageRecord is one row of the promotion usage report.
type PromotionUsageRecord struct {
	PromotionID         string
	OrdersWithPromotion int64
	EligibleOrders      int64
	UsageRate           float64
}

// orderSummary folds the facts of one order.
type orderSummary struct {
	date       time.Time
	promotion  string // folded
	products   map[string]struct{}
	categories map[string]struct{}
}

// PromotionUsage computes, for each promotion, the orders eligible for it and
// how many of those referenced it.
//
// An order is eligible when its date falls inside [start_date, end_date]
// (a null bound is open) and at least one of its items matches the
// promotion's product or category. A promotion without a target applies to
// every order. usage_rate is 0 when no order is eligible.
func PromotionUsage(v *joiner.View) []PromotionUsageRecord {
	orders := make(map[string]*orderSummary)
	keys := make([]string, 0)
	for _, f := range v.Facts {
		o, ok := orders[f.OrderKey]
		if !ok {
			o = &orderSummary{
				date:       f.OrderDate,
				promotion:  f.PromotionKey,
				products:   map[string]struct{}{},
				categories: map[string]struct{}{},
			}
			orders[f.OrderKey] = o
			keys = append(keys, f.OrderKey)
		}
		o.products[f.ProductKey] = struct{}{}
		o.categories[f.CategoryKey] = struct{}{}
	}
	sort.Strings(keys)

	p := v.Promotions
	ixID, ixStart, ixEnd := p.Index("promotion_id"), p.Index("start_date"), p.Index("end_date")
	ixProduct, ixCategory := p.Index("product_id"), p.Index("category_id")
	out := make([]PromotionUsageRecord, 0, p.Len())
	seen := make(map[string]bool, p.Len())
	for _, r := range p.Rows {
		id := cell(r, ixID)
		key := cleaner.Fold(id)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true

		start, hasStart := table.AsTime(cell(r, ixStart))
		end, hasEnd := table.AsTime(cell(r, ixEnd))
		product, category := cleaner.Fold(cell(r, ixProduct)), cleaner.Fold(cell(r, ixCategory))

		rec := PromotionUsageRecord{PromotionID: table.AsString(id)}
		for _, k := range keys {
			o := orders[k]
			if !inWindow(o.date, start, hasStart, end, hasEnd) || !targets(o, product, category) {
				continue
			}
			rec.EligibleOrders++
			if o.promotion == key {
				rec.OrdersWithPromotion++
			}
		}
		if rec.EligibleOrders > 0 {
			rec.UsageRate = float64(rec.OrdersWithPromotion) / float64(rec.EligibleOrders)
		}
		out = append(out, rec)
	}
	return out
}

func inWindow(d, start time.Time, hasStart bool, end time.Time, hasEnd bool) bool {
	if d.IsZero() {
		// An undated order only fits a fully open window.
		return !hasStart && !hasEnd
	}
	day := table.Day(d)
	if hasStart && day.Before(table.Day(start)) {
		return false
	}
	if hasEnd && day.After(table.Day(end)) {
		return false
	}
	return true
}

func targets(o *orderSummary, product, category string) bool {
	if product == "" && category == "" {
		return true
	}
	if product != "" {
		if _, ok := o.products[product]; ok {
			return true
		}
	}
	if category != "" {
		if _, ok := o.categories[category]; ok {
			return true
		}
	}
	return false
}

var PromotionUsageColumns = []table.Column{
	{Name: "promotion_id", Kind: table.Text},
	{Name: "orders_with_promotion", Kind: table.Int},
	{Name: "eligible_orders", Kind: table.Int},
	{Name: "usage_rate", Kind: table.Float},
}

func PromotionUsageTable(recs []PromotionUsageRecord) table.Table {
	rows := make([]table.Row, len(recs))
	for i, r := range recs {
		rows[i] = table.Row{r.PromotionID, r.OrdersWithPromotion, r.EligibleOrders, r.UsageRate}
	}
	return table.New(PromotionUsageName, PromotionUsageColumns, rows)
}
