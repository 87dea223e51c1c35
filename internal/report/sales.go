package report

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/Gerardo1909/ecommerce-reporting-etl/internal/cleaner"
	"github.com/Gerardo1909/ecommerce-reporting-etl/internal/joiner"
	"github.com/Gerardo1909/ecommerce-reporting-etl/internal/table"
)

// MonthlySalesRecord aggregates the facts of one calendar month.
type MonthlySalesRecord struct {
	Month         string
	Orders        int64
	Units         int64
	Revenue       decimal.Decimal
	AverageTicket decimal.Decimal
}

// MonthlySales groups facts by month of the order date. Revenue is rounded to
// cents; the average ticket is revenue per distinct order.
func MonthlySales(v *joiner.View) []MonthlySalesRecord {
	type acc struct {
		orders  map[string]struct{}
		units   int64
		revenue decimal.Decimal
	}
	months := make(map[string]*acc)
	for _, f := range v.Facts {
		if f.OrderDate.IsZero() {
			continue
		}
		m := f.OrderDate.UTC().Format(MonthLayout)
		a, ok := months[m]
		if !ok {
			a = &acc{orders: map[string]struct{}{}}
			months[m] = a
		}
		a.orders[f.OrderKey] = struct{}{}
		a.units += f.Quantity
		a.revenue = a.revenue.Add(factAmount(f))
	}

	out := make([]MonthlySalesRecord, 0, len(months))
	for m, a := range months {
		n := int64(len(a.orders))
		rec := MonthlySalesRecord{Month: m, Orders: n, Units: a.units, Revenue: a.revenue.Round(2)}
		if n > 0 {
			rec.AverageTicket = a.revenue.Div(decimal.NewFromInt(n)).Round(2)
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out
}

var MonthlySalesColumns = []table.Column{
	{Name: "month", Kind: table.Text},
	{Name: "orders", Kind: table.Int},
	{Name: "units", Kind: table.Int},
	{Name: "revenue", Kind: table.Float},
	{Name: "average_ticket", Kind: table.Float},
}

func MonthlySalesTable(recs []MonthlySalesRecord) table.Table {
	rows := make([]table.Row, len(recs))
	for i, r := range recs {
		rows[i] = table.Row{r.Month, r.Orders, r.Units, r.Revenue.InexactFloat64(), r.AverageTicket.InexactFloat64()}
	}
	return table.New(MonthlySalesName, MonthlySalesColumns, rows)
}

// StatusFunnelRecord counts orders in one status.
type StatusFunnelRecord struct {
	Status           string
	Orders           int64
	Share            float64
	CancellationRate float64
	DeliveryRate     float64
}

// Status keys recognised by the funnel rates.
var (
	cancelledStatuses = map[string]bool{"cancelled": true, "canceled": true}
	deliveredStatuses = map[string]bool{"delivered": true}
)

// StatusFunnel counts every cleaned order by folded status (null status
// counts as "unknown"). The cancellation and delivery rates over all orders
// are repeated on each row so the report stays flat. Rows are sorted by
// orders descending, then status.
func StatusFunnel(orders table.Table) []StatusFunnelRecord {
	ix := orders.Index("status")
	counts := make(map[string]int64)
	display := make(map[string]string)
	var total, cancelled, delivered int64
	for _, r := range orders.Rows {
		var v any
		if ix >= 0 {
			v = r[ix]
		}
		k := cleaner.Fold(v)
		if k == "" {
			k = "unknown"
		}
		if _, ok := display[k]; !ok {
			if s := table.AsString(v); s != "" {
				display[k] = s
			} else {
				display[k] = k
			}
		}
		counts[k]++
		total++
		if cancelledStatuses[k] {
			cancelled++
		}
		if deliveredStatuses[k] {
			delivered++
		}
	}
	if total == 0 {
		return nil
	}

	cancelRate := float64(cancelled) / float64(total)
	deliverRate := float64(delivered) / float64(total)
	out := make([]StatusFunnelRecord, 0, len(counts))
	for k, n := range counts {
		out = append(out, StatusFunnelRecord{
			Status:           display[k],
			Orders:           n,
			Share:            float64(n) / float64(total),
			CancellationRate: cancelRate,
			DeliveryRate:     deliverRate,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Orders != out[j].Orders {
			return out[i].Orders > out[j].Orders
		}
		return out[i].Status < out[j].Status
	})
	return out
}

var StatusFunnelColumns = []table.Column{
	{Name: "status", Kind: table.Text},
	{Name: "orders", Kind: table.Int},
	{Name: "share", Kind: table.Float},
	{Name: "cancellation_rate", Kind: table.Float},
	{Name: "delivery_rate", Kind: table.Float},
}

func StatusFunnelTable(recs []StatusFunnelRecord) table.Table {
	rows := make([]table.Row, len(recs))
	for i, r := range recs {
		rows[i] = table.Row{r.Status, r.Orders, r.Share, r.CancellationRate, r.DeliveryRate}
	}
	return table.New(StatusFunnelName, StatusFunnelColumns, rows)
}

// BacklogRecord is the in-progress backlog of one order month.
type BacklogRecord struct {
	Month  string
	Orders int64
	Value  decimal.Decimal // sum of total_amount, nulls skipped
}

var inProgressStatuses = map[string]bool{"pending": true, "processing": true, "shipped": true}

// Backlog groups pending, processing and shipped orders by order month.
// Undated orders are left out. Sorted by month.
func Backlog(orders table.Table) []BacklogRecord {
	ixStatus, ixDate, ixTotal := orders.Index("status"), orders.Index("order_date"), orders.Index("total_amount")
	if ixStatus < 0 || ixDate < 0 {
		return nil
	}
	months := make(map[string]*BacklogRecord)
	for _, r := range orders.Rows {
		if !inProgressStatuses[cleaner.Fold(r[ixStatus])] {
			continue
		}
		ts, ok := table.AsTime(r[ixDate])
		if !ok {
			continue
		}
		m := ts.UTC().Format(MonthLayout)
		b, ok := months[m]
		if !ok {
			b = &BacklogRecord{Month: m}
			months[m] = b
		}
		b.Orders++
		if ixTotal >= 0 {
			if x, ok := table.AsFloat(r[ixTotal]); ok {
				b.Value = b.Value.Add(decimal.NewFromFloat(x))
			}
		}
	}
	out := make([]BacklogRecord, 0, len(months))
	for _, b := range months {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out
}

var BacklogColumns = []table.Column{
	{Name: "month", Kind: table.Text},
	{Name: "backlog_orders", Kind: table.Int},
	{Name: "backlog_value", Kind: table.Float},
}

func BacklogTable(recs []BacklogRecord) table.Table {
	rows := make([]table.Row, len(recs))
	for i, r := range recs {
		rows[i] = table.Row{r.Month, r.Orders, r.Value.Round(2).InexactFloat64()}
	}
	return table.New(BacklogName, BacklogColumns, rows)
}
