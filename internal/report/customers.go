package report

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/Gerardo1909/ecommerce-reporting-etl/internal/joiner"
	"github.com/Gerardo1909/ecommerce-reporting-etl/internal/table"
)

// TopCustomerRecord is one row of the top customers report.
type TopCustomerRecord struct {
	CustomerID      string
	TotalSpend      decimal.Decimal
	CumulativeShare float64
	IsTop           bool
}

// Signal compares the top slice's spend share with the expected band.
type Signal struct {
	TopCustomers int     `json:"top_customers"`
	Share        float64 `json:"share"`
	BandLow      float64 `json:"band_low"`
	BandHigh     float64 `json:"band_high"`
	WithinBand   bool    `json:"within_band"`
}

// TopCustomers ranks customers of the fact view by total spend
// (quantity × effective unit price), descending, ties by customer id. The
// first max(1, floor(n × TopFraction)) customers are flagged. When total spend
// is zero every cumulative share is zero.
func TopCustomers(v *joiner.View, opts Options) ([]TopCustomerRecord, Signal) {
	opts = opts.withDefaults()
	sig := Signal{BandLow: opts.BandLow, BandHigh: opts.BandHigh}

	spend := make(map[string]decimal.Decimal)
	display := make(map[string]string)
	for _, f := range v.Facts {
		spend[f.CustomerKey] = spend[f.CustomerKey].Add(factAmount(f))
		if _, ok := display[f.CustomerKey]; !ok {
			display[f.CustomerKey] = f.CustomerID
		}
	}
	if len(spend) == 0 {
		return nil, sig
	}

	recs := make([]TopCustomerRecord, 0, len(spend))
	total := decimal.Zero
	for k, s := range spend {
		recs = append(recs, TopCustomerRecord{CustomerID: display[k], TotalSpend: s})
		total = total.Add(s)
	}
	sort.Slice(recs, func(i, j int) bool {
		if c := recs[i].TotalSpend.Cmp(recs[j].TotalSpend); c != 0 {
			return c > 0
		}
		return recs[i].CustomerID < recs[j].CustomerID
	})

	top := int(float64(len(recs)) * opts.TopFraction)
	if top < 1 {
		top = 1
	}
	running := decimal.Zero
	for i := range recs {
		running = running.Add(recs[i].TotalSpend)
		if total.IsPositive() {
			recs[i].CumulativeShare = running.Div(total).InexactFloat64()
		}
		recs[i].IsTop = i < top
	}

	sig.TopCustomers = top
	sig.Share = recs[top-1].CumulativeShare
	sig.WithinBand = sig.Share >= sig.BandLow && sig.Share <= sig.BandHigh
	return recs, sig
}

// TopCustomersColumns is the schema of the top customers report.
var TopCustomersColumns = []table.Column{
	{Name: "customer_id", Kind: table.Text},
	{Name: "total_spend", Kind: table.Float},
	{Name: "cumulative_share", Kind: table.Float},
	{Name: "is_top_20_percent", Kind: table.Bool},
}

func TopCustomersTable(recs []TopCustomerRecord) table.Table {
	rows := make([]table.Row, len(recs))
	for i, r := range recs {
		rows[i] = table.Row{r.CustomerID, r.TotalSpend.InexactFloat64(), r.CumulativeShare, r.IsTop}
	}
	return table.New(TopCustomersName, TopCustomersColumns, rows)
}

// RecurringCustomerRecord is a customer with repeat orders.
type RecurringCustomerRecord struct {
	CustomerID    string
	Orders        int64
	TotalSpend    decimal.Decimal
	AverageTicket decimal.Decimal
}

// RecurringCustomers lists customers with at least opts.RecurringMinOrders
// distinct orders among the facts, by orders descending, spend descending,
// then customer id.
func RecurringCustomers(v *joiner.View, opts Options) []RecurringCustomerRecord {
	opts = opts.withDefaults()
	type acc struct {
		id     string
		orders map[string]struct{}
		spend  decimal.Decimal
	}
	byCustomer := make(map[string]*acc)
	for _, f := range v.Facts {
		a, ok := byCustomer[f.CustomerKey]
		if !ok {
			a = &acc{id: f.CustomerID, orders: map[string]struct{}{}}
			byCustomer[f.CustomerKey] = a
		}
		a.orders[f.OrderKey] = struct{}{}
		a.spend = a.spend.Add(factAmount(f))
	}

	var out []RecurringCustomerRecord
	for _, a := range byCustomer {
		n := int64(len(a.orders))
		if n < int64(opts.RecurringMinOrders) {
			continue
		}
		out = append(out, RecurringCustomerRecord{
			CustomerID:    a.id,
			Orders:        n,
			TotalSpend:    a.spend.Round(2),
			AverageTicket: a.spend.Div(decimal.NewFromInt(n)).Round(2),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Orders != b.Orders {
			return a.Orders > b.Orders
		}
		if c := a.TotalSpend.Cmp(b.TotalSpend); c != 0 {
			return c > 0
		}
		return a.CustomerID < b.CustomerID
	})
	return out
}

var RecurringCustomersColumns = []table.Column{
	{Name: "customer_id", Kind: table.Text},
	{Name: "orders", Kind: table.Int},
	{Name: "total_spend", Kind: table.Float},
	{Name: "average_ticket", Kind: table.Float},
}

func RecurringCustomersTable(recs []RecurringCustomerRecord) table.Table {
	rows := make([]table.Row, len(recs))
	for i, r := range recs {
		rows[i] = table.Row{r.CustomerID, r.Orders, r.TotalSpend.InexactFloat64(), r.AverageTicket.InexactFloat64()}
	}
	return table.New(RecurringCustomersName, RecurringCustomersColumns, rows)
}

// AverageTicketRecord is revenue per distinct order over all facts.
type AverageTicketRecord struct {
	Orders        int64
	Revenue       decimal.Decimal
	AverageTicket decimal.Decimal
}

// AverageTicket returns one record, or nothing without facts.
func AverageTicket(v *joiner.View) []AverageTicketRecord {
	if len(v.Facts) == 0 {
		return nil
	}
	orders := make(map[string]struct{})
	revenue := decimal.Zero
	for _, f := range v.Facts {
		orders[f.OrderKey] = struct{}{}
		revenue = revenue.Add(factAmount(f))
	}
	n := int64(len(orders))
	return []AverageTicketRecord{{
		Orders:        n,
		Revenue:       revenue.Round(2),
		AverageTicket: revenue.Div(decimal.NewFromInt(n)).Round(2),
	}}
}

var AverageTicketColumns = []table.Column{
	{Name: "orders", Kind: table.Int},
	{Name: "revenue", Kind: table.Float},
	{Name: "average_ticket", Kind: table.Float},
}

func AverageTicketTable(recs []AverageTicketRecord) table.Table {
	rows := make([]table.Row, len(recs))
	for i, r := range recs {
		rows[i] = table.Row{r.Orders, r.Revenue.InexactFloat64(), r.AverageTicket.InexactFloat64()}
	}
	return table.New(AverageTicketName, AverageTicketColumns, rows)
}

// factAmount is quantity × effective unit price, zero when unpriced.
func factAmount(f joiner.Fact) decimal.Decimal {
	if !f.HasPrice {
		return decimal.Zero
	}
	return decimal.NewFromFloat(f.UnitPrice).Mul(decimal.NewFromInt(f.Quantity))
}
