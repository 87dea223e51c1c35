// Package report computes the business reports from the joined fact view.
//
// Every report is a pure function of a *joiner.View (and, for a few
// supplemental reports, of cleaned tables) returning typed records plus a
// table.Table with a fixed schema. Reports do not depend on each other and
// Build runs them concurrently. An empty view yields empty tables with the
// full schema.
package report

import (
	"log"

	"golang.org/x/sync/errgroup"

	"github.com/Gerardo1909/ecommerce-reporting-etl/internal/joiner"
	"github.com/Gerardo1909/ecommerce-reporting-etl/internal/table"
)

// Report table names.
const (
	TopCustomersName    = "top_customers"
	TopProductsName     = "top_products_monthly"
	PromotionUsageName  = "promotion_usage"
	InventoryStatusName = "inventory_status"
	MonthlySalesName    = "monthly_sales"
	StatusFunnelName    = "order_status_funnel"
	ReviewRatingsName   = "review_ratings"

	RecurringCustomersName   = "recurring_customers"
	AverageTicketName        = "average_ticket"
	BacklogName              = "backlog_in_progress"
	InventoryHealthName      = "inventory_health"
	LowStockItemsName        = "low_stock_items"
	WarehouseUtilizationName = "warehouse_utilization"
	ReviewsOverviewName      = "reviews_overview"
	ReviewsMonthlyName       = "reviews_monthly"
)

// MonthLayout formats the month of an order date.
const MonthLayout = "2006-01"

// Options parameterise the reports. Zero fields take the defaults.
type Options struct {
	// TopFraction is the share of the customer population flagged as top
	// spenders (default 0.2).
	TopFraction float64 `json:"top_fraction,omitempty"`

	// BandLow and BandHigh bound the expected spend share of the top slice
	// (default 0.60–0.70). Only reported, never enforced.
	BandLow  float64 `json:"band_low,omitempty"`
	BandHigh float64 `json:"band_high,omitempty"`

	// ProductsPerMonth limits the top products kept per month; 0 keeps all.
	ProductsPerMonth int `json:"products_per_month,omitempty"`

	// MinReviews is the review count a product needs to be rated (default 3).
	MinReviews int `json:"min_reviews,omitempty"`

	// RecurringMinOrders is the order count that makes a customer
	// recurring (default 2).
	RecurringMinOrders int `json:"recurring_min_orders,omitempty"`

	// LowStockLimit caps the low stock items listed (default 20).
	LowStockLimit int `json:"low_stock_limit,omitempty"`

	// Disabled lists supplemental reports to skip.
	Disabled []string `json:"disabled,omitempty"`
}

func (o Options) withDefaults() Options {
	if o.TopFraction <= 0 || o.TopFraction > 1 {
		o.TopFraction = 0.2
	}
	if o.BandLow == 0 && o.BandHigh == 0 {
		o.BandLow, o.BandHigh = 0.60, 0.70
	}
	if o.MinReviews <= 0 {
		o.MinReviews = 3
	}
	if o.RecurringMinOrders <= 0 {
		o.RecurringMinOrders = 2
	}
	if o.LowStockLimit <= 0 {
		o.LowStockLimit = 20
	}
	return o
}

func (o Options) enabled(name string) bool {
	for _, d := range o.Disabled {
		if d == name {
			return false
		}
	}
	return true
}

// Set holds the computed report tables in a stable order.
type Set struct {
	Tables []table.Table
	Signal Signal
}

// Table looks a report up by name.
func (s *Set) Table(name string) (table.Table, bool) {
	for _, t := range s.Tables {
		if t.Name == name {
			return t, true
		}
	}
	return table.Table{}, false
}

// Build computes every report concurrently. reviews may be empty.
func Build(v *joiner.View, reviews table.Table, opts Options) *Set {
	opts = opts.withDefaults()

	type job struct {
		name string
		run  func() table.Table
	}
	var signal Signal
	jobs := []job{
		{TopCustomersName, func() table.Table {
			recs, sig := TopCustomers(v, opts)
			signal = sig
			return TopCustomersTable(recs)
		}},
		{TopProductsName, func() table.Table { return TopProductsTable(TopProducts(v, opts)) }},
		{PromotionUsageName, func() table.Table { return PromotionUsageTable(PromotionUsage(v)) }},
		{InventoryStatusName, func() table.Table { return InventoryStatusTable(InventoryStatus(v)) }},
	}
	supplemental := []job{
		{MonthlySalesName, func() table.Table { return MonthlySalesTable(MonthlySales(v)) }},
		{StatusFunnelName, func() table.Table { return StatusFunnelTable(StatusFunnel(v.Orders)) }},
		{ReviewRatingsName, func() table.Table { return ReviewRatingsTable(ReviewRatings(reviews, v.Products, opts)) }},
		{RecurringCustomersName, func() table.Table { return RecurringCustomersTable(RecurringCustomers(v, opts)) }},
		{AverageTicketName, func() table.Table { return AverageTicketTable(AverageTicket(v)) }},
		{BacklogName, func() table.Table { return BacklogTable(Backlog(v.Orders)) }},
		{InventoryHealthName, func() table.Table { return InventoryHealthTable(InventoryHealth(v)) }},
		{LowStockItemsName, func() table.Table { return LowStockItemsTable(LowStockItems(v, opts)) }},
		{WarehouseUtilizationName, func() table.Table { return WarehouseUtilizationTable(WarehouseUtilization(v)) }},
		{ReviewsOverviewName, func() table.Table { return ReviewsOverviewTable(ReviewsOverview(reviews)) }},
		{ReviewsMonthlyName, func() table.Table { return ReviewsMonthlyTable(ReviewsMonthly(reviews)) }},
	}
	for _, j := range supplemental {
		if opts.enabled(j.name) {
			jobs = append(jobs, j)
		}
	}

	out := make([]table.Table, len(jobs))
	var g errgroup.Group
	for i, j := range jobs {
		i, j := i, j
		g.Go(func() error {
			out[i] = j.run()
			return nil
		})
	}
	_ = g.Wait() // report functions do not fail

	for _, t := range out {
		log.Printf("report: name=%s rows=%d", t.Name, t.Len())
	}
	return &Set{Tables: out, Signal: signal}
}
