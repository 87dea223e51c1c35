package transformer

import (
	"errors"
	"strings"
	"testing"

	"github.com/Gerardo1909/ecommerce-reporting-etl/internal/joiner"
	"github.com/Gerardo1909/ecommerce-reporting-etl/internal/report"
	"github.com/Gerardo1909/ecommerce-reporting-etl/internal/schema"
	"github.com/Gerardo1909/ecommerce-reporting-etl/internal/table"
)

// raw builds an all-text table the way the extractor hands it over.
func raw(name, header string, lines ...string) table.Table {
	names := strings.Split(header, ",")
	cols := make([]table.Column, len(names))
	for i, n := range names {
		cols[i] = table.Column{Name: n, Kind: table.Text, Nullable: true}
	}
	rows := make([]table.Row, 0, len(lines))
	for _, l := range lines {
		parts := strings.Split(l, ",")
		r := make(table.Row, len(parts))
		for i, p := range parts {
			if p != "" {
				r[i] = p
			}
		}
		rows = append(rows, r)
	}
	return table.New(name, cols, rows)
}

func sampleExtract() map[string]table.Table {
	return map[string]table.Table{
		schema.Orders: raw(schema.Orders, "order_id,customer_id,order_date,status,promotion_id",
			"o1,c1,2024-01-05,delivered,",
			"o2,c2,2024-01-20,cancelled,PR1",
			"o3,c1,not-a-date,delivered,",
		),
		schema.OrderItems: raw(schema.OrderItems, "order_id,product_id,quantity,unit_price",
			"o1,p1,2,10",
			"o2,p2,1,5",
			"o1,p9,1,3",
		),
		schema.Customers: raw(schema.Customers, "customer_id,segment",
			"c1,retail",
			"c1,",
			"c2,wholesale",
		),
		schema.Products: raw(schema.Products, "product_id,category_id,unit_price",
			"p1,cat1,10",
			"p2,cat1,5",
		),
		schema.Categories: raw(schema.Categories, "category_id,category_name", "cat1,Electronics"),
		schema.Inventory:  raw(schema.Inventory, "product_id,warehouse_id,stock_quantity", "p1,w1,5"),
		schema.Promotions: raw(schema.Promotions, "promotion_id,start_date,end_date", "PR1,,"),
	}
}

func TestRunAbortsOnMissingRequiredTable(t *testing.T) {
	in := sampleExtract()
	delete(in, schema.Inventory)

	out, err := Run(in, DefaultConfig())
	if out != nil {
		t.Fatalf("expected no output, got %+v", out)
	}
	if !errors.Is(err, ErrSchema) {
		t.Fatalf("err=%v want schema error", err)
	}
	var se *SchemaError
	if !errors.As(err, &se) || se.Table != schema.Inventory || se.Column != "" {
		t.Fatalf("unexpected error %#v", err)
	}
}

func TestRunAbortsOnMissingRequiredColumn(t *testing.T) {
	in := sampleExtract()
	in[schema.OrderItems] = raw(schema.OrderItems, "order_id,product_id,unit_price", "o1,p1,10")

	_, err := Run(in, DefaultConfig())
	var se *SchemaError
	if !errors.As(err, &se) || se.Table != schema.OrderItems || se.Column != "quantity" {
		t.Fatalf("err=%v want missing quantity column", err)
	}
}

func TestRunEndToEnd(t *testing.T) {
	in := sampleExtract()
	before := map[string]uint64{}
	for n, tb := range in {
		before[n] = table.Digest(tb)
	}

	out, err := Run(in, DefaultConfig())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	for n, tb := range in {
		if table.Digest(tb) != before[n] {
			t.Errorf("input %s was modified", n)
		}
	}

	if got := out.Report.RowsDropped(); got != 1 {
		t.Errorf("rows dropped=%d want 1", got)
	}
	if got := out.Tables[schema.Orders].Len(); got != 2 {
		t.Errorf("orders=%d want 2", got)
	}
	if got := out.Tables[schema.Customers].Len(); got != 2 {
		t.Errorf("customers=%d want 2 after merge", got)
	}
	if got := out.Tables[schema.Customers].Value(0, "segment"); got != "retail" {
		t.Errorf("merged segment=%v", got)
	}
	if tb, ok := out.Tables[schema.Warehouses]; !ok || tb.Len() != 0 {
		t.Errorf("optional warehouses should be present and empty, got %v", tb)
	}

	if out.Report.Join.Facts != 2 {
		t.Errorf("facts=%d want 2", out.Report.Join.Facts)
	}
	if len(out.Report.Orphans) != 1 || out.Report.Orphans[0].Join != joiner.JoinItemProduct || out.Report.Orphans[0].Count != 1 {
		t.Errorf("orphans=%+v", out.Report.Orphans)
	}

	issues := out.Report.IssueCounts()
	if issues["type_mismatch"] != 1 || issues["join_orphan"] != 1 {
		t.Errorf("issue counts=%v", issues)
	}
	if issues["missing_reference"] != 1 {
		t.Errorf("missing_reference=%d want 1 (o1,p9)", issues["missing_reference"])
	}

	top, ok := out.Reports.Table(report.TopCustomersName)
	if !ok || top.Len() != 2 {
		t.Fatalf("top customers=%v", top)
	}
	if top.Value(0, "customer_id") != "c1" || top.Value(0, "total_spend") != 20.0 {
		t.Errorf("first top customer row=%v", top.Rows[0])
	}
	if top.Value(0, "is_top_20_percent") != true || top.Value(1, "is_top_20_percent") != false {
		t.Errorf("top flags=%v", top.Rows)
	}
	if out.Report.Signal.TopCustomers != 1 {
		t.Errorf("signal=%+v", out.Report.Signal)
	}

	promo, _ := out.Reports.Table(report.PromotionUsageName)
	if promo.Len() != 1 || promo.Value(0, "usage_rate") != 0.5 {
		t.Errorf("promotion usage=%v", promo.Rows)
	}
}

func TestRunPricesUnpricedItemFromProduct(t *testing.T) {
	in := sampleExtract()
	in[schema.Orders] = raw(schema.Orders, "order_id,customer_id,order_date,status",
		"o1,c1,2024-01-05,delivered",
		"o2,c2,2024-01-06,delivered",
	)
	in[schema.OrderItems] = raw(schema.OrderItems, "order_id,product_id,quantity,unit_price",
		"o1,p1,1,10",
		"o2,p2,1,",
	)
	in[schema.Products] = raw(schema.Products, "product_id,category_id,unit_price",
		"p1,cat1,10",
		"p2,cat1,1000",
	)

	out, err := Run(in, DefaultConfig())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := out.Tables[schema.OrderItems].Value(1, "unit_price"); got != nil {
		t.Errorf("item price was imputed to %v", got)
	}
	top, _ := out.Reports.Table(report.TopCustomersName)
	if top.Len() != 2 || top.Value(0, "customer_id") != "c2" || top.Value(0, "total_spend") != 1000.0 {
		t.Fatalf("top customers=%v", top.Rows)
	}
}

func TestRunRowCountsNeverGrow(t *testing.T) {
	in := sampleExtract()
	out, err := Run(in, DefaultConfig())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	for _, v := range out.Report.Validation {
		if v.RowsIn != in[v.Table].Len() {
			t.Errorf("%s rows_in=%d want %d", v.Table, v.RowsIn, in[v.Table].Len())
		}
	}
	for _, c := range out.Report.Cleaning {
		if c.RowsOut > c.RowsIn {
			t.Errorf("%s grew from %d to %d", c.Table, c.RowsIn, c.RowsOut)
		}
		if c.RowsIn-c.RowsOut != c.Merged {
			t.Errorf("%s lost rows outside dedup: in=%d out=%d merged=%d", c.Table, c.RowsIn, c.RowsOut, c.Merged)
		}
	}
}

func TestRunIsStableOnCleanedOutput(t *testing.T) {
	out, err := Run(sampleExtract(), DefaultConfig())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	again, err := Run(out.Tables, DefaultConfig())
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	for n, tb := range out.Tables {
		if table.Digest(again.Tables[n]) != table.Digest(tb) {
			t.Errorf("%s changed on second pass", n)
		}
	}
}

func TestCleanedFollowsTableOrder(t *testing.T) {
	out, err := Run(sampleExtract(), DefaultConfig())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	got := out.Cleaned()
	if len(got) != len(schema.TableNames) {
		t.Fatalf("cleaned tables=%d want %d", len(got), len(schema.TableNames))
	}
	for i, tb := range got {
		if tb.Name != schema.TableNames[i] {
			t.Errorf("position %d: %s want %s", i, tb.Name, schema.TableNames[i])
		}
	}
	if !strings.Contains(out.Report.Summary(), "facts=2") {
		t.Errorf("summary=%q", out.Report.Summary())
	}
}
