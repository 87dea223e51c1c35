package cleaner

import (
	"reflect"
	"testing"

	"github.com/Gerardo1909/ecommerce-reporting-etl/internal/schema"
	"github.com/Gerardo1909/ecommerce-reporting-etl/internal/table"
)

func contractTable(c schema.Contract, rows ...table.Row) table.Table {
	return table.New(c.Name, c.Columns(), rows)
}

func TestDedupPrefersNonNull(t *testing.T) {
	c := schema.DefaultContracts()[schema.OrderItems]
	in := contractTable(c,
		table.Row{"o1", "p1", nil, 10.0, nil},
		table.Row{"o1", "p1", int64(3), nil, nil},
	)
	out, res := Clean(in, c, nil, Options{})
	if out.Len() != 1 || res.Merged != 1 {
		t.Fatalf("len=%d merged=%d", out.Len(), res.Merged)
	}
	if got := out.Value(0, "quantity"); got != int64(3) {
		t.Fatalf("quantity=%v want 3", got)
	}
	if got := out.Value(0, "unit_price"); got != 10.0 {
		t.Fatalf("unit_price=%v want earlier non-null 10", got)
	}
}

func TestDedupLastNonNullWinsAtFirstPosition(t *testing.T) {
	c := schema.DefaultContracts()[schema.Customers]
	in := contractTable(c,
		table.Row{"c1", "Ann", "a@x", "retail", nil, nil, nil, nil},
		table.Row{"c2", "Bob", nil, nil, nil, nil, nil, nil},
		table.Row{" C1 ", "Annie", nil, "vip", nil, nil, nil, int64(40)},
	)
	out, _ := Dedup{Keys: c.Key}.Apply(in)
	if out.Len() != 2 {
		t.Fatalf("len=%d", out.Len())
	}
	want := table.Row{" C1 ", "Annie", "a@x", "vip", nil, nil, nil, int64(40)}
	if !reflect.DeepEqual(out.Rows[0], want) {
		t.Fatalf("row0=%v want %v", out.Rows[0], want)
	}
	if out.Value(1, "customer_id") != "c2" {
		t.Fatalf("order not preserved: %v", out.Rows)
	}
	// Input untouched.
	if in.Value(0, "name") != "Ann" || in.Len() != 3 {
		t.Fatalf("input mutated: %v", in.Rows)
	}
}

func TestDedupPolicies(t *testing.T) {
	cols := []table.Column{{Name: "id", Kind: table.Text}, {Name: "v", Kind: table.Int, Nullable: true}}
	in := table.New("t", cols, []table.Row{{"a", int64(1)}, {"a", nil}, {"a", int64(3)}})

	cases := map[string]any{"keep-first": int64(1), "keep-last": int64(3), "": int64(3)}
	for policy, want := range cases {
		out, merged := Dedup{Keys: []string{"id"}, Policy: policy}.Apply(in)
		if out.Len() != 1 || merged != 2 {
			t.Fatalf("%q: len=%d merged=%d", policy, out.Len(), merged)
		}
		if got := out.Value(0, "v"); got != want {
			t.Errorf("%q: v=%v want %v", policy, got, want)
		}
	}
}

func TestDedupNullKeysPassThrough(t *testing.T) {
	cols := []table.Column{{Name: "id", Kind: table.Text, Nullable: true}}
	in := table.New("t", cols, []table.Row{{nil}, {nil}, {"  "}})
	out, merged := Dedup{Keys: []string{"id"}}.Apply(in)
	if out.Len() != 3 || merged != 0 {
		t.Fatalf("null keys must not merge: len=%d merged=%d", out.Len(), merged)
	}
}

func TestImputeGroupMean(t *testing.T) {
	c := schema.DefaultContracts()[schema.Products]
	in := contractTable(c,
		table.Row{"p1", "TV", "electronics", nil, nil, 100.0},
		table.Row{"p2", "Laptop", "Electronics ", nil, nil, 200.0},
		table.Row{"p3", "Phone", "electronics", nil, nil, nil},
		table.Row{"p4", "Shirt", "apparel", nil, nil, 20.0},
	)
	out, res := Clean(in, c, schema.DefaultImputations(), Options{})
	if got := out.Value(2, "unit_price"); got != 150.0 {
		t.Fatalf("imputed price=%v want 150", got)
	}
	if res.Imputed["unit_price"] != 1 {
		t.Fatalf("imputed count %v", res.Imputed)
	}
	if in.Value(2, "unit_price") != nil {
		t.Fatalf("input mutated")
	}
}

func TestImputeGlobalFallbackAndGap(t *testing.T) {
	cols := []table.Column{
		{Name: "segment", Kind: table.Text, Nullable: true},
		{Name: "age", Kind: table.Int, Nullable: true},
	}
	in := table.New("customers", cols, []table.Row{
		{"retail", int64(30)},
		{"retail", int64(31)},
		{nil, nil},         // null group -> global mean 30.5 -> 31
		{"wholesale", nil}, // empty group -> global
	})
	out, n, gap := Impute(in, schema.Imputation{Table: "customers", Column: "age", GroupBy: "segment"})
	if gap != nil || n != 2 {
		t.Fatalf("n=%d gap=%v", n, gap)
	}
	if out.Value(2, "age") != int64(31) || out.Value(3, "age") != int64(31) {
		t.Fatalf("ages %v %v", out.Value(2, "age"), out.Value(3, "age"))
	}

	allNull := table.New("customers", cols, []table.Row{{"retail", nil}, {nil, nil}})
	out, n, gap = Impute(allNull, schema.Imputation{Table: "customers", Column: "age", GroupBy: "segment"})
	if n != 0 || gap == nil || !reflect.DeepEqual(gap.Rows, []int{0, 1}) {
		t.Fatalf("n=%d gap=%+v", n, gap)
	}
	if out.Value(0, "age") != nil {
		t.Fatalf("gap cell must stay null")
	}
}

func TestImputedColumnsHaveNoNullsUnlessGap(t *testing.T) {
	c := schema.DefaultContracts()[schema.OrderItems]
	in := contractTable(c,
		table.Row{"o1", "p1", int64(1), 5.0, nil},
		table.Row{"o2", "p1", int64(1), nil, nil},
		table.Row{"o3", "p2", int64(1), nil, nil},
		table.Row{"o4", nil, int64(1), nil, nil},
	)
	imps := []schema.Imputation{{Table: schema.OrderItems, Column: "unit_price", GroupBy: "product_id"}}
	out, res := Clean(in, c, imps, Options{})
	if len(res.Gaps) != 0 {
		t.Fatalf("unexpected gaps %v", res.Gaps)
	}
	for i := range out.Rows {
		if out.Value(i, "unit_price") == nil {
			t.Fatalf("row %d unit_price still null", i)
		}
	}
}

func TestNormalizeTrimsKeepsCase(t *testing.T) {
	c := schema.DefaultContracts()[schema.Orders]
	in := contractTable(c,
		table.Row{" o1 ", "c1", nil, "  Delivered ", nil, nil, nil, nil},
	)
	out, res := Clean(in, c, nil, Options{})
	if out.Value(0, "status") != "Delivered" || out.Value(0, "order_id") != "o1" {
		t.Fatalf("row %v", out.Rows[0])
	}
	if res.Normalized != 2 {
		t.Fatalf("normalized=%d", res.Normalized)
	}
}

func TestNormalizeTrimsEdgesOnly(t *testing.T) {
	in := table.New("customers", []table.Column{{Name: "city", Kind: table.Text, Nullable: true}}, []table.Row{
		{"\u00a0San\u00a0José\u00a0"},
		{"Buenos Aires"},
		{" \u00a0"},
	})
	out, n := Normalize(in, []string{"city"})
	if got := out.Value(0, "city"); got != "San\u00a0José" {
		t.Errorf("city=%q", got)
	}
	if out.Value(1, "city") != "Buenos Aires" || out.Value(2, "city") != nil {
		t.Errorf("rows=%q", out.Rows)
	}
	if n != 2 {
		t.Errorf("changed=%d want 2", n)
	}
}

func TestCleanIsIdempotent(t *testing.T) {
	cs := schema.DefaultContracts()
	c := cs[schema.Products]
	in := contractTable(c,
		table.Row{"p1", "TV", " electronics", nil, nil, 100.0},
		table.Row{"P1", nil, "electronics", "b1", nil, nil},
		table.Row{"p2", "Laptop", "Electronics", nil, nil, nil},
		table.Row{"p3", "Mug", nil, nil, nil, nil},
		table.Row{"p4", "Cup", "kitchen", nil, nil, nil},
	)
	once, r1 := Clean(in, c, schema.DefaultImputations(), Options{})
	twice, r2 := Clean(once, c, schema.DefaultImputations(), Options{})
	if !reflect.DeepEqual(once.Rows, twice.Rows) {
		t.Fatalf("not idempotent:\n%v\n%v", once.Rows, twice.Rows)
	}
	if r2.Merged != 0 || len(r2.Imputed) != 0 || r2.Normalized != 0 {
		t.Fatalf("second pass did work: %+v", r2)
	}
	if r1.RowsOut > r1.RowsIn {
		t.Fatalf("rows grew: %+v", r1)
	}
}

func TestCleanAllCoversEveryContract(t *testing.T) {
	cs := schema.DefaultContracts()
	tables := map[string]table.Table{
		schema.Orders: contractTable(cs[schema.Orders], table.Row{"o1", "c1", nil, nil, nil, nil, nil, nil}),
	}
	out, results := CleanAll(tables, cs, schema.DefaultImputations(), Options{})
	if len(out) != len(cs) || len(results) != len(cs) {
		t.Fatalf("out=%d results=%d", len(out), len(results))
	}
	if out[schema.Orders].Len() != 1 || out[schema.Reviews].Len() != 0 {
		t.Fatalf("unexpected tables: %s %s", out[schema.Orders], out[schema.Reviews])
	}
}

func TestFold(t *testing.T) {
	cases := map[any]string{
		"  Electronics ": "electronics",
		"STRASSE":        "strasse",
		"Straße":         "strasse",
		"e\u0301":        "\u00e9",
		nil:              "",
		int64(7):         "7",
	}
	for in, want := range cases {
		if got := Fold(in); got != want {
			t.Errorf("Fold(%v)=%q want %q", in, got, want)
		}
	}
}
