// Package joiner builds the denormalised fact view at order-item grain.
//
// Each fact is one order item joined (inner) to its order, product, the
// product's category and the order's customer, plus the order's promotion
// when one matches (left). Items failing an inner join are dropped and
// counted per join. Inventory is not joined into the facts: it is indexed by
// product and expanded per warehouse only through InventoryFacts, so revenue
// reports never see a fact twice.
package joiner

import (
	"log"
	"time"

	"github.com/Gerardo1909/ecommerce-reporting-etl/internal/cleaner"
	"github.com/Gerardo1909/ecommerce-reporting-etl/internal/quality"
	"github.com/Gerardo1909/ecommerce-reporting-etl/internal/schema"
	"github.com/Gerardo1909/ecommerce-reporting-etl/internal/table"
)

// Join names, in the order an item is checked.
const (
	JoinItemOrder       = "order_items->orders"
	JoinItemProduct     = "order_items->products"
	JoinProductCategory = "products->categories"
	JoinOrderCustomer   = "orders->customers"
)

// Fact is one order item with its joined dimensions. ID fields hold the
// cleaned value from the dimension's own table; Key fields hold the folded
// comparison keys.
type Fact struct {
	OrderID, OrderKey       string
	CustomerID, CustomerKey string
	ProductID, ProductKey   string
	CategoryID, CategoryKey string

	OrderDate time.Time // zero when the order date is null
	Status    string

	Quantity int64 // 0 when null
	// UnitPrice is the item's price, or the product's cleaned price when the
	// item has none. HasPrice is false when neither is known.
	UnitPrice float64
	HasPrice  bool

	PromotionID, PromotionKey string // empty when the order has no promotion
	Promotion                 int    // row in View.Promotions, -1 when unmatched

	Order    int // row in View.Orders
	Product  int // row in View.Products
	Customer int // row in View.Customers
}

// Amount is quantity × effective unit price.
func (f Fact) Amount() float64 {
	if !f.HasPrice {
		return 0
	}
	return float64(f.Quantity) * f.UnitPrice
}

// View is the joined working set handed to the report engine. The dimension
// tables are the cleaned inputs, shared read-only.
type View struct {
	Facts []Fact

	Orders     table.Table
	Customers  table.Table
	Products   table.Table
	Categories table.Table
	Promotions table.Table
	Inventory  table.Table
	Warehouses table.Table

	inventoryByProduct map[string][]int
}

// Result reports the join counts.
type Result struct {
	Items   int                  `json:"items"`
	Facts   int                  `json:"facts"`
	Orphans []quality.JoinOrphan `json:"orphans"`
}

// Join builds the View from cleaned tables. Absent tables behave as empty.
func Join(tables map[string]table.Table) (*View, Result) {
	get := func(name string) table.Table {
		if t, ok := tables[name]; ok {
			return t
		}
		return table.Empty(name, schema.DefaultContracts()[name].Columns())
	}
	v := &View{
		Orders:     get(schema.Orders),
		Customers:  get(schema.Customers),
		Products:   get(schema.Products),
		Categories: get(schema.Categories),
		Promotions: get(schema.Promotions),
		Inventory:  get(schema.Inventory),
		Warehouses: get(schema.Warehouses),
	}
	items := get(schema.OrderItems)

	orderIx := keyIndex(v.Orders, "order_id")
	productIx := keyIndex(v.Products, "product_id")
	categoryIx := keyIndex(v.Categories, "category_id")
	customerIx := keyIndex(v.Customers, "customer_id")
	promotionIx := keyIndex(v.Promotions, "promotion_id")
	v.inventoryByProduct = multiIndex(v.Inventory, "product_id")

	col := func(t table.Table, name string) int { return t.Index(name) }
	iOrder, iProduct := col(items, "order_id"), col(items, "product_id")
	iQty, iPrice := col(items, "quantity"), col(items, "unit_price")
	oCustomer, oDate := col(v.Orders, "customer_id"), col(v.Orders, "order_date")
	oStatus, oPromo := col(v.Orders, "status"), col(v.Orders, "promotion_id")
	pCategory, pPrice := col(v.Products, "category_id"), col(v.Products, "unit_price")
	oID, pID := col(v.Orders, "order_id"), col(v.Products, "product_id")
	kID, cID := col(v.Categories, "category_id"), col(v.Customers, "customer_id")

	res := Result{Items: items.Len()}
	orphans := map[string]int{}
	v.Facts = make([]Fact, 0, items.Len())

	for _, r := range items.Rows {
		f := Fact{Promotion: -1}

		f.OrderID, f.OrderKey = ids(cell(r, iOrder))
		oi, ok := orderIx[f.OrderKey]
		if !ok {
			orphans[JoinItemOrder]++
			continue
		}
		f.ProductID, f.ProductKey = ids(cell(r, iProduct))
		pi, ok := productIx[f.ProductKey]
		if !ok {
			orphans[JoinItemProduct]++
			continue
		}
		order, product := v.Orders.Rows[oi], v.Products.Rows[pi]
		f.Order, f.Product = oi, pi

		f.CategoryID, f.CategoryKey = ids(cell(product, pCategory))
		ki, ok := categoryIx[f.CategoryKey]
		if !ok {
			orphans[JoinProductCategory]++
			continue
		}
		f.CustomerID, f.CustomerKey = ids(cell(order, oCustomer))
		ci, ok := customerIx[f.CustomerKey]
		if !ok {
			orphans[JoinOrderCustomer]++
			continue
		}
		f.Customer = ci

		f.OrderID = table.AsString(cell(order, oID))
		f.ProductID = table.AsString(cell(product, pID))
		f.CategoryID = table.AsString(cell(v.Categories.Rows[ki], kID))
		f.CustomerID = table.AsString(cell(v.Customers.Rows[ci], cID))

		if ts, ok := table.AsTime(cell(order, oDate)); ok {
			f.OrderDate = ts
		}
		f.Status = table.AsString(cell(order, oStatus))
		if q, ok := table.AsInt(cell(r, iQty)); ok {
			f.Quantity = q
		}
		if p, ok := table.AsFloat(cell(r, iPrice)); ok {
			f.UnitPrice, f.HasPrice = p, true
		} else if p, ok := table.AsFloat(cell(product, pPrice)); ok {
			f.UnitPrice, f.HasPrice = p, true
		}

		f.PromotionID, f.PromotionKey = ids(cell(order, oPromo))
		if pr, ok := promotionIx[f.PromotionKey]; ok {
			f.Promotion = pr
		}
		v.Facts = append(v.Facts, f)
	}

	res.Facts = len(v.Facts)
	for _, j := range []string{JoinItemOrder, JoinItemProduct, JoinProductCategory, JoinOrderCustomer} {
		res.Orphans = append(res.Orphans, quality.JoinOrphan{Join: j, Count: orphans[j]})
		if orphans[j] > 0 {
			log.Printf("joiner: join=%s orphans=%d", j, orphans[j])
		}
	}
	log.Printf("joiner: items=%d facts=%d", res.Items, res.Facts)
	return v, res
}

// InventoryFact attributes a share of one fact's units to one warehouse row.
type InventoryFact struct {
	Fact      int     // index into View.Facts
	Inventory int     // row in View.Inventory
	Units     float64 // fact quantity split evenly across the product's warehouses
}

// InventoryFacts replicates every fact once per inventory row of its product.
// Facts for products without inventory produce nothing.
func (v *View) InventoryFacts() []InventoryFact {
	var out []InventoryFact
	for i, f := range v.Facts {
		rows := v.inventoryByProduct[f.ProductKey]
		if len(rows) == 0 {
			continue
		}
		share := float64(f.Quantity) / float64(len(rows))
		for _, ir := range rows {
			out = append(out, InventoryFact{Fact: i, Inventory: ir, Units: share})
		}
	}
	return out
}

func cell(r table.Row, ix int) any {
	if ix < 0 || ix >= len(r) {
		return nil
	}
	return r[ix]
}

// ids returns the display value and folded key of an id cell.
func ids(v any) (string, string) {
	return table.AsString(v), cleaner.Fold(v)
}

// keyIndex maps folded key → first row. Null keys are not indexed.
func keyIndex(t table.Table, col string) map[string]int {
	ix := t.Index(col)
	m := make(map[string]int, t.Len())
	if ix < 0 {
		return m
	}
	for i, r := range t.Rows {
		k := cleaner.Fold(r[ix])
		if k == "" {
			continue
		}
		if _, dup := m[k]; !dup {
			m[k] = i
		}
	}
	return m
}

// multiIndex maps folded key → all rows, in table order.
func multiIndex(t table.Table, col string) map[string][]int {
	ix := t.Index(col)
	m := make(map[string][]int)
	if ix < 0 {
		return m
	}
	for i, r := range t.Rows {
		if k := cleaner.Fold(r[ix]); k != "" {
			m[k] = append(m[k], i)
		}
	}
	return m
}
