package schema

// Table names of the daily ecommerce extract.
const (
	Orders     = "orders"
	OrderItems = "order_items"
	Customers  = "customers"
	Products   = "products"
	Categories = "categories"
	Brands     = "brands"
	Inventory  = "inventory"
	Promotions = "promotions"
	Reviews    = "reviews"
	Suppliers  = "suppliers"
	Warehouses = "warehouses"
)

// TableNames lists the input tables in load order.
var TableNames = []string{
	Orders, OrderItems, Customers, Products, Categories, Brands,
	Inventory, Promotions, Reviews, Suppliers, Warehouses,
}

func ptr(f float64) *float64 { return &f }

// key, text and friends keep the contract literals below readable.
func key(name string) Field {
	return Field{Name: name, Type: "text", Required: true, Categorical: true}
}

func ref(name, target string, required, nullable bool) Field {
	return Field{Name: name, Type: "text", Required: required, Nullable: nullable, Categorical: true, References: target}
}

func text(name string, categorical bool) Field {
	return Field{Name: name, Type: "text", Nullable: true, Categorical: categorical}
}

func opt(name, typ string) Field {
	return Field{Name: name, Type: typ, Nullable: true}
}

// DefaultContracts returns the built-in contracts for all eleven input tables.
// Each call returns fresh values that callers may modify.
func DefaultContracts() map[string]Contract {
	return map[string]Contract{
		Orders: {
			Name:     Orders,
			Required: true,
			Key:      []string{"order_id"},
			Fields: []Field{
				key("order_id"),
				ref("customer_id", "customers.customer_id", true, false),
				{Name: "order_date", Type: "date", Required: true},
				text("status", true),
				ref("promotion_id", "promotions.promotion_id", false, true),
				{Name: "total_amount", Type: "float", Nullable: true, Min: ptr(0)},
				{Name: "shipping_cost", Type: "float", Nullable: true, Min: ptr(0)},
				{Name: "discount_percent", Type: "float", Nullable: true, Min: ptr(0), Max: ptr(100)},
			},
		},
		OrderItems: {
			Name:     OrderItems,
			Required: true,
			Key:      []string{"order_id", "product_id"},
			Fields: []Field{
				ref("order_id", "orders.order_id", true, false),
				ref("product_id", "products.product_id", true, false),
				{Name: "quantity", Type: "int", Required: true, Min: ptr(0), MinExclusive: true},
				{Name: "unit_price", Type: "float", Required: true, Nullable: true, Min: ptr(0)},
				{Name: "subtotal", Type: "float", Nullable: true, Min: ptr(0)},
			},
		},
		Customers: {
			Name:     Customers,
			Required: true,
			Key:      []string{"customer_id"},
			Fields: []Field{
				key("customer_id"),
				text("name", false),
				text("email", false),
				text("segment", true),
				text("city", true),
				text("country", true),
				opt("registration_date", "date"),
				{Name: "age", Type: "int", Nullable: true, Min: ptr(0)},
			},
		},
		Products: {
			Name:     Products,
			Required: true,
			Key:      []string{"product_id"},
			Fields: []Field{
				key("product_id"),
				text("product_name", false),
				ref("category_id", "categories.category_id", true, true),
				ref("brand_id", "brands.brand_id", false, true),
				ref("supplier_id", "suppliers.supplier_id", false, true),
				{Name: "unit_price", Type: "float", Nullable: true, Min: ptr(0)},
			},
		},
		Categories: {
			Name:     Categories,
			Required: true,
			Key:      []string{"category_id"},
			Fields: []Field{
				key("category_id"),
				text("category_name", true),
				text("parent_category_id", true),
			},
		},
		Brands: {
			Name: Brands,
			Key:  []string{"brand_id"},
			Fields: []Field{
				key("brand_id"),
				text("brand_name", true),
				text("country", true),
			},
		},
		Inventory: {
			Name:     Inventory,
			Required: true,
			Key:      []string{"product_id", "warehouse_id"},
			Fields: []Field{
				ref("product_id", "products.product_id", true, false),
				ref("warehouse_id", "warehouses.warehouse_id", true, false),
				{Name: "stock_quantity", Type: "int", Required: true, Min: ptr(0)},
				{Name: "min_stock_level", Type: "int", Nullable: true, Min: ptr(0)},
				{Name: "max_stock_level", Type: "int", Nullable: true, Min: ptr(0)},
				opt("last_restock_date", "date"),
			},
		},
		Promotions: {
			Name:     Promotions,
			Required: true,
			Key:      []string{"promotion_id"},
			Fields: []Field{
				key("promotion_id"),
				text("promotion_name", false),
				text("promotion_type", true),
				{Name: "discount_value", Type: "float", Nullable: true, Min: ptr(0)},
				opt("start_date", "date"),
				opt("end_date", "date"),
				opt("is_active", "bool"),
				ref("product_id", "products.product_id", false, true),
				ref("category_id", "categories.category_id", false, true),
			},
			Rules: []Rule{{Kind: "lte", Left: "start_date", Right: "end_date"}},
		},
		Reviews: {
			Name: Reviews,
			Key:  []string{"review_id"},
			Fields: []Field{
				key("review_id"),
				ref("product_id", "products.product_id", true, false),
				ref("customer_id", "customers.customer_id", true, false),
				{Name: "rating", Type: "int", Required: true, Min: ptr(1), Max: ptr(5)},
				text("comment", false),
				{Name: "helpful_votes", Type: "int", Nullable: true, Min: ptr(0)},
				opt("created_at", "date"),
			},
		},
		Suppliers: {
			Name: Suppliers,
			Key:  []string{"supplier_id"},
			Fields: []Field{
				key("supplier_id"),
				text("supplier_name", false),
				text("country", true),
			},
		},
		Warehouses: {
			Name: Warehouses,
			Key:  []string{"warehouse_id"},
			Fields: []Field{
				key("warehouse_id"),
				text("warehouse_name", false),
				text("location", true),
				{Name: "capacity_units", Type: "int", Nullable: true, Min: ptr(0)},
				{Name: "current_occupancy", Type: "int", Nullable: true, Min: ptr(0)},
			},
		},
	}
}

// DefaultImputations are the imputable numeric columns and their grouping keys.
//
// order_items.unit_price is left null on purpose: the joiner prices such
// items with the product's cleaned (category-imputed) price.
func DefaultImputations() []Imputation {
	return []Imputation{
		{Table: Products, Column: "unit_price", GroupBy: "category_id"},
		{Table: Customers, Column: "age", GroupBy: "segment"},
	}
}
