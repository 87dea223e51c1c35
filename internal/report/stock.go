package report

import (
	"sort"

	"github.com/Gerardo1909/ecommerce-reporting-etl/internal/cleaner"
	"github.com/Gerardo1909/ecommerce-reporting-etl/internal/joiner"
	"github.com/Gerardo1909/ecommerce-reporting-etl/internal/table"
)

// stockLevel is one inventory row with its threshold flags. A row is low
// when stock <= min_stock_level and overstocked when stock >= max_stock_level;
// a null stock or threshold never raises a flag.
type stockLevel struct {
	productID, productKey     string
	warehouseID, warehouseKey string
	stock, min, max           int64
	hasStock, hasMin, hasMax  bool
	low, over                 bool
}

func stockLevels(inv table.Table) []stockLevel {
	ixP, ixW := inv.Index("product_id"), inv.Index("warehouse_id")
	ixS, ixMin, ixMax := inv.Index("stock_quantity"), inv.Index("min_stock_level"), inv.Index("max_stock_level")
	out := make([]stockLevel, len(inv.Rows))
	for i, r := range inv.Rows {
		s := &out[i]
		s.productID, s.productKey = table.AsString(cell(r, ixP)), cleaner.Fold(cell(r, ixP))
		s.warehouseID, s.warehouseKey = table.AsString(cell(r, ixW)), cleaner.Fold(cell(r, ixW))
		s.stock, s.hasStock = table.AsInt(cell(r, ixS))
		s.min, s.hasMin = table.AsInt(cell(r, ixMin))
		s.max, s.hasMax = table.AsInt(cell(r, ixMax))
		s.low = s.hasStock && s.hasMin && s.stock <= s.min
		s.over = s.hasStock && s.hasMax && s.stock >= s.max
	}
	return out
}

func cell(r table.Row, ix int) any {
	if ix < 0 || ix >= len(r) {
		return nil
	}
	return r[ix]
}

// InventoryHealthRecord summarises stock health over all inventory rows.
type InventoryHealthRecord struct {
	Items         int64
	LowStock      int64
	Overstock     int64
	Stockout      int64
	LowStockRate  float64
	OverstockRate float64
}

// InventoryHealth counts low, overstocked and empty inventory rows. It
// returns nothing for an empty inventory.
func InventoryHealth(v *joiner.View) []InventoryHealthRecord {
	levels := stockLevels(v.Inventory)
	if len(levels) == 0 {
		return nil
	}
	rec := InventoryHealthRecord{Items: int64(len(levels))}
	for _, s := range levels {
		if s.low {
			rec.LowStock++
		}
		if s.over {
			rec.Overstock++
		}
		if s.hasStock && s.stock == 0 {
			rec.Stockout++
		}
	}
	rec.LowStockRate = float64(rec.LowStock) / float64(rec.Items)
	rec.OverstockRate = float64(rec.Overstock) / float64(rec.Items)
	return []InventoryHealthRecord{rec}
}

var InventoryHealthColumns = []table.Column{
	{Name: "items", Kind: table.Int},
	{Name: "low_stock_items", Kind: table.Int},
	{Name: "overstock_items", Kind: table.Int},
	{Name: "stockout_items", Kind: table.Int},
	{Name: "low_stock_rate", Kind: table.Float},
	{Name: "overstock_rate", Kind: table.Float},
}

func InventoryHealthTable(recs []InventoryHealthRecord) table.Table {
	rows := make([]table.Row, len(recs))
	for i, r := range recs {
		rows[i] = table.Row{r.Items, r.LowStock, r.Overstock, r.Stockout, r.LowStockRate, r.OverstockRate}
	}
	return table.New(InventoryHealthName, InventoryHealthColumns, rows)
}

// LowStockRecord is one inventory row at or below its minimum level.
type LowStockRecord struct {
	ProductID   string
	ProductName string
	WarehouseID string
	Stock       int64
	MinStock    int64
	Deficit     int64 // min_stock_level - stock
}

// LowStockItems lists the low rows, largest deficit first, then by product
// and warehouse id. At most opts.LowStockLimit rows are kept.
func LowStockItems(v *joiner.View, opts Options) []LowStockRecord {
	opts = opts.withDefaults()
	names := productNames(v.Products)
	var out []LowStockRecord
	for _, s := range stockLevels(v.Inventory) {
		if !s.low {
			continue
		}
		out = append(out, LowStockRecord{
			ProductID:   s.productID,
			ProductName: names[s.productKey],
			WarehouseID: s.warehouseID,
			Stock:       s.stock,
			MinStock:    s.min,
			Deficit:     s.min - s.stock,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Deficit != b.Deficit {
			return a.Deficit > b.Deficit
		}
		if a.ProductID != b.ProductID {
			return a.ProductID < b.ProductID
		}
		return a.WarehouseID < b.WarehouseID
	})
	if len(out) > opts.LowStockLimit {
		out = out[:opts.LowStockLimit]
	}
	return out
}

var LowStockItemsColumns = []table.Column{
	{Name: "product_id", Kind: table.Text},
	{Name: "product_name", Kind: table.Text, Nullable: true},
	{Name: "warehouse_id", Kind: table.Text},
	{Name: "stock_quantity", Kind: table.Int},
	{Name: "min_stock_level", Kind: table.Int},
	{Name: "deficit", Kind: table.Int},
}

func LowStockItemsTable(recs []LowStockRecord) table.Table {
	rows := make([]table.Row, len(recs))
	for i, r := range recs {
		rows[i] = table.Row{r.ProductID, nullIfEmpty(r.ProductName), r.WarehouseID, r.Stock, r.MinStock, r.Deficit}
	}
	return table.New(LowStockItemsName, LowStockItemsColumns, rows)
}

// WarehouseUtilizationRecord describes one warehouse.
type WarehouseUtilizationRecord struct {
	WarehouseID   string
	WarehouseName string
	Location      string
	Capacity      int64
	Occupancy     int64
	HasCapacity   bool
	HasOccupancy  bool
	Utilization   float64 // occupancy / capacity
	HasUtil       bool
	Products      int64 // inventory rows
	StockUnits    int64
	LowStockItems int64
}

// WarehouseUtilization reports every warehouse of the catalogue plus any
// warehouse only seen in inventory, sorted by warehouse id. Utilization is
// null unless both capacity and occupancy are known and capacity is positive.
func WarehouseUtilization(v *joiner.View) []WarehouseUtilizationRecord {
	byKey := make(map[string]*WarehouseUtilizationRecord)
	var order []string
	get := func(key, id string) *WarehouseUtilizationRecord {
		if w, ok := byKey[key]; ok {
			return w
		}
		w := &WarehouseUtilizationRecord{WarehouseID: id}
		byKey[key] = w
		order = append(order, key)
		return w
	}

	wh := v.Warehouses
	ixID, ixName, ixLoc := wh.Index("warehouse_id"), wh.Index("warehouse_name"), wh.Index("location")
	ixCap, ixOcc := wh.Index("capacity_units"), wh.Index("current_occupancy")
	for _, r := range wh.Rows {
		key := cleaner.Fold(cell(r, ixID))
		if key == "" {
			continue
		}
		w := get(key, table.AsString(cell(r, ixID)))
		w.WarehouseName = table.AsString(cell(r, ixName))
		w.Location = table.AsString(cell(r, ixLoc))
		w.Capacity, w.HasCapacity = table.AsInt(cell(r, ixCap))
		w.Occupancy, w.HasOccupancy = table.AsInt(cell(r, ixOcc))
	}
	for _, s := range stockLevels(v.Inventory) {
		if s.warehouseKey == "" {
			continue
		}
		w := get(s.warehouseKey, s.warehouseID)
		w.Products++
		if s.hasStock {
			w.StockUnits += s.stock
		}
		if s.low {
			w.LowStockItems++
		}
	}

	out := make([]WarehouseUtilizationRecord, 0, len(order))
	for _, k := range order {
		w := *byKey[k]
		if w.HasCapacity && w.HasOccupancy && w.Capacity > 0 {
			w.Utilization, w.HasUtil = float64(w.Occupancy)/float64(w.Capacity), true
		}
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].WarehouseID < out[j].WarehouseID })
	return out
}

var WarehouseUtilizationColumns = []table.Column{
	{Name: "warehouse_id", Kind: table.Text},
	{Name: "warehouse_name", Kind: table.Text, Nullable: true},
	{Name: "location", Kind: table.Text, Nullable: true},
	{Name: "capacity_units", Kind: table.Int, Nullable: true},
	{Name: "current_occupancy", Kind: table.Int, Nullable: true},
	{Name: "utilization", Kind: table.Float, Nullable: true},
	{Name: "products", Kind: table.Int},
	{Name: "stock_units", Kind: table.Int},
	{Name: "low_stock_items", Kind: table.Int},
}

func WarehouseUtilizationTable(recs []WarehouseUtilizationRecord) table.Table {
	rows := make([]table.Row, len(recs))
	for i, r := range recs {
		var capacity, occupancy, util any
		if r.HasCapacity {
			capacity = r.Capacity
		}
		if r.HasOccupancy {
			occupancy = r.Occupancy
		}
		if r.HasUtil {
			util = r.Utilization
		}
		rows[i] = table.Row{
			r.WarehouseID, nullIfEmpty(r.WarehouseName), nullIfEmpty(r.Location),
			capacity, occupancy, util, r.Products, r.StockUnits, r.LowStockItems,
		}
	}
	return table.New(WarehouseUtilizationName, WarehouseUtilizationColumns, rows)
}

// productNames maps folded product ids to their first non-empty name.
func productNames(products table.Table) map[string]string {
	names := make(map[string]string)
	pi, ni := products.Index("product_id"), products.Index("product_name")
	if pi < 0 || ni < 0 {
		return names
	}
	for _, r := range products.Rows {
		k := cleaner.Fold(r[pi])
		if _, ok := names[k]; k != "" && !ok {
			names[k] = table.AsString(r[ni])
		}
	}
	return names
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
