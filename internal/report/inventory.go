package report

import (
	"github.com/Gerardo1909/ecommerce-reporting-etl/internal/joiner"
	"github.com/Gerardo1909/ecommerce-reporting-etl/internal/table"
)

// InventoryStatusRecord is one (product, warehouse) row of the inventory report.
type InventoryStatusRecord struct {
	ProductID    string
	WarehouseID  string
	Stock        int64
	HasStock     bool
	UnitsSold    float64 // attributed to this warehouse
	TurnoverRate float64
	Stockout     bool
}

// InventoryStatus reports, per inventory row, the units sold attributed to
// the warehouse (split evenly across the product's warehouses) and the
// turnover rate against the average stock of the window.
//
// Only a closing snapshot is available, so the average is taken between the
// reconstructed opening stock (current + attributed units) and the current
// stock: current + attributed/2. turnover_rate is attributed / average, or 0
// when the average is 0. stockout_flag is set when current stock is 0.
func InventoryStatus(v *joiner.View) []InventoryStatusRecord {
	inv := v.Inventory
	attributed := make([]float64, inv.Len())
	for _, f := range v.InventoryFacts() {
		attributed[f.Inventory] += f.Units
	}

	ixProduct, ixWarehouse, ixStock := inv.Index("product_id"), inv.Index("warehouse_id"), inv.Index("stock_quantity")
	out := make([]InventoryStatusRecord, 0, inv.Len())
	for i, r := range inv.Rows {
		rec := InventoryStatusRecord{UnitsSold: attributed[i]}
		if ixProduct >= 0 {
			rec.ProductID = table.AsString(r[ixProduct])
		}
		if ixWarehouse >= 0 {
			rec.WarehouseID = table.AsString(r[ixWarehouse])
		}
		if ixStock >= 0 {
			rec.Stock, rec.HasStock = table.AsInt(r[ixStock])
		}
		avg := float64(rec.Stock) + rec.UnitsSold/2
		if avg > 0 {
			rec.TurnoverRate = rec.UnitsSold / avg
		}
		rec.Stockout = rec.HasStock && rec.Stock == 0
		out = append(out, rec)
	}
	return out
}

var InventoryStatusColumns = []table.Column{
	{Name: "product_id", Kind: table.Text},
	{Name: "warehouse_id", Kind: table.Text},
	{Name: "stock_quantity", Kind: table.Int, Nullable: true},
	{Name: "turnover_rate", Kind: table.Float},
	{Name: "stockout_flag", Kind: table.Bool},
}

func InventoryStatusTable(recs []InventoryStatusRecord) table.Table {
	rows := make([]table.Row, len(recs))
	for i, r := range recs {
		var stock any
		if r.HasStock {
			stock = r.Stock
		}
		rows[i] = table.Row{r.ProductID, r.WarehouseID, stock, r.TurnoverRate, r.Stockout}
	}
	return table.New(InventoryStatusName, InventoryStatusColumns, rows)
}
