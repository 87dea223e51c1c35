package load

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"github.com/Gerardo1909/ecommerce-reporting-etl/internal/table"
)

// WorkbookName is the spreadsheet written under <dir>/reports.
const WorkbookName = "reports.xlsx"

// maxSheetName is Excel's limit on sheet name length.
const maxSheetName = 31

// XLSXWriter collects every report into one workbook, one sheet per report.
// Processed tables are skipped. The workbook is saved on Close.
type XLSXWriter struct {
	dir    string
	file   *excelize.File
	sheets int
}

// NewXLSXWriter returns a writer saving <dir>/reports/reports.xlsx.
func NewXLSXWriter(dir string) *XLSXWriter { return &XLSXWriter{dir: dir} }

func (w *XLSXWriter) Write(ctx context.Context, kind, name string, t table.Table) error {
	if kind != Reports {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if w.file == nil {
		w.file = excelize.NewFile()
	}
	sheet := name
	if len(sheet) > maxSheetName {
		sheet = sheet[:maxSheetName]
	}
	if w.sheets == 0 {
		if err := w.file.SetSheetName(w.file.GetSheetName(0), sheet); err != nil {
			return err
		}
	} else if _, err := w.file.NewSheet(sheet); err != nil {
		return err
	}
	w.sheets++

	header := make([]any, len(t.Columns))
	for j, c := range t.Columns {
		header[j] = c.Name
	}
	if err := w.file.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}
	for i, r := range t.Rows {
		row := make([]any, len(t.Columns))
		for j, c := range t.Columns {
			row[j] = cellValue(r[j], c.Kind)
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := w.file.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("sheet %s row %d: %w", sheet, i, err)
		}
	}
	return nil
}

// cellValue keeps numbers and booleans native; dates use the text layout.
func cellValue(v any, k table.Kind) any {
	switch v.(type) {
	case nil:
		return nil
	case int64, float64, bool:
		return v
	}
	return table.Format(v, k)
}

// Close saves the workbook if any report was written.
func (w *XLSXWriter) Close() error {
	if w.file == nil {
		return nil
	}
	defer func() {
		_ = w.file.Close()
		w.file = nil
	}()
	path := filepath.Join(w.dir, Reports, WorkbookName)
	if err := mkdirFor(path); err != nil {
		return err
	}
	if err := w.file.SaveAs(path); err != nil {
		return fmt.Errorf("xlsx %s: %w", path, err)
	}
	return nil
}
