package load

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Gerardo1909/ecommerce-reporting-etl/internal/table"
)

// CSVWriter writes <dir>/<kind>/<name>.csv with a header row. Nulls are
// empty fields.
type CSVWriter struct {
	dir string
}

// NewCSVWriter returns a writer rooted at dir.
func NewCSVWriter(dir string) *CSVWriter { return &CSVWriter{dir: dir} }

func (w *CSVWriter) Write(ctx context.Context, kind, name string, t table.Table) error {
	path := filepath.Join(w.dir, kind, name+".csv")
	if err := mkdirFor(path); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := writeCSV(ctx, f, t); err != nil {
		_ = f.Close()
		return fmt.Errorf("csv %s: %w", path, err)
	}
	return f.Close()
}

func (w *CSVWriter) Close() error { return nil }

func writeCSV(ctx context.Context, f *os.File, t table.Table) error {
	cw := csv.NewWriter(f)
	if err := cw.Write(t.ColumnNames()); err != nil {
		return err
	}
	rec := make([]string, len(t.Columns))
	for i, r := range t.Rows {
		if i%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		for j, c := range t.Columns {
			rec[j] = table.Format(r[j], c.Kind)
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
