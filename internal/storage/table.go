package storage

import (
	"context"
	"fmt"
	"log"

	"github.com/Gerardo1909/ecommerce-reporting-etl/internal/ddl"
	"github.com/Gerardo1909/ecommerce-reporting-etl/internal/table"
)

// WriteOptions configures WriteTable.
type WriteOptions struct {
	Job string
	// Key becomes the primary key when the table is created.
	Key []string
	// AutoCreate issues an idempotent CREATE TABLE first.
	AutoCreate bool
	// Replace deletes existing rows before inserting.
	Replace   bool
	BatchSize int
}

// EnsureTable creates fqn for the given schema unless it already exists.
func EnsureTable(ctx context.Context, d Dialect, repo Repository, fqn string, cols []table.Column, key []string) error {
	stmt, err := ddl.BuildCreateTableSQL(ddl.FromColumns(fqn, cols, key, d.MapType), d.Syntax)
	if err != nil {
		return err
	}
	if err := repo.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("create %s: %w", fqn, err)
	}
	return nil
}

// WriteTable copies t into the table fqn of the backend kind, creating and
// clearing it first when requested.
func WriteTable(ctx context.Context, kind, dsn, fqn string, t table.Table, opt WriteOptions) (int64, error) {
	d, err := DialectFor(kind)
	if err != nil {
		return 0, err
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	cols := t.ColumnNames()
	repo, err := New(ctx, Config{Kind: kind, DSN: dsn, Table: fqn, Columns: cols, KeyColumns: opt.Key})
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", fqn, err)
	}
	defer repo.Close()

	if opt.AutoCreate {
		if err := EnsureTable(ctx, d, repo, fqn, t.Columns, opt.Key); err != nil {
			return 0, err
		}
	}
	if opt.Replace {
		if err := repo.Exec(ctx, "DELETE FROM "+d.Syntax.QuoteFQN(fqn)); err != nil {
			return 0, fmt.Errorf("clear %s: %w", fqn, err)
		}
	}

	batch := opt.BatchSize
	if batch <= 0 {
		batch = 5000
	}
	in := make(chan []any, batch)
	go func() {
		defer close(in)
		for _, r := range t.Rows {
			row := make([]any, len(r))
			for i, v := range r {
				row[i] = v
				if d.Value != nil && v != nil {
					row[i] = d.Value(v, t.Columns[i].Kind)
				}
			}
			select {
			case in <- row:
			case <-ctx.Done():
				return
			}
		}
	}()
	n, err := LoadBatches(ctx, opt.Job, cols, in, batch, repo.CopyFrom)
	if err != nil {
		return n, fmt.Errorf("load %s: %w", fqn, err)
	}
	log.Printf("storage: kind=%s table=%s rows=%d", kind, fqn, n)
	return n, nil
}
