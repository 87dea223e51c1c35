package load

import (
	"context"
	"fmt"
	"strings"

	"github.com/Gerardo1909/ecommerce-reporting-etl/internal/storage"
	"github.com/Gerardo1909/ecommerce-reporting-etl/internal/table"
)

// DBOptions selects the database sink.
type DBOptions struct {
	// Kind is a registered storage kind: postgres, mysql, mssql or sqlite.
	Kind string `json:"kind" yaml:"kind"`
	DSN  string `json:"dsn" yaml:"dsn"`
	// Prefix is prepended to every table name, e.g. "reporting." or "etl_".
	Prefix    string `json:"prefix,omitempty" yaml:"prefix,omitempty"`
	BatchSize int    `json:"batch_size,omitempty" yaml:"batch_size,omitempty"`
}

// DBWriter replaces one database table per output, creating it from the
// table schema when missing.
type DBWriter struct {
	job  string
	opt  DBOptions
	keys map[string][]string
}

// NewDBWriter checks that opt names a registered backend.
func NewDBWriter(job string, opt DBOptions, keys map[string][]string) (*DBWriter, error) {
	if strings.TrimSpace(opt.DSN) == "" {
		return nil, fmt.Errorf("db output: dsn is required")
	}
	if _, err := storage.DialectFor(opt.Kind); err != nil {
		return nil, fmt.Errorf("db output: %w (available: %s)", err, strings.Join(storage.ListKinds(), ", "))
	}
	return &DBWriter{job: job, opt: opt, keys: keys}, nil
}

func (w *DBWriter) Write(ctx context.Context, kind, name string, t table.Table) error {
	var key []string
	if kind == Processed && !nullKey(t, w.keys[name]) {
		key = w.keys[name]
	}
	_, err := storage.WriteTable(ctx, w.opt.Kind, w.opt.DSN, w.opt.Prefix+name, withObservedNulls(t), storage.WriteOptions{
		Job:        w.job,
		Key:        key,
		AutoCreate: true,
		Replace:    true,
		BatchSize:  w.opt.BatchSize,
	})
	return err
}

func (w *DBWriter) Close() error { return nil }

// nullKey reports whether any row has a null in one of the key columns;
// such rows survive de-duplication and cannot take a primary key.
func nullKey(t table.Table, key []string) bool {
	for _, k := range key {
		ix := t.Index(k)
		if ix < 0 {
			return true
		}
		for _, r := range t.Rows {
			if r[ix] == nil {
				return true
			}
		}
	}
	return false
}
