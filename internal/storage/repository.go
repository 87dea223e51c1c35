// Package storage contains the storage-agnostic contracts used by the
// database output: a Repository per destination table, a factory registry
// that backends fill at init time, and the per-backend Dialect used to create
// tables and encode cell values.
//
// Importing internal/storage/all enables every built-in backend.
package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/Gerardo1909/ecommerce-reporting-etl/internal/ddl"
	"github.com/Gerardo1909/ecommerce-reporting-etl/internal/table"
)

// Repository writes rows into one destination table.
type Repository interface {
	// CopyFrom bulk-inserts rows aligned to columns and returns the number of
	// rows written.
	CopyFrom(ctx context.Context, columns []string, rows [][]any) (int64, error)
	// Exec runs a statement (typically DDL).
	Exec(ctx context.Context, sql string) error
	Close()
}

// Config selects a backend and a destination table.
type Config struct {
	Kind    string
	DSN     string
	Table   string
	Columns []string
	// KeyColumns identifies the natural key; it becomes the primary key of
	// auto-created tables.
	KeyColumns []string
}

// Factory opens a Repository for cfg.
type Factory func(ctx context.Context, cfg Config) (Repository, error)

// Dialect describes how a backend spells DDL and which Go values it binds.
type Dialect struct {
	Syntax ddl.Syntax
	// MapType maps a column kind to a SQL type.
	MapType func(table.Kind) string
	// Value converts a cell before binding; nil means pass through.
	Value func(v any, k table.Kind) any
}

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
	dialects  = map[string]Dialect{}
)

// Register registers (or replaces) the factory for kind.
func Register(kind string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[kind] = f
}

// RegisterDialect registers (or replaces) the dialect for kind.
func RegisterDialect(kind string, d Dialect) {
	mu.Lock()
	defer mu.Unlock()
	dialects[kind] = d
}

// New opens a Repository of cfg.Kind.
func New(ctx context.Context, cfg Config) (Repository, error) {
	mu.RLock()
	f, ok := factories[cfg.Kind]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported storage.kind=%s", cfg.Kind)
	}
	return f(ctx, cfg)
}

// DialectFor returns the dialect registered for kind.
func DialectFor(kind string) (Dialect, error) {
	mu.RLock()
	d, ok := dialects[kind]
	mu.RUnlock()
	if !ok {
		return Dialect{}, fmt.Errorf("no dialect registered for storage.kind=%s", kind)
	}
	return d, nil
}

// ListKinds returns a sorted snapshot of the registered kinds.
func ListKinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
