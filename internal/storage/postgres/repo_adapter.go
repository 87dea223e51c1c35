// Package postgres wires the Postgres backend into the storage factory. The
// CLI obtains a Repository via storage.New without importing this package
// directly; registration happens in init.
package postgres

import (
	"context"

	"github.com/Gerardo1909/ecommerce-reporting-etl/internal/ddl"
	"github.com/Gerardo1909/ecommerce-reporting-etl/internal/storage"
	"github.com/Gerardo1909/ecommerce-reporting-etl/internal/table"
)

// newRepository is a test hook that points to NewRepository by default.
// Tests may replace this variable to avoid real DB connections.
var newRepository = NewRepository

// wrappedRepo implements storage.Repository by delegating to *Repository
// while providing a Close method that calls the close function returned by
// NewRepository.
type wrappedRepo struct {
	*Repository
	closeFn func()
}

var _ storage.Repository = (*wrappedRepo)(nil)

func (w *wrappedRepo) Close() {
	if w.closeFn != nil {
		w.closeFn()
	}
}

var syntax = ddl.Syntax{Name: "postgres ddl", Quote: pgIdent}

// MapType maps a column kind onto a Postgres type.
//
//	int      -> BIGINT
//	float    -> DOUBLE PRECISION
//	bool     -> BOOLEAN
//	date     -> DATE
//	datetime -> TIMESTAMPTZ
//	text     -> TEXT
func MapType(k table.Kind) string {
	switch k {
	case table.Int:
		return "BIGINT"
	case table.Float:
		return "DOUBLE PRECISION"
	case table.Bool:
		return "BOOLEAN"
	case table.Date:
		return "DATE"
	case table.DateTime:
		return "TIMESTAMPTZ"
	default:
		return "TEXT"
	}
}

func init() {
	storage.Register("postgres", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		r, closeFn, err := newRepository(ctx, Config{DSN: cfg.DSN, Table: cfg.Table, Columns: cfg.Columns})
		if err != nil {
			return nil, err
		}
		return &wrappedRepo{Repository: r, closeFn: closeFn}, nil
	})
	// pgx encodes every cell type natively; no Value hook needed.
	storage.RegisterDialect("postgres", storage.Dialect{Syntax: syntax, MapType: MapType})
}
