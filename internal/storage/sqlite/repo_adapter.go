package sqlite

import (
	"context"
	"time"

	"github.com/Gerardo1909/ecommerce-reporting-etl/internal/ddl"
	"github.com/Gerardo1909/ecommerce-reporting-etl/internal/storage"
	"github.com/Gerardo1909/ecommerce-reporting-etl/internal/table"
)

// newRepository is a test hook that points to NewRepository by default.
var newRepository = NewRepository

// wrappedRepo adds Close to *Repository.
type wrappedRepo struct {
	*Repository
	closeFn func()
}

func (w *wrappedRepo) Close() {
	if w.closeFn != nil {
		w.closeFn()
	}
}

var _ storage.Repository = (*wrappedRepo)(nil)

var syntax = ddl.Syntax{Name: "sqlite ddl", Quote: quoteIdent}

// MapType maps a column kind onto a SQLite type affinity. Dates are stored as
// ISO-8601 text and booleans as 0/1.
func MapType(k table.Kind) string {
	switch k {
	case table.Int, table.Bool:
		return "INTEGER"
	case table.Float:
		return "REAL"
	default:
		return "TEXT"
	}
}

// Value encodes cells the way MapType declares them.
func Value(v any, k table.Kind) any {
	switch x := v.(type) {
	case time.Time:
		if k == table.Date {
			return x.UTC().Format(table.DateLayout)
		}
		return x.UTC().Format(time.RFC3339)
	case bool:
		if x {
			return int64(1)
		}
		return int64(0)
	}
	return v
}

func init() {
	storage.Register("sqlite", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		r, closeFn, err := newRepository(ctx, Config{DSN: cfg.DSN, Table: cfg.Table, Columns: cfg.Columns})
		if err != nil {
			return nil, err
		}
		return &wrappedRepo{Repository: r, closeFn: closeFn}, nil
	})
	storage.RegisterDialect("sqlite", storage.Dialect{Syntax: syntax, MapType: MapType, Value: Value})
}
