package mysql

import (
	"context"
	"time"

	"github.com/Gerardo1909/ecommerce-reporting-etl/internal/ddl"
	"github.com/Gerardo1909/ecommerce-reporting-etl/internal/storage"
	"github.com/Gerardo1909/ecommerce-reporting-etl/internal/table"
)

// newRepository is a test hook that points to NewRepository by default.
// Tests may replace this variable to avoid real DB connections.
var newRepository = NewRepository

var _ storage.Repository = (*wrappedRepo)(nil)

// wrappedRepo adapts *mysql.Repository to storage.Repository and provides Close.
type wrappedRepo struct {
	*Repository
	closeFn func()
}

// Close closes the underlying connection pool.
func (w *wrappedRepo) Close() { w.closeFn() }

var syntax = ddl.Syntax{Name: "mysql ddl", Quote: myIdent}

// MapType maps a column kind into a MySQL column type.
func MapType(k table.Kind) string {
	switch k {
	case table.Int:
		return "BIGINT"
	case table.Float:
		return "DOUBLE"
	case table.Bool:
		return "BOOLEAN"
	case table.Date:
		return "DATE"
	case table.DateTime:
		return "DATETIME"
	default:
		return "VARCHAR(255)"
	}
}

// Value binds timestamps in UTC; DATETIME carries no zone.
func Value(v any, _ table.Kind) any {
	if ts, ok := v.(time.Time); ok {
		return ts.UTC()
	}
	return v
}

// init registers the "mysql" backend with the factory.
func init() {
	storage.Register("mysql", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		r, closeFn, err := newRepository(ctx, Config{
			DSN:     cfg.DSN,
			Table:   cfg.Table,
			Columns: cfg.Columns,
		})
		if err != nil {
			return nil, err
		}
		return &wrappedRepo{Repository: r, closeFn: closeFn}, nil
	})
	storage.RegisterDialect("mysql", storage.Dialect{Syntax: syntax, MapType: MapType, Value: Value})
}
