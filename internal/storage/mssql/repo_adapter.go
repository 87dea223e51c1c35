// Package mssql provides an MSSQL-backed storage.Repository implementation.
// This adapter wires the MSSQL backend into the storage-agnostic factory.
package mssql

import (
	"context"
	"fmt"

	"github.com/Gerardo1909/ecommerce-reporting-etl/internal/ddl"
	"github.com/Gerardo1909/ecommerce-reporting-etl/internal/storage"
	"github.com/Gerardo1909/ecommerce-reporting-etl/internal/table"
)

// newRepository is a test hook that points to NewRepository by default.
// Tests may replace this variable to avoid real DB connections.
var newRepository = NewRepository

var _ storage.Repository = (*wrappedRepo)(nil)

// wrappedRepo adapts *mssql.Repository to storage.Repository and provides Close.
type wrappedRepo struct {
	*Repository
	closeFn func()
}

func (w *wrappedRepo) Close() { w.closeFn() }

// T-SQL has no CREATE TABLE IF NOT EXISTS; guard on OBJECT_ID instead.
var syntax = ddl.Syntax{
	Name:  "mssql ddl",
	Quote: msIdent,
	Guard: func(quoted, create string) string {
		return fmt.Sprintf("IF OBJECT_ID(N'%s', N'U') IS NULL\nBEGIN\n  %s;\nEND;", quoted, create)
	},
}

// MapType maps a column kind into a SQL Server column type. Text is
// NVARCHAR(450), the widest type SQL Server accepts in a primary key.
func MapType(k table.Kind) string {
	switch k {
	case table.Int:
		return "BIGINT"
	case table.Float:
		return "FLOAT"
	case table.Bool:
		return "BIT"
	case table.Date:
		return "DATE"
	case table.DateTime:
		return "DATETIME2"
	default:
		return "NVARCHAR(450)"
	}
}

func init() {
	storage.Register("mssql", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		r, closeFn, err := newRepository(ctx, Config{DSN: cfg.DSN, Table: cfg.Table, Columns: cfg.Columns})
		if err != nil {
			return nil, err
		}
		return &wrappedRepo{Repository: r, closeFn: closeFn}, nil
	})
	storage.RegisterDialect("mssql", storage.Dialect{Syntax: syntax, MapType: MapType})
}
