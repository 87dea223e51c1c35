// Package all wires all built-in storage backends into the storage factory.
//
// It exists for side effects only: importing it runs the init functions of
// each backend, which register their factories and dialects. The following
// storage kinds become available:
//
//   - "postgres" (internal/storage/postgres)
//   - "mysql"    (internal/storage/mysql)
//   - "mssql"    (internal/storage/mssql)
//   - "sqlite"   (internal/storage/sqlite)
//
// Typical usage:
//
//	import _ "github.com/Gerardo1909/ecommerce-reporting-etl/internal/storage/all"
//
//	n, err := storage.WriteTable(ctx, "postgres", dsn, "reporting.top_products", t, opt)
//
// A binary that needs only a subset of backends can blank-import those
// packages directly instead.
package all

import (
	_ "github.com/Gerardo1909/ecommerce-reporting-etl/internal/storage/mssql"
	_ "github.com/Gerardo1909/ecommerce-reporting-etl/internal/storage/mysql"
	_ "github.com/Gerardo1909/ecommerce-reporting-etl/internal/storage/postgres"
	_ "github.com/Gerardo1909/ecommerce-reporting-etl/internal/storage/sqlite"
)
