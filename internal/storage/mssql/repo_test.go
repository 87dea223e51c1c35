package mssql

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/Gerardo1909/ecommerce-reporting-etl/internal/ddl"
	"github.com/Gerardo1909/ecommerce-reporting-etl/internal/storage"
	"github.com/Gerardo1909/ecommerce-reporting-etl/internal/table"
)

// TestCopyFromEmptyRows verifies that CopyFrom short-circuits when no rows
// are provided and does not require a live database connection.
func TestCopyFromEmptyRows(t *testing.T) {
	t.Parallel()

	r := &Repository{cfg: Config{Table: "dbo.t"}}
	n, err := r.CopyFrom(context.Background(), []string{"id"}, nil)
	if err != nil || n != 0 {
		t.Fatalf("CopyFrom(nil) = %d, %v; want 0, nil", n, err)
	}
}

func TestMsFQN(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"dbo.orders": "[dbo].[orders]",
		"orders":     "[orders]",
		"dbo.we]ird": "[dbo].[we]]ird]",
		"a. b .c":    "[a].[b].[c]",
	}
	for in, want := range cases {
		if got := msFQN(in); got != want {
			t.Errorf("msFQN(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCreateTableSQLIsGuarded(t *testing.T) {
	t.Parallel()

	d, err := storage.DialectFor("mssql")
	if err != nil {
		t.Fatal(err)
	}
	cols := []table.Column{
		{Name: "customer_id", Kind: table.Text},
		{Name: "total_spend", Kind: table.Float},
		{Name: "is_top_20_percent", Kind: table.Bool},
	}
	got, err := ddl.BuildCreateTableSQL(ddl.FromColumns("dbo.top_customers", cols, []string{"customer_id"}, d.MapType), d.Syntax)
	if err != nil {
		t.Fatal(err)
	}
	want := "IF OBJECT_ID(N'[dbo].[top_customers]', N'U') IS NULL\nBEGIN\n" +
		"  CREATE TABLE [dbo].[top_customers] (\n" +
		"  [customer_id] NVARCHAR(450) NOT NULL,\n" +
		"  [total_spend] FLOAT NOT NULL,\n" +
		"  [is_top_20_percent] BIT NOT NULL,\n" +
		"  PRIMARY KEY ([customer_id])\n);\nEND;"
	if got != want {
		t.Fatalf("got:\n%s\nwant:\n%s", got, want)
	}
}

func TestAdapterUsesHook(t *testing.T) {
	orig := newRepository
	defer func() { newRepository = orig }()

	var got Config
	closed := false
	newRepository = func(ctx context.Context, cfg Config) (*Repository, func(), error) {
		got = cfg
		return &Repository{}, func() { closed = true }, nil
	}
	repo, err := storage.New(context.Background(), storage.Config{Kind: "mssql", DSN: "sqlserver://sa@localhost", Table: "dbo.t", Columns: []string{"a"}})
	if err != nil {
		t.Fatalf("storage.New: %v", err)
	}
	if got.Table != "dbo.t" || got.DSN != "sqlserver://sa@localhost" {
		t.Errorf("cfg=%+v", got)
	}
	repo.Close()
	if !closed {
		t.Error("Close not delegated")
	}
}

// TestExecPropagatesError verifies that Exec forwards errors from the underlying
// *sql.DB.ExecContext call when the driver returns an error.
func TestExecPropagatesError(t *testing.T) {
	t.Parallel()

	r := &Repository{db: openErrDB(t), cfg: Config{Table: "dbo.t"}}
	err := r.Exec(context.Background(), "SELECT 1")
	if err == nil || !strings.Contains(err.Error(), "exec failed") {
		t.Fatalf("Exec() error = %v, want exec failed", err)
	}
}

// TestCopyFromBeginTxError verifies that CopyFrom surfaces errors from
// db.BeginTx before any bulk-copy logic runs.
func TestCopyFromBeginTxError(t *testing.T) {
	t.Parallel()

	r := &Repository{db: openErrDB(t), cfg: Config{Table: "dbo.t"}}
	n, err := r.CopyFrom(context.Background(), []string{"id", "name"}, [][]any{{1, "alice"}, {2, "bob"}})
	if err == nil || n != 0 {
		t.Fatalf("CopyFrom() = %d, %v; want 0 and an error", n, err)
	}
	if !strings.Contains(err.Error(), "begin tx:") {
		t.Fatalf("CopyFrom() error = %q, want it wrapped with 'begin tx:'", err.Error())
	}
}

// --- Test driver plumbing for exercising Exec and CopyFrom without a real DB --

type errDriver struct{}

type errConn struct{}

type errTx struct{}

func (d *errDriver) Open(name string) (driver.Conn, error) {
	return &errConn{}, nil
}

// Prepare is not expected to be called in our tests; if it is, fail loudly.
func (c *errConn) Prepare(query string) (driver.Stmt, error) {
	return nil, errors.New("unexpected Prepare call")
}

func (c *errConn) Close() error { return nil }

// Begin is required by driver.Conn; database/sql calls BeginTx when available.
func (c *errConn) Begin() (driver.Tx, error) {
	return nil, errors.New("begin (legacy) should not be called")
}

// BeginTx implements driver.ConnBeginTx and always fails, to exercise the
// error path in Repository.CopyFrom.
func (c *errConn) BeginTx(ctx context.Context, opts driver.TxOptions) (driver.Tx, error) {
	return nil, errors.New("begin failed")
}

// ExecContext implements driver.ExecerContext and always fails, to exercise
// the error path in Repository.Exec.
func (c *errConn) ExecContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	return nil, errors.New("exec failed")
}

// We don't expect queries in these tests.
func (c *errConn) QueryContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	return nil, errors.New("unexpected QueryContext call")
}

func (t *errTx) Commit() error   { return nil }
func (t *errTx) Rollback() error { return nil }

var (
	testDriverOnce sync.Once
	testDriverName = "mssql_test_err"
)

// openErrDB registers and opens a test driver that fails BeginTx and ExecContext.
func openErrDB(t *testing.T) *sql.DB {
	t.Helper()

	testDriverOnce.Do(func() {
		sql.Register(testDriverName, &errDriver{})
	})
	db, err := sql.Open(testDriverName, "")
	if err != nil {
		t.Fatalf("sql.Open(%q) error = %v", testDriverName, err)
	}
	return db
}
