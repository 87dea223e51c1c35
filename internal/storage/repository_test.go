package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Gerardo1909/ecommerce-reporting-etl/internal/ddl"
	"github.com/Gerardo1909/ecommerce-reporting-etl/internal/schema"
	"github.com/Gerardo1909/ecommerce-reporting-etl/internal/table"
)

// fakeRepo records what WriteTable sends to a backend. failAt makes the
// n-th CopyFrom call fail with failErr.
type fakeRepo struct {
	mu      sync.Mutex
	closed  bool
	execs   []string
	rows    [][]any
	batches []int
	failAt  int
	failErr error
}

func (f *fakeRepo) CopyFrom(ctx context.Context, columns []string, rows [][]any) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, len(rows))
	if f.failAt > 0 && len(f.batches) == f.failAt {
		return 0, f.failErr
	}
	f.rows = append(f.rows, rows...)
	return int64(len(rows)), nil
}

func (f *fakeRepo) Close() { f.closed = true }

func (f *fakeRepo) Exec(ctx context.Context, sql string) error {
	f.execs = append(f.execs, sql)
	return nil
}

var fakeDialect = Dialect{
	Syntax:  ddl.Syntax{Name: "fake", Quote: func(s string) string { return "`" + s + "`" }},
	MapType: func(k table.Kind) string { return strings.ToUpper(string(k)) },
	Value: func(v any, k table.Kind) any {
		if ts, ok := v.(time.Time); ok && k == table.Date {
			return ts.Format(table.DateLayout)
		}
		return v
	},
}

// registerFake wires repo under a kind unique to the calling test.
func registerFake(t *testing.T, repo *fakeRepo) string {
	t.Helper()
	kind := "fake-" + strings.ToLower(t.Name())
	Register(kind, func(ctx context.Context, cfg Config) (Repository, error) { return repo, nil })
	RegisterDialect(kind, fakeDialect)
	return kind
}

// ordersTable holds n cleaned orders rows spread over January 2024.
func ordersTable(n int) table.Table {
	rows := make([]table.Row, n)
	for i := range rows {
		rows[i] = table.Row{
			fmt.Sprintf("o%03d", i), fmt.Sprintf("c%d", i%3),
			time.Date(2024, 1, 1+i%28, 0, 0, 0, 0, time.UTC),
			"delivered", nil, float64(10 * (i + 1)), 4.99, nil,
		}
	}
	return table.New(schema.Orders, schema.DefaultContracts()[schema.Orders].Columns(), rows)
}

func TestBackendRegistry(t *testing.T) {
	t.Parallel()

	kind := registerFake(t, &fakeRepo{})

	kinds := ListKinds()
	if !sort.StringsAreSorted(kinds) {
		t.Errorf("kinds not sorted: %v", kinds)
	}
	if i := sort.SearchStrings(kinds, kind); i == len(kinds) || kinds[i] != kind {
		t.Fatalf("%s missing from %v", kind, kinds)
	}
	kinds[0] = "mutated"
	if ListKinds()[0] == "mutated" {
		t.Error("ListKinds exposed the registry")
	}

	if _, err := DialectFor(kind); err != nil {
		t.Errorf("DialectFor(%s): %v", kind, err)
	}
	if repo, err := New(context.Background(), Config{Kind: kind, Table: "rpt.orders"}); err != nil || repo == nil {
		t.Errorf("New(%s) = %v, %v", kind, repo, err)
	}

	if _, err := New(context.Background(), Config{Kind: "oracle"}); err == nil || err.Error() != "unsupported storage.kind=oracle" {
		t.Errorf("New(oracle) err=%v", err)
	}
	if _, err := DialectFor("oracle"); err == nil {
		t.Error("DialectFor(oracle) succeeded")
	}
}

func TestWriteTableUsesLatestRegistration(t *testing.T) {
	t.Parallel()

	stale, current := &fakeRepo{}, &fakeRepo{}
	kind := registerFake(t, stale)
	Register(kind, func(ctx context.Context, cfg Config) (Repository, error) { return current, nil })

	if _, err := WriteTable(context.Background(), kind, "", "rpt.orders", ordersTable(2), WriteOptions{}); err != nil {
		t.Fatalf("WriteTable: %v", err)
	}
	if len(stale.rows) != 0 || len(current.rows) != 2 {
		t.Fatalf("stale=%d current=%d", len(stale.rows), len(current.rows))
	}
}

func TestWriteTableOpenError(t *testing.T) {
	t.Parallel()

	kind := registerFake(t, nil)
	refused := errors.New("connection refused")
	Register(kind, func(ctx context.Context, cfg Config) (Repository, error) { return nil, refused })

	n, err := WriteTable(context.Background(), kind, "", "rpt.orders", ordersTable(3), WriteOptions{})
	if !errors.Is(err, refused) || !strings.Contains(err.Error(), "open rpt.orders") || n != 0 {
		t.Fatalf("n=%d err=%v", n, err)
	}
}
