package load

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/apache/arrow/go/v17/arrow/memory"
	"github.com/apache/arrow/go/v17/parquet"
	"github.com/apache/arrow/go/v17/parquet/compress"
	"github.com/apache/arrow/go/v17/parquet/pqarrow"
	"github.com/xuri/excelize/v2"

	"github.com/Gerardo1909/ecommerce-reporting-etl/internal/extract"
	_ "github.com/Gerardo1909/ecommerce-reporting-etl/internal/storage/sqlite"
	"github.com/Gerardo1909/ecommerce-reporting-etl/internal/table"
)

func ordersTable() table.Table {
	return table.New("orders", []table.Column{
		{Name: "order_id", Kind: table.Text},
		{Name: "order_date", Kind: table.Date},
		{Name: "total_amount", Kind: table.Float, Nullable: true},
		{Name: "items", Kind: table.Int},
		{Name: "paid", Kind: table.Bool, Nullable: true},
		{Name: "updated_at", Kind: table.DateTime, Nullable: true},
	}, []table.Row{
		{"o1", time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC), 10.5, int64(2), true, time.Date(2024, 1, 5, 10, 0, 0, 0, time.UTC)},
		{"o2", time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), nil, int64(1), nil, nil},
	})
}

func topTable() table.Table {
	return table.New("top_customers", []table.Column{
		{Name: "customer_id", Kind: table.Text},
		{Name: "total_spend", Kind: table.Float},
		{Name: "is_top_20_percent", Kind: table.Bool},
	}, []table.Row{
		{"c1", 20.0, true},
		{"c2", 5.0, false},
	})
}

func TestLoaderCommit(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dir := t.TempDir()
	dsn := filepath.Join(t.TempDir(), "out.db")
	l, err := New(Options{
		Job:     "test",
		Dir:     dir,
		Formats: []string{"csv", "parquet", "xlsx", "db", "csv"},
		DB:      DBOptions{Kind: "sqlite", DSN: dsn, Prefix: "etl_"},
		Keys:    map[string][]string{"orders": {"order_id"}},
	}, "run-1")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := l.Write(ctx, Processed, "orders", ordersTable()); err != nil {
		t.Fatalf("write orders: %v", err)
	}
	if err := l.WriteAll(ctx, Reports, []table.Table{topTable()}); err != nil {
		t.Fatalf("write reports: %v", err)
	}
	started := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	final, err := l.Commit(&Manifest{
		Job:     "test",
		Started: started,
		Inputs:  []extract.Profile{{Table: "orders", Rows: 2, Digest: "00000000000000ff"}},
	})
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if final != filepath.Join(dir, "run-1") {
		t.Fatalf("final=%s", final)
	}
	if _, err := os.Stat(l.StagingDir()); !os.IsNotExist(err) {
		t.Fatalf("staging still present: %v", err)
	}
	for _, p := range []string{
		"processed/orders.csv", "processed/orders.parquet",
		"reports/top_customers.csv", "reports/top_customers.parquet",
		"reports/reports.xlsx", "manifest.json",
	} {
		if _, err := os.Stat(filepath.Join(final, p)); err != nil {
			t.Errorf("missing %s: %v", p, err)
		}
	}
	if _, err := os.Stat(filepath.Join(final, "processed", "reports.xlsx")); err == nil {
		t.Error("processed tables must not go to the workbook")
	}

	latest, err := os.ReadFile(filepath.Join(dir, LatestFile))
	if err != nil || strings.TrimSpace(string(latest)) != "run-1" {
		t.Fatalf("LATEST=%q err=%v", latest, err)
	}

	m, err := ReadManifest(filepath.Join(final, ManifestFile))
	if err != nil {
		t.Fatal(err)
	}
	if m.RunID != "run-1" || m.Job != "test" || !m.Started.Equal(started) || m.Finished.IsZero() {
		t.Errorf("manifest header %+v", m)
	}
	wantOut := []OutputEntry{{Kind: Processed, Name: "orders", Rows: 2}, {Kind: Reports, Name: "top_customers", Rows: 2}}
	if !reflect.DeepEqual(m.Outputs, wantOut) {
		t.Errorf("outputs=%+v", m.Outputs)
	}
	if len(m.Inputs) != 1 || m.Inputs[0].Digest != "00000000000000ff" {
		t.Errorf("inputs=%+v", m.Inputs)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM "etl_top_customers"`).Scan(&n); err != nil || n != 2 {
		t.Fatalf("db rows=%d err=%v", n, err)
	}
	if err := db.QueryRow(`SELECT COUNT(*) FROM "etl_orders" WHERE total_amount IS NULL`).Scan(&n); err != nil || n != 1 {
		t.Fatalf("db null rows=%d err=%v", n, err)
	}
}

func TestCSVOutput(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	w := NewCSVWriter(dir)
	if err := w.Write(context.Background(), Processed, "orders", ordersTable()); err != nil {
		t.Fatal(err)
	}
	f, err := os.Open(filepath.Join(dir, Processed, "orders.csv"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	recs, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	want := [][]string{
		{"order_id", "order_date", "total_amount", "items", "paid", "updated_at"},
		{"o1", "2024-01-05", "10.5", "2", "true", "2024-01-05T10:00:00Z"},
		{"o2", "2024-02-01", "", "1", "", ""},
	}
	if !reflect.DeepEqual(recs, want) {
		t.Fatalf("csv=%v", recs)
	}
}

func TestParquetRoundTrip(t *testing.T) {
	t.Parallel()

	for _, codec := range []string{"", "gzip", "zstd", "none"} {
		dir := t.TempDir()
		w, err := NewParquetWriter(dir, codec)
		if err != nil {
			t.Fatalf("%q: %v", codec, err)
		}
		if err := w.Write(context.Background(), Processed, "orders", ordersTable()); err != nil {
			t.Fatalf("%q: write: %v", codec, err)
		}
		data, err := os.ReadFile(filepath.Join(dir, Processed, "orders.parquet"))
		if err != nil {
			t.Fatal(err)
		}
		mem := memory.NewGoAllocator()
		tbl, err := pqarrow.ReadTable(context.Background(), bytes.NewReader(data), parquet.NewReaderProperties(mem), pqarrow.ArrowReadProperties{}, mem)
		if err != nil {
			t.Fatalf("%q: read: %v", codec, err)
		}
		if tbl.NumRows() != 2 || tbl.NumCols() != 6 {
			t.Errorf("%q: rows=%d cols=%d", codec, tbl.NumRows(), tbl.NumCols())
		}
		if got := tbl.Schema().Field(1).Name; got != "order_date" {
			t.Errorf("%q: field 1 = %s", codec, got)
		}
		tbl.Release()
	}
}

func TestParseCompression(t *testing.T) {
	t.Parallel()

	cases := map[string]compress.Compression{
		"":       compress.Codecs.Snappy,
		"SNAPPY": compress.Codecs.Snappy,
		"gzip":   compress.Codecs.Gzip,
		"zstd":   compress.Codecs.Zstd,
		"none":   compress.Codecs.Uncompressed,
	}
	for in, want := range cases {
		got, err := ParseCompression(in)
		if err != nil || got != want {
			t.Errorf("ParseCompression(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseCompression("lz77"); err == nil {
		t.Error("expected error for unknown codec")
	}
}

func TestParquetRejectsWrongCellType(t *testing.T) {
	t.Parallel()

	w, err := NewParquetWriter(t.TempDir(), "")
	if err != nil {
		t.Fatal(err)
	}
	bad := table.New("bad", []table.Column{{Name: "n", Kind: table.Int}}, []table.Row{{"x"}})
	if err := w.Write(context.Background(), Reports, "bad", bad); err == nil {
		t.Fatal("expected type error")
	}
}

func TestXLSXWorkbook(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	w := NewXLSXWriter(dir)
	ctx := context.Background()
	second := topTable()
	second.Name = "a_report_with_a_name_longer_than_excel_allows"
	if err := w.Write(ctx, Reports, "top_customers", topTable()); err != nil {
		t.Fatal(err)
	}
	if err := w.Write(ctx, Reports, second.Name, second); err != nil {
		t.Fatal(err)
	}
	if err := w.Write(ctx, Processed, "orders", ordersTable()); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	f, err := excelize.OpenFile(filepath.Join(dir, Reports, WorkbookName))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	sheets := f.GetSheetList()
	want := []string{"top_customers", second.Name[:maxSheetName]}
	if !reflect.DeepEqual(sheets, want) {
		t.Fatalf("sheets=%v", sheets)
	}
	rows, err := f.GetRows("top_customers")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 || rows[0][0] != "customer_id" || rows[1][0] != "c1" || rows[1][1] != "20" {
		t.Fatalf("rows=%v", rows)
	}
}

func TestXLSXCloseWithoutReports(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	w := NewXLSXWriter(dir)
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(dir, Reports, WorkbookName)); !os.IsNotExist(err) {
		t.Fatalf("workbook written without reports: %v", err)
	}
}

type failWriter struct{}

func (failWriter) Write(context.Context, string, string, table.Table) error {
	return errors.New("disk full")
}
func (failWriter) Close() error { return nil }

func TestAbortRemovesStaging(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	l, err := New(Options{Dir: dir, Formats: []string{"csv"}}, "run-2")
	if err != nil {
		t.Fatal(err)
	}
	l.writers = append(l.writers, failWriter{})
	err = l.Write(context.Background(), Processed, "orders", ordersTable())
	if err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Fatalf("err=%v", err)
	}
	l.Abort()
	l.Abort()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Fatalf("left behind: %v", entries)
	}
}

func TestNewRejectsBadOptions(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cases := []struct {
		name string
		opt  Options
		id   string
	}{
		{"no id", Options{Dir: dir, Formats: []string{"csv"}}, ""},
		{"no dir", Options{Formats: []string{"csv"}}, "r"},
		{"no formats", Options{Dir: dir}, "r"},
		{"unknown format", Options{Dir: dir, Formats: []string{"avro"}}, "r"},
		{"bad codec", Options{Dir: dir, Formats: []string{"parquet"}, Compression: "lz77"}, "r"},
		{"db without dsn", Options{Dir: dir, Formats: []string{"db"}, DB: DBOptions{Kind: "sqlite"}}, "r"},
		{"db unknown kind", Options{Dir: dir, Formats: []string{"db"}, DB: DBOptions{Kind: "oracle", DSN: "x"}}, "r"},
	}
	for _, tc := range cases {
		if _, err := New(tc.opt, tc.id); err == nil {
			t.Errorf("%s: expected error", tc.name)
		}
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("failed New left %v", entries)
	}
}

func TestWriteRejectsUnknownKind(t *testing.T) {
	t.Parallel()

	l, err := New(Options{Dir: t.TempDir(), Formats: []string{"csv"}}, "r")
	if err != nil {
		t.Fatal(err)
	}
	defer l.Abort()
	if err := l.Write(context.Background(), "raw", "x", topTable()); err == nil {
		t.Fatal("expected error")
	}
}

type fakeUploader struct {
	dir, sub string
	err      error
}

func (f *fakeUploader) UploadDir(ctx context.Context, dir, sub string) (int, error) {
	f.dir, f.sub = dir, sub
	return 3, f.err
}

func TestUpload(t *testing.T) {
	t.Parallel()

	u := &fakeUploader{}
	if err := Upload(context.Background(), u, "/out/run-1", "runs/run-1"); err != nil {
		t.Fatal(err)
	}
	if u.dir != "/out/run-1" || u.sub != "runs/run-1" {
		t.Errorf("upload got %+v", u)
	}
	u.err = errors.New("denied")
	if err := Upload(context.Background(), u, "d", "s"); err == nil || !strings.Contains(err.Error(), "denied") {
		t.Errorf("err=%v", err)
	}
}

func TestNullKeyDisablesPrimaryKey(t *testing.T) {
	t.Parallel()

	tb := table.New("customers", []table.Column{{Name: "customer_id", Kind: table.Text, Nullable: true}}, []table.Row{{"c1"}, {nil}})
	if !nullKey(tb, []string{"customer_id"}) {
		t.Error("null key not detected")
	}
	if nullKey(ordersTable(), []string{"order_id"}) {
		t.Error("orders has no null keys")
	}
	if !nullKey(ordersTable(), []string{"missing"}) {
		t.Error("missing key column must disable the key")
	}
}

// A null kept by validation in a column the contract declares required must
// reach every sink as a null.
func TestRetainedNullInRequiredColumn(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	orders := table.New("orders", []table.Column{
		{Name: "order_id", Kind: table.Text},
		{Name: "customer_id", Kind: table.Text},
		{Name: "order_date", Kind: table.Date},
	}, []table.Row{
		{"o1", "c1", time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)},
		{"o2", "c1", nil},
	})

	dir := t.TempDir()
	dsn := filepath.Join(t.TempDir(), "out.db")
	l, err := New(Options{
		Job:     "test",
		Dir:     dir,
		Formats: []string{"parquet", "db"},
		DB:      DBOptions{Kind: "sqlite", DSN: dsn},
		Keys:    map[string][]string{"orders": {"order_id"}},
	}, "run-null")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := l.Write(ctx, Processed, "orders", orders); err != nil {
		t.Fatalf("write: %v", err)
	}
	final, err := l.Commit(&Manifest{Job: "test"})
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(final, Processed, "orders.parquet"))
	if err != nil {
		t.Fatal(err)
	}
	mem := memory.NewGoAllocator()
	tbl, err := pqarrow.ReadTable(ctx, bytes.NewReader(data), parquet.NewReaderProperties(mem), pqarrow.ArrowReadProperties{}, mem)
	if err != nil {
		t.Fatalf("read parquet: %v", err)
	}
	defer tbl.Release()
	if f := tbl.Schema().Field(2); f.Name != "order_date" || !f.Nullable {
		t.Errorf("order_date field=%v", f)
	}
	if n := tbl.Column(2).Data().NullN(); n != 1 {
		t.Errorf("parquet order_date nulls=%d want 1", n)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM "orders" WHERE order_date IS NULL`).Scan(&n); err != nil || n != 1 {
		t.Fatalf("db null order_date rows=%d err=%v", n, err)
	}
}

func TestWithObservedNulls(t *testing.T) {
	t.Parallel()

	tb := ordersTable()
	if got := withObservedNulls(tb); !reflect.DeepEqual(got.Columns, tb.Columns) {
		t.Errorf("columns changed without nulls: %v", got.Columns)
	}
	tb = tb.WithRows(append(tb.Rows, table.Row{"o3", nil, nil, int64(1), nil, nil}))
	got := withObservedNulls(tb)
	if !got.Columns[1].Nullable || got.Columns[0].Nullable || got.Columns[3].Nullable {
		t.Errorf("columns=%v", got.Columns)
	}
	if tb.Columns[1].Nullable {
		t.Error("input schema was modified")
	}
}
