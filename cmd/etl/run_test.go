package main

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Gerardo1909/ecommerce-reporting-etl/internal/config"
	"github.com/Gerardo1909/ecommerce-reporting-etl/internal/extract"
	"github.com/Gerardo1909/ecommerce-reporting-etl/internal/load"
	"github.com/Gerardo1909/ecommerce-reporting-etl/internal/objectstore"
	"github.com/Gerardo1909/ecommerce-reporting-etl/internal/transformer"
)

var sampleFiles = map[string]string{
	"orders": "order_id,customer_id,order_date,status,promotion_id\n" +
		"o1,c1,2024-01-05,delivered,\n" +
		"o2,c2,2024-01-20,cancelled,PR1\n" +
		"o3,c1,not-a-date,delivered,\n",
	"order_items": "order_id,product_id,quantity,unit_price\n" +
		"o1,p1,2,10\n" +
		"o2,p2,1,5\n",
	"customers":  "customer_id,segment\nc1,retail\nc2,wholesale\n",
	"products":   "product_id,category_id,unit_price\np1,cat1,10\np2,cat1,5\n",
	"categories": "category_id,category_name\ncat1,Electronics\n",
	"inventory":  "product_id,warehouse_id,stock_quantity\np1,w1,5\n",
	"promotions": "promotion_id,start_date,end_date\nPR1,,\n",
}

func writeSample(t *testing.T, skip string) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range sampleFiles {
		if name == skip {
			continue
		}
		if err := os.WriteFile(filepath.Join(dir, "ecommerce_"+name+".csv"), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func testPipeline(src, out string) *config.Pipeline {
	p := &config.Pipeline{
		Job:    "test",
		Source: config.Source{Kind: "file", Dir: src},
		Output: config.Output{Dir: out, Formats: []string{"csv"}},
	}
	p.ApplyDefaults()
	return p
}

func fixedRunID(t *testing.T, id string) {
	t.Helper()
	orig := newRunID
	newRunID = func() string { return id }
	t.Cleanup(func() { newRunID = orig })
}

func TestRunPipelineWritesRun(t *testing.T) {
	fixedRunID(t, "run-a")
	out := t.TempDir()
	p := testPipeline(writeSample(t, ""), out)

	dir, err := runPipeline(context.Background(), p, true)
	if err != nil {
		t.Fatalf("runPipeline: %v", err)
	}
	if dir != filepath.Join(out, "run-a") {
		t.Fatalf("dir=%s", dir)
	}
	for _, f := range []string{"processed/orders.csv", "processed/warehouses.csv", "reports/top_customers.csv", "reports/inventory_status.csv"} {
		if _, err := os.Stat(filepath.Join(dir, f)); err != nil {
			t.Errorf("missing %s: %v", f, err)
		}
	}

	m, err := load.ReadManifest(filepath.Join(dir, load.ManifestFile))
	if err != nil {
		t.Fatal(err)
	}
	if m.RunID != "run-a" || m.Job != "test" || m.Source != p.Source.Dir {
		t.Errorf("manifest header %+v", m)
	}
	if strings.Join(m.Missing, ",") != "brands,reviews,suppliers,warehouses" {
		t.Errorf("missing=%v", m.Missing)
	}
	if len(m.Inputs) != 7 {
		t.Errorf("inputs=%d want 7", len(m.Inputs))
	}
	if m.Transform == nil || m.Transform.RowsDropped() != 1 {
		t.Errorf("transform report %+v", m.Transform)
	}

	orders, err := os.ReadFile(filepath.Join(dir, "processed", "orders.csv"))
	if err != nil {
		t.Fatal(err)
	}
	if lines := strings.Count(string(orders), "\n"); lines != 3 {
		t.Errorf("orders.csv has %d lines, want header + 2", lines)
	}
}

func TestRunPipelineSchemaError(t *testing.T) {
	fixedRunID(t, "run-b")
	out := t.TempDir()
	p := testPipeline(writeSample(t, "inventory"), out)

	_, err := runPipeline(context.Background(), p, false)
	var se *transformer.SchemaError
	if !errors.As(err, &se) || se.Table != "inventory" {
		t.Fatalf("err=%v want schema error for inventory", err)
	}
	entries, _ := os.ReadDir(out)
	if len(entries) != 0 {
		t.Fatalf("output written on schema error: %v", entries)
	}
}

// fakeBucket serves the sample files and records uploads.
type fakeBucket struct {
	files    map[string]string
	uploaded []string
}

func (f *fakeBucket) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	body, ok := f.files[name]
	if !ok {
		return nil, extract.ErrNotFound
	}
	return io.NopCloser(strings.NewReader(body)), nil
}

func (f *fakeBucket) UploadDir(ctx context.Context, dir, sub string) (int, error) {
	f.uploaded = append(f.uploaded, dir+"->"+sub)
	return 1, nil
}

func TestRunPipelineS3(t *testing.T) {
	fixedRunID(t, "run-c")
	bucket := &fakeBucket{files: sampleFiles}
	orig := newBucketStore
	var buckets []string
	newBucketStore = func(ctx context.Context, cfg objectstore.Config) (bucketStore, error) {
		buckets = append(buckets, cfg.Bucket)
		return bucket, nil
	}
	t.Cleanup(func() { newBucketStore = orig })

	out := t.TempDir()
	p := testPipeline("", out)
	p.Source = config.Source{Kind: "s3", S3: objectstore.Config{Bucket: "raw"}}
	p.Output.S3 = objectstore.Config{Bucket: "reports"}

	dir, err := runPipeline(context.Background(), p, false)
	if err != nil {
		t.Fatalf("runPipeline: %v", err)
	}
	if strings.Join(buckets, ",") != "raw,reports" {
		t.Errorf("buckets=%v", buckets)
	}
	if len(bucket.uploaded) != 1 || bucket.uploaded[0] != dir+"->run-c" {
		t.Errorf("uploaded=%v", bucket.uploaded)
	}
}

func TestRunPipelineBadOutput(t *testing.T) {
	fixedRunID(t, "run-d")
	out := t.TempDir()
	p := testPipeline(writeSample(t, ""), out)
	p.Output.Formats = []string{"avro"}

	if _, err := runPipeline(context.Background(), p, false); err == nil {
		t.Fatal("expected error for unknown format")
	}
	entries, _ := os.ReadDir(out)
	if len(entries) != 0 {
		t.Fatalf("left behind: %v", entries)
	}
}

func TestCSVOptions(t *testing.T) {
	got := csvOptions(config.Parser{Options: config.Options{
		"comma":      ";",
		"trim_space": true,
		"header_map": map[string]any{"Order ID": "order_id"},
	}})
	if got.Comma != ';' || !got.TrimSpace || got.HeaderMap["Order ID"] != "order_id" {
		t.Fatalf("csvOptions = %+v", got)
	}
	if d := csvOptions(config.Parser{Options: config.Options{}}); d.Comma != ',' || d.TrimSpace {
		t.Fatalf("defaults = %+v", d)
	}
}

func TestNewMetricsBackend(t *testing.T) {
	for _, name := range []string{"", "none"} {
		b, err := newMetricsBackend("job", config.Metrics{Backend: name})
		if b != nil || err != nil {
			t.Errorf("%q: %v, %v", name, b, err)
		}
	}
	if _, err := newMetricsBackend("job", config.Metrics{Backend: "pushgateway"}); err == nil {
		t.Error("pushgateway without url: expected error")
	}
	if _, err := newMetricsBackend("job", config.Metrics{Backend: "datadog"}); err == nil {
		t.Error("datadog without addr: expected error")
	}
	if _, err := newMetricsBackend("job", config.Metrics{Backend: "statsd"}); err == nil {
		t.Error("unknown backend: expected error")
	}
	b, err := newMetricsBackend("job", config.Metrics{Backend: "pushgateway", PushgatewayURL: "http://localhost:9091"})
	if err != nil || b == nil {
		t.Errorf("pushgateway: %v, %v", b, err)
	}
}

func TestErrAgg(t *testing.T) {
	a := newErrAgg(2)
	for _, m := range []string{"a", "b", "c"} {
		a.add(m)
	}
	if a.count != 3 || strings.Join(a.first, ",") != "a,b" {
		t.Fatalf("agg = %+v", a)
	}
}
