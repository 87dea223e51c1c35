package load

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/memory"
	"github.com/apache/arrow/go/v17/parquet"
	"github.com/apache/arrow/go/v17/parquet/compress"
	"github.com/apache/arrow/go/v17/parquet/pqarrow"

	"github.com/Gerardo1909/ecommerce-reporting-etl/internal/table"
)

// ParquetWriter writes <dir>/<kind>/<name>.parquet through Arrow.
type ParquetWriter struct {
	dir   string
	codec compress.Compression
	mem   memory.Allocator
}

// NewParquetWriter returns a writer rooted at dir using the named codec.
func NewParquetWriter(dir, compression string) (*ParquetWriter, error) {
	codec, err := ParseCompression(compression)
	if err != nil {
		return nil, err
	}
	return &ParquetWriter{dir: dir, codec: codec, mem: memory.NewGoAllocator()}, nil
}

// ParseCompression maps a codec name to its parquet codec. Empty means snappy.
func ParseCompression(name string) (compress.Compression, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "snappy":
		return compress.Codecs.Snappy, nil
	case "gzip":
		return compress.Codecs.Gzip, nil
	case "zstd":
		return compress.Codecs.Zstd, nil
	case "none", "uncompressed":
		return compress.Codecs.Uncompressed, nil
	}
	return compress.Codecs.Uncompressed, fmt.Errorf("unknown parquet compression %q", name)
}

func (w *ParquetWriter) Write(ctx context.Context, kind, name string, t table.Table) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := w.encode(&buf, t); err != nil {
		return fmt.Errorf("parquet %s: %w", name, err)
	}
	path := filepath.Join(w.dir, kind, name+".parquet")
	if err := mkdirFor(path); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

func (w *ParquetWriter) Close() error { return nil }

func (w *ParquetWriter) encode(buf *bytes.Buffer, t table.Table) error {
	t = withObservedNulls(t)
	schema := ArrowSchema(t.Columns)
	rec, err := buildRecord(w.mem, schema, t)
	if err != nil {
		return err
	}
	defer rec.Release()

	props := parquet.NewWriterProperties(parquet.WithCompression(w.codec), parquet.WithAllocator(w.mem))
	fw, err := pqarrow.NewFileWriter(schema, buf, props, pqarrow.DefaultWriterProps())
	if err != nil {
		return err
	}
	if err := fw.Write(rec); err != nil {
		_ = fw.Close()
		return err
	}
	return fw.Close()
}

// ArrowSchema maps table columns onto Arrow fields.
func ArrowSchema(cols []table.Column) *arrow.Schema {
	fields := make([]arrow.Field, len(cols))
	for i, c := range cols {
		fields[i] = arrow.Field{Name: c.Name, Type: arrowType(c.Kind), Nullable: c.Nullable}
	}
	return arrow.NewSchema(fields, nil)
}

func arrowType(k table.Kind) arrow.DataType {
	switch k {
	case table.Int:
		return arrow.PrimitiveTypes.Int64
	case table.Float:
		return arrow.PrimitiveTypes.Float64
	case table.Bool:
		return arrow.FixedWidthTypes.Boolean
	case table.Date:
		return arrow.FixedWidthTypes.Date32
	case table.DateTime:
		return &arrow.TimestampType{Unit: arrow.Microsecond, TimeZone: "UTC"}
	default:
		return arrow.BinaryTypes.String
	}
}

func buildRecord(mem memory.Allocator, schema *arrow.Schema, t table.Table) (arrow.Record, error) {
	b := array.NewRecordBuilder(mem, schema)
	defer b.Release()

	for j, c := range t.Columns {
		fb := b.Field(j)
		for i, r := range t.Rows {
			v := r[j]
			if v == nil {
				fb.AppendNull()
				continue
			}
			if err := appendValue(fb, c.Kind, v); err != nil {
				return nil, fmt.Errorf("row %d column %s: %w", i, c.Name, err)
			}
		}
	}
	return b.NewRecord(), nil
}

func appendValue(fb array.Builder, k table.Kind, v any) error {
	switch k {
	case table.Int:
		n, ok := table.AsInt(v)
		if !ok {
			return fmt.Errorf("not an int: %T", v)
		}
		fb.(*array.Int64Builder).Append(n)
	case table.Float:
		f, ok := table.AsFloat(v)
		if !ok {
			return fmt.Errorf("not a float: %T", v)
		}
		fb.(*array.Float64Builder).Append(f)
	case table.Bool:
		x, ok := table.AsBool(v)
		if !ok {
			return fmt.Errorf("not a bool: %T", v)
		}
		fb.(*array.BooleanBuilder).Append(x)
	case table.Date:
		ts, ok := table.AsTime(v)
		if !ok {
			return fmt.Errorf("not a date: %T", v)
		}
		fb.(*array.Date32Builder).Append(arrow.Date32FromTime(ts.UTC()))
	case table.DateTime:
		ts, ok := table.AsTime(v)
		if !ok {
			return fmt.Errorf("not a timestamp: %T", v)
		}
		fb.(*array.TimestampBuilder).Append(arrow.Timestamp(ts.UTC().UnixMicro()))
	default:
		fb.(*array.StringBuilder).Append(table.AsString(v))
	}
	return nil
}
