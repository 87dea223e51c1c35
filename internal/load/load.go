// Package load writes the transform output: cleaned tables and reports in
// every configured format, plus a run manifest.
//
// File outputs go to a staging directory first. Commit renames it into
// place; Abort removes it, so a failed run leaves no partial output.
package load

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/Gerardo1909/ecommerce-reporting-etl/internal/table"
)

// Output kinds.
const (
	Processed = "processed"
	Reports   = "reports"
)

// Output formats.
const (
	FormatParquet = "parquet"
	FormatCSV     = "csv"
	FormatXLSX    = "xlsx"
	FormatDB      = "db"
)

// LatestFile names the file in Dir holding the id of the last committed run.
const LatestFile = "LATEST"

// Writer writes one table of the given kind.
type Writer interface {
	Write(ctx context.Context, kind, name string, t table.Table) error
	// Close finishes anything buffered across Write calls.
	Close() error
}

// Uploader copies a finished run directory elsewhere (objectstore.S3).
type Uploader interface {
	UploadDir(ctx context.Context, dir, sub string) (int, error)
}

// Options configures a Loader.
type Options struct {
	Job     string
	Dir     string
	Formats []string
	// Compression is the parquet codec: snappy (default), gzip, zstd or none.
	Compression string
	DB          DBOptions
	// Keys maps processed table names to their natural key, used as primary
	// key of auto-created database tables.
	Keys map[string][]string
}

// Loader fans tables out to the configured writers for one run.
type Loader struct {
	opt     Options
	runID   string
	staging string
	writers []Writer
	outputs map[string]*OutputEntry
	closed  bool
}

// New prepares a run: it creates the staging directory and one writer per
// format.
func New(opt Options, runID string) (*Loader, error) {
	if runID == "" {
		return nil, fmt.Errorf("load: empty run id")
	}
	if opt.Dir == "" {
		return nil, fmt.Errorf("load: output dir is required")
	}
	if len(opt.Formats) == 0 {
		return nil, fmt.Errorf("load: no output formats")
	}
	staging := filepath.Join(opt.Dir, ".staging-"+runID)
	if err := os.MkdirAll(staging, 0o755); err != nil {
		return nil, fmt.Errorf("load: staging: %w", err)
	}
	l := &Loader{opt: opt, runID: runID, staging: staging, outputs: map[string]*OutputEntry{}}

	seen := map[string]bool{}
	for _, f := range opt.Formats {
		f = strings.ToLower(strings.TrimSpace(f))
		if seen[f] {
			continue
		}
		seen[f] = true
		var (
			w   Writer
			err error
		)
		switch f {
		case FormatParquet:
			w, err = NewParquetWriter(staging, opt.Compression)
		case FormatCSV:
			w = NewCSVWriter(staging)
		case FormatXLSX:
			w = NewXLSXWriter(staging)
		case FormatDB:
			w, err = NewDBWriter(opt.Job, opt.DB, opt.Keys)
		default:
			err = fmt.Errorf("unknown output format %q", f)
		}
		if err != nil {
			l.Abort()
			return nil, fmt.Errorf("load: %w", err)
		}
		l.writers = append(l.writers, w)
	}
	return l, nil
}

// RunID returns the run identifier.
func (l *Loader) RunID() string { return l.runID }

// StagingDir returns the directory files are written to before Commit.
func (l *Loader) StagingDir() string { return l.staging }

// Write hands t to every writer.
func (l *Loader) Write(ctx context.Context, kind, name string, t table.Table) error {
	if kind != Processed && kind != Reports {
		return fmt.Errorf("load: unknown kind %q", kind)
	}
	start := time.Now()
	for _, w := range l.writers {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := w.Write(ctx, kind, name, t); err != nil {
			return fmt.Errorf("load %s/%s: %w", kind, name, err)
		}
	}
	l.outputs[kind+"/"+name] = &OutputEntry{Kind: kind, Name: name, Rows: t.Len()}
	log.Printf("load: kind=%s table=%s rows=%d elapsed=%s", kind, name, t.Len(), time.Since(start).Truncate(time.Millisecond))
	return nil
}

// WriteAll writes tables in order under kind.
func (l *Loader) WriteAll(ctx context.Context, kind string, tables []table.Table) error {
	for _, t := range tables {
		if err := l.Write(ctx, kind, t.Name, t); err != nil {
			return err
		}
	}
	return nil
}

func (l *Loader) closeWriters() error {
	if l.closed {
		return nil
	}
	l.closed = true
	var first error
	for _, w := range l.writers {
		if err := w.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Commit closes the writers, writes manifest.json and renames the staging
// directory to Dir/<run-id>. It returns the final directory.
func (l *Loader) Commit(m *Manifest) (string, error) {
	if err := l.closeWriters(); err != nil {
		l.Abort()
		return "", fmt.Errorf("load: close writers: %w", err)
	}
	if m != nil {
		m.RunID = l.runID
		m.Formats = l.opt.Formats
		m.Outputs = l.Outputs()
		if m.Finished.IsZero() {
			m.Finished = time.Now().UTC()
		}
		if err := WriteManifest(filepath.Join(l.staging, ManifestFile), m); err != nil {
			l.Abort()
			return "", err
		}
	}
	final := filepath.Join(l.opt.Dir, l.runID)
	if err := os.RemoveAll(final); err != nil {
		l.Abort()
		return "", fmt.Errorf("load: clear %s: %w", final, err)
	}
	if err := os.Rename(l.staging, final); err != nil {
		l.Abort()
		return "", fmt.Errorf("load: commit: %w", err)
	}
	if err := os.WriteFile(filepath.Join(l.opt.Dir, LatestFile), []byte(l.runID+"\n"), 0o644); err != nil {
		return final, fmt.Errorf("load: latest: %w", err)
	}
	log.Printf("load: committed run=%s dir=%s outputs=%d", l.runID, final, len(l.outputs))
	return final, nil
}

// Abort discards the staging directory. Safe to call more than once.
func (l *Loader) Abort() {
	_ = l.closeWriters()
	if err := os.RemoveAll(l.staging); err != nil {
		log.Printf("load: abort run=%s err=%v", l.runID, err)
	}
}

// Outputs lists what was written, sorted by kind then name.
func (l *Loader) Outputs() []OutputEntry {
	out := make([]OutputEntry, 0, len(l.outputs))
	for _, e := range l.outputs {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func mkdirFor(path string) error { return os.MkdirAll(filepath.Dir(path), 0o755) }

// Upload copies a committed run directory under sub.
func Upload(ctx context.Context, u Uploader, dir, sub string) error {
	n, err := u.UploadDir(ctx, dir, sub)
	if err != nil {
		return fmt.Errorf("upload %s: %w", dir, err)
	}
	log.Printf("load: uploaded files=%d prefix=%s", n, sub)
	return nil
}

// withObservedNulls returns t with every column that holds a null marked
// nullable, so sinks never declare a required column over missing values.
func withObservedNulls(t table.Table) table.Table {
	var cols []table.Column
	for j, c := range t.Columns {
		if c.Nullable {
			continue
		}
		for _, r := range t.Rows {
			if j < len(r) && r[j] == nil {
				if cols == nil {
					cols = append([]table.Column(nil), t.Columns...)
				}
				cols[j].Nullable = true
				break
			}
		}
	}
	if cols == nil {
		return t
	}
	return table.New(t.Name, cols, t.Rows)
}
