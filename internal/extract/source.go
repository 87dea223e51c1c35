// Package extract reads the daily extract files into raw text tables.
//
// A Source hands out one stream per logical table name; ReadCSV turns a
// stream into a table.Table of strings and nils; Extract reads every
// requested table concurrently and profiles what it read.
package extract

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// ErrNotFound is returned (wrapped) by a Source when a table has no file.
var ErrNotFound = errors.New("extract: table not found")

// Source opens the raw stream of one logical table.
type Source interface {
	Open(ctx context.Context, name string) (io.ReadCloser, error)
}

// FileSource reads tables from a local directory.
//
// By default table t is read from "ecommerce_<t>.csv", falling back to
// "<t>.csv". Files overrides the file name per table.
type FileSource struct {
	Dir   string
	Files map[string]string
}

// NewFileSource returns a FileSource rooted at dir.
func NewFileSource(dir string, files map[string]string) *FileSource {
	return &FileSource{Dir: dir, Files: files}
}

// Candidates returns the file names tried for name, in order.
func (s *FileSource) Candidates(name string) []string {
	if f, ok := s.Files[name]; ok && f != "" {
		return []string{f}
	}
	return []string{"ecommerce_" + name + ".csv", name + ".csv"}
}

// Open opens the first existing candidate file for name. A pre-canceled ctx
// short-circuits without touching the filesystem.
func (s *FileSource) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	for _, c := range s.Candidates(name) {
		p := c
		if !filepath.IsAbs(p) {
			p = filepath.Join(s.Dir, c)
		}
		f, err := os.Open(p)
		if err == nil {
			return f, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("open %s: %w", p, err)
		}
	}
	return nil, fmt.Errorf("%w: %s in %s", ErrNotFound, name, s.Dir)
}
