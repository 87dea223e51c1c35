package extract

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"

	"github.com/Gerardo1909/ecommerce-reporting-etl/internal/table"
)

// CSVOptions configures ReadCSV. The zero value reads comma-separated input
// with a header row.
type CSVOptions struct {
	// Comma is the field delimiter; ',' when zero.
	Comma rune

	// TrimSpace trims leading/trailing spaces from every value. Values are
	// otherwise kept verbatim; the cleaner trims categorical text later.
	TrimSpace bool

	// HeaderMap maps raw header text to canonical column names. Keys are
	// matched after BOM stripping and trimming.
	HeaderMap map[string]string
}

// ReadStats describes one CSV read.
type ReadStats struct {
	Rows int
	// Ragged counts rows whose width differed from the header; they are
	// padded with nulls or truncated.
	Ragged int
}

// utf8BOM is stripped from the first header cell if present.
const utf8BOM = "\uFEFF"

// ragged rows logged per table before going quiet.
const raggedLogLimit = 20

// ReadCSV parses r into a raw table named name. Every column is nullable text;
// empty cells become nil. The first row is the header.
func ReadCSV(ctx context.Context, name string, r io.Reader, opt CSVOptions) (table.Table, ReadStats, error) {
	cr := csv.NewReader(r)
	if opt.Comma != 0 {
		cr.Comma = opt.Comma
	}
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = true

	var st ReadStats
	h, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return table.Empty(name, nil), st, nil
	}
	if err != nil {
		return table.Table{}, st, fmt.Errorf("read %s header: %w", name, err)
	}
	headers := normalizeHeaders(h, opt.HeaderMap)
	cols := make([]table.Column, len(headers))
	for i, hd := range headers {
		cols[i] = table.Column{Name: hd, Kind: table.Text, Nullable: true}
	}

	var rows []table.Row
	for line := 2; ; line++ {
		if line%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return table.Table{}, st, err
			}
		}
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return table.Table{}, st, fmt.Errorf("read %s line %d: %w", name, line, err)
		}
		if len(rec) == 1 && rec[0] == "" && len(headers) > 1 {
			continue // blank line
		}
		if len(rec) != len(headers) {
			if st.Ragged < raggedLogLimit {
				log.Printf("extract: table=%s line=%d expected %d fields, got %d", name, line, len(headers), len(rec))
			}
			st.Ragged++
		}
		row := make(table.Row, len(headers))
		for i := 0; i < len(headers) && i < len(rec); i++ {
			v := rec[i]
			if opt.TrimSpace {
				v = strings.TrimSpace(v)
			}
			row[i] = emptyToNil(v)
		}
		rows = append(rows, row)
	}
	if rows == nil {
		rows = []table.Row{}
	}
	st.Rows = len(rows)
	return table.New(name, cols, rows), st, nil
}

// emptyToNil converts an empty string to nil; all other values are returned as-is.
func emptyToNil(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// normalizeHeaders produces canonical column names: BOM stripped, trimmed,
// mapped through headerMap, else lowercased with spaces turned into
// underscores. Blank headers become col_N and repeated names get a _N suffix.
func normalizeHeaders(h []string, headerMap map[string]string) []string {
	res := make([]string, len(h))
	seen := make(map[string]int, len(h))
	for i, col := range h {
		c := strings.TrimSpace(col)
		if i == 0 {
			c = strings.TrimSpace(strings.TrimPrefix(c, utf8BOM))
		}
		name, ok := headerMap[c]
		if !ok {
			name = strings.ReplaceAll(strings.ToLower(c), " ", "_")
		}
		if name == "" {
			name = "col_" + strconv.Itoa(i)
		}
		if n := seen[name]; n > 0 {
			seen[name] = n + 1
			name = name + "_" + strconv.Itoa(n+1)
		} else {
			seen[name] = 1
		}
		res[i] = name
	}
	return res
}
