package extract

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/Gerardo1909/ecommerce-reporting-etl/internal/table"
)

// Options configures Extract.
type Options struct {
	CSV CSVOptions
	// Workers bounds concurrent reads; 0 reads every table at once.
	Workers int
}

// Profile summarises one extracted table.
type Profile struct {
	Table     string  `json:"table"`
	Rows      int     `json:"rows"`
	Columns   int     `json:"columns"`
	NullCells int     `json:"null_cells"`
	NullPct   float64 `json:"null_pct"`
	Ragged    int     `json:"ragged_rows,omitempty"`
	Digest    string  `json:"digest"`
}

// Result is what Extract found at the source.
type Result struct {
	Tables map[string]table.Table
	// Missing lists requested tables the source has no file for. Whether that
	// is fatal is decided by the transform stage.
	Missing  []string
	Profiles []Profile
}

// Extract reads the named tables from src concurrently. A table the source
// does not have is listed in Missing; any other failure aborts.
func Extract(ctx context.Context, src Source, names []string, opt Options) (*Result, error) {
	type slot struct {
		t       table.Table
		st      ReadStats
		missing bool
	}
	slots := make([]slot, len(names))

	g, ctx := errgroup.WithContext(ctx)
	if opt.Workers > 0 {
		g.SetLimit(opt.Workers)
	}
	for i, name := range names {
		i, name := i, name
		g.Go(func() error {
			rc, err := src.Open(ctx, name)
			if errors.Is(err, ErrNotFound) {
				slots[i].missing = true
				return nil
			}
			if err != nil {
				return fmt.Errorf("extract %s: %w", name, err)
			}
			defer rc.Close()
			t, st, err := ReadCSV(ctx, name, rc, opt.CSV)
			if err != nil {
				return fmt.Errorf("extract %s: %w", name, err)
			}
			slots[i] = slot{t: t, st: st}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := &Result{Tables: make(map[string]table.Table, len(names))}
	for i, name := range names {
		s := slots[i]
		if s.missing {
			log.Printf("extract: table=%s not found at source", name)
			res.Missing = append(res.Missing, name)
			continue
		}
		p := profile(s.t, s.st)
		log.Printf("extract: table=%s rows=%d columns=%d null_pct=%.2f ragged=%d",
			p.Table, p.Rows, p.Columns, p.NullPct, p.Ragged)
		res.Tables[name] = s.t
		res.Profiles = append(res.Profiles, p)
	}
	sort.Strings(res.Missing)
	return res, nil
}

func profile(t table.Table, st ReadStats) Profile {
	p := Profile{
		Table:     t.Name,
		Rows:      t.Len(),
		Columns:   len(t.Columns),
		NullCells: t.NullCells(),
		Ragged:    st.Ragged,
		Digest:    fmt.Sprintf("%016x", table.Digest(t)),
	}
	if cells := p.Rows * p.Columns; cells > 0 {
		p.NullPct = 100 * float64(p.NullCells) / float64(cells)
	}
	return p
}
