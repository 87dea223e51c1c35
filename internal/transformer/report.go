package transformer

import (
	"fmt"

	"github.com/Gerardo1909/ecommerce-reporting-etl/internal/cleaner"
	"github.com/Gerardo1909/ecommerce-reporting-etl/internal/joiner"
	"github.com/Gerardo1909/ecommerce-reporting-etl/internal/quality"
	"github.com/Gerardo1909/ecommerce-reporting-etl/internal/report"
	"github.com/Gerardo1909/ecommerce-reporting-etl/internal/validator"
)

// Report is the structured quality report of one transform. It feeds logging,
// metrics and the run manifest; no stage reads it.
type Report struct {
	Validation []validator.Result           `json:"validation"`
	References []quality.ValidationWarning `json:"references,omitempty"`
	Cleaning   []cleaner.Result             `json:"cleaning"`
	Join       joiner.Result                `json:"join"`
	Signal     report.Signal                `json:"top_customer_signal"`

	// Flattened views of the above.
	Warnings []quality.ValidationWarning `json:"-"`
	Gaps     []quality.ImputationGap     `json:"-"`
	Orphans  []quality.JoinOrphan        `json:"-"`
}

func (r *Report) collect() {
	r.Warnings = r.Warnings[:0]
	for _, v := range r.Validation {
		r.Warnings = append(r.Warnings, v.Warnings...)
	}
	r.Warnings = append(r.Warnings, r.References...)
	r.Gaps = r.Gaps[:0]
	for _, c := range r.Cleaning {
		r.Gaps = append(r.Gaps, c.Gaps...)
	}
	r.Orphans = r.Orphans[:0]
	for _, o := range r.Join.Orphans {
		if o.Count > 0 {
			r.Orphans = append(r.Orphans, o)
		}
	}
}

// IssueCounts totals the issues by kind: warning kinds, "imputation_gap"
// (cells) and "join_orphan" (rows).
func (r *Report) IssueCounts() map[string]int {
	out := map[string]int{}
	for _, w := range r.Warnings {
		out[w.Kind] += w.Count
	}
	for _, g := range r.Gaps {
		out["imputation_gap"] += len(g.Rows)
	}
	for _, o := range r.Orphans {
		out["join_orphan"] += o.Count
	}
	return out
}

// RowsDropped totals rows dropped by validation.
func (r *Report) RowsDropped() int {
	n := 0
	for _, v := range r.Validation {
		n += v.RowsDropped
	}
	return n
}

// Summary renders a one-line key=value digest for logs.
func (r *Report) Summary() string {
	merged := 0
	for _, c := range r.Cleaning {
		merged += c.Merged
	}
	orphans := 0
	for _, o := range r.Orphans {
		orphans += o.Count
	}
	return fmt.Sprintf("tables=%d rows_dropped=%d warnings=%d duplicates_merged=%d gaps=%d facts=%d orphans=%d top_share=%.3f",
		len(r.Validation), r.RowsDropped(), len(r.Warnings), merged, len(r.Gaps), r.Join.Facts, orphans, r.Signal.Share)
}
