package cleaner

import (
	"strings"

	"github.com/Gerardo1909/ecommerce-reporting-etl/internal/table"
)

// Dedup collapses rows sharing a natural key. The winner is chosen by Policy:
//
//   - "merge"      : fold duplicates column by column; a non-null value
//     replaces the accumulated one, so the last non-null value in input
//     order wins (default)
//   - "keep-first" : keep the earliest occurrence as is
//   - "keep-last"  : keep the latest occurrence as is
//
// The surviving row takes the position of the key's first occurrence. Rows
// with a null or blank key component cannot be keyed and pass through
// untouched. Keys are compared through Fold.
type Dedup struct {
	Keys   []string
	Policy string
}

// Apply returns the de-duplicated table and the number of rows merged away.
// t is not modified.
func (d Dedup) Apply(t table.Table) (table.Table, int) {
	if t.Len() == 0 || len(d.Keys) == 0 {
		return t, 0
	}
	idx := make([]int, 0, len(d.Keys))
	for _, k := range d.Keys {
		ix := t.Index(k)
		if ix < 0 {
			return t, 0
		}
		idx = append(idx, ix)
	}

	policy := strings.ToLower(strings.TrimSpace(d.Policy))
	if policy == "" {
		policy = "merge"
	}

	// slot remembers where a key first appeared in the output.
	slot := make(map[string]int, t.Len())
	out := make([]table.Row, 0, t.Len())
	owned := make([]bool, 0, t.Len()) // out[i] is a private copy
	merged := 0

	for _, r := range t.Rows {
		k, ok := CompositeKey(r, idx)
		if !ok {
			out = append(out, r)
			owned = append(owned, false)
			continue
		}
		pos, dup := slot[k]
		if !dup {
			slot[k] = len(out)
			out = append(out, r)
			owned = append(owned, false)
			continue
		}
		merged++
		switch policy {
		case "keep-first":
			// first occurrence already holds the slot
		case "keep-last":
			out[pos] = r
			owned[pos] = false
		default:
			if !owned[pos] {
				out[pos] = append(table.Row(nil), out[pos]...)
				owned[pos] = true
			}
			acc := out[pos]
			for c, v := range r {
				if v != nil && c < len(acc) {
					acc[c] = v
				}
			}
		}
	}
	if merged == 0 {
		return t, 0
	}
	return t.WithRows(out), merged
}
