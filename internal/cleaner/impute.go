package cleaner

import (
	"math"

	"github.com/Gerardo1909/ecommerce-reporting-etl/internal/quality"
	"github.com/Gerardo1909/ecommerce-reporting-etl/internal/schema"
	"github.com/Gerardo1909/ecommerce-reporting-etl/internal/table"
)

// meanAcc accumulates a running sum for one group.
type meanAcc struct {
	sum float64
	n   int
}

func (m meanAcc) mean() (float64, bool) {
	if m.n == 0 {
		return 0, false
	}
	return m.sum / float64(m.n), true
}

// Impute fills nulls of imp.Column with the mean of the non-null values
// sharing the same folded imp.GroupBy value, falling back to the column's
// global mean when the group key is null or the group has no observations.
// Cells for which neither mean is defined stay null and are returned as a
// gap. Int columns receive the mean rounded half away from zero.
//
// Means are computed in one pass into a group→mean map and then broadcast;
// t is not modified.
func Impute(t table.Table, imp schema.Imputation) (table.Table, int, *quality.ImputationGap) {
	col := t.Index(imp.Column)
	if col < 0 || t.Len() == 0 {
		return t, 0, nil
	}
	grp := t.Index(imp.GroupBy)
	asInt := t.Columns[col].Kind == table.Int

	// Pass 1: aggregate.
	var global meanAcc
	groups := make(map[string]meanAcc)
	nulls := 0
	for _, r := range t.Rows {
		x, ok := table.AsFloat(r[col])
		if !ok {
			if r[col] == nil {
				nulls++
			}
			continue
		}
		global.sum += x
		global.n++
		if grp >= 0 {
			if k := Fold(r[grp]); k != "" {
				g := groups[k]
				g.sum += x
				g.n++
				groups[k] = g
			}
		}
	}
	if nulls == 0 {
		return t, 0, nil
	}

	means := make(map[string]float64, len(groups))
	for k, g := range groups {
		means[k], _ = g.mean()
	}
	globalMean, globalOK := global.mean()

	// Pass 2: broadcast.
	rows := make([]table.Row, len(t.Rows))
	copy(rows, t.Rows)
	filled := 0
	var gap *quality.ImputationGap
	for i, r := range rows {
		if r[col] != nil {
			continue
		}
		m, ok := 0.0, false
		if grp >= 0 {
			m, ok = means[Fold(r[grp])]
		}
		if !ok {
			m, ok = globalMean, globalOK
		}
		if !ok {
			if gap == nil {
				gap = &quality.ImputationGap{Table: t.Name, Column: imp.Column}
			}
			gap.Rows = append(gap.Rows, i)
			continue
		}
		nr := append(table.Row(nil), r...)
		if asInt {
			nr[col] = int64(math.Round(m))
		} else {
			nr[col] = m
		}
		rows[i] = nr
		filled++
	}
	if filled == 0 {
		return t, 0, gap
	}
	return t.WithRows(rows), filled, gap
}
