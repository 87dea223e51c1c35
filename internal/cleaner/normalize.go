package cleaner

import (
	"strings"
	"unicode"

	"github.com/Gerardo1909/ecommerce-reporting-etl/internal/table"
)

// Normalize trims surrounding whitespace (including no-break spaces) from the
// text cells of cols. Casing is preserved; equality uses Fold. It returns the
// table and the number of cells changed. t is not modified.
func Normalize(t table.Table, cols []string) (table.Table, int) {
	idx := make([]int, 0, len(cols))
	for _, c := range cols {
		if ix := t.Index(c); ix >= 0 && t.Columns[ix].Kind == table.Text {
			idx = append(idx, ix)
		}
	}
	if len(idx) == 0 {
		return t, 0
	}

	var rows []table.Row // allocated on first change
	changed := 0
	for i, r := range t.Rows {
		var nr table.Row
		for _, ix := range idx {
			s, ok := r[ix].(string)
			if !ok {
				continue
			}
			ns := trimText(s)
			if ns == s {
				continue
			}
			if nr == nil {
				nr = append(table.Row(nil), r...)
			}
			if ns == "" {
				nr[ix] = nil
			} else {
				nr[ix] = ns
			}
			changed++
		}
		if nr == nil {
			continue
		}
		if rows == nil {
			rows = make([]table.Row, len(t.Rows))
			copy(rows, t.Rows)
		}
		rows[i] = nr
	}
	if rows == nil {
		return t, 0
	}
	return t.WithRows(rows), changed
}

// trimText strips edge whitespace only; unicode.IsSpace covers U+00A0.
func trimText(s string) string {
	return strings.TrimFunc(s, unicode.IsSpace)
}
