package table

import (
	"fmt"
	"strconv"
	"time"

	"github.com/zeebo/xxh3"
)

// AsString converts common cell types to text without going through
// fmt.Sprint on the hot path. nil yields "".
func AsString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case int64:
		return strconv.FormatInt(t, 10)
	case int:
		return strconv.Itoa(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		if t {
			return "true"
		}
		return "false"
	case time.Time:
		if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
			return t.Format(DateLayout)
		}
		return t.UTC().Format(time.RFC3339)
	default:
		return fmt.Sprint(t)
	}
}

// AsFloat returns v as float64 for numeric cells.
func AsFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int64:
		return float64(t), true
	case int:
		return float64(t), true
	}
	return 0, false
}

// AsInt returns v as int64 for integer cells. Floats are accepted only when
// they carry no fractional part.
func AsInt(v any) (int64, bool) {
	switch t := v.(type) {
	case int64:
		return t, true
	case int:
		return int64(t), true
	case float64:
		if t == float64(int64(t)) {
			return int64(t), true
		}
	}
	return 0, false
}

// AsTime returns v as time.Time for date/datetime cells.
func AsTime(v any) (time.Time, bool) {
	t, ok := v.(time.Time)
	return t, ok
}

// AsBool returns v as bool for boolean cells.
func AsBool(v any) (bool, bool) {
	b, ok := v.(bool)
	return b, ok
}

// Format renders a cell as plain text according to its column kind. It is the
// single text encoding used by the delimited and spreadsheet writers.
func Format(v any, k Kind) string {
	if v == nil {
		return ""
	}
	switch k {
	case Date:
		if ts, ok := v.(time.Time); ok {
			return ts.UTC().Format(DateLayout)
		}
	case DateTime:
		if ts, ok := v.(time.Time); ok {
			return ts.UTC().Format(time.RFC3339)
		}
	}
	return AsString(v)
}

// Digest fingerprints a table's schema and contents with xxh3. Equal inputs
// give equal digests across runs, which the run manifest uses to show that a
// rerun saw the same raw extract.
func Digest(t Table) uint64 {
	h := xxh3.New()
	for _, c := range t.Columns {
		_, _ = h.WriteString(c.Name)
		_, _ = h.WriteString("\x1f")
		_, _ = h.WriteString(string(c.Kind))
		_, _ = h.WriteString("\x1e")
	}
	for _, r := range t.Rows {
		for i, v := range r {
			if i > 0 {
				_, _ = h.WriteString("\x1f")
			}
			if v == nil {
				_, _ = h.WriteString("\x00")
				continue
			}
			_, _ = h.WriteString(AsString(v))
		}
		_, _ = h.WriteString("\x1e")
	}
	return h.Sum64()
}
