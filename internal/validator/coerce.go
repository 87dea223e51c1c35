package validator

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/Gerardo1909/ecommerce-reporting-etl/internal/schema"
	"github.com/Gerardo1909/ecommerce-reporting-etl/internal/table"
)

// coerceFn converts one trimmed, non-empty raw cell into its typed value.
// It returns false when the text cannot represent the column kind.
type coerceFn func(s string) (any, bool)

// fieldPlan is the per-column hot-path metadata, compiled once per table.
type fieldPlan struct {
	field  schema.Field
	kind   table.Kind
	src    int // raw column index, -1 when absent
	coerce coerceFn
}

// default truthy/falsy vocabularies (lowercased).
var (
	defaultTruthy = map[string]struct{}{
		"1": {}, "t": {}, "true": {}, "yes": {}, "y": {}, "si": {}, "sí": {},
	}
	defaultFalsy = map[string]struct{}{
		"0": {}, "f": {}, "false": {}, "no": {}, "n": {},
	}
)

// Date layouts tried after the field layout and the pipeline layout.
var fallbackLayouts = []string{
	table.DateLayout,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006/01/02",
}

func compileField(f schema.Field, src int, globalLayout string) fieldPlan {
	p := fieldPlan{field: f, kind: f.Kind(), src: src}
	switch p.kind {
	case table.Int:
		p.coerce = func(s string) (any, bool) {
			v, ok := toIntFast(s)
			return v, ok
		}
	case table.Float:
		p.coerce = func(s string) (any, bool) {
			v, err := strconv.ParseFloat(s, 64)
			if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, false
			}
			return v, true
		}
	case table.Bool:
		truthy, falsy := lowerSet(f.Truthy), lowerSet(f.Falsy)
		custom := truthy != nil || falsy != nil
		p.coerce = func(s string) (any, bool) {
			v, ok := toBool(s, custom, truthy, falsy)
			return v, ok
		}
	case table.Date, table.DateTime:
		layouts := make([]string, 0, len(fallbackLayouts)+2)
		if f.Layout != "" {
			layouts = append(layouts, f.Layout)
		}
		if globalLayout != "" {
			layouts = append(layouts, globalLayout)
		}
		layouts = append(layouts, fallbackLayouts...)
		dateOnly := p.kind == table.Date
		p.coerce = func(s string) (any, bool) {
			ts, ok := parseAnyDate(s, layouts)
			if !ok {
				return nil, false
			}
			if dateOnly {
				return table.Day(ts), true
			}
			return ts.UTC(), true
		}
	default:
		p.coerce = func(s string) (any, bool) { return s, true }
	}
	return p
}

// lowerSet builds a lowercased membership set. Empty input returns nil so
// callers can tell "no custom vocabulary" apart.
func lowerSet(in []string) map[string]struct{} {
	if len(in) == 0 {
		return nil
	}
	m := make(map[string]struct{}, len(in))
	for _, s := range in {
		m[strings.ToLower(strings.TrimSpace(s))] = struct{}{}
	}
	return m
}

// toIntFast parses integers and only falls back to float parsing when the
// field contains a '.' (accepting inputs like "42.0").
func toIntFast(s string) (int64, bool) {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i, true
	}
	if strings.IndexByte(s, '.') >= 0 {
		if f, err := strconv.ParseFloat(s, 64); err == nil && math.Abs(f) < math.MaxInt64 && f == math.Trunc(f) {
			return int64(f), true
		}
	}
	return 0, false
}

func toBool(s string, custom bool, truthy, falsy map[string]struct{}) (bool, bool) {
	ls := strings.ToLower(s)
	if custom {
		if _, ok := truthy[ls]; ok {
			return true, true
		}
		if _, ok := falsy[ls]; ok {
			return false, true
		}
		return false, false
	}
	if _, ok := defaultTruthy[ls]; ok {
		return true, true
	}
	if _, ok := defaultFalsy[ls]; ok {
		return false, true
	}
	return false, false
}

func parseAnyDate(s string, layouts []string) (time.Time, bool) {
	if ts, ok := parseDottedDate(s); ok {
		return ts, true
	}
	for _, l := range layouts {
		if ts, err := time.Parse(l, s); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

// parseDottedDate is an allocation-free parser for "02.01.2006" (DD.MM.YYYY).
func parseDottedDate(s string) (time.Time, bool) {
	if len(s) != 10 || s[2] != '.' || s[5] != '.' {
		return time.Time{}, false
	}
	d1, d0 := s[0]-'0', s[1]-'0'
	m1, m0 := s[3]-'0', s[4]-'0'
	y3, y2, y1, y0 := s[6]-'0', s[7]-'0', s[8]-'0', s[9]-'0'
	if d1 > 9 || d0 > 9 || m1 > 9 || m0 > 9 || y3 > 9 || y2 > 9 || y1 > 9 || y0 > 9 {
		return time.Time{}, false
	}
	day := int(d1)*10 + int(d0)
	mon := int(m1)*10 + int(m0)
	year := int(y3)*1000 + int(y2)*100 + int(y1)*10 + int(y0)
	if mon < 1 || mon > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}
	ts := time.Date(year, time.Month(mon), day, 0, 0, 0, 0, time.UTC)
	if ts.Day() != day {
		// 31.02.2024 normalises into March; reject.
		return time.Time{}, false
	}
	return ts, true
}

// hasEdgeSpace reports whether s starts or ends with ASCII whitespace, so the
// hot path only pays for TrimSpace when needed.
func hasEdgeSpace(s string) bool {
	if s == "" {
		return false
	}
	switch s[0] {
	case ' ', '\t', '\n', '\r':
		return true
	}
	switch s[len(s)-1] {
	case ' ', '\t', '\n', '\r':
		return true
	}
	return false
}
