package cleaner

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/Gerardo1909/ecommerce-reporting-etl/internal/table"
)

// Fold returns the comparison key of a categorical value: surrounding space
// trimmed, NFC-normalised and case-folded. Non-text cells use their text form.
// nil folds to "".
func Fold(v any) string {
	s := strings.TrimSpace(table.AsString(v))
	if s == "" {
		return ""
	}
	if isLowerASCII(s) {
		return s
	}
	// Casers carry state and must not be shared across goroutines.
	return cases.Fold().String(norm.NFC.String(s))
}

// isLowerASCII is the fast path: pure lower-case ASCII is already folded.
func isLowerASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 0x80 || ('A' <= c && c <= 'Z') {
			return false
		}
	}
	return true
}

// CompositeKey folds each key column and joins them with a unit separator.
// ok is false when any component is null or blank.
func CompositeKey(r table.Row, idx []int) (string, bool) {
	if len(idx) == 1 {
		k := Fold(r[idx[0]])
		return k, k != ""
	}
	var b strings.Builder
	for i, ix := range idx {
		k := Fold(r[ix])
		if k == "" {
			return "", false
		}
		if i > 0 {
			b.WriteByte(0x1f)
		}
		b.WriteString(k)
	}
	return b.String(), true
}
