package identifier

import "strings"

// Normalize canonicalises an identifier for comparison: upper-case, only
// A-Z and 0-9 kept, and the OCR confusables O and I folded to 0 and 1. The
// result is stable under repeated application.
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToUpper(s) {
		switch {
		case r == 'O':
			b.WriteByte('0')
		case r == 'I':
			b.WriteByte('1')
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		}
	}
	return b.String()
}
