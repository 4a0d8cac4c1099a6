// Package textfold implements the case- and accent-insensitive matching
// used by application search: accented Latin characters fold to their
// unaccented equivalent before comparison, on both sides.
package textfold

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stripMarks decomposes to NFD, drops combining marks, recomposes. The same
// folding the Postgres store expresses with translate(lower(...)).
var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Fold lowercases s and removes diacritical marks.
func Fold(s string) string {
	folded, _, err := transform.String(stripMarks, s)
	if err != nil {
		// Transform only fails on malformed input; fall back to the
		// original bytes rather than dropping the value.
		folded = s
	}
	return strings.ToLower(folded)
}

// Contains reports whether needle occurs anywhere in haystack, ignoring
// case and accents.
func Contains(haystack, needle string) bool {
	return strings.Contains(Fold(haystack), Fold(needle))
}
