package reconcile

import (
	"strings"
	"unicode"
)

// Normalize lowercases s and drops everything that is not a letter or a
// digit, so "First Name", "first_name" and "first-name" compare equal.
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// minFuzzy is the shortest normalized string allowed on the contained side
// of a fuzzy match.
const minFuzzy = 3

// fuzzy reports whether a is a substring of b or b of a.
func fuzzy(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	if len(a) > len(b) {
		a, b = b, a
	}
	if len([]rune(a)) < minFuzzy {
		return false
	}
	return strings.Contains(b, a)
}
