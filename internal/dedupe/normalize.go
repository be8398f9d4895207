// Package dedupe collapses near-duplicate headlines coming from different
// outlets into a single representative article.
//
// The package is pure: it performs no I/O, keeps no state between calls and
// never mutates the records it is given. Callers describe their record type
// through a title accessor, so any payload is carried through untouched.
package dedupe

import "strings"

// Normalize canonicalizes a headline for comparison.
//
// The title is lower-cased, everything after the first '|' is dropped
// (outlets append their brand as "Headline | Billboard"), every character
// that is not an ASCII letter, digit or whitespace becomes a space, and
// runs of whitespace are collapsed and trimmed.
func Normalize(title string) string {
	if title == "" {
		return ""
	}

	t := strings.ToLower(title)
	if i := strings.IndexByte(t, '|'); i >= 0 {
		t = t[:i]
	}

	// Whitespace and punctuation both become separators here; Fields
	// collapses them afterwards.
	t = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			return r
		}
		return ' '
	}, t)

	return strings.Join(strings.Fields(t), " ")
}
