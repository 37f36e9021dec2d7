// Package entity detects mentions of known knowledge documents and people in
// free text. A single Aho-Corasick automaton compiled from document names and
// path leaves scans each user message; the resulting entity strings feed the
// retrieval search configuration.
package entity

import (
	"strings"
	"unicode"
)

// isJoiner reports punctuation that appears inside names and should survive
// canonicalization ("O'Brien", "Jean-Luc", "AT&T", "next.js").
func isJoiner(r rune) bool {
	switch r {
	case '\'', '’', '‘',
		'-', '–', '—',
		'.', '_', '/', '&':
		return true
	default:
		return false
	}
}

// Canonicalize normalizes text for matching: lowercase, curly quotes and
// dashes folded to ASCII, separators collapsed to single spaces, trimmed.
// The same function runs over both patterns and scanned text; matching only
// works because the two sides agree.
func Canonicalize(s string) string {
	var out strings.Builder
	out.Grow(len(s))

	lastWasSpace := true
	for _, ch := range s {
		c := unicode.ToLower(ch)
		switch c {
		case '’', '‘':
			c = '\''
		case '–', '—':
			c = '-'
		}

		if unicode.IsLetter(c) || unicode.IsDigit(c) || isJoiner(c) {
			out.WriteRune(c)
			lastWasSpace = false
		} else if !lastWasSpace {
			out.WriteByte(' ')
			lastWasSpace = true
		}
	}

	return strings.TrimSuffix(out.String(), " ")
}
