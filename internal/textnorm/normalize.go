// Package textnorm prepares free text for rule matching.
package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// Clean applies NFKC normalization, drops control characters other than
// newlines and tabs, and trims surrounding whitespace. Case is preserved.
func Clean(text string) string {
	normed := norm.NFKC.String(text)
	normed = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, normed)
	return strings.TrimSpace(normed)
}

// ForMatching returns the cleaned, lower-cased form used by keyword and
// pattern rules.
func ForMatching(text string) string {
	// Casers are stateful, so one per call.
	return cases.Lower(language.Und).String(Clean(text))
}
