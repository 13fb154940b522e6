// Package normalize turns raw extracted strings into canonical values:
// prices, stock state, discounts, absolute URLs and clean display text.
//
// Every function here is pure and total. Bad input degrades to a documented
// default (0, false, a placeholder) instead of an error, because one malformed
// field must never cost the whole listing.
package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// foldDigits maps every Unicode decimal digit (Bengali, Arabic-Indic,
// Devanagari, ...) to its ASCII counterpart.
var foldDigits = runes.Map(func(r rune) rune {
	if v, ok := digitValue(r); ok {
		return '0' + v
	}
	return r
})

// digitValue returns the numeric value of a decimal digit rune. Unicode lays
// out each script's digits as a contiguous 0..9 run, so the value is the
// distance from the start of the run (mod 10 for blocks that stack runs).
func digitValue(r rune) (rune, bool) {
	if r >= '0' && r <= '9' {
		return r - '0', true
	}
	if !unicode.Is(unicode.Nd, r) {
		return 0, false
	}
	var n rune
	for unicode.Is(unicode.Nd, r-n-1) {
		n++
	}
	return n % 10, true
}

// FoldText applies NFKC compatibility normalization and folds decimal digits
// to ASCII.
func FoldText(s string) string {
	out, _, err := transform.String(transform.Chain(norm.NFKC, foldDigits), s)
	if err != nil {
		return s
	}
	return out
}

// CleanText is used for display strings such as product names: NFKC
// normalization (so full-width letters and ligatures compare equal) followed
// by collapsing all whitespace runs to a single space.
func CleanText(s string) string {
	s = norm.NFKC.String(s)
	return strings.Join(strings.Fields(s), " ")
}
