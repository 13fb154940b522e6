package normalize

import (
	"math"
	"strconv"
	"strings"
)

// ParsePrice extracts a non-negative amount from free-form price text such as
// "৳1,250.00", "Tk. 78,500" or "১২৫০".
//
// Digits in any script are folded to ASCII, then every character other than
// 0-9 and '.' is dropped. Dots left dangling at either end (from "Tk." style
// prefixes) are trimmed. Empty or unparsable input yields 0.
func ParsePrice(text string) float64 {
	folded := FoldText(text)

	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		if (r >= '0' && r <= '9') || r == '.' {
			b.WriteRune(r)
		}
	}

	s := strings.Trim(b.String(), ".")
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(v, 0) || math.IsNaN(v) || v < 0 {
		return 0
	}
	return roundTo(v, 2)
}

func roundTo(v float64, places int) float64 {
	p := math.Pow10(places)
	return math.Round(v*p) / p
}
