// Package pricing extracts product prices from raw HTML.
//
// Three extractors run over every page (JSON-LD structured data, price meta
// tags and a currency regex) and the parser keeps the lowest candidate.
package pricing

import (
	"math"
	"strconv"
	"strings"
	"unicode"
)

// Normalize converts a localized numeric string into a positive float.
//
// The input is read with dot as the thousands separator and comma as the
// decimal separator: "1.234,56" is 1234.56. US-formatted input is misread,
// "1,234.56" yields 1.23456. Stored histories depend on this reading, so it
// must not change without an explicit locale setting.
func Normalize(raw string) (float64, bool) {
	s := strings.ReplaceAll(strings.TrimFunc(raw, isSpace), " ", "")
	s = strings.ReplaceAll(s, ".", "")
	s = strings.ReplaceAll(s, ",", ".")

	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return 0, false
	}
	return v, true
}

// isSpace also counts the ASCII separators U+001C to U+001F, which the price
// regex accepts as whitespace.
func isSpace(r rune) bool {
	return unicode.IsSpace(r) || (r >= 0x1C && r <= 0x1F)
}
