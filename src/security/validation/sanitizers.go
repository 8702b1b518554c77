package validation

import (
	"strings"
	"unicode"
)

// StripUnprintable removes non-printable characters, allowing common whitespace
// like space, tab, newline, and carriage return.
func StripUnprintable(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsPrint(r) || r == '\t' || r == '\n' || r == '\r' {
			return r
		}
		return -1
	}, s)
}

// NormalizeAssetSymbol uppercases a ticker and strips surrounding whitespace
// and unprintable characters so "btc " and "BTC" dedupe to the same asset.
func NormalizeAssetSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(StripUnprintable(s)))
}
