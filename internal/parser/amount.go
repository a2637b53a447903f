package parser

import (
	"strings"

	"github.com/shopspring/decimal"
)

// CleanText trims surrounding whitespace, treating absent text as empty.
func CleanText(s string) string {
	return strings.TrimSpace(s)
}

// ParseAmount parses a locale-tolerant amount string: spaces are thousands
// separators, a comma is the decimal mark. Unparseable input reports
// ok=false rather than an error so callers can treat it as a soft condition.
func ParseAmount(s string) (decimal.Decimal, bool) {
	cleaned := CleanText(s)
	if cleaned == "" {
		return decimal.Zero, false
	}
	cleaned = strings.ReplaceAll(cleaned, " ", "")
	cleaned = strings.ReplaceAll(cleaned, " ", "")
	cleaned = strings.ReplaceAll(cleaned, ",", ".")
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// ParseDollarAmount parses amounts from exports that use commas as
// thousands separators and a leading currency sign, e.g. "$1,234.56".
func ParseDollarAmount(s string) (decimal.Decimal, bool) {
	cleaned := CleanText(s)
	if cleaned == "" {
		return decimal.Zero, false
	}
	cleaned = strings.ReplaceAll(cleaned, " ", "")
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	cleaned = strings.ReplaceAll(cleaned, "$", "")
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}
