package parser

import (
	"testing"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		want   string
		wantOK bool
	}{
		{name: "plain integer", input: "100", want: "100", wantOK: true},
		{name: "comma decimal mark", input: "100,50", want: "100.5", wantOK: true},
		{name: "dot decimal mark", input: "100.50", want: "100.5", wantOK: true},
		{name: "space thousands separator", input: "1 234,56", want: "1234.56", wantOK: true},
		{name: "non-breaking space separator", input: "1 234,56", want: "1234.56", wantOK: true},
		{name: "surrounding whitespace", input: "  42,00 ", want: "42", wantOK: true},
		{name: "empty string", input: "", wantOK: false},
		{name: "whitespace only", input: "   ", wantOK: false},
		{name: "not a number", input: "abc", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseAmount(tt.input)
			if ok != tt.wantOK {
				t.Fatalf("ParseAmount(%q) ok = %v, want %v", tt.input, ok, tt.wantOK)
			}
			if ok && got.String() != tt.want {
				t.Errorf("ParseAmount(%q) = %s, want %s", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseDollarAmount(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		want   string
		wantOK bool
	}{
		{name: "dollar sign and thousands commas", input: "$1,234.56", want: "1234.56", wantOK: true},
		{name: "negative", input: "-$45.00", want: "-45", wantOK: true},
		{name: "plain", input: "12.30", want: "12.3", wantOK: true},
		{name: "empty", input: "", wantOK: false},
		{name: "garbage", input: "n/a", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseDollarAmount(tt.input)
			if ok != tt.wantOK {
				t.Fatalf("ParseDollarAmount(%q) ok = %v, want %v", tt.input, ok, tt.wantOK)
			}
			if ok && got.String() != tt.want {
				t.Errorf("ParseDollarAmount(%q) = %s, want %s", tt.input, got, tt.want)
			}
		})
	}
}

func TestSplitCurrencyPair(t *testing.T) {
	posted, original, ok := SplitCurrencyPair("USD-KZT")
	if !ok || posted != "USD" || original != "KZT" {
		t.Errorf("SplitCurrencyPair(USD-KZT) = %q, %q, %v", posted, original, ok)
	}

	for _, bad := range []string{"", "USD", "USD-", "-KZT", "USD-KZT-EUR"} {
		if _, _, ok := SplitCurrencyPair(bad); ok {
			t.Errorf("SplitCurrencyPair(%q) unexpectedly ok", bad)
		}
	}
}
