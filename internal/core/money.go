// Package core holds the domain model for the shared-purchase ledger:
// the roster, the monthly partition ring, record validation, debtor
// decoding and the balance aggregation.
package core

import (
	"strconv"
	"strings"
)

// ParseCurrencyStrict converts a currency string to cents. It tolerates a
// currency symbol and locale punctuation: everything except digits, comma
// and minus is stripped (a dot is a thousand separator in this locale), then
// the decimal comma becomes a dot. Negative or unparsable input is an error;
// this is the write-side boundary.
func ParseCurrencyStrict(s string) (int64, error) {
	cleaned := normalizeAmount(s)
	if cleaned == "" {
		return 0, ErrInvalidAmount
	}
	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	if f < 0 {
		return 0, ErrInvalidAmount
	}
	return toCents(f), nil
}

// ParseCurrencyLenient is the trusted recompute path: unparsable input
// yields zero cents, never an error.
func ParseCurrencyLenient(s string) int64 {
	cleaned := normalizeAmount(s)
	if cleaned == "" {
		return 0
	}
	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0
	}
	return toCents(f)
}

func toCents(f float64) int64 {
	if f < 0 {
		return int64(f*100.0 - 0.5)
	}
	return int64(f*100.0 + 0.5)
}

// normalizeAmount strips currency symbols and thousand dots, keeping only
// digits, comma and minus, then turns the decimal comma into a dot.
// "R$ 1.234,56" -> "1234.56"; "25,5" -> "25.5"; "abc" -> "".
func normalizeAmount(s string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(s) {
		switch {
		case r >= '0' && r <= '9', r == ',', r == '-':
			b.WriteRune(r)
		}
	}
	return strings.Replace(b.String(), ",", ".", 1)
}

// FormatCents renders cents as a plain decimal string with two places,
// e.g. 12345 -> "123.45". Used for CSV export and response payloads.
func FormatCents(cents int64) string {
	neg := cents < 0
	if neg {
		cents = -cents
	}
	s := strconv.FormatInt(cents/100, 10) + "." + pad2(cents%100)
	if neg {
		return "-" + s
	}
	return s
}

func pad2(n int64) string {
	if n < 10 {
		return "0" + strconv.FormatInt(n, 10)
	}
	return strconv.FormatInt(n, 10)
}

// Reais returns the monetary value as float64 for display payloads only.
// Calculations stay in cents.
func (m Money) Reais() float64 {
	return float64(m.Cents) / 100.0
}
