// Package core provides money parsing and handling utilities.
//
// Amounts are shopspring decimals rounded to two places. Input may use either a
// dot (12.34) or a comma (12,34) as decimal separator and may group thousands with
// spaces or underscores.
package core

import (
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// ParseAmount converts a user supplied string into a positive amount.
//
// Rounding is half-up on the third decimal place.
//
// Examples:
//
//	ParseAmount("12.34")  -> 12.34, nil
//	ParseAmount("12,34")  -> 12.34, nil
//	ParseAmount("12.345") -> 12.35, nil
//	ParseAmount("-1")     -> 0, ErrInvalidAmount
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	s = strings.NewReplacer(" ", "", "_", "").Replace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return decimal.Zero, ErrInvalidAmount
	}
	if strings.Count(s, ".") > 1 {
		return decimal.Zero, ErrInvalidAmount
	}
	for _, r := range s {
		if r != '.' && !unicode.IsDigit(r) {
			return decimal.Zero, ErrInvalidAmount
		}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	d = d.Round(2)
	if !d.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// AmountFromAny accepts the shapes an amount takes after JSON decoding.
func AmountFromAny(v any) (decimal.Decimal, error) {
	switch x := v.(type) {
	case decimal.Decimal:
		if !x.IsPositive() {
			return decimal.Zero, ErrInvalidAmount
		}
		return x.Round(2), nil
	case float64:
		d := decimal.NewFromFloat(x).Round(2)
		if !d.IsPositive() {
			return decimal.Zero, ErrInvalidAmount
		}
		return d, nil
	case int:
		return AmountFromAny(float64(x))
	case int64:
		return AmountFromAny(float64(x))
	case string:
		return ParseAmount(x)
	default:
		return decimal.Zero, ErrInvalidAmount
	}
}
