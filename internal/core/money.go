// Package core provides money parsing and handling utilities.
//
// Amounts are exact decimals; floats never enter the computation.
package core

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// plainAmount is a positional decimal with at most 15 integer and 8
// fraction digits. Exponents, signs, Infinity and NaN never match.
var plainAmount = regexp.MustCompile(`^(\d{1,15}([.,]\d{0,8})?|[.,]\d{1,8})$`)

// ParseAmount converts a user supplied decimal string into a positive amount.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators.
// Returns ErrInvalidAmount for empty, malformed, zero or negative input
// and for scientific notation.
//
// Examples:
//
//	ParseAmount("4.50") -> 4.5, nil
//	ParseAmount("4,50") -> 4.5, nil
//	ParseAmount("0")    -> 0, ErrInvalidAmount
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if !plainAmount.MatchString(s) {
		return decimal.Zero, ErrInvalidAmount
	}
	// Normalize decimal comma to dot
	s = strings.ReplaceAll(s, ",", ".")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	if !d.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}
