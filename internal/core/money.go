// Package core provides money parsing and handling utilities.
//
// This file contains the parser used for user typed amounts and the
// rupee formatter used by the command line views.
package core

import (
	"math"
	"strconv"
	"strings"
	"unicode"
)

// ParseAmount converts a decimal string into a positive amount.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and
// rejects signs, exponents, grouping and zero. Digits are kept as typed;
// precision is not rounded to minor units.
//
// Examples:
//   ParseAmount("250.5") -> 250.5, nil
//   ParseAmount("49,5")  -> 49.5, nil
//   ParseAmount("-1")    -> 0, error
func ParseAmount(s string) (float64, error) {
	invalid := &ValidationError{Field: "amount", Reason: "must be a positive number"}
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, invalid
	}
	// Normalize decimal comma to dot
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		// Only positive values allowed
		return 0, invalid
	}
	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return 0, invalid
	}
	for _, part := range parts {
		for _, r := range part {
			if !unicode.IsDigit(r) {
				return 0, invalid
			}
		}
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v <= 0 || math.IsInf(v, 0) {
		return 0, invalid
	}
	return v, nil
}

// FormatRupees renders an amount the way the app shows it: rupee sign,
// Indian digit grouping (12,34,567) and no fractional digits.
func FormatRupees(amount float64) string {
	neg := amount < 0
	digits := strconv.FormatFloat(math.Abs(math.Round(amount)), 'f', 0, 64)

	var b strings.Builder
	b.WriteString("₹ ")
	if neg {
		b.WriteByte('-')
	}
	if len(digits) <= 3 {
		b.WriteString(digits)
		return b.String()
	}
	head, tail := digits[:len(digits)-3], digits[len(digits)-3:]
	// Leading group may be one or two digits; the rest are pairs.
	first := len(head) % 2
	if first == 0 {
		first = 2
	}
	b.WriteString(head[:first])
	for i := first; i < len(head); i += 2 {
		b.WriteByte(',')
		b.WriteString(head[i : i+2])
	}
	b.WriteByte(',')
	b.WriteString(tail)
	return b.String()
}

// FormatAmount renders an amount with the shortest exact decimal form,
// as used in CSV and spreadsheet exports.
func FormatAmount(amount float64) string {
	return strconv.FormatFloat(amount, 'f', -1, 64)
}
