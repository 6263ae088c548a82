package domain

import (
	"math"
	"strconv"
	"strings"
)

// MoneyEpsilon is the tolerance used when comparing money fields. Amounts
// closer than this are considered equal, so float noise from arithmetic on
// submitted values never produces spurious change records.
const MoneyEpsilon = 0.01

// MoneyChanged reports whether two amounts differ beyond MoneyEpsilon.
func MoneyChanged(previous, current float64) bool {
	return math.Abs(current-previous) > MoneyEpsilon
}

// CoerceFloat parses a submitted numeric value. Blank, malformed, NaN and
// infinite inputs all coerce to 0; the update path never fails on a bad
// number.
func CoerceFloat(s string) float64 {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return 0
	}

	// Tolerate a decimal comma from manual entry.
	trimmed = strings.ReplaceAll(trimmed, ",", ".")

	v, err := strconv.ParseFloat(trimmed, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// CoerceInt parses a submitted count value with the same permissive rules
// as CoerceFloat; fractional input truncates toward zero.
func CoerceInt(s string) int {
	return int(CoerceFloat(s))
}
