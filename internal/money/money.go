// Package money provides shared monetary parsing, formatting and arithmetic.
//
// Amounts are decimal strings at every API boundary (e.g. "118.20") and are
// stored as big.Int in the smallest unit (cents, 2 decimal places) for
// arithmetic. Fee percentages use basis-point-exact half-up rounding so the
// same inputs always produce the same cent amounts.
package money

import (
	"math/big"
	"strings"
)

const Decimals = 2

// Parse converts a decimal string (e.g. "1.50") to its smallest-unit
// big.Int representation (150). Returns (nil, false) on invalid input.
//
// Rules:
//   - Empty string returns (0, true)
//   - Negative amounts are rejected
//   - Multiple decimal points are rejected
//   - Fractional parts are padded/truncated to 2 decimal places
func Parse(s string) (*big.Int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return big.NewInt(0), true
	}

	if strings.HasPrefix(s, "-") {
		return nil, false
	}

	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return nil, false
	}
	whole := parts[0]
	frac := ""
	if len(parts) > 1 {
		frac = parts[1]
	}

	// Pad or trim to 2 decimals
	for len(frac) < Decimals {
		frac += "0"
	}
	frac = frac[:Decimals]

	combined := whole + frac
	result, ok := new(big.Int).SetString(combined, 10)
	return result, ok
}

// Format converts a smallest-unit big.Int to a human-readable decimal
// string with exactly 2 decimal places (e.g. "1.50").
func Format(amount *big.Int) string {
	if amount == nil {
		return "0.00"
	}
	neg := amount.Sign() < 0
	abs := new(big.Int).Abs(amount)
	s := abs.String()
	for len(s) < Decimals+1 {
		s = "0" + s
	}
	decimal := len(s) - Decimals
	result := s[:decimal] + "." + s[decimal:]
	if neg {
		result = "-" + result
	}
	return result
}

// Add returns a+b as a decimal string. Invalid inputs are treated as zero.
func Add(a, b string) string {
	av, _ := Parse(a)
	bv, _ := Parse(b)
	if av == nil {
		av = big.NewInt(0)
	}
	if bv == nil {
		bv = big.NewInt(0)
	}
	return Format(new(big.Int).Add(av, bv))
}

// Sub returns a-b as a decimal string, clamped at zero.
// Settlement amounts are never negative: a payout computation that would
// go below zero clamps instead.
func Sub(a, b string) string {
	av, _ := Parse(a)
	bv, _ := Parse(b)
	if av == nil {
		av = big.NewInt(0)
	}
	if bv == nil {
		bv = big.NewInt(0)
	}
	result := new(big.Int).Sub(av, bv)
	if result.Sign() < 0 {
		return Format(big.NewInt(0))
	}
	return Format(result)
}

// SubSigned returns a-b without clamping, for audit deltas.
func SubSigned(a, b string) string {
	av, _ := Parse(a)
	bv, _ := Parse(b)
	if av == nil {
		av = big.NewInt(0)
	}
	if bv == nil {
		bv = big.NewInt(0)
	}
	return Format(new(big.Int).Sub(av, bv))
}

// Percent returns pct% of amount, rounded half-up to the nearest cent.
// pct is expressed in basis points divided by 100, i.e. Percent("100.00", 10)
// is "10.00". Fractional percentages are supported via PercentBPS.
func Percent(amount string, pct float64) string {
	return PercentBPS(amount, int64(pct*100+0.5))
}

// PercentBPS returns bps basis points of amount, rounded half-up.
func PercentBPS(amount string, bps int64) string {
	av, ok := Parse(amount)
	if !ok || av == nil || bps <= 0 {
		return Format(big.NewInt(0))
	}
	// amount_cents * bps / 10000, half-up
	num := new(big.Int).Mul(av, big.NewInt(bps))
	num.Add(num, big.NewInt(5000))
	num.Div(num, big.NewInt(10000))
	return Format(num)
}

// Cmp compares two decimal strings: -1 if a<b, 0 if equal, 1 if a>b.
// Invalid inputs compare as zero.
func Cmp(a, b string) int {
	av, _ := Parse(a)
	bv, _ := Parse(b)
	if av == nil {
		av = big.NewInt(0)
	}
	if bv == nil {
		bv = big.NewInt(0)
	}
	return av.Cmp(bv)
}

// IsZero reports whether the amount parses to exactly zero.
func IsZero(a string) bool {
	av, ok := Parse(a)
	return ok && av != nil && av.Sign() == 0
}

// IsValid reports whether the string is a parseable non-negative amount.
func IsValid(a string) bool {
	_, ok := Parse(a)
	return ok
}

// WithinPercent reports whether candidate is within pct% of reference.
// Used to reconcile a client-supplied total against the server-computed
// total: inside the band the client figure stands, outside it the server
// figure is substituted.
func WithinPercent(candidate, reference string, pct float64) bool {
	cv, ok1 := Parse(candidate)
	rv, ok2 := Parse(reference)
	if !ok1 || !ok2 || cv == nil || rv == nil {
		return false
	}
	if rv.Sign() == 0 {
		return cv.Sign() == 0
	}
	diff := new(big.Int).Sub(cv, rv)
	diff.Abs(diff)
	// diff * 10000 <= reference * bps
	lhs := new(big.Int).Mul(diff, big.NewInt(10000))
	rhs := new(big.Int).Mul(rv, big.NewInt(int64(pct*100+0.5)))
	return lhs.Cmp(rhs) <= 0
}
