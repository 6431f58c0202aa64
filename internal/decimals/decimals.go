// Package decimals rescales integer token amounts between fixed-point
// precisions. All arithmetic is on big.Int; no floats anywhere, so sums
// across markets never drift.
package decimals

import (
	"math/big"
	"strings"
)

// Canonical is the common precision platform-wide totals are normalized to.
const Canonical uint8 = 18

var ten = big.NewInt(10)

// pow10 cache for exponents we actually hit (0..38 covers two uint256 tokens).
var pow10Tab [39]*big.Int

func init() {
	pow10Tab[0] = big.NewInt(1)
	for i := 1; i < len(pow10Tab); i++ {
		pow10Tab[i] = new(big.Int).Mul(pow10Tab[i-1], ten)
	}
}

func pow10(n uint) *big.Int {
	if n < uint(len(pow10Tab)) {
		return pow10Tab[n]
	}
	return new(big.Int).Exp(ten, big.NewInt(int64(n)), nil)
}

// Rescale converts v from one decimal precision to another. Downscaling
// integer-divides and truncates sub-unit precision; upscaling is exact.
// The input is never mutated.
func Rescale(v *big.Int, from, to uint8) *big.Int {
	out := new(big.Int)
	if v == nil {
		return out
	}
	switch {
	case from == to:
		out.Set(v)
	case from > to:
		out.Quo(v, pow10(uint(from-to)))
	default:
		out.Mul(v, pow10(uint(to-from)))
	}
	return out
}

// Format renders a raw amount as a human decimal string, trimming trailing
// fractional zeros without rounding. Format(10500000, 6) == "10.5".
func Format(v *big.Int, dec uint8) string {
	if v == nil || v.Sign() == 0 {
		return "0"
	}
	s := new(big.Int).Abs(v).String()
	neg := v.Sign() < 0

	d := int(dec)
	if len(s) <= d {
		s = strings.Repeat("0", d-len(s)+1) + s
	}

	whole := s[:len(s)-d]
	frac := s[len(s)-d:]
	frac = strings.TrimRight(frac, "0")

	out := whole
	if frac != "" {
		out = whole + "." + frac
	}
	if neg {
		out = "-" + out
	}
	return out
}
