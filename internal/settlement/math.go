// Package settlement holds the fee, payout and loan arithmetic. Everything
// works on unsigned smallest-unit amounts and rejects overflow instead of
// wrapping.
package settlement

import (
	"math"
	"math/bits"

	"github.com/kollektive-hackathon/roulette-backend/internal/pkg/reject"
)

const BpsDenominator = 10_000

func Add(a, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, reject.ErrArithmeticOverflow
	}
	return sum, nil
}

func Sub(a, b uint64) (uint64, error) {
	diff, borrow := bits.Sub64(a, b, 0)
	if borrow != 0 {
		return 0, reject.ErrArithmeticOverflow
	}
	return diff, nil
}

func Mul(a, b uint64) (uint64, error) {
	hi, lo := bits.Mul64(a, b)
	if hi != 0 {
		return 0, reject.ErrArithmeticOverflow
	}
	return lo, nil
}

// MulDiv returns floor(a*b/d) using a 128 bit intermediate product.
func MulDiv(a, b, d uint64) (uint64, error) {
	if d == 0 {
		return 0, reject.ErrArithmeticOverflow
	}
	hi, lo := bits.Mul64(a, b)
	if hi >= d {
		return 0, reject.ErrArithmeticOverflow
	}
	quo, _ := bits.Div64(hi, lo, d)
	return quo, nil
}

func SaturatingAdd(a, b uint64) uint64 {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return math.MaxUint64
	}
	return sum
}
