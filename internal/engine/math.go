package engine

import (
	"fmt"
	"math/bits"

	"github.com/outcomelabs/marketd/internal/domain"
)

// feeDenominator is the basis-point denominator for AMM fees.
const feeDenominator = 10_000

// addU64 returns a+b or ErrArithmetic on overflow.
func addU64(a, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, fmt.Errorf("%w: %d + %d", domain.ErrArithmetic, a, b)
	}
	return sum, nil
}

// subU64 returns a-b or ErrArithmetic on underflow.
func subU64(a, b uint64) (uint64, error) {
	diff, borrow := bits.Sub64(a, b, 0)
	if borrow != 0 {
		return 0, fmt.Errorf("%w: %d - %d", domain.ErrArithmetic, a, b)
	}
	return diff, nil
}

// mulDiv returns floor(a*b/d) with a 128-bit intermediate product. It
// returns ErrArithmetic when d is zero or the quotient exceeds 64 bits.
func mulDiv(a, b, d uint64) (uint64, error) {
	if d == 0 {
		return 0, fmt.Errorf("%w: division by zero", domain.ErrArithmetic)
	}
	hi, lo := bits.Mul64(a, b)
	if hi >= d {
		return 0, fmt.Errorf("%w: %d * %d / %d exceeds 64 bits", domain.ErrArithmetic, a, b, d)
	}
	q, _ := bits.Div64(hi, lo, d)
	return q, nil
}
