// Package fixedpoint provides checked fixed-point arithmetic for sale
// accounting. All state lives in uint64; every multiply/divide widens to
// 256-bit intermediates and fails instead of wrapping. Divisions floor.
package fixedpoint

import (
	"errors"

	"github.com/holiman/uint256"
)

// Decimal scales for the units the accounting engine deals in.
const (
	USDDecimals    = 6 // 1 USD = 1_000_000 units
	TokenDecimals  = 9 // 1 project token = 1_000_000_000 units
	NativeDecimals = 9 // 1 native coin = 1_000_000_000 units
)

// Unit values in smallest-unit terms.
const (
	USDUnit    = uint64(1_000_000)
	TokenUnit  = uint64(1_000_000_000)
	NativeUnit = uint64(1_000_000_000)
)

var (
	// ErrOverflow reports a result that does not fit in uint64, or an
	// underflowing subtraction. Adversarial input, fatal to the command.
	ErrOverflow = errors.New("fixedpoint: overflow")

	// ErrDivideByZero reports a zero divisor.
	ErrDivideByZero = errors.New("fixedpoint: divide by zero")
)

// Add returns a+b, failing on wraparound.
func Add(a, b uint64) (uint64, error) {
	sum := a + b
	if sum < a {
		return 0, ErrOverflow
	}
	return sum, nil
}

// Sub returns a-b, failing on underflow.
func Sub(a, b uint64) (uint64, error) {
	if b > a {
		return 0, ErrOverflow
	}
	return a - b, nil
}

// MulDiv returns floor(a*b/den) with a 256-bit intermediate product.
// The product of two uint64 values always fits, so the only failure
// modes are a zero divisor and a quotient wider than 64 bits.
func MulDiv(a, b, den uint64) (uint64, error) {
	if den == 0 {
		return 0, ErrDivideByZero
	}
	prod := new(uint256.Int).Mul(uint256.NewInt(a), uint256.NewInt(b))
	quot := prod.Div(prod, uint256.NewInt(den))
	if !quot.IsUint64() {
		return 0, ErrOverflow
	}
	return quot.Uint64(), nil
}

// Percent returns floor(a*pct/100).
func Percent(a uint64, pct uint8) (uint64, error) {
	return MulDiv(a, uint64(pct), 100)
}

// pow10 for the decimal scales used here; all well inside uint64.
func pow10(decimals uint32) uint64 {
	n := uint64(1)
	for i := uint32(0); i < decimals; i++ {
		n *= 10
	}
	return n
}

// ToUSD converts an amount of a payment asset into 6-decimal USD units:
//
//	usd = amount * unitPriceUSD / 10^assetDecimals
//
// unitPriceUSD is the 6-decimal USD price of one whole asset unit.
func ToUSD(amount, unitPriceUSD uint64, assetDecimals uint32) (uint64, error) {
	return MulDiv(amount, unitPriceUSD, pow10(assetDecimals))
}

// TokensForUSD converts a 6-decimal USD amount into 9-decimal token units
// at priceUSDPerToken (6-decimal USD per whole token):
//
//	tokens = usd * 10^9 / priceUSDPerToken
func TokensForUSD(usd, priceUSDPerToken uint64) (uint64, error) {
	return MulDiv(usd, TokenUnit, priceUSDPerToken)
}
