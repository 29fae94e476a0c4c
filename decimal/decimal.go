package decimal

import (
	"errors"
	"fmt"
	"math/big"

	shopspring "github.com/shopspring/decimal"
)

// Decimal is an exact base-10 number. Prices, tolerances and received amounts
// all go through it so that boundary checks never suffer float rounding.
type Decimal = shopspring.Decimal

var (
	Zero = shopspring.Zero

	ErrNegative = errors.New("negative amounts are not allowed")
)

// Units of the supported chains expressed as a power of ten
const (
	SatoshiExp int32 = 8
	LitoshiExp int32 = 8
)

// FromUnits converts an amount expressed in the smallest on-chain unit to the
// display unit. exp is the number of decimal places of the chain.
func FromUnits(v uint64, exp int32) (d Decimal) {
	return shopspring.NewFromBigInt(new(big.Int).SetUint64(v), -exp)
}

// ToUnits converts a display amount back to the smallest unit. Fractions below
// the unit are truncated.
func ToUnits(d Decimal, exp int32) (v uint64) {
	if d.IsNegative() {
		return 0
	}
	return uint64(d.Shift(exp).IntPart())
}

// Parse reads a non negative decimal string like "29.99"
func Parse(s string) (d Decimal, err error) {
	d, err = shopspring.NewFromString(s)
	if err != nil {
		return d, fmt.Errorf("failed to parse decimal: %s: %w", s, err)
	}
	if d.IsNegative() {
		return d, fmt.Errorf("%w: %s", ErrNegative, s)
	}
	return d, nil
}

// MustParse is Parse for constants
func MustParse(s string) (d Decimal) {
	d, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return d
}

// AtLeastFraction reports if received >= fraction * expected
func AtLeastFraction(received, expected, fraction Decimal) (ok bool) {
	return received.GreaterThanOrEqual(expected.Mul(fraction))
}
