package detection

import (
	"errors"
	"fmt"
	"time"

	"anarchy.ttfm/storefront/blockchains"
	"anarchy.ttfm/storefront/decimal"
)

var ErrInvalidPolicy = errors.New("invalid policy")

const (
	DefaultMinConfirmations = 2
	DefaultInterval         = 2 * time.Minute
	DefaultMaxDuration      = 6 * time.Hour
)

// DefaultTolerance accepts payments of at least 95% of the expected amount
var DefaultTolerance = decimal.MustParse("0.95")

// Policy holds the business tunables of payment detection
type Policy struct {
	// Fraction of the expected amount that counts as paid
	Tolerance decimal.Decimal
	// Depth required before the payment is final
	MinConfirmations int
	// Time between two checks
	Interval time.Duration
	// Display cap for confirmations
	ConfirmationCap int
	// Sessions still detecting after this long are abandoned
	MaxDuration time.Duration
}

func DefaultPolicy() (p Policy) {
	return Policy{
		Tolerance:        DefaultTolerance,
		MinConfirmations: DefaultMinConfirmations,
		Interval:         DefaultInterval,
		ConfirmationCap:  blockchains.DefaultConfirmationCap,
		MaxDuration:      DefaultMaxDuration,
	}
}

func (p *Policy) Validate() (err error) {
	switch {
	case !p.Tolerance.IsPositive() || p.Tolerance.GreaterThan(decimal.MustParse("1")):
		return fmt.Errorf("%w: tolerance must be in (0, 1]: %s", ErrInvalidPolicy, p.Tolerance)
	case p.MinConfirmations < 1:
		return fmt.Errorf("%w: min confirmations must be positive", ErrInvalidPolicy)
	case p.ConfirmationCap < p.MinConfirmations:
		return fmt.Errorf("%w: confirmation cap below min confirmations", ErrInvalidPolicy)
	case p.Interval <= 0:
		return fmt.Errorf("%w: interval must be positive", ErrInvalidPolicy)
	case p.MaxDuration < p.Interval:
		return fmt.Errorf("%w: max duration shorter than interval", ErrInvalidPolicy)
	default:
		return nil
	}
}

// Received reports if received covers the tolerated fraction of expected
func (p *Policy) Received(received, expected decimal.Decimal) (ok bool) {
	return decimal.AtLeastFraction(received, expected, p.Tolerance)
}

// Final reports if the payment is deep enough
func (p *Policy) Final(confirmations int) (ok bool) {
	return confirmations >= p.MinConfirmations
}
