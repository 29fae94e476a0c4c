package blockchains

import (
	"context"
	"errors"
	"fmt"

	"anarchy.ttfm/storefront/decimal"
)

var (
	ErrConfirmationCheckFailed = errors.New("confirmation check failed")
	ErrInvalidNetwork          = errors.New("invalid network")
)

// Confirmations above this value say nothing new to the storefront
const DefaultConfirmationCap = 6

type Network string

const (
	NetworkBitcoin  Network = "bitcoin-main"
	NetworkLitecoin Network = "litecoin-main"
)

// Validate if the provided network is supported
func (n Network) Validate() (err error) {
	switch n {
	case NetworkBitcoin, NetworkLitecoin:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidNetwork, n)
	}
}

// UnitExp returns the decimal places between the smallest on-chain unit and
// the display unit
func (n Network) UnitExp() (exp int32) {
	switch n {
	case NetworkLitecoin:
		return decimal.LitoshiExp
	default:
		return decimal.SatoshiExp
	}
}

type (
	CheckRequest struct {
		// Network the address belongs to
		Network Network
		// Address receiving the payment
		Address string
	}
	Confirmation struct {
		// Depth of the latest transaction, clamped to the checker cap
		Confirmations int
		// Total received by the address in display units, unconfirmed included
		Received decimal.Decimal
		// Current balance in display units
		Balance decimal.Decimal
	}
)

// Checker reports how much an address received and how deep its latest
// transaction is. Every failure must wrap ErrConfirmationCheckFailed.
type Checker interface {
	Check(ctx context.Context, req CheckRequest) (confirmation Confirmation, err error)
}

// Failed wraps err so callers can match it with ErrConfirmationCheckFailed
func Failed(err error) error {
	if err == nil || errors.Is(err, ErrConfirmationCheckFailed) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrConfirmationCheckFailed, err)
}
