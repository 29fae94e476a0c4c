package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"anarchy.ttfm/storefront/utils"
)

var (
	ErrOrderNotFound           = errors.New("order not found")
	ErrStorageUnavailable      = errors.New("storage unavailable")
	ErrInvalidStatusTransition = errors.New("invalid status transition")
	ErrInvalidStatus           = errors.New("invalid status")
	ErrInvalidOrder            = errors.New("invalid order")
)

// Controller is the only writer of orders. Status and delivery updates for the
// same order are serialized; distinct orders never wait on each other.
type Controller struct {
	store  Store
	prices Prices
	locks  *utils.KeyedMutex
	now   func() time.Time
}

type Config struct {
	// Backing store, badger or SQL
	Store Store
	// Catalog prices checked at creation for orders naming a product.
	// Without it prices are taken as sent
	Prices Prices
	// Clock used for timestamps. Defaults to time.Now
	Now func() time.Time
}

func New(config Config) (ctrl *Controller) {
	ctrl = &Controller{
		store:  config.Store,
		prices: config.Prices,
		locks:  utils.NewKeyedMutex(),
		now:    config.Now,
	}
	if ctrl.now == nil {
		ctrl.now = time.Now
	}
	return ctrl
}

// storageError keeps domain and context errors as they are and marks
// everything else as a retryable storage failure
func storageError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, ErrOrderNotFound),
		errors.Is(err, ErrInvalidStatusTransition),
		errors.Is(err, ErrInvalidStatus),
		errors.Is(err, ErrInvalidOrder),
		errors.Is(err, ErrStorageUnavailable):
		return err
	default:
		return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
}
