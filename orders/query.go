package orders

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

func (c *Controller) Get(ctx context.Context, id uuid.UUID) (order Order, err error) {
	order, err = c.store.Get(ctx, id)
	if err != nil {
		return order, storageError(err)
	}
	return order, nil
}

// List every order, newest first
func (c *Controller) List(ctx context.Context) (orders []Order, err error) {
	orders, err = c.store.List(ctx)
	if err != nil {
		return nil, storageError(fmt.Errorf("failed to list orders: %w", err))
	}
	return orders, nil
}

// ForPayer lists the orders of a payer, newest first. Unknown payers get an
// empty slice.
func (c *Controller) ForPayer(ctx context.Context, payer string) (orders []Order, err error) {
	key := NormalizePayer(payer)
	if key == "" {
		return []Order{}, nil
	}

	orders, err = c.store.ListByPayer(ctx, key)
	if err != nil {
		return nil, storageError(fmt.Errorf("failed to list payer orders: %w", err))
	}
	if orders == nil {
		orders = []Order{}
	}
	return orders, nil
}

// PayerOrder returns the order only when payer owns it. Orders of someone
// else look exactly like missing ones.
func (c *Controller) PayerOrder(ctx context.Context, id uuid.UUID, payer string) (order Order, err error) {
	order, err = c.Get(ctx, id)
	if err != nil {
		return Order{}, err
	}
	if !order.OwnedBy(payer) {
		return Order{}, ErrOrderNotFound
	}
	return order, nil
}
