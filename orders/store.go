package orders

import (
	"context"

	"anarchy.ttfm/storefront/decimal"
	"github.com/google/uuid"
)

// Prices resolves the list price of catalog products
type Prices interface {
	Price(ctx context.Context, productId string) (price decimal.Decimal, err error)
}

// Store persists orders. Implementations return ErrOrderNotFound for unknown
// ids and must run Update as one atomic read-modify-write: a concurrent
// Update of the same id either sees the result of apply or is retried.
type Store interface {
	Insert(ctx context.Context, order Order) (err error)
	Get(ctx context.Context, id uuid.UUID) (order Order, err error)
	// List returns every order, newest first
	List(ctx context.Context) (orders []Order, err error)
	// ListByPayer returns the orders indexed under the normalized payer key, newest first
	ListByPayer(ctx context.Context, payer string) (orders []Order, err error)
	// Update loads the order, calls apply and saves the result unless apply fails
	Update(ctx context.Context, id uuid.UUID, apply func(order *Order) error) (order Order, err error)
}
