package orders

import (
	"context"
	"fmt"
	"strings"

	"anarchy.ttfm/storefront/decimal"
	"github.com/google/uuid"
)

// Validate the checkout request
func (c *Create) Validate() (err error) {
	if strings.TrimSpace(c.ProductName) == "" {
		return fmt.Errorf("%w: product name is required", ErrInvalidOrder)
	}
	if _, err = decimal.Parse(c.ProductPrice); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidOrder, err)
	}
	if NormalizePayer(c.PayerId) == "" {
		return fmt.Errorf("%w: payer is required", ErrInvalidOrder)
	}
	if err = c.PaymentMethod.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(c.WalletAddress) == "" {
		return fmt.Errorf("%w: wallet address is required", ErrInvalidOrder)
	}
	return nil
}

// checkPrice fails unless the order is priced at the catalog price of its
// product
func (c *Controller) checkPrice(ctx context.Context, req *Create) (err error) {
	if c.prices == nil || req.ProductId == "" {
		return nil
	}

	listed, err := c.prices.Price(ctx, req.ProductId)
	if err != nil {
		return fmt.Errorf("failed to price product %q: %w", req.ProductId, err)
	}
	price, err := decimal.Parse(req.ProductPrice)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidOrder, err)
	}
	if !price.Equal(listed) {
		return fmt.Errorf("%w: price %s does not match the listed %s", ErrInvalidOrder, price, listed)
	}
	return nil
}

// Create stores a new pending order
func (c *Controller) Create(ctx context.Context, req Create) (order Order, err error) {
	err = req.Validate()
	if err != nil {
		return order, err
	}
	err = c.checkPrice(ctx, &req)
	if err != nil {
		return order, err
	}

	now := c.now().UTC()
	order = Order{
		Id:            uuid.New(),
		ProductId:     req.ProductId,
		ProductName:   strings.TrimSpace(req.ProductName),
		ProductPrice:  req.ProductPrice,
		PayerId:       strings.TrimSpace(req.PayerId),
		PayerEmail:    strings.TrimSpace(req.PayerEmail),
		PaymentMethod: req.PaymentMethod,
		WalletAddress: strings.TrimSpace(req.WalletAddress),
		Status:        StatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	err = c.store.Insert(ctx, order)
	if err != nil {
		return Order{}, storageError(fmt.Errorf("failed to insert order: %w", err))
	}
	return order, nil
}
