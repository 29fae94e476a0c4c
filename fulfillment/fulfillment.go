// Package fulfillment attaches delivery artifacts to paid orders and
// completes them.
package fulfillment

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand/v2"

	"anarchy.ttfm/storefront/catalog"
	"anarchy.ttfm/storefront/notify"
	"anarchy.ttfm/storefront/orders"
	"anarchy.ttfm/storefront/random"
	"anarchy.ttfm/storefront/utils"
	"github.com/google/uuid"
)

var (
	// The notification names another product than the order
	ErrProductMismatch = errors.New("product does not match the order")
	// The order price is below the price of the product it would deliver
	ErrUnderpriced = errors.New("order priced below its product")
)

type Orders interface {
	Get(ctx context.Context, id uuid.UUID) (order orders.Order, err error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status orders.Status) (order orders.Order, changed bool, err error)
	AttachDelivery(ctx context.Context, id uuid.UUID, delivery orders.Delivery) (order orders.Order, err error)
}

type Products interface {
	Get(ctx context.Context, id string) (product catalog.Product, err error)
	ByName(ctx context.Context, name string) (product catalog.Product, err error)
}

type (
	// Request is the inbound fulfillment notification
	Request struct {
		OrderId   uuid.UUID
		ProductId string
		// When set it must own the order
		PayerEmail string
	}
	Content struct {
		DownloadUrl string
		LicenseKey  string
	}
	Delivery struct {
		Method  catalog.DeliveryType
		Content Content
		Order   orders.Order
	}
)

type Config struct {
	Orders   Orders
	Products Products
	// Defaults to notify.Log
	Notifier notify.Notifier
	// Source of license key randomness. Defaults to random.CryptoRand
	Rand func() *rand.Rand
}

// Hook completes orders. Concurrent calls for the same order run one after
// the other so that a license key is generated at most once.
type Hook struct {
	orders   Orders
	products Products
	notifier notify.Notifier
	rand     func() *rand.Rand
	locks    *utils.KeyedMutex
}

func New(config Config) (h *Hook) {
	h = &Hook{
		orders:   config.Orders,
		products: config.Products,
		notifier: config.Notifier,
		rand:     config.Rand,
		locks:    utils.NewKeyedMutex(),
	}
	if h.notifier == nil {
		h.notifier = notify.Log{}
	}
	if h.rand == nil {
		h.rand = random.CryptoRand
	}
	return h
}

// Fulfill handles the inbound webhook. Orders not owned by PayerEmail are
// reported as missing. A ProductId only fills in for orders without one.
func (h *Hook) Fulfill(ctx context.Context, req Request) (delivery Delivery, err error) {
	unlock := h.locks.Lock(req.OrderId.String())
	defer unlock()

	order, err := h.orders.Get(ctx, req.OrderId)
	if err != nil {
		return delivery, err
	}
	if req.PayerEmail != "" && !order.OwnedBy(req.PayerEmail) {
		return delivery, orders.ErrOrderNotFound
	}

	productId := order.ProductId
	switch {
	case productId == "":
		productId = req.ProductId
	case req.ProductId != "" && req.ProductId != productId:
		return delivery, fmt.Errorf("%w: %q for %q", ErrProductMismatch, req.ProductId, productId)
	}
	return h.deliver(ctx, order, productId)
}

// Settle completes an order whose payment detection confirmed
func (h *Hook) Settle(ctx context.Context, orderId uuid.UUID) (err error) {
	unlock := h.locks.Lock(orderId.String())
	defer unlock()

	order, err := h.orders.Get(ctx, orderId)
	if err != nil {
		return err
	}
	_, err = h.deliver(ctx, order, order.ProductId)
	return err
}

func (h *Hook) product(ctx context.Context, order *orders.Order, productId string) (product catalog.Product, err error) {
	if productId != "" {
		return h.products.Get(ctx, productId)
	}
	return h.products.ByName(ctx, order.ProductName)
}

func optional(s string) (p *string) {
	if s == "" {
		return nil
	}
	return &s
}

func (h *Hook) deliver(ctx context.Context, order orders.Order, productId string) (delivery Delivery, err error) {
	product, err := h.product(ctx, &order, productId)
	if err != nil {
		return delivery, fmt.Errorf("failed to resolve product: %w", err)
	}
	price, err := order.Price()
	if err != nil || price.LessThan(product.PriceDecimal()) {
		return delivery, fmt.Errorf("%w: %s for %s at %s", ErrUnderpriced, order.ProductPrice, product.Id, product.Price)
	}

	delivery.Method = product.DeliveryType
	if delivery.Method == "" {
		delivery.Method = catalog.DeliveryDownload
	}

	// Artifacts attached before are kept
	delivery.Content = Content{LicenseKey: order.LicenseKey, DownloadUrl: order.DownloadUrl}
	if delivery.Content.LicenseKey == "" && product.LicenseKey != "" {
		delivery.Content.LicenseKey = random.Template(h.rand(), random.CharsetKey, product.LicenseKey)
	}
	if delivery.Content.DownloadUrl == "" {
		delivery.Content.DownloadUrl = product.DeliveryUrl
	}

	_, _, err = h.orders.UpdateStatus(ctx, order.Id, orders.StatusConfirmed)
	if err != nil && !errors.Is(err, orders.ErrInvalidStatusTransition) {
		return delivery, fmt.Errorf("failed to confirm order: %w", err)
	}

	_, err = h.orders.AttachDelivery(ctx, order.Id, orders.Delivery{
		LicenseKey:  optional(delivery.Content.LicenseKey),
		DownloadUrl: optional(delivery.Content.DownloadUrl),
	})
	if err != nil {
		return delivery, fmt.Errorf("failed to attach delivery: %w", err)
	}

	completed, changed, err := h.orders.UpdateStatus(ctx, order.Id, orders.StatusCompleted)
	if err != nil {
		return delivery, fmt.Errorf("failed to complete order: %w", err)
	}
	delivery.Order = completed

	if changed {
		log.Println("INFO|FULFILLMENT|COMPLETED", order.Id, delivery.Method)
		err = h.notifier.OrderCompleted(ctx, completed)
		if err != nil {
			log.Println("ERROR|FULFILLMENT|NOTIFY", order.Id, err)
		}
	}
	return delivery, nil
}
