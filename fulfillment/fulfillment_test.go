package fulfillment_test

import (
	"context"
	"regexp"
	"sync"
	"testing"

	"anarchy.ttfm/storefront/catalog"
	"anarchy.ttfm/storefront/fulfillment"
	"anarchy.ttfm/storefront/orders"
	"anarchy.ttfm/storefront/utils"
	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

type counter struct {
	mu    sync.Mutex
	calls map[uuid.UUID]int
}

func (c *counter) OrderCompleted(ctx context.Context, order orders.Order) (err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls[order.Id]++
	return nil
}

func (c *counter) Calls(id uuid.UUID) (n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[id]
}

type env struct {
	orders   *orders.Controller
	hook     *fulfillment.Hook
	notified *counter
}

func newEnv(t *testing.T) (e *env) {
	options := badger.
		DefaultOptions("").
		WithLoggingLevel(badger.ERROR).
		WithLogger(nil).
		WithInMemory(true)
	db, err := badger.Open(options)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	products := catalog.New(catalog.Config{DB: db})
	ctx, cancel := utils.NewContext()
	defer cancel()
	_, _, err = products.Seed(ctx, catalog.DefaultSeed)
	if err != nil {
		t.Fatalf("failed to seed: %v", err)
	}

	e = &env{
		orders:   orders.New(orders.Config{Store: orders.NewBadgerStore(db)}),
		notified: &counter{calls: map[uuid.UUID]int{}},
	}
	e.hook = fulfillment.New(fulfillment.Config{
		Orders:   e.orders,
		Products: products,
		Notifier: e.notified,
	})
	return e
}

func (e *env) order(t *testing.T, productId, productName string) (order orders.Order) {
	ctx, cancel := utils.NewContext()
	defer cancel()

	order, err := e.orders.Create(ctx, orders.Create{
		ProductId:     productId,
		ProductName:   productName,
		ProductPrice:  "29.99",
		PayerId:       "user-7",
		PayerEmail:    "Carol@Example.com",
		PaymentMethod: orders.PaymentPaypal,
		WalletAddress: "payments@example.com",
	})
	if err != nil {
		t.Fatalf("failed to create order: %v", err)
	}
	return order
}

var generatedKey = regexp.MustCompile(`^PFORGE-6M-[A-Z2-9]{4}$`)

func Test_Fulfill(t *testing.T) {
	t.Run("Completes", func(t *testing.T) {
		assertions := assert.New(t)
		e := newEnv(t)

		ctx, cancel := utils.NewContext()
		defer cancel()

		order := e.order(t, "pixelforge-6m", "PixelForge Pro - 6 Months")
		delivery, err := e.hook.Fulfill(ctx, fulfillment.Request{OrderId: order.Id, ProductId: "pixelforge-6m", PayerEmail: "carol@example.com"})
		assertions.Nil(err, "failed to fulfill")
		assertions.Equal(catalog.DeliveryDownload, delivery.Method)
		assertions.Regexp(generatedKey, delivery.Content.LicenseKey)
		assertions.Equal("https://downloads.example.com/pixelforge/setup.zip", delivery.Content.DownloadUrl)
		assertions.Equal(orders.StatusCompleted, delivery.Order.Status)
		assertions.Equal(delivery.Content.LicenseKey, delivery.Order.LicenseKey)
		assertions.Equal(1, e.notified.Calls(order.Id))
	})
	t.Run("Idempotent", func(t *testing.T) {
		assertions := assert.New(t)
		e := newEnv(t)

		ctx, cancel := utils.NewContext()
		defer cancel()

		order := e.order(t, "pixelforge-6m", "PixelForge Pro - 6 Months")
		first, err := e.hook.Fulfill(ctx, fulfillment.Request{OrderId: order.Id})
		assertions.Nil(err, "failed to fulfill")
		second, err := e.hook.Fulfill(ctx, fulfillment.Request{OrderId: order.Id})
		assertions.Nil(err, "failed to fulfill again")
		assertions.Nil(e.hook.Settle(ctx, order.Id), "failed to settle")

		assertions.Equal(first.Content, second.Content)
		stored, err := e.orders.Get(ctx, order.Id)
		assertions.Nil(err)
		assertions.Equal(first.Content.LicenseKey, stored.LicenseKey)
		assertions.Equal(1, e.notified.Calls(order.Id), "customer notified more than once")
	})
	t.Run("Concurrent", func(t *testing.T) {
		assertions := assert.New(t)
		e := newEnv(t)

		ctx, cancel := utils.NewContext()
		defer cancel()

		order := e.order(t, "pixelforge-6m", "PixelForge Pro - 6 Months")

		var (
			wg   sync.WaitGroup
			mu   sync.Mutex
			keys = map[string]struct{}{}
		)
		for i := range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if i%2 == 0 {
					assertions.Nil(e.hook.Settle(ctx, order.Id))
					return
				}
				delivery, err := e.hook.Fulfill(ctx, fulfillment.Request{OrderId: order.Id})
				assertions.Nil(err)
				mu.Lock()
				keys[delivery.Content.LicenseKey] = struct{}{}
				mu.Unlock()
			}()
		}
		wg.Wait()

		assertions.Len(keys, 1, "license key generated more than once")
		assertions.Equal(1, e.notified.Calls(order.Id))
	})
	t.Run("Already completed by admin", func(t *testing.T) {
		assertions := assert.New(t)
		e := newEnv(t)

		ctx, cancel := utils.NewContext()
		defer cancel()

		order := e.order(t, "netguard-1y", "NetGuard VPN - 1 Year")
		_, _, err := e.orders.UpdateStatus(ctx, order.Id, orders.StatusCompleted)
		assertions.Nil(err)

		delivery, err := e.hook.Fulfill(ctx, fulfillment.Request{OrderId: order.Id})
		assertions.Nil(err, "failed to fulfill completed order")
		assertions.Equal(catalog.DeliveryKey, delivery.Method)
		assertions.Regexp(`^NETG-[A-Z2-9]{4}-[A-Z2-9]{4}-[A-Z2-9]{4}$`, delivery.Content.LicenseKey)
		assertions.Empty(delivery.Content.DownloadUrl)
		assertions.Equal(0, e.notified.Calls(order.Id), "completion happened before fulfillment")
	})
	t.Run("Fallback to name", func(t *testing.T) {
		assertions := assert.New(t)
		e := newEnv(t)

		ctx, cancel := utils.NewContext()
		defer cancel()

		order := e.order(t, "", "Starfall Online Starter Account")
		delivery, err := e.hook.Fulfill(ctx, fulfillment.Request{OrderId: order.Id})
		assertions.Nil(err, "failed to fulfill")
		assertions.Equal(catalog.DeliveryAccount, delivery.Method)
		assertions.Equal(fulfillment.Content{}, delivery.Content)
		assertions.Equal(orders.StatusCompleted, delivery.Order.Status)
	})
	t.Run("Foreign payer", func(t *testing.T) {
		assertions := assert.New(t)
		e := newEnv(t)

		ctx, cancel := utils.NewContext()
		defer cancel()

		order := e.order(t, "pixelforge-6m", "PixelForge Pro - 6 Months")
		_, err := e.hook.Fulfill(ctx, fulfillment.Request{OrderId: order.Id, PayerEmail: "mallory@example.com"})
		assertions.ErrorIs(err, orders.ErrOrderNotFound)

		stored, err := e.orders.Get(ctx, order.Id)
		assertions.Nil(err)
		assertions.Equal(orders.StatusPending, stored.Status)
	})
	t.Run("Unknown product", func(t *testing.T) {
		assertions := assert.New(t)
		e := newEnv(t)

		ctx, cancel := utils.NewContext()
		defer cancel()

		order := e.order(t, "", "Vanished Product")
		_, err := e.hook.Fulfill(ctx, fulfillment.Request{OrderId: order.Id, ProductId: "vanished"})
		assertions.ErrorIs(err, catalog.ErrProductNotFound)

		_, err = e.hook.Fulfill(ctx, fulfillment.Request{OrderId: uuid.New()})
		assertions.ErrorIs(err, orders.ErrOrderNotFound)
	})
	t.Run("Product mismatch", func(t *testing.T) {
		assertions := assert.New(t)
		e := newEnv(t)

		ctx, cancel := utils.NewContext()
		defer cancel()

		order := e.order(t, "netguard-1y", "NetGuard VPN - 1 Year")
		_, err := e.hook.Fulfill(ctx, fulfillment.Request{OrderId: order.Id, ProductId: "pixelforge-lt"})
		assertions.ErrorIs(err, fulfillment.ErrProductMismatch)

		stored, err := e.orders.Get(ctx, order.Id)
		assertions.Nil(err)
		assertions.Equal(orders.StatusPending, stored.Status)
		assertions.Empty(stored.LicenseKey)
	})
	t.Run("Underpriced", func(t *testing.T) {
		assertions := assert.New(t)
		e := newEnv(t)

		ctx, cancel := utils.NewContext()
		defer cancel()

		order := e.order(t, "", "PixelForge Pro - Lifetime")
		_, err := e.hook.Fulfill(ctx, fulfillment.Request{OrderId: order.Id})
		assertions.ErrorIs(err, fulfillment.ErrUnderpriced)

		err = e.hook.Settle(ctx, order.Id)
		assertions.ErrorIs(err, fulfillment.ErrUnderpriced)

		stored, err := e.orders.Get(ctx, order.Id)
		assertions.Nil(err)
		assertions.Equal(orders.StatusPending, stored.Status)
		assertions.Empty(stored.LicenseKey)
		assertions.Equal(0, e.notified.Calls(order.Id))
	})
}
