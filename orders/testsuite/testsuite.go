package testsuite

import (
	"strings"
	"sync"
	"testing"
	"time"

	"anarchy.ttfm/storefront/orders"
	"anarchy.ttfm/storefront/random"
	"anarchy.ttfm/storefront/utils"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func NewCreate(payer string) (req orders.Create) {
	return orders.Create{
		ProductId:     "valorant-account-silver",
		ProductName:   "Valorant Account Silver",
		ProductPrice:  "29.99",
		PayerId:       payer,
		PaymentMethod: orders.PaymentBitcoin,
		WalletAddress: "bc1q" + random.String(random.PseudoRand, random.CharsetAlphaNumeric, 38),
	}
}

func randomPayer() (payer string) {
	return "Buyer." + uuid.NewString() + "@Example.com"
}

// Test runs the behaviour every Store must have, through the controller
func Test(t *testing.T, store orders.Store) {
	clock := time.Now()
	var clockMu sync.Mutex
	ctrl := orders.New(orders.Config{
		Store: store,
		Now: func() time.Time {
			clockMu.Lock()
			defer clockMu.Unlock()
			clock = clock.Add(time.Millisecond)
			return clock
		},
	})

	t.Run("Create", func(t *testing.T) {
		t.Run("Succeed", func(t *testing.T) {
			assertions := assert.New(t)

			ctx, cancel := utils.NewContext()
			defer cancel()

			order, err := ctrl.Create(ctx, NewCreate(randomPayer()))
			assertions.Nil(err, "failed to create order")
			assertions.NotEqual(uuid.Nil, order.Id)
			assertions.Equal(orders.StatusPending, order.Status)
			assertions.False(order.CreatedAt.IsZero())

			stored, err := ctrl.Get(ctx, order.Id)
			assertions.Nil(err, "failed to get order")
			assertions.Equal(order.Id, stored.Id)
			assertions.Equal("29.99", stored.ProductPrice)
			assertions.Equal(orders.StatusPending, stored.Status)
		})
		t.Run("Invalid", func(t *testing.T) {
			ctx, cancel := utils.NewContext()
			defer cancel()

			mutations := map[string]func(req *orders.Create){
				"No name":        func(req *orders.Create) { req.ProductName = "" },
				"Negative price": func(req *orders.Create) { req.ProductPrice = "-1" },
				"Bad price":      func(req *orders.Create) { req.ProductPrice = "cheap" },
				"No payer":       func(req *orders.Create) { req.PayerId = " " },
				"Bad method":     func(req *orders.Create) { req.PaymentMethod = "monero" },
				"No wallet":      func(req *orders.Create) { req.WalletAddress = "" },
			}
			for name, mutate := range mutations {
				t.Run(name, func(t *testing.T) {
					assertions := assert.New(t)

					req := NewCreate(randomPayer())
					mutate(&req)
					_, err := ctrl.Create(ctx, req)
					assertions.ErrorIs(err, orders.ErrInvalidOrder)
				})
			}
		})
	})
	t.Run("Get missing", func(t *testing.T) {
		assertions := assert.New(t)

		ctx, cancel := utils.NewContext()
		defer cancel()

		_, err := ctrl.Get(ctx, uuid.New())
		assertions.ErrorIs(err, orders.ErrOrderNotFound)
	})
	t.Run("ForPayer", func(t *testing.T) {
		t.Run("Newest first", func(t *testing.T) {
			assertions := assert.New(t)

			ctx, cancel := utils.NewContext()
			defer cancel()

			payer := randomPayer()
			var created []orders.Order
			for range 3 {
				order, err := ctrl.Create(ctx, NewCreate(payer))
				assertions.Nil(err, "failed to create order")
				created = append(created, order)
			}

			listed, err := ctrl.ForPayer(ctx, payer)
			assertions.Nil(err, "failed to list orders")
			if assertions.Len(listed, 3) {
				assertions.Equal(created[2].Id, listed[0].Id)
				assertions.Equal(created[1].Id, listed[1].Id)
				assertions.Equal(created[0].Id, listed[2].Id)
			}
		})
		t.Run("Case insensitive email", func(t *testing.T) {
			assertions := assert.New(t)

			ctx, cancel := utils.NewContext()
			defer cancel()

			req := NewCreate("user-" + uuid.NewString())
			req.PayerEmail = "Alice." + uuid.NewString() + "@Example.com"
			order, err := ctrl.Create(ctx, req)
			assertions.Nil(err, "failed to create order")

			for _, payer := range []string{req.PayerEmail, strings.ToUpper(req.PayerEmail), strings.ToLower(req.PayerEmail), req.PayerId} {
				listed, err := ctrl.ForPayer(ctx, payer)
				assertions.Nil(err, "failed to list orders")
				if assertions.Len(listed, 1, payer) {
					assertions.Equal(order.Id, listed[0].Id)
				}
			}

			listed, err := ctrl.ForPayer(ctx, strings.ToUpper(req.PayerId))
			assertions.Nil(err, "failed to list orders")
			assertions.Len(listed, 0, "user ids are exact")
		})
		t.Run("Unknown", func(t *testing.T) {
			assertions := assert.New(t)

			ctx, cancel := utils.NewContext()
			defer cancel()

			listed, err := ctrl.ForPayer(ctx, randomPayer())
			assertions.Nil(err, "failed to list orders")
			assertions.NotNil(listed)
			assertions.Len(listed, 0)
		})
	})
	t.Run("PayerOrder", func(t *testing.T) {
		assertions := assert.New(t)

		ctx, cancel := utils.NewContext()
		defer cancel()

		payer := randomPayer()
		order, err := ctrl.Create(ctx, NewCreate(payer))
		assertions.Nil(err, "failed to create order")

		owned, err := ctrl.PayerOrder(ctx, order.Id, strings.ToUpper(payer))
		assertions.Nil(err, "failed to get owned order")
		assertions.Equal(order.Id, owned.Id)

		_, err = ctrl.PayerOrder(ctx, order.Id, randomPayer())
		assertions.ErrorIs(err, orders.ErrOrderNotFound)
	})
	t.Run("List", func(t *testing.T) {
		assertions := assert.New(t)

		ctx, cancel := utils.NewContext()
		defer cancel()

		order, err := ctrl.Create(ctx, NewCreate(randomPayer()))
		assertions.Nil(err, "failed to create order")

		listed, err := ctrl.List(ctx)
		assertions.Nil(err, "failed to list orders")
		if assertions.NotEmpty(listed) {
			assertions.Equal(order.Id, listed[0].Id, "newest order must come first")
		}
		for i := 1; i < len(listed); i++ {
			assertions.False(listed[i].CreatedAt.After(listed[i-1].CreatedAt), "not sorted")
		}
	})
	t.Run("UpdateStatus", func(t *testing.T) {
		t.Run("Forward", func(t *testing.T) {
			assertions := assert.New(t)

			ctx, cancel := utils.NewContext()
			defer cancel()

			order, err := ctrl.Create(ctx, NewCreate(randomPayer()))
			assertions.Nil(err, "failed to create order")

			updated, changed, err := ctrl.UpdateStatus(ctx, order.Id, orders.StatusConfirmed)
			assertions.Nil(err, "failed to confirm")
			assertions.True(changed)
			assertions.Equal(orders.StatusConfirmed, updated.Status)
			assertions.True(updated.UpdatedAt.After(order.UpdatedAt))

			_, changed, err = ctrl.UpdateStatus(ctx, order.Id, orders.StatusConfirmed)
			assertions.Nil(err, "same status must be a no-op")
			assertions.False(changed)

			updated, changed, err = ctrl.UpdateStatus(ctx, order.Id, orders.StatusCompleted)
			assertions.Nil(err, "failed to complete")
			assertions.True(changed)
			assertions.Equal(orders.StatusCompleted, updated.Status)
		})
		t.Run("Skip", func(t *testing.T) {
			assertions := assert.New(t)

			ctx, cancel := utils.NewContext()
			defer cancel()

			order, err := ctrl.Create(ctx, NewCreate(randomPayer()))
			assertions.Nil(err, "failed to create order")

			updated, changed, err := ctrl.UpdateStatus(ctx, order.Id, orders.StatusCompleted)
			assertions.Nil(err, "failed to complete")
			assertions.True(changed)
			assertions.Equal(orders.StatusCompleted, updated.Status)
		})
		t.Run("Backwards", func(t *testing.T) {
			assertions := assert.New(t)

			ctx, cancel := utils.NewContext()
			defer cancel()

			order, err := ctrl.Create(ctx, NewCreate(randomPayer()))
			assertions.Nil(err, "failed to create order")

			_, _, err = ctrl.UpdateStatus(ctx, order.Id, orders.StatusCompleted)
			assertions.Nil(err, "failed to complete")

			for _, status := range []orders.Status{orders.StatusConfirmed, orders.StatusPending} {
				_, changed, err := ctrl.UpdateStatus(ctx, order.Id, status)
				assertions.ErrorIs(err, orders.ErrInvalidStatusTransition)
				assertions.False(changed)
			}

			stored, err := ctrl.Get(ctx, order.Id)
			assertions.Nil(err, "failed to get order")
			assertions.Equal(orders.StatusCompleted, stored.Status)
		})
		t.Run("Invalid status", func(t *testing.T) {
			assertions := assert.New(t)

			ctx, cancel := utils.NewContext()
			defer cancel()

			order, err := ctrl.Create(ctx, NewCreate(randomPayer()))
			assertions.Nil(err, "failed to create order")

			_, _, err = ctrl.UpdateStatus(ctx, order.Id, "refunded")
			assertions.ErrorIs(err, orders.ErrInvalidStatus)
		})
		t.Run("Missing", func(t *testing.T) {
			assertions := assert.New(t)

			ctx, cancel := utils.NewContext()
			defer cancel()

			_, _, err := ctrl.UpdateStatus(ctx, uuid.New(), orders.StatusConfirmed)
			assertions.ErrorIs(err, orders.ErrOrderNotFound)
		})
		t.Run("Concurrent", func(t *testing.T) {
			assertions := assert.New(t)

			ctx, cancel := utils.NewContext()
			defer cancel()

			order, err := ctrl.Create(ctx, NewCreate(randomPayer()))
			assertions.Nil(err, "failed to create order")

			const workers = 32
			var (
				wg          sync.WaitGroup
				mu          sync.Mutex
				transitions = map[orders.Status]int{}
			)
			for i := range workers {
				status := orders.StatusConfirmed
				if i%2 == 0 {
					status = orders.StatusCompleted
				}
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, changed, err := ctrl.UpdateStatus(ctx, order.Id, status)
					if err != nil {
						assertions.ErrorIs(err, orders.ErrInvalidStatusTransition)
						return
					}
					if changed {
						mu.Lock()
						transitions[status]++
						mu.Unlock()
					}
				}()
			}
			wg.Wait()

			stored, err := ctrl.Get(ctx, order.Id)
			assertions.Nil(err, "failed to get order")
			assertions.Equal(orders.StatusCompleted, stored.Status)
			assertions.Equal(1, transitions[orders.StatusCompleted], "completed must be reached exactly once")
			assertions.LessOrEqual(transitions[orders.StatusConfirmed], 1)
		})
	})
	t.Run("AttachDelivery", func(t *testing.T) {
		t.Run("Idempotent", func(t *testing.T) {
			assertions := assert.New(t)

			ctx, cancel := utils.NewContext()
			defer cancel()

			order, err := ctrl.Create(ctx, NewCreate(randomPayer()))
			assertions.Nil(err, "failed to create order")

			key := "ABCD-EFGH-JKLM-NPQR"
			url := "https://downloads.example.com/" + order.Id.String()
			delivery := orders.Delivery{LicenseKey: &key, DownloadUrl: &url}

			first, err := ctrl.AttachDelivery(ctx, order.Id, delivery)
			assertions.Nil(err, "failed to attach delivery")
			second, err := ctrl.AttachDelivery(ctx, order.Id, delivery)
			assertions.Nil(err, "failed to attach delivery again")

			assertions.Equal(key, second.LicenseKey)
			assertions.Equal(url, second.DownloadUrl)
			assertions.Equal(first.UpdatedAt.UnixMilli(), second.UpdatedAt.UnixMilli(), "repeated attach must not touch the order")
			assertions.Equal(orders.StatusPending, second.Status)
		})
		t.Run("Nil fields untouched", func(t *testing.T) {
			assertions := assert.New(t)

			ctx, cancel := utils.NewContext()
			defer cancel()

			order, err := ctrl.Create(ctx, NewCreate(randomPayer()))
			assertions.Nil(err, "failed to create order")

			key := "WXYZ-2345-6789-ABCD"
			_, err = ctrl.AttachDelivery(ctx, order.Id, orders.Delivery{LicenseKey: &key})
			assertions.Nil(err, "failed to attach key")

			tx := "f4184fc596403b9d638783cf57adfe4c75c605f6356fbc91338530e9831e9e16"
			stored, err := ctrl.AttachDelivery(ctx, order.Id, orders.Delivery{TransactionId: &tx})
			assertions.Nil(err, "failed to attach transaction")
			assertions.Equal(key, stored.LicenseKey)
			assertions.Equal(tx, stored.TransactionId)
			assertions.Empty(stored.DownloadUrl)
		})
		t.Run("Missing", func(t *testing.T) {
			assertions := assert.New(t)

			ctx, cancel := utils.NewContext()
			defer cancel()

			_, err := ctrl.AttachDelivery(ctx, uuid.New(), orders.Delivery{})
			assertions.ErrorIs(err, orders.ErrOrderNotFound)
		})
	})
}
