package detection_test

import (
	"fmt"
	"testing"
	"time"

	"anarchy.ttfm/storefront/blockchains/mock"
	"anarchy.ttfm/storefront/catalog"
	"anarchy.ttfm/storefront/detection"
	"anarchy.ttfm/storefront/fulfillment"
	"anarchy.ttfm/storefront/orders"
	"anarchy.ttfm/storefront/projection"
	"anarchy.ttfm/storefront/utils"
	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
)

const (
	waitFor = 5 * time.Second
	tick    = 5 * time.Millisecond
)

type storefront struct {
	checker *mock.Mock
	orders  *orders.Controller
	manager *detection.Manager
}

func newStorefront(t *testing.T, maxDuration, retention time.Duration) (s *storefront) {
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

	s = &storefront{
		checker: mock.New(),
		orders:  orders.New(orders.Config{Store: orders.NewBadgerStore(db)}),
	}
	hook := fulfillment.New(fulfillment.Config{Orders: s.orders, Products: products})

	policy := detection.DefaultPolicy()
	policy.Interval = 10 * time.Millisecond
	policy.MaxDuration = maxDuration
	s.manager, err = detection.NewManager(detection.Config{
		Checker:   s.checker,
		Settler:   hook,
		Policy:    policy,
		Workers:   4,
		Retention: retention,
	})
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}
	t.Cleanup(s.manager.Close)
	return s
}

func (s *storefront) checkout(t *testing.T, address string) (order orders.Order) {
	ctx, cancel := utils.NewContext()
	defer cancel()

	order, err := s.orders.Create(ctx, orders.Create{
		ProductId:     "pixelforge-6m",
		ProductName:   "PixelForge Pro - 6 Months",
		ProductPrice:  "29.99",
		PayerId:       "dave@example.com",
		PaymentMethod: orders.PaymentBitcoin,
		WalletAddress: address,
	})
	if err != nil {
		t.Fatalf("failed to create order: %v", err)
	}
	return order
}

func (s *storefront) start(t *testing.T, order orders.Order) (session detection.Session) {
	req, err := detection.RequestFor(order)
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	session, err = s.manager.Start(req)
	if err != nil {
		t.Fatalf("failed to start detection: %v", err)
	}
	return session
}

func (s *storefront) status(order orders.Order) (status orders.Status) {
	ctx, cancel := utils.NewContext()
	defer cancel()

	stored, err := s.orders.Get(ctx, order.Id)
	if err != nil {
		return ""
	}
	return stored.Status
}

func Test_Manager(t *testing.T) {
	t.Run("Bitcoin checkout completes", func(t *testing.T) {
		assertions := assert.New(t)
		s := newStorefront(t, time.Hour, 0)

		order := s.checkout(t, "bc1qcheckout")
		s.checker.Push("bc1qcheckout", paid("29.99", 1), paid("29.99", 1), paid("29.99", 2))

		s.start(t, order)
		assertions.Eventually(func() bool {
			return s.checker.Calls("bc1qcheckout") >= 1
		}, waitFor, tick)

		assertions.Eventually(func() bool {
			return s.status(order) == orders.StatusCompleted
		}, waitFor, tick, "order never completed")

		session, err := s.manager.Session(order.Id)
		assertions.Nil(err)
		assertions.Equal(detection.StateConfirmed, session.State)
		assertions.Equal(2, session.Confirmations)

		ctx, cancel := utils.NewContext()
		defer cancel()
		stored, err := s.orders.PayerOrder(ctx, order.Id, "DAVE@example.com")
		assertions.Nil(err)
		view := projection.Project(stored)
		assertions.Equal(projection.MessageCompleted, view.Message)
		assertions.Regexp(`^PFORGE-6M-[A-Z2-9]{4}$`, view.LicenseKey)
		assertions.NotEmpty(view.DownloadUrl)

		assertions.Eventually(func() bool { return s.manager.Active() == 0 }, waitFor, tick)
	})
	t.Run("Checker errors keep the order pending", func(t *testing.T) {
		assertions := assert.New(t)
		s := newStorefront(t, time.Hour, 0)

		order := s.checkout(t, "bc1qflaky")
		s.checker.Fail("bc1qflaky")

		s.start(t, order)
		assertions.Eventually(func() bool {
			return s.checker.Calls("bc1qflaky") >= 4
		}, waitFor, tick, "polling stopped after failures")

		assertions.Equal(orders.StatusPending, s.status(order))
		session, err := s.manager.Session(order.Id)
		assertions.Nil(err)
		assertions.Equal(detection.StateDetecting, session.State)
		assertions.GreaterOrEqual(session.Failures, 3)

		session, err = s.manager.Cancel(order.Id)
		assertions.Nil(err)
		assertions.Equal(detection.StateAbandoned, session.State)

		calls := s.checker.Calls("bc1qflaky")
		time.Sleep(50 * time.Millisecond)
		assertions.Equal(calls, s.checker.Calls("bc1qflaky"), "polling continued after cancel")
		assertions.Equal(0, s.manager.Active())
	})
	t.Run("Abandoned after max duration", func(t *testing.T) {
		assertions := assert.New(t)
		s := newStorefront(t, 50*time.Millisecond, 0)

		order := s.checkout(t, "bc1qnever")
		s.start(t, order)

		assertions.Eventually(func() bool {
			session, err := s.manager.Session(order.Id)
			return err == nil && session.State == detection.StateAbandoned
		}, waitFor, tick)
		assertions.Eventually(func() bool { return s.manager.Active() == 0 }, waitFor, tick)
		assertions.Equal(orders.StatusPending, s.status(order))
	})
	t.Run("Start is idempotent", func(t *testing.T) {
		assertions := assert.New(t)
		s := newStorefront(t, time.Hour, 0)

		order := s.checkout(t, "bc1qtwice")
		first := s.start(t, order)
		second := s.start(t, order)
		assertions.Equal(first.OrderId, second.OrderId)
		assertions.Equal(1, s.manager.Active())

		// A finished session can be restarted
		_, err := s.manager.Cancel(order.Id)
		assertions.Nil(err)
		third := s.start(t, order)
		assertions.NotEqual(detection.StateAbandoned, third.State)
		assertions.Equal(1, s.manager.Active())
	})
	t.Run("Close", func(t *testing.T) {
		assertions := assert.New(t)
		s := newStorefront(t, time.Hour, 0)

		for _, address := range []string{"bc1qa", "bc1qb", "bc1qc"} {
			s.start(t, s.checkout(t, address))
		}
		s.manager.Close()
		assertions.Equal(0, s.manager.Active())

		req, err := detection.RequestFor(s.checkout(t, "bc1qd"))
		assertions.Nil(err)
		_, err = s.manager.Start(req)
		assertions.ErrorIs(err, detection.ErrManagerClosed)
	})
	t.Run("Finished sessions are released", func(t *testing.T) {
		assertions := assert.New(t)
		s := newStorefront(t, 50*time.Millisecond, 20*time.Millisecond)

		paidOrder := s.checkout(t, "bc1qreleased")
		s.checker.Set("bc1qreleased", paid("29.99", 2).Confirmation)
		s.start(t, paidOrder)

		abandoned := make([]orders.Order, 0, 50)
		for index := range 50 {
			order := s.checkout(t, fmt.Sprintf("bc1qidle%02d", index))
			s.start(t, order)
			abandoned = append(abandoned, order)
		}

		assertions.Eventually(func() bool {
			return s.status(paidOrder) == orders.StatusCompleted
		}, waitFor, tick, "paid order never completed")
		assertions.Eventually(func() bool { return s.manager.Tracked() == 0 }, waitFor, tick, "finished sessions are still held")
		assertions.Equal(0, s.manager.Active())

		_, err := s.manager.Session(paidOrder.Id)
		assertions.ErrorIs(err, detection.ErrSessionNotFound)
		for _, order := range abandoned {
			_, err = s.manager.Session(order.Id)
			assertions.ErrorIs(err, detection.ErrSessionNotFound)
			assertions.Equal(orders.StatusPending, s.status(order))
		}
	})
	t.Run("Unknown session", func(t *testing.T) {
		assertions := assert.New(t)
		s := newStorefront(t, time.Hour, 0)

		order := s.checkout(t, "bc1qunknown")
		_, err := s.manager.Session(order.Id)
		assertions.ErrorIs(err, detection.ErrSessionNotFound)
		_, err = s.manager.Cancel(order.Id)
		assertions.ErrorIs(err, detection.ErrSessionNotFound)
	})
}
