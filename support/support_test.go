package support_test

import (
	"testing"
	"time"

	"anarchy.ttfm/storefront/support"
	"anarchy.ttfm/storefront/utils"
	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
)

func newDesk(t *testing.T) (d *support.Desk) {
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

	now := time.Now()
	return support.New(support.Config{DB: db, Now: func() time.Time {
		now = now.Add(time.Second)
		return now
	}})
}

func valid() (req support.Create) {
	return support.Create{
		Name:    "Frank",
		Email:   "frank@example.com",
		Subject: "Key not working",
		Message: "The license key says it was already used.",
	}
}

func Test_Desk(t *testing.T) {
	t.Run("Create and list", func(t *testing.T) {
		assertions := assert.New(t)
		d := newDesk(t)

		ctx, cancel := utils.NewContext()
		defer cancel()

		first, err := d.Create(ctx, valid())
		assertions.Nil(err)
		assertions.Equal(support.PriorityMedium, first.Priority)
		assertions.Equal(support.StatusOpen, first.Status)

		req := valid()
		req.Priority = support.PriorityUrgent
		second, err := d.Create(ctx, req)
		assertions.Nil(err)

		tickets, err := d.List(ctx)
		assertions.Nil(err)
		if assertions.Len(tickets, 2) {
			assertions.Equal(second.Id, tickets[0].Id)
			assertions.Equal(support.PriorityUrgent, tickets[0].Priority)
			assertions.Equal(first.Id, tickets[1].Id)
		}
	})
	t.Run("Invalid", func(t *testing.T) {
		d := newDesk(t)

		ctx, cancel := utils.NewContext()
		defer cancel()

		mutations := map[string]func(req *support.Create){
			"No name":      func(req *support.Create) { req.Name = "" },
			"Bad email":    func(req *support.Create) { req.Email = "frank" },
			"No subject":   func(req *support.Create) { req.Subject = " " },
			"No message":   func(req *support.Create) { req.Message = "" },
			"Bad priority": func(req *support.Create) { req.Priority = "whenever" },
		}
		for name, mutate := range mutations {
			t.Run(name, func(t *testing.T) {
				assertions := assert.New(t)

				req := valid()
				mutate(&req)
				_, err := d.Create(ctx, req)
				assertions.ErrorIs(err, support.ErrInvalidTicket)
			})
		}

		tickets, err := d.List(ctx)
		assert.Nil(t, err)
		assert.Len(t, tickets, 0)
	})
}
