package orders_test

import (
	"testing"

	"anarchy.ttfm/storefront/orders"
	"github.com/stretchr/testify/assert"
)

func Test_Status(t *testing.T) {
	type Test struct {
		From, To orders.Status
		Valid    bool
	}
	tests := []Test{
		{From: orders.StatusPending, To: orders.StatusPending, Valid: true},
		{From: orders.StatusPending, To: orders.StatusConfirmed, Valid: true},
		{From: orders.StatusPending, To: orders.StatusCompleted, Valid: true},
		{From: orders.StatusConfirmed, To: orders.StatusPending, Valid: false},
		{From: orders.StatusConfirmed, To: orders.StatusCompleted, Valid: true},
		{From: orders.StatusCompleted, To: orders.StatusConfirmed, Valid: false},
		{From: orders.StatusCompleted, To: orders.StatusCompleted, Valid: true},
	}
	for _, test := range tests {
		t.Run(string(test.From)+"->"+string(test.To), func(t *testing.T) {
			assertions := assert.New(t)

			err := test.From.CanAdvanceTo(test.To)
			if test.Valid {
				assertions.Nil(err)
			} else {
				assertions.ErrorIs(err, orders.ErrInvalidStatusTransition)
			}
		})
	}
}

func Test_OwnedBy(t *testing.T) {
	assertions := assert.New(t)

	order := orders.Order{PayerId: "user-42", PayerEmail: "Bob@Example.com"}
	assertions.True(order.OwnedBy("user-42"))
	assertions.False(order.OwnedBy("USER-42"))
	assertions.True(order.OwnedBy("bob@example.com"))
	assertions.True(order.OwnedBy(" BOB@EXAMPLE.COM "))
	assertions.False(order.OwnedBy(""))
	assertions.False(order.OwnedBy("alice@example.com"))

	assertions.Equal([]string{"user-42", "bob@example.com"}, order.PayerKeys())
}

func Test_PaymentNetwork(t *testing.T) {
	assertions := assert.New(t)

	network, ok := orders.PaymentBitcoin.Network()
	assertions.True(ok)
	assertions.Nil(network.Validate())

	_, ok = orders.PaymentPaypal.Network()
	assertions.False(ok)
}
