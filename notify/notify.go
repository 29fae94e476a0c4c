// Package notify tells the outside world that an order was delivered.
package notify

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"anarchy.ttfm/storefront/orders"
)

// Notifier is told once per order, when it becomes completed
type Notifier interface {
	OrderCompleted(ctx context.Context, order orders.Order) (err error)
}

// Event is the payload published for a completed order
type Event struct {
	OrderId     string    `json:"orderId"`
	PayerId     string    `json:"payerId"`
	PayerEmail  string    `json:"payerEmail,omitempty"`
	ProductId   string    `json:"productId,omitempty"`
	ProductName string    `json:"productName"`
	Status      string    `json:"status"`
	CompletedAt time.Time `json:"completedAt"`
}

func NewEvent(order orders.Order) (event Event) {
	return Event{
		OrderId:     order.Id.String(),
		PayerId:     order.PayerId,
		PayerEmail:  order.PayerEmail,
		ProductId:   order.ProductId,
		ProductName: order.ProductName,
		Status:      string(order.Status),
		CompletedAt: order.UpdatedAt,
	}
}

func (e *Event) Bytes() (bytes []byte) {
	bytes, _ = json.Marshal(e)
	return bytes
}

// Log writes completions to the standard logger
type Log struct{}

var _ Notifier = Log{}

func (Log) OrderCompleted(ctx context.Context, order orders.Order) (err error) {
	log.Println("INFO|NOTIFY|COMPLETED", order.Id, order.PayerId, order.ProductName)
	return nil
}
