package detection

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"anarchy.ttfm/storefront/blockchains"
	"anarchy.ttfm/storefront/decimal"
	"anarchy.ttfm/storefront/orders"
	"github.com/google/uuid"
)

var ErrInvalidRequest = errors.New("invalid detection request")

// Request starts watching the destination of an order
type Request struct {
	OrderId uuid.UUID
	Method  orders.PaymentMethod
	// Address the payer sends to
	Address string
	// Amount due in display units
	Expected decimal.Decimal
}

func (r *Request) Validate() (err error) {
	if r.OrderId == uuid.Nil {
		return fmt.Errorf("%w: missing order id", ErrInvalidRequest)
	}
	if _, ok := r.Method.Network(); !ok {
		return fmt.Errorf("%w: %q payments are not detected on chain", ErrInvalidRequest, r.Method)
	}
	if strings.TrimSpace(r.Address) == "" {
		return fmt.Errorf("%w: missing address", ErrInvalidRequest)
	}
	if !r.Expected.IsPositive() {
		return fmt.Errorf("%w: expected amount must be positive", ErrInvalidRequest)
	}
	return nil
}

// RequestFor builds the request watching order. The expected amount is
// always the stored order price.
func RequestFor(order orders.Order) (req Request, err error) {
	expected, err := order.Price()
	if err != nil {
		return req, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	req = Request{
		OrderId:  order.Id,
		Method:   order.PaymentMethod,
		Address:  order.WalletAddress,
		Expected: expected,
	}
	return req, req.Validate()
}

// Session is a snapshot of a detection session
type Session struct {
	OrderId  uuid.UUID
	Method   orders.PaymentMethod
	Network  blockchains.Network
	Address  string
	Expected decimal.Decimal
	State    State
	Progress
	// The order was moved forward after confirmation
	Settled   bool
	StartedAt time.Time
	Deadline  time.Time
	UpdatedAt time.Time
}
