// Package admin holds the privileged operations of the admin panel. Every
// operation takes the caller session explicitly.
package admin

import (
	"context"

	"anarchy.ttfm/storefront/auth"
	"anarchy.ttfm/storefront/orders"
	"anarchy.ttfm/storefront/support"
	"github.com/google/uuid"
)

type Config struct {
	Orders  *orders.Controller
	Tickets *support.Desk
}

type Panel struct {
	orders  *orders.Controller
	tickets *support.Desk
}

func New(config Config) (p *Panel) {
	return &Panel{orders: config.Orders, tickets: config.Tickets}
}

// Stats counts orders per status
type Stats struct {
	Pending   int
	Confirmed int
	Completed int
}

func (p *Panel) Orders(ctx context.Context, session *auth.Session) (list []orders.Order, err error) {
	err = session.RequireAdmin()
	if err != nil {
		return nil, err
	}
	return p.orders.List(ctx)
}

func (p *Panel) Stats(ctx context.Context, session *auth.Session) (stats Stats, err error) {
	list, err := p.Orders(ctx, session)
	if err != nil {
		return stats, err
	}
	for _, order := range list {
		switch order.Status {
		case orders.StatusPending:
			stats.Pending++
		case orders.StatusConfirmed:
			stats.Confirmed++
		case orders.StatusCompleted:
			stats.Completed++
		}
	}
	return stats, nil
}

// UpdateStatus moves an order forward by hand, e.g. after checking a PayPal
// transfer
func (p *Panel) UpdateStatus(ctx context.Context, session *auth.Session, id uuid.UUID, status orders.Status) (order orders.Order, changed bool, err error) {
	err = session.RequireAdmin()
	if err != nil {
		return order, false, err
	}
	return p.orders.UpdateStatus(ctx, id, status)
}

func (p *Panel) Tickets(ctx context.Context, session *auth.Session) (tickets []support.Ticket, err error) {
	err = session.RequireAdmin()
	if err != nil {
		return nil, err
	}
	return p.tickets.List(ctx)
}
