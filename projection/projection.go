// Package projection turns orders into what the customer dashboard shows.
package projection

import (
	"time"

	"anarchy.ttfm/storefront/orders"
	"github.com/google/uuid"
)

const (
	MessagePending   = "We are verifying your payment. This usually takes 10-60 minutes."
	MessageConfirmed = "Your payment has been confirmed. We are preparing your order."
	MessageCompleted = "Your order is complete! Your license key and download are ready below."
)

// Message returns the customer facing text of status
func Message(status orders.Status) (message string) {
	switch status {
	case orders.StatusConfirmed:
		return MessageConfirmed
	case orders.StatusCompleted:
		return MessageCompleted
	default:
		return MessagePending
	}
}

// View is an order as the customer sees it. Delivery fields are only set
// once the order is completed, whatever the stored order holds.
type View struct {
	Id            uuid.UUID
	ProductId     string
	ProductName   string
	ProductPrice  string
	PaymentMethod orders.PaymentMethod
	WalletAddress string
	Status        orders.Status
	Message       string
	CreatedAt     time.Time
	TransactionId string
	LicenseKey    string
	DownloadUrl   string
}

func (v *View) Ready() (ok bool) {
	return v.Status == orders.StatusCompleted
}

func Project(order orders.Order) (view View) {
	view = View{
		Id:            order.Id,
		ProductId:     order.ProductId,
		ProductName:   order.ProductName,
		ProductPrice:  order.ProductPrice,
		PaymentMethod: order.PaymentMethod,
		WalletAddress: order.WalletAddress,
		Status:        order.Status,
		Message:       Message(order.Status),
		CreatedAt:     order.CreatedAt,
		TransactionId: order.TransactionId,
	}
	if view.Ready() {
		view.LicenseKey = order.LicenseKey
		view.DownloadUrl = order.DownloadUrl
	}
	return view
}

func ProjectAll(list []orders.Order) (views []View) {
	views = make([]View, 0, len(list))
	for _, order := range list {
		views = append(views, Project(order))
	}
	return views
}

// Summary is the header of the customer dashboard
type Summary struct {
	Total     int
	Completed int
	// Pending and confirmed orders
	InProgress int
	// Completed orders carrying a license key
	Keys int
}

func Summarize(views []View) (summary Summary) {
	summary.Total = len(views)
	for _, view := range views {
		if !view.Ready() {
			summary.InProgress++
			continue
		}
		summary.Completed++
		if view.LicenseKey != "" {
			summary.Keys++
		}
	}
	return summary
}
