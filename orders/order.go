package orders

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"anarchy.ttfm/storefront/blockchains"
	"anarchy.ttfm/storefront/decimal"
	"github.com/google/uuid"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCompleted Status = "completed"
)

// Validate if the provided status is known
func (s Status) Validate() (err error) {
	switch s {
	case StatusPending, StatusConfirmed, StatusCompleted:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidStatus, s)
	}
}

// Rank orders statuses along the lifecycle
func (s Status) Rank() (rank int) {
	switch s {
	case StatusConfirmed:
		return 1
	case StatusCompleted:
		return 2
	default:
		return 0
	}
}

// CanAdvanceTo fails when next would move the order backwards. Staying on
// the same status is allowed and is a no-op for the caller.
func (s Status) CanAdvanceTo(next Status) (err error) {
	if next.Rank() < s.Rank() {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransition, s, next)
	}
	return nil
}

type PaymentMethod string

const (
	PaymentBitcoin  PaymentMethod = "bitcoin"
	PaymentLitecoin PaymentMethod = "litecoin"
	PaymentPaypal   PaymentMethod = "paypal"
)

// Validate if the provided payment method is supported
func (m PaymentMethod) Validate() (err error) {
	switch m {
	case PaymentBitcoin, PaymentLitecoin, PaymentPaypal:
		return nil
	default:
		return fmt.Errorf("%w: invalid payment method %q", ErrInvalidOrder, m)
	}
}

// Network returns the chain watched for this method. PayPal payments are
// confirmed by hand and have none.
func (m PaymentMethod) Network() (network blockchains.Network, ok bool) {
	switch m {
	case PaymentBitcoin:
		return blockchains.NetworkBitcoin, true
	case PaymentLitecoin:
		return blockchains.NetworkLitecoin, true
	default:
		return "", false
	}
}

// NormalizePayer returns the form payer identities are compared in. Emails
// compare case-insensitively, user ids exactly.
func NormalizePayer(identity string) (key string) {
	identity = strings.TrimSpace(identity)
	if strings.Contains(identity, "@") {
		return strings.ToLower(identity)
	}
	return identity
}

func OrderKey(id uuid.UUID) (key []byte) {
	return []byte(fmt.Sprintf("/orders/%s", id))
}

func PayerKey(payer string, id uuid.UUID) (key []byte) {
	return []byte(fmt.Sprintf("/payers/%s/%s", url.PathEscape(payer), id))
}

func PayerPrefix(payer string) (key []byte) {
	return []byte(fmt.Sprintf("/payers/%s/", url.PathEscape(payer)))
}

type (
	// Create is the checkout request turned into an order
	Create struct {
		// Catalog product, optional
		ProductId   string
		ProductName string
		// Decimal string, e.g. "29.99"
		ProductPrice string
		// User id or email of the buyer
		PayerId string
		// Contact email when PayerId is not one
		PayerEmail    string
		PaymentMethod PaymentMethod
		// Receiving wallet address or PayPal destination
		WalletAddress string
	}
	// Delivery carries the artifacts to attach. Nil fields are left untouched.
	Delivery struct {
		LicenseKey    *string
		DownloadUrl   *string
		TransactionId *string
	}
	Order struct {
		// Identifier of the order
		Id uuid.UUID
		// Catalog product the order was placed for, may be empty
		ProductId     string
		ProductName   string
		ProductPrice  string
		PayerId       string
		PayerEmail    string
		PaymentMethod PaymentMethod
		WalletAddress string
		// Status of the order, only moves forward
		Status    Status
		CreatedAt time.Time
		UpdatedAt time.Time
		// Delivery artifacts, empty until attached
		TransactionId string
		LicenseKey    string
		DownloadUrl   string
	}
)

// Price returns the parsed product price
func (o *Order) Price() (price decimal.Decimal, err error) {
	return decimal.Parse(o.ProductPrice)
}

// PayerKeys returns the normalized identities owning the order
func (o *Order) PayerKeys() (keys []string) {
	for _, identity := range []string{o.PayerId, o.PayerEmail} {
		key := NormalizePayer(identity)
		if key == "" || (len(keys) > 0 && keys[0] == key) {
			continue
		}
		keys = append(keys, key)
	}
	return keys
}

// OwnedBy reports if payer is one of the order owners
func (o *Order) OwnedBy(payer string) (owned bool) {
	key := NormalizePayer(payer)
	if key == "" {
		return false
	}
	for _, candidate := range o.PayerKeys() {
		if candidate == key {
			return true
		}
	}
	return false
}

// HasDelivery reports if any delivery artifact was attached
func (o *Order) HasDelivery() (ok bool) {
	return o.LicenseKey != "" || o.DownloadUrl != ""
}

func (o *Order) Bytes() (bytes []byte) {
	bytes, _ = json.Marshal(o)
	return bytes
}

func (o *Order) FromBytes(b []byte) (err error) {
	return json.Unmarshal(b, o)
}
