package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"anarchy.ttfm/storefront/decimal"
)

var (
	ErrProductNotFound = errors.New("product not found")
	ErrInvalidProduct  = errors.New("invalid product")
)

type DeliveryType string

const (
	DeliveryDownload DeliveryType = "download"
	DeliveryKey      DeliveryType = "key"
	DeliveryAccount  DeliveryType = "account"
)

func (d DeliveryType) Validate() (err error) {
	switch d {
	case DeliveryDownload, DeliveryKey, DeliveryAccount:
		return nil
	default:
		return fmt.Errorf("%w: delivery type %q", ErrInvalidProduct, d)
	}
}

func ProductKey(id string) (key []byte) {
	return []byte(fmt.Sprintf("/products/%s", id))
}

func GroupKey(id string) (key []byte) {
	return []byte(fmt.Sprintf("/groups/%s", id))
}

type (
	Product struct {
		Id          string
		Name        string
		Description string
		// Decimal string
		Price         string
		OriginalPrice string
		Category      string
		Game          string
		StockQuantity int
		InStock       bool
		ImageUrl      string
		DeliveryType  DeliveryType
		DeliveryUrl   string
		// License key template, runs of X are replaced at fulfillment
		LicenseKey string
		// Listing order
		Position int
	}
	Variant struct {
		ProductId string
		// Short label like "7 Day"
		Name string
	}
	Group struct {
		Id           string
		Name         string
		Description  string
		Category     string
		Game         string
		ImageUrl     string
		DeliveryType DeliveryType
		Variants     []Variant
		Position     int
	}
	// ResolvedGroup is a group with its variants looked up
	ResolvedGroup struct {
		Group
		Products []Product
	}
)

func (p *Product) Validate() (err error) {
	if strings.TrimSpace(p.Id) == "" || strings.Contains(p.Id, "/") {
		return fmt.Errorf("%w: id %q", ErrInvalidProduct, p.Id)
	}
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: missing name", ErrInvalidProduct)
	}
	if _, err = decimal.Parse(p.Price); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidProduct, err)
	}
	if p.OriginalPrice != "" {
		if _, err = decimal.Parse(p.OriginalPrice); err != nil {
			return fmt.Errorf("%w: original price: %w", ErrInvalidProduct, err)
		}
	}
	if p.StockQuantity < 0 {
		return fmt.Errorf("%w: negative stock", ErrInvalidProduct)
	}
	return p.DeliveryType.Validate()
}

func (p *Product) PriceDecimal() (price decimal.Decimal) {
	price, _ = decimal.Parse(p.Price)
	return price
}

// Matches reports if the lowercase query appears in the name, description,
// game or category
func (p *Product) Matches(query string) (ok bool) {
	for _, field := range []string{p.Name, p.Description, p.Game, p.Category} {
		if strings.Contains(strings.ToLower(field), query) {
			return true
		}
	}
	return false
}

func (p *Product) Bytes() (bytes []byte) {
	bytes, _ = json.Marshal(p)
	return bytes
}

func (p *Product) FromBytes(b []byte) (err error) {
	return json.Unmarshal(b, p)
}

func (g *Group) Validate() (err error) {
	if strings.TrimSpace(g.Id) == "" || strings.Contains(g.Id, "/") {
		return fmt.Errorf("%w: group id %q", ErrInvalidProduct, g.Id)
	}
	if len(g.Variants) == 0 {
		return fmt.Errorf("%w: group %s has no variants", ErrInvalidProduct, g.Id)
	}
	return g.DeliveryType.Validate()
}

func (g *Group) Bytes() (bytes []byte) {
	bytes, _ = json.Marshal(g)
	return bytes
}

func (g *Group) FromBytes(b []byte) (err error) {
	return json.Unmarshal(b, g)
}
