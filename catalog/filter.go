package catalog

import (
	"slices"

	"anarchy.ttfm/storefront/decimal"
)

type PriceRange struct {
	Min decimal.Decimal
	// Zero means no upper bound
	Max decimal.Decimal
}

// Filter narrows the product listing. Empty fields match everything.
type Filter struct {
	Categories []string
	Games      []string
	PriceRange *PriceRange
	InStock    *bool
}

func (f *Filter) Match(p *Product) (ok bool) {
	if len(f.Categories) > 0 && !slices.Contains(f.Categories, p.Category) {
		return false
	}
	if len(f.Games) > 0 && !slices.Contains(f.Games, p.Game) {
		return false
	}
	if f.PriceRange != nil {
		price := p.PriceDecimal()
		if price.LessThan(f.PriceRange.Min) {
			return false
		}
		if !f.PriceRange.Max.IsZero() && price.GreaterThan(f.PriceRange.Max) {
			return false
		}
	}
	if f.InStock != nil && p.InStock != *f.InStock {
		return false
	}
	return true
}
