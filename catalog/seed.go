package catalog

import (
	"context"
	"fmt"

	_ "embed"

	"gopkg.in/yaml.v3"
)

//go:embed seed.yaml
var DefaultSeed []byte

type (
	seedProduct struct {
		Id            string       `yaml:"id"`
		Name          string       `yaml:"name"`
		Description   string       `yaml:"description"`
		Price         string       `yaml:"price"`
		OriginalPrice string       `yaml:"original-price"`
		Category      string       `yaml:"category"`
		Game          string       `yaml:"game"`
		StockQuantity int          `yaml:"stock-quantity"`
		InStock       bool         `yaml:"in-stock"`
		ImageUrl      string       `yaml:"image-url"`
		DeliveryType  DeliveryType `yaml:"delivery-type"`
		DeliveryUrl   string       `yaml:"delivery-url"`
		LicenseKey    string       `yaml:"license-key"`
	}
	seedVariant struct {
		ProductId string `yaml:"product-id"`
		Name      string `yaml:"name"`
	}
	seedGroup struct {
		Id           string        `yaml:"id"`
		Name         string        `yaml:"name"`
		Description  string        `yaml:"description"`
		Category     string        `yaml:"category"`
		Game         string        `yaml:"game"`
		ImageUrl     string        `yaml:"image-url"`
		DeliveryType DeliveryType  `yaml:"delivery-type"`
		Variants     []seedVariant `yaml:"variants"`
	}
	seedFile struct {
		Products []seedProduct `yaml:"products"`
		Groups   []seedGroup   `yaml:"groups"`
	}
)

// Seed loads products and groups from a YAML document, overwriting entries
// with the same id. Listing order follows the document.
func (c *Catalog) Seed(ctx context.Context, contents []byte) (products, groups int, err error) {
	var file seedFile
	err = yaml.Unmarshal(contents, &file)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to decode seed: %w", err)
	}

	for index, p := range file.Products {
		err = c.Put(ctx, Product{
			Id:            p.Id,
			Name:          p.Name,
			Description:   p.Description,
			Price:         p.Price,
			OriginalPrice: p.OriginalPrice,
			Category:      p.Category,
			Game:          p.Game,
			StockQuantity: p.StockQuantity,
			InStock:       p.InStock,
			ImageUrl:      p.ImageUrl,
			DeliveryType:  p.DeliveryType,
			DeliveryUrl:   p.DeliveryUrl,
			LicenseKey:    p.LicenseKey,
			Position:      index,
		})
		if err != nil {
			return products, groups, fmt.Errorf("failed to seed product %s: %w", p.Id, err)
		}
		products++
	}

	for index, g := range file.Groups {
		group := Group{
			Id:           g.Id,
			Name:         g.Name,
			Description:  g.Description,
			Category:     g.Category,
			Game:         g.Game,
			ImageUrl:     g.ImageUrl,
			DeliveryType: g.DeliveryType,
			Position:     index,
		}
		for _, v := range g.Variants {
			group.Variants = append(group.Variants, Variant{ProductId: v.ProductId, Name: v.Name})
		}
		err = c.PutGroup(ctx, group)
		if err != nil {
			return products, groups, fmt.Errorf("failed to seed group %s: %w", g.Id, err)
		}
		groups++
	}
	return products, groups, nil
}
