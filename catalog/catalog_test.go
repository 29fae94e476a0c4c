package catalog_test

import (
	"testing"

	"anarchy.ttfm/storefront/catalog"
	"anarchy.ttfm/storefront/decimal"
	"anarchy.ttfm/storefront/utils"
	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
)

func newCatalog(t *testing.T) (c *catalog.Catalog) {
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

	c = catalog.New(catalog.Config{DB: db})

	ctx, cancel := utils.NewContext()
	defer cancel()

	products, groups, err := c.Seed(ctx, catalog.DefaultSeed)
	if err != nil {
		t.Fatalf("failed to seed: %v", err)
	}
	if products != 6 || groups != 2 {
		t.Fatalf("unexpected seed size: %d products %d groups", products, groups)
	}
	return c
}

func ids(products []catalog.Product) (result []string) {
	for _, p := range products {
		result = append(result, p.Id)
	}
	return result
}

func Test_Catalog(t *testing.T) {
	c := newCatalog(t)

	t.Run("List", func(t *testing.T) {
		assertions := assert.New(t)

		ctx, cancel := utils.NewContext()
		defer cancel()

		products, err := c.List(ctx)
		assertions.Nil(err)
		assertions.Equal([]string{
			"pixelforge-1m", "pixelforge-6m", "pixelforge-lt",
			"netguard-1y", "starfall-account", "starfall-account-ranked",
		}, ids(products))
	})
	t.Run("Get", func(t *testing.T) {
		assertions := assert.New(t)

		ctx, cancel := utils.NewContext()
		defer cancel()

		product, err := c.Get(ctx, "pixelforge-6m")
		assertions.Nil(err)
		assertions.Equal("29.99", product.Price)
		assertions.Equal("39.99", product.OriginalPrice)
		assertions.Equal(catalog.DeliveryDownload, product.DeliveryType)
		assertions.Equal("PFORGE-6M-XXXX", product.LicenseKey)

		_, err = c.Get(ctx, "missing")
		assertions.ErrorIs(err, catalog.ErrProductNotFound)

		_, err = c.Get(ctx, "")
		assertions.ErrorIs(err, catalog.ErrProductNotFound)
	})
	t.Run("ByName", func(t *testing.T) {
		assertions := assert.New(t)

		ctx, cancel := utils.NewContext()
		defer cancel()

		product, err := c.ByName(ctx, "netguard vpn - 1 year")
		assertions.Nil(err)
		assertions.Equal("netguard-1y", product.Id)

		_, err = c.ByName(ctx, "NetGuard")
		assertions.ErrorIs(err, catalog.ErrProductNotFound)
	})
	t.Run("Search", func(t *testing.T) {
		ctx, cancel := utils.NewContext()
		defer cancel()

		type Test struct {
			Query  string
			Expect []string
		}
		tests := []Test{
			{Query: "lifetime", Expect: []string{"pixelforge-lt"}},
			{Query: "STARFALL", Expect: []string{"starfall-account", "starfall-account-ranked"}},
			{Query: "privacy", Expect: []string{"netguard-1y"}},
			{Query: "ranked play", Expect: []string{"starfall-account-ranked"}},
			{Query: "nothing like this", Expect: nil},
		}
		for _, test := range tests {
			t.Run(test.Query, func(t *testing.T) {
				assertions := assert.New(t)

				products, err := c.Search(ctx, test.Query)
				assertions.Nil(err)
				assertions.Equal(test.Expect, ids(products))
			})
		}
	})
	t.Run("Filter", func(t *testing.T) {
		ctx, cancel := utils.NewContext()
		defer cancel()

		inStock, outOfStock := true, false
		type Test struct {
			Name   string
			Filter catalog.Filter
			Expect []string
		}
		tests := []Test{
			{Name: "Category", Filter: catalog.Filter{Categories: []string{"Privacy Tools"}}, Expect: []string{"netguard-1y"}},
			{Name: "Game", Filter: catalog.Filter{Games: []string{"Starfall Online"}}, Expect: []string{"starfall-account", "starfall-account-ranked"}},
			{Name: "Out of stock", Filter: catalog.Filter{InStock: &outOfStock}, Expect: []string{"starfall-account-ranked"}},
			{
				Name: "Price range",
				Filter: catalog.Filter{
					InStock:    &inStock,
					PriceRange: &catalog.PriceRange{Min: decimal.MustParse("7.99"), Max: decimal.MustParse("29.99")},
				},
				Expect: []string{"pixelforge-1m", "pixelforge-6m", "netguard-1y"},
			},
			{
				Name:   "Open ended",
				Filter: catalog.Filter{PriceRange: &catalog.PriceRange{Min: decimal.MustParse("100")}},
				Expect: []string{"pixelforge-lt"},
			},
		}
		for _, test := range tests {
			t.Run(test.Name, func(t *testing.T) {
				assertions := assert.New(t)

				products, err := c.Filter(ctx, test.Filter)
				assertions.Nil(err)
				assertions.Equal(test.Expect, ids(products))
			})
		}
	})
	t.Run("Groups", func(t *testing.T) {
		assertions := assert.New(t)

		ctx, cancel := utils.NewContext()
		defer cancel()

		groups, err := c.Groups(ctx)
		assertions.Nil(err)
		if assertions.Len(groups, 2) {
			assertions.Equal("pixelforge", groups[0].Id)
			assertions.Equal([]string{"pixelforge-1m", "pixelforge-6m", "pixelforge-lt"}, ids(groups[0].Products))
			assertions.Equal("6 Months", groups[0].Variants[1].Name)
			assertions.Equal("starfall-accounts", groups[1].Id)
		}
	})
	t.Run("Invalid product", func(t *testing.T) {
		assertions := assert.New(t)

		ctx, cancel := utils.NewContext()
		defer cancel()

		err := c.Put(ctx, catalog.Product{Id: "broken", Name: "Broken", Price: "-3", DeliveryType: catalog.DeliveryKey})
		assertions.ErrorIs(err, catalog.ErrInvalidProduct)

		err = c.Put(ctx, catalog.Product{Id: "a/b", Name: "Slash", Price: "3", DeliveryType: catalog.DeliveryKey})
		assertions.ErrorIs(err, catalog.ErrInvalidProduct)

		err = c.Put(ctx, catalog.Product{Id: "odd", Name: "Odd", Price: "3", DeliveryType: "carrier-pigeon"})
		assertions.ErrorIs(err, catalog.ErrInvalidProduct)
	})
}
