package catalog

import (
	"context"
	"errors"
	"fmt"
	"log"
	"slices"
	"strings"

	"anarchy.ttfm/storefront/decimal"
	"anarchy.ttfm/storefront/utils"
	badger "github.com/dgraph-io/badger/v4"
)

var (
	productsPrefix = []byte("/products/")
	groupsPrefix   = []byte("/groups/")
)

// Catalog stores products and product groups in badger
type Catalog struct {
	db *badger.DB
}

type Config struct {
	DB *badger.DB
}

func New(config Config) (c *Catalog) {
	return &Catalog{db: config.DB}
}

func (c *Catalog) Put(ctx context.Context, product Product) (err error) {
	err = product.Validate()
	if err != nil {
		return err
	}
	if err = ctx.Err(); err != nil {
		return err
	}

	return c.db.Update(func(txn *badger.Txn) (err error) {
		err = txn.Set(ProductKey(product.Id), product.Bytes())
		if err != nil {
			return fmt.Errorf("failed to set product: %w", err)
		}
		return nil
	})
}

func (c *Catalog) PutGroup(ctx context.Context, group Group) (err error) {
	err = group.Validate()
	if err != nil {
		return err
	}
	if err = ctx.Err(); err != nil {
		return err
	}

	return c.db.Update(func(txn *badger.Txn) (err error) {
		err = txn.Set(GroupKey(group.Id), group.Bytes())
		if err != nil {
			return fmt.Errorf("failed to set group: %w", err)
		}
		return nil
	})
}

func getProduct(txn *badger.Txn, id string) (product Product, err error) {
	entry, err := txn.Get(ProductKey(id))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return product, fmt.Errorf("%w: %s", ErrProductNotFound, id)
		}
		return product, fmt.Errorf("failed to query product: %w", err)
	}

	err = entry.Value(product.FromBytes)
	if err != nil {
		return product, fmt.Errorf("failed to unmarshal product: %w", err)
	}
	return product, nil
}

func (c *Catalog) Get(ctx context.Context, id string) (product Product, err error) {
	if err = ctx.Err(); err != nil {
		return product, err
	}
	if id == "" || strings.Contains(id, "/") {
		return product, fmt.Errorf("%w: %q", ErrProductNotFound, id)
	}

	err = c.db.View(func(txn *badger.Txn) (err error) {
		product, err = getProduct(txn, id)
		return err
	})
	return product, err
}

// Price returns the list price of product id
func (c *Catalog) Price(ctx context.Context, id string) (price decimal.Decimal, err error) {
	product, err := c.Get(ctx, id)
	if err != nil {
		return price, err
	}
	return product.PriceDecimal(), nil
}

// scan streams every value under prefix through decode
// values channel must be consumed at all
func scan[T any](ctx context.Context, db *badger.DB, prefix []byte, decode func(b []byte) (T, error)) (values <-chan T, errChan <-chan error) {
	out := make(chan T, 1_000)
	errs := make(chan error, 1)
	go func() {
		defer close(out)
		defer close(errs)

		errs <- db.View(func(txn *badger.Txn) (err error) {
			options := badger.DefaultIteratorOptions
			options.Prefix = prefix
			it := txn.NewIterator(options)
			defer it.Close()

			for it.Rewind(); it.ValidForPrefix(prefix); it.Next() {
				if err = ctx.Err(); err != nil {
					return err
				}

				var value T
				item := it.Item()
				err = item.Value(func(val []byte) (err error) {
					value, err = decode(val)
					return err
				})
				if err != nil {
					log.Println("ERROR|CATALOG|SCAN", string(item.Key()), err)
					continue
				}
				out <- value
			}
			return nil
		})
	}()
	return out, errs
}

func decodeProduct(b []byte) (product Product, err error) {
	err = product.FromBytes(b)
	return product, err
}

func decodeGroup(b []byte) (group Group, err error) {
	err = group.FromBytes(b)
	return group, err
}

func (c *Catalog) products(ctx context.Context, match func(p *Product) bool) (products []Product, err error) {
	stream, errChan := scan(ctx, c.db, productsPrefix, decodeProduct)
	defer utils.ConsumeChannel(stream)
	defer utils.ConsumeChannel(errChan)

	products = make([]Product, 0)
	for product := range stream {
		if match(&product) {
			products = append(products, product)
		}
	}

	err = <-errChan
	if err != nil {
		return nil, fmt.Errorf("failed to iterate products: %w", err)
	}

	slices.SortStableFunc(products, func(a, b Product) int {
		if a.Position != b.Position {
			return a.Position - b.Position
		}
		return strings.Compare(a.Name, b.Name)
	})
	return products, nil
}

// List returns every product in listing order
func (c *Catalog) List(ctx context.Context) (products []Product, err error) {
	return c.products(ctx, func(*Product) bool { return true })
}

// Search matches query case-insensitively against name, description, game
// and category
func (c *Catalog) Search(ctx context.Context, query string) (products []Product, err error) {
	query = strings.ToLower(strings.TrimSpace(query))
	return c.products(ctx, func(p *Product) bool { return p.Matches(query) })
}

func (c *Catalog) Filter(ctx context.Context, filter Filter) (products []Product, err error) {
	return c.products(ctx, filter.Match)
}

// ByName returns the product with exactly this name, ignoring case
func (c *Catalog) ByName(ctx context.Context, name string) (product Product, err error) {
	name = strings.TrimSpace(name)
	found, err := c.products(ctx, func(p *Product) bool { return strings.EqualFold(p.Name, name) })
	if err != nil {
		return product, err
	}
	if len(found) == 0 {
		return product, fmt.Errorf("%w: %q", ErrProductNotFound, name)
	}
	return found[0], nil
}

// Groups returns every group with its variant products resolved. Variants
// whose product is gone are skipped.
func (c *Catalog) Groups(ctx context.Context) (groups []ResolvedGroup, err error) {
	stream, errChan := scan(ctx, c.db, groupsPrefix, decodeGroup)
	defer utils.ConsumeChannel(stream)
	defer utils.ConsumeChannel(errChan)

	var raw []Group
	for group := range stream {
		raw = append(raw, group)
	}
	err = <-errChan
	if err != nil {
		return nil, fmt.Errorf("failed to iterate groups: %w", err)
	}

	slices.SortStableFunc(raw, func(a, b Group) int { return a.Position - b.Position })

	groups = make([]ResolvedGroup, 0, len(raw))
	err = c.db.View(func(txn *badger.Txn) (err error) {
		for _, group := range raw {
			resolved := ResolvedGroup{Group: group, Products: make([]Product, 0, len(group.Variants))}
			for _, variant := range group.Variants {
				product, err := getProduct(txn, variant.ProductId)
				if err != nil {
					if errors.Is(err, ErrProductNotFound) {
						log.Println("ERROR|CATALOG|VARIANT", group.Id, variant.ProductId)
						continue
					}
					return err
				}
				resolved.Products = append(resolved.Products, product)
			}
			groups = append(groups, resolved)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to resolve groups: %w", err)
	}
	return groups, nil
}
