package orders

import (
	"context"
	"errors"
	"fmt"
	"log"
	"slices"

	"anarchy.ttfm/storefront/utils"
	badger "github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

var ordersPrefix = []byte("/orders/")

// Attempts made when a badger transaction conflicts with a concurrent one
const MaxConflictRetries = 16

// BadgerStore keeps orders under /orders/<id> and one index entry per payer
// identity under /payers/<payer>/<id>.
type BadgerStore struct {
	db *badger.DB
}

var _ Store = (*BadgerStore)(nil)

func NewBadgerStore(db *badger.DB) (s *BadgerStore) {
	return &BadgerStore{db: db}
}

func (s *BadgerStore) Insert(ctx context.Context, order Order) (err error) {
	if err = ctx.Err(); err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) (err error) {
		err = txn.Set(OrderKey(order.Id), order.Bytes())
		if err != nil {
			return fmt.Errorf("failed to set order: %w", err)
		}

		for _, payer := range order.PayerKeys() {
			err = txn.Set(PayerKey(payer, order.Id), order.Id[:])
			if err != nil {
				return fmt.Errorf("failed to set payer index: %w", err)
			}
		}
		return nil
	})
}

func getOrder(txn *badger.Txn, id uuid.UUID) (order Order, err error) {
	entry, err := txn.Get(OrderKey(id))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return order, ErrOrderNotFound
		}
		return order, fmt.Errorf("failed to query existing order: %w", err)
	}

	err = entry.Value(func(val []byte) (err error) {
		err = order.FromBytes(val)
		if err != nil {
			return fmt.Errorf("failed to unmarshal order: %w", err)
		}
		return nil
	})
	if err != nil {
		return order, fmt.Errorf("failed to retrieve value: %w", err)
	}
	return order, nil
}

func (s *BadgerStore) Get(ctx context.Context, id uuid.UUID) (order Order, err error) {
	if err = ctx.Err(); err != nil {
		return order, err
	}

	err = s.db.View(func(txn *badger.Txn) (err error) {
		order, err = getOrder(txn, id)
		return err
	})
	return order, err
}

// Streams orders whose keys match prefix. Values under the prefix are either
// full orders or the id of one, as in the payer index.
// orders channel must be consumed at all
func (s *BadgerStore) streamOrders(ctx context.Context, prefix []byte, indexed bool) (orders <-chan Order, errChan <-chan error) {
	out := make(chan Order, 1_000)
	errs := make(chan error, 1)
	go func() {
		defer close(out)
		defer close(errs)

		errs <- s.db.View(func(txn *badger.Txn) (err error) {
			options := badger.DefaultIteratorOptions
			options.Prefix = prefix
			it := txn.NewIterator(options)
			defer it.Close()

			for it.Rewind(); it.ValidForPrefix(prefix); it.Next() {
				if err = ctx.Err(); err != nil {
					return err
				}

				var order Order

				item := it.Item()
				if indexed {
					var id uuid.UUID
					err = item.Value(func(val []byte) (err error) {
						copy(id[:], val)
						return nil
					})
					if err == nil {
						order, err = getOrder(txn, id)
					}
				} else {
					err = item.Value(func(val []byte) (err error) {
						return order.FromBytes(val)
					})
				}
				if err != nil {
					// We can't return but even then we need to try the others
					log.Println("ERROR|ORDERS|STREAM", string(item.Key()), err)
					continue
				}

				out <- order
			}
			return nil
		})
	}()
	return out, errs
}

func (s *BadgerStore) collect(ctx context.Context, prefix []byte, indexed bool) (orders []Order, err error) {
	stream, errChan := s.streamOrders(ctx, prefix, indexed)
	defer utils.ConsumeChannel(stream)
	defer utils.ConsumeChannel(errChan)

	orders = make([]Order, 0)
	for order := range stream {
		orders = append(orders, order)
	}

	err = <-errChan
	if err != nil {
		return nil, fmt.Errorf("failed to iterate orders: %w", err)
	}

	slices.SortStableFunc(orders, func(a, b Order) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return orders, nil
}

func (s *BadgerStore) List(ctx context.Context) (orders []Order, err error) {
	return s.collect(ctx, ordersPrefix, false)
}

func (s *BadgerStore) ListByPayer(ctx context.Context, payer string) (orders []Order, err error) {
	return s.collect(ctx, PayerPrefix(payer), true)
}

func (s *BadgerStore) Update(ctx context.Context, id uuid.UUID, apply func(order *Order) error) (order Order, err error) {
	for range MaxConflictRetries {
		if err = ctx.Err(); err != nil {
			return order, err
		}

		err = s.db.Update(func(txn *badger.Txn) (err error) {
			order, err = getOrder(txn, id)
			if err != nil {
				return err
			}

			err = apply(&order)
			if err != nil {
				return err
			}

			err = txn.Set(OrderKey(id), order.Bytes())
			if err != nil {
				return fmt.Errorf("failed to set order: %w", err)
			}
			return nil
		})
		if !errors.Is(err, badger.ErrConflict) {
			return order, err
		}
	}
	return order, fmt.Errorf("failed to update order after %d attempts: %w", MaxConflictRetries, err)
}
