package orders

import (
	"context"

	"github.com/google/uuid"
)

// UpdateStatus moves the order forward. Updating to the current status
// succeeds with changed set to false; moving backwards fails with
// ErrInvalidStatusTransition.
func (c *Controller) UpdateStatus(ctx context.Context, id uuid.UUID, status Status) (order Order, changed bool, err error) {
	err = status.Validate()
	if err != nil {
		return order, false, err
	}

	unlock := c.locks.Lock(id.String())
	defer unlock()

	order, err = c.store.Update(ctx, id, func(o *Order) (err error) {
		// apply may run again after a conflict
		changed = false
		err = o.Status.CanAdvanceTo(status)
		if err != nil {
			return err
		}
		if o.Status == status {
			return nil
		}
		o.Status = status
		o.UpdatedAt = c.now().UTC()
		changed = true
		return nil
	})
	if err != nil {
		return Order{}, false, storageError(err)
	}
	return order, changed, nil
}

func assign(dst *string, value *string) (set bool) {
	if value == nil || *value == "" || *dst == *value {
		return false
	}
	*dst = *value
	return true
}

// AttachDelivery records delivery artifacts. Nil or empty fields leave the
// stored value untouched so that attaching twice is harmless.
func (c *Controller) AttachDelivery(ctx context.Context, id uuid.UUID, delivery Delivery) (order Order, err error) {
	unlock := c.locks.Lock(id.String())
	defer unlock()

	order, err = c.store.Update(ctx, id, func(o *Order) (err error) {
		changed := assign(&o.LicenseKey, delivery.LicenseKey)
		changed = assign(&o.DownloadUrl, delivery.DownloadUrl) || changed
		changed = assign(&o.TransactionId, delivery.TransactionId) || changed
		if changed {
			o.UpdatedAt = c.now().UTC()
		}
		return nil
	})
	if err != nil {
		return Order{}, storageError(err)
	}
	return order, nil
}
