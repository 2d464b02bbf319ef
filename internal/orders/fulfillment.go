package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/odyssey-erp/supplyops/internal/shared"
)

// ApplyFulfillment posts qty against the order line for productID inside the caller's
// transaction. Driving remaining quantity negative is an invariant violation.
func ApplyFulfillment(ctx context.Context, tx TxRepository, orderID, productID, qty int64) (Item, error) {
	if qty <= 0 {
		return Item{}, fmt.Errorf("%w: fulfillment quantity %d on order %d", shared.ErrInvariant, qty, orderID)
	}
	item, err := tx.GetItemForUpdate(ctx, orderID, productID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return Item{}, fmt.Errorf("%w: order %d has no line for product %d", shared.ErrInvariant, orderID, productID)
		}
		return Item{}, err
	}
	remaining := item.Quantity - item.FulfilledQty
	if qty > remaining {
		return Item{}, fmt.Errorf("%w: order %d line %d remaining %d < %d", shared.ErrInvariant, orderID, item.ID, remaining, qty)
	}
	item.FulfilledQty += qty
	item.Settle()
	if err := tx.SetItemFulfilled(ctx, item.ID, item.FulfilledQty); err != nil {
		return Item{}, err
	}
	return item, nil
}
