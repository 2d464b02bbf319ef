package memstore

import (
	"cmp"
	"context"
	"fmt"
	"time"

	"github.com/odyssey-erp/supplyops/internal/orders"
	"github.com/odyssey-erp/supplyops/internal/requests"
	"github.com/odyssey-erp/supplyops/internal/shared"
)

// OrdersRepo implements orders.RepositoryPort.
type OrdersRepo struct{ s *Store }

// Orders returns the order ledger repository.
func (s *Store) Orders() *OrdersRepo { return &OrdersRepo{s: s} }

func (r *OrdersRepo) WithTx(ctx context.Context, fn func(context.Context, orders.TxRepository) error) error {
	return r.s.tx(ctx, func(st *state) error {
		return fn(ctx, &ordersTx{st: st, s: r.s})
	})
}

func (r *OrdersRepo) GetOrder(ctx context.Context, id int64) (orders.Order, error) {
	var (
		o  orders.Order
		ok bool
	)
	r.s.read(func(st *state) {
		if o, ok = st.orders[id]; ok {
			o.Items = st.itemsOfOrder(id)
		}
	})
	if !ok {
		return orders.Order{}, fmt.Errorf("%w: order %d", shared.ErrNotFound, id)
	}
	return o, nil
}

func (r *OrdersRepo) ListItems(ctx context.Context, orderID int64) ([]orders.Item, error) {
	var out []orders.Item
	r.s.read(func(st *state) { out = st.itemsOfOrder(orderID) })
	return out, nil
}

func (r *OrdersRepo) ListOrders(ctx context.Context, status orders.Status) ([]orders.Order, error) {
	var out []orders.Order
	r.s.read(func(st *state) {
		out = st.filterOrders(func(o orders.Order) bool { return status == "" || o.Status == status })
	})
	return out, nil
}

func (r *OrdersRepo) ListReadyToClose(ctx context.Context) ([]orders.Order, error) {
	var out []orders.Order
	r.s.read(func(st *state) {
		out = st.filterOrders(func(o orders.Order) bool { return orders.ReadyToClose(o, st.itemsOfOrder(o.ID)) })
	})
	return out, nil
}

func (st *state) filterOrders(keep func(orders.Order) bool) []orders.Order {
	out := []orders.Order{}
	for _, o := range sortedValues(st.orders, compareOrders) {
		if keep(o) {
			out = append(out, o)
		}
	}
	return out
}

func compareOrders(a, b orders.Order) int {
	return cmp.Or(a.OrderDate.Compare(b.OrderDate), cmp.Compare(a.ID, b.ID))
}

func (st *state) itemsOfOrder(orderID int64) []orders.Item {
	out := []orders.Item{}
	for _, item := range sortedValues(st.orderItems, func(a, b orders.Item) int { return cmp.Compare(a.ID, b.ID) }) {
		if item.OrderID == orderID {
			out = append(out, item)
		}
	}
	return out
}

type ordersTx struct {
	st *state
	s  *Store
}

func (t *ordersTx) InsertOrder(ctx context.Context, order orders.Order) (orders.Order, error) {
	order.ID = t.st.next("orders")
	order.CreatedAt = t.s.stamp()
	order.UpdatedAt = order.CreatedAt
	items := order.Items
	order.Items = nil
	t.st.orders[order.ID] = order
	for _, item := range items {
		item.ID = t.st.next("order_items")
		item.OrderID = order.ID
		item.FulfilledQty = 0
		item.Settle()
		t.st.orderItems[item.ID] = item
		order.Items = append(order.Items, item)
	}
	return order, nil
}

func (t *ordersTx) GetOrderForUpdate(ctx context.Context, id int64) (orders.Order, error) {
	o, ok := t.st.orders[id]
	if !ok {
		return orders.Order{}, fmt.Errorf("%w: order %d", shared.ErrNotFound, id)
	}
	return o, nil
}

func (t *ordersTx) ItemsForUpdate(ctx context.Context, orderID int64) ([]orders.Item, error) {
	return t.st.itemsOfOrder(orderID), nil
}

func (t *ordersTx) GetItemForUpdate(ctx context.Context, orderID, productID int64) (orders.Item, error) {
	for _, item := range t.st.orderItems {
		if item.OrderID == orderID && item.ProductID == productID {
			return item, nil
		}
	}
	return orders.Item{}, fmt.Errorf("%w: order %d product %d", shared.ErrNotFound, orderID, productID)
}

func (t *ordersTx) SetItemFulfilled(ctx context.Context, itemID, fulfilledQty int64) error {
	item, ok := t.st.orderItems[itemID]
	if !ok {
		return fmt.Errorf("%w: order item %d", shared.ErrNotFound, itemID)
	}
	if fulfilledQty < 0 || fulfilledQty > item.Quantity {
		return fmt.Errorf("%w: order item %d fulfilled %d outside 0..%d", shared.ErrInvariant, itemID, fulfilledQty, item.Quantity)
	}
	item.FulfilledQty = fulfilledQty
	item.Settle()
	t.st.orderItems[itemID] = item
	return nil
}

func (t *ordersTx) SetStatus(ctx context.Context, id int64, status orders.Status, actorID int64, at time.Time) (orders.Order, error) {
	o, ok := t.st.orders[id]
	if !ok {
		return orders.Order{}, fmt.Errorf("%w: order %d", shared.ErrNotFound, id)
	}
	o.Status = status
	o.UpdatedAt = at
	if status == orders.StatusClosed {
		o.ClosedBy, o.ClosedAt = &actorID, &at
	}
	t.st.orders[id] = o
	return o, nil
}

func (t *ordersTx) CountOpenRequests(ctx context.Context, orderID int64) (int, error) {
	count := 0
	for _, req := range t.st.requests {
		if req.OrderID != orderID {
			continue
		}
		items := t.st.itemsOfRequest(req.ID)
		if req.Status == requests.StatusAwaitingApproval || requests.Fulfillable(req, items) {
			count++
		}
	}
	return count, nil
}

func (t *ordersTx) Ready(ctx context.Context, orderID int64) (bool, error) {
	o, ok := t.st.orders[orderID]
	if !ok {
		return false, fmt.Errorf("%w: order %d", shared.ErrNotFound, orderID)
	}
	return orders.ReadyToClose(o, t.st.itemsOfOrder(orderID)), nil
}
