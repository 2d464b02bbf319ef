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

// RequestsRepo implements requests.RepositoryPort.
type RequestsRepo struct{ s *Store }

// Requests returns the request workflow repository.
func (s *Store) Requests() *RequestsRepo { return &RequestsRepo{s: s} }

func (r *RequestsRepo) WithTx(ctx context.Context, fn func(context.Context, requests.TxRepository) error) error {
	return r.s.tx(ctx, func(st *state) error {
		return fn(ctx, newRequestsTx(st, r.s))
	})
}

func (r *RequestsRepo) GetRequest(ctx context.Context, id int64) (requests.Request, error) {
	var (
		req requests.Request
		ok  bool
	)
	r.s.read(func(st *state) {
		if req, ok = st.requests[id]; ok {
			req.Items = st.itemsOfRequest(id)
		}
	})
	if !ok {
		return requests.Request{}, fmt.Errorf("%w: request %d", shared.ErrNotFound, id)
	}
	return req, nil
}

func (r *RequestsRepo) ListItems(ctx context.Context, requestID int64) ([]requests.Item, error) {
	var out []requests.Item
	r.s.read(func(st *state) { out = st.itemsOfRequest(requestID) })
	return out, nil
}

func (r *RequestsRepo) ListRequests(ctx context.Context, status requests.Status) ([]requests.Request, error) {
	var out []requests.Request
	r.s.read(func(st *state) {
		out = st.filterRequests(func(req requests.Request) bool { return status == "" || req.Status == status })
	})
	return out, nil
}

func (r *RequestsRepo) ListFulfillable(ctx context.Context) ([]requests.Request, error) {
	var out []requests.Request
	r.s.read(func(st *state) {
		out = st.filterRequests(func(req requests.Request) bool {
			return requests.Fulfillable(req, st.itemsOfRequest(req.ID))
		})
		for i := range out {
			out[i].Items = st.itemsOfRequest(out[i].ID)
		}
	})
	return out, nil
}

func (r *RequestsRepo) ListReadyToClose(ctx context.Context) ([]requests.Request, error) {
	var out []requests.Request
	r.s.read(func(st *state) {
		out = st.filterRequests(func(req requests.Request) bool {
			return requests.ReadyToClose(req, st.itemsOfRequest(req.ID))
		})
	})
	return out, nil
}

func (st *state) filterRequests(keep func(requests.Request) bool) []requests.Request {
	out := []requests.Request{}
	for _, req := range sortedValues(st.requests, compareRequests) {
		if keep(req) {
			out = append(out, req)
		}
	}
	return out
}

func compareRequests(a, b requests.Request) int {
	return cmp.Or(a.RequestDate.Compare(b.RequestDate), cmp.Compare(a.ID, b.ID))
}

func (st *state) itemsOfRequest(requestID int64) []requests.Item {
	out := []requests.Item{}
	for _, item := range sortedValues(st.requestItems, func(a, b requests.Item) int { return cmp.Compare(a.ID, b.ID) }) {
		if item.RequestID == requestID {
			out = append(out, item)
		}
	}
	return out
}

type requestsTx struct {
	st     *state
	s      *Store
	orders *ordersTx
}

func newRequestsTx(st *state, s *Store) *requestsTx {
	return &requestsTx{st: st, s: s, orders: &ordersTx{st: st, s: s}}
}

func (t *requestsTx) Orders() orders.TxRepository {
	return t.orders
}

func (t *requestsTx) InsertRequest(ctx context.Context, req requests.Request) (requests.Request, error) {
	if _, ok := t.st.orders[req.OrderID]; !ok {
		return requests.Request{}, fmt.Errorf("%w: order %d", shared.ErrNotFound, req.OrderID)
	}
	req.ID = t.st.next("requests")
	req.CreatedAt = t.s.stamp()
	items := req.Items
	req.Items = nil
	t.st.requests[req.ID] = req
	for _, item := range items {
		item.ID = t.st.next("request_items")
		item.RequestID = req.ID
		item.FulfilledQty = 0
		item.Settle()
		t.st.requestItems[item.ID] = item
		req.Items = append(req.Items, item)
	}
	return req, nil
}

func (t *requestsTx) GetRequestForUpdate(ctx context.Context, id int64) (requests.Request, error) {
	req, ok := t.st.requests[id]
	if !ok {
		return requests.Request{}, fmt.Errorf("%w: request %d", shared.ErrNotFound, id)
	}
	return req, nil
}

func (t *requestsTx) RequestIDForItem(ctx context.Context, itemID int64) (int64, error) {
	item, ok := t.st.requestItems[itemID]
	if !ok {
		return 0, fmt.Errorf("%w: request item %d", shared.ErrNotFound, itemID)
	}
	return item.RequestID, nil
}

func (t *requestsTx) ItemsForUpdate(ctx context.Context, requestID int64) ([]requests.Item, error) {
	return t.st.itemsOfRequest(requestID), nil
}

func (t *requestsTx) GetItemForUpdate(ctx context.Context, itemID int64) (requests.Item, error) {
	item, ok := t.st.requestItems[itemID]
	if !ok {
		return requests.Item{}, fmt.Errorf("%w: request item %d", shared.ErrNotFound, itemID)
	}
	return item, nil
}

func (t *requestsTx) SetItemFulfilled(ctx context.Context, itemID, fulfilledQty int64) error {
	item, ok := t.st.requestItems[itemID]
	if !ok {
		return fmt.Errorf("%w: request item %d", shared.ErrNotFound, itemID)
	}
	if fulfilledQty < 0 || fulfilledQty > item.Quantity {
		return fmt.Errorf("%w: request item %d fulfilled %d outside 0..%d", shared.ErrInvariant, itemID, fulfilledQty, item.Quantity)
	}
	item.FulfilledQty = fulfilledQty
	item.Settle()
	t.st.requestItems[itemID] = item
	return nil
}

func (t *requestsTx) SetStatus(ctx context.Context, id int64, status requests.Status, actorID int64, at time.Time) (requests.Request, error) {
	req, ok := t.st.requests[id]
	if !ok {
		return requests.Request{}, fmt.Errorf("%w: request %d", shared.ErrNotFound, id)
	}
	req.Status = status
	switch status {
	case requests.StatusApproved, requests.StatusRejected:
		req.DecidedBy, req.DecidedAt = &actorID, &at
	case requests.StatusClosed:
		req.ClosedBy, req.ClosedAt = &actorID, &at
	}
	t.st.requests[id] = req
	return req, nil
}

func (t *requestsTx) OpenDemand(ctx context.Context, orderID, productID int64) (int64, error) {
	var demand int64
	for _, item := range t.st.requestItems {
		req := t.st.requests[item.RequestID]
		if req.OrderID == orderID && item.ProductID == productID && req.Status.Open() {
			demand += item.Quantity - item.FulfilledQty
		}
	}
	return demand, nil
}
