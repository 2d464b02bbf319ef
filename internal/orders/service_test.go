package orders

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/supplyops/internal/catalog"
	"github.com/odyssey-erp/supplyops/internal/party"
	"github.com/odyssey-erp/supplyops/internal/rbac"
	"github.com/odyssey-erp/supplyops/internal/shared"
)

type memoryRepo struct {
	orders       map[int64]Order
	items        map[int64][]Item
	openRequests map[int64]int
	nextID       int64
}

type memoryTx struct {
	repo *memoryRepo
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{orders: map[int64]Order{}, items: map[int64][]Item{}, openRequests: map[int64]int{}}
}

func (m *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryTx{repo: m})
}

func (m *memoryRepo) GetOrder(ctx context.Context, id int64) (Order, error) {
	o, ok := m.orders[id]
	if !ok {
		return Order{}, fmt.Errorf("%w: order %d", shared.ErrNotFound, id)
	}
	o.Items = append([]Item(nil), m.items[id]...)
	return o, nil
}

func (m *memoryRepo) ListItems(ctx context.Context, orderID int64) ([]Item, error) {
	return append([]Item{}, m.items[orderID]...), nil
}

func (m *memoryRepo) ListOrders(ctx context.Context, status Status) ([]Order, error) {
	out := []Order{}
	for id := int64(1); id <= m.nextID; id++ {
		o, ok := m.orders[id]
		if ok && (status == "" || o.Status == status) {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *memoryRepo) ListReadyToClose(ctx context.Context) ([]Order, error) {
	out := []Order{}
	for id := int64(1); id <= m.nextID; id++ {
		o, ok := m.orders[id]
		if ok && ReadyToClose(o, m.items[id]) {
			out = append(out, o)
		}
	}
	return out, nil
}

func (t *memoryTx) InsertOrder(ctx context.Context, order Order) (Order, error) {
	m := t.repo
	m.nextID++
	order.ID = m.nextID
	items := order.Items
	order.Items = nil
	for idx := range items {
		m.nextID++
		items[idx].ID = m.nextID
		items[idx].OrderID = order.ID
		items[idx].Settle()
	}
	m.orders[order.ID] = order
	m.items[order.ID] = items
	order.Items = append([]Item(nil), items...)
	return order, nil
}

func (t *memoryTx) GetOrderForUpdate(ctx context.Context, id int64) (Order, error) {
	return t.repo.GetOrder(ctx, id)
}

func (t *memoryTx) ItemsForUpdate(ctx context.Context, orderID int64) ([]Item, error) {
	return t.repo.ListItems(ctx, orderID)
}

func (t *memoryTx) GetItemForUpdate(ctx context.Context, orderID, productID int64) (Item, error) {
	for _, item := range t.repo.items[orderID] {
		if item.ProductID == productID {
			return item, nil
		}
	}
	return Item{}, fmt.Errorf("%w: order %d product %d", shared.ErrNotFound, orderID, productID)
}

func (t *memoryTx) SetItemFulfilled(ctx context.Context, itemID, fulfilledQty int64) error {
	for orderID, items := range t.repo.items {
		for idx := range items {
			if items[idx].ID == itemID {
				items[idx].FulfilledQty = fulfilledQty
				items[idx].Settle()
				t.repo.items[orderID] = items
				return nil
			}
		}
	}
	return fmt.Errorf("%w: order item %d", shared.ErrNotFound, itemID)
}

func (t *memoryTx) SetStatus(ctx context.Context, id int64, status Status, actorID int64, at time.Time) (Order, error) {
	o := t.repo.orders[id]
	o.Status = status
	o.UpdatedAt = at
	if status == StatusClosed {
		o.ClosedBy, o.ClosedAt = &actorID, &at
	}
	t.repo.orders[id] = o
	return o, nil
}

func (t *memoryTx) CountOpenRequests(ctx context.Context, orderID int64) (int, error) {
	return t.repo.openRequests[orderID], nil
}

func (t *memoryTx) Ready(ctx context.Context, orderID int64) (bool, error) {
	o, err := t.repo.GetOrder(ctx, orderID)
	if err != nil {
		return false, err
	}
	return ReadyToClose(o, o.Items), nil
}

type lookups struct {
	customers map[int64]party.Customer
	products  map[int64]catalog.Product
}

func (l lookups) GetCustomer(ctx context.Context, id int64) (party.Customer, error) {
	c, ok := l.customers[id]
	if !ok {
		return party.Customer{}, fmt.Errorf("%w: customer %d", shared.ErrNotFound, id)
	}
	return c, nil
}

func (l lookups) GetProduct(ctx context.Context, id int64) (catalog.Product, error) {
	p, ok := l.products[id]
	if !ok {
		return catalog.Product{}, fmt.Errorf("%w: product %d", shared.ErrNotFound, id)
	}
	return p, nil
}

type auditRecorder struct {
	logs []shared.AuditLog
}

func (a *auditRecorder) Record(ctx context.Context, log shared.AuditLog) error {
	a.logs = append(a.logs, log)
	return nil
}

var (
	sales      = rbac.Caller{StaffID: 2, Role: rbac.RoleSales}
	admin      = rbac.Caller{StaffID: 1, Role: rbac.RoleAdmin}
	technician = rbac.Caller{StaffID: 5, Role: rbac.RoleTechnician}
)

func newTestService() (*Service, *memoryRepo, *auditRecorder) {
	repo := newMemoryRepo()
	audit := &auditRecorder{}
	look := lookups{
		customers: map[int64]party.Customer{10: {ID: 10, Name: "CV Terang"}},
		products: map[int64]catalog.Product{
			20: {ID: 20, Name: "NYM 3x2.5"},
			21: {ID: 21, Name: "MCB 16A"},
		},
	}
	svc := NewService(repo, look, look, audit)
	svc.now = func() time.Time { return time.Date(2026, 3, 4, 15, 0, 0, 0, time.UTC) }
	return svc, repo, audit
}

func TestCreateOrderComputesTotalsServerSide(t *testing.T) {
	svc, _, audit := newTestService()
	order, err := svc.CreateOrder(context.Background(), sales, CreateInput{
		CustomerID: 10,
		Items: []ItemInput{
			{ProductID: 20, Quantity: 3, UnitPrice: decimal.RequireFromString("10.010")},
			{ProductID: 21, Quantity: 2, UnitPrice: decimal.RequireFromString("4.50")},
		},
	})
	require.NoError(t, err)
	require.Equal(t, StatusPending, order.Status)
	require.Equal(t, sales.StaffID, order.StaffID)
	require.Equal(t, time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC), order.OrderDate)
	require.Len(t, order.Items, 2)
	require.True(t, order.Items[0].LineTotal.Equal(decimal.RequireFromString("30.03")))
	require.True(t, order.TotalAmount.Equal(decimal.RequireFromString("39.03")))
	require.Equal(t, int64(3), order.Items[0].RemainingQty)
	require.Len(t, audit.logs, 1)
	require.Equal(t, "order:create", audit.logs[0].Action)
}

func TestCreateOrderRejectsBadInput(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()
	cases := map[string]CreateInput{
		"no items":          {CustomerID: 10},
		"zero quantity":     {CustomerID: 10, Items: []ItemInput{{ProductID: 20, Quantity: 0}}},
		"duplicate product": {CustomerID: 10, Items: []ItemInput{{ProductID: 20, Quantity: 1}, {ProductID: 20, Quantity: 2}}},
		"negative price":    {CustomerID: 10, Items: []ItemInput{{ProductID: 20, Quantity: 1, UnitPrice: decimal.NewFromInt(-1)}}},
		"sub-cent price":    {CustomerID: 10, Items: []ItemInput{{ProductID: 20, Quantity: 1, UnitPrice: decimal.RequireFromString("1.005")}}},
		"bad status":        {CustomerID: 10, Status: "CLOSED", Items: []ItemInput{{ProductID: 20, Quantity: 1}}},
		"bad date":          {CustomerID: 10, OrderDate: "04/03/2026", Items: []ItemInput{{ProductID: 20, Quantity: 1}}},
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.CreateOrder(ctx, sales, input)
			require.ErrorIs(t, err, shared.ErrValidation)
		})
	}

	_, err := svc.CreateOrder(ctx, sales, CreateInput{CustomerID: 99, Items: []ItemInput{{ProductID: 20, Quantity: 1}}})
	require.ErrorIs(t, err, shared.ErrNotFound)
	_, err = svc.CreateOrder(ctx, sales, CreateInput{CustomerID: 10, Items: []ItemInput{{ProductID: 99, Quantity: 1}}})
	require.ErrorIs(t, err, shared.ErrNotFound)
	_, err = svc.CreateOrder(ctx, technician, CreateInput{CustomerID: 10, Items: []ItemInput{{ProductID: 20, Quantity: 1}}})
	require.ErrorIs(t, err, shared.ErrForbidden)
	require.Empty(t, repo.orders)
}

func TestConfirmOrderOnlyFromPending(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	order, err := svc.CreateOrder(ctx, sales, CreateInput{CustomerID: 10, Items: []ItemInput{{ProductID: 20, Quantity: 1}}})
	require.NoError(t, err)

	confirmed, err := svc.ConfirmOrder(ctx, sales, order.ID)
	require.NoError(t, err)
	require.Equal(t, StatusConfirmed, confirmed.Status)

	_, err = svc.ConfirmOrder(ctx, sales, order.ID)
	require.ErrorIs(t, err, shared.ErrConflict)
	_, err = svc.ConfirmOrder(ctx, sales, 404)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestCloseOrderRequiresFulfilledLines(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()
	order, err := svc.CreateOrder(ctx, sales, CreateInput{CustomerID: 10, Status: "confirmed", Items: []ItemInput{{ProductID: 20, Quantity: 4}}})
	require.NoError(t, err)
	require.Equal(t, StatusConfirmed, order.Status)

	_, err = svc.CloseOrder(ctx, sales, order.ID)
	require.ErrorIs(t, err, shared.ErrConflict)
	require.ErrorIs(t, err, ErrNotReadyToClose)

	err = repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		_, err := ApplyFulfillment(ctx, tx, order.ID, 20, 4)
		return err
	})
	require.NoError(t, err)

	ready, err := svc.ListReadyToClose(ctx, technician)
	require.NoError(t, err)
	require.Len(t, ready, 1)

	repo.openRequests[order.ID] = 1
	_, err = svc.CloseOrder(ctx, sales, order.ID)
	require.ErrorIs(t, err, ErrOpenRequests)
	repo.openRequests[order.ID] = 0

	closed, err := svc.CloseOrder(ctx, sales, order.ID)
	require.NoError(t, err)
	require.Equal(t, StatusClosed, closed.Status)
	require.NotNil(t, closed.ClosedBy)
	require.Equal(t, sales.StaffID, *closed.ClosedBy)

	_, err = svc.CloseOrder(ctx, sales, order.ID)
	require.ErrorIs(t, err, shared.ErrConflict)
}

func TestApplyFulfillmentGuardsRemaining(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()
	order, err := svc.CreateOrder(ctx, sales, CreateInput{CustomerID: 10, Status: "CONFIRMED", Items: []ItemInput{{ProductID: 20, Quantity: 5}}})
	require.NoError(t, err)

	err = repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		item, err := ApplyFulfillment(ctx, tx, order.ID, 20, 3)
		require.NoError(t, err)
		require.Equal(t, int64(2), item.RemainingQty)

		_, err = ApplyFulfillment(ctx, tx, order.ID, 20, 3)
		require.ErrorIs(t, err, shared.ErrInvariant)
		_, err = ApplyFulfillment(ctx, tx, order.ID, 21, 1)
		require.ErrorIs(t, err, shared.ErrInvariant)
		_, err = ApplyFulfillment(ctx, tx, order.ID, 20, 0)
		require.ErrorIs(t, err, shared.ErrInvariant)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, int64(3), repo.items[order.ID][0].FulfilledQty)
}

func TestListOrdersAdminOnly(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	_, err := svc.CreateOrder(ctx, sales, CreateInput{CustomerID: 10, Items: []ItemInput{{ProductID: 20, Quantity: 1}}})
	require.NoError(t, err)
	_, err = svc.CreateOrder(ctx, sales, CreateInput{CustomerID: 10, Status: "CONFIRMED", Items: []ItemInput{{ProductID: 21, Quantity: 1}}})
	require.NoError(t, err)

	_, err = svc.ListOrders(ctx, sales)
	require.ErrorIs(t, err, shared.ErrForbidden)
	all, err := svc.ListOrders(ctx, admin)
	require.NoError(t, err)
	require.Len(t, all, 2)
	confirmed, err := svc.ListConfirmed(ctx, technician)
	require.NoError(t, err)
	require.Len(t, confirmed, 1)
	require.Equal(t, StatusConfirmed, confirmed[0].Status)
}

func TestParseDate(t *testing.T) {
	now := time.Date(2026, 1, 2, 23, 59, 0, 0, time.FixedZone("WIB", 7*3600))
	got, err := ParseDate("", now)
	require.NoError(t, err)
	require.Equal(t, time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC), got)

	got, err = ParseDate(" 2025-12-31 ", now)
	require.NoError(t, err)
	require.Equal(t, 2025, got.Year())

	_, err = ParseDate("2025-13-01", now)
	require.ErrorIs(t, err, shared.ErrValidation)
}
