package orders

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/supplyops/internal/catalog"
	"github.com/odyssey-erp/supplyops/internal/party"
	"github.com/odyssey-erp/supplyops/internal/rbac"
	"github.com/odyssey-erp/supplyops/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetOrder(ctx context.Context, id int64) (Order, error)
	ListItems(ctx context.Context, orderID int64) ([]Item, error)
	ListOrders(ctx context.Context, status Status) ([]Order, error)
	ListReadyToClose(ctx context.Context) ([]Order, error)
}

// CustomerLookup resolves customers referenced by new orders.
type CustomerLookup interface {
	GetCustomer(ctx context.Context, id int64) (party.Customer, error)
}

// ProductLookup resolves products referenced by order lines.
type ProductLookup interface {
	GetProduct(ctx context.Context, id int64) (catalog.Product, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates the order ledger.
type Service struct {
	repo      RepositoryPort
	customers CustomerLookup
	products  ProductLookup
	audit     AuditPort
	now       func() time.Time
}

// NewService builds Service.
func NewService(repo RepositoryPort, customers CustomerLookup, products ProductLookup, audit AuditPort) *Service {
	return &Service{repo: repo, customers: customers, products: products, audit: audit, now: time.Now}
}

// CreateOrder validates and persists an order. Totals are always computed here.
func (s *Service) CreateOrder(ctx context.Context, caller rbac.Caller, input CreateInput) (Order, error) {
	if err := rbac.Authorize(caller, rbac.OpOrderCreate); err != nil {
		return Order{}, err
	}
	order, err := s.prepare(input)
	if err != nil {
		return Order{}, err
	}
	order.StaffID = caller.StaffID
	if _, err := s.customers.GetCustomer(ctx, order.CustomerID); err != nil {
		return Order{}, fmt.Errorf("create order: %w", err)
	}
	for _, item := range order.Items {
		if _, err := s.products.GetProduct(ctx, item.ProductID); err != nil {
			return Order{}, fmt.Errorf("create order: %w", err)
		}
	}
	var created Order
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		created, err = tx.InsertOrder(ctx, order)
		return err
	})
	if err != nil {
		return Order{}, fmt.Errorf("create order: %w", err)
	}
	s.record(ctx, caller, "order:create", created.ID, map[string]any{
		"customer_id":  created.CustomerID,
		"status":       string(created.Status),
		"total_amount": created.TotalAmount.StringFixed(2),
	})
	return created, nil
}

func (s *Service) prepare(input CreateInput) (Order, error) {
	if input.CustomerID <= 0 {
		return Order{}, fmt.Errorf("%w: customer required", shared.ErrValidation)
	}
	if len(input.Items) == 0 {
		return Order{}, fmt.Errorf("%w: order requires at least one item", shared.ErrValidation)
	}
	status, ok := ParseStatus(input.Status)
	if !ok {
		return Order{}, fmt.Errorf("%w: order status must be PENDING or CONFIRMED", shared.ErrValidation)
	}
	date, err := ParseDate(input.OrderDate, s.now())
	if err != nil {
		return Order{}, err
	}
	order := Order{CustomerID: input.CustomerID, OrderDate: date, Status: status, TotalAmount: decimal.Zero}
	seen := make(map[int64]struct{}, len(input.Items))
	for idx, in := range input.Items {
		if in.ProductID <= 0 {
			return Order{}, fmt.Errorf("%w: item %d: product required", shared.ErrValidation, idx+1)
		}
		if in.Quantity <= 0 {
			return Order{}, fmt.Errorf("%w: item %d: quantity must be greater than zero", shared.ErrValidation, idx+1)
		}
		if in.UnitPrice.IsNegative() {
			return Order{}, fmt.Errorf("%w: item %d: unit price cannot be negative", shared.ErrValidation, idx+1)
		}
		if !in.UnitPrice.Equal(in.UnitPrice.Round(2)) {
			return Order{}, fmt.Errorf("%w: item %d: unit price has more than 2 decimal places", shared.ErrValidation, idx+1)
		}
		if _, dup := seen[in.ProductID]; dup {
			return Order{}, fmt.Errorf("%w: product %d appears on more than one line", shared.ErrValidation, in.ProductID)
		}
		seen[in.ProductID] = struct{}{}
		price := in.UnitPrice.Round(2)
		line := price.Mul(decimal.NewFromInt(in.Quantity)).Round(2)
		order.Items = append(order.Items, Item{
			ProductID:    in.ProductID,
			Quantity:     in.Quantity,
			UnitPrice:    price,
			LineTotal:    line,
			RemainingQty: in.Quantity,
		})
		order.TotalAmount = order.TotalAmount.Add(line)
	}
	return order, nil
}

// ConfirmOrder moves a pending order to confirmed.
func (s *Service) ConfirmOrder(ctx context.Context, caller rbac.Caller, id int64) (Order, error) {
	if err := rbac.Authorize(caller, rbac.OpOrderConfirm); err != nil {
		return Order{}, err
	}
	var updated Order
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		order, err := tx.GetOrderForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if order.Status != StatusPending {
			return fmt.Errorf("%w: order %d is %s, only PENDING orders can be confirmed", shared.ErrConflict, id, order.Status)
		}
		updated, err = tx.SetStatus(ctx, id, StatusConfirmed, caller.StaffID, s.now().UTC())
		return err
	})
	if err != nil {
		return Order{}, fmt.Errorf("confirm order: %w", err)
	}
	s.record(ctx, caller, "order:confirm", id, nil)
	return updated, nil
}

// CloseOrder closes a confirmed order whose lines are all fulfilled. Repeating the
// call on a closed order is a conflict.
func (s *Service) CloseOrder(ctx context.Context, caller rbac.Caller, id int64) (Order, error) {
	if err := rbac.Authorize(caller, rbac.OpOrderClose); err != nil {
		return Order{}, err
	}
	var closed Order
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		order, err := tx.GetOrderForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if order.Status != StatusConfirmed {
			return fmt.Errorf("%w: order %d is %s, only CONFIRMED orders can be closed", shared.ErrConflict, id, order.Status)
		}
		items, err := tx.ItemsForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !ReadyToClose(order, items) {
			return fmt.Errorf("%w: %w", shared.ErrConflict, ErrNotReadyToClose)
		}
		open, err := tx.CountOpenRequests(ctx, id)
		if err != nil {
			return err
		}
		if open > 0 {
			return fmt.Errorf("%w: %w (%d)", shared.ErrConflict, ErrOpenRequests, open)
		}
		closed, err = tx.SetStatus(ctx, id, StatusClosed, caller.StaffID, s.now().UTC())
		if err != nil {
			return err
		}
		closed.Items = items
		return nil
	})
	if err != nil {
		return Order{}, fmt.Errorf("close order: %w", err)
	}
	s.record(ctx, caller, "order:close", id, nil)
	return closed, nil
}

// ListOrders returns every order. Only administrators may see the full ledger.
func (s *Service) ListOrders(ctx context.Context, caller rbac.Caller) ([]Order, error) {
	if err := rbac.Authorize(caller, rbac.OpOrderListAll); err != nil {
		return nil, err
	}
	return s.repo.ListOrders(ctx, "")
}

// ListConfirmed returns confirmed orders by date ascending, the eligible set for new requests.
func (s *Service) ListConfirmed(ctx context.Context, caller rbac.Caller) ([]Order, error) {
	if err := rbac.Authorize(caller, rbac.OpOrderView); err != nil {
		return nil, err
	}
	return s.repo.ListOrders(ctx, StatusConfirmed)
}

// ListReadyToClose returns confirmed orders with every line fulfilled.
func (s *Service) ListReadyToClose(ctx context.Context, caller rbac.Caller) ([]Order, error) {
	if err := rbac.Authorize(caller, rbac.OpOrderView); err != nil {
		return nil, err
	}
	return s.repo.ListReadyToClose(ctx)
}

// GetOrder returns an order with its lines.
func (s *Service) GetOrder(ctx context.Context, caller rbac.Caller, id int64) (Order, error) {
	if err := rbac.Authorize(caller, rbac.OpOrderView); err != nil {
		return Order{}, err
	}
	return s.repo.GetOrder(ctx, id)
}

// ListItems returns the lines of an order.
func (s *Service) ListItems(ctx context.Context, caller rbac.Caller, id int64) ([]Item, error) {
	if err := rbac.Authorize(caller, rbac.OpOrderView); err != nil {
		return nil, err
	}
	if _, err := s.repo.GetOrder(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.ListItems(ctx, id)
}

func (s *Service) record(ctx context.Context, caller rbac.Caller, action string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  caller.StaffID,
		Action:   action,
		Entity:   "order",
		EntityID: strconv.FormatInt(id, 10),
		Meta:     meta,
	})
}

// ParseDate parses a YYYY-MM-DD date, defaulting to today (UTC) when raw is blank.
func ParseDate(raw string, now time.Time) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		y, m, d := now.UTC().Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
	}
	date, err := time.Parse(DateLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q must use YYYY-MM-DD", shared.ErrValidation, raw)
	}
	return date, nil
}
