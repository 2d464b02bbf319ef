package stock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/odyssey-erp/supplyops/internal/catalog"
	"github.com/odyssey-erp/supplyops/internal/observability"
	"github.com/odyssey-erp/supplyops/internal/orders"
	"github.com/odyssey-erp/supplyops/internal/rbac"
	"github.com/odyssey-erp/supplyops/internal/requests"
	"github.com/odyssey-erp/supplyops/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	ListTransactions(ctx context.Context, filter Filter) ([]Transaction, error)
}

// RequestQueue lists approved requests that still need stock.
type RequestQueue interface {
	ListFulfillable(ctx context.Context) ([]requests.Request, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service is the stock fulfillment engine.
type Service struct {
	repo      RepositoryPort
	queue     RequestQueue
	publisher Publisher
	metrics   MetricsPort
	audit     AuditPort
	logger    *slog.Logger
	now       func() time.Time
}

// ServiceOption customises Service.
type ServiceOption func(*Service)

// WithPublisher attaches the post-commit event publisher.
func WithPublisher(p Publisher) ServiceOption {
	return func(s *Service) { s.publisher = p }
}

// WithMetrics attaches the fulfillment outcome counter.
func WithMetrics(m MetricsPort) ServiceOption {
	return func(s *Service) { s.metrics = m }
}

// WithAudit attaches the audit sink.
func WithAudit(a AuditPort) ServiceOption {
	return func(s *Service) { s.audit = a }
}

// NewService builds Service.
func NewService(repo RepositoryPort, queue RequestQueue, logger *slog.Logger, opts ...ServiceOption) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{repo: repo, queue: queue, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Fulfill draws stock for one approved request item. Product, request item, order
// item and the ledger row change together or not at all. Rows are locked in the
// order request, request item, product, order item.
func (s *Service) Fulfill(ctx context.Context, caller rbac.Caller, input FulfillInput) (FulfillResult, error) {
	if err := rbac.Authorize(caller, rbac.OpStockFulfil); err != nil {
		return FulfillResult{}, err
	}
	if input.RequestItemID <= 0 {
		return FulfillResult{}, fmt.Errorf("%w: request item required", shared.ErrValidation)
	}
	if input.Quantity <= 0 {
		return FulfillResult{}, fmt.Errorf("%w: fulfill quantity must be greater than zero", shared.ErrValidation)
	}
	var result FulfillResult
	var requestID, orderID int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		reqs := tx.Requests()
		id, err := reqs.RequestIDForItem(ctx, input.RequestItemID)
		if err != nil {
			return err
		}
		req, err := reqs.GetRequestForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if req.Status != requests.StatusApproved {
			return fmt.Errorf("%w: request %d is %s, only APPROVED requests can be fulfilled", shared.ErrConflict, req.ID, req.Status)
		}
		item, err := reqs.GetItemForUpdate(ctx, input.RequestItemID)
		if err != nil {
			return err
		}
		if err := item.Fulfill(input.Quantity); err != nil {
			return err
		}
		product, err := tx.Catalog().GetProductForUpdate(ctx, item.ProductID)
		if err != nil {
			return err
		}
		if product.QuantityOnHand < input.Quantity {
			return fmt.Errorf("%w: product %d has %d on hand, %d requested", shared.ErrInsufficientStock, product.ID, product.QuantityOnHand, input.Quantity)
		}
		orderItem, err := orders.ApplyFulfillment(ctx, reqs.Orders(), req.OrderID, item.ProductID, input.Quantity)
		if err != nil {
			return err
		}
		product.QuantityOnHand -= input.Quantity
		if err := tx.Catalog().SetQuantity(ctx, product.ID, product.QuantityOnHand); err != nil {
			return err
		}
		if err := reqs.SetItemFulfilled(ctx, item.ID, item.FulfilledQty); err != nil {
			return err
		}
		txn, err := tx.InsertTransaction(ctx, Transaction{
			Date:          s.now().UTC(),
			Type:          TypeFulfillment,
			ProductID:     product.ID,
			Quantity:      input.Quantity,
			StaffID:       caller.StaffID,
			RequestID:     &req.ID,
			RequestItemID: &item.ID,
			OrderID:       &req.OrderID,
			Description:   fmt.Sprintf("Fulfill Request ID %d", req.ID),
		})
		if err != nil {
			return err
		}
		items, err := reqs.ItemsForUpdate(ctx, req.ID)
		if err != nil {
			return err
		}
		orderReady, err := reqs.Orders().Ready(ctx, req.OrderID)
		if err != nil {
			return err
		}
		requestID, orderID = req.ID, req.OrderID
		result = FulfillResult{
			Transaction:         txn,
			Product:             product,
			RequestItem:         item,
			OrderItem:           orderItem,
			RequestReadyToClose: requests.ReadyToClose(req, items),
			OrderReadyToClose:   orderReady,
		}
		return nil
	})
	if err != nil {
		s.observe(err, 0)
		if errors.Is(err, shared.ErrInvariant) {
			s.logger.Error("fulfillment invariant violated",
				slog.Int64("request_item_id", input.RequestItemID),
				slog.Int64("quantity", input.Quantity),
				slog.Any("error", err))
		}
		return FulfillResult{}, fmt.Errorf("fulfill: %w", err)
	}
	s.observe(nil, input.Quantity)
	s.record(ctx, caller, "stock:fulfill", result.Transaction.ID, map[string]any{
		"request_id":      requestID,
		"request_item_id": input.RequestItemID,
		"order_id":        orderID,
		"product_id":      result.Product.ID,
		"quantity":        input.Quantity,
	})
	s.publish(ctx, FulfillmentPostedEvent{
		TransactionID:       result.Transaction.ID,
		RequestID:           requestID,
		RequestItemID:       input.RequestItemID,
		OrderID:             orderID,
		ProductID:           result.Product.ID,
		Quantity:            input.Quantity,
		StaffID:             caller.StaffID,
		RequestReadyToClose: result.RequestReadyToClose,
		OrderReadyToClose:   result.OrderReadyToClose,
		PostedAt:            result.Transaction.Date,
	})
	return result, nil
}

// StockIn receives goods from a supplier. It never touches requests or orders.
func (s *Service) StockIn(ctx context.Context, caller rbac.Caller, input StockInInput) (Movement, error) {
	if err := rbac.Authorize(caller, rbac.OpStockIn); err != nil {
		return Movement{}, err
	}
	if input.ProductID <= 0 || input.SupplierID <= 0 {
		return Movement{}, fmt.Errorf("%w: product and supplier required", shared.ErrValidation)
	}
	if input.Quantity <= 0 {
		return Movement{}, fmt.Errorf("%w: stock-in quantity must be greater than zero", shared.ErrValidation)
	}
	note := strings.TrimSpace(input.Note)
	var moved Movement
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		product, err := tx.Catalog().GetProductForUpdate(ctx, input.ProductID)
		if err != nil {
			return err
		}
		if _, err := tx.Catalog().GetSupplierForUpdate(ctx, input.SupplierID); err != nil {
			return err
		}
		product.QuantityOnHand += input.Quantity
		if err := tx.Catalog().SetQuantity(ctx, product.ID, product.QuantityOnHand); err != nil {
			return err
		}
		supplierID := input.SupplierID
		txn, err := tx.InsertTransaction(ctx, Transaction{
			Date:        s.now().UTC(),
			Type:        TypeStockIn,
			ProductID:   product.ID,
			Quantity:    input.Quantity,
			StaffID:     caller.StaffID,
			SupplierID:  &supplierID,
			Description: fmt.Sprintf("Stock-In from Supplier ID %d. Note: %s", input.SupplierID, note),
		})
		if err != nil {
			return err
		}
		moved = Movement{Transaction: txn, Product: product}
		return nil
	})
	if err != nil {
		return Movement{}, fmt.Errorf("stock in: %w", err)
	}
	s.record(ctx, caller, "stock:in", moved.Transaction.ID, map[string]any{
		"product_id":  input.ProductID,
		"supplier_id": input.SupplierID,
		"quantity":    input.Quantity,
	})
	return moved, nil
}

// Adjust applies a manual correction of diff units. Positive corrections are
// recorded as STOCK_IN, negative ones as ADJUSTMENT of |diff|.
func (s *Service) Adjust(ctx context.Context, caller rbac.Caller, productID, diff int64, note string) (Movement, error) {
	if err := rbac.Authorize(caller, rbac.OpStockAdjust); err != nil {
		return Movement{}, err
	}
	if productID <= 0 {
		return Movement{}, fmt.Errorf("%w: product required", shared.ErrValidation)
	}
	if diff == 0 {
		return Movement{}, fmt.Errorf("%w: adjustment must be non-zero", shared.ErrValidation)
	}
	txType, qty := TypeStockIn, diff
	if diff < 0 {
		txType, qty = TypeAdjustment, -diff
	}
	description := fmt.Sprintf("Manual adjustment %+d", diff)
	if note = strings.TrimSpace(note); note != "" {
		description += ". Note: " + note
	}
	var moved Movement
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		product, err := tx.Catalog().GetProductForUpdate(ctx, productID)
		if err != nil {
			return err
		}
		next := product.QuantityOnHand + diff
		if next < 0 {
			return fmt.Errorf("%w: %w: product %d has %d on hand, adjustment %d", shared.ErrInvariant, catalog.ErrNegativeStock, product.ID, product.QuantityOnHand, diff)
		}
		product.QuantityOnHand = next
		if err := tx.Catalog().SetQuantity(ctx, product.ID, next); err != nil {
			return err
		}
		txn, err := tx.InsertTransaction(ctx, Transaction{
			Date:        s.now().UTC(),
			Type:        txType,
			ProductID:   product.ID,
			Quantity:    qty,
			StaffID:     caller.StaffID,
			Description: description,
		})
		if err != nil {
			return err
		}
		moved = Movement{Transaction: txn, Product: product}
		return nil
	})
	if err != nil {
		return Movement{}, fmt.Errorf("adjust stock: %w", err)
	}
	s.record(ctx, caller, "stock:adjust", moved.Transaction.ID, map[string]any{"product_id": productID, "diff": diff})
	return moved, nil
}

// ListTransactions returns the ledger newest first. Administrators only.
func (s *Service) ListTransactions(ctx context.Context, caller rbac.Caller, filter Filter) ([]Transaction, error) {
	if err := rbac.Authorize(caller, rbac.OpStockLedger); err != nil {
		return nil, err
	}
	if filter.From != nil && filter.To != nil && !filter.To.After(*filter.From) {
		return nil, fmt.Errorf("%w: to must be after from", shared.ErrValidation)
	}
	return s.repo.ListTransactions(ctx, filter.normalise())
}

// ListApprovedRequests returns the fulfillment queue.
func (s *Service) ListApprovedRequests(ctx context.Context, caller rbac.Caller) ([]requests.Request, error) {
	if err := rbac.Authorize(caller, rbac.OpStockFulfil); err != nil {
		return nil, err
	}
	return s.queue.ListFulfillable(ctx)
}

func (s *Service) observe(err error, units int64) {
	if s.metrics == nil {
		return
	}
	outcome := observability.OutcomeFulfilled
	switch {
	case err == nil:
	case errors.Is(err, shared.ErrInsufficientStock):
		outcome = observability.OutcomeInsufficientStock
	case errors.Is(err, shared.ErrConflict):
		outcome = observability.OutcomeConflict
	case errors.Is(err, shared.ErrValidation), errors.Is(err, shared.ErrNotFound):
		outcome = observability.OutcomeRejected
	default:
		outcome = observability.OutcomeError
	}
	s.metrics.ObserveFulfillment(outcome, units)
}

func (s *Service) publish(ctx context.Context, event FulfillmentPostedEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishFulfillment(ctx, event); err != nil {
		s.logger.Warn("publish fulfillment event",
			slog.Int64("transaction_id", event.TransactionID),
			slog.Any("error", err))
	}
}

func (s *Service) record(ctx context.Context, caller rbac.Caller, action string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  caller.StaffID,
		Action:   action,
		Entity:   "stock_transaction",
		EntityID: strconv.FormatInt(id, 10),
		Meta:     meta,
	})
}
