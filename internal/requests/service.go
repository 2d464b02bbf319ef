package requests

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/supplyops/internal/orders"
	"github.com/odyssey-erp/supplyops/internal/rbac"
	"github.com/odyssey-erp/supplyops/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetRequest(ctx context.Context, id int64) (Request, error)
	ListItems(ctx context.Context, requestID int64) ([]Item, error)
	ListRequests(ctx context.Context, status Status) ([]Request, error)
	ListFulfillable(ctx context.Context) ([]Request, error)
	ListReadyToClose(ctx context.Context) ([]Request, error)
}

// ApprovalPort records the submit/decide/close trail of a request.
type ApprovalPort interface {
	Record(ctx context.Context, log shared.ApprovalLog) error
	List(ctx context.Context, module string, ref uuid.UUID) ([]shared.ApprovalLog, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates the request workflow.
type Service struct {
	repo      RepositoryPort
	approvals ApprovalPort
	audit     AuditPort
	now       func() time.Time
}

// NewService builds Service.
func NewService(repo RepositoryPort, approvals ApprovalPort, audit AuditPort) *Service {
	return &Service{repo: repo, approvals: approvals, audit: audit, now: time.Now}
}

// CreateRequest opens a request against a confirmed order. Each line may ask for at
// most the order line's remaining quantity less what other open requests already claim.
func (s *Service) CreateRequest(ctx context.Context, caller rbac.Caller, input CreateInput) (Request, error) {
	if err := rbac.Authorize(caller, rbac.OpRequestCreate); err != nil {
		return Request{}, err
	}
	req, err := s.prepare(input)
	if err != nil {
		return Request{}, err
	}
	req.StaffID = caller.StaffID
	var created Request
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		order, err := tx.Orders().GetOrderForUpdate(ctx, req.OrderID)
		if err != nil {
			return err
		}
		if order.Status != orders.StatusConfirmed {
			return fmt.Errorf("%w: order %d is %s, requests need a CONFIRMED order", shared.ErrConflict, order.ID, order.Status)
		}
		lines, err := tx.Orders().ItemsForUpdate(ctx, order.ID)
		if err != nil {
			return err
		}
		byProduct := make(map[int64]orders.Item, len(lines))
		for _, line := range lines {
			byProduct[line.ProductID] = line
		}
		for _, item := range req.Items {
			line, ok := byProduct[item.ProductID]
			if !ok {
				return fmt.Errorf("%w: product %d is not on order %d", shared.ErrValidation, item.ProductID, order.ID)
			}
			demand, err := tx.OpenDemand(ctx, order.ID, item.ProductID)
			if err != nil {
				return err
			}
			available := line.Quantity - line.FulfilledQty - demand
			if item.Quantity > available {
				return fmt.Errorf("%w: product %d: requested %d exceeds available %d on order %d", shared.ErrValidation, item.ProductID, item.Quantity, max(available, 0), order.ID)
			}
		}
		req.CustomerID = order.CustomerID
		created, err = tx.InsertRequest(ctx, req)
		return err
	})
	if err != nil {
		return Request{}, fmt.Errorf("create request: %w", err)
	}
	s.approve(ctx, caller, created.ID, shared.ApprovalSubmit, created.Description)
	s.record(ctx, caller, "request:create", created.ID, map[string]any{"order_id": created.OrderID, "lines": len(created.Items)})
	return created, nil
}

func (s *Service) prepare(input CreateInput) (Request, error) {
	if input.OrderID <= 0 {
		return Request{}, fmt.Errorf("%w: order required", shared.ErrValidation)
	}
	if len(input.Items) == 0 {
		return Request{}, fmt.Errorf("%w: request requires at least one item", shared.ErrValidation)
	}
	date, err := orders.ParseDate(input.RequestDate, s.now())
	if err != nil {
		return Request{}, err
	}
	req := Request{
		OrderID:     input.OrderID,
		RequestDate: date,
		Status:      StatusAwaitingApproval,
		Description: strings.TrimSpace(input.Description),
	}
	seen := make(map[int64]struct{}, len(input.Items))
	for idx, in := range input.Items {
		if in.ProductID <= 0 {
			return Request{}, fmt.Errorf("%w: item %d: product required", shared.ErrValidation, idx+1)
		}
		if in.Quantity <= 0 {
			return Request{}, fmt.Errorf("%w: item %d: quantity must be greater than zero", shared.ErrValidation, idx+1)
		}
		if _, dup := seen[in.ProductID]; dup {
			return Request{}, fmt.Errorf("%w: product %d appears on more than one line", shared.ErrValidation, in.ProductID)
		}
		seen[in.ProductID] = struct{}{}
		req.Items = append(req.Items, Item{ProductID: in.ProductID, Quantity: in.Quantity, RemainingQty: in.Quantity})
	}
	return req, nil
}

// Approve moves an awaiting request to approved.
func (s *Service) Approve(ctx context.Context, caller rbac.Caller, id int64, note string) (Request, error) {
	return s.Decide(ctx, caller, id, ActionApprove, note)
}

// Reject moves an awaiting request to rejected. Rejection is terminal.
func (s *Service) Reject(ctx context.Context, caller rbac.Caller, id int64, note string) (Request, error) {
	return s.Decide(ctx, caller, id, ActionReject, note)
}

// Decide applies a foreman decision. Only AWAITING_APPROVAL requests can be decided.
func (s *Service) Decide(ctx context.Context, caller rbac.Caller, id int64, action Action, note string) (Request, error) {
	if err := rbac.Authorize(caller, rbac.OpRequestDecide); err != nil {
		return Request{}, err
	}
	target, approval := StatusApproved, shared.ApprovalApprove
	switch action {
	case ActionApprove:
	case ActionReject:
		target, approval = StatusRejected, shared.ApprovalReject
	default:
		return Request{}, fmt.Errorf("%w: unknown decision %q", shared.ErrValidation, action)
	}
	var decided Request
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		req, err := tx.GetRequestForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if req.Status != StatusAwaitingApproval {
			return fmt.Errorf("%w: request %d is %s, only AWAITING_APPROVAL requests can be decided", shared.ErrConflict, id, req.Status)
		}
		decided, err = tx.SetStatus(ctx, id, target, caller.StaffID, s.now().UTC())
		return err
	})
	if err != nil {
		return Request{}, fmt.Errorf("%s request: %w", action, err)
	}
	s.approve(ctx, caller, id, approval, strings.TrimSpace(note))
	s.record(ctx, caller, "request:"+string(action), id, nil)
	return decided, nil
}

// CloseRequest closes an approved request whose lines are all fulfilled.
func (s *Service) CloseRequest(ctx context.Context, caller rbac.Caller, id int64) (Request, error) {
	if err := rbac.Authorize(caller, rbac.OpRequestClose); err != nil {
		return Request{}, err
	}
	var closed Request
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		req, err := tx.GetRequestForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if req.Status != StatusApproved {
			return fmt.Errorf("%w: request %d is %s, only APPROVED requests can be closed", shared.ErrConflict, id, req.Status)
		}
		items, err := tx.ItemsForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !ReadyToClose(req, items) {
			return fmt.Errorf("%w: %w", shared.ErrConflict, ErrNotReadyToClose)
		}
		closed, err = tx.SetStatus(ctx, id, StatusClosed, caller.StaffID, s.now().UTC())
		if err != nil {
			return err
		}
		closed.Items = items
		return nil
	})
	if err != nil {
		return Request{}, fmt.Errorf("close request: %w", err)
	}
	s.approve(ctx, caller, id, shared.ApprovalClose, "")
	s.record(ctx, caller, "request:close", id, nil)
	return closed, nil
}

// ListRequests returns every request. Only administrators may see the full list.
func (s *Service) ListRequests(ctx context.Context, caller rbac.Caller) ([]Request, error) {
	if err := rbac.Authorize(caller, rbac.OpRequestListAll); err != nil {
		return nil, err
	}
	return s.repo.ListRequests(ctx, "")
}

// ListPending returns requests awaiting a decision, oldest first.
func (s *Service) ListPending(ctx context.Context, caller rbac.Caller) ([]Request, error) {
	if err := rbac.Authorize(caller, rbac.OpRequestView); err != nil {
		return nil, err
	}
	return s.repo.ListRequests(ctx, StatusAwaitingApproval)
}

// ListApproved returns approved requests that still have quantity to fulfill.
func (s *Service) ListApproved(ctx context.Context, caller rbac.Caller) ([]Request, error) {
	if err := rbac.Authorize(caller, rbac.OpRequestView); err != nil {
		return nil, err
	}
	return s.repo.ListFulfillable(ctx)
}

// ListReadyToClose returns approved requests with every line fulfilled.
func (s *Service) ListReadyToClose(ctx context.Context, caller rbac.Caller) ([]Request, error) {
	if err := rbac.Authorize(caller, rbac.OpRequestView); err != nil {
		return nil, err
	}
	return s.repo.ListReadyToClose(ctx)
}

// GetRequest returns a request with its lines.
func (s *Service) GetRequest(ctx context.Context, caller rbac.Caller, id int64) (Request, error) {
	if err := rbac.Authorize(caller, rbac.OpRequestView); err != nil {
		return Request{}, err
	}
	return s.repo.GetRequest(ctx, id)
}

// ListItems returns the lines of a request.
func (s *Service) ListItems(ctx context.Context, caller rbac.Caller, id int64) ([]Item, error) {
	req, err := s.GetRequest(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	return req.Items, nil
}

// Approvals returns the approval trail of a request, oldest step first.
func (s *Service) Approvals(ctx context.Context, caller rbac.Caller, id int64) ([]shared.ApprovalLog, error) {
	if _, err := s.GetRequest(ctx, caller, id); err != nil {
		return nil, err
	}
	if s.approvals == nil {
		return []shared.ApprovalLog{}, nil
	}
	trail, err := s.approvals.List(ctx, ApprovalModule, shared.ApprovalRef(ApprovalModule, id))
	if err != nil {
		return nil, err
	}
	if trail == nil {
		trail = []shared.ApprovalLog{}
	}
	return trail, nil
}

func (s *Service) approve(ctx context.Context, caller rbac.Caller, id int64, action shared.ApprovalAction, note string) {
	if s.approvals == nil {
		return
	}
	_ = s.approvals.Record(ctx, shared.ApprovalLog{
		Module:  ApprovalModule,
		RefID:   shared.ApprovalRef(ApprovalModule, id),
		ActorID: caller.StaffID,
		Action:  action,
		Note:    note,
		At:      s.now().UTC(),
	})
}

func (s *Service) record(ctx context.Context, caller rbac.Caller, action string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  caller.StaffID,
		Action:   action,
		Entity:   "request",
		EntityID: strconv.FormatInt(id, 10),
		Meta:     meta,
	})
}
