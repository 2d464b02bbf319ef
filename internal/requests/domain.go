package requests

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/odyssey-erp/supplyops/internal/shared"
)

// Status enumerates request workflow states. Rejected and Closed are terminal.
type Status string

const (
	StatusAwaitingApproval Status = "AWAITING_APPROVAL"
	StatusApproved         Status = "APPROVED"
	StatusRejected         Status = "REJECTED"
	StatusClosed           Status = "CLOSED"
)

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusRejected || s == StatusClosed
}

// Open reports whether the request may still draw stock against its order.
func (s Status) Open() bool {
	return s == StatusAwaitingApproval || s == StatusApproved
}

// Action is a foreman decision on an awaiting request.
type Action string

const (
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
)

// ParseAction normalises raw into an Action.
func ParseAction(raw string) (Action, bool) {
	switch Action(strings.ToLower(strings.TrimSpace(raw))) {
	case ActionApprove:
		return ActionApprove, true
	case ActionReject:
		return ActionReject, true
	}
	return "", false
}

// Request is a technician's ask to draw stock against a confirmed order.
type Request struct {
	ID          int64      `json:"id"`
	OrderID     int64      `json:"orderId"`
	CustomerID  int64      `json:"customerId"`
	StaffID     int64      `json:"staffId"`
	RequestDate time.Time  `json:"requestDate"`
	Status      Status     `json:"status"`
	Description string     `json:"description"`
	DecidedBy   *int64     `json:"decidedBy,omitempty"`
	DecidedAt   *time.Time `json:"decidedAt,omitempty"`
	ClosedBy    *int64     `json:"closedBy,omitempty"`
	ClosedAt    *time.Time `json:"closedAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	Items       []Item     `json:"items,omitempty"`
}

// Item is one requested line. FulfilledQty + RemainingQty always equals Quantity.
type Item struct {
	ID           int64 `json:"id"`
	RequestID    int64 `json:"requestId"`
	ProductID    int64 `json:"productId"`
	Quantity     int64 `json:"quantity"`
	FulfilledQty int64 `json:"fulfilledQty"`
	RemainingQty int64 `json:"remainingQty"`
}

// Settle recomputes the derived remaining quantity.
func (i *Item) Settle() {
	i.RemainingQty = i.Quantity - i.FulfilledQty
}

// Fulfill records qty against the line. A quantity larger than the line itself is a
// validation error; one that only exceeds what is left is a conflict. The line is
// unchanged on error.
func (i *Item) Fulfill(qty int64) error {
	if qty <= 0 {
		return fmt.Errorf("%w: fulfill quantity must be greater than zero", shared.ErrValidation)
	}
	if qty > i.Quantity {
		return fmt.Errorf("%w: fulfill quantity %d exceeds requested %d on request item %d", shared.ErrValidation, qty, i.Quantity, i.ID)
	}
	remaining := i.Quantity - i.FulfilledQty
	if qty > remaining {
		return fmt.Errorf("%w: only %d remaining on request item %d", shared.ErrConflict, remaining, i.ID)
	}
	i.FulfilledQty += qty
	i.Settle()
	return nil
}

// ReadyToClose reports whether an approved request has nothing left to fulfill.
func ReadyToClose(req Request, items []Item) bool {
	if req.Status != StatusApproved || len(items) == 0 {
		return false
	}
	for _, item := range items {
		if item.Quantity-item.FulfilledQty != 0 {
			return false
		}
	}
	return true
}

// Fulfillable reports whether an approved request still has remaining quantity.
func Fulfillable(req Request, items []Item) bool {
	if req.Status != StatusApproved {
		return false
	}
	for _, item := range items {
		if item.Quantity-item.FulfilledQty > 0 {
			return true
		}
	}
	return false
}

// CreateInput is the payload for creating a request.
type CreateInput struct {
	OrderID     int64       `json:"orderId" validate:"gt=0"`
	RequestDate string      `json:"requestDate"`
	Description string      `json:"description" validate:"max=1000"`
	Items       []ItemInput `json:"items" validate:"required,min=1,dive"`
}

// ItemInput is one requested line.
type ItemInput struct {
	ProductID int64 `json:"productId" validate:"gt=0"`
	Quantity  int64 `json:"quantity" validate:"gt=0"`
}

// DecisionInput carries an optional note for approve/reject.
type DecisionInput struct {
	Note string `json:"note" validate:"max=1000"`
}

// ErrNotReadyToClose indicates at least one line still has remaining quantity.
var ErrNotReadyToClose = errors.New("requests: request still has unfulfilled lines")

// ApprovalModule is the approval-log module name for requests.
const ApprovalModule = "REQUEST"
