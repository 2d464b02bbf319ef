package orders

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Status enumerates order lifecycle states.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusClosed    Status = "CLOSED"
)

// ParseStatus accepts the creation statuses in any case ("Pending", "CONFIRMED").
func ParseStatus(raw string) (Status, bool) {
	switch Status(strings.ToUpper(strings.TrimSpace(raw))) {
	case "", StatusPending:
		return StatusPending, true
	case StatusConfirmed:
		return StatusConfirmed, true
	}
	return "", false
}

// Order is a customer's demand for goods.
type Order struct {
	ID          int64           `json:"id"`
	CustomerID  int64           `json:"customerId"`
	StaffID     int64           `json:"staffId"`
	OrderDate   time.Time       `json:"orderDate"`
	Status      Status          `json:"status"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	ClosedBy    *int64          `json:"closedBy,omitempty"`
	ClosedAt    *time.Time      `json:"closedAt,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
	Items       []Item          `json:"items,omitempty"`
}

// Item is one order line. RemainingQty is always Quantity - FulfilledQty.
type Item struct {
	ID           int64           `json:"id"`
	OrderID      int64           `json:"orderId"`
	ProductID    int64           `json:"productId"`
	Quantity     int64           `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unitPrice"`
	LineTotal    decimal.Decimal `json:"lineTotal"`
	FulfilledQty int64           `json:"fulfilledQty"`
	RemainingQty int64           `json:"remainingQty"`
}

// Settle recomputes the derived remaining quantity.
func (i *Item) Settle() {
	i.RemainingQty = i.Quantity - i.FulfilledQty
}

// ReadyToClose reports whether a confirmed order has no remaining quantity on any line.
func ReadyToClose(order Order, items []Item) bool {
	if order.Status != StatusConfirmed || len(items) == 0 {
		return false
	}
	for _, item := range items {
		if item.Quantity-item.FulfilledQty != 0 {
			return false
		}
	}
	return true
}

// CreateInput is the payload for creating an order.
type CreateInput struct {
	CustomerID int64       `json:"customerId" validate:"gt=0"`
	OrderDate  string      `json:"orderDate"`
	Status     string      `json:"status"`
	Items      []ItemInput `json:"items" validate:"required,min=1,dive"`
}

// ItemInput is one requested order line. Client-side totals are ignored.
type ItemInput struct {
	ProductID int64           `json:"productId" validate:"gt=0"`
	Quantity  int64           `json:"quantity" validate:"gt=0"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
}

// DateLayout is the wire layout for order and request dates.
const DateLayout = "2006-01-02"

var (
	// ErrNotReadyToClose indicates at least one line still has remaining quantity.
	ErrNotReadyToClose = errors.New("orders: order still has unfulfilled lines")
	// ErrOpenRequests indicates requests against the order are still being processed.
	ErrOpenRequests = errors.New("orders: order has open requests")
)
