package stock

import (
	"strings"
	"time"

	"github.com/odyssey-erp/supplyops/internal/catalog"
	"github.com/odyssey-erp/supplyops/internal/orders"
	"github.com/odyssey-erp/supplyops/internal/requests"
)

// TxType classifies a stock transaction. STOCK_IN adds to on-hand quantity,
// FULFILLMENT and ADJUSTMENT subtract from it.
type TxType string

const (
	TypeStockIn     TxType = "STOCK_IN"
	TypeFulfillment TxType = "FULFILLMENT"
	TypeAdjustment  TxType = "ADJUSTMENT"
)

// ParseType accepts a transaction type in any case.
func ParseType(raw string) (TxType, bool) {
	switch t := TxType(strings.ToUpper(strings.TrimSpace(raw))); t {
	case TypeStockIn, TypeFulfillment, TypeAdjustment:
		return t, true
	}
	return "", false
}

// Sign is the direction the type moves on-hand quantity.
func (t TxType) Sign() int64 {
	if t == TypeStockIn {
		return 1
	}
	return -1
}

// Transaction is an append-only stock movement. Quantity is always positive.
type Transaction struct {
	ID            int64     `json:"id"`
	Date          time.Time `json:"date"`
	Type          TxType    `json:"type"`
	ProductID     int64     `json:"productId"`
	Quantity      int64     `json:"quantity"`
	StaffID       int64     `json:"staffId"`
	SupplierID    *int64    `json:"supplierId,omitempty"`
	RequestID     *int64    `json:"requestId,omitempty"`
	RequestItemID *int64    `json:"requestItemId,omitempty"`
	OrderID       *int64    `json:"orderId,omitempty"`
	Description   string    `json:"description"`
}

// StockInInput is the payload for receiving goods from a supplier.
type StockInInput struct {
	ProductID  int64  `json:"productId" validate:"gt=0"`
	SupplierID int64  `json:"supplierId" validate:"gt=0"`
	Quantity   int64  `json:"quantity" validate:"gt=0"`
	Note       string `json:"note" validate:"max=500"`
}

// FulfillInput draws Quantity units for one request item.
type FulfillInput struct {
	RequestItemID int64 `json:"requestItemId" validate:"gt=0"`
	Quantity      int64 `json:"quantity" validate:"gt=0"`
}

// Movement is the outcome of stock-in and adjust.
type Movement struct {
	Transaction Transaction     `json:"transaction"`
	Product     catalog.Product `json:"product"`
}

// FulfillResult is the committed state touched by a fulfillment.
type FulfillResult struct {
	Transaction         Transaction     `json:"transaction"`
	Product             catalog.Product `json:"product"`
	RequestItem         requests.Item   `json:"requestItem"`
	OrderItem           orders.Item     `json:"orderItem"`
	RequestReadyToClose bool            `json:"requestReadyToClose"`
	OrderReadyToClose   bool            `json:"orderReadyToClose"`
}

// Filter narrows the transaction ledger.
type Filter struct {
	Type      TxType
	ProductID int64
	From      *time.Time
	To        *time.Time
	Limit     int
}

const (
	defaultLedgerLimit = 200
	maxLedgerLimit     = 1000
)

// normalise clamps the limit into range.
func (f Filter) normalise() Filter {
	switch {
	case f.Limit <= 0:
		f.Limit = defaultLedgerLimit
	case f.Limit > maxLedgerLimit:
		f.Limit = maxLedgerLimit
	}
	return f
}
