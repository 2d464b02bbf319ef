package catalog

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Product is a stocked item. QuantityOnHand never drops below zero.
type Product struct {
	ID             int64           `json:"id"`
	Name           string          `json:"name"`
	Description    string          `json:"description"`
	Unit           string          `json:"unit"`
	PricePerUnit   decimal.Decimal `json:"pricePerUnit"`
	QuantityOnHand int64           `json:"quantityOnHand"`
	SupplierID     int64           `json:"supplierId"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// Supplier provides products. It becomes immutable once a stock transaction references it.
type Supplier struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	ContactName string    `json:"contactName"`
	Phone       string    `json:"phone"`
	Email       string    `json:"email"`
	Address     string    `json:"address"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// ProductInput is the payload for creating a product.
type ProductInput struct {
	Name         string          `json:"name" validate:"required,max=200"`
	Description  string          `json:"description" validate:"max=1000"`
	Unit         string          `json:"unit" validate:"required,max=30"`
	PricePerUnit decimal.Decimal `json:"pricePerUnit"`
	SupplierID   int64           `json:"supplierId" validate:"gt=0"`
}

// SupplierInput is the payload for creating or updating a supplier.
type SupplierInput struct {
	Name        string `json:"name" validate:"required,max=200"`
	ContactName string `json:"contactName" validate:"max=200"`
	Phone       string `json:"phone" validate:"max=50"`
	Email       string `json:"email" validate:"omitempty,email"`
	Address     string `json:"address" validate:"max=500"`
}

var (
	// ErrSupplierReferenced indicates the supplier already appears in the stock ledger.
	ErrSupplierReferenced = errors.New("catalog: supplier referenced by stock transactions")
	// ErrNegativeStock indicates a quantity change would drive on-hand stock below zero.
	ErrNegativeStock = errors.New("catalog: quantity on hand cannot be negative")
)
