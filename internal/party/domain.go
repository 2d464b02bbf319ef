package party

import (
	"errors"
	"time"

	"github.com/odyssey-erp/supplyops/internal/rbac"
)

// Customer is the party an order is raised for.
type Customer struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	ContactName string    `json:"contactName"`
	Phone       string    `json:"phone"`
	Email       string    `json:"email"`
	Address     string    `json:"address"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Staff is an authenticated operator of the system.
type Staff struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Phone        string    `json:"phone"`
	Role         rbac.Role `json:"role"`
	Active       bool      `json:"active"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// CustomerInput is the payload for creating a customer.
type CustomerInput struct {
	Name        string `json:"name" validate:"required,max=200"`
	ContactName string `json:"contactName" validate:"max=200"`
	Phone       string `json:"phone" validate:"max=50"`
	Email       string `json:"email" validate:"omitempty,email"`
	Address     string `json:"address" validate:"max=500"`
}

// StaffInput is the payload for creating a staff account.
type StaffInput struct {
	Name     string `json:"name" validate:"required,max=200"`
	Email    string `json:"email" validate:"required,email"`
	Phone    string `json:"phone" validate:"max=50"`
	Role     string `json:"role" validate:"required"`
	Password string `json:"password" validate:"required,min=8"`
}

// ErrDuplicateEmail indicates another staff account already uses the email.
var ErrDuplicateEmail = errors.New("party: staff email already registered")
