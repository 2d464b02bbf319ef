package rbac

import (
	"context"
	"strings"
)

// Role is a staff member's position, which determines permitted operations.
type Role string

const (
	RoleAdmin      Role = "ADMIN"
	RoleTechnician Role = "TECHNICIAN"
	RoleForeman    Role = "FOREMAN"
	RoleWarehouse  Role = "WAREHOUSE"
	RoleSales      Role = "SALES"
)

// Roles lists every known role.
func Roles() []Role {
	return []Role{RoleAdmin, RoleTechnician, RoleForeman, RoleWarehouse, RoleSales}
}

// ParseRole normalises raw into a known Role.
func ParseRole(raw string) (Role, bool) {
	role := Role(strings.ToUpper(strings.TrimSpace(raw)))
	for _, r := range Roles() {
		if r == role {
			return role, true
		}
	}
	return "", false
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	for _, known := range Roles() {
		if r == known {
			return true
		}
	}
	return false
}

// Operation names an action guarded by the authorization table.
type Operation string

const (
	OpStaffCreate     Operation = "staff.create"
	OpStaffList       Operation = "staff.list"
	OpStaffChangeRole Operation = "staff.change_role"
	OpStaffActivate   Operation = "staff.set_active"

	OpCustomerCreate Operation = "customer.create"
	OpCustomerList   Operation = "customer.list"
	OpSupplierCreate Operation = "supplier.create"
	OpSupplierUpdate Operation = "supplier.update"
	OpSupplierList   Operation = "supplier.list"

	OpProductCreate Operation = "product.create"
	OpProductView   Operation = "product.view"

	OpStockIn     Operation = "stock.in"
	OpStockAdjust Operation = "stock.adjust"
	OpStockFulfil Operation = "stock.fulfill"
	OpStockLedger Operation = "stock.transactions"

	OpOrderCreate  Operation = "order.create"
	OpOrderConfirm Operation = "order.confirm"
	OpOrderClose   Operation = "order.close"
	OpOrderListAll Operation = "order.list_all"
	OpOrderView    Operation = "order.view"

	OpRequestCreate  Operation = "request.create"
	OpRequestDecide  Operation = "request.decide"
	OpRequestClose   Operation = "request.close"
	OpRequestListAll Operation = "request.list_all"
	OpRequestView    Operation = "request.view"

	OpAuditView Operation = "audit.view"
)

// Caller identifies the authenticated staff member invoking an operation.
type Caller struct {
	StaffID int64 `json:"staffId"`
	Role    Role  `json:"role"`
}

type callerContextKey struct{}

// ContextWithCaller stores the caller in context.
func ContextWithCaller(ctx context.Context, caller Caller) context.Context {
	return context.WithValue(ctx, callerContextKey{}, caller)
}

// CallerFromContext extracts the caller from context.
func CallerFromContext(ctx context.Context) (Caller, bool) {
	caller, ok := ctx.Value(callerContextKey{}).(Caller)
	return caller, ok
}
