package rbac

import (
	"fmt"
	"sort"

	"github.com/odyssey-erp/supplyops/internal/shared"
)

var everyone = Roles()

// permissions is the single role-to-operation table consulted by every entry point.
var permissions = map[Operation][]Role{
	OpStaffCreate:     {RoleAdmin},
	OpStaffList:       {RoleAdmin},
	OpStaffChangeRole: {RoleAdmin},
	OpStaffActivate:   {RoleAdmin},

	OpCustomerCreate: {RoleAdmin, RoleSales, RoleTechnician, RoleForeman},
	OpCustomerList:   everyone,
	OpSupplierCreate: {RoleAdmin, RoleSales, RoleTechnician, RoleForeman},
	OpSupplierUpdate: {RoleAdmin, RoleSales, RoleTechnician, RoleForeman},
	OpSupplierList:   everyone,

	OpProductCreate: {RoleWarehouse, RoleAdmin},
	OpProductView:   everyone,

	OpStockIn:     {RoleWarehouse, RoleAdmin},
	OpStockAdjust: {RoleWarehouse, RoleAdmin},
	OpStockFulfil: {RoleWarehouse, RoleAdmin},
	OpStockLedger: {RoleAdmin},

	OpOrderCreate:  {RoleSales, RoleAdmin},
	OpOrderConfirm: {RoleSales, RoleAdmin},
	OpOrderClose:   {RoleSales, RoleAdmin},
	OpOrderListAll: {RoleAdmin},
	OpOrderView:    everyone,

	OpRequestCreate:  {RoleTechnician, RoleAdmin},
	OpRequestDecide:  {RoleForeman, RoleAdmin},
	OpRequestClose:   {RoleWarehouse, RoleAdmin},
	OpRequestListAll: {RoleAdmin},
	OpRequestView:    everyone,

	OpAuditView: {RoleAdmin},
}

// Permit reports whether role may perform op. Unknown roles and operations are denied.
func Permit(role Role, op Operation) bool {
	for _, allowed := range permissions[op] {
		if allowed == role {
			return true
		}
	}
	return false
}

// Authorize returns shared.ErrForbidden unless caller may perform op.
func Authorize(caller Caller, op Operation) error {
	if caller.StaffID <= 0 {
		return fmt.Errorf("%w: no authenticated caller", shared.ErrUnauthorized)
	}
	if !Permit(caller.Role, op) {
		return fmt.Errorf("%w: role %s may not perform %s", shared.ErrForbidden, caller.Role, op)
	}
	return nil
}

// Operations lists every operation role may perform, sorted by name.
func Operations(role Role) []Operation {
	ops := make([]Operation, 0, len(permissions))
	for op := range permissions {
		if Permit(role, op) {
			ops = append(ops, op)
		}
	}
	sort.Slice(ops, func(i, j int) bool { return ops[i] < ops[j] })
	return ops
}
