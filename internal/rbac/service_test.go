package rbac

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/supplyops/internal/shared"
)

func TestPermitTable(t *testing.T) {
	cases := []struct {
		op      Operation
		allowed []Role
	}{
		{OpStaffCreate, []Role{RoleAdmin}},
		{OpStaffList, []Role{RoleAdmin}},
		{OpCustomerCreate, []Role{RoleAdmin, RoleSales, RoleTechnician, RoleForeman}},
		{OpSupplierCreate, []Role{RoleAdmin, RoleSales, RoleTechnician, RoleForeman}},
		{OpCustomerList, Roles()},
		{OpSupplierList, Roles()},
		{OpProductCreate, []Role{RoleWarehouse, RoleAdmin}},
		{OpStockIn, []Role{RoleWarehouse, RoleAdmin}},
		{OpStockAdjust, []Role{RoleWarehouse, RoleAdmin}},
		{OpStockFulfil, []Role{RoleWarehouse, RoleAdmin}},
		{OpOrderCreate, []Role{RoleSales, RoleAdmin}},
		{OpOrderClose, []Role{RoleSales, RoleAdmin}},
		{OpRequestCreate, []Role{RoleTechnician, RoleAdmin}},
		{OpRequestDecide, []Role{RoleForeman, RoleAdmin}},
		{OpRequestClose, []Role{RoleWarehouse, RoleAdmin}},
		{OpOrderListAll, []Role{RoleAdmin}},
		{OpStockLedger, []Role{RoleAdmin}},
		{OpAuditView, []Role{RoleAdmin}},
	}
	for _, tc := range cases {
		allowed := map[Role]bool{}
		for _, r := range tc.allowed {
			allowed[r] = true
		}
		for _, role := range Roles() {
			assert.Equal(t, allowed[role], Permit(role, tc.op), "%s/%s", role, tc.op)
		}
	}
}

func TestEveryOperationHasAnEntry(t *testing.T) {
	for op := range permissions {
		assert.NotEmpty(t, permissions[op], op)
		assert.True(t, Permit(RoleAdmin, op), "admin should hold %s", op)
	}
}

func TestPermitUnknownRole(t *testing.T) {
	assert.False(t, Permit(Role("GUEST"), OpCustomerList))
	assert.False(t, Permit(RoleAdmin, Operation("missing.op")))
}

func TestAuthorize(t *testing.T) {
	require.NoError(t, Authorize(Caller{StaffID: 1, Role: RoleForeman}, OpRequestDecide))
	require.ErrorIs(t, Authorize(Caller{StaffID: 1, Role: RoleTechnician}, OpRequestDecide), shared.ErrForbidden)
	require.ErrorIs(t, Authorize(Caller{Role: RoleAdmin}, OpRequestDecide), shared.ErrUnauthorized)
}

func TestParseRole(t *testing.T) {
	role, ok := ParseRole(" warehouse ")
	require.True(t, ok)
	assert.Equal(t, RoleWarehouse, role)
	_, ok = ParseRole("intern")
	assert.False(t, ok)
	assert.True(t, RoleSales.Valid())
	assert.False(t, Role("sales").Valid())
}

func TestOperationsSorted(t *testing.T) {
	ops := Operations(RoleTechnician)
	assert.Contains(t, ops, OpRequestCreate)
	assert.NotContains(t, ops, OpRequestDecide)
	for i := 1; i < len(ops); i++ {
		assert.Less(t, string(ops[i-1]), string(ops[i]))
	}
}
