package party

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/odyssey-erp/supplyops/internal/rbac"
	"github.com/odyssey-erp/supplyops/internal/shared"
)

type memoryRepo struct {
	mu        sync.Mutex
	customers map[int64]Customer
	staff     map[int64]Staff
	nextID    int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{customers: map[int64]Customer{}, staff: map[int64]Staff{}}
}

func (m *memoryRepo) CreateCustomer(ctx context.Context, c Customer) (Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	c.ID = m.nextID
	c.CreatedAt = time.Now()
	m.customers[c.ID] = c
	return c, nil
}

func (m *memoryRepo) GetCustomer(ctx context.Context, id int64) (Customer, error) {
	c, ok := m.customers[id]
	if !ok {
		return Customer{}, fmt.Errorf("%w: customer %d", shared.ErrNotFound, id)
	}
	return c, nil
}

func (m *memoryRepo) ListCustomers(ctx context.Context) ([]Customer, error) {
	out := []Customer{}
	for _, c := range m.customers {
		out = append(out, c)
	}
	return out, nil
}

func (m *memoryRepo) CreateStaff(ctx context.Context, s Staff) (Staff, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	s.ID = m.nextID
	m.staff[s.ID] = s
	return s, nil
}

func (m *memoryRepo) GetStaff(ctx context.Context, id int64) (Staff, error) {
	s, ok := m.staff[id]
	if !ok {
		return Staff{}, fmt.Errorf("%w: staff %d", shared.ErrNotFound, id)
	}
	return s, nil
}

func (m *memoryRepo) FindStaffByEmail(ctx context.Context, email string) (Staff, error) {
	for _, s := range m.staff {
		if strings.EqualFold(s.Email, email) {
			return s, nil
		}
	}
	return Staff{}, shared.ErrNotFound
}

func (m *memoryRepo) ListStaff(ctx context.Context) ([]Staff, error) {
	out := []Staff{}
	for _, s := range m.staff {
		out = append(out, s)
	}
	return out, nil
}

func (m *memoryRepo) SetStaffRole(ctx context.Context, id int64, role rbac.Role) (Staff, error) {
	s, err := m.GetStaff(ctx, id)
	if err != nil {
		return Staff{}, err
	}
	s.Role = role
	m.staff[id] = s
	return s, nil
}

func (m *memoryRepo) SetStaffActive(ctx context.Context, id int64, active bool) (Staff, error) {
	s, err := m.GetStaff(ctx, id)
	if err != nil {
		return Staff{}, err
	}
	s.Active = active
	m.staff[id] = s
	return s, nil
}

type auditRecorder struct {
	logs []shared.AuditLog
}

func (a *auditRecorder) Record(ctx context.Context, log shared.AuditLog) error {
	a.logs = append(a.logs, log)
	return nil
}

var admin = rbac.Caller{StaffID: 1000, Role: rbac.RoleAdmin}

func newTestService() (*Service, *memoryRepo, *auditRecorder) {
	repo := newMemoryRepo()
	audit := &auditRecorder{}
	return NewService(repo, audit, ServiceConfig{BcryptCost: bcrypt.MinCost}), repo, audit
}

func TestCreateStaffHashesPasswordAndActivates(t *testing.T) {
	svc, _, audit := newTestService()
	staff, err := svc.CreateStaff(context.Background(), admin, StaffInput{Name: "Rina", Email: "Rina@Example.com", Role: "foreman", Password: "s3cretpass"})
	require.NoError(t, err)
	require.True(t, staff.Active)
	require.Equal(t, rbac.RoleForeman, staff.Role)
	require.Equal(t, "rina@example.com", staff.Email)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(staff.PasswordHash), []byte("s3cretpass")))
	require.Len(t, audit.logs, 1)
	require.Equal(t, "staff:create", audit.logs[0].Action)
}

func TestCreateStaffRejectsDuplicateEmail(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	_, err := svc.CreateStaff(ctx, admin, StaffInput{Name: "A", Email: "a@x.io", Role: "SALES", Password: "password1"})
	require.NoError(t, err)
	_, err = svc.CreateStaff(ctx, admin, StaffInput{Name: "B", Email: "A@X.io", Role: "SALES", Password: "password2"})
	require.ErrorIs(t, err, shared.ErrConflict)
	require.ErrorIs(t, err, ErrDuplicateEmail)
}

func TestCreateStaffValidation(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	_, err := svc.CreateStaff(ctx, admin, StaffInput{Name: "A", Email: "a@x.io", Role: "INTERN", Password: "password1"})
	require.ErrorIs(t, err, shared.ErrValidation)
	_, err = svc.CreateStaff(ctx, admin, StaffInput{Name: "A", Email: "a@x.io", Role: "SALES", Password: "short"})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestCreateStaffRequiresAdmin(t *testing.T) {
	svc, repo, _ := newTestService()
	_, err := svc.CreateStaff(context.Background(), rbac.Caller{StaffID: 2, Role: rbac.RoleForeman}, StaffInput{Name: "A", Email: "a@x.io", Role: "SALES", Password: "password1"})
	require.ErrorIs(t, err, shared.ErrForbidden)
	require.Empty(t, repo.staff)
}

func TestCustomerCreateRoles(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	for _, role := range []rbac.Role{rbac.RoleAdmin, rbac.RoleSales, rbac.RoleTechnician, rbac.RoleForeman} {
		_, err := svc.CreateCustomer(ctx, rbac.Caller{StaffID: 7, Role: role}, CustomerInput{Name: "PT Listrik " + string(role)})
		require.NoError(t, err, role)
	}
	_, err := svc.CreateCustomer(ctx, rbac.Caller{StaffID: 7, Role: rbac.RoleWarehouse}, CustomerInput{Name: "X"})
	require.ErrorIs(t, err, shared.ErrForbidden)

	list, err := svc.ListCustomers(ctx, rbac.Caller{StaffID: 7, Role: rbac.RoleWarehouse})
	require.NoError(t, err)
	require.Len(t, list, 4)
}

func TestCustomerNameRequired(t *testing.T) {
	svc, _, _ := newTestService()
	_, err := svc.CreateCustomer(context.Background(), admin, CustomerInput{Name: "   "})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestChangeRoleAndDeactivate(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	staff, err := svc.CreateStaff(ctx, admin, StaffInput{Name: "T", Email: "t@x.io", Role: "TECHNICIAN", Password: "password1"})
	require.NoError(t, err)

	_, err = svc.ChangeRole(ctx, rbac.Caller{StaffID: 5, Role: rbac.RoleForeman}, staff.ID, "FOREMAN")
	require.ErrorIs(t, err, shared.ErrForbidden)

	updated, err := svc.ChangeRole(ctx, admin, staff.ID, "FOREMAN")
	require.NoError(t, err)
	require.Equal(t, rbac.RoleForeman, updated.Role)

	updated, err = svc.SetActive(ctx, admin, staff.ID, false)
	require.NoError(t, err)
	require.False(t, updated.Active)

	_, err = svc.SetActive(ctx, admin, admin.StaffID, false)
	require.ErrorIs(t, err, shared.ErrConflict)
}

func TestAuthenticate(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	staff, err := svc.CreateStaff(ctx, admin, StaffInput{Name: "W", Email: "w@x.io", Role: "WAREHOUSE", Password: "password1"})
	require.NoError(t, err)

	got, err := svc.Authenticate(ctx, "W@x.io", "password1")
	require.NoError(t, err)
	require.Equal(t, staff.ID, got.ID)

	_, err = svc.Authenticate(ctx, "w@x.io", "wrong-pass")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)
	_, err = svc.Authenticate(ctx, "nobody@x.io", "password1")
	require.ErrorIs(t, err, shared.ErrUnauthorized)

	_, err = svc.SetActive(ctx, admin, staff.ID, false)
	require.NoError(t, err)
	_, err = svc.Authenticate(ctx, "w@x.io", "password1")
	require.ErrorIs(t, err, shared.ErrForbidden)
}

func TestBootstrapAdminOnlyOnEmptyStaff(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	staff, created, err := svc.BootstrapAdmin(ctx, StaffInput{Name: "Root", Email: "Root@x.io", Role: "SALES", Password: "password1"})
	require.NoError(t, err)
	require.True(t, created)
	require.Equal(t, rbac.RoleAdmin, staff.Role)
	require.Equal(t, "root@x.io", staff.Email)

	_, created, err = svc.BootstrapAdmin(ctx, StaffInput{Name: "Again", Email: "again@x.io", Password: "password1"})
	require.NoError(t, err)
	require.False(t, created)
}
