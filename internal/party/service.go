package party

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/odyssey-erp/supplyops/internal/rbac"
	"github.com/odyssey-erp/supplyops/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	CreateCustomer(ctx context.Context, c Customer) (Customer, error)
	GetCustomer(ctx context.Context, id int64) (Customer, error)
	ListCustomers(ctx context.Context) ([]Customer, error)
	CreateStaff(ctx context.Context, s Staff) (Staff, error)
	GetStaff(ctx context.Context, id int64) (Staff, error)
	FindStaffByEmail(ctx context.Context, email string) (Staff, error)
	ListStaff(ctx context.Context) ([]Staff, error)
	SetStaffRole(ctx context.Context, id int64, role rbac.Role) (Staff, error)
	SetStaffActive(ctx context.Context, id int64, active bool) (Staff, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// ServiceConfig groups optional settings.
type ServiceConfig struct {
	BcryptCost int
}

// Service coordinates customer and staff records.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
	cost  int
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort, cfg ServiceConfig) *Service {
	cost := cfg.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &Service{repo: repo, audit: audit, cost: cost}
}

// CreateCustomer registers a customer.
func (s *Service) CreateCustomer(ctx context.Context, caller rbac.Caller, input CustomerInput) (Customer, error) {
	if err := rbac.Authorize(caller, rbac.OpCustomerCreate); err != nil {
		return Customer{}, err
	}
	name := shared.CleanText(input.Name)
	if name == "" {
		return Customer{}, fmt.Errorf("%w: customer name required", shared.ErrValidation)
	}
	customer, err := s.repo.CreateCustomer(ctx, Customer{
		Name:        name,
		ContactName: shared.CleanText(input.ContactName),
		Phone:       strings.TrimSpace(input.Phone),
		Email:       strings.TrimSpace(input.Email),
		Address:     strings.TrimSpace(input.Address),
	})
	if err != nil {
		return Customer{}, fmt.Errorf("create customer: %w", err)
	}
	s.record(ctx, caller, "customer:create", "customer", customer.ID, map[string]any{"name": customer.Name})
	return customer, nil
}

// ListCustomers returns all customers.
func (s *Service) ListCustomers(ctx context.Context, caller rbac.Caller) ([]Customer, error) {
	if err := rbac.Authorize(caller, rbac.OpCustomerList); err != nil {
		return nil, err
	}
	return s.repo.ListCustomers(ctx)
}

// GetCustomer returns a customer by id.
func (s *Service) GetCustomer(ctx context.Context, caller rbac.Caller, id int64) (Customer, error) {
	if err := rbac.Authorize(caller, rbac.OpCustomerList); err != nil {
		return Customer{}, err
	}
	return s.repo.GetCustomer(ctx, id)
}

// CreateStaff registers an active staff account with a hashed password.
func (s *Service) CreateStaff(ctx context.Context, caller rbac.Caller, input StaffInput) (Staff, error) {
	if err := rbac.Authorize(caller, rbac.OpStaffCreate); err != nil {
		return Staff{}, err
	}
	return s.createStaff(ctx, caller, input)
}

// BootstrapAdmin creates an administrator account when no staff exists yet.
// The boolean reports whether an account was created.
func (s *Service) BootstrapAdmin(ctx context.Context, input StaffInput) (Staff, bool, error) {
	existing, err := s.repo.ListStaff(ctx)
	if err != nil {
		return Staff{}, false, fmt.Errorf("bootstrap admin: %w", err)
	}
	if len(existing) > 0 {
		return Staff{}, false, nil
	}
	input.Role = string(rbac.RoleAdmin)
	staff, err := s.createStaff(ctx, rbac.Caller{}, input)
	if err != nil {
		return Staff{}, false, err
	}
	return staff, true, nil
}

func (s *Service) createStaff(ctx context.Context, caller rbac.Caller, input StaffInput) (Staff, error) {
	role, ok := rbac.ParseRole(input.Role)
	if !ok {
		return Staff{}, fmt.Errorf("%w: unknown role %q", shared.ErrValidation, input.Role)
	}
	email := strings.ToLower(strings.TrimSpace(input.Email))
	name := shared.CleanText(input.Name)
	if name == "" || email == "" {
		return Staff{}, fmt.Errorf("%w: staff name and email required", shared.ErrValidation)
	}
	if len(input.Password) < 8 {
		return Staff{}, fmt.Errorf("%w: password must be at least 8 characters", shared.ErrValidation)
	}
	if _, err := s.repo.FindStaffByEmail(ctx, email); err == nil {
		return Staff{}, fmt.Errorf("%w: %w", shared.ErrConflict, ErrDuplicateEmail)
	} else if !errors.Is(err, shared.ErrNotFound) {
		return Staff{}, fmt.Errorf("create staff: %w", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), s.cost)
	if err != nil {
		return Staff{}, fmt.Errorf("create staff: hash password: %w", err)
	}
	staff, err := s.repo.CreateStaff(ctx, Staff{
		Name:         name,
		Email:        email,
		Phone:        strings.TrimSpace(input.Phone),
		Role:         role,
		Active:       true,
		PasswordHash: string(hash),
	})
	if err != nil {
		return Staff{}, fmt.Errorf("create staff: %w", err)
	}
	s.record(ctx, caller, "staff:create", "staff", staff.ID, map[string]any{"role": string(role)})
	return staff, nil
}

// ListStaff returns every staff account.
func (s *Service) ListStaff(ctx context.Context, caller rbac.Caller) ([]Staff, error) {
	if err := rbac.Authorize(caller, rbac.OpStaffList); err != nil {
		return nil, err
	}
	return s.repo.ListStaff(ctx)
}

// ChangeRole reassigns a staff member's role.
func (s *Service) ChangeRole(ctx context.Context, caller rbac.Caller, staffID int64, rawRole string) (Staff, error) {
	if err := rbac.Authorize(caller, rbac.OpStaffChangeRole); err != nil {
		return Staff{}, err
	}
	role, ok := rbac.ParseRole(rawRole)
	if !ok {
		return Staff{}, fmt.Errorf("%w: unknown role %q", shared.ErrValidation, rawRole)
	}
	if staffID == caller.StaffID && role != rbac.RoleAdmin {
		return Staff{}, fmt.Errorf("%w: administrators cannot demote themselves", shared.ErrConflict)
	}
	staff, err := s.repo.SetStaffRole(ctx, staffID, role)
	if err != nil {
		return Staff{}, fmt.Errorf("change role: %w", err)
	}
	s.record(ctx, caller, "staff:role", "staff", staffID, map[string]any{"role": string(role)})
	return staff, nil
}

// SetActive enables or disables a staff account.
func (s *Service) SetActive(ctx context.Context, caller rbac.Caller, staffID int64, active bool) (Staff, error) {
	if err := rbac.Authorize(caller, rbac.OpStaffActivate); err != nil {
		return Staff{}, err
	}
	if staffID == caller.StaffID && !active {
		return Staff{}, fmt.Errorf("%w: administrators cannot deactivate themselves", shared.ErrConflict)
	}
	staff, err := s.repo.SetStaffActive(ctx, staffID, active)
	if err != nil {
		return Staff{}, fmt.Errorf("set active: %w", err)
	}
	s.record(ctx, caller, "staff:active", "staff", staffID, map[string]any{"active": active})
	return staff, nil
}

// Authenticate checks credentials. Inactive accounts are refused with ErrForbidden.
func (s *Service) Authenticate(ctx context.Context, email, password string) (Staff, error) {
	staff, err := s.repo.FindStaffByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return Staff{}, shared.ErrInvalidCredentials
		}
		return Staff{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(staff.PasswordHash), []byte(password)); err != nil {
		return Staff{}, shared.ErrInvalidCredentials
	}
	if !staff.Active {
		return Staff{}, fmt.Errorf("%w: account is inactive", shared.ErrForbidden)
	}
	return staff, nil
}

// Lookup returns the staff record for an authenticated id.
func (s *Service) Lookup(ctx context.Context, staffID int64) (Staff, error) {
	return s.repo.GetStaff(ctx, staffID)
}

func (s *Service) record(ctx context.Context, caller rbac.Caller, action, entity string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  caller.StaffID,
		Action:   action,
		Entity:   entity,
		EntityID: strconv.FormatInt(id, 10),
		Meta:     meta,
	})
}
