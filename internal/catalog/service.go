package catalog

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/odyssey-erp/supplyops/internal/rbac"
	"github.com/odyssey-erp/supplyops/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	CreateProduct(ctx context.Context, p Product) (Product, error)
	GetProduct(ctx context.Context, id int64) (Product, error)
	ListProducts(ctx context.Context) ([]Product, error)
	CreateSupplier(ctx context.Context, s Supplier) (Supplier, error)
	GetSupplier(ctx context.Context, id int64) (Supplier, error)
	ListSuppliers(ctx context.Context) ([]Supplier, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates product and supplier records.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit}
}

// CreateProduct registers a product with zero stock. Stock only enters through stock-in.
func (s *Service) CreateProduct(ctx context.Context, caller rbac.Caller, input ProductInput) (Product, error) {
	if err := rbac.Authorize(caller, rbac.OpProductCreate); err != nil {
		return Product{}, err
	}
	name := shared.CleanText(input.Name)
	unit := strings.TrimSpace(input.Unit)
	if name == "" || unit == "" {
		return Product{}, fmt.Errorf("%w: product name and unit required", shared.ErrValidation)
	}
	if !input.PricePerUnit.IsPositive() {
		return Product{}, fmt.Errorf("%w: price per unit must be greater than zero", shared.ErrValidation)
	}
	if !input.PricePerUnit.Equal(input.PricePerUnit.Round(2)) {
		return Product{}, fmt.Errorf("%w: price per unit has more than 2 decimal places", shared.ErrValidation)
	}
	if input.SupplierID <= 0 {
		return Product{}, fmt.Errorf("%w: supplier required", shared.ErrValidation)
	}
	if _, err := s.repo.GetSupplier(ctx, input.SupplierID); err != nil {
		return Product{}, fmt.Errorf("create product: %w", err)
	}
	product, err := s.repo.CreateProduct(ctx, Product{
		Name:         name,
		Description:  strings.TrimSpace(input.Description),
		Unit:         unit,
		PricePerUnit: input.PricePerUnit.Round(2),
		SupplierID:   input.SupplierID,
	})
	if err != nil {
		return Product{}, fmt.Errorf("create product: %w", err)
	}
	s.record(ctx, caller, "product:create", "product", product.ID, map[string]any{"supplier_id": product.SupplierID})
	return product, nil
}

// ListProducts returns the catalog.
func (s *Service) ListProducts(ctx context.Context, caller rbac.Caller) ([]Product, error) {
	if err := rbac.Authorize(caller, rbac.OpProductView); err != nil {
		return nil, err
	}
	return s.repo.ListProducts(ctx)
}

// GetProduct returns a product by id.
func (s *Service) GetProduct(ctx context.Context, caller rbac.Caller, id int64) (Product, error) {
	if err := rbac.Authorize(caller, rbac.OpProductView); err != nil {
		return Product{}, err
	}
	return s.repo.GetProduct(ctx, id)
}

// CreateSupplier registers a supplier.
func (s *Service) CreateSupplier(ctx context.Context, caller rbac.Caller, input SupplierInput) (Supplier, error) {
	if err := rbac.Authorize(caller, rbac.OpSupplierCreate); err != nil {
		return Supplier{}, err
	}
	supplier, err := normaliseSupplier(input)
	if err != nil {
		return Supplier{}, err
	}
	created, err := s.repo.CreateSupplier(ctx, supplier)
	if err != nil {
		return Supplier{}, fmt.Errorf("create supplier: %w", err)
	}
	s.record(ctx, caller, "supplier:create", "supplier", created.ID, map[string]any{"name": created.Name})
	return created, nil
}

// ListSuppliers returns all suppliers.
func (s *Service) ListSuppliers(ctx context.Context, caller rbac.Caller) ([]Supplier, error) {
	if err := rbac.Authorize(caller, rbac.OpSupplierList); err != nil {
		return nil, err
	}
	return s.repo.ListSuppliers(ctx)
}

// UpdateSupplier edits supplier details until the first stock transaction references it.
func (s *Service) UpdateSupplier(ctx context.Context, caller rbac.Caller, id int64, input SupplierInput) (Supplier, error) {
	if err := rbac.Authorize(caller, rbac.OpSupplierUpdate); err != nil {
		return Supplier{}, err
	}
	changes, err := normaliseSupplier(input)
	if err != nil {
		return Supplier{}, err
	}
	var updated Supplier
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetSupplierForUpdate(ctx, id)
		if err != nil {
			return err
		}
		referenced, err := tx.SupplierReferenced(ctx, id)
		if err != nil {
			return err
		}
		if referenced {
			return fmt.Errorf("%w: %w", shared.ErrConflict, ErrSupplierReferenced)
		}
		changes.ID = current.ID
		updated, err = tx.UpdateSupplier(ctx, changes)
		return err
	})
	if err != nil {
		return Supplier{}, fmt.Errorf("update supplier: %w", err)
	}
	s.record(ctx, caller, "supplier:update", "supplier", id, nil)
	return updated, nil
}

func normaliseSupplier(input SupplierInput) (Supplier, error) {
	name := shared.CleanText(input.Name)
	if name == "" {
		return Supplier{}, fmt.Errorf("%w: supplier name required", shared.ErrValidation)
	}
	return Supplier{
		Name:        name,
		ContactName: shared.CleanText(input.ContactName),
		Phone:       strings.TrimSpace(input.Phone),
		Email:       strings.TrimSpace(input.Email),
		Address:     strings.TrimSpace(input.Address),
	}, nil
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
