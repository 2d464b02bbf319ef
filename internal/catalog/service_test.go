package catalog

import (
	"context"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/supplyops/internal/rbac"
	"github.com/odyssey-erp/supplyops/internal/shared"
)

type memoryRepo struct {
	products   map[int64]Product
	suppliers  map[int64]Supplier
	referenced map[int64]bool
	nextID     int64
}

type memoryTx struct {
	repo *memoryRepo
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{products: map[int64]Product{}, suppliers: map[int64]Supplier{}, referenced: map[int64]bool{}}
}

func (m *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryTx{repo: m})
}

func (m *memoryRepo) CreateProduct(ctx context.Context, p Product) (Product, error) {
	m.nextID++
	p.ID = m.nextID
	m.products[p.ID] = p
	return p, nil
}

func (m *memoryRepo) GetProduct(ctx context.Context, id int64) (Product, error) {
	p, ok := m.products[id]
	if !ok {
		return Product{}, fmt.Errorf("%w: product %d", shared.ErrNotFound, id)
	}
	return p, nil
}

func (m *memoryRepo) ListProducts(ctx context.Context) ([]Product, error) {
	out := []Product{}
	for _, p := range m.products {
		out = append(out, p)
	}
	return out, nil
}

func (m *memoryRepo) CreateSupplier(ctx context.Context, s Supplier) (Supplier, error) {
	m.nextID++
	s.ID = m.nextID
	m.suppliers[s.ID] = s
	return s, nil
}

func (m *memoryRepo) GetSupplier(ctx context.Context, id int64) (Supplier, error) {
	s, ok := m.suppliers[id]
	if !ok {
		return Supplier{}, fmt.Errorf("%w: supplier %d", shared.ErrNotFound, id)
	}
	return s, nil
}

func (m *memoryRepo) ListSuppliers(ctx context.Context) ([]Supplier, error) {
	out := []Supplier{}
	for _, s := range m.suppliers {
		out = append(out, s)
	}
	return out, nil
}

func (t *memoryTx) GetProductForUpdate(ctx context.Context, id int64) (Product, error) {
	return t.repo.GetProduct(ctx, id)
}

func (t *memoryTx) SetQuantity(ctx context.Context, id int64, qty int64) error {
	p := t.repo.products[id]
	p.QuantityOnHand = qty
	t.repo.products[id] = p
	return nil
}

func (t *memoryTx) GetSupplierForUpdate(ctx context.Context, id int64) (Supplier, error) {
	return t.repo.GetSupplier(ctx, id)
}

func (t *memoryTx) SupplierReferenced(ctx context.Context, id int64) (bool, error) {
	return t.repo.referenced[id], nil
}

func (t *memoryTx) UpdateSupplier(ctx context.Context, s Supplier) (Supplier, error) {
	t.repo.suppliers[s.ID] = s
	return s, nil
}

var (
	warehouse = rbac.Caller{StaffID: 3, Role: rbac.RoleWarehouse}
	sales     = rbac.Caller{StaffID: 4, Role: rbac.RoleSales}
)

func TestCreateProductStartsWithZeroStock(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()
	supplier, err := svc.CreateSupplier(ctx, sales, SupplierInput{Name: "PT Kabel"})
	require.NoError(t, err)

	product, err := svc.CreateProduct(ctx, warehouse, ProductInput{Name: "NYM 3x2.5", Unit: "roll", PricePerUnit: decimal.RequireFromString("125.500"), SupplierID: supplier.ID})
	require.NoError(t, err)
	require.Zero(t, product.QuantityOnHand)
	require.True(t, product.PricePerUnit.Equal(decimal.RequireFromString("125.5")))
}

func TestCreateProductValidation(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()
	supplier, err := svc.CreateSupplier(ctx, sales, SupplierInput{Name: "PT Kabel"})
	require.NoError(t, err)

	_, err = svc.CreateProduct(ctx, warehouse, ProductInput{Name: "MCB", Unit: "pcs", PricePerUnit: decimal.Zero, SupplierID: supplier.ID})
	require.ErrorIs(t, err, shared.ErrValidation)
	_, err = svc.CreateProduct(ctx, warehouse, ProductInput{Name: "MCB", Unit: "pcs", PricePerUnit: decimal.RequireFromString("12.345"), SupplierID: supplier.ID})
	require.ErrorIs(t, err, shared.ErrValidation)
	_, err = svc.CreateProduct(ctx, warehouse, ProductInput{Name: "", Unit: "pcs", PricePerUnit: decimal.NewFromInt(1), SupplierID: supplier.ID})
	require.ErrorIs(t, err, shared.ErrValidation)
	_, err = svc.CreateProduct(ctx, warehouse, ProductInput{Name: "MCB", Unit: "pcs", PricePerUnit: decimal.NewFromInt(1), SupplierID: 999})
	require.ErrorIs(t, err, shared.ErrNotFound)
	_, err = svc.CreateProduct(ctx, sales, ProductInput{Name: "MCB", Unit: "pcs", PricePerUnit: decimal.NewFromInt(1), SupplierID: supplier.ID})
	require.ErrorIs(t, err, shared.ErrForbidden)
	require.Empty(t, repo.products)
}

func TestUpdateSupplierBlockedOnceReferenced(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()
	supplier, err := svc.CreateSupplier(ctx, sales, SupplierInput{Name: "PT Kabel"})
	require.NoError(t, err)

	updated, err := svc.UpdateSupplier(ctx, sales, supplier.ID, SupplierInput{Name: "PT Kabel Nusantara", Phone: "021"})
	require.NoError(t, err)
	require.Equal(t, "PT Kabel Nusantara", updated.Name)

	repo.referenced[supplier.ID] = true
	_, err = svc.UpdateSupplier(ctx, sales, supplier.ID, SupplierInput{Name: "Renamed"})
	require.ErrorIs(t, err, shared.ErrConflict)
	require.ErrorIs(t, err, ErrSupplierReferenced)
	require.Equal(t, "PT Kabel Nusantara", repo.suppliers[supplier.ID].Name)
}

func TestSupplierRoles(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil)
	_, err := svc.CreateSupplier(context.Background(), warehouse, SupplierInput{Name: "X"})
	require.ErrorIs(t, err, shared.ErrForbidden)
	list, err := svc.ListSuppliers(context.Background(), warehouse)
	require.NoError(t, err)
	require.Empty(t, list)
}
