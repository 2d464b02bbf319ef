package memstore

import (
	"cmp"
	"context"
	"fmt"

	"github.com/odyssey-erp/supplyops/internal/catalog"
	"github.com/odyssey-erp/supplyops/internal/shared"
)

// CatalogRepo implements catalog.RepositoryPort.
type CatalogRepo struct{ s *Store }

// Catalog returns the product and supplier repository.
func (s *Store) Catalog() *CatalogRepo { return &CatalogRepo{s: s} }

func (r *CatalogRepo) WithTx(ctx context.Context, fn func(context.Context, catalog.TxRepository) error) error {
	return r.s.tx(ctx, func(st *state) error {
		return fn(ctx, &catalogTx{st: st, s: r.s})
	})
}

func (r *CatalogRepo) CreateProduct(ctx context.Context, p catalog.Product) (catalog.Product, error) {
	err := r.s.tx(ctx, func(st *state) error {
		if _, ok := st.suppliers[p.SupplierID]; !ok {
			return fmt.Errorf("%w: supplier %d", shared.ErrNotFound, p.SupplierID)
		}
		p.ID = st.next("products")
		p.QuantityOnHand = 0
		p.CreatedAt = r.s.stamp()
		p.UpdatedAt = p.CreatedAt
		st.products[p.ID] = p
		return nil
	})
	if err != nil {
		return catalog.Product{}, err
	}
	return p, nil
}

func (r *CatalogRepo) GetProduct(ctx context.Context, id int64) (catalog.Product, error) {
	var (
		p  catalog.Product
		ok bool
	)
	r.s.read(func(st *state) { p, ok = st.products[id] })
	if !ok {
		return catalog.Product{}, fmt.Errorf("%w: product %d", shared.ErrNotFound, id)
	}
	return p, nil
}

func (r *CatalogRepo) ListProducts(ctx context.Context) ([]catalog.Product, error) {
	var out []catalog.Product
	r.s.read(func(st *state) {
		out = sortedValues(st.products, func(a, b catalog.Product) int {
			return cmp.Or(cmp.Compare(a.Name, b.Name), cmp.Compare(a.ID, b.ID))
		})
	})
	return out, nil
}

func (r *CatalogRepo) CreateSupplier(ctx context.Context, s catalog.Supplier) (catalog.Supplier, error) {
	err := r.s.tx(ctx, func(st *state) error {
		s.ID = st.next("suppliers")
		s.CreatedAt = r.s.stamp()
		s.UpdatedAt = s.CreatedAt
		st.suppliers[s.ID] = s
		return nil
	})
	return s, err
}

func (r *CatalogRepo) GetSupplier(ctx context.Context, id int64) (catalog.Supplier, error) {
	var (
		s  catalog.Supplier
		ok bool
	)
	r.s.read(func(st *state) { s, ok = st.suppliers[id] })
	if !ok {
		return catalog.Supplier{}, fmt.Errorf("%w: supplier %d", shared.ErrNotFound, id)
	}
	return s, nil
}

func (r *CatalogRepo) ListSuppliers(ctx context.Context) ([]catalog.Supplier, error) {
	var out []catalog.Supplier
	r.s.read(func(st *state) {
		out = sortedValues(st.suppliers, func(a, b catalog.Supplier) int {
			return cmp.Or(cmp.Compare(a.Name, b.Name), cmp.Compare(a.ID, b.ID))
		})
	})
	return out, nil
}

type catalogTx struct {
	st *state
	s  *Store
}

func (t *catalogTx) GetProductForUpdate(ctx context.Context, id int64) (catalog.Product, error) {
	p, ok := t.st.products[id]
	if !ok {
		return catalog.Product{}, fmt.Errorf("%w: product %d", shared.ErrNotFound, id)
	}
	return p, nil
}

func (t *catalogTx) SetQuantity(ctx context.Context, id int64, qty int64) error {
	if qty < 0 {
		return fmt.Errorf("%w: %w", shared.ErrInvariant, catalog.ErrNegativeStock)
	}
	p, ok := t.st.products[id]
	if !ok {
		return fmt.Errorf("%w: product %d", shared.ErrNotFound, id)
	}
	p.QuantityOnHand = qty
	p.UpdatedAt = t.s.stamp()
	t.st.products[id] = p
	return nil
}

func (t *catalogTx) GetSupplierForUpdate(ctx context.Context, id int64) (catalog.Supplier, error) {
	s, ok := t.st.suppliers[id]
	if !ok {
		return catalog.Supplier{}, fmt.Errorf("%w: supplier %d", shared.ErrNotFound, id)
	}
	return s, nil
}

func (t *catalogTx) SupplierReferenced(ctx context.Context, id int64) (bool, error) {
	for _, txn := range t.st.transactions {
		if txn.SupplierID != nil && *txn.SupplierID == id {
			return true, nil
		}
	}
	return false, nil
}

func (t *catalogTx) UpdateSupplier(ctx context.Context, s catalog.Supplier) (catalog.Supplier, error) {
	existing, ok := t.st.suppliers[s.ID]
	if !ok {
		return catalog.Supplier{}, fmt.Errorf("%w: supplier %d", shared.ErrNotFound, s.ID)
	}
	s.CreatedAt = existing.CreatedAt
	s.UpdatedAt = t.s.stamp()
	t.st.suppliers[s.ID] = s
	return s, nil
}
