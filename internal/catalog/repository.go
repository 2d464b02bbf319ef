package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/supplyops/internal/platform/db"
	"github.com/odyssey-erp/supplyops/internal/shared"
)

// Repository persists catalog data in PostgreSQL.
type Repository struct {
	pool   *pgxpool.Pool
	runner *db.TxRunner
}

// NewRepository constructs Repository.
func NewRepository(runner *db.TxRunner) *Repository {
	return &Repository{pool: runner.Pool(), runner: runner}
}

// TxRepository exposes transactional operations used by catalog and stock services.
type TxRepository interface {
	GetProductForUpdate(ctx context.Context, id int64) (Product, error)
	SetQuantity(ctx context.Context, id int64, qty int64) error
	GetSupplierForUpdate(ctx context.Context, id int64) (Supplier, error)
	SupplierReferenced(ctx context.Context, id int64) (bool, error)
	UpdateSupplier(ctx context.Context, s Supplier) (Supplier, error)
}

type txRepository struct {
	tx pgx.Tx
}

// NewTxRepository binds catalog statements to an open transaction.
func NewTxRepository(tx pgx.Tx) TxRepository {
	return &txRepository{tx: tx}
}

const productColumns = `id, name, description, unit, price_per_unit, quantity_on_hand, supplier_id, created_at, updated_at`

const supplierColumns = `id, name, contact_name, phone, email, address, created_at, updated_at`

// WithTx executes the callback inside a managed transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("catalog repository not initialised")
	}
	return r.runner.WithTx(ctx, func(tx pgx.Tx) error {
		return fn(ctx, NewTxRepository(tx))
	})
}

func (r *Repository) CreateProduct(ctx context.Context, p Product) (Product, error) {
	return scanProduct(r.pool.QueryRow(ctx, `INSERT INTO products (name, description, unit, price_per_unit, quantity_on_hand, supplier_id, created_at, updated_at)
VALUES ($1,$2,$3,$4,0,$5,NOW(),NOW()) RETURNING `+productColumns, p.Name, p.Description, p.Unit, p.PricePerUnit, p.SupplierID))
}

func (r *Repository) GetProduct(ctx context.Context, id int64) (Product, error) {
	p, err := scanProduct(r.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, fmt.Errorf("%w: product %d", shared.ErrNotFound, id)
	}
	return p, err
}

func (r *Repository) ListProducts(ctx context.Context) ([]Product, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+productColumns+` FROM products ORDER BY name ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	products := []Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func (r *Repository) CreateSupplier(ctx context.Context, s Supplier) (Supplier, error) {
	return scanSupplier(r.pool.QueryRow(ctx, `INSERT INTO suppliers (name, contact_name, phone, email, address, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,NOW(),NOW()) RETURNING `+supplierColumns, s.Name, s.ContactName, s.Phone, s.Email, s.Address))
}

func (r *Repository) GetSupplier(ctx context.Context, id int64) (Supplier, error) {
	s, err := scanSupplier(r.pool.QueryRow(ctx, `SELECT `+supplierColumns+` FROM suppliers WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Supplier{}, fmt.Errorf("%w: supplier %d", shared.ErrNotFound, id)
	}
	return s, err
}

func (r *Repository) ListSuppliers(ctx context.Context) ([]Supplier, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+supplierColumns+` FROM suppliers ORDER BY name ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	suppliers := []Supplier{}
	for rows.Next() {
		s, err := scanSupplier(rows)
		if err != nil {
			return nil, err
		}
		suppliers = append(suppliers, s)
	}
	return suppliers, rows.Err()
}

func (r *txRepository) GetProductForUpdate(ctx context.Context, id int64) (Product, error) {
	p, err := scanProduct(r.tx.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id=$1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, fmt.Errorf("%w: product %d", shared.ErrNotFound, id)
	}
	return p, err
}

func (r *txRepository) SetQuantity(ctx context.Context, id int64, qty int64) error {
	if qty < 0 {
		return fmt.Errorf("%w: %w", shared.ErrInvariant, ErrNegativeStock)
	}
	tag, err := r.tx.Exec(ctx, `UPDATE products SET quantity_on_hand=$2, updated_at=NOW() WHERE id=$1`, id, qty)
	if err != nil {
		return err
	}
	if tag.RowsAffected() != 1 {
		return fmt.Errorf("%w: product %d", shared.ErrNotFound, id)
	}
	return nil
}

func (r *txRepository) GetSupplierForUpdate(ctx context.Context, id int64) (Supplier, error) {
	s, err := scanSupplier(r.tx.QueryRow(ctx, `SELECT `+supplierColumns+` FROM suppliers WHERE id=$1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Supplier{}, fmt.Errorf("%w: supplier %d", shared.ErrNotFound, id)
	}
	return s, err
}

func (r *txRepository) SupplierReferenced(ctx context.Context, id int64) (bool, error) {
	var referenced bool
	err := r.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM stock_transactions WHERE supplier_id=$1)`, id).Scan(&referenced)
	return referenced, err
}

func (r *txRepository) UpdateSupplier(ctx context.Context, s Supplier) (Supplier, error) {
	return scanSupplier(r.tx.QueryRow(ctx, `UPDATE suppliers SET name=$2, contact_name=$3, phone=$4, email=$5, address=$6, updated_at=NOW()
WHERE id=$1 RETURNING `+supplierColumns, s.ID, s.Name, s.ContactName, s.Phone, s.Email, s.Address))
}

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Unit, &p.PricePerUnit, &p.QuantityOnHand, &p.SupplierID, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func scanSupplier(row pgx.Row) (Supplier, error) {
	var s Supplier
	err := row.Scan(&s.ID, &s.Name, &s.ContactName, &s.Phone, &s.Email, &s.Address, &s.CreatedAt, &s.UpdatedAt)
	return s, err
}
