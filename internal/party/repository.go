package party

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/supplyops/internal/platform/db"
	"github.com/odyssey-erp/supplyops/internal/rbac"
	"github.com/odyssey-erp/supplyops/internal/shared"
)

// Repository persists customers and staff in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const customerColumns = `id, name, contact_name, phone, email, address, created_at`

const staffColumns = `id, name, email, phone, role, active, password_hash, created_at, updated_at`

func (r *Repository) CreateCustomer(ctx context.Context, c Customer) (Customer, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO customers (name, contact_name, phone, email, address, created_at)
VALUES ($1,$2,$3,$4,$5,NOW()) RETURNING `+customerColumns, c.Name, c.ContactName, c.Phone, c.Email, c.Address)
	return scanCustomer(row)
}

func (r *Repository) GetCustomer(ctx context.Context, id int64) (Customer, error) {
	c, err := scanCustomer(r.pool.QueryRow(ctx, `SELECT `+customerColumns+` FROM customers WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Customer{}, fmt.Errorf("%w: customer %d", shared.ErrNotFound, id)
	}
	return c, err
}

func (r *Repository) ListCustomers(ctx context.Context) ([]Customer, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+customerColumns+` FROM customers ORDER BY name ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	customers := []Customer{}
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		customers = append(customers, c)
	}
	return customers, rows.Err()
}

func (r *Repository) CreateStaff(ctx context.Context, s Staff) (Staff, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO staff (name, email, phone, role, active, password_hash, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,NOW(),NOW()) RETURNING `+staffColumns, s.Name, s.Email, s.Phone, string(s.Role), s.Active, s.PasswordHash)
	created, err := scanStaff(row)
	if db.IsUniqueViolation(err) {
		return Staff{}, fmt.Errorf("%w: %w", shared.ErrConflict, ErrDuplicateEmail)
	}
	return created, err
}

func (r *Repository) GetStaff(ctx context.Context, id int64) (Staff, error) {
	s, err := scanStaff(r.pool.QueryRow(ctx, `SELECT `+staffColumns+` FROM staff WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Staff{}, fmt.Errorf("%w: staff %d", shared.ErrNotFound, id)
	}
	return s, err
}

func (r *Repository) FindStaffByEmail(ctx context.Context, email string) (Staff, error) {
	s, err := scanStaff(r.pool.QueryRow(ctx, `SELECT `+staffColumns+` FROM staff WHERE lower(email)=lower($1)`, email))
	if errors.Is(err, pgx.ErrNoRows) {
		return Staff{}, fmt.Errorf("%w: staff email", shared.ErrNotFound)
	}
	return s, err
}

func (r *Repository) ListStaff(ctx context.Context) ([]Staff, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+staffColumns+` FROM staff ORDER BY name ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	staff := []Staff{}
	for rows.Next() {
		s, err := scanStaff(rows)
		if err != nil {
			return nil, err
		}
		staff = append(staff, s)
	}
	return staff, rows.Err()
}

func (r *Repository) SetStaffRole(ctx context.Context, id int64, role rbac.Role) (Staff, error) {
	s, err := scanStaff(r.pool.QueryRow(ctx, `UPDATE staff SET role=$2, updated_at=NOW() WHERE id=$1 RETURNING `+staffColumns, id, string(role)))
	if errors.Is(err, pgx.ErrNoRows) {
		return Staff{}, fmt.Errorf("%w: staff %d", shared.ErrNotFound, id)
	}
	return s, err
}

func (r *Repository) SetStaffActive(ctx context.Context, id int64, active bool) (Staff, error) {
	s, err := scanStaff(r.pool.QueryRow(ctx, `UPDATE staff SET active=$2, updated_at=NOW() WHERE id=$1 RETURNING `+staffColumns, id, active))
	if errors.Is(err, pgx.ErrNoRows) {
		return Staff{}, fmt.Errorf("%w: staff %d", shared.ErrNotFound, id)
	}
	return s, err
}

func scanCustomer(row pgx.Row) (Customer, error) {
	var c Customer
	err := row.Scan(&c.ID, &c.Name, &c.ContactName, &c.Phone, &c.Email, &c.Address, &c.CreatedAt)
	return c, err
}

func scanStaff(row pgx.Row) (Staff, error) {
	var s Staff
	var role string
	if err := row.Scan(&s.ID, &s.Name, &s.Email, &s.Phone, &role, &s.Active, &s.PasswordHash, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return Staff{}, err
	}
	s.Role = rbac.Role(role)
	return s, nil
}
