package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/supplyops/internal/platform/db"
	"github.com/odyssey-erp/supplyops/internal/shared"
)

// Repository persists orders in PostgreSQL.
type Repository struct {
	pool   *pgxpool.Pool
	runner *db.TxRunner
}

// NewRepository constructs Repository.
func NewRepository(runner *db.TxRunner) *Repository {
	return &Repository{pool: runner.Pool(), runner: runner}
}

// TxRepository exposes transactional operations used by order, request and stock services.
type TxRepository interface {
	InsertOrder(ctx context.Context, order Order) (Order, error)
	GetOrderForUpdate(ctx context.Context, id int64) (Order, error)
	ItemsForUpdate(ctx context.Context, orderID int64) ([]Item, error)
	GetItemForUpdate(ctx context.Context, orderID, productID int64) (Item, error)
	SetItemFulfilled(ctx context.Context, itemID, fulfilledQty int64) error
	SetStatus(ctx context.Context, id int64, status Status, actorID int64, at time.Time) (Order, error)
	CountOpenRequests(ctx context.Context, orderID int64) (int, error)
	Ready(ctx context.Context, orderID int64) (bool, error)
}

type txRepository struct {
	tx pgx.Tx
}

// NewTxRepository binds order statements to an open transaction.
func NewTxRepository(tx pgx.Tx) TxRepository {
	return &txRepository{tx: tx}
}

const orderColumns = `id, customer_id, staff_id, order_date, status, total_amount, closed_by, closed_at, created_at, updated_at`

const itemColumns = `id, order_id, product_id, quantity, unit_price, line_total, fulfilled_qty`

// WithTx executes the callback inside a managed transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("orders repository not initialised")
	}
	return r.runner.WithTx(ctx, func(tx pgx.Tx) error {
		return fn(ctx, NewTxRepository(tx))
	})
}

func (r *Repository) GetOrder(ctx context.Context, id int64) (Order, error) {
	order, err := scanOrder(r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, fmt.Errorf("%w: order %d", shared.ErrNotFound, id)
	}
	if err != nil {
		return Order{}, err
	}
	order.Items, err = r.ListItems(ctx, id)
	return order, err
}

func (r *Repository) ListItems(ctx context.Context, orderID int64) ([]Item, error) {
	return queryItems(ctx, r.pool, `SELECT `+itemColumns+` FROM order_items WHERE order_id=$1 ORDER BY id ASC`, orderID)
}

// ListOrders returns orders ordered by date ascending; an empty status lists every order.
func (r *Repository) ListOrders(ctx context.Context, status Status) ([]Order, error) {
	var statusArg any
	if status != "" {
		statusArg = string(status)
	}
	return r.queryOrders(ctx, `SELECT `+orderColumns+` FROM orders
WHERE ($1::text IS NULL OR status=$1)
ORDER BY order_date ASC, id ASC`, statusArg)
}

func (r *Repository) ListReadyToClose(ctx context.Context) ([]Order, error) {
	return r.queryOrders(ctx, `SELECT `+orderColumns+` FROM orders o
WHERE o.status='CONFIRMED'
  AND EXISTS (SELECT 1 FROM order_items i WHERE i.order_id=o.id)
  AND NOT EXISTS (SELECT 1 FROM order_items i WHERE i.order_id=o.id AND i.fulfilled_qty < i.quantity)
ORDER BY o.order_date ASC, o.id ASC`)
}

func (r *Repository) queryOrders(ctx context.Context, sql string, args ...any) ([]Order, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	orders := []Order{}
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, rows.Err()
}

func (r *txRepository) InsertOrder(ctx context.Context, order Order) (Order, error) {
	created, err := scanOrder(r.tx.QueryRow(ctx, `INSERT INTO orders (customer_id, staff_id, order_date, status, total_amount, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,NOW(),NOW()) RETURNING `+orderColumns, order.CustomerID, order.StaffID, order.OrderDate, string(order.Status), order.TotalAmount))
	if err != nil {
		return Order{}, err
	}
	for _, item := range order.Items {
		inserted, err := scanItem(r.tx.QueryRow(ctx, `INSERT INTO order_items (order_id, product_id, quantity, unit_price, line_total, fulfilled_qty)
VALUES ($1,$2,$3,$4,$5,0) RETURNING `+itemColumns, created.ID, item.ProductID, item.Quantity, item.UnitPrice, item.LineTotal))
		if err != nil {
			return Order{}, err
		}
		created.Items = append(created.Items, inserted)
	}
	return created, nil
}

func (r *txRepository) GetOrderForUpdate(ctx context.Context, id int64) (Order, error) {
	order, err := scanOrder(r.tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, fmt.Errorf("%w: order %d", shared.ErrNotFound, id)
	}
	return order, err
}

func (r *txRepository) ItemsForUpdate(ctx context.Context, orderID int64) ([]Item, error) {
	return queryItems(ctx, r.tx, `SELECT `+itemColumns+` FROM order_items WHERE order_id=$1 ORDER BY id ASC FOR UPDATE`, orderID)
}

func (r *txRepository) GetItemForUpdate(ctx context.Context, orderID, productID int64) (Item, error) {
	item, err := scanItem(r.tx.QueryRow(ctx, `SELECT `+itemColumns+` FROM order_items WHERE order_id=$1 AND product_id=$2 FOR UPDATE`, orderID, productID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Item{}, fmt.Errorf("%w: order %d product %d", shared.ErrNotFound, orderID, productID)
	}
	return item, err
}

func (r *txRepository) SetItemFulfilled(ctx context.Context, itemID, fulfilledQty int64) error {
	_, err := r.tx.Exec(ctx, `UPDATE order_items SET fulfilled_qty=$2 WHERE id=$1`, itemID, fulfilledQty)
	return err
}

func (r *txRepository) SetStatus(ctx context.Context, id int64, status Status, actorID int64, at time.Time) (Order, error) {
	var closedBy, closedAt any
	if status == StatusClosed {
		closedBy, closedAt = actorID, at
	}
	return scanOrder(r.tx.QueryRow(ctx, `UPDATE orders SET status=$2, closed_by=COALESCE($3, closed_by), closed_at=COALESCE($4, closed_at), updated_at=$5
WHERE id=$1 RETURNING `+orderColumns, id, string(status), closedBy, closedAt, at))
}

func (r *txRepository) CountOpenRequests(ctx context.Context, orderID int64) (int, error) {
	var count int
	err := r.tx.QueryRow(ctx, `SELECT COUNT(*) FROM requests rq
WHERE rq.order_id=$1
  AND (rq.status='AWAITING_APPROVAL'
       OR (rq.status='APPROVED' AND EXISTS (SELECT 1 FROM request_items ri WHERE ri.request_id=rq.id AND ri.fulfilled_qty < ri.quantity)))`, orderID).Scan(&count)
	return count, err
}

// Ready evaluates the ready-to-close predicate without taking locks.
func (r *txRepository) Ready(ctx context.Context, orderID int64) (bool, error) {
	var ready bool
	err := r.tx.QueryRow(ctx, `SELECT o.status='CONFIRMED'
  AND EXISTS (SELECT 1 FROM order_items i WHERE i.order_id=o.id)
  AND NOT EXISTS (SELECT 1 FROM order_items i WHERE i.order_id=o.id AND i.fulfilled_qty < i.quantity)
FROM orders o WHERE o.id=$1`, orderID).Scan(&ready)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, fmt.Errorf("%w: order %d", shared.ErrNotFound, orderID)
	}
	return ready, err
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func queryItems(ctx context.Context, q querier, sql string, args ...any) ([]Item, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Item{}
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func scanOrder(row pgx.Row) (Order, error) {
	var o Order
	var status string
	if err := row.Scan(&o.ID, &o.CustomerID, &o.StaffID, &o.OrderDate, &status, &o.TotalAmount, &o.ClosedBy, &o.ClosedAt, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return Order{}, err
	}
	o.Status = Status(status)
	return o, nil
}

func scanItem(row pgx.Row) (Item, error) {
	var i Item
	if err := row.Scan(&i.ID, &i.OrderID, &i.ProductID, &i.Quantity, &i.UnitPrice, &i.LineTotal, &i.FulfilledQty); err != nil {
		return Item{}, err
	}
	i.Settle()
	return i, nil
}
