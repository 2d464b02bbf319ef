package requests

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/supplyops/internal/orders"
	"github.com/odyssey-erp/supplyops/internal/platform/db"
	"github.com/odyssey-erp/supplyops/internal/shared"
)

// Repository persists requests in PostgreSQL.
type Repository struct {
	pool   *pgxpool.Pool
	runner *db.TxRunner
}

// NewRepository constructs Repository.
func NewRepository(runner *db.TxRunner) *Repository {
	return &Repository{pool: runner.Pool(), runner: runner}
}

// TxRepository exposes transactional request operations. Orders shares the
// same transaction so request creation can read order lines under lock.
type TxRepository interface {
	Orders() orders.TxRepository
	InsertRequest(ctx context.Context, req Request) (Request, error)
	GetRequestForUpdate(ctx context.Context, id int64) (Request, error)
	RequestIDForItem(ctx context.Context, itemID int64) (int64, error)
	ItemsForUpdate(ctx context.Context, requestID int64) ([]Item, error)
	GetItemForUpdate(ctx context.Context, itemID int64) (Item, error)
	SetItemFulfilled(ctx context.Context, itemID, fulfilledQty int64) error
	SetStatus(ctx context.Context, id int64, status Status, actorID int64, at time.Time) (Request, error)
	OpenDemand(ctx context.Context, orderID, productID int64) (int64, error)
}

type txRepository struct {
	tx     pgx.Tx
	orders orders.TxRepository
}

// NewTxRepository binds request statements to an open transaction.
func NewTxRepository(tx pgx.Tx) TxRepository {
	return &txRepository{tx: tx, orders: orders.NewTxRepository(tx)}
}

const requestColumns = `id, order_id, customer_id, staff_id, request_date, status, description, decided_by, decided_at, closed_by, closed_at, created_at`

const itemColumns = `id, request_id, product_id, quantity, fulfilled_qty`

// WithTx executes the callback inside a managed transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("requests repository not initialised")
	}
	return r.runner.WithTx(ctx, func(tx pgx.Tx) error {
		return fn(ctx, NewTxRepository(tx))
	})
}

func (r *Repository) GetRequest(ctx context.Context, id int64) (Request, error) {
	req, err := scanRequest(r.pool.QueryRow(ctx, `SELECT `+requestColumns+` FROM requests WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Request{}, fmt.Errorf("%w: request %d", shared.ErrNotFound, id)
	}
	if err != nil {
		return Request{}, err
	}
	req.Items, err = r.ListItems(ctx, id)
	return req, err
}

func (r *Repository) ListItems(ctx context.Context, requestID int64) ([]Item, error) {
	return queryItems(ctx, r.pool, `SELECT `+itemColumns+` FROM request_items WHERE request_id=$1 ORDER BY id ASC`, requestID)
}

// ListRequests returns requests by date ascending; an empty status lists every request.
func (r *Repository) ListRequests(ctx context.Context, status Status) ([]Request, error) {
	var statusArg any
	if status != "" {
		statusArg = string(status)
	}
	return r.queryRequests(ctx, `SELECT `+requestColumns+` FROM requests
WHERE ($1::text IS NULL OR status=$1)
ORDER BY request_date ASC, id ASC`, statusArg)
}

// ListFulfillable returns approved requests with remaining quantity, items attached.
func (r *Repository) ListFulfillable(ctx context.Context) ([]Request, error) {
	reqs, err := r.queryRequests(ctx, `SELECT `+requestColumns+` FROM requests rq
WHERE rq.status='APPROVED'
  AND EXISTS (SELECT 1 FROM request_items ri WHERE ri.request_id=rq.id AND ri.fulfilled_qty < ri.quantity)
ORDER BY rq.request_date ASC, rq.id ASC`)
	if err != nil {
		return nil, err
	}
	return reqs, r.attachItems(ctx, reqs)
}

func (r *Repository) ListReadyToClose(ctx context.Context) ([]Request, error) {
	return r.queryRequests(ctx, `SELECT `+requestColumns+` FROM requests rq
WHERE rq.status='APPROVED'
  AND EXISTS (SELECT 1 FROM request_items ri WHERE ri.request_id=rq.id)
  AND NOT EXISTS (SELECT 1 FROM request_items ri WHERE ri.request_id=rq.id AND ri.fulfilled_qty < ri.quantity)
ORDER BY rq.request_date ASC, rq.id ASC`)
}

func (r *Repository) attachItems(ctx context.Context, reqs []Request) error {
	if len(reqs) == 0 {
		return nil
	}
	ids := make([]int64, len(reqs))
	index := make(map[int64]int, len(reqs))
	for i, req := range reqs {
		ids[i] = req.ID
		index[req.ID] = i
	}
	items, err := queryItems(ctx, r.pool, `SELECT `+itemColumns+` FROM request_items WHERE request_id = ANY($1) ORDER BY id ASC`, ids)
	if err != nil {
		return err
	}
	for _, item := range items {
		pos := index[item.RequestID]
		reqs[pos].Items = append(reqs[pos].Items, item)
	}
	return nil
}

func (r *Repository) queryRequests(ctx context.Context, sql string, args ...any) ([]Request, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	reqs := []Request{}
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		reqs = append(reqs, req)
	}
	return reqs, rows.Err()
}

func (r *txRepository) Orders() orders.TxRepository {
	return r.orders
}

func (r *txRepository) InsertRequest(ctx context.Context, req Request) (Request, error) {
	created, err := scanRequest(r.tx.QueryRow(ctx, `INSERT INTO requests (order_id, customer_id, staff_id, request_date, status, description, created_at)
VALUES ($1,$2,$3,$4,$5,$6,NOW()) RETURNING `+requestColumns, req.OrderID, req.CustomerID, req.StaffID, req.RequestDate, string(req.Status), req.Description))
	if err != nil {
		return Request{}, err
	}
	for _, item := range req.Items {
		inserted, err := scanItem(r.tx.QueryRow(ctx, `INSERT INTO request_items (request_id, product_id, quantity, fulfilled_qty)
VALUES ($1,$2,$3,0) RETURNING `+itemColumns, created.ID, item.ProductID, item.Quantity))
		if err != nil {
			return Request{}, err
		}
		created.Items = append(created.Items, inserted)
	}
	return created, nil
}

func (r *txRepository) GetRequestForUpdate(ctx context.Context, id int64) (Request, error) {
	req, err := scanRequest(r.tx.QueryRow(ctx, `SELECT `+requestColumns+` FROM requests WHERE id=$1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Request{}, fmt.Errorf("%w: request %d", shared.ErrNotFound, id)
	}
	return req, err
}

func (r *txRepository) RequestIDForItem(ctx context.Context, itemID int64) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `SELECT request_id FROM request_items WHERE id=$1`, itemID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("%w: request item %d", shared.ErrNotFound, itemID)
	}
	return id, err
}

func (r *txRepository) ItemsForUpdate(ctx context.Context, requestID int64) ([]Item, error) {
	return queryItems(ctx, r.tx, `SELECT `+itemColumns+` FROM request_items WHERE request_id=$1 ORDER BY id ASC FOR UPDATE`, requestID)
}

func (r *txRepository) GetItemForUpdate(ctx context.Context, itemID int64) (Item, error) {
	item, err := scanItem(r.tx.QueryRow(ctx, `SELECT `+itemColumns+` FROM request_items WHERE id=$1 FOR UPDATE`, itemID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Item{}, fmt.Errorf("%w: request item %d", shared.ErrNotFound, itemID)
	}
	return item, err
}

func (r *txRepository) SetItemFulfilled(ctx context.Context, itemID, fulfilledQty int64) error {
	_, err := r.tx.Exec(ctx, `UPDATE request_items SET fulfilled_qty=$2 WHERE id=$1`, itemID, fulfilledQty)
	return err
}

func (r *txRepository) SetStatus(ctx context.Context, id int64, status Status, actorID int64, at time.Time) (Request, error) {
	var decidedBy, decidedAt, closedBy, closedAt any
	switch status {
	case StatusApproved, StatusRejected:
		decidedBy, decidedAt = actorID, at
	case StatusClosed:
		closedBy, closedAt = actorID, at
	}
	return scanRequest(r.tx.QueryRow(ctx, `UPDATE requests SET status=$2,
  decided_by=COALESCE($3, decided_by), decided_at=COALESCE($4, decided_at),
  closed_by=COALESCE($5, closed_by), closed_at=COALESCE($6, closed_at)
WHERE id=$1 RETURNING `+requestColumns, id, string(status), decidedBy, decidedAt, closedBy, closedAt))
}

func (r *txRepository) OpenDemand(ctx context.Context, orderID, productID int64) (int64, error) {
	var demand int64
	err := r.tx.QueryRow(ctx, `SELECT COALESCE(SUM(ri.quantity - ri.fulfilled_qty), 0)
FROM request_items ri JOIN requests rq ON rq.id = ri.request_id
WHERE rq.order_id=$1 AND ri.product_id=$2 AND rq.status IN ('AWAITING_APPROVAL','APPROVED')`, orderID, productID).Scan(&demand)
	return demand, err
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

func scanRequest(row pgx.Row) (Request, error) {
	var req Request
	var status string
	if err := row.Scan(&req.ID, &req.OrderID, &req.CustomerID, &req.StaffID, &req.RequestDate, &status, &req.Description,
		&req.DecidedBy, &req.DecidedAt, &req.ClosedBy, &req.ClosedAt, &req.CreatedAt); err != nil {
		return Request{}, err
	}
	req.Status = Status(status)
	return req, nil
}

func scanItem(row pgx.Row) (Item, error) {
	var i Item
	if err := row.Scan(&i.ID, &i.RequestID, &i.ProductID, &i.Quantity, &i.FulfilledQty); err != nil {
		return Item{}, err
	}
	i.Settle()
	return i, nil
}
