package stock

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/supplyops/internal/catalog"
	"github.com/odyssey-erp/supplyops/internal/platform/db"
	"github.com/odyssey-erp/supplyops/internal/requests"
)

// Repository persists the stock ledger in PostgreSQL.
type Repository struct {
	pool   *pgxpool.Pool
	runner *db.TxRunner
}

// NewRepository constructs Repository.
func NewRepository(runner *db.TxRunner) *Repository {
	return &Repository{pool: runner.Pool(), runner: runner}
}

// TxRepository spans every row a stock movement touches. Catalog, requests and
// orders statements all run on the same transaction.
type TxRepository interface {
	Catalog() catalog.TxRepository
	Requests() requests.TxRepository
	InsertTransaction(ctx context.Context, txn Transaction) (Transaction, error)
}

type txRepository struct {
	tx       pgx.Tx
	catalog  catalog.TxRepository
	requests requests.TxRepository
}

// NewTxRepository binds stock statements to an open transaction.
func NewTxRepository(tx pgx.Tx) TxRepository {
	return &txRepository{tx: tx, catalog: catalog.NewTxRepository(tx), requests: requests.NewTxRepository(tx)}
}

const transactionColumns = `id, tx_date, tx_type, product_id, quantity, staff_id, supplier_id, request_id, request_item_id, order_id, description`

// WithTx executes the callback inside a managed transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("stock repository not initialised")
	}
	return r.runner.WithTx(ctx, func(tx pgx.Tx) error {
		return fn(ctx, NewTxRepository(tx))
	})
}

// ListTransactions returns ledger rows newest first.
func (r *Repository) ListTransactions(ctx context.Context, filter Filter) ([]Transaction, error) {
	var txType, productID any
	if filter.Type != "" {
		txType = string(filter.Type)
	}
	if filter.ProductID > 0 {
		productID = filter.ProductID
	}
	rows, err := r.pool.Query(ctx, `SELECT `+transactionColumns+` FROM stock_transactions
WHERE ($1::text IS NULL OR tx_type=$1)
  AND ($2::bigint IS NULL OR product_id=$2)
  AND ($3::timestamptz IS NULL OR tx_date >= $3)
  AND ($4::timestamptz IS NULL OR tx_date < $4)
ORDER BY tx_date DESC, id DESC
LIMIT $5`, txType, productID, filter.From, filter.To, filter.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Transaction{}
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, txn)
	}
	return out, rows.Err()
}

func (r *txRepository) Catalog() catalog.TxRepository {
	return r.catalog
}

func (r *txRepository) Requests() requests.TxRepository {
	return r.requests
}

func (r *txRepository) InsertTransaction(ctx context.Context, txn Transaction) (Transaction, error) {
	var date any
	if !txn.Date.IsZero() {
		date = txn.Date
	}
	return scanTransaction(r.tx.QueryRow(ctx, `INSERT INTO stock_transactions
(tx_date, tx_type, product_id, quantity, staff_id, supplier_id, request_id, request_item_id, order_id, description)
VALUES (COALESCE($1, NOW()),$2,$3,$4,$5,$6,$7,$8,$9,$10) RETURNING `+transactionColumns,
		date, string(txn.Type), txn.ProductID, txn.Quantity, txn.StaffID, txn.SupplierID, txn.RequestID, txn.RequestItemID, txn.OrderID, txn.Description))
}

func scanTransaction(row pgx.Row) (Transaction, error) {
	var t Transaction
	var txType string
	if err := row.Scan(&t.ID, &t.Date, &txType, &t.ProductID, &t.Quantity, &t.StaffID, &t.SupplierID, &t.RequestID, &t.RequestItemID, &t.OrderID, &t.Description); err != nil {
		return Transaction{}, err
	}
	t.Type = TxType(txType)
	return t, nil
}
