package memstore

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/odyssey-erp/supplyops/internal/catalog"
	"github.com/odyssey-erp/supplyops/internal/requests"
	"github.com/odyssey-erp/supplyops/internal/shared"
	"github.com/odyssey-erp/supplyops/internal/stock"
)

// StockRepo implements stock.RepositoryPort.
type StockRepo struct{ s *Store }

// Stock returns the stock ledger repository.
func (s *Store) Stock() *StockRepo { return &StockRepo{s: s} }

func (r *StockRepo) WithTx(ctx context.Context, fn func(context.Context, stock.TxRepository) error) error {
	return r.s.tx(ctx, func(st *state) error {
		return fn(ctx, &stockTx{
			st:       st,
			s:        r.s,
			catalog:  &catalogTx{st: st, s: r.s},
			requests: newRequestsTx(st, r.s),
		})
	})
}

// ListTransactions filters the ledger newest first.
func (r *StockRepo) ListTransactions(ctx context.Context, filter stock.Filter) ([]stock.Transaction, error) {
	out := []stock.Transaction{}
	r.s.read(func(st *state) {
		for i := len(st.transactions) - 1; i >= 0; i-- {
			txn := st.transactions[i]
			switch {
			case filter.Type != "" && txn.Type != filter.Type:
				continue
			case filter.ProductID > 0 && txn.ProductID != filter.ProductID:
				continue
			case filter.From != nil && txn.Date.Before(*filter.From):
				continue
			case filter.To != nil && !txn.Date.Before(*filter.To):
				continue
			}
			out = append(out, txn)
		}
	})
	slices.SortStableFunc(out, func(a, b stock.Transaction) int {
		return cmp.Or(b.Date.Compare(a.Date), cmp.Compare(b.ID, a.ID))
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

type stockTx struct {
	st       *state
	s        *Store
	catalog  *catalogTx
	requests *requestsTx
}

func (t *stockTx) Catalog() catalog.TxRepository {
	return t.catalog
}

func (t *stockTx) Requests() requests.TxRepository {
	return t.requests
}

func (t *stockTx) InsertTransaction(ctx context.Context, txn stock.Transaction) (stock.Transaction, error) {
	if txn.Quantity <= 0 {
		return stock.Transaction{}, fmt.Errorf("%w: stock transaction quantity %d", shared.ErrInvariant, txn.Quantity)
	}
	if _, ok := t.st.products[txn.ProductID]; !ok {
		return stock.Transaction{}, fmt.Errorf("%w: product %d", shared.ErrNotFound, txn.ProductID)
	}
	txn.ID = t.st.next("stock_transactions")
	if txn.Date.IsZero() {
		txn.Date = t.s.stamp()
	}
	t.st.transactions = append(t.st.transactions, txn)
	return txn, nil
}
