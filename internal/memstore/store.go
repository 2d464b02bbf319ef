// Package memstore keeps every repository port in process memory. A store-wide
// lock serialises transactions and a failed transaction leaves no trace.
package memstore

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/odyssey-erp/supplyops/internal/catalog"
	"github.com/odyssey-erp/supplyops/internal/orders"
	"github.com/odyssey-erp/supplyops/internal/party"
	"github.com/odyssey-erp/supplyops/internal/requests"
	"github.com/odyssey-erp/supplyops/internal/shared"
	"github.com/odyssey-erp/supplyops/internal/stock"
)

// Store is the in-memory backend.
type Store struct {
	mu  sync.RWMutex
	st  *state
	now func() time.Time
}

type state struct {
	seq          map[string]int64
	staff        map[int64]party.Staff
	customers    map[int64]party.Customer
	suppliers    map[int64]catalog.Supplier
	products     map[int64]catalog.Product
	orders       map[int64]orders.Order
	orderItems   map[int64]orders.Item
	requests     map[int64]requests.Request
	requestItems map[int64]requests.Item
	transactions []stock.Transaction
	audit        []shared.AuditLog
	approvals    []shared.ApprovalLog
}

// New constructs an empty Store.
func New() *Store {
	return &Store{st: newState(), now: time.Now}
}

func newState() *state {
	return &state{
		seq:          map[string]int64{},
		staff:        map[int64]party.Staff{},
		customers:    map[int64]party.Customer{},
		suppliers:    map[int64]catalog.Supplier{},
		products:     map[int64]catalog.Product{},
		orders:       map[int64]orders.Order{},
		orderItems:   map[int64]orders.Item{},
		requests:     map[int64]requests.Request{},
		requestItems: map[int64]requests.Item{},
	}
}

func (s *state) clone() *state {
	return &state{
		seq:          maps.Clone(s.seq),
		staff:        maps.Clone(s.staff),
		customers:    maps.Clone(s.customers),
		suppliers:    maps.Clone(s.suppliers),
		products:     maps.Clone(s.products),
		orders:       maps.Clone(s.orders),
		orderItems:   maps.Clone(s.orderItems),
		requests:     maps.Clone(s.requests),
		requestItems: maps.Clone(s.requestItems),
		transactions: slices.Clone(s.transactions),
		audit:        s.audit,
		approvals:    s.approvals,
	}
}

func (s *state) next(table string) int64 {
	s.seq[table]++
	return s.seq[table]
}

// tx runs fn against a working copy and publishes it only when fn succeeds.
func (s *Store) tx(ctx context.Context, fn func(st *state) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	work := s.st.clone()
	if err := fn(work); err != nil {
		return err
	}
	s.st = work
	return nil
}

// read runs fn under the shared lock.
func (s *Store) read(fn func(st *state)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(s.st)
}

func (s *Store) stamp() time.Time {
	return s.now().UTC()
}

// sortedValues returns map values ordered by less.
func sortedValues[K comparable, V any](m map[K]V, cmp func(a, b V) int) []V {
	out := make([]V, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	slices.SortFunc(out, cmp)
	return out
}
