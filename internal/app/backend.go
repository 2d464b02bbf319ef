package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/odyssey-erp/supplyops/internal/audit"
	"github.com/odyssey-erp/supplyops/internal/catalog"
	"github.com/odyssey-erp/supplyops/internal/memstore"
	"github.com/odyssey-erp/supplyops/internal/orders"
	"github.com/odyssey-erp/supplyops/internal/party"
	"github.com/odyssey-erp/supplyops/internal/platform/db"
	"github.com/odyssey-erp/supplyops/internal/requests"
	"github.com/odyssey-erp/supplyops/internal/shared"
	"github.com/odyssey-erp/supplyops/internal/stock"
)

// AuditSink receives audit entries from every service.
type AuditSink interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Backend bundles the repositories behind the services.
type Backend struct {
	Kind      string
	Party     party.RepositoryPort
	Catalog   catalog.RepositoryPort
	Orders    orders.RepositoryPort
	Requests  requests.RepositoryPort
	Stock     stock.RepositoryPort
	Customers orders.CustomerLookup
	Products  orders.ProductLookup
	Audit     AuditSink
	Timeline  audit.Repository
	Approvals requests.ApprovalPort

	close func()
}

// Close releases backend resources.
func (b *Backend) Close() {
	if b != nil && b.close != nil {
		b.close()
	}
}

// NewMemoryBackend serves every repository from one in-process store.
func NewMemoryBackend(store *memstore.Store) *Backend {
	if store == nil {
		store = memstore.New()
	}
	return &Backend{
		Kind:      StoreMemory,
		Party:     store.Party(),
		Catalog:   store.Catalog(),
		Orders:    store.Orders(),
		Requests:  store.Requests(),
		Stock:     store.Stock(),
		Customers: store.Party(),
		Products:  store.Catalog(),
		Audit:     store.Audit(),
		Timeline:  store.Audit(),
		Approvals: store.Approvals(),
	}
}

// OpenBackend opens the backend selected by cfg.Store. onRetry, when set, is
// called with the SQLSTATE of every retried postgres transaction.
func OpenBackend(ctx context.Context, cfg *Config, logger *slog.Logger, onRetry func(code string)) (*Backend, error) {
	if cfg.Store == StoreMemory {
		logger.Warn("using in-memory store, data is lost on restart")
		return NewMemoryBackend(nil), nil
	}
	iso, err := db.ParseIsoLevel(cfg.TxIsolation)
	if err != nil {
		return nil, err
	}
	pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		return nil, err
	}
	if cfg.AutoMigrate {
		if err := db.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		logger.Info("database schema applied")
	}
	runner := db.NewTxRunner(pool, db.TxConfig{
		MaxAttempts: cfg.TxMaxAttempts,
		IsoLevel:    iso,
		LockTimeout: cfg.TxLockTimeout,
		OnRetry:     onRetry,
	})
	partyRepo := party.NewRepository(pool)
	auditRepo := audit.NewRepository(pool)
	catalogRepo := catalog.NewRepository(runner)
	return &Backend{
		Kind:      StorePostgres,
		Party:     partyRepo,
		Catalog:   catalogRepo,
		Orders:    orders.NewRepository(runner),
		Requests:  requests.NewRepository(runner),
		Stock:     stock.NewRepository(runner),
		Customers: partyRepo,
		Products:  catalogRepo,
		Audit:     auditRepo,
		Timeline:  auditRepo,
		Approvals: requests.NewApprovalTrail(pool, logger),
		close:     pool.Close,
	}, nil
}
