package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/supplyops/internal/audit"
	audithttp "github.com/odyssey-erp/supplyops/internal/audit/http"
	"github.com/odyssey-erp/supplyops/internal/auth"
	"github.com/odyssey-erp/supplyops/internal/catalog"
	"github.com/odyssey-erp/supplyops/internal/observability"
	"github.com/odyssey-erp/supplyops/internal/orders"
	"github.com/odyssey-erp/supplyops/internal/party"
	"github.com/odyssey-erp/supplyops/internal/rbac"
	"github.com/odyssey-erp/supplyops/internal/requests"
	"github.com/odyssey-erp/supplyops/internal/shared"
	"github.com/odyssey-erp/supplyops/internal/stock"
	"github.com/odyssey-erp/supplyops/jobs"
)

// Deps are the external resources the application is assembled from.
type Deps struct {
	Config    *Config
	Logger    *slog.Logger
	Backend   *Backend
	Redis     *redis.Client
	Metrics   *observability.Metrics
	Publisher stock.Publisher
	Inspector jobs.QueueInspector
}

// Application holds the assembled services and the HTTP handler.
type Application struct {
	Party    *party.Service
	Catalog  *catalog.Service
	Orders   *orders.Service
	Requests *requests.Service
	Stock    *stock.Service
	Auth     *auth.Service
	Audit    *audit.Service
	Router   http.Handler
}

// Build wires services and handlers over deps.
func Build(deps Deps) (*Application, error) {
	if deps.Config == nil || deps.Backend == nil || deps.Redis == nil {
		return nil, errors.New("app: config, backend and redis are required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	b := deps.Backend

	partySvc := party.NewService(b.Party, b.Audit, party.ServiceConfig{BcryptCost: deps.Config.BcryptCost})
	catalogSvc := catalog.NewService(b.Catalog, b.Audit)
	ordersSvc := orders.NewService(b.Orders, b.Customers, b.Products, b.Audit)
	requestsSvc := requests.NewService(b.Requests, b.Approvals, b.Audit)
	stockOpts := []stock.ServiceOption{stock.WithAudit(b.Audit)}
	if deps.Metrics != nil {
		stockOpts = append(stockOpts, stock.WithMetrics(deps.Metrics))
	}
	if deps.Publisher != nil {
		stockOpts = append(stockOpts, stock.WithPublisher(deps.Publisher))
	}
	stockSvc := stock.NewService(b.Stock, b.Requests, logger, stockOpts...)

	authSvc, err := auth.NewService(partySvc, auth.NewRevocationStore(deps.Redis), auth.Config{
		Secret: []byte(deps.Config.JWTSecret),
		TTL:    deps.Config.JWTTTL,
	})
	if err != nil {
		return nil, err
	}

	auditSvc := audit.NewService(b.Timeline)

	rbacMiddleware := rbac.Middleware{Logger: logger}
	router := NewRouter(RouterParams{
		Logger:             logger,
		Config:             deps.Config,
		Metrics:            deps.Metrics,
		Idempotency:        shared.NewIdempotencyStore(deps.Redis, deps.Config.IdempotencyTTL),
		AuthHandler:        auth.NewHandler(logger, authSvc),
		PartyHandler:       party.NewHandler(logger, partySvc, rbacMiddleware),
		CatalogHandler:     catalog.NewHandler(logger, catalogSvc, rbacMiddleware),
		OrdersHandler:      orders.NewHandler(logger, ordersSvc, rbacMiddleware),
		RequestsHandler:    requests.NewHandler(logger, requestsSvc, rbacMiddleware),
		StockHandler:       stock.NewHandler(logger, stockSvc, rbacMiddleware),
		PermissionsHandler: rbac.NewPermissionsHandler(logger),
		JobHandler:         jobs.NewHandler(deps.Inspector, logger),
		AuditHandler:       audithttp.NewHandler(logger, auditSvc),
	})

	return &Application{
		Party:    partySvc,
		Catalog:  catalogSvc,
		Orders:   ordersSvc,
		Requests: requestsSvc,
		Stock:    stockSvc,
		Auth:     authSvc,
		Audit:    auditSvc,
		Router:   router,
	}, nil
}

// BootstrapAdmin creates the first administrator when the staff table is empty.
func (a *Application) BootstrapAdmin(ctx context.Context, cfg *Config, logger *slog.Logger) error {
	if cfg.BootstrapAdminEmail == "" {
		return nil
	}
	staff, created, err := a.Party.BootstrapAdmin(ctx, party.StaffInput{
		Name:     cfg.BootstrapAdminName,
		Email:    cfg.BootstrapAdminEmail,
		Password: cfg.BootstrapAdminPassword,
	})
	if err != nil {
		return err
	}
	if created {
		logger.Info("bootstrap administrator created", slog.Int64("staff_id", staff.ID), slog.String("email", staff.Email))
	}
	return nil
}
