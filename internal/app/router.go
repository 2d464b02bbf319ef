package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

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

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger      *slog.Logger
	Config      *Config
	Metrics     *observability.Metrics
	Idempotency *shared.IdempotencyStore

	AuthHandler        *auth.Handler
	PartyHandler       *party.Handler
	CatalogHandler     *catalog.Handler
	OrdersHandler      *orders.Handler
	RequestsHandler    *requests.Handler
	StockHandler       *stock.Handler
	PermissionsHandler *rbac.PermissionsHandler
	JobHandler         *jobs.Handler
	AuditHandler       *audithttp.Handler
}

// NewRouter constructs the chi.Router. Everything except login, health and
// metrics requires a bearer token.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Route("/auth", params.AuthHandler.MountRoutes)

	r.Group(func(r chi.Router) {
		r.Use(params.AuthHandler.Middleware)
		r.Use(IdempotencyMiddleware(params.Idempotency, params.Logger))

		r.Route("/staff", params.PartyHandler.MountStaffRoutes)
		r.Route("/customers", params.PartyHandler.MountCustomerRoutes)
		r.Route("/suppliers", params.CatalogHandler.MountSupplierRoutes)
		r.Route("/products", func(r chi.Router) {
			params.CatalogHandler.MountProductRoutes(r)
			params.StockHandler.MountAdjustRoute(r)
		})
		r.Route("/orders", params.OrdersHandler.MountRoutes)
		r.Route("/requests", params.RequestsHandler.MountRoutes)
		r.Route("/stock", params.StockHandler.MountRoutes)
		if params.PermissionsHandler != nil {
			r.Route("/permissions", params.PermissionsHandler.MountRoutes)
		}
		if params.JobHandler != nil {
			r.Route("/jobs", params.JobHandler.MountRoutes)
		}
		if params.AuditHandler != nil {
			r.Route("/audit", params.AuditHandler.MountRoutes)
		}
	})

	return r
}
