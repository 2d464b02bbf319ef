package catalog

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/supplyops/internal/platform/httpx"
	"github.com/odyssey-erp/supplyops/internal/rbac"
)

// Handler manages product and supplier endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountProductRoutes registers /products routes except stock adjustment, which the stock handler owns.
func (h *Handler) MountProductRoutes(r chi.Router) {
	r.Get("/", h.listProducts)
	r.Get("/{id}", h.showProduct)
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.OpProductCreate))
		r.Post("/", h.createProduct)
	})
}

// MountSupplierRoutes registers /suppliers routes.
func (h *Handler) MountSupplierRoutes(r chi.Router) {
	r.Get("/", h.listSuppliers)
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.OpSupplierCreate))
		r.Post("/", h.createSupplier)
		r.Put("/{id}", h.updateSupplier)
	})
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	caller, _ := rbac.CallerFromContext(r.Context())
	products, err := h.service.ListProducts(r.Context(), caller)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, products)
}

func (h *Handler) showProduct(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	caller, _ := rbac.CallerFromContext(r.Context())
	product, err := h.service.GetProduct(r.Context(), caller, id)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, product)
}

func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	var input ProductInput
	if err := httpx.Bind(r, &input); err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	caller, _ := rbac.CallerFromContext(r.Context())
	product, err := h.service.CreateProduct(r.Context(), caller, input)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, product)
}

func (h *Handler) listSuppliers(w http.ResponseWriter, r *http.Request) {
	caller, _ := rbac.CallerFromContext(r.Context())
	suppliers, err := h.service.ListSuppliers(r.Context(), caller)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, suppliers)
}

func (h *Handler) createSupplier(w http.ResponseWriter, r *http.Request) {
	var input SupplierInput
	if err := httpx.Bind(r, &input); err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	caller, _ := rbac.CallerFromContext(r.Context())
	supplier, err := h.service.CreateSupplier(r.Context(), caller, input)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, supplier)
}

func (h *Handler) updateSupplier(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	var input SupplierInput
	if err := httpx.Bind(r, &input); err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	caller, _ := rbac.CallerFromContext(r.Context())
	supplier, err := h.service.UpdateSupplier(r.Context(), caller, id, input)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, supplier)
}
