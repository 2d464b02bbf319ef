package orders

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/supplyops/internal/platform/httpx"
	"github.com/odyssey-erp/supplyops/internal/rbac"
)

// Handler manages order endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers /orders routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/confirmed", h.listConfirmed)
	r.Get("/ready-to-close", h.listReadyToClose)
	r.Get("/{id}", h.showOrder)
	r.Get("/{id}/items", h.listItems)
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.OpOrderListAll))
		r.Get("/", h.listOrders)
	})
	r.With(h.rbac.Require(rbac.OpOrderCreate)).Post("/", h.createOrder)
	r.With(h.rbac.Require(rbac.OpOrderConfirm)).Put("/{id}/confirm", h.confirmOrder)
	r.With(h.rbac.Require(rbac.OpOrderClose)).Put("/{id}/close", h.closeOrder)
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	var input CreateInput
	if err := httpx.Bind(r, &input); err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	caller, _ := rbac.CallerFromContext(r.Context())
	order, err := h.service.CreateOrder(r.Context(), caller, input)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, order)
}

func (h *Handler) confirmOrder(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.ConfirmOrder)
}

func (h *Handler) closeOrder(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.CloseOrder)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, caller rbac.Caller, id int64) (Order, error)) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	caller, _ := rbac.CallerFromContext(r.Context())
	order, err := fn(r.Context(), caller, id)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.service.ListOrders)
}

func (h *Handler) listConfirmed(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.service.ListConfirmed)
}

func (h *Handler) listReadyToClose(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.service.ListReadyToClose)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, caller rbac.Caller) ([]Order, error)) {
	caller, _ := rbac.CallerFromContext(r.Context())
	orders, err := fn(r.Context(), caller)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, orders)
}

func (h *Handler) showOrder(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	caller, _ := rbac.CallerFromContext(r.Context())
	order, err := h.service.GetOrder(r.Context(), caller, id)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

func (h *Handler) listItems(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	caller, _ := rbac.CallerFromContext(r.Context())
	items, err := h.service.ListItems(r.Context(), caller, id)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, items)
}
