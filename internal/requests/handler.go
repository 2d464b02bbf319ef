package requests

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/supplyops/internal/platform/httpx"
	"github.com/odyssey-erp/supplyops/internal/rbac"
)

// Handler manages request endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers /requests routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/pending", h.listPending)
	r.Get("/approved", h.listApproved)
	r.Get("/ready-to-close", h.listReadyToClose)
	r.Get("/{id}", h.showRequest)
	r.Get("/{id}/items", h.listItems)
	r.Get("/{id}/approvals", h.listApprovals)
	r.With(h.rbac.Require(rbac.OpRequestListAll)).Get("/", h.listRequests)
	r.With(h.rbac.Require(rbac.OpRequestCreate)).Post("/", h.createRequest)
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.OpRequestDecide))
		r.Put("/{id}/approve", h.approveRequest)
		r.Put("/{id}/reject", h.rejectRequest)
	})
	r.With(h.rbac.Require(rbac.OpRequestClose)).Put("/{id}/close", h.closeRequest)
}

func (h *Handler) createRequest(w http.ResponseWriter, r *http.Request) {
	var input CreateInput
	if err := httpx.Bind(r, &input); err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	caller, _ := rbac.CallerFromContext(r.Context())
	req, err := h.service.CreateRequest(r.Context(), caller, input)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, req)
}

func (h *Handler) approveRequest(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, ActionApprove)
}

func (h *Handler) rejectRequest(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, ActionReject)
}

func (h *Handler) decide(w http.ResponseWriter, r *http.Request, action Action) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	var input DecisionInput
	if r.ContentLength != 0 {
		if err := httpx.Bind(r, &input); err != nil {
			httpx.RespondError(w, r, h.logger, err)
			return
		}
	}
	caller, _ := rbac.CallerFromContext(r.Context())
	req, err := h.service.Decide(r.Context(), caller, id, action, input.Note)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, req)
}

func (h *Handler) closeRequest(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	caller, _ := rbac.CallerFromContext(r.Context())
	req, err := h.service.CloseRequest(r.Context(), caller, id)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, req)
}

func (h *Handler) listRequests(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.service.ListRequests)
}

func (h *Handler) listPending(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.service.ListPending)
}

func (h *Handler) listApproved(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.service.ListApproved)
}

func (h *Handler) listReadyToClose(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.service.ListReadyToClose)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, caller rbac.Caller) ([]Request, error)) {
	caller, _ := rbac.CallerFromContext(r.Context())
	reqs, err := fn(r.Context(), caller)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, reqs)
}

func (h *Handler) showRequest(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	caller, _ := rbac.CallerFromContext(r.Context())
	req, err := h.service.GetRequest(r.Context(), caller, id)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, req)
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

func (h *Handler) listApprovals(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	caller, _ := rbac.CallerFromContext(r.Context())
	trail, err := h.service.Approvals(r.Context(), caller, id)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, trail)
}
