package party

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/supplyops/internal/platform/httpx"
	"github.com/odyssey-erp/supplyops/internal/rbac"
)

// Handler manages staff and customer endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountStaffRoutes registers /staff routes.
func (h *Handler) MountStaffRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.OpStaffList))
		r.Get("/", h.listStaff)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.OpStaffCreate))
		r.Post("/", h.createStaff)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.OpStaffChangeRole, rbac.OpStaffActivate))
		r.Put("/{id}/role", h.changeRole)
		r.Put("/{id}/active", h.setActive)
	})
}

// MountCustomerRoutes registers /customers routes.
func (h *Handler) MountCustomerRoutes(r chi.Router) {
	r.Get("/", h.listCustomers)
	r.Get("/{id}", h.showCustomer)
	r.Post("/", h.createCustomer)
}

func (h *Handler) listStaff(w http.ResponseWriter, r *http.Request) {
	caller, _ := rbac.CallerFromContext(r.Context())
	staff, err := h.service.ListStaff(r.Context(), caller)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, staff)
}

func (h *Handler) createStaff(w http.ResponseWriter, r *http.Request) {
	var input StaffInput
	if err := httpx.Bind(r, &input); err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	caller, _ := rbac.CallerFromContext(r.Context())
	staff, err := h.service.CreateStaff(r.Context(), caller, input)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, staff)
}

type roleRequest struct {
	Role string `json:"role" validate:"required"`
}

func (h *Handler) changeRole(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	var body roleRequest
	if err := httpx.Bind(r, &body); err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	caller, _ := rbac.CallerFromContext(r.Context())
	staff, err := h.service.ChangeRole(r.Context(), caller, id, body.Role)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, staff)
}

type activeRequest struct {
	Active *bool `json:"active" validate:"required"`
}

func (h *Handler) setActive(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	var body activeRequest
	if err := httpx.Bind(r, &body); err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	caller, _ := rbac.CallerFromContext(r.Context())
	staff, err := h.service.SetActive(r.Context(), caller, id, *body.Active)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, staff)
}

func (h *Handler) listCustomers(w http.ResponseWriter, r *http.Request) {
	caller, _ := rbac.CallerFromContext(r.Context())
	customers, err := h.service.ListCustomers(r.Context(), caller)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, customers)
}

func (h *Handler) showCustomer(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	caller, _ := rbac.CallerFromContext(r.Context())
	customer, err := h.service.GetCustomer(r.Context(), caller, id)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, customer)
}

func (h *Handler) createCustomer(w http.ResponseWriter, r *http.Request) {
	var input CustomerInput
	if err := httpx.Bind(r, &input); err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	caller, _ := rbac.CallerFromContext(r.Context())
	customer, err := h.service.CreateCustomer(r.Context(), caller, input)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, customer)
}
