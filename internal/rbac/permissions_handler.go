package rbac

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/supplyops/internal/platform/httpx"
)

// PermissionsHandler exposes the caller's permitted operations so clients can gate their views.
type PermissionsHandler struct {
	logger *slog.Logger
}

// NewPermissionsHandler builds PermissionsHandler instance.
func NewPermissionsHandler(logger *slog.Logger) *PermissionsHandler {
	return &PermissionsHandler{logger: logger}
}

// MountRoutes registers permission routes.
func (h *PermissionsHandler) MountRoutes(r chi.Router) {
	r.Get("/", h.listPermissions)
}

type permissionsResponse struct {
	StaffID    int64       `json:"staffId"`
	Role       Role        `json:"role"`
	Operations []Operation `json:"operations"`
}

func (h *PermissionsHandler) listPermissions(w http.ResponseWriter, r *http.Request) {
	caller, ok := CallerFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, r, h.logger, Authorize(Caller{}, ""))
		return
	}
	httpx.JSON(w, http.StatusOK, permissionsResponse{
		StaffID:    caller.StaffID,
		Role:       caller.Role,
		Operations: Operations(caller.Role),
	})
}
