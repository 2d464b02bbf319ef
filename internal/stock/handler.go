package stock

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/supplyops/internal/platform/httpx"
	"github.com/odyssey-erp/supplyops/internal/rbac"
	"github.com/odyssey-erp/supplyops/internal/shared"
)

// Handler manages stock endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers /stock routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.rbac.Require(rbac.OpStockIn)).Post("/in", h.stockIn)
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.OpStockFulfil))
		r.Get("/approved-requests", h.listApproved)
		r.Post("/fulfill", h.fulfill)
	})
	r.With(h.rbac.Require(rbac.OpStockLedger)).Get("/transactions", h.listTransactions)
}

// MountAdjustRoute registers PUT /{id}/adjust on the products router.
func (h *Handler) MountAdjustRoute(r chi.Router) {
	r.With(h.rbac.Require(rbac.OpStockAdjust)).Put("/{id}/adjust", h.adjust)
}

func (h *Handler) stockIn(w http.ResponseWriter, r *http.Request) {
	var input StockInInput
	if err := httpx.Bind(r, &input); err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	caller, _ := rbac.CallerFromContext(r.Context())
	moved, err := h.service.StockIn(r.Context(), caller, input)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, moved)
}

func (h *Handler) fulfill(w http.ResponseWriter, r *http.Request) {
	var input FulfillInput
	if err := httpx.Bind(r, &input); err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	caller, _ := rbac.CallerFromContext(r.Context())
	result, err := h.service.Fulfill(r.Context(), caller, input)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, result)
}

type adjustBody struct {
	Note string `json:"note" validate:"max=500"`
}

func (h *Handler) adjust(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	diff, err := strconv.ParseInt(strings.TrimSpace(r.URL.Query().Get("diff")), 10, 64)
	if err != nil {
		httpx.RespondError(w, r, h.logger, fmt.Errorf("%w: diff must be an integer", shared.ErrValidation))
		return
	}
	var body adjustBody
	if r.ContentLength > 0 {
		if err := httpx.Bind(r, &body); err != nil {
			httpx.RespondError(w, r, h.logger, err)
			return
		}
	}
	caller, _ := rbac.CallerFromContext(r.Context())
	moved, err := h.service.Adjust(r.Context(), caller, id, diff, body.Note)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, moved)
}

func (h *Handler) listApproved(w http.ResponseWriter, r *http.Request) {
	caller, _ := rbac.CallerFromContext(r.Context())
	reqs, err := h.service.ListApprovedRequests(r.Context(), caller)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, reqs)
}

func (h *Handler) listTransactions(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r.URL.Query())
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	caller, _ := rbac.CallerFromContext(r.Context())
	txns, err := h.service.ListTransactions(r.Context(), caller, filter)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, txns)
}

// parseFilter reads type, productId, from, to and limit. A date-only "to"
// includes the whole day.
func parseFilter(q url.Values) (Filter, error) {
	var filter Filter
	if raw := q.Get("type"); raw != "" {
		t, ok := ParseType(raw)
		if !ok {
			return Filter{}, fmt.Errorf("%w: unknown transaction type %q", shared.ErrValidation, raw)
		}
		filter.Type = t
	}
	if raw := q.Get("productId"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			return Filter{}, fmt.Errorf("%w: productId must be a positive integer", shared.ErrValidation)
		}
		filter.ProductID = id
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			return Filter{}, fmt.Errorf("%w: limit must be a non-negative integer", shared.ErrValidation)
		}
		filter.Limit = limit
	}
	var err error
	if filter.From, err = parseBound(q.Get("from"), false); err != nil {
		return Filter{}, err
	}
	if filter.To, err = parseBound(q.Get("to"), true); err != nil {
		return Filter{}, err
	}
	return filter, nil
}

func parseBound(raw string, upper bool) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %q must be YYYY-MM-DD or RFC3339", shared.ErrValidation, raw)
	}
	if upper {
		t = t.AddDate(0, 0, 1)
	}
	return &t, nil
}
