package audithttp

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/odyssey-erp/supplyops/internal/audit"
	"github.com/odyssey-erp/supplyops/internal/platform/httpx"
	"github.com/odyssey-erp/supplyops/internal/rbac"
	"github.com/odyssey-erp/supplyops/internal/shared"
)

const (
	defaultDateRange  = 7 * 24 * time.Hour
	maxDateRangeHours = 24 * 90
)

// TimelineService defines the business contract for timeline data.
type TimelineService interface {
	Timeline(ctx context.Context, caller rbac.Caller, filters audit.TimelineFilters) (audit.Result, error)
	Export(ctx context.Context, caller rbac.Caller, filters audit.TimelineFilters) ([]audit.TimelineRow, error)
}

// Handler serves the audit timeline.
type Handler struct {
	logger  *slog.Logger
	service TimelineService
	now     func() time.Time
}

// NewHandler builds the audit handler.
func NewHandler(logger *slog.Logger, service TimelineService) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, now: time.Now}
}

func (h *Handler) handleTimeline(w http.ResponseWriter, r *http.Request) {
	filters, err := h.parseFilters(r)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	caller, _ := rbac.CallerFromContext(r.Context())
	result, err := h.service.Timeline(r.Context(), caller, filters)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	filters, err := h.parseFilters(r)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	caller, _ := rbac.CallerFromContext(r.Context())
	rows, err := h.service.Export(r.Context(), caller, filters)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	csvBytes, err := audit.WriteCSV(rows)
	if err != nil {
		httpx.RespondError(w, r, h.logger, fmt.Errorf("encode csv: %w", err))
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", "attachment; filename=\"audit-timeline.csv\"")
	if _, err := w.Write(csvBytes); err != nil {
		h.logger.Warn("write csv", slog.Any("error", err))
	}
}

// parseFilters reads from/to (YYYY-MM-DD, to inclusive), actor, entity, action,
// page and page_size. The window defaults to the last seven days.
func (h *Handler) parseFilters(r *http.Request) (audit.TimelineFilters, error) {
	q := r.URL.Query()
	now := h.now().UTC()
	toStr := strings.TrimSpace(q.Get("to"))
	if toStr == "" {
		toStr = now.Format(time.DateOnly)
	}
	toTime, err := time.Parse(time.DateOnly, toStr)
	if err != nil {
		return audit.TimelineFilters{}, invalid("to must be YYYY-MM-DD")
	}
	fromStr := strings.TrimSpace(q.Get("from"))
	if fromStr == "" {
		fromStr = toTime.Add(-defaultDateRange).Format(time.DateOnly)
	}
	fromTime, err := time.Parse(time.DateOnly, fromStr)
	if err != nil {
		return audit.TimelineFilters{}, invalid("from must be YYYY-MM-DD")
	}
	if fromTime.After(toTime) {
		return audit.TimelineFilters{}, invalid("from must not be after to")
	}
	if toTime.Sub(fromTime) > maxDateRangeHours*time.Hour {
		return audit.TimelineFilters{}, invalid("range is limited to 90 days")
	}

	filters := audit.TimelineFilters{
		From:   fromTime,
		To:     toTime.AddDate(0, 0, 1),
		Entity: strings.TrimSpace(q.Get("entity")),
		Action: strings.TrimSpace(q.Get("action")),
	}
	if v := strings.TrimSpace(q.Get("actor")); v != "" {
		if filters.ActorID, err = strconv.ParseInt(v, 10, 64); err != nil || filters.ActorID <= 0 {
			return audit.TimelineFilters{}, invalid("actor must be a staff id")
		}
	}
	if v := strings.TrimSpace(q.Get("page")); v != "" {
		if filters.Page, err = strconv.Atoi(v); err != nil || filters.Page <= 0 {
			return audit.TimelineFilters{}, invalid("page must be a positive integer")
		}
	}
	if v := strings.TrimSpace(q.Get("page_size")); v != "" {
		if filters.PageSize, err = strconv.Atoi(v); err != nil || filters.PageSize <= 0 {
			return audit.TimelineFilters{}, invalid("page_size must be a positive integer")
		}
	}
	return filters, nil
}

func invalid(msg string) error {
	return fmt.Errorf("%w: %s", shared.ErrValidation, msg)
}
