package audithttp

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/supplyops/internal/audit"
	"github.com/odyssey-erp/supplyops/internal/rbac"
)

type stubTimelineService struct {
	result      audit.Result
	exportRows  []audit.TimelineRow
	lastFilters audit.TimelineFilters
	lastCaller  rbac.Caller
}

func (s *stubTimelineService) Timeline(ctx context.Context, caller rbac.Caller, filters audit.TimelineFilters) (audit.Result, error) {
	s.lastCaller, s.lastFilters = caller, filters
	return s.result, nil
}

func (s *stubTimelineService) Export(ctx context.Context, caller rbac.Caller, filters audit.TimelineFilters) ([]audit.TimelineRow, error) {
	s.lastCaller, s.lastFilters = caller, filters
	return s.exportRows, nil
}

func newAuditRouter(t *testing.T, service TimelineService) http.Handler {
	t.Helper()
	h := NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), service)
	h.now = func() time.Time { return time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC) }
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := rbac.ContextWithCaller(req.Context(), rbac.Caller{StaffID: 1, Role: rbac.RoleAdmin})
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	r.Route("/audit", h.MountRoutes)
	return r
}

func TestTimelineDefaultsToLastWeek(t *testing.T) {
	svc := &stubTimelineService{result: audit.Result{Rows: []audit.TimelineRow{{Action: "order:create", Entity: "order", EntityID: "3"}}, Paging: audit.PagingInfo{Page: 1, PageSize: 20}}}
	rec := httptest.NewRecorder()
	newAuditRouter(t, svc).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/audit", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC), svc.lastFilters.From)
	assert.Equal(t, time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC), svc.lastFilters.To)
	assert.Equal(t, int64(1), svc.lastCaller.StaffID)

	var body audit.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Rows, 1)
	assert.Equal(t, "order:create", body.Rows[0].Action)
}

func TestTimelineParsesFilters(t *testing.T) {
	svc := &stubTimelineService{}
	rec := httptest.NewRecorder()
	newAuditRouter(t, svc).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/audit?from=2026-03-01&to=2026-03-02&actor=4&entity=request&action=request:approve&page=2&page_size=5", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, audit.TimelineFilters{
		From:     time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		To:       time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC),
		ActorID:  4,
		Entity:   "request",
		Action:   "request:approve",
		Page:     2,
		PageSize: 5,
	}, svc.lastFilters)
}

func TestTimelineRejectsBadFilters(t *testing.T) {
	for _, query := range []string{
		"from=yesterday",
		"from=2026-03-05&to=2026-03-01",
		"from=2025-01-01&to=2026-03-01",
		"actor=abc",
		"page=0",
		"page_size=-1",
	} {
		rec := httptest.NewRecorder()
		newAuditRouter(t, &stubTimelineService{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/audit?"+query, nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code, query)
	}
}

func TestExportWritesCSV(t *testing.T) {
	svc := &stubTimelineService{exportRows: []audit.TimelineRow{{
		At: time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC), ActorID: 5, Action: "stock:fulfill", Entity: "stock_transaction", EntityID: "11",
	}}}
	rec := httptest.NewRecorder()
	newAuditRouter(t, svc).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/audit/export.csv?from=2026-03-01&to=2026-03-10", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "audit-timeline.csv")
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "2026-03-10T08:00:00Z,5,stock:fulfill,stock_transaction,11,", lines[1])
}

func TestExportIsRateLimitedPerStaff(t *testing.T) {
	router := newAuditRouter(t, &stubTimelineService{})
	var last int
	for i := 0; i <= rateLimit; i++ {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/audit/export.csv", nil))
		last = rec.Code
	}
	assert.Equal(t, http.StatusTooManyRequests, last)
}
