package httpx

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/odyssey-erp/supplyops/internal/shared"
)

var statusByKind = map[shared.Kind]struct {
	status int
	title  string
}{
	shared.KindValidation:        {http.StatusBadRequest, "Validation Failed"},
	shared.KindNotFound:          {http.StatusNotFound, "Not Found"},
	shared.KindForbidden:         {http.StatusForbidden, "Forbidden"},
	shared.KindConflict:          {http.StatusConflict, "Conflict"},
	shared.KindInsufficientStock: {http.StatusUnprocessableEntity, "Insufficient Stock"},
	shared.KindUnauthorized:      {http.StatusUnauthorized, "Unauthorized"},
	shared.KindInvariant:         {http.StatusInternalServerError, "Invariant Violated"},
	shared.KindInternal:          {http.StatusInternalServerError, "Internal Error"},
}

// StatusFor returns the HTTP status used for err.
func StatusFor(err error) int {
	return statusByKind[shared.KindOf(err)].status
}

// RespondError maps domain errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	kind := shared.KindOf(err)
	mapped := statusByKind[kind]
	detail := err.Error()
	switch kind {
	case shared.KindInvariant, shared.KindInternal:
		if logger != nil {
			logger.Error("request failed",
				slog.String("kind", string(kind)),
				slog.String("request_id", middleware.GetReqID(r.Context())),
				slog.String("path", r.URL.Path),
				slog.Any("error", err))
		}
		if kind == shared.KindInternal {
			detail = "unexpected error"
		}
	}
	if shared.Retryable(err) {
		w.Header().Set("Retry-After", "1")
	}
	problem(w, ProblemDetail{Title: mapped.title, Status: mapped.status, Detail: detail, Kind: kind})
}
