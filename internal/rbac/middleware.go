package rbac

import (
	"log/slog"
	"net/http"

	"github.com/odyssey-erp/supplyops/internal/platform/httpx"
)

// Middleware wires authorization helpers for HTTP handlers.
type Middleware struct {
	Logger *slog.Logger
}

// Require rejects requests whose caller may not perform any of ops.
// Services re-check; this only fails fast before the body is decoded.
func (m Middleware) Require(ops ...Operation) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(ops) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			caller, ok := CallerFromContext(r.Context())
			if !ok {
				httpx.RespondError(w, r, m.Logger, Authorize(Caller{}, ""))
				return
			}
			var err error
			for _, op := range ops {
				if err = Authorize(caller, op); err == nil {
					next.ServeHTTP(w, r)
					return
				}
			}
			if m.Logger != nil {
				m.Logger.Warn("rbac denied", slog.Int64("staff_id", caller.StaffID), slog.String("role", string(caller.Role)), slog.String("path", r.URL.Path))
			}
			httpx.RespondError(w, r, m.Logger, err)
		})
	}
}
