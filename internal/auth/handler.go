package auth

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/supplyops/internal/platform/httpx"
	"github.com/odyssey-erp/supplyops/internal/rbac"
	"github.com/odyssey-erp/supplyops/internal/shared"
)

type claimsKey struct{}

// Handler serves login and logout and authenticates bearer tokens.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers /auth routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/login", h.login)
	r.With(h.Middleware).Post("/logout", h.logout)
	r.With(h.Middleware).Get("/me", h.me)
}

// Middleware resolves the bearer token into an rbac.Caller.
func (h *Handler) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := bearer(r)
		if !ok {
			httpx.RespondError(w, r, h.logger, fmt.Errorf("%w: bearer token required", shared.ErrUnauthorized))
			return
		}
		caller, claims, err := h.service.Verify(r.Context(), raw)
		if err != nil {
			httpx.RespondError(w, r, h.logger, err)
			return
		}
		ctx := rbac.ContextWithCaller(r.Context(), caller)
		ctx = context.WithValue(ctx, claimsKey{}, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearer(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var input LoginInput
	if err := httpx.Bind(r, &input); err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	session, err := h.service.Login(r.Context(), input.Email, input.Password)
	if err != nil {
		if h.logger != nil {
			h.logger.Warn("login failed", slog.String("email", input.Email), slog.Any("error", err))
		}
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, session)
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	claims, _ := r.Context().Value(claimsKey{}).(Claims)
	if err := h.service.Logout(r.Context(), claims); err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	caller, _ := rbac.CallerFromContext(r.Context())
	httpx.JSON(w, http.StatusOK, caller)
}
