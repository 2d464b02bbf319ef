package app

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/supplyops/internal/rbac"
	"github.com/odyssey-erp/supplyops/internal/shared"
)

func newIdempotencyStore(t *testing.T) *shared.IdempotencyStore {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return shared.NewIdempotencyStore(client, time.Hour)
}

func send(h http.Handler, method, key string, staffID int64) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, "/stock/fulfill", strings.NewReader(`{}`))
	if key != "" {
		req.Header.Set(IdempotencyHeader, key)
	}
	req = req.WithContext(rbac.ContextWithCaller(req.Context(), rbac.Caller{StaffID: staffID, Role: rbac.RoleWarehouse}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestIdempotencyReplaysCompletedResponse(t *testing.T) {
	var calls atomic.Int32
	h := IdempotencyMiddleware(newIdempotencyStore(t), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"call":` + strconv.Itoa(int(n)) + `}`))
	}))

	first := send(h, http.MethodPost, "k1", 5)
	require.Equal(t, http.StatusCreated, first.Code)
	second := send(h, http.MethodPost, "k1", 5)
	require.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, "true", second.Header().Get("Idempotent-Replayed"))
	assert.Equal(t, "application/json", second.Header().Get("Content-Type"))
	assert.Equal(t, int32(1), calls.Load())

	// keys are scoped per caller
	other := send(h, http.MethodPost, "k1", 6)
	assert.Equal(t, http.StatusCreated, other.Code)
	assert.Equal(t, int32(2), calls.Load())
}

func TestIdempotencyReleasesFailedRequest(t *testing.T) {
	var calls atomic.Int32
	h := IdempotencyMiddleware(newIdempotencyStore(t), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusUnprocessableEntity)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}))

	assert.Equal(t, http.StatusUnprocessableEntity, send(h, http.MethodPost, "k2", 5).Code)
	assert.Equal(t, http.StatusCreated, send(h, http.MethodPost, "k2", 5).Code)
	assert.Equal(t, int32(2), calls.Load())
}

func TestIdempotencyConflictWhileInFlight(t *testing.T) {
	store := newIdempotencyStore(t)
	release := make(chan struct{})
	started := make(chan struct{})
	h := IdempotencyMiddleware(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-release
		w.WriteHeader(http.StatusCreated)
	}))

	done := make(chan int)
	go func() { done <- send(h, http.MethodPost, "k3", 5).Code }()
	<-started
	assert.Equal(t, http.StatusConflict, send(h, http.MethodPost, "k3", 5).Code)
	close(release)
	assert.Equal(t, http.StatusCreated, <-done)
}

func TestIdempotencyIgnoresSafeMethodsAndMissingKey(t *testing.T) {
	var calls atomic.Int32
	h := IdempotencyMiddleware(newIdempotencyStore(t), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	send(h, http.MethodGet, "k4", 5)
	send(h, http.MethodGet, "k4", 5)
	send(h, http.MethodPost, "", 5)
	send(h, http.MethodPost, "", 5)
	assert.Equal(t, int32(4), calls.Load())
}

// failNthSet fails the nth SET sent through the client.
type failNthSet struct {
	n    int32
	sets atomic.Int32
}

func (h *failNthSet) DialHook(next redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		return next(ctx, network, addr)
	}
}

func (h *failNthSet) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		if cmd.Name() == "set" && h.sets.Add(1) == h.n {
			err := errors.New("redis: write refused")
			cmd.SetErr(err)
			return err
		}
		return next(ctx, cmd)
	}
}

func (h *failNthSet) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return next
}

func TestIdempotencyKeepsKeyWhenResponseCannotBeStored(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	// first SET reserves the key, the second stores the response
	client.AddHook(&failNthSet{n: 2})
	store := shared.NewIdempotencyStore(client, time.Hour)

	var calls atomic.Int32
	h := IdempotencyMiddleware(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusCreated)
	}))

	assert.Equal(t, http.StatusCreated, send(h, http.MethodPost, "draw-1", 5).Code)
	assert.Equal(t, http.StatusConflict, send(h, http.MethodPost, "draw-1", 5).Code)
	assert.Equal(t, int32(1), calls.Load())
}
