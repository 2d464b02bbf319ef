package app

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/supplyops/internal/observability"
)

type harness struct {
	t      *testing.T
	server *httptest.Server
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cfg := &Config{
		AppEnv:                 "test",
		AppRequestTimeout:      5 * time.Second,
		Store:                  StoreMemory,
		TxMaxAttempts:          1,
		JWTSecret:              "0123456789abcdef-test",
		JWTTTL:                 time.Hour,
		IdempotencyTTL:         time.Hour,
		BcryptCost:             4,
		BootstrapAdminEmail:    "root@supply.test",
		BootstrapAdminPassword: "password1",
		BootstrapAdminName:     "Root",
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	application, err := Build(Deps{
		Config:  cfg,
		Logger:  logger,
		Backend: NewMemoryBackend(nil),
		Redis:   client,
		Metrics: observability.NewMetrics(),
	})
	require.NoError(t, err)
	require.NoError(t, application.BootstrapAdmin(t.Context(), cfg, logger))

	srv := httptest.NewServer(application.Router)
	t.Cleanup(srv.Close)
	return &harness{t: t, server: srv}
}

func (h *harness) do(method, path, token string, body any, headers ...string) (int, []byte) {
	h.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(h.t, err)
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(h.t.Context(), method, h.server.URL+path, reader)
	require.NoError(h.t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	res, err := http.DefaultClient.Do(req)
	require.NoError(h.t, err)
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	require.NoError(h.t, err)
	return res.StatusCode, data
}

func (h *harness) must(want int, method, path, token string, body any, out any, headers ...string) {
	h.t.Helper()
	code, data := h.do(method, path, token, body, headers...)
	require.Equal(h.t, want, code, "%s %s: %s", method, path, data)
	if out != nil {
		require.NoError(h.t, json.Unmarshal(data, out))
	}
}

func (h *harness) login(email string) string {
	h.t.Helper()
	var session struct {
		Token string `json:"token"`
	}
	h.must(http.StatusOK, http.MethodPost, "/auth/login", "", map[string]string{"email": email, "password": "password1"}, &session)
	return session.Token
}

type idOnly struct {
	ID int64 `json:"id"`
}

func TestPublicAndProtectedRoutes(t *testing.T) {
	h := newHarness(t)
	code, body := h.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))

	code, _ = h.do(http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, code)

	code, body = h.do(http.MethodGet, "/orders/confirmed", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Contains(t, string(body), `"kind":"unauthorized"`)
}

func TestWorkflowOverHTTP(t *testing.T) {
	h := newHarness(t)
	root := h.login("root@supply.test")

	for _, s := range []struct{ name, email, role string }{
		{"Sari", "sales@supply.test", "SALES"},
		{"Tono", "tech@supply.test", "TECHNICIAN"},
		{"Fajar", "foreman@supply.test", "FOREMAN"},
		{"Wati", "warehouse@supply.test", "WAREHOUSE"},
	} {
		h.must(http.StatusCreated, http.MethodPost, "/staff", root, map[string]string{
			"name": s.name, "email": s.email, "role": s.role, "password": "password1",
		}, nil)
	}
	sales := h.login("sales@supply.test")
	tech := h.login("tech@supply.test")
	foreman := h.login("foreman@supply.test")
	warehouse := h.login("warehouse@supply.test")

	var customer, supplier, product idOnly
	h.must(http.StatusCreated, http.MethodPost, "/customers", sales, map[string]string{"name": "CV Terang"}, &customer)
	h.must(http.StatusCreated, http.MethodPost, "/suppliers", sales, map[string]string{"name": "PT Kabel"}, &supplier)
	h.must(http.StatusCreated, http.MethodPost, "/products", warehouse, map[string]any{
		"name": "NYM 2x1.5", "unit": "roll", "pricePerUnit": 125.5, "supplierId": supplier.ID,
	}, &product)
	h.must(http.StatusCreated, http.MethodPost, "/stock/in", warehouse, map[string]any{
		"productId": product.ID, "supplierId": supplier.ID, "quantity": 10,
	}, nil)

	var order struct {
		ID          int64   `json:"id"`
		Status      string  `json:"status"`
		TotalAmount float64 `json:"totalAmount"`
	}
	h.must(http.StatusCreated, http.MethodPost, "/orders", sales, map[string]any{
		"customerId": customer.ID,
		"items":      []map[string]any{{"productId": product.ID, "quantity": 6, "unitPrice": 125.5}},
	}, &order)
	assert.Equal(t, "PENDING", order.Status)
	assert.InDelta(t, 753.0, order.TotalAmount, 0.001)
	h.must(http.StatusOK, http.MethodPut, fmt.Sprintf("/orders/%d/confirm", order.ID), sales, nil, &order)
	assert.Equal(t, "CONFIRMED", order.Status)

	var req struct {
		ID     int64  `json:"id"`
		Status string `json:"status"`
		Items  []struct {
			ID int64 `json:"id"`
		} `json:"items"`
	}
	h.must(http.StatusCreated, http.MethodPost, "/requests", tech, map[string]any{
		"orderId": order.ID,
		"items":   []map[string]any{{"productId": product.ID, "quantity": 6}},
	}, &req)
	require.Len(t, req.Items, 1)
	assert.Equal(t, "AWAITING_APPROVAL", req.Status)

	code, _ := h.do(http.MethodPut, fmt.Sprintf("/requests/%d/approve", req.ID), tech, nil)
	assert.Equal(t, http.StatusForbidden, code)
	h.must(http.StatusOK, http.MethodPut, fmt.Sprintf("/requests/%d/approve", req.ID), foreman, map[string]string{"note": "ok"}, &req)
	assert.Equal(t, "APPROVED", req.Status)

	// only 10 on hand: the second draw of 6 cannot be covered
	fulfil := map[string]any{"requestItemId": req.Items[0].ID, "quantity": 4}
	var result struct {
		RequestReadyToClose bool `json:"requestReadyToClose"`
		OrderReadyToClose   bool `json:"orderReadyToClose"`
	}
	h.must(http.StatusCreated, http.MethodPost, "/stock/fulfill", warehouse, fulfil, &result, IdempotencyHeader, "draw-1")
	assert.False(t, result.RequestReadyToClose)

	// replay returns the stored response without drawing stock again
	code, body := h.do(http.MethodPost, "/stock/fulfill", warehouse, fulfil, IdempotencyHeader, "draw-1")
	assert.Equal(t, http.StatusCreated, code)
	assert.Contains(t, string(body), `"requestReadyToClose":false`)

	var p struct {
		QuantityOnHand int64 `json:"quantityOnHand"`
	}
	h.must(http.StatusOK, http.MethodGet, fmt.Sprintf("/products/%d", product.ID), sales, nil, &p)
	assert.Equal(t, int64(6), p.QuantityOnHand)

	code, _ = h.do(http.MethodPut, fmt.Sprintf("/orders/%d/close", order.ID), sales, nil)
	assert.Equal(t, http.StatusConflict, code)

	h.must(http.StatusCreated, http.MethodPost, "/stock/fulfill", warehouse, map[string]any{"requestItemId": req.Items[0].ID, "quantity": 2}, &result)
	assert.True(t, result.RequestReadyToClose)
	assert.True(t, result.OrderReadyToClose)

	var ready []idOnly
	h.must(http.StatusOK, http.MethodGet, "/requests/ready-to-close", warehouse, nil, &ready)
	require.Len(t, ready, 1)

	h.must(http.StatusOK, http.MethodPut, fmt.Sprintf("/requests/%d/close", req.ID), warehouse, nil, &req)
	assert.Equal(t, "CLOSED", req.Status)
	h.must(http.StatusOK, http.MethodPut, fmt.Sprintf("/orders/%d/close", order.ID), sales, nil, &order)
	assert.Equal(t, "CLOSED", order.Status)

	var ledger []struct {
		Type     string `json:"type"`
		Quantity int64  `json:"quantity"`
	}
	h.must(http.StatusOK, http.MethodGet, "/stock/transactions", root, nil, &ledger)
	require.Len(t, ledger, 3)
	assert.Equal(t, "FULFILLMENT", ledger[0].Type)
	assert.Equal(t, int64(2), ledger[0].Quantity)
	code, _ = h.do(http.MethodGet, "/stock/transactions", warehouse, nil)
	assert.Equal(t, http.StatusForbidden, code)

	var timeline struct {
		Rows []struct {
			Action string         `json:"action"`
			Entity string         `json:"entity"`
			Meta   map[string]any `json:"meta"`
		} `json:"rows"`
	}
	h.must(http.StatusOK, http.MethodGet, "/audit?action=stock:fulfill", root, nil, &timeline)
	require.Len(t, timeline.Rows, 2)
	assert.Equal(t, "stock_transaction", timeline.Rows[0].Entity)
	assert.Equal(t, float64(2), timeline.Rows[0].Meta["quantity"])
	code, _ = h.do(http.MethodGet, "/audit", warehouse, nil)
	assert.Equal(t, http.StatusForbidden, code)

	var trail []struct {
		Action  string `json:"action"`
		ActorID int64  `json:"actorId"`
	}
	h.must(http.StatusOK, http.MethodGet, fmt.Sprintf("/requests/%d/approvals", req.ID), tech, nil, &trail)
	require.Len(t, trail, 3)
	assert.Equal(t, "SUBMIT", trail[0].Action)
	assert.Equal(t, "APPROVE", trail[1].Action)
	assert.Equal(t, "CLOSE", trail[2].Action)
}

func TestLogoutRevokesAccess(t *testing.T) {
	h := newHarness(t)
	root := h.login("root@supply.test")
	h.must(http.StatusOK, http.MethodGet, "/permissions", root, nil, nil)
	h.must(http.StatusNoContent, http.MethodPost, "/auth/logout", root, nil, nil)
	code, _ := h.do(http.MethodGet, "/permissions", root, nil)
	assert.Equal(t, http.StatusUnauthorized, code)
}
