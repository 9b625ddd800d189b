package http

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrewbyteforge/pricecomparison/pkg/health"
	"github.com/andrewbyteforge/pricecomparison/pkg/middleware"
	"github.com/andrewbyteforge/pricecomparison/services/basket/internal/event"
	redisrepo "github.com/andrewbyteforge/pricecomparison/services/basket/internal/repository/redis"
	"github.com/andrewbyteforge/pricecomparison/services/basket/internal/service"
)

// ============================================================================
// Test helpers
// ============================================================================

const testToken = "test-csrf-token"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestRouter(t *testing.T, maxItems int) http.Handler {
	t.Helper()
	return newTestRouterWith(t, maxItems, RouterConfig{
		CSRF: middleware.DefaultCSRFConfig(),
		CORS: middleware.DefaultCORSConfig(),
	})
}

func newTestRouterWith(t *testing.T, maxItems int, cfg RouterConfig) http.Handler {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	logger := testLogger()
	repo := redisrepo.NewBasketRepository(client, time.Hour)
	svc := service.NewBasketService(repo, event.NewProducer(nil, logger), logger, maxItems)

	return NewRouter(svc, health.NewHandler(), logger, cfg)
}

type requestOpt func(*http.Request)

func withoutCSRF(r *http.Request) {
	r.Header.Del("X-CSRFToken")
}

func asUser(id string) requestOpt {
	return func(r *http.Request) { r.Header.Set("X-User-ID", id) }
}

func doRequest(t *testing.T, h http.Handler, method, path string, body any, opts ...requestOpt) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "user-1")
	req.Header.Set("X-CSRFToken", testToken)
	req.AddCookie(&http.Cookie{Name: "csrftoken", Value: testToken})
	for _, opt := range opts {
		opt(req)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

func addItem(t *testing.T, h http.Handler, store, name string, price any) addItemResponse {
	t.Helper()
	rec := doRequest(t, h, http.MethodPost, "/api/v1/basket/add", map[string]any{
		"store": store, "name": name, "price": price,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[addItemResponse](t, rec)
}

// ============================================================================
// CSRF
// ============================================================================

func TestCSRFToken_SetsCookie(t *testing.T) {
	h := newTestRouter(t, 0)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/basket/csrf", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[csrfResponse](t, rec)
	assert.NotEmpty(t, body.CSRFToken)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "csrftoken", cookies[0].Name)
	assert.Equal(t, body.CSRFToken, cookies[0].Value)
}

func TestAddItem_RejectsMissingCSRFHeader(t *testing.T) {
	h := newTestRouter(t, 0)

	rec := doRequest(t, h, http.MethodPost, "/api/v1/basket/add",
		map[string]any{"store": "Asda", "name": "Tea", "price": "2.50"}, withoutCSRF)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestBasket_RequiresUser(t *testing.T) {
	h := newTestRouter(t, 0)

	rec := doRequest(t, h, http.MethodGet, "/api/v1/basket/", nil, asUser(""))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

// ============================================================================
// Add
// ============================================================================

func TestAddItem_Success(t *testing.T) {
	h := newTestRouter(t, 0)

	resp := addItem(t, h, "Asda", "Tea", "2.50")

	assert.True(t, resp.Success)
	assert.Equal(t, "Asda", resp.Store)
	assert.Equal(t, "Tea", resp.Name)
	assert.Equal(t, "2.50", resp.Price)
	assert.NotEmpty(t, resp.ItemID)
}

func TestAddItem_AcceptsNumericPrice(t *testing.T) {
	h := newTestRouter(t, 0)

	resp := addItem(t, h, "tesco", "Milk", 1.1)

	assert.Equal(t, "Tesco", resp.Store)
	assert.Equal(t, "1.10", resp.Price)
}

func TestAddItem_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		body   map[string]any
		status int
		code   string
	}{
		{"missing price", map[string]any{"store": "Asda", "name": "Tea"}, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"three decimals", map[string]any{"store": "Asda", "name": "Tea", "price": "1.234"}, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"unknown store", map[string]any{"store": "Lidl", "name": "Tea", "price": "1.00"}, http.StatusBadRequest, "INVALID_INPUT"},
		{"negative price", map[string]any{"store": "Asda", "name": "Tea", "price": "-1.00"}, http.StatusBadRequest, "INVALID_INPUT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestRouter(t, 0)

			rec := doRequest(t, h, http.MethodPost, "/api/v1/basket/add", tt.body)

			assert.Equal(t, tt.status, rec.Code)
			body := decode[map[string]any](t, rec)
			assert.Equal(t, false, body["success"])
			assert.Equal(t, tt.code, body["code"])
		})
	}
}

func TestAddItem_BasketFull(t *testing.T) {
	h := newTestRouter(t, 1)
	addItem(t, h, "Asda", "Tea", "2.50")

	rec := doRequest(t, h, http.MethodPost, "/api/v1/basket/add",
		map[string]any{"store": "Asda", "name": "Bread", "price": "1.00"})

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestAddItem_WrongContentType(t *testing.T) {
	h := newTestRouter(t, 0)

	rec := doRequest(t, h, http.MethodPost, "/api/v1/basket/add", map[string]any{}, func(r *http.Request) {
		r.Header.Set("Content-Type", "text/plain")
	})

	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

// ============================================================================
// Remove
// ============================================================================

func TestRemoveItem_Success(t *testing.T) {
	h := newTestRouter(t, 0)
	added := addItem(t, h, "Asda", "Tea", "2.50")

	rec := doRequest(t, h, http.MethodPost, "/api/v1/basket/remove", map[string]string{"item_id": added.ItemID})

	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[removeItemResponse](t, rec)
	assert.True(t, body.Success)
}

func TestRemoveItem_NotFound(t *testing.T) {
	h := newTestRouter(t, 0)

	rec := doRequest(t, h, http.MethodPost, "/api/v1/basket/remove", map[string]string{"item_id": "missing"})

	assert.Equal(t, http.StatusNotFound, rec.Code)
	body := decode[map[string]any](t, rec)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "Item not found", body["error"])
}

func TestRemoveItem_OtherUsersItem(t *testing.T) {
	h := newTestRouter(t, 0)
	added := addItem(t, h, "Asda", "Tea", "2.50")

	rec := doRequest(t, h, http.MethodPost, "/api/v1/basket/remove",
		map[string]string{"item_id": added.ItemID}, asUser("user-2"))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// ============================================================================
// Total / List / Empty
// ============================================================================

func TestTotal(t *testing.T) {
	h := newTestRouter(t, 0)
	addItem(t, h, "Asda", "Tea", "2.50")
	addItem(t, h, "Asda", "Bread", "0.85")
	addItem(t, h, "Tesco", "Milk", "1.10")

	rec := doRequest(t, h, http.MethodGet, "/api/v1/basket/total?store=asda", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"total_price": 3.35, "store": "Asda"}`, rec.Body.String())
}

func TestTotal_Empty(t *testing.T) {
	h := newTestRouter(t, 0)

	rec := doRequest(t, h, http.MethodGet, "/api/v1/basket/total?store=Sainsburys", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"total_price": 0.00, "store": "Sainsburys"}`, rec.Body.String())
}

func TestTotal_UnknownStore(t *testing.T) {
	h := newTestRouter(t, 0)

	rec := doRequest(t, h, http.MethodGet, "/api/v1/basket/total?store=Aldi", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode[map[string]any](t, rec)
	assert.Contains(t, body["error"], "unknown store")
}

func TestListAndEmpty(t *testing.T) {
	h := newTestRouter(t, 0)
	first := addItem(t, h, "Asda", "Tea", "2.50")
	addItem(t, h, "Sainsburys", "Eggs", "2.10")

	rec := doRequest(t, h, http.MethodGet, "/api/v1/basket/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[listResponse](t, rec)
	require.Len(t, list.Items, 2)
	assert.Equal(t, first.ItemID, list.Items[0].ItemID)
	assert.Equal(t, "2.50", list.Items[0].Price)

	rec = doRequest(t, h, http.MethodDelete, "/api/v1/basket/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, decode[emptyResponse](t, rec).Removed)

	rec = doRequest(t, h, http.MethodGet, "/api/v1/basket/", nil)
	assert.Empty(t, decode[listResponse](t, rec).Items)
}

// ============================================================================
// Probes
// ============================================================================

func TestHealthAndMetrics(t *testing.T) {
	h := newTestRouter(t, 0)

	rec := doRequest(t, h, http.MethodGet, "/health/live", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, h, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "http_requests_total")
}

// ============================================================================
// Rate limiting
// ============================================================================

func TestRateLimit_PerUser(t *testing.T) {
	h := newTestRouterWith(t, 0, RouterConfig{
		CSRF:      middleware.DefaultCSRFConfig(),
		CORS:      middleware.DefaultCORSConfig(),
		RateLimit: middleware.RateLimitConfig{RPS: 0.001, Burst: 2},
	})

	for i := 0; i < 2; i++ {
		require.Equal(t, http.StatusOK, doRequest(t, h, http.MethodGet, "/api/v1/basket/", nil).Code)
	}

	rec := doRequest(t, h, http.MethodGet, "/api/v1/basket/", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "RATE_LIMITED", decode[map[string]any](t, rec)["code"])

	assert.Equal(t, http.StatusOK, doRequest(t, h, http.MethodGet, "/api/v1/basket/", nil, asUser("user-2")).Code)
}
