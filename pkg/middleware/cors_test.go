package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func serveCORS(cfg CORSConfig, method, origin string) *httptest.ResponseRecorder {
	handler := CORS(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	req := httptest.NewRequest(method, "/api/v1/basket/add", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func TestCORS_WildcardWithoutCredentials(t *testing.T) {
	rr := serveCORS(CORSConfig{AllowedOrigins: []string{"*"}}, http.MethodGet, "https://shop.example")

	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, rr.Header().Get("Access-Control-Allow-Credentials"))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestCORS_WildcardWithCredentialsEchoesOrigin(t *testing.T) {
	rr := serveCORS(CORSConfig{AllowedOrigins: []string{"*"}, AllowCredentials: true}, http.MethodPost, "https://shop.example")

	assert.Equal(t, "https://shop.example", rr.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rr.Header().Get("Access-Control-Allow-Credentials"))
	assert.Equal(t, "Origin", rr.Header().Get("Vary"))
}

func TestCORS_ListedOrigin(t *testing.T) {
	cfg := CORSConfig{AllowedOrigins: []string{"https://a.example", "https://b.example"}}

	rr := serveCORS(cfg, http.MethodGet, "https://b.example")
	assert.Equal(t, "https://b.example", rr.Header().Get("Access-Control-Allow-Origin"))

	rr = serveCORS(cfg, http.MethodGet, "https://evil.example")
	assert.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))

	rr = serveCORS(cfg, http.MethodGet, "")
	assert.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORS_PreflightReturns204(t *testing.T) {
	rr := serveCORS(DefaultCORSConfig(), http.MethodOptions, "https://shop.example")

	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, "GET, POST, DELETE, OPTIONS", rr.Header().Get("Access-Control-Allow-Methods"))
	assert.Contains(t, rr.Header().Get("Access-Control-Allow-Headers"), "X-CSRFToken")
	assert.Equal(t, "3600", rr.Header().Get("Access-Control-Max-Age"))
	assert.Equal(t, "X-Correlation-ID", rr.Header().Get("Access-Control-Expose-Headers"))
}

func TestCORS_DefaultsAppliedToEmptyConfig(t *testing.T) {
	rr := serveCORS(CORSConfig{}, http.MethodGet, "")

	assert.Equal(t, "GET, POST, DELETE, OPTIONS", rr.Header().Get("Access-Control-Allow-Methods"))
	assert.Contains(t, rr.Header().Get("Access-Control-Allow-Headers"), "X-User-ID")
	assert.Empty(t, rr.Header().Get("Access-Control-Expose-Headers"))
}
