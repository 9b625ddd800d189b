package middleware

import (
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/andrewbyteforge/pricecomparison/pkg/errors"
	"github.com/andrewbyteforge/pricecomparison/pkg/httputil"
)

// CSRFConfig configures the double-submit anti-forgery check.
type CSRFConfig struct {
	CookieName string
	HeaderName string
	MaxAge     time.Duration
	Secure     bool
}

// DefaultCSRFConfig matches the cookie and header names browsers already send.
func DefaultCSRFConfig() CSRFConfig {
	return CSRFConfig{
		CookieName: "csrftoken",
		HeaderName: "X-CSRFToken",
		MaxAge:     24 * time.Hour,
	}
}

// CSRF rejects state-changing requests whose anti-forgery header does not
// match the anti-forgery cookie. GET, HEAD and OPTIONS pass through.
func CSRF(cfg CSRFConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				next.ServeHTTP(w, r)
				return
			}

			cookie, err := r.Cookie(cfg.CookieName)
			if err != nil || cookie.Value == "" {
				httputil.WriteError(w, r, apperrors.Forbidden("csrf cookie not set"), nil)
				return
			}
			header := r.Header.Get(cfg.HeaderName)
			if header == "" || subtle.ConstantTimeCompare([]byte(header), []byte(cookie.Value)) != 1 {
				httputil.WriteError(w, r, apperrors.Forbidden("csrf token missing or incorrect"), nil)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// IssueCSRFToken returns the token already held by the client, or sets a
// fresh cookie and returns the new token.
func IssueCSRFToken(w http.ResponseWriter, r *http.Request, cfg CSRFConfig) string {
	if cookie, err := r.Cookie(cfg.CookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	token := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     cfg.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(cfg.MaxAge.Seconds()),
		Secure:   cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	return token
}
