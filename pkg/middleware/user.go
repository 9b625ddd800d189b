package middleware

import (
	"context"
	"net/http"
	"strings"

	apperrors "github.com/andrewbyteforge/pricecomparison/pkg/errors"
	"github.com/andrewbyteforge/pricecomparison/pkg/httputil"
	"github.com/andrewbyteforge/pricecomparison/pkg/logger"
)

// UserIDHeader carries the shopper identity resolved upstream.
const UserIDHeader = "X-User-ID"

// UserIDFromHeader requires the X-User-ID header and stores its value in the
// request context. Requests without it are rejected with 401.
func UserIDFromHeader() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := strings.TrimSpace(r.Header.Get(UserIDHeader))
			if userID == "" {
				httputil.WriteError(w, r, apperrors.Unauthorized("missing "+UserIDHeader+" header"), nil)
				return
			}
			next.ServeHTTP(w, r.WithContext(logger.WithUserID(r.Context(), userID)))
		})
	}
}

// UserIDFromContext returns the user ID stored by UserIDFromHeader.
func UserIDFromContext(ctx context.Context) string {
	return logger.UserIDFromContext(ctx)
}
