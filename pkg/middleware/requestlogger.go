package middleware

import (
	"log/slog"
	"net/http"

	"github.com/andrewbyteforge/pricecomparison/pkg/logger"
)

// RequestLogger returns middleware that builds a request-scoped logger enriched
// with correlation_id, user_id, trace_id, and span_id, then stores it in
// context via logger.NewContext. Downstream handlers retrieve it with
// logger.FromContext(ctx).
//
// Mount it after RequestLogging and Tracing. On routes that do not run
// UserIDFromHeader the X-User-ID header is still picked up when present.
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			if UserIDFromContext(ctx) == "" {
				if userID := r.Header.Get(UserIDHeader); userID != "" {
					ctx = logger.WithUserID(ctx, userID)
				}
			}

			ctx = logger.NewContext(ctx, logger.WithContext(ctx, base))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
