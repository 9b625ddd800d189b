package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/andrewbyteforge/pricecomparison/pkg/health"
	"github.com/andrewbyteforge/pricecomparison/pkg/middleware"
	"github.com/andrewbyteforge/pricecomparison/services/basket/internal/service"
)

// RouterConfig carries the middleware settings that come from configuration.
type RouterConfig struct {
	CSRF      middleware.CSRFConfig
	CORS      middleware.CORSConfig
	RateLimit middleware.RateLimitConfig
	Gatherer  prometheus.Gatherer
}

// NewRouter creates a chi router with all basket service routes registered.
func NewRouter(
	basketService *service.BasketService,
	healthHandler *health.Handler,
	logger *slog.Logger,
	cfg RouterConfig,
) http.Handler {
	r := chi.NewRouter()

	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.CORS(cfg.CORS))
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.PrometheusMetrics("basket"))
	r.Use(middleware.Tracing("basket"))
	r.Use(middleware.RequestLogger(logger))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))

	basketHandler := NewBasketHandler(basketService, cfg.CSRF, logger)

	r.Route("/api/v1/basket", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		r.Get("/csrf", basketHandler.CSRFToken)

		r.Group(func(r chi.Router) {
			r.Use(middleware.UserIDFromHeader())
			r.Use(middleware.RateLimit(cfg.RateLimit))
			r.Use(middleware.CSRF(cfg.CSRF))

			r.Get("/", basketHandler.List)
			r.Delete("/", basketHandler.Empty)
			r.Get("/total", basketHandler.Total)
			r.Post("/add", basketHandler.AddItem)
			r.Post("/remove", basketHandler.RemoveItem)
		})
	})

	return r
}
