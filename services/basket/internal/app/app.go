package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/andrewbyteforge/pricecomparison/pkg/database"
	"github.com/andrewbyteforge/pricecomparison/pkg/health"
	pkgkafka "github.com/andrewbyteforge/pricecomparison/pkg/kafka"
	"github.com/andrewbyteforge/pricecomparison/pkg/middleware"
	"github.com/andrewbyteforge/pricecomparison/pkg/tracing"
	"github.com/andrewbyteforge/pricecomparison/services/basket/internal/config"
	"github.com/andrewbyteforge/pricecomparison/services/basket/internal/event"
	handler "github.com/andrewbyteforge/pricecomparison/services/basket/internal/handler/http"
	"github.com/andrewbyteforge/pricecomparison/services/basket/internal/repository"
	pgrepo "github.com/andrewbyteforge/pricecomparison/services/basket/internal/repository/postgres"
	redisrepo "github.com/andrewbyteforge/pricecomparison/services/basket/internal/repository/redis"
	"github.com/andrewbyteforge/pricecomparison/services/basket/internal/service"
)

const serviceName = "basket"

// App wires together all dependencies and runs the basket service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	rdb            *redis.Client
	pool           *pgxpool.Pool
	producer       *pkgkafka.Producer
	tracerShutdown func(context.Context) error
	httpServer     *http.Server
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	a := &App{cfg: cfg, logger: logger}

	// Tracing.
	tcfg := tracing.DefaultConfig(serviceName + "-service")
	tcfg.Environment = cfg.Environment
	tcfg.Enabled = cfg.OTELEnabled
	tcfg.OTLPEndpoint = cfg.OTELEndpoint
	tcfg.SampleRate = cfg.OTELSampleRate
	shutdown, err := tracing.InitTracer(ctx, tcfg)
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}
	a.tracerShutdown = shutdown

	healthHandler := health.NewHandler()

	// Storage backend.
	var repo repository.BasketRepository
	switch cfg.Store {
	case config.StorePostgres:
		repo, err = a.initPostgres(ctx, healthHandler)
	default:
		repo, err = a.initRedis(ctx, healthHandler)
	}
	if err != nil {
		a.closeResources()
		return nil, err
	}

	// Kafka producer, optional.
	if cfg.KafkaEnabled {
		a.producer = pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
		healthHandler.Register("kafka", a.producer.Ping)
		logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))
	}

	// Build the dependency graph.
	eventProducer := event.NewProducer(a.producer, logger)
	basketService := service.NewBasketService(repo, eventProducer, logger, cfg.MaxItems)

	csrfCfg := middleware.DefaultCSRFConfig()
	csrfCfg.CookieName = cfg.CSRFCookieName
	csrfCfg.Secure = cfg.CSRFCookieSecure

	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowedOrigins = cfg.CORSAllowedOrigins

	router := handler.NewRouter(basketService, healthHandler, logger, handler.RouterConfig{
		CSRF: csrfCfg,
		CORS: corsCfg,
		RateLimit: middleware.RateLimitConfig{
			RPS:   cfg.RateLimitRPS,
			Burst: cfg.RateLimitBurst,
		},
	})

	a.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 35 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return a, nil
}

func (a *App) initRedis(ctx context.Context, h *health.Handler) (repository.BasketRepository, error) {
	rcfg := database.DefaultRedisConfig()
	rcfg.Host = a.cfg.RedisHost
	rcfg.Port = a.cfg.RedisPort
	rcfg.Password = a.cfg.RedisPassword
	rcfg.DB = a.cfg.RedisDB

	rdb, err := database.NewRedisClient(ctx, rcfg)
	if err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	a.rdb = rdb
	a.logger.Info("connected to Redis",
		slog.String("addr", rcfg.Addr()),
		slog.Int("db", rcfg.DB),
	)

	h.Register("redis", func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	})
	return redisrepo.NewBasketRepository(rdb, time.Duration(a.cfg.BasketTTL)*time.Hour), nil
}

func (a *App) initPostgres(ctx context.Context, h *health.Handler) (repository.BasketRepository, error) {
	pcfg := database.DefaultPostgresConfig()
	pcfg.Host = a.cfg.PostgresHost
	pcfg.Port = a.cfg.PostgresPort
	pcfg.User = a.cfg.PostgresUser
	pcfg.Password = a.cfg.PostgresPassword
	pcfg.DBName = a.cfg.PostgresDB
	pcfg.SSLMode = a.cfg.PostgresSSLMode

	pool, err := database.NewPostgresPool(ctx, &pcfg, a.logger)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	a.pool = pool

	migrations, err := fs.Sub(pgrepo.Migrations, "migrations")
	if err != nil {
		return nil, fmt.Errorf("open migrations: %w", err)
	}
	if err := database.RunMigrations(ctx, pool, migrations, a.logger); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	database.SetSlowQueryLogging(time.Duration(a.cfg.SlowQueryMillis)*time.Millisecond, a.logger)
	if err := database.RegisterPoolMetrics(prometheus.DefaultRegisterer, pool, serviceName); err != nil {
		a.logger.Warn("pool metrics not registered", slog.String("error", err.Error()))
	}

	h.Register("postgres", pool.Ping)
	return pgrepo.NewBasketRepository(pool), nil
}

// Run starts the HTTP server and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
			slog.String("store", a.cfg.Store),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		a.closeResources()
		return err
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
	}

	a.closeResources()

	if err := a.tracerShutdown(shutdownCtx); err != nil {
		a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
	}

	a.logger.Info("application shutdown complete")
	return nil
}

func (a *App) closeResources() {
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
		}
	}
	if a.rdb != nil {
		if err := a.rdb.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
}
