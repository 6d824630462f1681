package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/XxvipoxX/ChaosAWS/internal/auth"
	"github.com/XxvipoxX/ChaosAWS/internal/config"
	"github.com/XxvipoxX/ChaosAWS/internal/event"
	"github.com/XxvipoxX/ChaosAWS/internal/gateway"
	"github.com/XxvipoxX/ChaosAWS/internal/gateway/httpgw"
	"github.com/XxvipoxX/ChaosAWS/internal/gateway/simulated"
	handler "github.com/XxvipoxX/ChaosAWS/internal/handler/http"
	"github.com/XxvipoxX/ChaosAWS/internal/mailer"
	"github.com/XxvipoxX/ChaosAWS/internal/metrics"
	"github.com/XxvipoxX/ChaosAWS/internal/repository/postgres"
	redisrepo "github.com/XxvipoxX/ChaosAWS/internal/repository/redis"
	"github.com/XxvipoxX/ChaosAWS/internal/service"
	"github.com/XxvipoxX/ChaosAWS/internal/storage/local"
	"github.com/XxvipoxX/ChaosAWS/migrations"
	"github.com/XxvipoxX/ChaosAWS/pkg/database"
	"github.com/XxvipoxX/ChaosAWS/pkg/health"
	"github.com/XxvipoxX/ChaosAWS/pkg/httpclient"
	pkgkafka "github.com/XxvipoxX/ChaosAWS/pkg/kafka"
	"github.com/XxvipoxX/ChaosAWS/pkg/tracing"
)

const serviceName = "chaos"

// App wires together all dependencies and runs the membership service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	redis          *redis.Client
	producer       *pkgkafka.Producer
	httpServer     *http.Server
	tracerShutdown func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	prices, err := cfg.PlanPrices()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Initialize OpenTelemetry tracing.
	tracerShutdown, err := tracing.InitTracer(ctx, tracing.Config{
		ServiceName:    serviceName,
		ServiceVersion: "0.1.0",
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTELEndpoint,
		SampleRate:     cfg.OTELSampleRate,
		Enabled:        cfg.OTELEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	// Initialize PostgreSQL connection pool.
	pool, err := database.NewPostgresPool(ctx, cfg.Postgres(), logger)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	logger.Info("connected to PostgreSQL",
		slog.String("host", cfg.PostgresHost),
		slog.Int("port", cfg.PostgresPort),
		slog.String("database", cfg.PostgresDB),
	)
	if err := database.RegisterPoolMetrics(prometheus.DefaultRegisterer, pool, serviceName); err != nil {
		logger.Warn("pool metrics not registered", slog.String("error", err.Error()))
	}

	// Run database migrations.
	if err := database.RunMigrations(ctx, pool, migrations.FS, logger); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("database migrations completed")

	// Configure slow query logging.
	if cfg.SlowQueryMillis > 0 {
		database.SetSlowQueryLogging(time.Duration(cfg.SlowQueryMillis)*time.Millisecond, logger)
	}

	// Initialize Redis for carts.
	redisClient, err := database.NewRedisClient(ctx, cfg.Redis())
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	logger.Info("connected to Redis", slog.String("addr", cfg.Redis().Addr()))

	// Initialize Kafka producer. Events are optional.
	var (
		producer      *pkgkafka.Producer
		eventProducer *event.Producer
	)
	if cfg.KafkaEnabled {
		producer = pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
		eventProducer = event.NewProducer(producer, logger)
		logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))
	}

	sender, err := newMailSender(ctx, cfg, logger)
	if err != nil {
		_ = redisClient.Close()
		pool.Close()
		return nil, err
	}
	mail := mailer.New(sender, cfg.MailFailSilently, logger, mailer.WithFailureHook(metrics.MailFailures.Inc))

	files, err := local.New(cfg.MediaRoot)
	if err != nil {
		_ = redisClient.Close()
		pool.Close()
		return nil, fmt.Errorf("open media root: %w", err)
	}

	// Build the dependency graph.
	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.SessionTTL, cfg.RememberTTL)
	accountRepo := postgres.NewAccountRepository(pool)
	orderRepo := postgres.NewOrderRepository(pool)
	cartStore := redisrepo.NewCartStore(redisClient, cfg.CartTTL)

	carts := service.NewCartService(cartStore, prices, cfg.TaxBasisPoints, logger)
	svcs := handler.Services{
		Accounts: service.NewAccountService(accountRepo, orderRepo, carts, files, jwtManager, eventProducer, cfg.MediaURL, cfg.StaticURL, logger),
		Carts:    carts,
		Orders:   service.NewOrderService(orderRepo, accountRepo, carts, newProvider(cfg, logger), eventProducer, logger),
		Resets:   service.NewPasswordResetService(accountRepo, mail, eventProducer, cfg.PublicBaseURL, logger),
	}

	// Health checks.
	healthHandler := health.NewHandler()
	healthHandler.RegisterCritical("postgres", func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	healthHandler.RegisterNonCritical("redis", func(ctx context.Context) error {
		return redisClient.Ping(ctx).Err()
	})
	if producer != nil {
		healthHandler.RegisterNonCritical("kafka", func(ctx context.Context) error {
			return producer.Ping(ctx)
		})
	}

	// HTTP router.
	router := handler.NewRouter(svcs, jwtManager, healthHandler, logger, handler.RouterConfig{
		CORS: handler.CORSConfig{
			AllowedOrigins: cfg.CORSAllowedOrigins,
			Environment:    cfg.Environment,
		},
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		RateLimitBurst:     cfg.RateLimitBurst,
		AuthRatePerMinute:  cfg.AuthRatePerMinute,
		MediaRoot:          files.Root(),
	})

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &App{
		cfg:            cfg,
		logger:         logger,
		pool:           pool,
		redis:          redisClient,
		producer:       producer,
		httpServer:     httpServer,
		tracerShutdown: tracerShutdown,
	}, nil
}

func newMailSender(ctx context.Context, cfg *config.Config, logger *slog.Logger) (mailer.Sender, error) {
	switch cfg.MailBackend {
	case config.MailBackendSES:
		sender, err := mailer.NewSESSender(ctx, cfg.SESRegion, cfg.MailFrom)
		if err != nil {
			return nil, fmt.Errorf("init SES sender: %w", err)
		}
		logger.Info("mail backend: SES", slog.String("region", cfg.SESRegion))
		return sender, nil
	default:
		logger.Info("mail backend: log")
		return mailer.NewLogSender(logger), nil
	}
}

func newProvider(cfg *config.Config, logger *slog.Logger) gateway.Provider {
	if cfg.GatewayMode == config.GatewayHTTP {
		clientCfg := httpclient.DefaultConfig()
		clientCfg.Timeout = cfg.GatewayTimeout
		logger.Info("payment gateway: http", slog.String("url", cfg.GatewayURL))
		return httpgw.NewProvider(cfg.GatewayURL, cfg.GatewayAPIKey, clientCfg, logger)
	}
	logger.Info("payment gateway: simulated")
	return simulated.NewProvider()
}

// Run starts the HTTP server and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		return err
	}

	return a.Shutdown()
}

// Shutdown stops all components: the HTTP server first so in-flight
// requests drain, then the tracer, Kafka, Redis and PostgreSQL.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	httpCtx, httpCancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer httpCancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	if a.tracerShutdown != nil {
		tracerCtx, tracerCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer tracerCancel()
		if err := a.tracerShutdown(tracerCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	if err := a.redis.Close(); err != nil {
		a.logger.Error("redis close error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	a.pool.Close()

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}
