package config

import (
	"fmt"
	"net/url"
	"slices"
	"time"

	"github.com/XxvipoxX/ChaosAWS/internal/domain"
	pkgconfig "github.com/XxvipoxX/ChaosAWS/pkg/config"
	"github.com/XxvipoxX/ChaosAWS/pkg/database"
)

const defaultJWTSecret = "change-this-to-a-secure-secret"

// Mail backends.
const (
	MailBackendLog = "log"
	MailBackendSES = "ses"
)

// Payment gateway modes.
const (
	GatewaySimulated = "simulated"
	GatewayHTTP      = "http"
)

// Config holds all configuration for the membership service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort        int           `env:"HTTP_PORT" envDefault:"8000"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`

	// PostgreSQL
	PostgresHost    string        `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort    int           `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser    string        `env:"POSTGRES_USER" envDefault:"chaos"`
	PostgresPass    string        `env:"POSTGRES_PASSWORD" envDefault:"chaos_secret"`
	PostgresDB      string        `env:"POSTGRES_DB" envDefault:"chaos"`
	PostgresSSL     string        `env:"POSTGRES_SSL_MODE" envDefault:"disable"`
	DBMaxConns      int32         `env:"DB_MAX_CONNS" envDefault:"20"`
	DBMinConns      int32         `env:"DB_MIN_CONNS" envDefault:"2"`
	DBMaxConnLife   time.Duration `env:"DB_MAX_CONN_LIFETIME" envDefault:"1h"`
	DBMaxConnIdle   time.Duration `env:"DB_MAX_CONN_IDLE_TIME" envDefault:"30m"`
	SlowQueryMillis int           `env:"DB_SLOW_QUERY_MS" envDefault:"200"`

	// Redis
	RedisHost     string        `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort     int           `env:"REDIS_PORT" envDefault:"6379"`
	RedisPass     string        `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB       int           `env:"REDIS_DB" envDefault:"0"`
	RedisPoolSize int           `env:"REDIS_POOL_SIZE" envDefault:"10"`
	CartTTL       time.Duration `env:"CART_TTL" envDefault:"168h"`

	// Kafka
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`
	KafkaEnabled bool     `env:"KAFKA_ENABLED" envDefault:"false"`

	// Tracing
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`

	// Sessions
	JWTSecret   string        `env:"JWT_SECRET" envDefault:"change-this-to-a-secure-secret"`
	SessionTTL  time.Duration `env:"SESSION_TTL" envDefault:"24h"`
	RememberTTL time.Duration `env:"REMEMBER_ME_TTL" envDefault:"336h"`

	// Pricing
	StandardPrice  string `env:"PLAN_STANDARD_PRICE" envDefault:"9.99"`
	UltimatePrice  string `env:"PLAN_ULTIMATE_PRICE" envDefault:"19.99"`
	TaxBasisPoints int64  `env:"TAX_BASIS_POINTS" envDefault:"1600"`

	// Payment gateway
	GatewayMode    string        `env:"PAYMENT_GATEWAY_MODE" envDefault:"simulated"`
	GatewayURL     string        `env:"PAYMENT_GATEWAY_URL" envDefault:""`
	GatewayAPIKey  string        `env:"PAYMENT_GATEWAY_API_KEY" envDefault:""`
	GatewayTimeout time.Duration `env:"PAYMENT_GATEWAY_TIMEOUT" envDefault:"10s"`

	// Mail
	MailBackend      string `env:"MAIL_BACKEND" envDefault:"log"`
	MailFrom         string `env:"MAIL_FROM" envDefault:"noreply@chaoscompany.com"`
	MailFailSilently bool   `env:"MAIL_FAIL_SILENTLY" envDefault:"false"`
	SESRegion        string `env:"SES_REGION" envDefault:"us-east-1"`

	// Media
	MediaRoot     string `env:"MEDIA_ROOT" envDefault:"./media"`
	MediaURL      string `env:"MEDIA_URL" envDefault:"/media/"`
	StaticURL     string `env:"STATIC_URL" envDefault:"/static/"`
	PublicBaseURL string `env:"PUBLIC_BASE_URL" envDefault:"http://localhost:8000"`

	// CORS
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"http://localhost:3000" envSeparator:","`

	// Rate limiting, requests per minute per client
	RateLimitPerMinute int `env:"RATE_LIMIT_PER_MINUTE" envDefault:"120"`
	RateLimitBurst     int `env:"RATE_LIMIT_BURST" envDefault:"20"`
	AuthRatePerMinute  int `env:"AUTH_RATE_LIMIT_PER_MINUTE" envDefault:"10"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load chaos config: %w", err)
	}
	return cfg, nil
}

// Validate checks configuration invariants.
func (c *Config) Validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}

	// In non-development environments, require an explicitly set, strong JWT secret.
	if c.Environment != "development" {
		if c.JWTSecret == defaultJWTSecret {
			return fmt.Errorf("JWT_SECRET must be explicitly set via environment variable in %q mode", c.Environment)
		}
		if len(c.JWTSecret) < 32 {
			return fmt.Errorf("JWT_SECRET must be at least 32 characters long, got %d", len(c.JWTSecret))
		}
	}

	if c.SessionTTL <= 0 || c.RememberTTL <= 0 {
		return fmt.Errorf("session lifetimes must be positive")
	}
	if _, err := c.PlanPrices(); err != nil {
		return err
	}
	if c.TaxBasisPoints < 0 || c.TaxBasisPoints > 10000 {
		return fmt.Errorf("TAX_BASIS_POINTS out of range: %d", c.TaxBasisPoints)
	}

	if !slices.Contains([]string{MailBackendLog, MailBackendSES}, c.MailBackend) {
		return fmt.Errorf("unknown MAIL_BACKEND %q", c.MailBackend)
	}
	switch c.GatewayMode {
	case GatewaySimulated:
	case GatewayHTTP:
		if _, err := url.ParseRequestURI(c.GatewayURL); err != nil {
			return fmt.Errorf("PAYMENT_GATEWAY_URL must be a valid URL in %q mode: %w", c.GatewayMode, err)
		}
	default:
		return fmt.Errorf("unknown PAYMENT_GATEWAY_MODE %q", c.GatewayMode)
	}

	if _, err := url.Parse(c.PublicBaseURL); err != nil || c.PublicBaseURL == "" {
		return fmt.Errorf("invalid PUBLIC_BASE_URL %q", c.PublicBaseURL)
	}
	if c.RateLimitPerMinute < 1 || c.AuthRatePerMinute < 1 {
		return fmt.Errorf("rate limits must be at least 1 request per minute")
	}
	return nil
}

// PlanPrices returns the price in cents of every paid tier.
func (c *Config) PlanPrices() (map[domain.Tier]int64, error) {
	standard, err := domain.ParseAmount(c.StandardPrice)
	if err != nil {
		return nil, fmt.Errorf("PLAN_STANDARD_PRICE: %w", err)
	}
	ultimate, err := domain.ParseAmount(c.UltimatePrice)
	if err != nil {
		return nil, fmt.Errorf("PLAN_ULTIMATE_PRICE: %w", err)
	}
	if standard <= 0 || ultimate <= 0 {
		return nil, fmt.Errorf("plan prices must be positive")
	}
	return map[domain.Tier]int64{
		domain.TierStandard: standard,
		domain.TierUltimate: ultimate,
	}, nil
}

// IsDevelopment reports whether the service runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// Postgres returns the pool settings.
func (c *Config) Postgres() *database.PostgresConfig {
	return &database.PostgresConfig{
		Host:            c.PostgresHost,
		Port:            c.PostgresPort,
		User:            c.PostgresUser,
		Password:        c.PostgresPass,
		DBName:          c.PostgresDB,
		SSLMode:         c.PostgresSSL,
		MaxConns:        c.DBMaxConns,
		MinConns:        c.DBMinConns,
		MaxConnLifetime: c.DBMaxConnLife,
		MaxConnIdleTime: c.DBMaxConnIdle,
	}
}

// Redis returns the Redis connection settings.
func (c *Config) Redis() database.RedisConfig {
	return database.RedisConfig{
		Host:     c.RedisHost,
		Port:     c.RedisPort,
		Password: c.RedisPass,
		DB:       c.RedisDB,
		PoolSize: c.RedisPoolSize,
	}
}
