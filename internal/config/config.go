package config

import (
	"fmt"
	"net"
	"time"

	"github.com/utafrali/storefront/internal/service"
	pkgconfig "github.com/utafrali/storefront/pkg/config"
	"github.com/utafrali/storefront/pkg/database"
	"github.com/utafrali/storefront/pkg/tracing"
)

// ServiceName identifies this service in logs, metrics and traces.
const ServiceName = "storefront"

// Config holds all configuration for the storefront service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort int `env:"STOREFRONT_HTTP_PORT" envDefault:"8010"`

	// PostgreSQL
	PostgresHost string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser string `env:"POSTGRES_USER" envDefault:"storefront"`
	PostgresPass string `env:"POSTGRES_PASSWORD" envDefault:"storefront_secret"`
	PostgresDB   string `env:"POSTGRES_DB" envDefault:"storefront"`
	PostgresSSL  string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`

	// Database pool
	DBMaxConns            int32 `env:"DB_MAX_CONNS" envDefault:"20"`
	DBMinConns            int32 `env:"DB_MIN_CONNS" envDefault:"2"`
	DBMaxConnLifetimeMins int   `env:"DB_MAX_CONN_LIFETIME_MINUTES" envDefault:"60"`
	DBMaxConnIdleTimeMins int   `env:"DB_MAX_CONN_IDLE_TIME_MINUTES" envDefault:"15"`

	// Redis
	RedisHost     string `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort     int    `env:"REDIS_PORT" envDefault:"6379"`
	RedisPass     string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`
	RedisPoolSize int    `env:"REDIS_POOL_SIZE" envDefault:"20"`

	// MongoDB
	MongoURI string `env:"MONGO_URI" envDefault:"mongodb://localhost:27017"`
	MongoDB  string `env:"MONGO_DB" envDefault:"storefront"`

	// Kafka
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`

	// Cart
	CartTTLHours         int `env:"CART_TTL_HOURS" envDefault:"168"`
	CartMaxQtyPerLine    int `env:"CART_MAX_QTY_PER_LINE" envDefault:"100"`
	CartMergeMaxAttempts int `env:"CART_MERGE_MAX_ATTEMPTS" envDefault:"3"`

	// Browsing history and interests
	HistoryLimit     int     `env:"HISTORY_LIMIT" envDefault:"50"`
	ViewSignalWeight float64 `env:"VIEW_SIGNAL_WEIGHT" envDefault:"2"`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`

	// Pprof debug endpoints (IP allowlist in CIDR notation)
	PprofAllowedCIDRs []string `env:"PPROF_ALLOWED_CIDRS" envDefault:"10.0.0.0/8,172.16.0.0/12,192.168.0.0/16,127.0.0.0/8,::1/128" envSeparator:","`

	// Slow query logging
	SlowQueryThresholdMs int `env:"LOG_SLOW_QUERY_MS" envDefault:"500"`
}

// Load reads configuration from a local .env file, if present, and the
// environment.
func Load() (*Config, error) {
	if err := pkgconfig.LoadDotEnv(); err != nil {
		return nil, fmt.Errorf("load storefront config: %w", err)
	}
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load storefront config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate checks configuration invariants.
func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if c.PostgresHost == "" {
		return fmt.Errorf("POSTGRES_HOST is required")
	}
	if c.PostgresUser == "" {
		return fmt.Errorf("POSTGRES_USER is required")
	}
	if c.MongoURI == "" {
		return fmt.Errorf("MONGO_URI is required")
	}
	if len(c.KafkaBrokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required")
	}
	if c.CartTTLHours < 1 {
		return fmt.Errorf("CART_TTL_HOURS must be positive, got %d", c.CartTTLHours)
	}
	if c.CartMaxQtyPerLine < 0 {
		return fmt.Errorf("CART_MAX_QTY_PER_LINE must not be negative, got %d", c.CartMaxQtyPerLine)
	}
	if c.CartMergeMaxAttempts < 1 {
		return fmt.Errorf("CART_MERGE_MAX_ATTEMPTS must be at least 1, got %d", c.CartMergeMaxAttempts)
	}
	if c.HistoryLimit < 1 {
		return fmt.Errorf("HISTORY_LIMIT must be at least 1, got %d", c.HistoryLimit)
	}
	if c.ViewSignalWeight < 0 {
		return fmt.Errorf("VIEW_SIGNAL_WEIGHT must not be negative, got %f", c.ViewSignalWeight)
	}
	if c.OTELSampleRate < 0 || c.OTELSampleRate > 1.0 {
		return fmt.Errorf("OTEL_SAMPLE_RATE must be between 0.0 and 1.0, got %f", c.OTELSampleRate)
	}
	for _, cidr := range c.PprofAllowedCIDRs {
		if _, _, err := net.ParseCIDR(cidr); err != nil {
			return fmt.Errorf("invalid PPROF_ALLOWED_CIDRS entry %q: %w", cidr, err)
		}
	}
	return nil
}

// Postgres returns the pool settings.
func (c *Config) Postgres() database.PostgresConfig {
	return database.PostgresConfig{
		Host:            c.PostgresHost,
		Port:            c.PostgresPort,
		User:            c.PostgresUser,
		Password:        c.PostgresPass,
		DBName:          c.PostgresDB,
		SSLMode:         c.PostgresSSL,
		MaxConns:        c.DBMaxConns,
		MinConns:        c.DBMinConns,
		MaxConnLifetime: time.Duration(c.DBMaxConnLifetimeMins) * time.Minute,
		MaxConnIdleTime: time.Duration(c.DBMaxConnIdleTimeMins) * time.Minute,
	}
}

// Redis returns the Redis client settings.
func (c *Config) Redis() database.RedisConfig {
	return database.RedisConfig{
		Host:     c.RedisHost,
		Port:     c.RedisPort,
		Password: c.RedisPass,
		DB:       c.RedisDB,
		PoolSize: c.RedisPoolSize,
	}
}

// Mongo returns the MongoDB connection settings.
func (c *Config) Mongo() database.MongoConfig {
	return database.MongoConfig{
		URI:      c.MongoURI,
		Database: c.MongoDB,
	}
}

// Cart returns the cart service settings.
func (c *Config) Cart() service.CartConfig {
	cfg := service.DefaultCartConfig()
	cfg.TTL = time.Duration(c.CartTTLHours) * time.Hour
	cfg.MaxQuantityPerLine = c.CartMaxQtyPerLine
	cfg.MergeMaxAttempts = c.CartMergeMaxAttempts
	return cfg
}

// History returns the browsing history settings.
func (c *Config) History() service.HistoryConfig {
	return service.HistoryConfig{
		Limit:            c.HistoryLimit,
		ViewSignalWeight: c.ViewSignalWeight,
	}
}

// Tracing returns the OpenTelemetry settings.
func (c *Config) Tracing(version string) tracing.Config {
	return tracing.Config{
		ServiceName:    ServiceName,
		ServiceVersion: version,
		Environment:    c.Environment,
		OTLPEndpoint:   c.OTELEndpoint,
		SampleRate:     c.OTELSampleRate,
		Enabled:        c.OTELEnabled,
	}
}

// SlowQueryThreshold returns the duration above which queries are logged.
func (c *Config) SlowQueryThreshold() time.Duration {
	return time.Duration(c.SlowQueryThresholdMs) * time.Millisecond
}
