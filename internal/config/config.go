// Package config loads the service configuration from environment variables
// and the outlet settings file. Every value has a default where one makes
// sense; Load fails on the first start with a list of every bad setting.
package config

import (
	"net"
	"strconv"
	"time"
)

// Config is the full service configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Store    StoreConfig
	Import   ImportConfig
	Outlet   OutletConfig
	Rate     RateLimitConfig
	Security SecurityConfig
	Logging  LoggingConfig
	Metrics  MetricsConfig
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`
	Port int    `env:"SERVER_PORT" default:"8080" validate:"min=1,max=65535"`

	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"30s" validate:"min=0s"`
	// WriteTimeout has to cover a whole synchronous batch.
	WriteTimeout    time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"15m" validate:"min=0s"`
	IdleTimeout     time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s" validate:"min=0s"`
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s" validate:"gt=0s"`
}

// DatabaseConfig configures the pgx pool. Only read by the postgres driver.
type DatabaseConfig struct {
	// URL falls back to DB_URL.
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	MaxConns        int           `env:"DB_MAX_CONNS" default:"20"`
	MinConns        int           `env:"DB_MIN_CONNS" default:"4"`
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// StoreConfig selects the persistence backend. The memory driver is seeded
// from the settings file and keeps nothing across restarts.
type StoreConfig struct {
	Driver string `env:"STORE_DRIVER" default:"postgres" validate:"oneof=postgres memory"`
}

// ImportConfig tunes batch processing.
type ImportConfig struct {
	// Strategy is used when a request does not pick one.
	Strategy  string `env:"IMPORT_STRATEGY" default:"batched" validate:"oneof=batched immediate"`
	BatchSize int    `env:"IMPORT_BATCH_SIZE" default:"500" validate:"min=1"`
	// Workers is the number of rows reconciled concurrently.
	Workers int `env:"IMPORT_WORKERS" default:"1" validate:"min=1,max=64"`

	Timeout       time.Duration `env:"IMPORT_TIMEOUT" default:"10m" validate:"gt=0s"`
	MaxConcurrent int           `env:"IMPORT_MAX_CONCURRENT" default:"2" validate:"min=1"`
	// MaxWaitTime is how long a request queues for a batch slot.
	MaxWaitTime time.Duration `env:"IMPORT_MAX_WAIT_TIME" default:"30s" validate:"gt=0s"`
	MaxBodySize int64         `env:"IMPORT_MAX_BODY_SIZE" default:"52428800" validate:"min=1"`
}

// OutletConfig holds the engine defaults that the settings file can
// override per store or website.
type OutletConfig struct {
	InviteCode      string `env:"OUTLET_INVITE_CODE"`
	DefaultZone     string `env:"OUTLET_DEFAULT_ZONE"`
	CustomerGroupID int64  `env:"OUTLET_CUSTOMER_GROUP_ID" default:"1" validate:"min=0"`
	DefaultCountry  string `env:"OUTLET_DEFAULT_COUNTRY" validate:"omitempty,len=2"`

	// NameStripPattern is a regular expression removed from person names.
	NameStripPattern string `env:"OUTLET_NAME_STRIP_PATTERN"`

	// ApproverID is used when a request names no approver.
	ApproverID int64 `env:"OUTLET_APPROVER_ID" default:"0" validate:"min=0"`

	// InitialCreditLimit is the amount of a newly opened company credit line.
	InitialCreditLimit string `env:"OUTLET_INITIAL_CREDIT_LIMIT" default:"0" validate:"amount"`

	SettingsFile string `env:"OUTLET_SETTINGS_FILE"`
}

// RateLimitConfig limits requests per client IP.
type RateLimitConfig struct {
	Enabled           bool `env:"RATE_LIMIT_ENABLED" default:"true"`
	RequestsPerMinute int  `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100"`
}

// SecurityConfig controls proxy trust and API key auth.
type SecurityConfig struct {
	// TrustedProxies lists CIDRs or addresses whose X-Forwarded-For is honored.
	TrustedProxies []string `env:"TRUSTED_PROXIES"`
	RequireAPIKey  bool     `env:"REQUIRE_API_KEY" default:"false"`
	APIKeys        []string `env:"API_KEYS"`
}

// LoggingConfig selects the slog handler.
type LoggingConfig struct {
	Level  string `env:"LOG_LEVEL" default:"info" validate:"loglevel"`
	Format string `env:"LOG_FORMAT" default:"text" validate:"logformat"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled   bool   `env:"METRICS_ENABLED" default:"true"`
	Path      string `env:"METRICS_PATH" default:"/metrics" validate:"startswith=/"`
	Namespace string `env:"METRICS_NAMESPACE" default:"outletsync"`
}

// Addr is the listen address.
func (c *ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
