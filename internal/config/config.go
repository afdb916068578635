// Package config provides centralized configuration management for the application.
// It loads configuration from an optional YAML file and environment variables with
// sensible defaults, and validates all settings on startup to fail fast on
// misconfiguration.
package config

import (
	"net"
	"strconv"
	"time"
)

// Config holds all application configuration.
// Every setting can be configured via environment variables; the YAML file named by
// STARTABLE_CONFIG is applied first and environment variables override it.
type Config struct {
	Server   ServerConfig    `yaml:"server"`
	Database DatabaseConfig  `yaml:"database"`
	Parse    ParseConfig     `yaml:"parse"`
	Upload   UploadConfig    `yaml:"upload"`
	Rate     RateLimitConfig `yaml:"rate"`
	Security SecurityConfig  `yaml:"security"`
	Logging  LoggingConfig   `yaml:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0" yaml:"host"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080" yaml:"port"`

	// ReadTimeout is the maximum duration for reading the request body (default: 30s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"30s" yaml:"read_timeout"`

	// WriteTimeout is the maximum duration for writing the response (default: 60s)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"60s" yaml:"write_timeout"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s" yaml:"idle_timeout"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s" yaml:"shutdown_timeout"`

	// RequestTimeout is the middleware timeout for requests (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s" yaml:"request_timeout"`
}

// DatabaseConfig holds database connection settings.
// Persistence is disabled when URL is empty.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string.
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL" envAlt:"DB_URL" yaml:"url"`

	// MaxConns is the maximum number of connections in the pool (default: 10)
	MaxConns int `env:"DB_MAX_CONNS" default:"10" yaml:"max_conns"`

	// MinConns is the minimum number of connections to keep open (default: 2)
	MinConns int `env:"DB_MIN_CONNS" default:"2" yaml:"min_conns"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h" yaml:"max_conn_lifetime"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m" yaml:"max_conn_idle_time"`

	// EnsureSchema creates the block tables on startup (default: true)
	EnsureSchema bool `env:"DB_ENSURE_SCHEMA" default:"true" yaml:"ensure_schema"`

	// RetentionDays deletes stored parses older than this; 0 keeps them forever
	RetentionDays int `env:"DB_RETENTION_DAYS" default:"0" yaml:"retention_days"`

	// RetentionBatchSize is the number of parses deleted per statement (default: 500)
	RetentionBatchSize int `env:"DB_RETENTION_BATCH_SIZE" default:"500" yaml:"retention_batch_size"`

	// RetentionInterval is how often the retention job runs (default: 24h)
	RetentionInterval time.Duration `env:"DB_RETENTION_INTERVAL" default:"24h" yaml:"retention_interval"`
}

// Enabled reports whether a database is configured.
func (c *DatabaseConfig) Enabled() bool {
	return c.URL != ""
}

// ParseConfig holds the defaults applied to every parse request.
type ParseConfig struct {
	// Mode is the issue policy: lenient, strict-block or strict (default: lenient)
	Mode string `env:"PARSE_MODE" default:"lenient" yaml:"mode"`

	// Output is the table payload shape: table, jsondata or cellgrid (default: table)
	Output string `env:"PARSE_OUTPUT" default:"table" yaml:"output"`

	// Separator is the CSV field separator (default: ;)
	Separator string `env:"PARSE_SEPARATOR" default:";" yaml:"separator"`

	// Charset is the CSV text encoding; empty means UTF-8
	Charset string `env:"PARSE_CHARSET" yaml:"charset"`

	// CommentPrefix marks comment rows (default: #)
	CommentPrefix string `env:"PARSE_COMMENT_PREFIX" default:"#" yaml:"comment_prefix"`

	// DestinationRow reads table destinations from the row after the name row
	DestinationRow bool `env:"PARSE_DESTINATION_ROW" default:"false" yaml:"destination_row"`

	// KeepBlank emits blank blocks for comment and filler rows
	KeepBlank bool `env:"PARSE_KEEP_BLANK" default:"false" yaml:"keep_blank"`
}

// UploadConfig holds input handling limits.
type UploadConfig struct {
	// MaxFileSize is the maximum allowed input size in bytes (default: 100MB)
	MaxFileSize int64 `env:"UPLOAD_MAX_FILE_SIZE" default:"104857600" yaml:"max_file_size"`

	// MaxConcurrent is the maximum number of parallel parses (default: 5)
	MaxConcurrent int `env:"UPLOAD_MAX_CONCURRENT" default:"5" yaml:"max_concurrent"`

	// MaxWaitTime is how long to wait for a parse slot (default: 30s)
	MaxWaitTime time.Duration `env:"UPLOAD_MAX_WAIT_TIME" default:"30s" yaml:"max_wait_time"`

	// Timeout is the maximum duration for a single parse (default: 5m)
	Timeout time.Duration `env:"UPLOAD_TIMEOUT" default:"5m" yaml:"timeout"`
}

// RateLimitConfig holds rate limiting settings per time window.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true" yaml:"enabled"`

	// RequestsPerMinute is the rate limit per IP (default: 100)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100" yaml:"requests_per_minute"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES" yaml:"trusted_proxies"`

	// RequireAPIKey rejects API requests without a valid X-API-Key header (default: false)
	RequireAPIKey bool `env:"REQUIRE_API_KEY" default:"false" yaml:"require_api_key"`

	// APIKeys is a comma-separated list of accepted API keys
	APIKeys []string `env:"API_KEYS" yaml:"api_keys"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info" yaml:"level"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text" yaml:"format"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
