// Package config provides centralized configuration management for the application.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import "time"

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Auth       AuthConfig
	Upload     UploadConfig
	Validation ValidationConfig
	CORS       CORSConfig
	Logging    LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8000)
	Port int `env:"SERVER_PORT" default:"8000"`

	// ReadTimeout is the maximum duration for reading request body (default: 30s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"30s"`

	// WriteTimeout is the maximum duration for writing response (default: 60s)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"60s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string (required)
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL" envAlt:"DB_URL" required:"true"`

	// MaxConns is the maximum number of connections in the pool (default: 10)
	MaxConns int `env:"DB_MAX_CONNS" default:"10"`

	// MinConns is the minimum number of connections to keep open (default: 2)
	MinConns int `env:"DB_MIN_CONNS" default:"2"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// AuthConfig holds the Basic authentication credentials for the API.
// A single username/password pair guards every /api/expenses endpoint.
type AuthConfig struct {
	// Username is the Basic auth user (required)
	Username string `env:"AUTH_USERNAME" required:"true"`

	// Password is the Basic auth password (required)
	Password string `env:"AUTH_PASSWORD" required:"true"`

	// Realm is sent in the WWW-Authenticate challenge
	Realm string `env:"AUTH_REALM" default:"Access to the site"`
}

// UploadConfig holds CSV upload and archive settings.
type UploadConfig struct {
	// Dir is the directory where original CSV files are archived (default: uploads)
	Dir string `env:"UPLOAD_DIR" default:"uploads"`

	// MaxFileSize is the maximum allowed file size in bytes (default: 10MiB)
	MaxFileSize int64 `env:"UPLOAD_MAX_FILE_SIZE" default:"10485760"`

	// MaxConcurrent is the maximum number of parallel uploads (default: 5)
	MaxConcurrent int `env:"UPLOAD_MAX_CONCURRENT" default:"5"`

	// MaxWaitTime is how long to wait for an upload slot (default: 30s)
	MaxWaitTime time.Duration `env:"UPLOAD_MAX_WAIT_TIME" default:"30s"`

	// TempMaxAge is how old an abandoned temp file must be before the
	// janitor removes it (default: 1h)
	TempMaxAge time.Duration `env:"UPLOAD_TEMP_MAX_AGE" default:"1h"`

	// CleanupInterval is how often the archive janitor runs (default: 1h)
	CleanupInterval time.Duration `env:"UPLOAD_CLEANUP_INTERVAL" default:"1h"`
}

// ValidationConfig holds the optional strengthened CSV checks.
// A column name left empty disables that check.
type ValidationConfig struct {
	// AmountColumn is the header name whose cells must parse as numbers (default: 金額)
	AmountColumn string `env:"VALIDATE_AMOUNT_COLUMN" default:"金額"`

	// DateColumn is the header name whose cells must parse as dates (default: 日付)
	DateColumn string `env:"VALIDATE_DATE_COLUMN" default:"日付"`
}

// CORSConfig holds cross-origin settings for the static frontend.
type CORSConfig struct {
	// AllowedOrigins is a comma-separated origin allowlist
	AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" default:"http://127.0.0.1:5500,http://localhost:5500,http://127.0.0.1:8000"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	if c.Host == "" {
		return ":" + itoa(c.Port)
	}
	return c.Host + ":" + itoa(c.Port)
}

// itoa converts an int to string without importing strconv in this file.
func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	var b [20]byte
	n := len(b)
	neg := i < 0
	if neg {
		i = -i
	}
	for i > 0 {
		n--
		b[n] = byte('0' + i%10)
		i /= 10
	}
	if neg {
		n--
		b[n] = '-'
	}
	return string(b[n:])
}
