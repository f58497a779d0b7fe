// Package config loads and persists Spuro configuration. Sources merge in
// precedence order: system file < user file < project file < environment
// variables (SPURO_ prefix).
package config

import "time"

// Config is the root Spuro configuration.
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Server   ServerConfig   `mapstructure:"server"`
	Sweep    SweepConfig    `mapstructure:"sweep"`
	Watch    WatchConfig    `mapstructure:"watch"`
	Client   ClientConfig   `mapstructure:"client"`
	Log      LogConfig      `mapstructure:"log"`
}

// DatabaseConfig configures the SQLite entity store.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// ServerConfig configures the Spuro HTTP server.
type ServerConfig struct {
	Port           *int     `mapstructure:"port"` // nil = DefaultServerPort; 0 is invalid
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	CallerHeader   string   `mapstructure:"caller_header"` // header carrying caller identity
	// RequestTimeoutSeconds bounds one request end to end. The engine has
	// no timeout policy of its own; this is the HTTP layer's.
	RequestTimeoutSeconds int   `mapstructure:"request_timeout_seconds"`
	MaxPayloadBytes       int64 `mapstructure:"max_payload_bytes"`
}

// SweepConfig configures the background expiry sweeper.
type SweepConfig struct {
	IntervalSeconds int `mapstructure:"interval_seconds"` // 0 = default, <0 = disabled
}

// WatchConfig configures event delivery to watch subscribers.
type WatchConfig struct {
	// DeliveryRatePerSecond caps per-filter delivery. 0 = unlimited.
	DeliveryRatePerSecond float64 `mapstructure:"delivery_rate_per_second"`
	DeliveryBurst         int     `mapstructure:"delivery_burst"`
}

// ClientConfig configures the CLI's HTTP client.
type ClientConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	Caller         string `mapstructure:"caller"` // identity sent with mutations
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// LogConfig configures structured logging output.
type LogConfig struct {
	JSON  bool   `mapstructure:"json"`
	Level string `mapstructure:"level"` // debug, info, warn, error
}

// Server constants
const (
	DefaultServerPort     = 8090
	DefaultCallerHeader   = "X-Spuro-Caller"
	DefaultRequestTimeout = 30 * time.Second
	DefaultMaxPayload     = 16 << 20 // 16 MiB
)

// File system constants
const (
	DefaultDirPermissions  = 0755
	DefaultFilePermissions = 0644
)

// Port returns the effective server port.
func (c ServerConfig) EffectivePort() int {
	if c.Port == nil {
		return DefaultServerPort
	}
	return *c.Port
}

// RequestTimeout returns the effective per-request timeout.
func (c ServerConfig) RequestTimeout() time.Duration {
	if c.RequestTimeoutSeconds <= 0 {
		return DefaultRequestTimeout
	}
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// Interval returns the effective sweep interval; ok is false when sweeping
// is disabled.
func (c SweepConfig) Interval() (d time.Duration, ok bool) {
	if c.IntervalSeconds < 0 {
		return 0, false
	}
	if c.IntervalSeconds == 0 {
		return 0, true // storage package default applies
	}
	return time.Duration(c.IntervalSeconds) * time.Second, true
}

// Timeout returns the effective client request timeout.
func (c ClientConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return DefaultRequestTimeout
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}
