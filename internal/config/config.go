// Package config provides viper-backed configuration loading and
// validation for the collabd server.
package config

import (
	"errors"
	"time"
)

// Default configuration values.
const (
	defaultPort                 = 8080
	defaultHost                 = "0.0.0.0"
	maxPort                     = 65535
	defaultSessionTTLSec        = 45
	defaultPresenceInactiveMS   = 30_000
	defaultSessionIdleMS        = 300_000
	defaultSerializerMaxRetries = 5
	defaultSerializerBackoffMS  = 50
	defaultQueueHighWatermark   = 256
)

// Sentinel validation errors.
var (
	ErrInvalidPort           = errors.New("invalid server port")
	ErrInvalidSessionTTL     = errors.New("session_ttl must be positive")
	ErrInvalidPresenceWindow = errors.New("presence_inactive_ms must be positive")
	ErrInvalidSessionIdle    = errors.New("session_idle_ms must be positive")
	ErrInvalidMaxRetries     = errors.New("serializer_max_retries must be positive")
	ErrInvalidInitialBackoff = errors.New("serializer_initial_backoff_ms must be positive")
	ErrMissingJWTSecret      = errors.New("jwt_secret is required")
	ErrInvalidQueueWatermark = errors.New("serializer_queue_high_watermark must be positive")
	ErrInvalidPostgresDSN    = errors.New("postgres.dsn is required when store backend is postgres")
	ErrInvalidRedisAddr      = errors.New("redis.addr is required when shared coordination is enabled")
	ErrInvalidStoreBackend   = errors.New("collab.store_backend must be \"memory\" or \"postgres\"")
)

// Store backend selectors for CollabConfig.StoreBackend.
const (
	StoreBackendMemory   = "memory"
	StoreBackendPostgres = "postgres"
)

// Config holds all configuration for collabd.
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Collab        CollabConfig        `mapstructure:"collab"`
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Logging       LoggingConfig       `mapstructure:"logging"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

// ServerConfig holds HTTP/WebSocket server settings.
type ServerConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	FrontendOrigin string        `mapstructure:"frontend_origin"`
	JWTSecret      string        `mapstructure:"jwt_secret"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
}

// CollabConfig holds the collaboration knobs: which subsystems are
// routed through the shared coordination-bus backend versus kept
// in-process, and the TTL/retry knobs for sessions, presence, and the
// per-project serializer.
type CollabConfig struct {
	StoreBackend                 string `mapstructure:"store_backend"`
	UseSharedSessions            bool   `mapstructure:"use_shared_sessions"`
	UseSharedSockets             bool   `mapstructure:"use_shared_sockets"`
	UseSharedOrdering            bool   `mapstructure:"use_shared_ordering"`
	SessionTTLSec                int    `mapstructure:"session_ttl"`
	PresenceInactiveMS           int    `mapstructure:"presence_inactive_ms"`
	SessionIdleMS                int    `mapstructure:"session_idle_ms"`
	SerializerMaxRetries         int    `mapstructure:"serializer_max_retries"`
	SerializerInitialBackoffMS   int    `mapstructure:"serializer_initial_backoff_ms"`
	SerializerQueueHighWatermark int    `mapstructure:"serializer_queue_high_watermark"`
}

// PostgresConfig holds Snapshot Store connection settings, shaped after
// jordigilh-kubernaut's internal/database connection pool config.
type PostgresConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
}

// RedisConfig holds Coordination Bus shared backend settings.
type RedisConfig struct {
	Addr         string `mapstructure:"addr"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	StreamMaxLen int64  `mapstructure:"stream_max_len"`
}

// LoggingConfig holds logging-specific configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ObservabilityConfig holds OTel/Prometheus settings.
type ObservabilityConfig struct {
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	OTLPInsecure bool    `mapstructure:"otlp_insecure"`
	SampleRatio  float64 `mapstructure:"sample_ratio"`
	MetricsAddr  string  `mapstructure:"metrics_addr"`
}

// Validate checks Config invariants and returns the first error found.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > maxPort {
		return ErrInvalidPort
	}

	if c.Server.JWTSecret == "" {
		return ErrMissingJWTSecret
	}

	if c.Collab.SessionTTLSec <= 0 {
		return ErrInvalidSessionTTL
	}

	if c.Collab.PresenceInactiveMS <= 0 {
		return ErrInvalidPresenceWindow
	}

	if c.Collab.SessionIdleMS <= 0 {
		return ErrInvalidSessionIdle
	}

	if c.Collab.SerializerMaxRetries <= 0 {
		return ErrInvalidMaxRetries
	}

	if c.Collab.SerializerInitialBackoffMS <= 0 {
		return ErrInvalidInitialBackoff
	}

	if c.Collab.SerializerQueueHighWatermark <= 0 {
		return ErrInvalidQueueWatermark
	}

	switch c.Collab.StoreBackend {
	case StoreBackendMemory:
		// no DSN required
	case StoreBackendPostgres:
		if c.Postgres.DSN == "" {
			return ErrInvalidPostgresDSN
		}
	default:
		return ErrInvalidStoreBackend
	}

	if (c.Collab.UseSharedSessions || c.Collab.UseSharedSockets || c.Collab.UseSharedOrdering) && c.Redis.Addr == "" {
		return ErrInvalidRedisAddr
	}

	return nil
}

// SessionTTL returns the shared-session TTL as a [time.Duration].
func (c CollabConfig) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLSec) * time.Second
}

// PresenceInactive returns the presence eviction threshold as a [time.Duration].
func (c CollabConfig) PresenceInactive() time.Duration {
	return time.Duration(c.PresenceInactiveMS) * time.Millisecond
}

// SessionIdle returns the session inactivity cutoff as a [time.Duration].
func (c CollabConfig) SessionIdle() time.Duration {
	return time.Duration(c.SessionIdleMS) * time.Millisecond
}

// SerializerInitialBackoff returns the serializer's base retry delay.
func (c CollabConfig) SerializerInitialBackoff() time.Duration {
	return time.Duration(c.SerializerInitialBackoffMS) * time.Millisecond
}
