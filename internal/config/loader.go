package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// configName is the config file name without extension.
const configName = "collabd"

// configType is the config file format.
const configType = "yaml"

// envPrefix is the environment variable prefix for collabd settings.
const envPrefix = "COLLABD"

// envKeySeparator is the nested key separator in environment variable names.
const envKeySeparator = "_"

// LoadConfig loads configuration from file, env vars, and defaults.
// If configPath is non-empty, it is used as the explicit config file path.
// Otherwise, the config file is searched in CWD, /etc/collabd, and $HOME.
// With no explicit path, a config file missing from the search paths is
// not an error and defaults are used; an explicit path that cannot be
// read is an error.
func LoadConfig(configPath string) (*Config, error) {
	viperCfg := viper.New()

	applyDefaults(viperCfg)

	viperCfg.SetConfigType(configType)
	viperCfg.SetEnvPrefix(envPrefix)
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", envKeySeparator))
	viperCfg.AutomaticEnv()

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName(configName)
		viperCfg.AddConfigPath(".")
		viperCfg.AddConfigPath("/etc/collabd")

		home, err := os.UserHomeDir()
		if err == nil {
			viperCfg.AddConfigPath(home)
		}
	}

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFound) {
			return nil, fmt.Errorf("read config: %w", readErr)
		}
	}

	var cfg Config

	unmarshalErr := viperCfg.Unmarshal(&cfg)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("unmarshal config: %w", unmarshalErr)
	}

	validateErr := cfg.Validate()
	if validateErr != nil {
		return nil, fmt.Errorf("validate config: %w", validateErr)
	}

	return &cfg, nil
}

func applyDefaults(viperCfg *viper.Viper) {
	// Keys without a meaningful default still get registered with an
	// empty one, so AutomaticEnv can see them during Unmarshal.
	viperCfg.SetDefault("server.host", defaultHost)
	viperCfg.SetDefault("server.port", defaultPort)
	viperCfg.SetDefault("server.jwt_secret", "")
	viperCfg.SetDefault("server.frontend_origin", "")
	viperCfg.SetDefault("server.read_timeout", "30s")
	viperCfg.SetDefault("server.write_timeout", "30s")
	viperCfg.SetDefault("server.idle_timeout", "60s")

	viperCfg.SetDefault("collab.store_backend", StoreBackendPostgres)
	viperCfg.SetDefault("collab.use_shared_sessions", false)
	viperCfg.SetDefault("collab.use_shared_sockets", false)
	viperCfg.SetDefault("collab.use_shared_ordering", false)
	viperCfg.SetDefault("collab.session_ttl", defaultSessionTTLSec)
	viperCfg.SetDefault("collab.presence_inactive_ms", defaultPresenceInactiveMS)
	viperCfg.SetDefault("collab.session_idle_ms", defaultSessionIdleMS)
	viperCfg.SetDefault("collab.serializer_max_retries", defaultSerializerMaxRetries)
	viperCfg.SetDefault("collab.serializer_initial_backoff_ms", defaultSerializerBackoffMS)
	viperCfg.SetDefault("collab.serializer_queue_high_watermark", defaultQueueHighWatermark)

	viperCfg.SetDefault("postgres.dsn", "")
	viperCfg.SetDefault("postgres.max_open_conns", 20)
	viperCfg.SetDefault("postgres.max_idle_conns", 5)
	viperCfg.SetDefault("postgres.conn_max_lifetime", "30m")
	viperCfg.SetDefault("postgres.conn_max_idle_time", "5m")

	viperCfg.SetDefault("redis.addr", "")
	viperCfg.SetDefault("redis.password", "")
	viperCfg.SetDefault("redis.db", 0)
	viperCfg.SetDefault("redis.stream_max_len", 10_000)

	viperCfg.SetDefault("logging.level", "info")
	viperCfg.SetDefault("logging.format", "json")

	viperCfg.SetDefault("observability.otlp_endpoint", "")
	viperCfg.SetDefault("observability.sample_ratio", 0.0)
	viperCfg.SetDefault("observability.metrics_addr", ":9090")
}
