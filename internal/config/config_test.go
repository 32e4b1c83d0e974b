package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	return Config{
		Server: ServerConfig{
			Port:      defaultPort,
			JWTSecret: "test-secret",
		},
		Collab: CollabConfig{
			StoreBackend:                 StoreBackendPostgres,
			SessionTTLSec:                defaultSessionTTLSec,
			PresenceInactiveMS:           defaultPresenceInactiveMS,
			SessionIdleMS:                defaultSessionIdleMS,
			SerializerMaxRetries:         defaultSerializerMaxRetries,
			SerializerInitialBackoffMS:   defaultSerializerBackoffMS,
			SerializerQueueHighWatermark: defaultQueueHighWatermark,
		},
		Postgres: PostgresConfig{DSN: "postgres://localhost/collab"},
	}
}

func TestValidateAcceptsDefaultShape(t *testing.T) {
	cfg := validConfig()
	require.NoError(t, cfg.Validate())
}

func TestValidateRejectsBadPort(t *testing.T) {
	cfg := validConfig()
	cfg.Server.Port = 0

	assert.ErrorIs(t, cfg.Validate(), ErrInvalidPort)

	cfg.Server.Port = maxPort + 1
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidPort)
}

func TestValidateRequiresJWTSecret(t *testing.T) {
	cfg := validConfig()
	cfg.Server.JWTSecret = ""

	assert.ErrorIs(t, cfg.Validate(), ErrMissingJWTSecret)
}

func TestValidateAllowsMemoryBackendWithoutDSN(t *testing.T) {
	cfg := validConfig()
	cfg.Collab.StoreBackend = StoreBackendMemory
	cfg.Postgres.DSN = ""

	require.NoError(t, cfg.Validate())
}

func TestValidateRejectsUnknownStoreBackend(t *testing.T) {
	cfg := validConfig()
	cfg.Collab.StoreBackend = "sqlite"

	assert.ErrorIs(t, cfg.Validate(), ErrInvalidStoreBackend)
}

func TestValidateRequiresRedisWhenSharedEnabled(t *testing.T) {
	cfg := validConfig()
	cfg.Collab.UseSharedOrdering = true

	assert.ErrorIs(t, cfg.Validate(), ErrInvalidRedisAddr)

	cfg.Redis.Addr = "localhost:6379"
	assert.NoError(t, cfg.Validate())
}

func TestDurationHelpers(t *testing.T) {
	cfg := validConfig()

	assert.Equal(t, "45s", cfg.Collab.SessionTTL().String())
	assert.Equal(t, "30s", cfg.Collab.PresenceInactive().String())
	assert.Equal(t, "5m0s", cfg.Collab.SessionIdle().String())
	assert.Equal(t, "50ms", cfg.Collab.SerializerInitialBackoff().String())
}

func TestLoadConfigRejectsMissingExplicitFile(t *testing.T) {
	cfg, err := LoadConfig("/nonexistent/path/collabd.yaml")
	require.Error(t, err) // explicit path that doesn't exist is a read error, not "not found"
	_ = cfg
}

func TestLoadConfigSearchPathDefaultsSucceedWithEnvOverrides(t *testing.T) {
	t.Setenv("COLLABD_SERVER_JWT_SECRET", "env-secret")
	t.Setenv("COLLABD_POSTGRES_DSN", "postgres://localhost/collab")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "env-secret", cfg.Server.JWTSecret)
	assert.Equal(t, defaultPort, cfg.Server.Port)
}
