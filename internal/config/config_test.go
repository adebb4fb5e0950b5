package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()

	require.NoError(t, cfg.Validate())
	require.Equal(t, ":50051", cfg.Server.GRPCAddr)
	require.Equal(t, ":9090", cfg.Server.MetricsAddr)
	require.Equal(t, StorageDriverMemory, cfg.Storage.Driver)
	require.True(t, cfg.Storage.Postgres.AutoMigrate)
	require.Equal(t, "storefront.order.events", cfg.Kafka.Topics.Order)
	require.Equal(t, "storefront.notifications", cfg.RabbitMQ.Exchange)
	require.Positive(t, cfg.Outbox.BatchSize)
	require.Positive(t, cfg.Idempotency.CleanupBatch)
	require.Positive(t, cfg.Consistency.CASAttempts)
}

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	t.Setenv(EnvConfigFile, "")

	cfg, err := Load("")
	require.NoError(t, err)
	def := Default()
	require.Equal(t, def.Server, cfg.Server)
	require.Equal(t, def.Outbox, cfg.Outbox)
	require.Equal(t, def.Consistency, cfg.Consistency)
	require.Equal(t, def.Kafka.Topics, cfg.Kafka.Topics)
}

func TestLoad_YAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "storefront.yaml")
	content := `
server:
  grpc_addr: "127.0.0.1:6000"
storage:
  driver: postgres
  postgres:
    dsn: postgres://storefront@localhost/storefront
outbox:
  poll_interval: 250ms
kafka:
  brokers: ["k1:9092", "k2:9092"]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:6000", cfg.Server.GRPCAddr)
	require.Equal(t, StorageDriverPostgres, cfg.Storage.Driver)
	require.Equal(t, "postgres://storefront@localhost/storefront", cfg.Storage.Postgres.DSN)
	require.Equal(t, 250*time.Millisecond, cfg.Outbox.PollInterval)
	require.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	// не заданные в файле значения остаются по умолчанию
	require.Equal(t, ":9090", cfg.Server.MetricsAddr)
	require.Equal(t, 100, cfg.Outbox.BatchSize)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "storefront.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: debug\n"), 0o600))

	t.Setenv(EnvConfigFile, path)
	t.Setenv("STOREFRONT_LOG__LEVEL", "warn")
	t.Setenv("STOREFRONT_KAFKA__BROKERS", "a:9092, b:9092")
	t.Setenv("STOREFRONT_CONSISTENCY__CAS_ATTEMPTS", "9")
	t.Setenv("STOREFRONT_IDEMPOTENCY__TTL", "2h")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "warn", cfg.Log.Level)
	require.Equal(t, []string{"a:9092", "b:9092"}, cfg.Kafka.Brokers)
	require.Equal(t, 9, cfg.Consistency.CASAttempts)
	require.Equal(t, 2*time.Hour, cfg.Idempotency.TTL)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"bad grpc addr", func(c *Config) { c.Server.GRPCAddr = "nope" }, "server.grpc_addr"},
		{"unknown driver", func(c *Config) { c.Storage.Driver = "mongo" }, "storage.driver"},
		{"postgres without dsn", func(c *Config) { c.Storage.Driver = StorageDriverPostgres }, "storage.postgres.dsn"},
		{"empty secret", func(c *Config) { c.Auth.Secret = " " }, "auth.secret"},
		{"log format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
		{"outbox batch", func(c *Config) { c.Outbox.BatchSize = 0 }, "outbox.batch_size"},
		{"cleanup interval", func(c *Config) { c.Idempotency.CleanupInterval = 0 }, "idempotency.cleanup_interval"},
		{"cas attempts", func(c *Config) { c.Consistency.CASAttempts = 0 }, "consistency.cas_attempts"},
		{"delays", func(c *Config) { c.Consistency.MaxDelay = time.Millisecond }, "consistency.max_delay"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidate_OptionalAddrs(t *testing.T) {
	cfg := Default()
	cfg.Server.HTTPAddr = ""
	cfg.Server.MetricsAddr = ""
	require.NoError(t, cfg.Validate())
}
