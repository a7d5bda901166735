package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cschleiden/go-orchestrations/backend"
	"github.com/cschleiden/go-orchestrations/core"
)

func Test_Load_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
	require.NoError(t, cfg.Validate())
}

func Test_Load_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
log_level: debug
backend:
  type: redis
  task_hub: chunks
  activity_lock_timeout: 30s
  redis:
    address: redis:6379
    key_prefix: app
worker:
  activity_pollers: 4
  polling_interval: 50ms
tracing:
  exporter: otlp
  endpoint: localhost:4318
starter:
  enabled: true
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, "redis", cfg.Backend.Type)
	require.Equal(t, "chunks", cfg.Backend.TaskHub)
	require.Equal(t, 30*time.Second, cfg.Backend.ActivityLockTimeout)
	require.Equal(t, "redis:6379", cfg.Backend.Redis.Address)
	require.Equal(t, "app", cfg.Backend.Redis.KeyPrefix)
	require.Equal(t, 4, cfg.Worker.ActivityPollers)
	require.Equal(t, 50*time.Millisecond, cfg.Worker.PollingInterval)
	require.Equal(t, "otlp", cfg.Tracing.Exporter)
	require.True(t, cfg.Starter.Enabled)

	// Defaults are kept for values not in the file
	require.Equal(t, "*/5 * * * *", cfg.Starter.Schedule)
	require.Equal(t, "localhost", cfg.Backend.MySQL.Host)

	l, err := cfg.Level()
	require.NoError(t, err)
	require.Equal(t, slog.LevelDebug, l)
}

func Test_Load_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorContains(t, err, "reading config")
}

func Test_Validate(t *testing.T) {
	cfg := Default()
	cfg.Backend.Type = "cassandra"
	cfg.Tracing.Exporter = "otlp"
	cfg.LogLevel = "loud"

	err := cfg.Validate()
	require.ErrorContains(t, err, `unknown backend type "cassandra"`)
	require.ErrorContains(t, err, "otlp exporter requires an endpoint")
	require.ErrorContains(t, err, `invalid log level "loud"`)
}

func Test_OpenBackend(t *testing.T) {
	for _, typ := range []string{"memory", "sqlite"} {
		t.Run(typ, func(t *testing.T) {
			cfg := Default()
			cfg.Backend.Type = typ
			cfg.Backend.TaskHub = "hub"
			cfg.Backend.SQLite.Path = ""

			b, err := cfg.Backend.OpenBackend()
			require.NoError(t, err)
			t.Cleanup(func() { require.NoError(t, b.Close()) })

			require.Equal(t, "hub", b.Options().TaskHub)

			s, err := b.GetStats(t.Context())
			require.NoError(t, err)
			require.Zero(t, s.PendingWorkItems[core.QueueOrchestrations])
		})
	}
}

func Test_OpenBackend_Monoprocess(t *testing.T) {
	cfg := Default()
	cfg.Backend.Type = "memory"
	cfg.Backend.Monoprocess = true

	b, err := cfg.Backend.OpenBackend()
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, b.Close()) })

	require.NotEqual(t, "*memory.memoryBackend", fmt.Sprintf("%T", b))
	require.Equal(t, backend.DefaultTaskHub, b.Options().TaskHub)
}
