package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"HTTP_ADDR", "DATABASE_URL", "QUEUE_DRIVER", "META_GRAPH_URL", "META_HTTP_TIMEOUT", "WORKER_CONCURRENCY"} {
		t.Setenv(k, "")
	}

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, DefaultHTTPAddr, cfg.HTTPAddr)
	assert.Equal(t, QueueDriverMemory, cfg.Queue.Driver)
	assert.Equal(t, DefaultGraphURL, cfg.Meta.GraphURL)
	assert.Equal(t, DefaultGraphTimeout, cfg.Meta.HTTPTimeout)
	assert.Equal(t, DefaultWorkers, cfg.Queue.Workers)
	assert.Contains(t, cfg.Postgres.DSN(), "sslmode=disable")
}

func TestLoadRejectsBadWorkerCount(t *testing.T) {
	t.Setenv("QUEUE_DRIVER", "")
	t.Setenv("WORKER_CONCURRENCY", "0")
	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.Error(t, err)
}

func TestLoadFromDotEnv(t *testing.T) {
	for _, k := range []string{"META_APP_SECRET", "QUEUE_DRIVER", "META_HTTP_TIMEOUT", "DATABASE_URL"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("META_APP_SECRET=shh\nQUEUE_DRIVER=AMQP\nMETA_HTTP_TIMEOUT=3s\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "shh", cfg.Meta.AppSecret)
	assert.Equal(t, QueueDriverAMQP, cfg.Queue.Driver)
	assert.Equal(t, 3*time.Second, cfg.Meta.HTTPTimeout)
}

func TestLoadRejectsUnknownQueueDriver(t *testing.T) {
	t.Setenv("QUEUE_DRIVER", "kafka")
	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.Error(t, err)
}

func TestDSNPrefersURL(t *testing.T) {
	c := PostgresConfig{URL: "postgres://a:b@h:1/d", Host: "ignored"}
	assert.Equal(t, "postgres://a:b@h:1/d", c.DSN())
}
