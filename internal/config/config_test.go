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
	cfg := Load()
	assert.Equal(t, ":8090", cfg.HTTPAddr)
	assert.Equal(t, "127.0.0.1:6379", cfg.RedisAddr)
	assert.Equal(t, 4, cfg.BrowserConcurrency)
	assert.Equal(t, 10, cfg.RemoteConcurrency)
	assert.Equal(t, 3, cfg.QueueMaxAttempts)
	assert.Equal(t, 5*time.Second, cfg.QueueRetryBase)
	assert.Equal(t, 30*time.Second, cfg.ActionTimeout)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9999")
	t.Setenv("BROWSER_CONCURRENCY", "2")
	t.Setenv("QUEUE_RETRY_BASE_SECONDS", "1")

	cfg := Load()
	assert.Equal(t, ":9999", cfg.HTTPAddr)
	assert.Equal(t, 2, cfg.BrowserConcurrency)
	assert.Equal(t, time.Second, cfg.QueueRetryBase)
}

func TestConfigFileOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("http_addr: \":7070\"\nremote_concurrency: 20\n"), 0o644))
	t.Setenv("CONFIG_FILE", path)

	cfg := Load()
	assert.Equal(t, ":7070", cfg.HTTPAddr)
	assert.Equal(t, 20, cfg.RemoteConcurrency)
	assert.Equal(t, 4, cfg.BrowserConcurrency, "unset keys keep their defaults")
}
