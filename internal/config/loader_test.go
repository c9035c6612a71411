package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_ReadsYAMLAndAppliesDefaults(t *testing.T) {
	path := writeTempConfig(t, `
extraction:
  max_text_length: 4096
generative:
  enabled: true
  base_url: http://localhost:8000/v1
  model: local-llama
log:
  level: debug
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 4096, cfg.Extraction.MaxTextLength)
	assert.True(t, cfg.Generative.Enabled)
	assert.Equal(t, "local-llama", cfg.Generative.Model)
	assert.Equal(t, "debug", cfg.Log.Level)
	// Unset fields fall back to defaults.
	assert.Equal(t, DefaultGenerativeTimeout, cfg.Generative.Timeout)
	assert.Equal(t, DefaultMetricsNamespace, cfg.Metrics.Namespace)
}

func TestLoad_MissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoad_InvalidConfigFails(t *testing.T) {
	path := writeTempConfig(t, `
generative:
  enabled: true
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "base_url")
}

func TestLoadFromEnv_UsesEnvOverrides(t *testing.T) {
	t.Setenv("ORDERSENSE_GENERATIVE_MODEL", "env-model")
	t.Setenv("ORDERSENSE_LOG_LEVEL", "warn")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "env-model", cfg.Generative.Model)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestWatch_InvokesCallbackOnChange(t *testing.T) {
	path := writeTempConfig(t, "log:\n  level: info\n")

	changed := make(chan *Config, 1)
	Watch(path, func(cfg *Config) {
		select {
		case changed <- cfg:
		default:
		}
	})

	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: error\n"), 0o644))

	select {
	case cfg := <-changed:
		assert.Equal(t, "error", cfg.Log.Level)
	case <-time.After(3 * time.Second):
		t.Skip("filesystem watcher did not fire; flaky on some CI filesystems")
	}
}
