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
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "picker-terminal", cfg.Service.Name)
	assert.Equal(t, "development", cfg.Service.Environment)
	assert.Equal(t, 500*time.Millisecond, cfg.Scanner.Debounce())
	assert.Equal(t, 30*time.Second, cfg.API.Timeout())
	assert.True(t, cfg.Diag.Enabled)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
service:
  environment: production
  version: "1.4.0"
api:
  base_url: https://wms.example.com/api
  timeout_seconds: 10
scanner:
  debounce_ms: 300
logging:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.Service.Environment)
	assert.Equal(t, "https://wms.example.com/api", cfg.API.BaseURL)
	assert.Equal(t, 300*time.Millisecond, cfg.Scanner.Debounce())
	assert.Equal(t, "debug", cfg.Logging.Level)
	// Untouched sections keep their defaults.
	assert.Equal(t, ":9090", cfg.Diag.Addr)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("API_BASE_URL", "http://10.0.0.5:8080/api")
	t.Setenv("SCAN_DEBOUNCE_MS", "250")
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "http://10.0.0.5:8080/api", cfg.API.BaseURL)
	assert.Equal(t, 250, cfg.Scanner.DebounceMS)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestValidation(t *testing.T) {
	t.Run("bad environment", func(t *testing.T) {
		t.Setenv("ENVIRONMENT", "qa")
		_, err := Load("")
		assert.Error(t, err)
	})

	t.Run("bad url", func(t *testing.T) {
		t.Setenv("API_BASE_URL", "not a url")
		_, err := Load("")
		assert.Error(t, err)
	})

	t.Run("bad log level", func(t *testing.T) {
		t.Setenv("LOG_LEVEL", "verbose")
		_, err := Load("")
		assert.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load("/does/not/exist.yaml")
		assert.Error(t, err)
	})
}
