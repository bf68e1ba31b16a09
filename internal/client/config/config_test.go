package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	var c Config
	c.LoadDefaults()

	assert.Equal(t, "http://127.0.0.1:8000/api", c.ServerBaseURL)
	assert.Equal(t, "assettrack.db", c.DatabasePath)
	assert.Equal(t, 10*time.Second, c.RequestTimeout)
	assert.Equal(t, 500*time.Millisecond, c.SearchDebounce)
	assert.Equal(t, 4, c.SearchMinLength)
	assert.Equal(t, "info", c.LogLevel)
	assert.Equal(t, "exports", c.ExportDir)
	assert.Empty(t, c.RedisAddr)
	assert.Empty(t, c.MetricsAddr)
	assert.False(t, c.S3.Enabled())
}

func TestLoadConfig_UsesDefaultsBeforeParsing(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })
	os.Args = []string{"testbin"}

	cfg := LoadConfig()

	require.NotNil(t, cfg, "LoadConfig must not return nil")
	assert.Equal(t, "http://127.0.0.1:8000/api", cfg.ServerBaseURL)
	assert.Equal(t, 10*time.Second, cfg.RequestTimeout)
}

func TestLoadConfig_FlagsOverrideJSON(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	path := writeTempJSON(t, "", "", map[string]any{
		"server_base_url": "https://json.example/api",
		"log_level":       "debug",
	})
	os.Args = []string{"testbin", "-c", path, "-a", "https://flag.example/api"}

	cfg := LoadConfig()

	assert.Equal(t, "https://flag.example/api", cfg.ServerBaseURL)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "assettrack.db", cfg.DatabasePath)
}
