package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Setenv("TEST_ANTHROPIC_KEY", "sk-ant-test")

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
logger:
  level: debug
  format: console
providers:
  anthropic:
    api_key: ${TEST_ANTHROPIC_KEY}
    timeout: 30s
  gemini:
    api_key: ${MISSING_GEMINI_KEY:-fallback-key}
pricing:
  cache_path: /tmp/prices.db
feed:
  enabled: true
  listen: 127.0.0.1:7788
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logger.Level)
	assert.Equal(t, "sk-ant-test", cfg.Providers.Anthropic.APIKey)
	assert.Equal(t, 30*time.Second, cfg.Providers.Anthropic.Timeout.Std())
	assert.Equal(t, "fallback-key", cfg.Providers.Gemini.APIKey)
	assert.Equal(t, "/tmp/prices.db", cfg.Pricing.CachePath)
	assert.True(t, cfg.Feed.Enabled)

	// unset sections still get defaults
	assert.Equal(t, 24*time.Hour, cfg.Pricing.TTL.Std())
	assert.Equal(t, "https://api.openai.com/v1/chat/completions", cfg.Providers.OpenAI.Endpoint)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config")
}

func TestLoad_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("providers: ["), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config")
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, "json", cfg.Logger.Format)
	assert.NotEmpty(t, cfg.Providers.Anthropic.Endpoint)
	assert.NotEmpty(t, cfg.Providers.Gemini.Endpoint)
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("EXPAND_SET", "value")

	assert.Equal(t, "value", expandEnv("${EXPAND_SET}"))
	assert.Equal(t, "value", expandEnv("${EXPAND_UNSET:-value}"))
	assert.Equal(t, "", expandEnv("${EXPAND_UNSET}"))
	assert.Equal(t, "prefix-value-suffix", expandEnv("prefix-${EXPAND_SET}-suffix"))
	assert.Equal(t, "plain", expandEnv("plain"))
}
