package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefaultOnFirstRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "config.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:8080", cfg.Listen)
	assert.Equal(t, 10, cfg.LeadMinutes)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg := DefaultConfig()
	cfg.Listen = "0.0.0.0:9090"
	cfg.Timezone = "America/New_York"
	cfg.Verifier.APIKey = "sk-test"
	cfg.BasicAuth = &BasicAuthConfig{Username: "admin", Password: "hunter2"}
	require.NoError(t, cfg.Save(path))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9090", got.Listen)
	assert.Equal(t, "America/New_York", got.Timezone)
	assert.Equal(t, "sk-test", got.Verifier.APIKey)
	require.NotNil(t, got.BasicAuth)
	assert.Equal(t, "admin", got.BasicAuth.Username)
}

func TestNormalizeFillsZeroValues(t *testing.T) {
	var cfg Config
	cfg.Normalize()

	assert.Equal(t, "127.0.0.1:8080", cfg.Listen)
	assert.Equal(t, "/var/lib/lockind/lockind.db", cfg.DBPath)
	assert.Equal(t, 10, cfg.LeadMinutes)
	assert.Equal(t, "0 21 * * *", cfg.SummaryCron)
	assert.Equal(t, "https://api.openai.com/v1", cfg.Verifier.BaseURL)
	assert.Equal(t, 60, cfg.Verifier.TimeoutSeconds)
	assert.Nil(t, cfg.BasicAuth)
}

func TestLoadEmptyPath(t *testing.T) {
	_, err := Load("")
	assert.Error(t, err)
}
