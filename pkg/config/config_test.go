package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.NotEmpty(t, cfg.General.HomeDir)
	assert.Equal(t, "24h", cfg.Sync.MaxAge)
	assert.Equal(t, "recipes.yaml", cfg.Sync.CatalogFile)
	assert.Equal(t, "local", cfg.Bundle.Builder)
	assert.Equal(t, 3, cfg.Bundle.MaxBuildAttempts)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[general]
home_dir = "` + dir + `"

[sync]
max_age = "1h"
fetch_timeout = "30s"

[bundle]
builder = "docker"
max_build_attempts = 5

[logging]
level = "debug"
format = "json"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, dir, cfg.General.HomeDir)
	assert.Equal(t, time.Hour, cfg.Sync.MaxAgeD)
	assert.Equal(t, 30*time.Second, cfg.Sync.FetchTimeoutD)
	assert.Equal(t, "docker", cfg.Bundle.Builder)
	assert.Equal(t, 5, cfg.Bundle.MaxBuildAttempts)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"bad builder", func(c *Config) { c.Bundle.Builder = "ansible" }, "invalid bundle.builder"},
		{"zero attempts", func(c *Config) { c.Bundle.MaxBuildAttempts = 0 }, "max_build_attempts"},
		{"bad level", func(c *Config) { c.Logging.Level = "verbose" }, "invalid logging level"},
		{"bad format", func(c *Config) { c.Logging.Format = "xml" }, "invalid logging format"},
		{"empty home", func(c *Config) { c.General.HomeDir = "" }, "home_dir"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("NIDAM_HOME", "/tmp/nidam-test")
	t.Setenv("NIDAM_SYNC_MAX_AGE", "15m")
	t.Setenv("NIDAM_BUILDER", "docker")

	cfg := Default()
	ApplyEnvOverrides(cfg)

	assert.Equal(t, "/tmp/nidam-test", cfg.General.HomeDir)
	assert.Equal(t, "15m", cfg.Sync.MaxAge)
	assert.Equal(t, "docker", cfg.Bundle.Builder)
}

func TestToken(t *testing.T) {
	t.Setenv("NIDAM_TOKEN", "")
	t.Setenv("HF_TOKEN", "hf-abc")
	assert.Equal(t, "hf-abc", Token())

	t.Setenv("NIDAM_TOKEN", "nd-xyz")
	assert.Equal(t, "nd-xyz", Token())
}

func TestDerivedPaths(t *testing.T) {
	cfg := Default()
	cfg.General.HomeDir = "/data/nidam"

	assert.Equal(t, "/data/nidam/repos.json", cfg.RegistryPath())
	assert.Equal(t, "/data/nidam/repos", cfg.MirrorsDir())
	assert.Equal(t, "/data/nidam/bundles", cfg.BundlesDir())
	assert.Equal(t, "/data/nidam/nidam.db", cfg.DatabasePath())
}
