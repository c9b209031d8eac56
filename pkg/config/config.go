package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// DefaultSourceAlias is the alias of the built-in catalog source.
const DefaultSourceAlias = "default"

// DefaultSourceURL is the catalog seeded into a fresh registry.
const DefaultSourceURL = "https://github.com/jileml/nidam-models@main"

type Config struct {
	General GeneralConfig `toml:"general"`
	Sync    SyncConfig    `toml:"sync"`
	Bundle  BundleConfig  `toml:"bundle"`
	Logging LoggingConfig `toml:"logging"`
}

type GeneralConfig struct {
	// HomeDir is the root for all durable state (registry, mirrors,
	// bundles, metadata database).
	HomeDir string `toml:"home_dir"`
}

type SyncConfig struct {
	// MaxAge is how old a mirror may be before resolve/list trigger a
	// refresh pass.
	MaxAge string `toml:"max_age"`
	// FetchTimeout bounds a single source fetch.
	FetchTimeout string `toml:"fetch_timeout"`
	// CatalogFile is the recipe document path inside a mirror.
	CatalogFile string `toml:"catalog_file"`

	MaxAgeD       time.Duration `toml:"-"`
	FetchTimeoutD time.Duration `toml:"-"`
}

type BundleConfig struct {
	// Builder selects the bundle builder: "local" or "docker".
	Builder string `toml:"builder"`
	// MaxBuildAttempts is the per-content-hash retry budget within one
	// process lifetime.
	MaxBuildAttempts int `toml:"max_build_attempts"`
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

func Default() *Config {
	homeDir := os.Getenv("NIDAM_HOME")
	if homeDir == "" {
		userHome, _ := os.UserHomeDir()
		homeDir = filepath.Join(userHome, ".nidam")
	}

	return &Config{
		General: GeneralConfig{
			HomeDir: homeDir,
		},
		Sync: SyncConfig{
			MaxAge:       "24h",
			FetchTimeout: "2m",
			CatalogFile:  "recipes.yaml",
		},
		Bundle: BundleConfig{
			Builder:          "local",
			MaxBuildAttempts: 3,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

func LoadFromFile(path string) (*Config, error) {
	expandedPath, err := expandPath(path)
	if err != nil {
		return nil, fmt.Errorf("expand path: %w", err)
	}

	data, err := os.ReadFile(expandedPath)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()
	if _, err := toml.Decode(string(data), cfg); err != nil {
		return nil, fmt.Errorf("decode TOML: %w", err)
	}

	return cfg, nil
}

func (c *Config) postProcess() error {
	var err error

	if c.Sync.MaxAgeD, err = time.ParseDuration(c.Sync.MaxAge); err != nil {
		return fmt.Errorf("parse sync.max_age: %w", err)
	}

	if c.Sync.FetchTimeoutD, err = time.ParseDuration(c.Sync.FetchTimeout); err != nil {
		return fmt.Errorf("parse sync.fetch_timeout: %w", err)
	}

	c.General.HomeDir, err = expandPath(c.General.HomeDir)
	if err != nil {
		return fmt.Errorf("expand general.home_dir: %w", err)
	}

	return nil
}

func (c *Config) Validate() error {
	if c.General.HomeDir == "" {
		return fmt.Errorf("general.home_dir must not be empty")
	}

	if c.Bundle.MaxBuildAttempts < 1 {
		return fmt.Errorf("bundle.max_build_attempts must be at least 1, got %d", c.Bundle.MaxBuildAttempts)
	}

	validBuilders := map[string]bool{"local": true, "docker": true}
	if !validBuilders[strings.ToLower(c.Bundle.Builder)] {
		return fmt.Errorf("invalid bundle.builder: %s (valid: local, docker)", c.Bundle.Builder)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid logging level: %s (valid: debug, info, warn, error)", c.Logging.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		return fmt.Errorf("invalid logging format: %s (valid: json, text)", c.Logging.Format)
	}

	return nil
}

func ApplyEnvOverrides(cfg *Config) {
	if v := os.Getenv("NIDAM_HOME"); v != "" {
		cfg.General.HomeDir = v
	}
	if v := os.Getenv("NIDAM_SYNC_MAX_AGE"); v != "" {
		cfg.Sync.MaxAge = v
	}
	if v := os.Getenv("NIDAM_FETCH_TIMEOUT"); v != "" {
		cfg.Sync.FetchTimeout = v
	}
	if v := os.Getenv("NIDAM_CATALOG_FILE"); v != "" {
		cfg.Sync.CatalogFile = v
	}
	if v := os.Getenv("NIDAM_BUILDER"); v != "" {
		cfg.Bundle.Builder = v
	}
	if v := os.Getenv("NIDAM_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("NIDAM_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}

// Token returns the credential used for gated remote content. The
// value is handed to the fetcher as-is and must never be logged.
func Token() string {
	if v := os.Getenv("NIDAM_TOKEN"); v != "" {
		return v
	}
	return os.Getenv("HF_TOKEN")
}

// Paths derived from the home directory.

func (c *Config) RegistryPath() string { return filepath.Join(c.General.HomeDir, "repos.json") }
func (c *Config) MirrorsDir() string   { return filepath.Join(c.General.HomeDir, "repos") }
func (c *Config) BundlesDir() string   { return filepath.Join(c.General.HomeDir, "bundles") }
func (c *Config) DatabasePath() string { return filepath.Join(c.General.HomeDir, "nidam.db") }

func expandPath(path string) (string, error) {
	if path == "" {
		return "", nil
	}

	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("get user home directory: %w", err)
		}
		return filepath.Join(homeDir, path[2:]), nil
	}

	return path, nil
}

func Load(configPath string) (*Config, error) {
	var cfg *Config
	var err error

	if configPath != "" {
		cfg, err = LoadFromFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("load config from %s: %w", configPath, err)
		}
	} else {
		cfg = Default()
	}

	ApplyEnvOverrides(cfg)

	if err := cfg.postProcess(); err != nil {
		return nil, fmt.Errorf("post process config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}
