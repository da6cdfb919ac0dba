package model

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Session backend identifiers accepted by SessionConfig.Backend.
const (
	SessionBackendKeyring = "keyring"
	SessionBackendSQLite  = "sqlite"
	SessionBackendMemory  = "memory"
)

const (
	defaultBaseURL    = "http://localhost:3000"
	defaultTimeoutSec = 30
	defaultLogLevel   = "info"
	defaultRefreshSec = 0
)

// APIConfig holds the connection settings for the remote task service.
type APIConfig struct {
	// BaseURL is the root URL; /api/auth and /api/tasks hang off it.
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`

	// TimeoutSec bounds a single request. Zero leaves the transport default.
	TimeoutSec int `mapstructure:"timeout_sec" yaml:"timeout_sec"`
}

// Timeout returns the request timeout as a duration.
func (c APIConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSec) * time.Second
}

// SessionConfig selects where the logged-in user record is persisted.
type SessionConfig struct {
	Backend string `mapstructure:"backend" yaml:"backend"`

	// FileDir is used by the keyring file backend when no OS keychain
	// is available.
	FileDir string `mapstructure:"file_dir" yaml:"file_dir"`
}

// StoreConfig locates the local SQLite database.
type StoreConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// LogConfig controls diagnostic output.
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
}

// BrowseConfig controls the interactive task browser.
type BrowseConfig struct {
	// RefreshSec is the background refresh interval. Zero disables it.
	RefreshSec int `mapstructure:"refresh_sec" yaml:"refresh_sec"`
}

// RefreshInterval returns the background refresh interval as a duration.
func (c BrowseConfig) RefreshInterval() time.Duration {
	return time.Duration(c.RefreshSec) * time.Second
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	API     APIConfig     `mapstructure:"api" yaml:"api"`
	Session SessionConfig `mapstructure:"session" yaml:"session"`
	Store   StoreConfig   `mapstructure:"store" yaml:"store"`
	Browse  BrowseConfig  `mapstructure:"browse" yaml:"browse"`
	Log     LogConfig     `mapstructure:"log" yaml:"log"`
}

// configDir returns ~/.config/tasksync, falling back to the working
// directory when the home directory is unknown.
func configDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "tasksync")
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/tasksync/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(configDir(), "config.yaml")
}

// defaultAppConfig returns a sensible default configuration.
func defaultAppConfig() *AppConfig {
	return &AppConfig{
		API: APIConfig{
			BaseURL:    defaultBaseURL,
			TimeoutSec: defaultTimeoutSec,
		},
		Session: SessionConfig{
			Backend: SessionBackendKeyring,
			FileDir: filepath.Join(configDir(), "credentials"),
		},
		Store: StoreConfig{
			Path: filepath.Join(configDir(), "tasksync.db"),
		},
		Browse: BrowseConfig{
			RefreshSec: defaultRefreshSec,
		},
		Log: LogConfig{
			Level: defaultLogLevel,
		},
	}
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// Environment variables prefixed with TASKSYNC_ override file values
// (e.g. TASKSYNC_API_BASE_URL). A missing file yields the defaults.
func LoadConfig(path string) (*AppConfig, error) {
	def := defaultAppConfig()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("tasksync")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("api.base_url", def.API.BaseURL)
	v.SetDefault("api.timeout_sec", def.API.TimeoutSec)
	v.SetDefault("session.backend", def.Session.Backend)
	v.SetDefault("session.file_dir", def.Session.FileDir)
	v.SetDefault("store.path", def.Store.Path)
	v.SetDefault("browse.refresh_sec", def.Browse.RefreshSec)
	v.SetDefault("log.level", def.Log.Level)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		var pathErr *os.PathError
		if !errors.As(err, &notFound) && !errors.As(err, &pathErr) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := &AppConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return cfg, nil
}

// Validate checks values that cannot be defaulted.
func (c *AppConfig) Validate() error {
	if strings.TrimSpace(c.API.BaseURL) == "" {
		return errors.New("api.base_url must not be empty")
	}
	if c.API.TimeoutSec < 0 {
		return fmt.Errorf("api.timeout_sec must not be negative, got %d", c.API.TimeoutSec)
	}
	if c.Browse.RefreshSec < 0 {
		return fmt.Errorf("browse.refresh_sec must not be negative, got %d", c.Browse.RefreshSec)
	}
	switch c.Session.Backend {
	case SessionBackendKeyring, SessionBackendSQLite, SessionBackendMemory:
	default:
		return fmt.Errorf("unknown session.backend %q", c.Session.Backend)
	}
	return nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("api", cfg.API)
	v.Set("session", cfg.Session)
	v.Set("store", cfg.Store)
	v.Set("browse", cfg.Browse)
	v.Set("log", cfg.Log)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
