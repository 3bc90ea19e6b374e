// Package config loads and persists daily-habits configuration.
//
// Configuration lives in ~/.habits/config.yaml and can be overridden
// with HABITS_* environment variables (HABITS_REMOTE_URL, HABITS_API_KEY,
// and so on). Credentials written by `habits login` are stored in the
// same file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all settings the CLI and sync engine need.
type Config struct {
	// DatabasePath is the embedded SQLite file.
	DatabasePath string `mapstructure:"database_path"`
	// RemoteURL is the habits backend root, empty when sync is not
	// configured.
	RemoteURL string `mapstructure:"remote_url"`
	// APIKey authenticates against the backend.
	APIKey string `mapstructure:"api_key"`
	// UserID is the logged-in user, empty when logged out.
	UserID string `mapstructure:"user_id"`
	// SyncInterval is the periodic queue-drain cadence.
	SyncInterval time.Duration `mapstructure:"sync_interval"`
	// ProbeInterval is the connectivity probe cadence.
	ProbeInterval time.Duration `mapstructure:"probe_interval"`
	// LogFile receives daemon logs (rotated); empty means stderr.
	LogFile string `mapstructure:"log_file"`
}

// Dir returns the configuration directory, ~/.habits by default.
// HABITS_DIR overrides it (used by tests and portable installs).
func Dir() (string, error) {
	if dir := os.Getenv("HABITS_DIR"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, ".habits"), nil
}

func newViper(dir string) *viper.Viper {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(dir)

	v.SetDefault("database_path", filepath.Join(dir, "habits.db"))
	v.SetDefault("remote_url", "")
	v.SetDefault("api_key", "")
	v.SetDefault("user_id", "")
	v.SetDefault("sync_interval", 5*time.Second)
	v.SetDefault("probe_interval", 15*time.Second)
	v.SetDefault("log_file", "")

	v.SetEnvPrefix("habits")
	v.AutomaticEnv()

	return v
}

// Load reads configuration from disk and environment. A missing config
// file is not an error; defaults apply.
func Load() (*Config, error) {
	dir, err := Dir()
	if err != nil {
		return nil, err
	}

	v := newViper(dir)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}

// Save writes the configuration back to ~/.habits/config.yaml, creating
// the directory if needed. Used by `habits login` and `habits logout`.
func Save(cfg *Config) error {
	dir, err := Dir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	v := newViper(dir)
	v.Set("database_path", cfg.DatabasePath)
	v.Set("remote_url", cfg.RemoteURL)
	v.Set("api_key", cfg.APIKey)
	v.Set("user_id", cfg.UserID)
	v.Set("sync_interval", cfg.SyncInterval.String())
	v.Set("probe_interval", cfg.ProbeInterval.String())
	v.Set("log_file", cfg.LogFile)

	path := filepath.Join(dir, "config.yaml")
	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}
