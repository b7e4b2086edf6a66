// Package config handles application configuration
package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"mindmate/internal/connectivity"
)

//go:embed config.sample.yaml
var sampleConfig string

// GetSampleConfig returns the embedded sample configuration content
func GetSampleConfig() string {
	return sampleConfig
}

// Config represents the application configuration
type Config struct {
	User    UserConfig    `yaml:"user"`
	Storage StorageConfig `yaml:"storage"`
	Remote  RemoteConfig  `yaml:"remote"`
	GTasks  GTasksConfig  `yaml:"gtasks"`
	Sync    SyncConfig    `yaml:"sync"`
	History HistoryConfig `yaml:"history"`
}

// UserConfig identifies the local user.
type UserConfig struct {
	Email string `yaml:"email"`
}

// StorageConfig holds local store settings.
type StorageConfig struct {
	Path string `yaml:"path"`
}

// RemoteConfig holds primary remote store settings.
type RemoteConfig struct {
	BaseURL string `yaml:"base_url"`
	Timeout string `yaml:"timeout"` // e.g., "30s"
}

// GTasksConfig holds external task service settings.
type GTasksConfig struct {
	Enabled     bool   `yaml:"enabled"`
	BaseURL     string `yaml:"base_url"`
	AuthURL     string `yaml:"auth_url"`
	TokenURL    string `yaml:"token_url"`
	ClientID    string `yaml:"client_id"`
	RedirectURL string `yaml:"redirect_url"`
	ListPrefix  string `yaml:"list_prefix"`
	Timeout     string `yaml:"timeout"`
}

// SyncConfig holds synchronization settings
type SyncConfig struct {
	OfflineMode         string `yaml:"offline_mode"`         // auto, online, offline
	ConnectivityTimeout string `yaml:"connectivity_timeout"` // e.g., "5s"
	ProbeURL            string `yaml:"probe_url"`
	MaxAttempts         int    `yaml:"max_attempts"`
}

// HistoryConfig holds sync history settings.
type HistoryConfig struct {
	Enabled       bool `yaml:"enabled"`
	RetentionDays int  `yaml:"retention_days"`
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			Path: defaultDBPath(),
		},
		Remote: RemoteConfig{
			Timeout: "30s",
		},
		GTasks: GTasksConfig{
			ListPrefix: "MindMate_",
			Timeout:    "30s",
		},
		Sync: SyncConfig{
			OfflineMode:         "auto",
			ConnectivityTimeout: "5s",
			MaxAttempts:         5,
		},
		History: HistoryConfig{
			Enabled:       true,
			RetentionDays: 30,
		},
	}
}

func defaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "mindmate.db"
	}
	return filepath.Join(home, ".local", "share", "mindmate", "mindmate.db")
}

// DefaultConfigPath returns the conventional config file location.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(home, ".config", "mindmate", "config.yaml")
}

// Load reads the config file at path, applying defaults for anything unset.
// A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	switch connectivity.Mode(c.Sync.OfflineMode) {
	case connectivity.ModeAuto, connectivity.ModeOnline, connectivity.ModeOffline:
	default:
		return fmt.Errorf("invalid sync.offline_mode %q (must be auto, online, or offline)", c.Sync.OfflineMode)
	}

	if _, err := c.ConnectivityTimeout(); err != nil {
		return fmt.Errorf("invalid sync.connectivity_timeout: %w", err)
	}
	if _, err := c.RemoteTimeout(); err != nil {
		return fmt.Errorf("invalid remote.timeout: %w", err)
	}
	if _, err := c.GTasksTimeout(); err != nil {
		return fmt.Errorf("invalid gtasks.timeout: %w", err)
	}
	return nil
}

func parseDuration(s string, fallback time.Duration) (time.Duration, error) {
	if s == "" {
		return fallback, nil
	}
	return time.ParseDuration(s)
}

// ConnectivityTimeout returns the parsed connectivity probe timeout.
func (c *Config) ConnectivityTimeout() (time.Duration, error) {
	return parseDuration(c.Sync.ConnectivityTimeout, 5*time.Second)
}

// RemoteTimeout returns the parsed primary remote store timeout.
func (c *Config) RemoteTimeout() (time.Duration, error) {
	return parseDuration(c.Remote.Timeout, 30*time.Second)
}

// GTasksTimeout returns the parsed external service timeout.
func (c *Config) GTasksTimeout() (time.Duration, error) {
	return parseDuration(c.GTasks.Timeout, 30*time.Second)
}

// OfflineMode returns the connectivity mode.
func (c *Config) OfflineMode() connectivity.Mode {
	if c.Sync.OfflineMode == "" {
		return connectivity.ModeAuto
	}
	return connectivity.Mode(c.Sync.OfflineMode)
}
