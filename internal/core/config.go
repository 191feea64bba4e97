package core

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "FRAYFEED_"

// Config is the full client configuration.
type Config struct {
	UserID   string        `yaml:"user_id"`
	UserName string        `yaml:"user_name"`
	Channel  string        `yaml:"channel"`
	Backend  BackendConfig `yaml:"backend"`
	Push     PushConfig    `yaml:"push"`
	Store    StoreConfig   `yaml:"store"`
	Feed     FeedConfig    `yaml:"feed"`
	Notify   NotifyConfig  `yaml:"notify"`
	Log      LogConfig     `yaml:"log"`
	Metrics  MetricsConfig `yaml:"metrics"`
}

// BackendConfig configures the HTTP backend client.
type BackendConfig struct {
	BaseURL           string        `yaml:"base_url"`
	Token             string        `yaml:"token"`
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	Burst             int           `yaml:"burst"`
	MaxRetries        int           `yaml:"max_retries"`
}

// PushConfig selects the push transport. URL wins over File.
type PushConfig struct {
	URL            string        `yaml:"url"`
	File           string        `yaml:"file"`
	ReconnectDelay time.Duration `yaml:"reconnect_delay"`
}

// StoreConfig selects the durable local state backend.
type StoreConfig struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
}

// FeedConfig holds engine tuning knobs.
type FeedConfig struct {
	PageSize             int           `yaml:"page_size"`
	MinLoadInterval      time.Duration `yaml:"min_load_interval"`
	TopThreshold         int           `yaml:"top_threshold"`
	BottomThreshold      int           `yaml:"bottom_threshold"`
	RestoreTolerance     int           `yaml:"restore_tolerance"`
	RestoreRetries       int           `yaml:"restore_retries"`
	FixedPadding         int           `yaml:"fixed_padding"`
	DeleteLockTTL        time.Duration `yaml:"delete_lock_ttl"`
	RecentlySentTTL      time.Duration `yaml:"recently_sent_ttl"`
	ThreadLockTTL        time.Duration `yaml:"thread_lock_ttl"`
	SweepInterval        time.Duration `yaml:"sweep_interval"`
	RecentlyDeletedLimit int           `yaml:"recently_deleted_limit"`
}

// NotifyConfig controls desktop notifications.
type NotifyConfig struct {
	Enabled      bool     `yaml:"enabled"`
	MentionsOnly bool     `yaml:"mentions_only"`
	Mute         []string `yaml:"mute"`
}

// LogConfig controls the slog handler.
type LogConfig struct {
	Level string `yaml:"level"`
	Sink  string `yaml:"sink"`
}

// MetricsConfig controls the prometheus endpoint.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// DefaultConfig returns a config with every default filled in.
func DefaultConfig() Config {
	return Config{
		Backend: BackendConfig{
			Timeout:           20 * time.Second,
			RequestsPerSecond: 10,
			Burst:             5,
			MaxRetries:        3,
		},
		Push: PushConfig{
			ReconnectDelay: 2 * time.Second,
		},
		Store: StoreConfig{
			Driver: "sqlite",
		},
		Feed: FeedConfig{
			PageSize:             30,
			MinLoadInterval:      500 * time.Millisecond,
			TopThreshold:         3,
			BottomThreshold:      3,
			RestoreTolerance:     15,
			RestoreRetries:       3,
			DeleteLockTTL:        100 * time.Millisecond,
			RecentlySentTTL:      10 * time.Second,
			ThreadLockTTL:        2 * time.Second,
			SweepInterval:        5 * time.Second,
			RecentlyDeletedLimit: 200,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// DefaultConfigPath returns ~/.config/frayfeed/config.yaml.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "frayfeed", "config.yaml"), nil
}

// DefaultStorePath returns the state database location for a driver.
func DefaultStorePath(driver string) (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(home, ".local", "state", "frayfeed")
	if driver == "pebble" {
		return filepath.Join(dir, "state.pebble"), nil
	}
	return filepath.Join(dir, "state.db"), nil
}

// LoadConfig reads .env files, the YAML file at path (or the default path),
// and FRAYFEED_* overrides. A missing file is not an error.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return cfg, fmt.Errorf("load .env: %w", err)
	}

	explicit := path != ""
	if !explicit {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return cfg, err
		}
		path = defaultPath
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	case os.IsNotExist(err) && !explicit:
	default:
		return cfg, fmt.Errorf("read config: %w", err)
	}

	if err := applyEnv(&cfg, os.Getenv); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// WriteConfig writes cfg as YAML to path, creating parent directories.
func WriteConfig(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// Validate checks values that would otherwise fail later in confusing ways.
func (c Config) Validate() error {
	switch c.Store.Driver {
	case "sqlite", "pebble", "memory":
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	if c.Feed.PageSize <= 0 {
		return fmt.Errorf("feed.page_size must be positive")
	}
	if c.Backend.RequestsPerSecond < 0 {
		return fmt.Errorf("backend.requests_per_second cannot be negative")
	}
	return nil
}

func applyEnv(cfg *Config, getenv func(string) string) error {
	str := func(name string, dst *string) {
		if v := strings.TrimSpace(getenv(EnvPrefix + name)); v != "" {
			*dst = v
		}
	}
	str("USER_ID", &cfg.UserID)
	str("USER_NAME", &cfg.UserName)
	str("CHANNEL", &cfg.Channel)
	str("BACKEND_URL", &cfg.Backend.BaseURL)
	str("TOKEN", &cfg.Backend.Token)
	str("PUSH_URL", &cfg.Push.URL)
	str("PUSH_FILE", &cfg.Push.File)
	str("STORE_DRIVER", &cfg.Store.Driver)
	str("STORE_PATH", &cfg.Store.Path)
	str("LOG_LEVEL", &cfg.Log.Level)
	str("LOG_SINK", &cfg.Log.Sink)
	str("METRICS_ADDR", &cfg.Metrics.Addr)

	if v := strings.TrimSpace(getenv(EnvPrefix + "PAGE_SIZE")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sPAGE_SIZE: %w", EnvPrefix, err)
		}
		cfg.Feed.PageSize = n
	}
	if v := strings.TrimSpace(getenv(EnvPrefix + "NOTIFY")); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sNOTIFY: %w", EnvPrefix, err)
		}
		cfg.Notify.Enabled = enabled
	}
	return nil
}
