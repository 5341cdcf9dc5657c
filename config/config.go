// Package config provides configuration management for the meetsync CLI.
// It supports loading configuration from YAML files and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Default configuration values.
const (
	DefaultConfigDir  = ".meetsync"
	DefaultConfigFile = "config.yaml"
	DefaultStateFile  = "state.json"

	DefaultAuthURL = "https://zoom.us/oauth/token"
	DefaultBaseURL = "https://api.zoom.us/v2"

	// DefaultPageSize is the upstream's maximum page size for listings.
	DefaultPageSize = 300

	// DefaultMaxWindowDays is the upstream's maximum queryable span per request.
	DefaultMaxWindowDays = 30

	// DefaultLookbackDays bounds the first run's fetch window so it stays
	// inside the upstream's recording retention.
	DefaultLookbackDays = 28

	DefaultConcurrency    = 1
	DefaultMaxPerRun      = 50
	DefaultPageDelay      = 500 * time.Millisecond
	DefaultRequestTimeout = 60 * time.Second
)

// UpstreamConfig holds connection settings for the meeting platform API.
type UpstreamConfig struct {
	// AccountID is the server-to-server OAuth account identifier.
	AccountID string `yaml:"account_id"`

	// ClientID is the OAuth client identifier. The client secret is kept in
	// the system keyring (see the credentials package), never in this file.
	ClientID string `yaml:"client_id"`

	// UserID is the target user whose recordings are ingested ("me" works for
	// the account owner).
	UserID string `yaml:"user_id"`

	// AuthURL is the OAuth token endpoint.
	AuthURL string `yaml:"auth_url,omitempty"`

	// BaseURL is the REST API base URL.
	BaseURL string `yaml:"base_url,omitempty"`

	// PageSize caps the page size for paginated listings.
	PageSize int `yaml:"page_size,omitempty"`

	// MaxWindowDays is the maximum date span the upstream accepts per query.
	MaxWindowDays int `yaml:"max_window_days,omitempty"`

	// PageDelay is the pause between successive pages of one listing, to
	// respect steady-state rate limits.
	PageDelay time.Duration `yaml:"-"`

	// RequestTimeout bounds a single HTTP request.
	RequestTimeout time.Duration `yaml:"-"`
}

// RedisConfig holds optional Redis settings for event publishing.
// Event publishing is disabled when Addr is empty.
type RedisConfig struct {
	Addr     string `yaml:"addr,omitempty"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db,omitempty"`
}

// Config holds the meetsync configuration settings.
type Config struct {
	// Upstream holds the meeting platform connection settings.
	Upstream UpstreamConfig `yaml:"upstream"`

	// OutputDir is the root of the Markdown archive.
	OutputDir string `yaml:"output_dir"`

	// StatePath is the location of the run-state file.
	// Defaults to <config dir>/state.json.
	StatePath string `yaml:"state_path,omitempty"`

	// ExtractActionItems toggles heuristic action-item extraction for
	// transcript-derived meetings.
	ExtractActionItems bool `yaml:"extract_action_items"`

	// MaxPerRun caps the number of meetings processed in a single run.
	MaxPerRun int `yaml:"max_per_run,omitempty"`

	// Concurrency is the number of meetings processed in parallel.
	Concurrency int `yaml:"concurrency,omitempty"`

	// LookbackDays bounds the first run's fetch window.
	LookbackDays int `yaml:"lookback_days,omitempty"`

	// Redis holds optional event publishing settings.
	Redis RedisConfig `yaml:"redis,omitempty"`

	// LogLevel sets the minimum log level (debug, info, warn, error).
	LogLevel string `yaml:"log_level,omitempty"`

	// LogJSON switches log output to JSON (for scheduled runs).
	LogJSON bool `yaml:"log_json,omitempty"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Upstream: UpstreamConfig{
			UserID:         "me",
			AuthURL:        DefaultAuthURL,
			BaseURL:        DefaultBaseURL,
			PageSize:       DefaultPageSize,
			MaxWindowDays:  DefaultMaxWindowDays,
			PageDelay:      DefaultPageDelay,
			RequestTimeout: DefaultRequestTimeout,
		},
		ExtractActionItems: true,
		MaxPerRun:          DefaultMaxPerRun,
		Concurrency:        DefaultConcurrency,
		LookbackDays:       DefaultLookbackDays,
		LogLevel:           "info",
	}
}

// ConfigDir returns the configuration directory path.
// Uses $MEETSYNC_CONFIG_DIR if set, otherwise ~/.meetsync
func ConfigDir() (string, error) {
	if dir := os.Getenv("MEETSYNC_CONFIG_DIR"); dir != "" {
		return dir, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}

	return filepath.Join(home, DefaultConfigDir), nil
}

// ConfigPath returns the full path to the configuration file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, DefaultConfigFile), nil
}

// LoadConfig loads the configuration from file and environment variables.
// Configuration is loaded in this order (later sources override earlier):
// 1. Default values
// 2. Config file (~/.meetsync/config.yaml or $MEETSYNC_CONFIG_DIR/config.yaml)
// 3. Environment variables (MEETSYNC_ACCOUNT_ID, MEETSYNC_CLIENT_ID, ...)
func LoadConfig() (*Config, error) {
	cfg := DefaultConfig()

	configPath, err := ConfigPath()
	if err != nil {
		return nil, fmt.Errorf("getting config path: %w", err)
	}

	if _, err := os.Stat(configPath); err == nil {
		if err := loadFromFile(cfg, configPath); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}

	loadFromEnv(cfg)

	if cfg.StatePath == "" {
		dir, err := ConfigDir()
		if err != nil {
			return nil, err
		}
		cfg.StatePath = filepath.Join(dir, DefaultStateFile)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// loadFromFile loads configuration from a YAML file, overlaying onto cfg.
func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}

	var fileCfg Config
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}

	if fileCfg.Upstream.AccountID != "" {
		cfg.Upstream.AccountID = fileCfg.Upstream.AccountID
	}
	if fileCfg.Upstream.ClientID != "" {
		cfg.Upstream.ClientID = fileCfg.Upstream.ClientID
	}
	if fileCfg.Upstream.UserID != "" {
		cfg.Upstream.UserID = fileCfg.Upstream.UserID
	}
	if fileCfg.Upstream.AuthURL != "" {
		cfg.Upstream.AuthURL = fileCfg.Upstream.AuthURL
	}
	if fileCfg.Upstream.BaseURL != "" {
		cfg.Upstream.BaseURL = fileCfg.Upstream.BaseURL
	}
	if fileCfg.Upstream.PageSize > 0 {
		cfg.Upstream.PageSize = fileCfg.Upstream.PageSize
	}
	if fileCfg.Upstream.MaxWindowDays > 0 {
		cfg.Upstream.MaxWindowDays = fileCfg.Upstream.MaxWindowDays
	}
	if fileCfg.OutputDir != "" {
		cfg.OutputDir = fileCfg.OutputDir
	}
	if fileCfg.StatePath != "" {
		cfg.StatePath = fileCfg.StatePath
	}
	if fileCfg.MaxPerRun > 0 {
		cfg.MaxPerRun = fileCfg.MaxPerRun
	}
	if fileCfg.Concurrency > 0 {
		cfg.Concurrency = fileCfg.Concurrency
	}
	if fileCfg.LookbackDays > 0 {
		cfg.LookbackDays = fileCfg.LookbackDays
	}
	if fileCfg.Redis.Addr != "" {
		cfg.Redis = fileCfg.Redis
	}
	if fileCfg.LogLevel != "" {
		cfg.LogLevel = fileCfg.LogLevel
	}
	// Booleans need a presence check so an omitted key keeps its default.
	var flags struct {
		ExtractActionItems *bool `yaml:"extract_action_items"`
		LogJSON            *bool `yaml:"log_json"`
	}
	if err := yaml.Unmarshal(data, &flags); err == nil {
		if flags.ExtractActionItems != nil {
			cfg.ExtractActionItems = *flags.ExtractActionItems
		}
		if flags.LogJSON != nil {
			cfg.LogJSON = *flags.LogJSON
		}
	}

	cfg.OutputDir = expandPath(cfg.OutputDir)
	cfg.StatePath = expandPath(cfg.StatePath)

	return nil
}

// loadFromEnv overlays environment variables onto cfg.
func loadFromEnv(cfg *Config) {
	if v := os.Getenv("MEETSYNC_ACCOUNT_ID"); v != "" {
		cfg.Upstream.AccountID = v
	}
	if v := os.Getenv("MEETSYNC_CLIENT_ID"); v != "" {
		cfg.Upstream.ClientID = v
	}
	if v := os.Getenv("MEETSYNC_USER_ID"); v != "" {
		cfg.Upstream.UserID = v
	}
	if v := os.Getenv("MEETSYNC_AUTH_URL"); v != "" {
		cfg.Upstream.AuthURL = v
	}
	if v := os.Getenv("MEETSYNC_BASE_URL"); v != "" {
		cfg.Upstream.BaseURL = v
	}
	if v := os.Getenv("MEETSYNC_OUTPUT_DIR"); v != "" {
		cfg.OutputDir = expandPath(v)
	}
	if v := os.Getenv("MEETSYNC_STATE_PATH"); v != "" {
		cfg.StatePath = expandPath(v)
	}
	if v := os.Getenv("MEETSYNC_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("MEETSYNC_MAX_PER_RUN"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxPerRun = n
		}
	}
	if v := os.Getenv("MEETSYNC_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("MEETSYNC_LOG_JSON"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.LogJSON = b
		}
	}
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.Upstream.AccountID == "" {
		return fmt.Errorf("upstream.account_id is required")
	}
	if c.Upstream.ClientID == "" {
		return fmt.Errorf("upstream.client_id is required")
	}
	if c.OutputDir == "" {
		return fmt.Errorf("output_dir is required")
	}
	if c.Upstream.MaxWindowDays <= 0 {
		return fmt.Errorf("upstream.max_window_days must be positive")
	}
	if c.Upstream.PageSize <= 0 || c.Upstream.PageSize > DefaultPageSize {
		return fmt.Errorf("upstream.page_size must be in 1..%d", DefaultPageSize)
	}
	if c.Concurrency <= 0 {
		return fmt.Errorf("concurrency must be positive")
	}
	return nil
}

// expandPath expands ~ to the user's home directory.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
