package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/issuesync/internal/logging"
)

const (
	// DataDirName is the per-project directory holding the store, the index and the lock.
	DataDirName = ".issuesync"

	projectFileYAML = ".issuesync.yaml"
	projectFileYML  = ".issuesync.yml"
	envPrefix       = "ISSUESYNC_"
)

// Config represents the complete issuesync configuration.
type Config struct {
	Version  int            `yaml:"version" json:"version"`
	Store    StoreConfig    `yaml:"store" json:"store"`
	Index    IndexConfig    `yaml:"index" json:"index"`
	Recovery RecoveryConfig `yaml:"recovery" json:"recovery"`
	Logging  LoggingConfig  `yaml:"logging" json:"logging"`
}

// StoreConfig configures the relational store holding issues and the recovery queue.
type StoreConfig struct {
	// Path to the SQLite file. Empty means <dir>/.issuesync/issues.db.
	Path string `yaml:"path" json:"path"`
	// Driver is "sqlite" (modernc, pure Go) or "sqlite3" (mattn, cgo).
	Driver      string `yaml:"driver" json:"driver"`
	BusyTimeout string `yaml:"busy_timeout" json:"busy_timeout"`
	CacheMB     int    `yaml:"cache_mb" json:"cache_mb"`
}

// IndexConfig configures the issue search index.
type IndexConfig struct {
	// Path to the bleve index directory. Empty means <dir>/.issuesync/issues.bleve.
	Path     string `yaml:"path" json:"path"`
	BulkSize int    `yaml:"bulk_size" json:"bulk_size"`
	// ReadOnly rejects every index write. Queue-policy operations keep their rows.
	ReadOnly bool `yaml:"read_only" json:"read_only"`
	// StandardsCacheSize bounds the per-rule security standards cache.
	StandardsCacheSize int `yaml:"standards_cache_size" json:"standards_cache_size"`
}

// RecoveryConfig tunes the recovery processor. Durations use time.ParseDuration syntax.
type RecoveryConfig struct {
	Enabled      bool   `yaml:"enabled" json:"enabled"`
	InitialDelay string `yaml:"initial_delay" json:"initial_delay"`
	Interval     string `yaml:"interval" json:"interval"`
	// MinAge skips rows younger than this so in-flight commits can delete their own rows first.
	MinAge    string `yaml:"min_age" json:"min_age"`
	LoopLimit int    `yaml:"loop_limit" json:"loop_limit"`
	// FailureRatio stops a run once a loop's success ratio is at or below it.
	FailureRatio       float64 `yaml:"failure_ratio" json:"failure_ratio"`
	BreakerMaxFailures int     `yaml:"breaker_max_failures" json:"breaker_max_failures"`
	BreakerReset       string  `yaml:"breaker_reset" json:"breaker_reset"`
}

// LoggingConfig configures slog output.
type LoggingConfig struct {
	Level     string `yaml:"level" json:"level"`
	FilePath  string `yaml:"file_path" json:"file_path"`
	MaxSizeMB int    `yaml:"max_size_mb" json:"max_size_mb"`
	MaxFiles  int    `yaml:"max_files" json:"max_files"`
}

// NewConfig creates a Config with defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Store: StoreConfig{
			Driver:      "sqlite",
			BusyTimeout: "5s",
			CacheMB:     64,
		},
		Index: IndexConfig{
			BulkSize:           500,
			StandardsCacheSize: 1024,
		},
		Recovery: RecoveryConfig{
			Enabled:            true,
			InitialDelay:       "5m",
			Interval:           "5m",
			MinAge:             "5m",
			LoopLimit:          10000,
			FailureRatio:       0.7,
			BreakerMaxFailures: 5,
			BreakerReset:       "30m",
		},
		Logging: LoggingConfig{
			Level:     "info",
			MaxSizeMB: 10,
			MaxFiles:  5,
		},
	}
}

// GetUserConfigPath returns the user-level config file:
//   - $XDG_CONFIG_HOME/issuesync/config.yaml (if XDG_CONFIG_HOME is set)
//   - ~/.config/issuesync/config.yaml (default)
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "issuesync", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "issuesync", "config.yaml")
	}
	return filepath.Join(home, ".config", "issuesync", "config.yaml")
}

// ProjectConfigPath returns the project config file in dir, preferring .yaml over .yml.
// The .yaml path is returned when neither exists.
func ProjectConfigPath(dir string) string {
	yamlPath := filepath.Join(dir, projectFileYAML)
	if fileExists(yamlPath) {
		return yamlPath
	}
	ymlPath := filepath.Join(dir, projectFileYML)
	if fileExists(ymlPath) {
		return ymlPath
	}
	return yamlPath
}

// Load loads configuration for the project rooted at dir.
// It applies configuration in order of increasing precedence:
//  1. Hardcoded defaults
//  2. User config (~/.config/issuesync/config.yaml)
//  3. Project config (.issuesync.yaml in dir)
//  4. Environment variables (ISSUESYNC_*)
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if path := GetUserConfigPath(); fileExists(path) {
		if err := cfg.loadYAML(path); err != nil {
			return nil, fmt.Errorf("failed to load user config: %w", err)
		}
	}

	if path := ProjectConfigPath(dir); fileExists(path) {
		if err := cfg.loadYAML(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// loadYAML decodes path over the current values; keys absent from the file keep
// their previous value, including booleans explicitly set by a lower layer.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// applyEnvOverrides applies ISSUESYNC_* environment variables. Unparseable values are ignored.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(envPrefix + "STORE_PATH"); v != "" {
		c.Store.Path = v
	}
	if v := os.Getenv(envPrefix + "STORE_DRIVER"); v != "" {
		c.Store.Driver = v
	}
	if v := os.Getenv(envPrefix + "INDEX_PATH"); v != "" {
		c.Index.Path = v
	}
	if v := os.Getenv(envPrefix + "INDEX_READ_ONLY"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Index.ReadOnly = b
		}
	}
	if v := os.Getenv(envPrefix + "RECOVERY_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Recovery.Enabled = b
		}
	}
	if v := os.Getenv(envPrefix + "RECOVERY_INTERVAL"); v != "" {
		c.Recovery.Interval = v
	}
	if v := os.Getenv(envPrefix + "RECOVERY_MIN_AGE"); v != "" {
		c.Recovery.MinAge = v
	}
	if v := os.Getenv(envPrefix + "RECOVERY_LOOP_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Recovery.LoopLimit = n
		}
	}
	if v := os.Getenv(envPrefix + "LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "sqlite", "sqlite3":
	default:
		return fmt.Errorf("store.driver must be 'sqlite' or 'sqlite3', got %q", c.Store.Driver)
	}
	if c.Store.CacheMB < 0 {
		return fmt.Errorf("store.cache_mb must be non-negative, got %d", c.Store.CacheMB)
	}
	if c.Index.BulkSize <= 0 {
		return fmt.Errorf("index.bulk_size must be positive, got %d", c.Index.BulkSize)
	}
	if c.Index.StandardsCacheSize <= 0 {
		return fmt.Errorf("index.standards_cache_size must be positive, got %d", c.Index.StandardsCacheSize)
	}

	durations := map[string]string{
		"store.busy_timeout":     c.Store.BusyTimeout,
		"recovery.initial_delay": c.Recovery.InitialDelay,
		"recovery.interval":      c.Recovery.Interval,
		"recovery.min_age":       c.Recovery.MinAge,
		"recovery.breaker_reset": c.Recovery.BreakerReset,
	}
	for name, v := range durations {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		if d < 0 {
			return fmt.Errorf("%s must be non-negative, got %s", name, v)
		}
	}
	if d, _ := time.ParseDuration(c.Recovery.Interval); d == 0 {
		return fmt.Errorf("recovery.interval must be positive")
	}

	if c.Recovery.LoopLimit <= 0 {
		return fmt.Errorf("recovery.loop_limit must be positive, got %d", c.Recovery.LoopLimit)
	}
	if c.Recovery.FailureRatio < 0 || c.Recovery.FailureRatio >= 1 {
		return fmt.Errorf("recovery.failure_ratio must be in [0, 1), got %f", c.Recovery.FailureRatio)
	}
	if c.Recovery.BreakerMaxFailures <= 0 {
		return fmt.Errorf("recovery.breaker_max_failures must be positive, got %d", c.Recovery.BreakerMaxFailures)
	}
	if !logging.ValidLevel(c.Logging.Level) {
		return fmt.Errorf("logging.level must be 'debug', 'info', 'warn', or 'error', got %s", c.Logging.Level)
	}
	return nil
}

// StorePath resolves the SQLite file path against the project directory.
func (c *Config) StorePath(dir string) string {
	return resolve(dir, c.Store.Path, "issues.db")
}

// IndexPath resolves the bleve index directory against the project directory.
func (c *Config) IndexPath(dir string) string {
	return resolve(dir, c.Index.Path, "issues.bleve")
}

// DataDir is the directory holding default store and index files and the process lock.
func DataDir(dir string) string {
	return filepath.Join(dir, DataDirName)
}

func resolve(dir, configured, defaultName string) string {
	switch {
	case configured == "":
		return filepath.Join(DataDir(dir), defaultName)
	case filepath.IsAbs(configured):
		return configured
	default:
		return filepath.Join(dir, configured)
	}
}

// BusyTimeoutDuration returns store.busy_timeout. Validate guarantees it parses.
func (s StoreConfig) BusyTimeoutDuration() time.Duration {
	return mustDuration(s.BusyTimeout)
}

func (r RecoveryConfig) InitialDelayDuration() time.Duration { return mustDuration(r.InitialDelay) }
func (r RecoveryConfig) IntervalDuration() time.Duration     { return mustDuration(r.Interval) }
func (r RecoveryConfig) MinAgeDuration() time.Duration       { return mustDuration(r.MinAge) }
func (r RecoveryConfig) BreakerResetDuration() time.Duration { return mustDuration(r.BreakerReset) }

func mustDuration(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0
	}
	return d
}

// Options converts to the logging package config.
func (l LoggingConfig) Options() logging.Config {
	return logging.Config{
		Level:         l.Level,
		FilePath:      l.FilePath,
		MaxSizeMB:     l.MaxSizeMB,
		MaxFiles:      l.MaxFiles,
		WriteToStderr: true,
	}
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
