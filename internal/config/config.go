package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Connection modes.
const (
	ModeWebSocket = "websocket"
	ModePoll      = "poll"
)

// Display modes.
const (
	DisplayLog       = "log"
	DisplayDashboard = "dashboard"
)

type Config struct {
	Connection ConnectionConfig
	Display    DisplayConfig
	Filter     FilterConfig
	Logging    LoggingConfig
}

type ConnectionConfig struct {
	Endpoint       string `toml:"endpoint"`
	Mode           string `toml:"mode"`
	PollIntervalMS int    `toml:"poll_interval_ms"`
	PollLimit      int    `toml:"poll_limit"`
	QueueSize      int    `toml:"queue_size"`
}

type DisplayConfig struct {
	Mode          string `toml:"mode"`
	Window        int    `toml:"window"`
	RefreshRateMS int    `toml:"refresh_rate_ms"`
	ShowDetails   bool   `toml:"show_details"`
}

type FilterConfig struct {
	Source   string `toml:"source"`
	Category string `toml:"category"`
}

type LoggingConfig struct {
	File       string `toml:"file"`
	Level      string `toml:"level"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
}

type LoadResult struct {
	Config   Config
	Warnings []string
}

// DefaultConfig returns the built-in defaults used when no config file is
// present. File logging is off until a path is configured.
func DefaultConfig() Config {
	return Config{
		Connection: ConnectionConfig{
			Endpoint:       "ws://localhost:3001/ws",
			Mode:           ModeWebSocket,
			PollIntervalMS: 1000,
			PollLimit:      10,
			QueueSize:      256,
		},
		Display: DisplayConfig{
			Mode:          DisplayLog,
			Window:        500,
			RefreshRateMS: 100,
		},
		Logging: LoggingConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 14,
		},
	}
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "agentstream", "config.toml")
}

func Load() (*LoadResult, error) {
	return LoadFrom(defaultConfigPath())
}

func LoadFrom(path string) (*LoadResult, error) {
	cfg := DefaultConfig()
	result := &LoadResult{Config: cfg}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return result, nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var raw map[string]any
	if _, err := toml.Decode(string(data), &raw); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	result.Warnings = warnUnknownKeys(raw)

	var tf tomlFile
	if _, err := toml.Decode(string(data), &tf); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	mergeFromRaw(&result.Config, &tf, raw)

	if err := validate(&result.Config); err != nil {
		return nil, err
	}

	return result, nil
}

func LoadFromString(data string) (*LoadResult, error) {
	cfg := DefaultConfig()
	result := &LoadResult{Config: cfg}

	if data == "" {
		return result, nil
	}

	var raw map[string]any
	if _, err := toml.Decode(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	result.Warnings = warnUnknownKeys(raw)

	var tf tomlFile
	if _, err := toml.Decode(data, &tf); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	mergeFromRaw(&result.Config, &tf, raw)

	if err := validate(&result.Config); err != nil {
		return nil, err
	}

	return result, nil
}

func warnUnknownKeys(raw map[string]any) []string {
	knownTopLevel := map[string]bool{
		"connection": true,
		"display":    true,
		"filter":     true,
		"logging":    true,
	}
	var warnings []string
	for key := range raw {
		if !knownTopLevel[key] {
			warnings = append(warnings, fmt.Sprintf("unknown config key: %q", key))
		}
	}
	return warnings
}

type tomlFile struct {
	Connection *ConnectionConfig `toml:"connection"`
	Display    *DisplayConfig    `toml:"display"`
	Filter     *FilterConfig     `toml:"filter"`
	Logging    *LoggingConfig    `toml:"logging"`
}

// mergeFromRaw copies only the keys actually present in the file onto the
// defaults, so a partial config overrides nothing it does not mention.
func mergeFromRaw(cfg *Config, tf *tomlFile, raw map[string]any) {
	if tf.Connection != nil {
		if section, ok := rawSection(raw, "connection"); ok {
			if _, exists := section["endpoint"]; exists {
				cfg.Connection.Endpoint = tf.Connection.Endpoint
			}
			if _, exists := section["mode"]; exists {
				cfg.Connection.Mode = tf.Connection.Mode
			}
			if _, exists := section["poll_interval_ms"]; exists {
				cfg.Connection.PollIntervalMS = tf.Connection.PollIntervalMS
			}
			if _, exists := section["poll_limit"]; exists {
				cfg.Connection.PollLimit = tf.Connection.PollLimit
			}
			if _, exists := section["queue_size"]; exists {
				cfg.Connection.QueueSize = tf.Connection.QueueSize
			}
		}
	}
	if tf.Display != nil {
		if section, ok := rawSection(raw, "display"); ok {
			if _, exists := section["mode"]; exists {
				cfg.Display.Mode = tf.Display.Mode
			}
			if _, exists := section["window"]; exists {
				cfg.Display.Window = tf.Display.Window
			}
			if _, exists := section["refresh_rate_ms"]; exists {
				cfg.Display.RefreshRateMS = tf.Display.RefreshRateMS
			}
			if _, exists := section["show_details"]; exists {
				cfg.Display.ShowDetails = tf.Display.ShowDetails
			}
		}
	}
	if tf.Filter != nil {
		if section, ok := rawSection(raw, "filter"); ok {
			if _, exists := section["source"]; exists {
				cfg.Filter.Source = tf.Filter.Source
			}
			if _, exists := section["category"]; exists {
				cfg.Filter.Category = tf.Filter.Category
			}
		}
	}
	if tf.Logging != nil {
		if section, ok := rawSection(raw, "logging"); ok {
			if _, exists := section["file"]; exists {
				cfg.Logging.File = tf.Logging.File
			}
			if _, exists := section["level"]; exists {
				cfg.Logging.Level = tf.Logging.Level
			}
			if _, exists := section["max_size_mb"]; exists {
				cfg.Logging.MaxSizeMB = tf.Logging.MaxSizeMB
			}
			if _, exists := section["max_backups"]; exists {
				cfg.Logging.MaxBackups = tf.Logging.MaxBackups
			}
			if _, exists := section["max_age_days"]; exists {
				cfg.Logging.MaxAgeDays = tf.Logging.MaxAgeDays
			}
		}
	}
}

func rawSection(raw map[string]any, key string) (map[string]any, bool) {
	v, ok := raw[key]
	if !ok {
		return nil, false
	}
	m, ok := v.(map[string]any)
	return m, ok
}

func validate(cfg *Config) error {
	var errs []string

	if cfg.Connection.Endpoint == "" {
		errs = append(errs, "endpoint must not be empty")
	}
	if cfg.Connection.Mode != ModeWebSocket && cfg.Connection.Mode != ModePoll {
		errs = append(errs, fmt.Sprintf("connection mode must be %q or %q, got %q", ModeWebSocket, ModePoll, cfg.Connection.Mode))
	}
	if cfg.Connection.PollIntervalMS < 1 {
		errs = append(errs, fmt.Sprintf("poll_interval_ms must be positive, got %d", cfg.Connection.PollIntervalMS))
	}
	if cfg.Connection.PollLimit < 1 {
		errs = append(errs, fmt.Sprintf("poll_limit must be positive, got %d", cfg.Connection.PollLimit))
	}
	if cfg.Connection.QueueSize < 1 {
		errs = append(errs, fmt.Sprintf("queue_size must be positive, got %d", cfg.Connection.QueueSize))
	}

	if cfg.Display.Mode != DisplayLog && cfg.Display.Mode != DisplayDashboard {
		errs = append(errs, fmt.Sprintf("display mode must be %q or %q, got %q", DisplayLog, DisplayDashboard, cfg.Display.Mode))
	}
	if cfg.Display.Window < 1 {
		errs = append(errs, fmt.Sprintf("window must be positive, got %d", cfg.Display.Window))
	}
	if cfg.Display.RefreshRateMS < 1 {
		errs = append(errs, fmt.Sprintf("refresh_rate_ms must be positive, got %d", cfg.Display.RefreshRateMS))
	}

	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Sprintf("log level must be debug, info, warn or error, got %q", cfg.Logging.Level))
	}
	if cfg.Logging.MaxSizeMB < 1 {
		errs = append(errs, fmt.Sprintf("max_size_mb must be positive, got %d", cfg.Logging.MaxSizeMB))
	}
	if cfg.Logging.MaxBackups < 0 {
		errs = append(errs, fmt.Sprintf("max_backups must not be negative, got %d", cfg.Logging.MaxBackups))
	}
	if cfg.Logging.MaxAgeDays < 1 {
		errs = append(errs, fmt.Sprintf("max_age_days must be positive, got %d", cfg.Logging.MaxAgeDays))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation error: %s", strings.Join(errs, "; "))
	}
	return nil
}
