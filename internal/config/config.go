// Package config provides configuration management for promptkit.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// Defaults applied when settings.yaml is missing or partial.
const (
	DefaultPort      = 8701
	DefaultModel     = "gpt-4.1-nano"
	DefaultBaseURL   = "https://api.openai.com/v1"
	DefaultMaxConns  = 4
	DefaultMaxTasks  = 4
	DefaultMaxTokens = 1024
)

// Config holds promptkit settings, loaded from ~/.promptkit/settings.yaml.
type Config struct {
	Port     int `yaml:"port"`
	MaxConns int `yaml:"max_conns"`
	// MaxTasks bounds how many generation tasks run concurrently.
	MaxTasks int `yaml:"max_tasks"`

	Provider ProviderConfig `yaml:"provider"`
}

// ProviderConfig configures the text-generation backend.
type ProviderConfig struct {
	BaseURL     string  `yaml:"base_url"`
	APIKey      string  `yaml:"api_key,omitempty"`
	Model       string  `yaml:"model"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float32 `yaml:"temperature,omitempty"`
}

var (
	mu      sync.RWMutex
	current *Config
)

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Port:     DefaultPort,
		MaxConns: DefaultMaxConns,
		MaxTasks: DefaultMaxTasks,
		Provider: ProviderConfig{
			BaseURL:   DefaultBaseURL,
			Model:     DefaultModel,
			MaxTokens: DefaultMaxTokens,
		},
	}
}

// DataDir returns the promptkit data directory (~/.promptkit).
func DataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".promptkit")
}

// DBPath returns the SQLite database path.
func DBPath() string {
	return filepath.Join(DataDir(), "promptkit.db")
}

// SettingsPath returns the settings file path.
func SettingsPath() string {
	return filepath.Join(DataDir(), "settings.yaml")
}

// EnsureDataDir creates the data directory if it doesn't exist.
func EnsureDataDir() error {
	return os.MkdirAll(DataDir(), 0o755)
}

// EnsureSettings writes a default settings file if none exists.
func EnsureSettings() error {
	path := SettingsPath()
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}

	data, err := yaml.Marshal(Default())
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// EnsureAll creates the data directory and default settings.
func EnsureAll() error {
	if err := EnsureDataDir(); err != nil {
		return fmt.Errorf("ensure data dir: %w", err)
	}
	if err := EnsureSettings(); err != nil {
		return fmt.Errorf("ensure settings: %w", err)
	}
	return nil
}

// Load reads settings.yaml, fills in defaults for zero values, applies
// environment overrides, and caches the result for Get.
func Load() (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(SettingsPath())
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read settings: %w", err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse settings: %w", err)
		}
	}

	applyDefaults(cfg)
	applyEnv(cfg)

	mu.Lock()
	current = cfg
	mu.Unlock()

	return cfg, nil
}

// Get returns the last loaded configuration, or defaults if Load has
// not been called.
func Get() *Config {
	mu.RLock()
	defer mu.RUnlock()
	if current == nil {
		return Default()
	}
	return current
}

func applyDefaults(cfg *Config) {
	if cfg.Port <= 0 {
		cfg.Port = DefaultPort
	}
	if cfg.MaxConns <= 0 {
		cfg.MaxConns = DefaultMaxConns
	}
	if cfg.MaxTasks <= 0 {
		cfg.MaxTasks = DefaultMaxTasks
	}
	if cfg.Provider.BaseURL == "" {
		cfg.Provider.BaseURL = DefaultBaseURL
	}
	if cfg.Provider.Model == "" {
		cfg.Provider.Model = DefaultModel
	}
	if cfg.Provider.MaxTokens <= 0 {
		cfg.Provider.MaxTokens = DefaultMaxTokens
	}
}

// applyEnv lets the API key come from the environment so it never has
// to live in the settings file.
func applyEnv(cfg *Config) {
	if key := os.Getenv("PROMPTKIT_API_KEY"); key != "" {
		cfg.Provider.APIKey = key
	} else if key := os.Getenv("OPENAI_API_KEY"); key != "" && cfg.Provider.APIKey == "" {
		cfg.Provider.APIKey = key
	}
}
