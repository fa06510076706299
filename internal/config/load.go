// Package config loads, validates, and writes the application configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/viper"
)

var (
	mu      sync.RWMutex
	current *Config
)

// Init loads the configuration once and makes it available through Get.
// Called from the root command before any subcommand runs.
func Init() error {
	cfg, err := Load()
	if err != nil {
		return err
	}

	mu.Lock()
	current = cfg
	mu.Unlock()
	return nil
}

// Reset clears the loaded configuration. Used by tests that manipulate the
// environment between loads.
func Reset() {
	mu.Lock()
	current = nil
	mu.Unlock()
}

// Get returns the configuration loaded by Init, or defaults when Init has
// not run.
func Get() *Config {
	mu.RLock()
	defer mu.RUnlock()
	if current == nil {
		cfg := NewDefaultConfig()
		return &cfg
	}
	return current
}

// Load reads and returns the typed configuration.
// It searches for configuration files in priority order:
//  1. Directory specified by VILLAGEGRAPH_CONFIG_DIR environment variable
//  2. ~/.config/villagegraph/
//  3. Current working directory (.)
//
// If no config file is found, defaults (plus environment overrides) are used.
func Load() (*Config, error) {
	v := newViper()

	if envPath := os.Getenv("VILLAGEGRAPH_CONFIG_DIR"); envPath != "" {
		v.AddConfigPath(envPath)
	}
	if home := os.Getenv("HOME"); home != "" {
		v.AddConfigPath(filepath.Join(home, ".config", "villagegraph"))
	}
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config; %w", err)
		}
		// No file is fine; env vars and defaults still apply.
	}

	return unmarshalConfig(v)
}

// LoadFromPath reads configuration from a specific file path.
func LoadFromPath(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config from %s; %w", path, err)
	}

	return unmarshalConfig(v)
}

func newViper() *viper.Viper {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetEnvPrefix("VILLAGEGRAPH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setViperDefaults(v)

	return v
}

// unmarshalConfig converts viper state to a validated typed Config.
func unmarshalConfig(v *viper.Viper) (*Config, error) {
	cfg := &Config{}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config; %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// DefaultConfigPath returns the default config file location.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "villagegraph", "config.yaml")
}
