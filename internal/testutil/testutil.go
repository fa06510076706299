// Package testutil provides testing utilities for isolated test environments.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/villagegraph/assistant/internal/config"
)

// TestEnv provides an isolated test environment with its own config directory.
type TestEnv struct {
	t         *testing.T
	ConfigDir string
}

// NewTestEnv creates an isolated test environment. Environment variables
// override every path so tests stay isolated even when run in parallel
// across packages. Cleanup is automatic via t.Cleanup.
func NewTestEnv(t *testing.T) *TestEnv {
	t.Helper()

	configDir := filepath.Join(t.TempDir(), "config")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		t.Fatalf("failed to create test config dir: %v", err)
	}

	// t.Setenv is test-scoped; these override viper via AutomaticEnv().
	t.Setenv("VILLAGEGRAPH_CONFIG_DIR", configDir)
	t.Setenv("VILLAGEGRAPH_LOG_FILE", filepath.Join(configDir, "villagegraph.log"))

	config.Reset()
	if err := config.Init(); err != nil {
		t.Fatalf("failed to initialize test config: %v", err)
	}

	env := &TestEnv{
		t:         t,
		ConfigDir: configDir,
	}

	t.Cleanup(config.Reset)

	return env
}

// WriteConfigFile writes config file content into the environment's config
// directory and reloads the config subsystem.
func (e *TestEnv) WriteConfigFile(content string) {
	e.t.Helper()

	path := filepath.Join(e.ConfigDir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		e.t.Fatalf("failed to write test config file: %v", err)
	}

	config.Reset()
	if err := config.Init(); err != nil {
		e.t.Fatalf("failed to reload test config: %v", err)
	}
}
