package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
)

// LocalConfigName is the per-project config file searched upward from the cwd
const LocalConfigName = ".agent-deploy.toml"

// Config holds all application configuration
type Config struct {
	Bundle        BundleConfig        `toml:"bundle"`
	Workspace     WorkspaceConfig     `toml:"workspace"`
	Notifications NotificationsConfig `toml:"notifications"`
	History       HistoryConfig       `toml:"history"`
	Logging       LoggingConfig       `toml:"logging"`
}

// BundleConfig describes how the bundle CLI is invoked
type BundleConfig struct {
	CLI     string `toml:"cli"`
	Root    string `toml:"root"`
	JobName string `toml:"job_name"`

	// OutputTail is how many bytes of a failed command's output are kept
	// for run history and notifications
	OutputTail int `toml:"output_tail"`
}

// WorkspaceConfig mirrors the bundle's databricks.yml. These values are
// only printed; keep them in step with the bundle file.
type WorkspaceConfig struct {
	Host            string `toml:"host"`
	Catalog         string `toml:"catalog"`
	Schema          string `toml:"schema"`
	ModelName       string `toml:"model_name"`
	ServingEndpoint string `toml:"serving_endpoint"`
	UCFunction      string `toml:"uc_function"`
}

// NotificationsConfig holds notification settings
type NotificationsConfig struct {
	Desktop      bool   `toml:"desktop"`
	SlackWebhook string `toml:"slack_webhook"`
}

// HistoryConfig controls the local run history database
type HistoryConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// LoggingConfig controls diagnostic logging on stderr
type LoggingConfig struct {
	Level string `toml:"level"`
}

// Default returns a Config with sensible defaults
func Default() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		Bundle: BundleConfig{
			CLI:        "databricks",
			Root:       ".",
			JobName:    "agent_deploy",
			OutputTail: 4096,
		},
		Workspace: WorkspaceConfig{
			Host:            "https://e2-demo-field-eng.cloud.databricks.com",
			Catalog:         "fins_genai",
			Schema:          "agents",
			ModelName:       "agent_dab",
			ServingEndpoint: "databricks-claude-sonnet-4",
			UCFunction:      "system.ai.python_exec",
		},
		History: HistoryConfig{
			Path: filepath.Join(home, ".config", "agent-deploy", "history.db"),
		},
		Logging: LoggingConfig{
			Level: "warn",
		},
	}
}

// UCModelName returns the fully qualified Unity Catalog model name
func (w WorkspaceConfig) UCModelName() string {
	return w.Catalog + "." + w.Schema + "." + w.ModelName
}

// Load reads configuration from a TOML file, falling back to defaults
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, errors.Wrapf(err, "reading config %s", path)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "parsing config %s", path)
	}

	// Expand paths
	cfg.Bundle.Root = ExpandPath(cfg.Bundle.Root)
	cfg.History.Path = ExpandPath(cfg.History.Path)

	return cfg, nil
}

// LoadWithLocalFallback loads the explicit path if given, then a local
// project config, then the user config.
func LoadWithLocalFallback(explicitPath string) (*Config, error) {
	if explicitPath != "" {
		if _, err := os.Stat(explicitPath); err != nil {
			return nil, errors.Wrapf(err, "config %s", explicitPath)
		}
		return Load(explicitPath)
	}
	if local := FindLocalConfig(); local != "" {
		return Load(local)
	}
	return Load(DefaultConfigPath())
}

// FindLocalConfig walks up from the working directory looking for
// LocalConfigName. Returns "" if none is found.
func FindLocalConfig() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		candidate := filepath.Join(dir, LocalConfigName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// ExpandPath expands ~ to the user's home directory
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}

// DefaultConfigPath returns the default config file location
func DefaultConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "agent-deploy", "config.toml")
}
