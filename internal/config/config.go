package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/perchlabs/echotree/internal/logging"
)

// Config represents the main configuration
type Config struct {
	Version  string          `yaml:"version"`
	Echo     *EchoConfig     `yaml:"echo"`
	Tree     *TreeConfig     `yaml:"tree"`
	Snapshot *SnapshotConfig `yaml:"snapshot"`
	Journal  *JournalConfig  `yaml:"journal"`
	Report   *ReportConfig   `yaml:"report"`
	Logging  *logging.Config `yaml:"logging"`
}

// EchoConfig holds the suggestion gate settings
type EchoConfig struct {
	Enabled    bool    `yaml:"enabled"`
	Threshold  float64 `yaml:"threshold"`
	MinSamples int     `yaml:"min_samples"`
}

// TreeConfig holds interaction tree settings
type TreeConfig struct {
	MaxDepth int `yaml:"max_depth"`
}

// SnapshotConfig holds memory persistence settings
type SnapshotConfig struct {
	Path      string          `yaml:"path"`
	SaveEvery int             `yaml:"save_every"`
	Autosave  *AutosaveConfig `yaml:"autosave"`
}

// AutosaveConfig holds background save scheduling
type AutosaveConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Schedule string `yaml:"schedule"` // cron expression, or @every <duration>
}

// JournalConfig holds the action journal settings
type JournalConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// ReportConfig holds summary rendering settings
type ReportConfig struct {
	TopPatterns int `yaml:"top_patterns"`
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()
	dataDir := filepath.Join(homeDir, ".echotree")
	return &Config{
		Version: "1",
		Echo: &EchoConfig{
			Enabled:    true,
			Threshold:  0.7,
			MinSamples: 3,
		},
		Tree: &TreeConfig{
			MaxDepth: 10,
		},
		Snapshot: &SnapshotConfig{
			Path:      filepath.Join(dataDir, "memory.json"),
			SaveEvery: 10,
			Autosave: &AutosaveConfig{
				Enabled:  false,
				Schedule: "@every 1m",
			},
		},
		Journal: &JournalConfig{
			Enabled: true,
			Path:    filepath.Join(dataDir, "journal.db"),
		},
		Report: &ReportConfig{
			TopPatterns: 5,
		},
		Logging: logging.DefaultConfig(),
	}
}

// Load loads configuration from a file
func Load(path string) (*Config, error) {
	config := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return config, nil // Return defaults if no config file
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	if err := yaml.Unmarshal([]byte(expanded), config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Expand paths
	if config.Snapshot != nil {
		config.Snapshot.Path = expandPath(config.Snapshot.Path)
	}
	if config.Journal != nil {
		config.Journal.Path = expandPath(config.Journal.Path)
	}
	if config.Logging != nil {
		config.Logging.Output = expandPath(config.Logging.Output)
	}

	return config, nil
}

// Save saves configuration to a file
func Save(config *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// DefaultConfigPath returns the default configuration path
func DefaultConfigPath() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".echotree", "config.yaml")
}

// expandPath expands ~ to home directory
func expandPath(path string) string {
	if strings.HasPrefix(path, "~") {
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, path[1:])
	}
	return path
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Echo == nil {
		return fmt.Errorf("echo configuration is required")
	}
	if c.Echo.Threshold < 0 || c.Echo.Threshold > 1 {
		return fmt.Errorf("invalid echo threshold: %v (must be in [0,1])", c.Echo.Threshold)
	}
	if c.Echo.MinSamples < 1 {
		return fmt.Errorf("invalid echo min_samples: %d (must be >= 1)", c.Echo.MinSamples)
	}
	if c.Tree == nil {
		return fmt.Errorf("tree configuration is required")
	}
	if c.Tree.MaxDepth < 1 {
		return fmt.Errorf("invalid tree max_depth: %d (must be >= 1)", c.Tree.MaxDepth)
	}
	if c.Snapshot == nil {
		return fmt.Errorf("snapshot configuration is required")
	}
	if c.Snapshot.Path == "" {
		return fmt.Errorf("snapshot path is required")
	}
	if c.Snapshot.SaveEvery < 1 {
		return fmt.Errorf("invalid snapshot save_every: %d (must be >= 1)", c.Snapshot.SaveEvery)
	}
	if c.Snapshot.Autosave != nil && c.Snapshot.Autosave.Enabled {
		if c.Snapshot.Autosave.Schedule == "" {
			return fmt.Errorf("autosave schedule is required when autosave is enabled")
		}
		if _, err := cron.ParseStandard(c.Snapshot.Autosave.Schedule); err != nil {
			return fmt.Errorf("invalid autosave schedule %q: %w", c.Snapshot.Autosave.Schedule, err)
		}
	}
	if c.Journal != nil && c.Journal.Enabled && c.Journal.Path == "" {
		return fmt.Errorf("journal path is required when the journal is enabled")
	}
	if c.Report != nil && c.Report.TopPatterns < 1 {
		return fmt.Errorf("invalid report top_patterns: %d (must be >= 1)", c.Report.TopPatterns)
	}
	return nil
}
