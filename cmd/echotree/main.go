package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/perchlabs/echotree/internal/config"
)

var (
	version   = "0.3.0"
	buildTime = "unknown"
)

// cfgFile is the --config override shared by every command.
var cfgFile string

func main() {
	rootCmd := &cobra.Command{
		Use:   "echotree",
		Short: "Pattern memory for interaction agents",
		Long: `EchoTree watches an agent's action stream, remembers which action
sequences succeed, and echoes back the patterns it expects to work.

Memory persists across sessions in a JSON snapshot; every recorded
action is journaled to SQLite so past sessions can be replayed.`,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file path (default ~/.echotree/config.yaml)")

	rootCmd.AddCommand(
		newRunCmd(),
		newSummaryCmd(),
		newPatternsCmd(),
		newSessionsCmd(),
		newReplayCmd(),
		newConfigCmd(),
		newInitCmd(),
		newVersionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig resolves the config path, loads it, and validates the result.
func loadConfig() (*config.Config, error) {
	configPath := cfgFile
	if configPath == "" {
		configPath = config.DefaultConfigPath()
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
