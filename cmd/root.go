package cmd

import (
	"fmt"
	"os"

	"entity-persister/core/config"
	"entity-persister/core/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// configDir is the directory holding the optional .env file.
var configDir string

// RootCmd is the entity-persister command.
var RootCmd = &cobra.Command{
	Use:   "entity-persister",
	Short: "Entity Persister Service",
	Long: `Entity Persister computes and applies the minimal set of database writes
that bring stored rows in line with a desired entity graph.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	RootCmd.PersistentFlags().StringVar(&configDir, "config-dir", ".", "Directory containing the .env file")
}

// loadConfig reads the configuration from --config-dir.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// Execute runs RootCmd and exits with status 1 on failure. Errors are reported
// with a console logger since no configuration may have been read yet.
func Execute() {
	err := RootCmd.Execute()
	if err == nil {
		return
	}
	if l, logErr := logger.New(&logger.Config{Level: "debug", Format: "console"}); logErr == nil {
		l.Error("Command failed", zap.Error(err))
		_ = l.Sync()
	} else {
		fmt.Fprintln(os.Stderr, err)
	}
	os.Exit(1)
}
