package cmd

import (
	"fmt"
	"os"

	"jellyfin-migrator/core/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// configFile is the --config flag shared by every subcommand.
var configFile string

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "jellyfin-migrator",
	Short: "Jellyfin server state migrator",
	Long: `Jellyfin Migrator moves a Jellyfin installation to another host or root layout.
It copies the library tree, rewrites paths in databases and metadata files and
recomputes item identifiers so watch history and artwork stay valid.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() {
	if err := RootCmd.Execute(); err != nil {
		// Use the application's standard logger for error reporting
		// We default to console format to match user expectations (CLI tool)
		// We use "debug" level configuration to get ISO8601 timestamps (DevConfig) instead of Epoch (ProdConfig)
		cfg := &logger.Config{
			Level:  "debug",
			Format: "console",
		}

		l, logErr := logger.New(cfg)
		if logErr == nil {
			// Log the error with structured logger (Console encoding will make it pretty)
			l.Error("command failed", zap.Error(err))
			_ = l.Sync()
		} else {
			// Absolute fallback if logger creation fails (rare)
			fmt.Println(err)
		}
		os.Exit(1)
	}
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "migrator.yaml", "path to the YAML configuration")
}
