package cmd

import (
	"errors"
	"fmt"
	"os"

	"jellyfin-migrator/feature/checkpoint"

	"github.com/spf13/cobra"
)

var statusStateFile string

// statusCmd prints the checkpoint
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show migration progress",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		path := cfg.Checkpoint.File
		if statusStateFile != "" {
			path = statusStateFile
		}

		st, err := checkpoint.Load(path)
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(cmd.OutOrStdout(), "No checkpoint at %s, nothing has run yet\n", path)
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), renderState(st, cfg.Fingerprint()))
		return nil
	},
}

func init() {
	statusCmd.Flags().StringVar(&statusStateFile, "state-file", "", "checkpoint location (overrides checkpoint.file)")
	RootCmd.AddCommand(statusCmd)
}
