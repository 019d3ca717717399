package cmd

import (
	"fmt"

	"jellyfin-migrator/feature/checkpoint"

	"github.com/spf13/cobra"
)

var resetStateFile string

// resetCmd deletes the checkpoint
var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete the migration checkpoint",
	Long:  `Deletes the checkpoint so the next migrate starts from the first stage. Files already written to the target are left in place.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		path := cfg.Checkpoint.File
		if resetStateFile != "" {
			path = resetStateFile
		}

		store, err := checkpoint.Open(path)
		if err != nil {
			return err
		}
		if err := store.Reset(); err != nil {
			_ = store.Close()
			return err
		}
		if err := store.Close(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Checkpoint %s removed\n", path)
		return nil
	},
}

func init() {
	resetCmd.Flags().StringVar(&resetStateFile, "state-file", "", "checkpoint location (overrides checkpoint.file)")
	RootCmd.AddCommand(resetCmd)
}
