package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"jellyfin-migrator/core/database"
	"jellyfin-migrator/core/logger"
	"jellyfin-migrator/feature/scanner"
	"jellyfin-migrator/feature/schema"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	scanLibrary string
	scanTarget  string
)

// scanCmd looks for library identifiers in another database
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Find library identifiers in another database",
	Long: `Loads every item identifier of a Jellyfin library database and reports which
tables and columns of another database contain them, and in which encoding.
Use it to decide what a plugin database needs in the ids work list.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logg, err := logger.New(&logger.Config{Level: "info", Format: "console"})
		if err != nil {
			return err
		}
		defer logg.Sync()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		for _, p := range []string{scanLibrary, scanTarget} {
			if _, err := os.Stat(p); err != nil {
				return fmt.Errorf("open %s: %w", p, err)
			}
		}

		libDB, err := database.Connect(database.Config{}, scanLibrary)
		if err != nil {
			return err
		}
		defer database.Close(libDB)
		lib, err := schema.Detect(libDB)
		if err != nil {
			return err
		}
		idx, err := scanner.LoadIndex(ctx, lib)
		if err != nil {
			return err
		}
		logg.Info("Loaded library identifiers", zap.Int("count", idx.Len()), zap.String("schema", string(lib.Variant())))

		targetDB, err := database.Connect(database.Config{}, scanTarget)
		if err != nil {
			return err
		}
		defer database.Close(targetDB)

		findings, err := scanner.NewService(idx, logg).Scan(ctx, targetDB)
		if err != nil {
			return err
		}
		if len(findings) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No identifiers found.")
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), renderFindings(findings))
		return nil
	},
}

func init() {
	scanCmd.Flags().StringVar(&scanLibrary, "library", "", "Jellyfin library database")
	scanCmd.Flags().StringVar(&scanTarget, "target", "", "database to scan")
	_ = scanCmd.MarkFlagRequired("library")
	_ = scanCmd.MarkFlagRequired("target")
	RootCmd.AddCommand(scanCmd)
}
