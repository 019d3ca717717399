package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"jellyfin-migrator/core/logger"
	"jellyfin-migrator/core/preflight"
	"jellyfin-migrator/core/progress"
	"jellyfin-migrator/feature/checkpoint"
	"jellyfin-migrator/feature/files"
	"jellyfin-migrator/feature/migration"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	migrateReset         bool
	migrateSkipDiskCheck bool
	migrateStateFile     string
	migrateDryRun        bool
)

// migrateCmd runs or resumes the migration pipeline
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run or resume a migration",
	Long: `Runs the four migration stages: PathMigration, IdPathRenaming, DatabaseIdUpdate
and DateSync. An interrupted run resumes from its checkpoint. A checkpoint created
with a different configuration is refused unless --reset is given.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// 1. Load Configuration
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if migrateSkipDiskCheck {
			cfg.Migration.SkipDiskCheck = true
		}
		if migrateStateFile != "" {
			cfg.Checkpoint.File = migrateStateFile
		}

		// 2. Initialize Logger
		runID := uuid.NewString()
		logg, err := newLogger(cfg, runID)
		if err != nil {
			return err
		}
		defer logg.Sync()

		mapper, err := newMapper(cfg, logg)
		if err != nil {
			return err
		}
		deps := migration.Deps{
			Config:   cfg.Migration,
			Jobs:     cfg.Jobs,
			Database: cfg.Database,
			Mapper:   mapper,
			Dates:    files.Dates{},
			Logger:   logg,
		}

		// 3. Dry run: detect the schema and show the work lists
		if migrateDryRun {
			plan, err := migration.New(deps).Plan()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Library %s (%s) -> %s\n", plan.Library.Source, plan.Variant, plan.Library.Target)
			fmt.Fprintln(cmd.OutOrStdout(), renderPlan(plan))
			return nil
		}

		// 4. Cancel on SIGINT/SIGTERM; the current item finishes and the checkpoint stays valid
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		// 5. Open Checkpoint
		store, err := checkpoint.Open(cfg.Checkpoint.File)
		if err != nil {
			return err
		}
		defer func() {
			if err := store.Close(); err != nil {
				logg.Warn("closing checkpoint failed", zap.Error(err))
			}
		}()
		resumed, err := store.Begin(runID, cfg.Fingerprint(), migrateReset)
		if err != nil {
			return err
		}
		if resumed {
			logg.Info("Resuming migration", zap.String("stage", string(store.CurrentStage())), zap.String("checkpoint", store.Path()))
		} else {
			logg.Info("Starting migration", zap.String("checkpoint", store.Path()))
		}
		if store.CurrentStage() == checkpoint.StageDone {
			logg.Info("Migration already complete, use --reset to run it again")
			return nil
		}

		// 6. Preflight
		results := preflight.RunAll(cfg.Roots, cfg.Migration.SkipDiskCheck)
		if err := preflight.Err(results); err != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), renderPreflight(results))
			return fmt.Errorf("preflight failed: %w", err)
		}

		// 7. Run
		deps.Store = store
		deps.Progress = progress.New(os.Stderr, logger.IsTerminal(os.Stderr))
		summary, err := migration.New(deps).Run(ctx)
		if summary != nil {
			fmt.Fprintln(cmd.OutOrStdout(), renderSummary(summary))
		}
		if err != nil {
			return err
		}
		if itemErrs := summary.Err(); itemErrs != nil {
			logg.Warn("Migration finished with item errors", zap.Error(itemErrs))
			return nil
		}
		logg.Info("Migration finished")
		return nil
	},
}

func init() {
	migrateCmd.Flags().BoolVar(&migrateReset, "reset", false, "discard the checkpoint and start over")
	migrateCmd.Flags().BoolVar(&migrateSkipDiskCheck, "skip-disk-check", false, "skip the free disk space check")
	migrateCmd.Flags().StringVar(&migrateStateFile, "state-file", "", "checkpoint location (overrides checkpoint.file)")
	migrateCmd.Flags().BoolVar(&migrateDryRun, "dry-run", false, "detect the schema and print the plan without writing")
	RootCmd.AddCommand(migrateCmd)
}
