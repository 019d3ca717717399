package migration

import (
	"context"
	"fmt"
	"os"

	"jellyfin-migrator/core/migerr"
	"jellyfin-migrator/feature/checkpoint"
	"jellyfin-migrator/feature/dbupdate"
	"jellyfin-migrator/feature/files"

	"go.uber.org/zap"
)

func (o *Orchestrator) migratePaths(ctx context.Context, rep *StageReport) error {
	st := checkpoint.StagePathMigration
	p := o.processor(st)
	items, err := o.items(p, st, o.jobs.Paths)
	if err != nil {
		return err
	}

	fn := o.mapper.PathRules().Func()
	err = o.runItems(ctx, st, items, rep, func(ctx context.Context, it files.Item) (*files.Outcome, error) {
		return p.CopyWithPathRewrite(ctx, it, fn)
	})
	if err != nil {
		return err
	}
	return o.discover(ctx, rep)
}

// discover fills the registry from the migrated library database.
func (o *Orchestrator) discover(ctx context.Context, rep *StageReport) error {
	st := checkpoint.StagePathMigration
	lib := o.libraryItem()

	a, err := o.pool.get(lib.Target)
	if err != nil {
		return migerr.Fatal(migerr.New(string(st), lib.Rel, migerr.ErrFileIO, err))
	}
	d, err := Discover(ctx, a, o.registry, o.logger)
	if err != nil {
		return fmt.Errorf("%s: discover identifiers in %s: %w", st, lib.Rel, err)
	}

	for newID, olds := range d.Collisions {
		oldIDs := make([]string, len(olds))
		for i, id := range olds {
			oldIDs[i] = id.String()
		}
		o.logger.Warn("several items now share one identifier, their paths were merged",
			zap.String("stage", string(st)),
			zap.String("new_id", newID.String()),
			zap.Strings("old_ids", oldIDs))
	}

	rep.Registered = d.Registered
	rep.Changed = d.Changed
	rep.Collisions = len(d.Collisions)
	o.logger.Info("identifiers discovered",
		zap.String("stage", string(st)),
		zap.String("library", lib.Target),
		zap.Int("items", d.Rows),
		zap.Int("registered", d.Registered),
		zap.Int("changed", d.Changed),
		zap.Int("skipped", d.Skipped),
		zap.Int("invalid", d.Invalid),
		zap.Int("collisions", len(d.Collisions)))
	return nil
}

func (o *Orchestrator) renameIDPaths(ctx context.Context, rep *StageReport) error {
	st := checkpoint.StageIdPathRenaming
	p := o.processor(st)
	items, err := o.items(p, st, o.jobs.IDPaths)
	if err != nil {
		return err
	}
	return o.runItems(ctx, st, items, rep, func(ctx context.Context, it files.Item) (*files.Outcome, error) {
		return p.RewriteIDPaths(ctx, it, o.registry)
	})
}

func (o *Orchestrator) updateIDs(ctx context.Context, rep *StageReport) error {
	st := checkpoint.StageDatabaseIdUpdate
	p := o.processor(st)
	items, err := o.items(p, st, o.jobs.IDs)
	if err != nil {
		return err
	}
	return o.runItems(ctx, st, items, rep, func(ctx context.Context, it files.Item) (*files.Outcome, error) {
		out := &files.Outcome{Item: it, Target: it.Target}
		if it.Kind() != files.ContentDatabase {
			return out, migerr.New(string(st), it.Rel, migerr.ErrFileIO, fmt.Errorf("%s is not a database", it.Target))
		}
		u, err := o.updater(st, it)
		if err != nil {
			return out, err
		}

		total := &dbupdate.Result{Table: it.Rel}
		out.Database = total
		for _, spec := range it.Job.Tables {
			if !spec.HasIDColumns() {
				continue
			}
			res, err := u.UpdateIDs(ctx, spec, o.registry)
			total.Add(res)
			if err != nil {
				return out, err
			}
		}
		out.Rewritten = total.Updated > 0
		return out, nil
	})
}

func (o *Orchestrator) syncDates(ctx context.Context, rep *StageReport) error {
	st := checkpoint.StageDateSync
	lib := o.libraryItem()
	return o.runItems(ctx, st, []files.Item{lib}, rep, func(ctx context.Context, it files.Item) (*files.Outcome, error) {
		out := &files.Outcome{Item: it, Target: it.Target}
		u, err := o.updater(st, it)
		if err != nil {
			return out, err
		}
		res, err := u.SyncDates(ctx, o.dates, o.mapper.FilesystemPath)
		out.Database = res
		return out, err
	})
}

// updater opens the database of an item for a table pass.
func (o *Orchestrator) updater(st checkpoint.Stage, it files.Item) (*dbupdate.Updater, error) {
	if _, err := os.Stat(it.Target); err != nil {
		return nil, migerr.New(string(st), it.Rel, migerr.ErrFileIO, err)
	}
	a, err := o.pool.get(it.Target)
	if err != nil {
		return nil, migerr.New(string(st), it.Rel, migerr.ErrFileIO, err)
	}
	return dbupdate.New(a, o.store, o.logger, dbupdate.Options{
		Stage:      string(st),
		UnitPrefix: checkpoint.DatabaseUnit(st, it.Rel),
		BatchSize:  o.cfg.BatchSize,
	}), nil
}
