package migration

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"jellyfin-migrator/core/database"
	"jellyfin-migrator/core/migerr"
	"jellyfin-migrator/feature/checkpoint"
	"jellyfin-migrator/feature/dbupdate"
	"jellyfin-migrator/feature/files"
	"jellyfin-migrator/feature/ids"
	"jellyfin-migrator/feature/paths"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Deps are the collaborators of an Orchestrator.
type Deps struct {
	Config   Config
	Jobs     Jobs
	Database database.Config
	Mapper   *paths.Mapper
	// Store must have been started with Begin.
	Store *checkpoint.Store
	// Progress and Dates are optional.
	Progress Progress
	Dates    dbupdate.FileDates
	Logger   *zap.Logger
}

// Orchestrator owns the state of one migration run.
type Orchestrator struct {
	cfg      Config
	jobs     Jobs
	mapper   *paths.Mapper
	store    *checkpoint.Store
	registry *ids.Registry
	pool     *dbPool
	progress Progress
	dates    dbupdate.FileDates
	logger   *zap.Logger
}

// New returns an Orchestrator with an empty identifier registry.
func New(d Deps) *Orchestrator {
	if d.Config.Workers <= 0 {
		d.Config.Workers = 1
	}
	if d.Config.OnFileError == "" {
		d.Config.OnFileError = files.OnErrorSkip
	}
	if d.Progress == nil {
		d.Progress = nopProgress{}
	}
	if d.Dates == nil {
		d.Dates = files.Dates{}
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	return &Orchestrator{
		cfg:      d.Config,
		jobs:     d.Jobs,
		mapper:   d.Mapper,
		store:    d.Store,
		registry: ids.NewRegistry(),
		pool:     newDBPool(d.Database, d.Logger),
		progress: d.Progress,
		dates:    d.Dates,
		logger:   d.Logger,
	}
}

// Registry returns the identifier registry of the run.
func (o *Orchestrator) Registry() *ids.Registry {
	return o.registry
}

// Run executes every stage the checkpoint does not record as complete. It
// stops at the first fatal error; the returned summary covers the stages
// that ran.
func (o *Orchestrator) Run(ctx context.Context) (*Summary, error) {
	defer func() {
		if err := o.pool.close(); err != nil {
			o.logger.Warn("closing databases failed", zap.Error(err))
		}
	}()

	sum := &Summary{}

	// 1. Restore the registry built by an earlier run
	if current := o.store.CurrentStage(); current.Index() > checkpoint.StagePathMigration.Index() {
		if err := o.registry.Restore(o.store.Registry()); err != nil {
			return sum, migerr.New(string(current), "", migerr.ErrCheckpointCorruption, err)
		}
		o.logger.Info("identifier registry restored",
			zap.Int("mappings", o.registry.Len()),
			zap.Int("changed", o.registry.Changed()))
	}

	// 2. Execute the pending stages in order
	for i, st := range checkpoint.Stages {
		if o.store.IsStageComplete(st) {
			o.logger.Info("stage already complete, skipping", zap.String("stage", string(st)))
			sum.Skipped = append(sum.Skipped, st)
			continue
		}
		if i > 0 && !o.store.IsStageComplete(checkpoint.Stages[i-1]) {
			return sum, migerr.New(string(st), "", migerr.ErrStageOrder,
				fmt.Errorf("%s is not complete", checkpoint.Stages[i-1]))
		}

		rep, err := o.runStage(ctx, st)
		sum.Reports = append(sum.Reports, rep)
		if err != nil {
			return sum, err
		}

		var snapshot []ids.Pair
		if st == checkpoint.StagePathMigration {
			snapshot = o.registry.Snapshot()
		}
		if err := o.store.CompleteStage(st, snapshot); err != nil {
			return sum, err
		}
	}

	o.logger.Info("migration complete")
	return sum, nil
}

func (o *Orchestrator) runStage(ctx context.Context, st checkpoint.Stage) (*StageReport, error) {
	log := o.logger.With(zap.String("stage", string(st)))
	log.Info("stage started")

	rep := newReport(st)
	start := time.Now()

	var err error
	switch st {
	case checkpoint.StagePathMigration:
		err = o.migratePaths(ctx, rep)
	case checkpoint.StageIdPathRenaming:
		err = o.renameIDPaths(ctx, rep)
	case checkpoint.StageDatabaseIdUpdate:
		err = o.updateIDs(ctx, rep)
	case checkpoint.StageDateSync:
		err = o.syncDates(ctx, rep)
	default:
		err = fmt.Errorf("unknown stage %s", st)
	}
	rep.Duration = time.Since(start)
	o.progress.StageFinished(string(st))

	if err != nil {
		log.Error("stage aborted", zap.Error(err))
		return rep, err
	}
	if rerr := rep.Err(); rerr != nil {
		log.Warn("stage completed with errors", append(rep.fields(), zap.Error(rerr))...)
	} else {
		log.Info("stage completed", rep.fields()...)
	}
	return rep, nil
}

// itemFunc processes one work item of a stage.
type itemFunc func(ctx context.Context, it files.Item) (*files.Outcome, error)

// runItems processes items on the worker pool. An item is recorded complete
// only after fn succeeded; failed items stay pending for the next run.
func (o *Orchestrator) runItems(ctx context.Context, st checkpoint.Stage, items []files.Item, rep *StageReport, fn itemFunc) error {
	rep.Items = len(items)
	o.progress.StageStarted(string(st), len(items))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.Workers)

	for _, it := range items {
		key := checkpoint.FileKey(st, it.Rel)
		if o.store.IsDone(key) {
			rep.skip()
			o.progress.Advance(string(st), 1)
			continue
		}
		if gctx.Err() != nil {
			break
		}

		g.Go(func() error {
			out, err := fn(gctx, it)
			if err != nil {
				if o.cfg.OnFileError == files.OnErrorAbort && errors.Is(err, migerr.ErrFileIO) {
					err = migerr.Fatal(err)
				}
				if migerr.IsFatal(err) {
					return err
				}
				rep.fail(err)
				o.progress.Advance(string(st), 1)
				return nil
			}
			if err := o.store.MarkDone(key); err != nil {
				return migerr.Fatal(fmt.Errorf("record %s: %w", key, err))
			}
			rep.record(out)
			o.progress.Advance(string(st), 1)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

func (o *Orchestrator) processor(st checkpoint.Stage) *files.Processor {
	return files.NewProcessor(o.mapper, o.store, &stageRewriter{o: o, stage: st}, o.logger, files.Options{
		Stage:           st,
		OnError:         o.cfg.OnFileError,
		DeleteEmptyDirs: o.cfg.DeleteEmptyDirs,
	})
}

// items expands the jobs of a stage. A file selected by more than one job is
// processed by the first.
func (o *Orchestrator) items(p *files.Processor, st checkpoint.Stage, jobs []files.Job) ([]files.Item, error) {
	var out []files.Item
	seen := make(map[string]string)
	for _, job := range jobs {
		if err := job.Validate(); err != nil {
			return nil, err
		}
		items, err := p.Items(job)
		if err != nil {
			return nil, err
		}
		if len(items) == 0 {
			o.logger.Warn("job matched no files", zap.String("stage", string(st)), zap.String("source", job.Source))
		}
		for _, it := range items {
			if first, ok := seen[it.Rel]; ok {
				o.logger.Warn("file selected by several jobs, using the first",
					zap.String("stage", string(st)),
					zap.String("item", it.Rel),
					zap.String("job", first))
				continue
			}
			seen[it.Rel] = job.Source
			out = append(out, it)
		}
	}
	return out, nil
}

// libraryItem locates the library database: the PathMigration job that
// selects it decides its target, otherwise the path rules do.
func (o *Orchestrator) libraryItem() files.Item {
	rel := strings.Trim(filepath.ToSlash(o.jobs.LibraryDB), "/")
	p := o.processor(checkpoint.StagePathMigration)
	for _, job := range o.jobs.Paths {
		items, err := p.Items(job)
		if err != nil {
			continue
		}
		for _, it := range items {
			if it.Rel == rel {
				return it
			}
		}
	}
	src := filepath.Join(o.mapper.Roots().Source, filepath.FromSlash(rel))
	return files.Item{Rel: rel, Source: src, Target: o.mapper.TargetFor(src)}
}

// stageRewriter rewrites the path columns of a database copied by a stage.
type stageRewriter struct {
	o     *Orchestrator
	stage checkpoint.Stage
}

func (r *stageRewriter) RewriteDatabase(ctx context.Context, path, unit string, tables []dbupdate.TableSpec, fn paths.StringFunc) (*dbupdate.Result, error) {
	a, err := r.o.pool.get(path)
	if err != nil {
		return nil, err
	}
	u := dbupdate.New(a, r.o.store, r.o.logger, dbupdate.Options{
		Stage:      string(r.stage),
		UnitPrefix: unit,
		BatchSize:  r.o.cfg.BatchSize,
	})

	total := &dbupdate.Result{Table: filepath.Base(path)}
	for _, spec := range tables {
		if !spec.HasPathColumns() {
			continue
		}
		res, err := u.UpdatePaths(ctx, spec, fn)
		total.Add(res)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
