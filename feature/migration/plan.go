package migration

import (
	"jellyfin-migrator/feature/checkpoint"
	"jellyfin-migrator/feature/files"
	"jellyfin-migrator/feature/schema"

	"go.uber.org/zap"
)

// StagePlan is the work of one stage as seen before running it.
type StagePlan struct {
	Stage    checkpoint.Stage
	Complete bool
	Items    int
	// Done counts items an earlier run completed.
	Done int
}

// Plan describes what Run would do.
type Plan struct {
	// Library is the library database and where it goes.
	Library files.Item
	// Variant is the schema generation of the source library database.
	Variant schema.Variant
	Stages  []StagePlan
}

// Plan expands the work lists and detects the library schema without
// writing anything. The store may be nil, in which case nothing counts as
// done.
func (o *Orchestrator) Plan() (*Plan, error) {
	defer func() {
		if err := o.pool.close(); err != nil {
			o.logger.Warn("closing databases failed", zap.Error(err))
		}
	}()

	lib := o.libraryItem()
	a, err := o.pool.get(lib.Source)
	if err != nil {
		return nil, err
	}
	pl := &Plan{Library: lib, Variant: a.Variant()}

	jobs := map[checkpoint.Stage][]files.Job{
		checkpoint.StagePathMigration:    o.jobs.Paths,
		checkpoint.StageIdPathRenaming:   o.jobs.IDPaths,
		checkpoint.StageDatabaseIdUpdate: o.jobs.IDs,
	}
	for _, st := range checkpoint.Stages {
		sp := StagePlan{Stage: st, Complete: o.store != nil && o.store.IsStageComplete(st)}

		items := []files.Item{lib}
		if st != checkpoint.StageDateSync {
			if items, err = o.items(o.processor(st), st, jobs[st]); err != nil {
				return nil, err
			}
		}
		sp.Items = len(items)
		for _, it := range items {
			if o.store != nil && o.store.IsDone(checkpoint.FileKey(st, it.Rel)) {
				sp.Done++
			}
		}
		pl.Stages = append(pl.Stages, sp)
	}
	return pl, nil
}
