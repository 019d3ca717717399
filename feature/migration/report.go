package migration

import (
	"sync"
	"time"

	"jellyfin-migrator/feature/checkpoint"
	"jellyfin-migrator/feature/dbupdate"
	"jellyfin-migrator/feature/files"
	"jellyfin-migrator/feature/paths"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// StageReport summarizes one stage of one run.
type StageReport struct {
	Stage checkpoint.Stage
	// Items is the number of work items of the stage.
	Items int
	// Done counts items completed in this run.
	Done int
	// Skipped counts items completed by an earlier run.
	Skipped int
	// Failed counts items that failed and stay pending.
	Failed int
	// Copied counts files copied in this run.
	Copied int
	// Bytes is the number of bytes copied.
	Bytes int64
	// Rewritten counts files whose content changed.
	Rewritten int
	// Renamed counts files moved to their identifier path.
	Renamed int
	// Paths aggregates path rewrites in file content.
	Paths paths.Stats
	// Database aggregates database passes.
	Database dbupdate.Result
	// Registered is the number of identifiers found by discovery.
	Registered int
	// Changed is the number of registered identifiers whose value changes.
	Changed int
	// Collisions counts new identifiers shared by several old ones.
	Collisions int
	// Errors are the item failures and reported problems of the stage.
	Errors   []error
	Duration time.Duration

	mu sync.Mutex
}

func newReport(st checkpoint.Stage) *StageReport {
	return &StageReport{Stage: st}
}

// Err combines the collected errors, nil when there are none.
func (r *StageReport) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return multierr.Combine(r.Errors...)
}

func (r *StageReport) skip() {
	r.mu.Lock()
	r.Skipped++
	r.mu.Unlock()
}

func (r *StageReport) fail(err error) {
	r.mu.Lock()
	r.Failed++
	r.Errors = append(r.Errors, err)
	r.mu.Unlock()
}

func (r *StageReport) record(out *files.Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.Done++
	if out == nil {
		return
	}
	if out.Copied {
		r.Copied++
	}
	r.Bytes += out.Bytes
	if out.Rewritten {
		r.Rewritten++
	}
	if out.Renamed {
		r.Renamed++
	}
	r.Paths.Add(out.Paths)
	r.Errors = append(r.Errors, out.Paths.Errors...)
	if out.Database != nil {
		r.Database.Add(out.Database)
		r.Errors = append(r.Errors, out.Database.Errors...)
		r.Errors = append(r.Errors, out.Database.Paths.Errors...)
	}
}

func (r *StageReport) fields() []zap.Field {
	r.mu.Lock()
	defer r.mu.Unlock()
	return []zap.Field{
		zap.Int("items", r.Items),
		zap.Int("done", r.Done),
		zap.Int("skipped", r.Skipped),
		zap.Int("failed", r.Failed),
		zap.Int("copied", r.Copied),
		zap.Int("rewritten", r.Rewritten),
		zap.Int("renamed", r.Renamed),
		zap.Int("paths_modified", r.Paths.Modified),
		zap.Int("rows_updated", r.Database.Updated),
		zap.Int("duplicates_removed", r.Database.DuplicatesRemoved),
		zap.Int("unmapped", r.Database.Unmapped),
		zap.Int("errors", len(r.Errors)),
		zap.Duration("duration", r.Duration),
	}
}

// Summary is the outcome of Run.
type Summary struct {
	// Reports holds one report per stage executed in this run.
	Reports []*StageReport
	// Skipped lists stages completed by earlier runs.
	Skipped []checkpoint.Stage
}

// Err combines the errors of all reports.
func (s *Summary) Err() error {
	var err error
	for _, r := range s.Reports {
		err = multierr.Append(err, r.Err())
	}
	return err
}
