package files

import (
	"fmt"
	"path/filepath"
	"strings"

	"jellyfin-migrator/feature/dbupdate"
)

// Target modes of a Job.
const (
	TargetAuto         = "auto"
	TargetAutoExisting = "auto-existing"
)

// Job is one entry of a stage work list.
type Job struct {
	// Source is a glob relative to the source root.
	Source string `mapstructure:"source" json:"source"`
	// Target is "auto", "auto-existing" or an explicit path. A relative
	// explicit path is placed under the target root.
	Target string `mapstructure:"target" json:"target"`
	// CopyOnly skips content rewriting.
	CopyOnly bool `mapstructure:"copy_only" json:"copy_only,omitempty"`
	// Tables configures the columns rewritten when the file is a database.
	Tables []dbupdate.TableSpec `mapstructure:"tables" json:"tables,omitempty"`
}

// Mode returns the effective target mode.
func (j Job) Mode() string {
	switch strings.ToLower(strings.TrimSpace(j.Target)) {
	case "", TargetAuto:
		return TargetAuto
	case TargetAutoExisting:
		return TargetAutoExisting
	default:
		return "explicit"
	}
}

// Validate checks the job in isolation.
func (j Job) Validate() error {
	if strings.TrimSpace(j.Source) == "" {
		return fmt.Errorf("job has no source")
	}
	for i, t := range j.Tables {
		if strings.TrimSpace(t.Name) == "" {
			return fmt.Errorf("job %s: table %d has no name", j.Source, i)
		}
	}
	return nil
}

// Item is one file selected by a job.
type Item struct {
	// Rel is the slash separated path relative to the source root.
	Rel string
	// Source is the file on this machine.
	Source string
	// Target is where the file is written or already lives.
	Target string
	// Job is the job that selected the file.
	Job Job
}

// Kind returns the content kind of the item.
func (it Item) Kind() ContentKind {
	return KindOf(it.Target)
}

// Items expands job into work items, sorted by Rel.
func (p *Processor) Items(job Job) ([]Item, error) {
	roots := p.mapper.Roots()
	rels, err := Expand(roots.Source, job.Source)
	if err != nil {
		return nil, fmt.Errorf("expand %s: %w", job.Source, err)
	}

	items := make([]Item, 0, len(rels))
	for _, rel := range rels {
		src := filepath.Join(roots.Source, filepath.FromSlash(rel))
		items = append(items, Item{
			Rel:    rel,
			Source: src,
			Target: p.targetFor(job, rel, src, len(rels)),
			Job:    job,
		})
	}
	return items, nil
}

func (p *Processor) targetFor(job Job, rel, src string, matches int) string {
	if job.Mode() != "explicit" {
		return p.mapper.TargetFor(src)
	}

	target := filepath.FromSlash(strings.ReplaceAll(job.Target, `\`, "/"))
	if !filepath.IsAbs(target) {
		target = filepath.Join(p.mapper.Roots().Target, target)
	}
	// A pattern that selected a single file without wildcards names that
	// file; otherwise the explicit target is a directory.
	if matches == 1 && !hasMeta(job.Source) && normalizePattern(job.Source) == rel {
		return target
	}
	base := StaticPrefix(job.Source)
	if !hasMeta(job.Source) {
		base = normalizePattern(job.Source)
	}
	sub := strings.TrimPrefix(strings.TrimPrefix(rel, base), "/")
	return filepath.Join(target, filepath.FromSlash(sub))
}
