package files

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"jellyfin-migrator/core/migerr"
	"jellyfin-migrator/feature/checkpoint"
	"jellyfin-migrator/feature/dbupdate"
	"jellyfin-migrator/feature/paths"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"
)

// ErrorPolicy decides whether a failing file stops the stage.
type ErrorPolicy string

const (
	OnErrorSkip  ErrorPolicy = "skip"
	OnErrorAbort ErrorPolicy = "abort"
)

// Tracker records completed steps of a work item.
type Tracker interface {
	IsDone(key string) bool
	MarkDone(key string) error
}

// DatabaseRewriter rewrites the configured tables of a database file.
type DatabaseRewriter interface {
	RewriteDatabase(ctx context.Context, path, unit string, tables []dbupdate.TableSpec, fn paths.StringFunc) (*dbupdate.Result, error)
}

// Options configures a Processor.
type Options struct {
	// Stage is used for checkpoint keys and error context.
	Stage checkpoint.Stage
	// OnError is the policy for file failures, skip by default.
	OnError ErrorPolicy
	// DeleteEmptyDirs removes directories emptied by a rename.
	DeleteEmptyDirs bool
}

// Outcome describes what happened to one item.
type Outcome struct {
	Item Item
	// Target is the final location of the file.
	Target string
	// Copied is true when bytes were copied in this run.
	Copied bool
	// CopySkipped is true when an earlier copy was reused.
	CopySkipped bool
	// Bytes is the number of bytes copied.
	Bytes int64
	// Rewritten is true when the content changed.
	Rewritten bool
	// Renamed is true when the file has its identifier path.
	Renamed bool
	// Paths aggregates rewrite outcomes of text content.
	Paths paths.Stats
	// Database is the result of a database rewrite.
	Database *dbupdate.Result
}

// Processor runs the file steps of one stage.
type Processor struct {
	mapper  *paths.Mapper
	tracker Tracker
	db      DatabaseRewriter
	logger  *zap.Logger
	opts    Options
}

// NewProcessor returns a Processor. tracker and db may be nil.
func NewProcessor(mapper *paths.Mapper, tracker Tracker, db DatabaseRewriter, logger *zap.Logger, opts Options) *Processor {
	if opts.OnError == "" {
		opts.OnError = OnErrorSkip
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{mapper: mapper, tracker: tracker, db: db, logger: logger, opts: opts}
}

// CopyWithPathRewrite copies the item to its target, unless the job works on
// existing files, and rewrites the paths in its content with fn.
func (p *Processor) CopyWithPathRewrite(ctx context.Context, item Item, fn paths.StringFunc) (*Outcome, error) {
	out := &Outcome{Item: item, Target: item.Target}

	if item.Job.Mode() == TargetAutoExisting {
		if _, err := os.Stat(item.Target); err != nil {
			return out, p.fileError(item, err)
		}
	} else if err := p.copy(ctx, item, out); err != nil {
		return out, err
	}

	if item.Job.CopyOnly {
		return out, nil
	}
	if err := p.rewrite(ctx, item, item.Target, fn, out); err != nil {
		return out, err
	}
	return out, nil
}

func (p *Processor) copy(ctx context.Context, item Item, out *Outcome) error {
	key := checkpoint.CopiedKey(p.opts.Stage, item.Rel)
	if p.tracker != nil && p.tracker.IsDone(key) {
		out.CopySkipped = true
		return nil
	}

	copied, n, err := CopyFile(ctx, item.Source, item.Target)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return p.fileError(item, err)
	}
	out.Copied, out.CopySkipped, out.Bytes = copied, !copied, n
	if copied {
		p.logger.Debug("copied file",
			zap.String("source", item.Source),
			zap.String("target", item.Target),
			zap.String("size", humanize.Bytes(uint64(n))))
	}

	if p.tracker != nil {
		if err := p.tracker.MarkDone(key); err != nil {
			return migerr.Fatal(err)
		}
	}
	return nil
}

// rewrite edits the content of the file at path in place.
func (p *Processor) rewrite(ctx context.Context, item Item, path string, fn paths.StringFunc, out *Outcome) error {
	kind := KindOf(path)
	if kind == ContentDatabase {
		if p.db == nil || len(item.Job.Tables) == 0 {
			return nil
		}
		res, err := p.db.RewriteDatabase(ctx, path, checkpoint.DatabaseUnit(p.opts.Stage, item.Rel), item.Job.Tables, fn)
		out.Database = res
		if err != nil {
			if migerr.IsFatal(err) {
				return err
			}
			return p.fileError(item, err)
		}
		out.Rewritten = res != nil && res.Updated > 0
		return nil
	}
	if kind == ContentNone {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return p.fileError(item, err)
	}

	var (
		st      paths.Stats
		updated []byte
	)
	switch kind {
	case ContentXML:
		updated, err = RewriteXML(data, fn, &st)
	case ContentJSON:
		updated, err = RewriteJSON(data, fn, &st)
	case ContentMBLink:
		updated = RewriteMBLink(data, fn, &st)
	}
	if err != nil {
		return p.fileError(item, err)
	}
	for _, e := range st.Errors {
		if migerr.IsFatal(e) {
			return migerr.New(string(p.opts.Stage), item.Rel, migerr.ErrPathUnresolved, e)
		}
	}
	out.Paths.Add(st)

	if st.Modified == 0 {
		return nil
	}
	if err := writeFileAtomic(path, updated); err != nil {
		return p.fileError(item, err)
	}
	out.Rewritten = true
	return nil
}

// RewriteIDPaths replaces identifier paths inside the item's content and then
// moves the file to its identifier path. An item whose file was already moved
// by an earlier run is reported as renamed.
func (p *Processor) RewriteIDPaths(ctx context.Context, item Item, tr paths.IDTranslator) (*Outcome, error) {
	out := &Outcome{Item: item, Target: item.Target}
	dst, pending := p.renameTarget(item.Target, tr)

	if _, err := os.Lstat(item.Target); err != nil {
		if errors.Is(err, fs.ErrNotExist) && pending {
			if _, derr := os.Lstat(dst); derr == nil {
				out.Target, out.Renamed = dst, true
				return out, nil
			}
		}
		return out, p.fileError(item, err)
	}

	if !item.Job.CopyOnly {
		fn := paths.IDPathFunc(tr, p.mapper.PathRules().Separator())
		if err := p.rewrite(ctx, item, item.Target, fn, out); err != nil {
			return out, err
		}
	}

	if !pending {
		return out, nil
	}
	newPath, renamed, err := p.RenameIDPath(item.Target, tr)
	if err != nil {
		return out, p.fileError(item, err)
	}
	out.Target, out.Renamed = newPath, renamed
	return out, nil
}

// renameTarget returns the identifier path of a file under the target root.
func (p *Processor) renameTarget(path string, tr paths.IDTranslator) (string, bool) {
	root := p.mapper.Roots().Target
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return path, false
	}
	newRel, ok := paths.RewriteIDPath(filepath.ToSlash(rel), tr, "/")
	if !ok {
		return path, false
	}
	return filepath.Join(root, filepath.FromSlash(newRel)), true
}

// RenameIDPath moves a file under the target root whose path holds a
// registered identifier to the path with the new identifier. It returns the
// new location and whether a move was needed.
func (p *Processor) RenameIDPath(path string, tr paths.IDTranslator) (string, bool, error) {
	dst, ok := p.renameTarget(path, tr)
	if !ok {
		return path, false, nil
	}

	if _, err := os.Lstat(path); errors.Is(err, fs.ErrNotExist) {
		if _, err := os.Lstat(dst); err == nil {
			return dst, true, nil
		}
	}
	if _, err := os.Lstat(dst); err == nil {
		return path, false, fmt.Errorf("rename %s: %s already exists", path, dst)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return path, false, err
	}
	if err := os.Rename(path, dst); err != nil {
		return path, false, err
	}
	p.logger.Debug("renamed identifier path", zap.String("from", path), zap.String("to", dst))

	if p.opts.DeleteEmptyDirs {
		removeEmptyParents(filepath.Dir(path), p.mapper.Roots().Target)
	}
	return dst, true, nil
}

func (p *Processor) fileError(item Item, err error) error {
	e := migerr.New(string(p.opts.Stage), item.Rel, migerr.ErrFileIO, err)
	p.logger.Warn("file failed",
		zap.String("stage", string(p.opts.Stage)),
		zap.String("item", item.Rel),
		zap.Error(err))
	if p.opts.OnError == OnErrorAbort {
		return migerr.Fatal(e)
	}
	return e
}
