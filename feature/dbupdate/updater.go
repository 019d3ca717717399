package dbupdate

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"jellyfin-migrator/core/database"
	"jellyfin-migrator/core/migerr"
	"jellyfin-migrator/feature/paths"
	"jellyfin-migrator/feature/schema"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DefaultBatchSize is the number of rows handled per transaction.
const DefaultBatchSize = 500

// Tracker persists the last committed rowid of a table unit.
type Tracker interface {
	Cursor(key string) (int64, bool)
	SetCursor(key string, value int64) error
}

// Options configures an Updater.
type Options struct {
	// Stage labels errors and log lines.
	Stage string
	// UnitPrefix is prepended to the table name to form the cursor key,
	// for example "PathMigration:db:data/library.db".
	UnitPrefix string
	// BatchSize is the number of rows per transaction.
	BatchSize int
}

// Updater rewrites the tables of one database.
type Updater struct {
	adapter *schema.Adapter
	tracker Tracker
	logger  *zap.Logger
	opts    Options
}

// New returns an Updater. tracker may be nil, in which case progress is not
// persisted.
func New(adapter *schema.Adapter, tracker Tracker, logger *zap.Logger, opts Options) *Updater {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Updater{adapter: adapter, tracker: tracker, logger: logger, opts: opts}
}

// Result summarizes one pass over one table.
type Result struct {
	Table string
	// Rows is the number of rows visited.
	Rows int
	// Updated is the number of rows written back.
	Updated int
	// DuplicatesRemoved counts rows deleted after a unique constraint violation.
	DuplicatesRemoved int
	// Unmapped counts identifiers without a registry entry.
	Unmapped int
	// Invalid counts values that are not identifiers.
	Invalid int
	// FilesTouched counts files whose modification time was set.
	FilesTouched int
	// DatesFilled counts database dates replaced from the filesystem.
	DatesFilled int
	// Missing counts rows whose file does not exist.
	Missing int
	// Paths aggregates path rewrite outcomes.
	Paths paths.Stats
	// Errors lists item-local failures.
	Errors []error
}

func (r *Result) merge(o *Result) {
	r.Rows += o.Rows
	r.Updated += o.Updated
	r.DuplicatesRemoved += o.DuplicatesRemoved
	r.Unmapped += o.Unmapped
	r.Invalid += o.Invalid
	r.FilesTouched += o.FilesTouched
	r.DatesFilled += o.DatesFilled
	r.Missing += o.Missing
	r.Paths.Add(o.Paths)
	r.Errors = append(r.Errors, o.Errors...)
}

// Add merges o into r and returns r.
func (r *Result) Add(o *Result) *Result {
	if o != nil {
		r.merge(o)
	}
	return r
}

type row struct {
	id     int64
	values []any
}

// rowFunc returns the columns to write for one row. Counters go to res.
type rowFunc func(r row, res *Result) (map[string]any, error)

// UnitKey returns the cursor key of a physical table.
func (u *Updater) UnitKey(table string) string {
	if u.opts.UnitPrefix == "" {
		return table
	}
	return u.opts.UnitPrefix + ":" + table
}

// resolveTable maps a spec table name to the physical table, reporting false
// when the database does not have it.
func (u *Updater) resolveTable(name string) (string, bool) {
	if !u.adapter.HasTable(name) {
		u.logger.Warn("table not found, skipping",
			zap.String("stage", u.opts.Stage),
			zap.String("table", name),
			zap.String("variant", string(u.adapter.Variant())))
		return "", false
	}
	return u.adapter.CanonicalName(name), true
}

// resolveColumns maps configured column names to physical names. Columns the
// table does not have are dropped with a warning.
func (u *Updater) resolveColumns(table string, names []string) ([]string, error) {
	out := make([]string, 0, len(names))
	for _, name := range names {
		ok, err := u.adapter.HasColumn(table, name)
		if err != nil {
			return nil, err
		}
		if !ok {
			u.logger.Warn("column not found, skipping",
				zap.String("stage", u.opts.Stage),
				zap.String("table", table),
				zap.String("column", name))
			continue
		}
		out = append(out, u.adapter.ColumnName(table, name))
	}
	return out, nil
}

// walk visits the rows of table after the persisted cursor, one transaction
// per batch, and writes back what fn returns.
func (u *Updater) walk(ctx context.Context, table string, columns []string, fn rowFunc) (*Result, error) {
	total := &Result{Table: table}
	key := u.UnitKey(table)

	var after int64
	if u.tracker != nil {
		if v, ok := u.tracker.Cursor(key); ok {
			after = v
			u.logger.Info("resuming table",
				zap.String("stage", u.opts.Stage),
				zap.String("table", table),
				zap.Int64("after_rowid", after))
		}
	}

	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}

		var (
			batch *Result
			last  int64
			n     int
		)
		err := retryOnBusy(ctx, func() error {
			batch = &Result{Table: table}
			return u.adapter.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
				rows, err := loadBatch(tx, table, columns, after, u.opts.BatchSize)
				if err != nil {
					return err
				}
				n = len(rows)
				for _, r := range rows {
					last = r.id
					batch.Rows++

					set, err := fn(r, batch)
					if err != nil {
						if migerr.IsFatal(err) {
							return err
						}
						batch.Errors = append(batch.Errors, err)
						continue
					}
					if len(set) == 0 {
						continue
					}

					if err := updateRow(tx, table, r.id, set); err != nil {
						if !isUniqueViolation(err) {
							return fmt.Errorf("update %s rowid %d: %w", table, r.id, err)
						}
						if err := deleteRow(tx, table, r.id); err != nil {
							return fmt.Errorf("delete duplicate %s rowid %d: %w", table, r.id, err)
						}
						batch.DuplicatesRemoved++
						u.logger.Warn("removed duplicate row",
							zap.String("stage", u.opts.Stage),
							zap.String("table", table),
							zap.Int64("rowid", r.id),
							zap.Error(err))
						continue
					}
					batch.Updated++
				}
				return nil
			})
		})
		if err != nil {
			return total, err
		}
		if n == 0 {
			break
		}

		total.merge(batch)
		after = last
		if u.tracker != nil {
			if err := u.tracker.SetCursor(key, last); err != nil {
				return total, err
			}
		}
		if n < u.opts.BatchSize {
			break
		}
	}
	return total, nil
}

func loadBatch(tx *gorm.DB, table string, columns []string, after int64, limit int) ([]row, error) {
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = database.QuoteIdent(c)
	}
	query := fmt.Sprintf("SELECT rowid, %s FROM %s WHERE rowid > ? ORDER BY rowid LIMIT ?",
		strings.Join(quoted, ", "), database.QuoteIdent(table))

	rs, err := tx.Raw(query, after, limit).Rows()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", table, err)
	}
	defer rs.Close()

	var out []row
	for rs.Next() {
		r := row{values: make([]any, len(columns))}
		dest := make([]any, len(columns)+1)
		dest[0] = &r.id
		for i := range r.values {
			dest[i+1] = &r.values[i]
		}
		if err := rs.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan %s: %w", table, err)
		}
		out = append(out, r)
	}
	return out, rs.Err()
}

func updateRow(tx *gorm.DB, table string, id int64, set map[string]any) error {
	cols := make([]string, 0, len(set))
	for c := range set {
		cols = append(cols, c)
	}
	sort.Strings(cols)

	assignments := make([]string, len(cols))
	args := make([]any, 0, len(cols)+1)
	for i, c := range cols {
		assignments[i] = database.QuoteIdent(c) + " = ?"
		args = append(args, set[c])
	}
	args = append(args, id)

	query := fmt.Sprintf("UPDATE %s SET %s WHERE rowid = ?", database.QuoteIdent(table), strings.Join(assignments, ", "))
	return tx.Exec(query, args...).Error
}

func deleteRow(tx *gorm.DB, table string, id int64) error {
	return tx.Exec(fmt.Sprintf("DELETE FROM %s WHERE rowid = ?", database.QuoteIdent(table)), id).Error
}
