package dbupdate

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"jellyfin-migrator/core/migerr"
	"jellyfin-migrator/feature/schema"

	"go.uber.org/zap"
)

// DateLayout is how Jellyfin stores dates: UTC, 100ns precision with trailing
// zeros dropped.
const DateLayout = "2006-01-02 15:04:05.9999999Z"

// dotnetEpochTicks is the number of 100ns ticks between 0001-01-01 and 1970-01-01.
const dotnetEpochTicks = 621355968000000000

var epoch = time.Unix(0, 0).UTC()

var dateLayouts = []string{
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// FormatDate renders t in DateLayout.
func FormatDate(t time.Time) string {
	return t.UTC().Truncate(100 * time.Nanosecond).Format(DateLayout)
}

// ParseDate reads a date column value. Text in any of the layouts Jellyfin has
// written, time.Time values from the driver and .NET ticks are accepted.
func ParseDate(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t.UTC(), true
	case string:
		return parseDateString(t)
	case []byte:
		return parseDateString(string(t))
	case int64:
		ticks := t - dotnetEpochTicks
		return time.Unix(ticks/1e7, (ticks%1e7)*100).UTC(), true
	default:
		return time.Time{}, false
	}
}

func parseDateString(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// IsValidDate reports whether t is a usable recorded date. Jellyfin writes
// DateTime.MinValue for dates it never knew.
func IsValidDate(t time.Time) bool {
	return !t.Before(epoch)
}

// FileDates reads and sets file timestamps.
type FileDates interface {
	Times(path string) (created, modified time.Time, err error)
	SetModified(path string, t time.Time) error
}

// SyncDates walks the library items table. Files whose recorded
// DateModified is valid get it as modification time; invalid recorded dates
// are replaced with the file's times. locate maps a Jellyfin path to a file on
// this machine.
func (u *Updater) SyncDates(ctx context.Context, dates FileDates, locate func(string) string) (*Result, error) {
	if u.adapter.Variant() == schema.Generic {
		return nil, fmt.Errorf("%w: date sync needs a library database", migerr.ErrUnsupportedSchema)
	}
	table, ok := u.resolveTable(schema.TableItems)
	if !ok {
		return nil, fmt.Errorf("%w: items table missing", migerr.ErrUnsupportedSchema)
	}
	columns, err := u.resolveColumns(table, []string{schema.ColPath, schema.ColDateCreated, schema.ColDateModified})
	if err != nil {
		return nil, err
	}
	if len(columns) != 3 {
		return nil, fmt.Errorf("%w: %s lacks path or date columns", migerr.ErrUnsupportedSchema, table)
	}
	createdCol, modifiedCol := columns[1], columns[2]

	res, err := u.walk(ctx, table, columns, func(r row, res *Result) (map[string]any, error) {
		p, _ := r.values[0].(string)
		if p == "" || strings.HasPrefix(p, "%") {
			return nil, nil
		}
		local := locate(p)
		created, modified, err := dates.Times(local)
		if errors.Is(err, fs.ErrNotExist) {
			res.Missing++
			return nil, nil
		}
		if err != nil {
			return nil, migerr.New(u.opts.Stage, local, migerr.ErrFileIO, err)
		}

		var set map[string]any
		fill := func(col string, t time.Time) {
			if set == nil {
				set = make(map[string]any)
			}
			set[col] = FormatDate(t)
			res.DatesFilled++
		}

		if recorded, ok := ParseDate(r.values[2]); ok && IsValidDate(recorded) {
			if !sameInstant(modified, recorded) {
				if err := dates.SetModified(local, recorded); err != nil {
					return nil, migerr.New(u.opts.Stage, local, migerr.ErrFileIO, err)
				}
				res.FilesTouched++
			}
		} else {
			fill(modifiedCol, modified)
		}
		if recorded, ok := ParseDate(r.values[1]); !ok || !IsValidDate(recorded) {
			fill(createdCol, created)
		}
		return set, nil
	})
	if err != nil {
		return res, err
	}

	u.logger.Info("dates synchronized",
		zap.String("stage", u.opts.Stage),
		zap.String("table", table),
		zap.Int("rows", res.Rows),
		zap.Int("files_touched", res.FilesTouched),
		zap.Int("dates_filled", res.DatesFilled),
		zap.Int("missing", res.Missing),
		zap.Int("errors", len(res.Errors)))
	return res, nil
}

func sameInstant(a, b time.Time) bool {
	d := a.Sub(b)
	return d < time.Microsecond && d > -time.Microsecond
}
