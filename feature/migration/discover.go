package migration

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"jellyfin-migrator/core/database"
	"jellyfin-migrator/core/migerr"
	"jellyfin-migrator/core/utils"
	"jellyfin-migrator/feature/ids"
	"jellyfin-migrator/feature/schema"

	"go.uber.org/zap"
)

// Discovery summarizes one pass over the library items.
type Discovery struct {
	Rows       int
	Registered int
	Changed    int
	// Skipped counts items without a file path, such as virtual folders.
	Skipped int
	// Invalid counts rows whose identifier could not be decoded.
	Invalid    int
	Collisions map[ids.ID][]ids.ID
}

// Discover reads every item of the library database behind a and registers
// its stored identifier with the identifier computed from its type and
// current path. Items whose path is empty or starts with a path variable are
// skipped. Registering a different value for a known identifier fails with
// migerr.ErrIdConflict.
func Discover(ctx context.Context, a *schema.Adapter, reg *ids.Registry, logger *zap.Logger) (*Discovery, error) {
	if a.Variant() == schema.Generic {
		return nil, fmt.Errorf("%w: no library items table", migerr.ErrUnsupportedSchema)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	table := a.CanonicalName(schema.TableItems)
	query := fmt.Sprintf("SELECT %s, %s, %s FROM %s",
		database.QuoteIdent(a.ColumnName(table, schema.ColID)),
		database.QuoteIdent(a.ColumnName(table, schema.ColType)),
		database.QuoteIdent(a.ColumnName(table, schema.ColPath)),
		database.QuoteIdent(table))

	rows, err := a.DB().WithContext(ctx).Raw(query).Rows()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", table, err)
	}
	defer rows.Close()

	d := &Discovery{}
	for rows.Next() {
		if err := ctx.Err(); err != nil {
			return d, err
		}
		var rawID, rawType, rawPath any
		if err := rows.Scan(&rawID, &rawType, &rawPath); err != nil {
			return d, fmt.Errorf("scan %s: %w", table, err)
		}
		d.Rows++

		path := utils.ToString(rawPath)
		if path == "" || strings.HasPrefix(path, "%") {
			d.Skipped++
			continue
		}
		oldID, _, err := ids.Decode(rawID)
		if err != nil {
			d.Invalid++
			logger.Debug("skipping item with invalid identifier", zap.String("path", path), zap.Error(err))
			continue
		}
		newID := ids.Compute(utils.ToString(rawType), path)
		if err := reg.RegisterID(oldID, newID); err != nil {
			if errors.Is(err, migerr.ErrIdConflict) {
				return d, err
			}
			d.Invalid++
			continue
		}
		d.Registered++
		if oldID != newID {
			d.Changed++
		}
	}
	if err := rows.Err(); err != nil {
		return d, fmt.Errorf("read %s: %w", table, err)
	}

	d.Collisions = reg.Collisions()
	return d, nil
}
