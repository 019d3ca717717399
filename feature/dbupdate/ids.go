package dbupdate

import (
	"context"
	"errors"

	"jellyfin-migrator/core/migerr"
	"jellyfin-migrator/feature/ids"
	"jellyfin-migrator/feature/schema"

	"go.uber.org/zap"
)

// Translator maps a stored identifier to its new value in the same form.
// *ids.Registry implements it.
type Translator interface {
	Translate(value any, mode ids.Mode) (out any, changed bool, err error)
}

// UpdateIDs rewrites the identifier columns of spec through tr.
func (u *Updater) UpdateIDs(ctx context.Context, spec TableSpec, tr Translator) (*Result, error) {
	table, ok := u.resolveTable(spec.Name)
	if !ok {
		return &Result{Table: spec.Name}, nil
	}

	plain, err := u.resolveColumns(table, spec.IDColumns)
	if err != nil {
		return nil, err
	}
	ancestor, err := u.resolveColumns(table, spec.AncestorColumns)
	if err != nil {
		return nil, err
	}

	columns := append(append([]string(nil), plain...), ancestor...)
	if len(columns) == 0 {
		return &Result{Table: table}, nil
	}
	modes := make([]ids.Mode, len(columns))
	storage := make([]schema.StorageKind, len(columns))
	for i, col := range columns {
		modes[i] = ids.ModePlain
		if i >= len(plain) {
			modes[i] = ids.ModeAncestor
		}
		if storage[i], err = u.adapter.IDStorageKind(table, col); err != nil {
			return nil, err
		}
	}

	res, err := u.walk(ctx, table, columns, func(r row, res *Result) (map[string]any, error) {
		var set map[string]any
		for i, col := range columns {
			v := r.values[i]
			if isEmpty(v) {
				continue
			}
			if !storageAccepts(storage[i], v) {
				res.Invalid++
				u.logger.Debug("identifier stored in unexpected type",
					zap.String("table", table),
					zap.String("column", col),
					zap.Int64("rowid", r.id),
					zap.String("storage", storage[i].String()))
				continue
			}

			out, changed, err := tr.Translate(v, modes[i])
			switch {
			case errors.Is(err, migerr.ErrUnmappedIdentifier):
				res.Unmapped++
				u.logger.Debug("unmapped identifier left unchanged",
					zap.String("table", table),
					zap.String("column", col),
					zap.Int64("rowid", r.id),
					zap.Error(err))
			case errors.Is(err, migerr.ErrInvalidIdentifierEncoding):
				res.Invalid++
				u.logger.Debug("invalid identifier left unchanged",
					zap.String("table", table),
					zap.String("column", col),
					zap.Int64("rowid", r.id),
					zap.Error(err))
			case err != nil:
				return nil, err
			case changed:
				if set == nil {
					set = make(map[string]any)
				}
				set[col] = out
			}
		}
		return set, nil
	})
	if err != nil {
		return res, err
	}

	log := u.logger.Info
	if res.Unmapped > 0 || res.Invalid > 0 {
		log = u.logger.Warn
	}
	log("table identifiers updated",
		zap.String("stage", u.opts.Stage),
		zap.String("table", table),
		zap.Int("rows", res.Rows),
		zap.Int("updated", res.Updated),
		zap.Int("duplicates_removed", res.DuplicatesRemoved),
		zap.Int("unmapped", res.Unmapped),
		zap.Int("invalid", res.Invalid))
	return res, nil
}

func isEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case []byte:
		return len(t) == 0
	default:
		return false
	}
}

// storageAccepts reports whether v has the Go type the column's storage kind
// produces. Dynamic columns accept both.
func storageAccepts(kind schema.StorageKind, v any) bool {
	switch v.(type) {
	case []byte:
		return kind != schema.StorageHexText
	case string:
		return kind != schema.StorageBinary
	default:
		return false
	}
}
