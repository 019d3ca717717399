package dbupdate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"jellyfin-migrator/core/migerr"
	"jellyfin-migrator/feature/paths"

	"go.uber.org/zap"
)

type columnKind int

const (
	kindPath columnKind = iota
	kindJSON
	kindImages
)

// UpdatePaths rewrites the path, JSON and image columns of spec with fn.
func (u *Updater) UpdatePaths(ctx context.Context, spec TableSpec, fn paths.StringFunc) (*Result, error) {
	table, ok := u.resolveTable(spec.Name)
	if !ok {
		return &Result{Table: spec.Name}, nil
	}

	var (
		columns []string
		kinds   []columnKind
	)
	for _, group := range []struct {
		names []string
		kind  columnKind
	}{
		{spec.PathColumns, kindPath},
		{spec.JSONColumns, kindJSON},
		{spec.ImageColumns, kindImages},
	} {
		resolved, err := u.resolveColumns(table, group.names)
		if err != nil {
			return nil, err
		}
		for _, c := range resolved {
			columns = append(columns, c)
			kinds = append(kinds, group.kind)
		}
	}
	if len(columns) == 0 {
		return &Result{Table: table}, nil
	}

	res, err := u.walk(ctx, table, columns, func(r row, res *Result) (map[string]any, error) {
		var set map[string]any
		for i, col := range columns {
			s, ok := r.values[i].(string)
			if !ok || s == "" {
				continue
			}

			var st paths.Stats
			out, err := rewriteColumn(s, kinds[i], fn, &st)
			if err != nil {
				res.Errors = append(res.Errors, fmt.Errorf("%s.%s rowid %d: %w", table, col, r.id, err))
				continue
			}
			for _, e := range st.Errors {
				if migerr.IsFatal(e) {
					return nil, migerr.New(u.opts.Stage, fmt.Sprintf("%s.%s rowid %d", table, col, r.id), migerr.ErrPathUnresolved, e)
				}
			}
			res.Paths.Add(st)
			if out != s {
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

	u.logger.Info("table paths updated",
		zap.String("stage", u.opts.Stage),
		zap.String("table", table),
		zap.Int("rows", res.Rows),
		zap.Int("updated", res.Updated),
		zap.Int("paths_modified", res.Paths.Modified),
		zap.Int("paths_ignored", res.Paths.Ignored),
		zap.Int("errors", len(res.Paths.Errors)+len(res.Errors)))
	return res, nil
}

func rewriteColumn(s string, kind columnKind, fn paths.StringFunc, st *paths.Stats) (string, error) {
	switch kind {
	case kindJSON:
		var doc any
		dec := json.NewDecoder(strings.NewReader(s))
		dec.UseNumber()
		if err := dec.Decode(&doc); err != nil {
			return s, fmt.Errorf("decode json column: %w", err)
		}
		if dec.More() {
			return s, errors.New("decode json column: trailing data after document")
		}
		doc = paths.RewriteValue(doc, fn, st)
		if st.Modified == 0 {
			return s, nil
		}
		return encodeJSON(doc)
	case kindImages:
		return paths.RewriteImages(s, fn, st), nil
	default:
		return paths.RewriteString(s, fn, st), nil
	}
}

// encodeJSON marshals v without HTML escaping, so paths keep their '&'.
func encodeJSON(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return string(bytes.TrimRight(buf.Bytes(), "\n")), nil
}
