package scanner

import (
	"context"
	"fmt"
	"sort"

	"jellyfin-migrator/core/database"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Finding lists the identifier encodings found in one column.
type Finding struct {
	Table  string
	Column string
	// Encodings are sorted labels like "ancestor-str (embedded)".
	Encodings []string
	// Rows counts distinct values that contained an identifier.
	Rows int
}

// Service scans databases against an Index.
type Service struct {
	index  *Index
	logger *zap.Logger
}

// NewService creates a new scanner service.
func NewService(index *Index, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{index: index, logger: logger}
}

// Scan reads every column of every table of db. Findings are sorted by table
// and column.
func (s *Service) Scan(ctx context.Context, db *gorm.DB) ([]Finding, error) {
	tables, err := database.ListTables(db)
	if err != nil {
		return nil, err
	}

	var findings []Finding
	for _, table := range tables {
		cols, err := database.GetTableColumns(db, table)
		if err != nil {
			return nil, err
		}
		for _, col := range cols {
			if err := ctx.Err(); err != nil {
				return findings, err
			}
			f, err := s.scanColumn(ctx, db, table, col.Name)
			if err != nil {
				return findings, err
			}
			if f != nil {
				s.logger.Debug("identifiers found",
					zap.String("table", table), zap.String("column", col.Name), zap.Strings("encodings", f.Encodings))
				findings = append(findings, *f)
			}
		}
	}

	sort.Slice(findings, func(i, j int) bool {
		if findings[i].Table != findings[j].Table {
			return findings[i].Table < findings[j].Table
		}
		return findings[i].Column < findings[j].Column
	})
	return findings, nil
}

func (s *Service) scanColumn(ctx context.Context, db *gorm.DB, table, column string) (*Finding, error) {
	query := fmt.Sprintf("SELECT DISTINCT %[1]s FROM %[2]s WHERE %[1]s IS NOT NULL",
		database.QuoteIdent(column), database.QuoteIdent(table))
	rows, err := db.WithContext(ctx).Raw(query).Rows()
	if err != nil {
		return nil, fmt.Errorf("read %s.%s: %w", table, column, err)
	}
	defer rows.Close()

	labels := map[string]bool{}
	matched := 0
	for rows.Next() {
		var v any
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan %s.%s: %w", table, column, err)
		}
		if s.match(v, labels) {
			matched++
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read %s.%s: %w", table, column, err)
	}
	if matched == 0 {
		return nil, nil
	}

	f := &Finding{Table: table, Column: column, Rows: matched}
	for l := range labels {
		f.Encodings = append(f.Encodings, l)
	}
	sort.Strings(f.Encodings)
	return f, nil
}

// match records the labels of v and reports whether it held an identifier.
func (s *Service) match(v any, labels map[string]bool) bool {
	var text string
	switch t := v.(type) {
	case []byte:
		if enc, ok := s.index.matchBinary(t); ok {
			labels[enc+" (pure)"] = true
			return true
		}
		text = string(t)
	case string:
		text = t
	default:
		return false
	}

	found, pure := s.index.matchText(text)
	kind := " (embedded)"
	if pure {
		kind = " (pure)"
	}
	for _, enc := range found {
		labels[enc+kind] = true
	}
	return len(found) > 0
}
