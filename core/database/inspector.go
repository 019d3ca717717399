package database

import (
	"fmt"
	"strings"

	"gorm.io/gorm"
)

// ColumnInfo describes one column as reported by PRAGMA table_info.
type ColumnInfo struct {
	// Field is the lowercased column name, used for lookups.
	Field string
	// Name is the column name as declared.
	Name string
	// Type is the lowercased declared type, empty when none was declared.
	Type string
	// PK is the 1-based position in the primary key, 0 when not part of it.
	PK int
}

// ListTables returns the user tables of the database.
func ListTables(db *gorm.DB) ([]string, error) {
	var names []string
	err := db.Raw("SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name").
		Scan(&names).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	return names, nil
}

// GetTableColumns retrieves the column definitions for a given table.
// A missing table yields no columns and no error.
func GetTableColumns(db *gorm.DB, tableName string) ([]ColumnInfo, error) {
	type sqliteColumn struct {
		Cid       int
		Name      string
		Type      string
		Notnull   int
		DfltValue *string
		Pk        int
	}
	var rows []sqliteColumn
	query := fmt.Sprintf("PRAGMA table_info(%s)", QuoteIdent(tableName))
	if err := db.Raw(query).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to get columns for table %s: %w", tableName, err)
	}

	columns := make([]ColumnInfo, 0, len(rows))
	for _, col := range rows {
		columns = append(columns, ColumnInfo{
			Field: strings.ToLower(col.Name),
			Name:  col.Name,
			Type:  strings.ToLower(col.Type),
			PK:    col.Pk,
		})
	}
	return columns, nil
}

// QuoteIdent quotes a table or column name for SQLite.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
