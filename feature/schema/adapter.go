package schema

import (
	"fmt"
	"strings"
	"sync"

	"jellyfin-migrator/core/database"
	"jellyfin-migrator/core/migerr"

	"gorm.io/gorm"
)

// StorageKind is how an identifier column stores its values.
type StorageKind int

const (
	// StorageBinary is a 16 byte BLOB.
	StorageBinary StorageKind = iota
	// StorageHexText is a textual identifier (hex or dashed).
	StorageHexText
	// StorageDynamic is an untyped column; each value keeps its own type.
	StorageDynamic
)

func (k StorageKind) String() string {
	switch k {
	case StorageBinary:
		return "binary"
	case StorageHexText:
		return "text"
	default:
		return "dynamic"
	}
}

// Adapter is a database bound to a detected profile.
type Adapter struct {
	profile  Profile
	db       *gorm.DB
	idColumn string

	mu      sync.Mutex
	columns map[string][]database.ColumnInfo
	tables  map[string]string
}

// Detect probes db for a known Jellyfin library schema. BaseItems takes
// precedence over TypedBaseItems when a half-migrated database carries both.
// A database with neither fails with migerr.ErrUnsupportedSchema.
func Detect(db *gorm.DB) (*Adapter, error) {
	a := newAdapter(db, GenericProfile())
	if err := a.loadTables(); err != nil {
		return nil, err
	}

	for _, p := range []Profile{V1011Profile(), LegacyProfile()} {
		items, ok := a.tables[strings.ToLower(p.Tables[TableItems])]
		if !ok {
			continue
		}
		cols, err := database.GetTableColumns(db, items)
		if err != nil {
			return nil, err
		}
		for _, candidate := range p.IDColumnCandidates {
			if col, ok := findColumn(cols, candidate); ok {
				a.profile = p
				a.idColumn = col.Name
				return a, nil
			}
		}
		return nil, fmt.Errorf("%w: table %s has none of the id columns %v", migerr.ErrUnsupportedSchema, items, p.IDColumnCandidates)
	}
	return nil, fmt.Errorf("%w: neither BaseItems nor TypedBaseItems found", migerr.ErrUnsupportedSchema)
}

// NewGeneric returns an identity adapter for databases without a library table.
func NewGeneric(db *gorm.DB) (*Adapter, error) {
	a := newAdapter(db, GenericProfile())
	if err := a.loadTables(); err != nil {
		return nil, err
	}
	return a, nil
}

func newAdapter(db *gorm.DB, p Profile) *Adapter {
	return &Adapter{
		profile: p,
		db:      db,
		columns: make(map[string][]database.ColumnInfo),
		tables:  make(map[string]string),
	}
}

func (a *Adapter) loadTables() error {
	names, err := database.ListTables(a.db)
	if err != nil {
		return err
	}
	for _, n := range names {
		a.tables[strings.ToLower(n)] = n
	}
	return nil
}

// Variant returns the detected generation.
func (a *Adapter) Variant() Variant {
	return a.profile.Variant
}

// Profile returns the profile the adapter is bound to.
func (a *Adapter) Profile() Profile {
	return a.profile
}

// DB returns the underlying handle.
func (a *Adapter) DB() *gorm.DB {
	return a.db
}

// CanonicalName returns the physical table name for a logical name or for a
// physical name of either generation.
func (a *Adapter) CanonicalName(table string) string {
	if logical, ok := logicalTable(table); ok {
		if physical, ok := a.profile.Tables[logical]; ok {
			return a.present(physical)
		}
	}
	return a.present(table)
}

// present returns the name with the case it has in the database.
func (a *Adapter) present(name string) string {
	if n, ok := a.tables[strings.ToLower(name)]; ok {
		return n
	}
	return name
}

// ColumnName returns the physical column name. Item table columns are
// translated between generations; other names pass through.
func (a *Adapter) ColumnName(table, column string) string {
	if a.CanonicalName(table) != a.CanonicalName(TableItems) || a.profile.Variant == Generic {
		return column
	}
	logical, ok := logicalItemColumn(column)
	if !ok {
		return column
	}
	if logical == ColID && a.idColumn != "" {
		return a.idColumn
	}
	if physical, ok := a.profile.ItemColumns[logical]; ok {
		return physical
	}
	return column
}

// HasTable reports whether the table exists.
func (a *Adapter) HasTable(table string) bool {
	_, ok := a.tables[strings.ToLower(a.CanonicalName(table))]
	return ok
}

// Columns returns the columns of a table, cached per adapter.
func (a *Adapter) Columns(table string) ([]database.ColumnInfo, error) {
	physical := a.CanonicalName(table)

	a.mu.Lock()
	defer a.mu.Unlock()

	if cols, ok := a.columns[physical]; ok {
		return cols, nil
	}
	cols, err := database.GetTableColumns(a.db, physical)
	if err != nil {
		return nil, err
	}
	a.columns[physical] = cols
	return cols, nil
}

// HasColumn reports whether table has column.
func (a *Adapter) HasColumn(table, column string) (bool, error) {
	cols, err := a.Columns(table)
	if err != nil {
		return false, err
	}
	_, ok := findColumn(cols, a.ColumnName(table, column))
	return ok, nil
}

// IDStorageKind reports how values of an identifier column are stored.
func (a *Adapter) IDStorageKind(table, column string) (StorageKind, error) {
	cols, err := a.Columns(table)
	if err != nil {
		return StorageDynamic, err
	}
	physical := a.ColumnName(table, column)
	col, ok := findColumn(cols, physical)
	if !ok {
		return StorageDynamic, fmt.Errorf("column %s.%s not found", a.CanonicalName(table), physical)
	}
	return kindOf(col.Type), nil
}

func kindOf(declared string) StorageKind {
	switch {
	case strings.Contains(declared, "blob"):
		return StorageBinary
	case strings.Contains(declared, "char"), strings.Contains(declared, "text"), strings.Contains(declared, "clob"):
		return StorageHexText
	default:
		return StorageDynamic
	}
}

func findColumn(cols []database.ColumnInfo, name string) (database.ColumnInfo, bool) {
	lower := strings.ToLower(name)
	for _, c := range cols {
		if c.Field == lower {
			return c, true
		}
	}
	return database.ColumnInfo{}, false
}
