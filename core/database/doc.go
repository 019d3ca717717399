// Package database opens the SQLite databases of a Jellyfin installation and
// inspects their schema.
//
// It wraps GORM with the gorm.io/driver/sqlite dialector. Every handle uses a
// single connection so in-memory databases behave like files and writes never
// contend with each other inside the process.
//
// # Schema Inspection
//
// ListTables and GetTableColumns read sqlite_master and PRAGMA table_info. The
// schema adapter builds on them to tell the Jellyfin database generations
// apart and to learn how identifier columns are stored.
//
// # Usage
//
//	db, err := database.Connect(cfg.Database, "/srv/jellyfin/data/library.db")
//	if err != nil {
//	    return err
//	}
//	defer database.Close(db)
//
//	columns, err := database.GetTableColumns(db, "TypedBaseItems")
package database
