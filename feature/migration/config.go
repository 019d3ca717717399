package migration

import "jellyfin-migrator/feature/files"

// Config tunes how stages execute. None of it enters the configuration
// fingerprint.
type Config struct {
	// Workers bounds the number of files processed concurrently.
	Workers int `mapstructure:"workers" json:"-" default:"4"`
	// BatchSize is the number of rows per database transaction.
	BatchSize int `mapstructure:"batch_size" json:"-" default:"500"`
	// OnFileError is "skip" or "abort".
	OnFileError files.ErrorPolicy `mapstructure:"on_file_error" json:"-" default:"skip"`
	// DeleteEmptyDirs removes directories emptied by identifier renames.
	DeleteEmptyDirs bool `mapstructure:"delete_empty_dirs" json:"-" default:"true"`
	// SkipDiskCheck disables the free space preflight.
	SkipDiskCheck bool `mapstructure:"skip_disk_check" json:"-" default:"false"`
}

// Jobs are the work lists of the file and database stages.
type Jobs struct {
	// LibraryDB is the library database relative to the source root.
	LibraryDB string `mapstructure:"library_db" json:"library_db" default:"data/library.db"`
	// Paths is the PathMigration work list.
	Paths []files.Job `mapstructure:"paths" json:"paths"`
	// IDPaths is the IdPathRenaming work list.
	IDPaths []files.Job `mapstructure:"id_paths" json:"id_paths"`
	// IDs is the DatabaseIdUpdate work list.
	IDs []files.Job `mapstructure:"ids" json:"ids"`
}
