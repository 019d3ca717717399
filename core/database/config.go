package database

// Config holds settings applied to every SQLite database the migrator opens.
type Config struct {
	// BusyTimeoutMs is how long SQLite waits on a locked database before failing.
	BusyTimeoutMs int `mapstructure:"busy_timeout_ms" default:"5000"`
	// JournalMode is passed as _journal_mode when set (e.g. WAL, DELETE).
	JournalMode string `mapstructure:"journal_mode" default:""`
	// TimeoutSeconds bounds the initial ping.
	TimeoutSeconds int `mapstructure:"timeout_seconds" default:"30"`
}
