package logger

// Config holds logger settings.
type Config struct {
	// Level is one of debug, info, warn, error.
	Level string `mapstructure:"level" json:"-" default:"info"`
	// Format is console, json or auto. Auto picks console on a terminal.
	Format string `mapstructure:"format" json:"-" default:"auto"`
	// File, when set, receives a copy of every entry.
	File string `mapstructure:"file" json:"-" default:""`
}
