package checkpoint

// Config locates the checkpoint.
type Config struct {
	// File is the snapshot path; the journal and lock live next to it.
	File string `mapstructure:"file" json:"-" default:"jellyfin-migrator.state.json"`
}
