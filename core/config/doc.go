// Package config provides configuration management for the migrator.
//
// It utilizes Viper for loading configuration from a YAML file, a .env file
// next to it and environment variables prefixed with MIGRATOR_.
//
// # Configuration Structure
//
// The Config struct is the central repository for all application settings, divided into subsections:
//   - Log: logging level, format and optional file
//   - Database: SQLite busy timeout and journal mode
//   - Roots: original, source and target directories
//   - Checkpoint: location of the resume state
//   - Migration: workers, batch size and the file error policy
//   - PathRules and FSRules: ordered prefix rules
//   - Jobs: the work lists of the file and database stages
//
// Scalar fields take their defaults from `default` struct tags. Lists are only
// read from the file.
//
// # Fingerprint
//
// Fingerprint hashes the sections that decide what a run writes. The
// checkpoint stores it, and resuming with a different fingerprint is refused
// until the checkpoint is reset.
//
// # Usage
//
//	cfg, err := config.LoadConfig("migrator.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := cfg.Validate(); err != nil {
//	    log.Fatal(err)
//	}
package config
