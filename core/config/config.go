package config

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"path/filepath"
	"reflect"
	"strings"

	"jellyfin-migrator/core/database"
	"jellyfin-migrator/core/logger"
	"jellyfin-migrator/feature/checkpoint"
	"jellyfin-migrator/feature/files"
	"jellyfin-migrator/feature/migration"
	"jellyfin-migrator/feature/paths"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/multierr"
)

// EnvPrefix prefixes every environment override, e.g. MIGRATOR_ROOTS_TARGET.
const EnvPrefix = "MIGRATOR"

// Config holds all configuration for the application.
// It is divided into partial configurations for better modularity.
type Config struct {
	// Log holds configuration for the logger.
	Log logger.Config `mapstructure:"log"`
	// Database holds settings applied to every SQLite database opened.
	Database database.Config `mapstructure:"database"`
	// Roots are the original, source and target directories.
	Roots paths.Roots `mapstructure:"roots"`
	// Checkpoint locates the resume state.
	Checkpoint checkpoint.Config `mapstructure:"checkpoint"`
	// Migration tunes stage execution.
	Migration migration.Config `mapstructure:"migration"`
	// PathRules rewrite paths as Jellyfin sees them.
	PathRules paths.Config `mapstructure:"path_rules"`
	// FSRules map target Jellyfin paths to files on this machine.
	FSRules paths.Config `mapstructure:"fs_rules"`
	// Jobs are the stage work lists.
	Jobs migration.Jobs `mapstructure:"jobs"`
}

// LoadConfig loads configuration from a YAML file, a .env file next to it
// and environment variables. An empty file loads defaults and environment
// only.
func LoadConfig(file string) (*Config, error) {
	// 1. Load .env file if it exists
	dir := "."
	if file != "" {
		dir = filepath.Dir(file)
	}
	// Ignore error if file doesn't exist
	_ = godotenv.Overload(filepath.Join(dir, ".env"))

	v := viper.New()

	// Recursively parse struct tags to set default values
	bindValues(v, Config{}, "")

	// Map environment variables to nested keys (e.g. MIGRATOR_ROOTS_TARGET -> roots.target)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", file, err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	return &config, nil
}

// bindValues uses reflection to iterate over the struct and set default values in Viper
// based on the 'default' and 'mapstructure' tags. Lists and maps come from the file only.
func bindValues(v *viper.Viper, iface any, prefix string) {
	t := reflect.TypeOf(iface)

	// If it's a pointer, get the element
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag := field.Tag.Get("mapstructure")

		// Skip if no tag
		if tag == "" {
			continue
		}

		// Build the key
		key := tag
		if prefix != "" {
			key = prefix + "." + tag
		}

		switch field.Type.Kind() {
		case reflect.Struct:
			bindValues(v, reflect.New(field.Type).Elem().Interface(), key)
			continue
		case reflect.Slice, reflect.Map:
			continue
		}

		defaultValue := field.Tag.Get("default")
		// Always set default (even if empty) to register the key for AutomaticEnv
		v.SetDefault(key, defaultValue)
	}
}

// Validate reports every problem of the configuration at once.
func (c *Config) Validate() error {
	var errs error
	add := func(format string, args ...any) {
		errs = multierr.Append(errs, fmt.Errorf(format, args...))
	}

	if strings.TrimSpace(c.Roots.Original) == "" {
		add("roots.original is required")
	}
	if strings.TrimSpace(c.Roots.Source) == "" {
		add("roots.source is required")
	}
	if strings.TrimSpace(c.Roots.Target) == "" {
		add("roots.target is required")
	}
	if c.Roots.Source != "" && filepath.Clean(c.Roots.Source) == filepath.Clean(c.Roots.Target) {
		add("roots.source and roots.target must differ")
	}

	if len(c.PathRules.AllRules()) == 0 {
		add("path_rules.rules is empty")
	}
	if _, err := paths.NewResolver(c.PathRules); err != nil {
		add("path_rules: %v", err)
	}
	if _, err := paths.NewResolver(c.FSRules); err != nil {
		add("fs_rules: %v", err)
	}

	if c.Migration.Workers < 1 {
		add("migration.workers must be at least 1")
	}
	if c.Migration.BatchSize < 1 {
		add("migration.batch_size must be at least 1")
	}
	switch c.Migration.OnFileError {
	case files.OnErrorSkip, files.OnErrorAbort:
	default:
		add("migration.on_file_error must be skip or abort, got %q", c.Migration.OnFileError)
	}

	if strings.TrimSpace(c.Checkpoint.File) == "" {
		add("checkpoint.file is required")
	}
	if strings.TrimSpace(c.Jobs.LibraryDB) == "" {
		add("jobs.library_db is required")
	}
	if len(c.Jobs.Paths) == 0 {
		add("jobs.paths is empty")
	}
	for name, list := range map[string][]files.Job{"paths": c.Jobs.Paths, "id_paths": c.Jobs.IDPaths, "ids": c.Jobs.IDs} {
		for i, job := range list {
			if err := job.Validate(); err != nil {
				add("jobs.%s[%d]: %v", name, i, err)
			}
		}
	}
	return errs
}

// Fingerprint hashes the settings that decide what a migration writes:
// roots, both rule sets and the work lists. Logging, tuning and the
// checkpoint location are left out so they can change between runs.
func (c *Config) Fingerprint() string {
	canonical := struct {
		Roots     paths.Roots    `json:"roots"`
		PathRules paths.Config   `json:"path_rules"`
		FSRules   paths.Config   `json:"fs_rules"`
		Jobs      migration.Jobs `json:"jobs"`
	}{c.Roots, c.PathRules, c.FSRules, c.Jobs}

	// Marshalling plain structs cannot fail.
	data, _ := json.Marshal(canonical)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Mapper compiles both rule sets.
func (c *Config) Mapper() (*paths.Mapper, error) {
	pathRules, err := paths.NewResolver(c.PathRules)
	if err != nil {
		return nil, fmt.Errorf("path_rules: %w", err)
	}
	fsRules, err := paths.NewResolver(c.FSRules)
	if err != nil {
		return nil, fmt.Errorf("fs_rules: %w", err)
	}
	return paths.NewMapper(c.Roots, pathRules, fsRules), nil
}
