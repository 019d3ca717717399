package cmd

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"jellyfin-migrator/core/database"
	"jellyfin-migrator/core/migerr"
	"jellyfin-migrator/feature/checkpoint"
	"jellyfin-migrator/feature/dbupdate"
	"jellyfin-migrator/feature/ids"
	"jellyfin-migrator/feature/migration"
	"jellyfin-migrator/feature/paths"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const configTemplate = `
log:
  level: error
  format: json
roots:
  original: 'C:\Jellyfin'
  source: %q
  target: %q
checkpoint:
  file: %q
path_rules:
  rules:
    - source: 'C:\Jellyfin\media'
      target: %s
    - source: 'C:\Jellyfin'
      target: /config
fs_rules:
  rules:
    - source: /media
      target: media
    - source: /config
      target: ""
jobs:
  paths:
    - source: data/library.db
      tables:
        - name: TypedBaseItems
          path_columns: [Path]
    - source: media/**
  ids:
    - source: data/library.db
      target: auto-existing
      tables:
        - name: TypedBaseItems
          id_columns: [guid]
`

type cliEnv struct {
	source, target, state, config string
}

func setupCLITestEnv(t *testing.T) *cliEnv {
	t.Helper()
	root := t.TempDir()
	e := &cliEnv{
		source: filepath.Join(root, "source"),
		target: filepath.Join(root, "target"),
		state:  filepath.Join(root, "state.json"),
		config: filepath.Join(root, "migrator.yaml"),
	}

	movie := filepath.Join(e.source, "media", "Heat (1995)", "heat.mkv")
	require.NoError(t, os.MkdirAll(filepath.Dir(movie), 0o755))
	require.NoError(t, os.WriteFile(movie, []byte("movie"), 0o644))

	lib := filepath.Join(e.source, "data", "library.db")
	require.NoError(t, os.MkdirAll(filepath.Dir(lib), 0o755))
	db, err := database.Connect(database.Config{}, lib)
	require.NoError(t, err)
	id := ids.Compute("Movie", `C:\Jellyfin\media\Heat (1995)\heat.mkv`)
	require.NoError(t, db.Exec(`CREATE TABLE TypedBaseItems (guid GUID PRIMARY KEY NOT NULL, type TEXT NOT NULL, Path TEXT, DateCreated DATETIME, DateModified DATETIME)`).Error)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	_, err = sqlDB.Exec(`INSERT INTO TypedBaseItems VALUES (?, 'Movie', ?, '2020-01-01 00:00:00Z', '2020-01-01 00:00:00Z')`,
		id[:], `C:\Jellyfin\media\Heat (1995)\heat.mkv`)
	require.NoError(t, err)
	require.NoError(t, database.Close(db))

	e.writeConfig(t, "/media")
	return e
}

func (e *cliEnv) writeConfig(t *testing.T, mediaTarget string) {
	t.Helper()
	body := fmt.Sprintf(configTemplate, e.source, e.target, e.state, mediaTarget)
	require.NoError(t, os.WriteFile(e.config, []byte(body), 0o644))
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	migrateReset, migrateSkipDiskCheck, migrateDryRun = false, false, false
	migrateStateFile, resetStateFile, statusStateFile = "", "", ""

	var out bytes.Buffer
	RootCmd.SetOut(&out)
	RootCmd.SetErr(&out)
	RootCmd.SetArgs(args)
	err := RootCmd.Execute()
	return out.String(), err
}

func TestMigrateLifecycle(t *testing.T) {
	e := setupCLITestEnv(t)

	out, err := runCLI(t, "status", "--config", e.config)
	require.NoError(t, err)
	assert.Contains(t, out, "No checkpoint")

	out, err = runCLI(t, "migrate", "--config", e.config, "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, out, "(legacy)")
	assert.Contains(t, out, "DatabaseIdUpdate")
	_, err = os.Stat(e.target)
	assert.True(t, os.IsNotExist(err), "dry run must not write the target")

	out, err = runCLI(t, "migrate", "--config", e.config, "--skip-disk-check")
	require.NoError(t, err)
	assert.Contains(t, out, "DateSync")
	data, err := os.ReadFile(filepath.Join(e.target, "media", "Heat (1995)", "heat.mkv"))
	require.NoError(t, err)
	assert.Equal(t, "movie", string(data))

	out, err = runCLI(t, "status", "--config", e.config)
	require.NoError(t, err)
	assert.Contains(t, out, "Done")
	assert.Contains(t, out, "1 identifiers")

	// A changed rule set must not resume silently.
	e.writeConfig(t, "/films")
	_, err = runCLI(t, "migrate", "--config", e.config, "--skip-disk-check")
	assert.ErrorIs(t, err, migerr.ErrConfigFingerprintMismatch)

	out, err = runCLI(t, "reset", "--config", e.config)
	require.NoError(t, err)
	assert.Contains(t, out, "removed")
	_, err = os.Stat(e.state)
	assert.True(t, os.IsNotExist(err))
}

func TestMigrate_InvalidConfig(t *testing.T) {
	file := filepath.Join(t.TempDir(), "migrator.yaml")
	require.NoError(t, os.WriteFile(file, []byte("roots: {}\n"), 0o644))

	_, err := runCLI(t, "migrate", "--config", file)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "roots.source is required")
}

func TestScan(t *testing.T) {
	e := setupCLITestEnv(t)
	plugin := filepath.Join(t.TempDir(), "plugin.db")
	db, err := database.Connect(database.Config{}, plugin)
	require.NoError(t, err)
	id := ids.Compute("Movie", `C:\Jellyfin\media\Heat (1995)\heat.mkv`)
	require.NoError(t, db.Exec(`CREATE TABLE Watched (ItemId TEXT)`).Error)
	require.NoError(t, db.Exec(`INSERT INTO Watched VALUES (?)`, id.Dashed()).Error)
	require.NoError(t, database.Close(db))

	out, err := runCLI(t, "scan", "--library", filepath.Join(e.source, "data", "library.db"), "--target", plugin)
	require.NoError(t, err)
	assert.Contains(t, out, "Watched")
	assert.Contains(t, out, "str-dash (pure)")
}

func TestRenderSummary(t *testing.T) {
	unresolved := fmt.Errorf("%w: D:\\x.mkv", migerr.ErrPathUnresolved)
	sum := &migration.Summary{
		Skipped: []checkpoint.Stage{checkpoint.StagePathMigration},
		Reports: []*migration.StageReport{{
			Stage: checkpoint.StageDatabaseIdUpdate,
			Items: 1,
			Done:  1,
			Paths: paths.Stats{Errors: []error{unresolved, migerr.ErrFileIO}},
			Database: dbupdate.Result{
				Updated:           7,
				Unmapped:          3,
				DuplicatesRemoved: 2,
				Paths:             paths.Stats{Errors: []error{unresolved}},
			},
		}},
	}

	out := renderSummary(sum)
	for _, h := range []string{"UNMAPPED", "DUPLICATES", "UNRESOLVED"} {
		assert.Contains(t, out, h)
	}

	var cells []string
	for _, line := range strings.Split(out, "\n") {
		if strings.Contains(line, string(checkpoint.StageDatabaseIdUpdate)) {
			for _, c := range strings.Split(line, "│") {
				cells = append(cells, strings.TrimSpace(c))
			}
		}
	}
	require.Len(t, cells, 15)
	assert.Equal(t, []string{"7", "3", "2", "2"}, cells[9:13])
	assert.Contains(t, out, "earlier run")
}
