package migration

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"jellyfin-migrator/core/database"
	"jellyfin-migrator/core/migerr"
	"jellyfin-migrator/feature/checkpoint"
	"jellyfin-migrator/feature/dbupdate"
	"jellyfin-migrator/feature/files"
	"jellyfin-migrator/feature/ids"
	"jellyfin-migrator/feature/paths"
	"jellyfin-migrator/feature/schema"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	movieType    = "Movie"
	oldMoviePath = `C:\Jellyfin\media\Movie (2020)\movie.mkv`
	newMoviePath = "/media/Movie (2020)/movie.mkv"
	optionsXML   = `<LibraryOptions><PathInfos><MediaPathInfo><Path>C:\Jellyfin\media\Movies</Path></MediaPathInfo></PathInfos></LibraryOptions>`
)

var movieModified = time.Date(2020, 5, 1, 10, 0, 0, 0, time.UTC)

type mockProgress struct {
	mock.Mock
}

func (m *mockProgress) StageStarted(stage string, total int) { m.Called(stage, total) }
func (m *mockProgress) Advance(stage string, n int)          { m.Called(stage, n) }
func (m *mockProgress) StageFinished(stage string)           { m.Called(stage) }

func newMockProgress() *mockProgress {
	p := new(mockProgress)
	p.On("StageStarted", mock.Anything, mock.Anything).Return()
	p.On("StageFinished", mock.Anything).Return()
	return p
}

// env is a small Jellyfin installation: one movie, its poster under the
// identifier directory and a library options file.
type env struct {
	source, target, state string
	mapper                *paths.Mapper
	jobs                  Jobs
	oldID, newID          ids.ID
}

func newEnv(t *testing.T) *env {
	t.Helper()
	root := t.TempDir()
	e := &env{
		source: filepath.Join(root, "source"),
		target: filepath.Join(root, "target"),
		state:  filepath.Join(root, "state", "checkpoint.json"),
		oldID:  ids.Compute(movieType, oldMoviePath),
		newID:  ids.Compute(movieType, newMoviePath),
	}

	writeFile(t, e.source, "media/Movie (2020)/movie.mkv", "movie bytes")
	writeFile(t, e.source, oldMetadataDir(e.oldID)+"/poster.jpg", "poster bytes")
	writeFile(t, e.source, "root/default/Movies/options.xml", optionsXML)
	createLegacyLibrary(t, filepath.Join(e.source, "data", "library.db"), e.oldID)

	pathRules, err := paths.NewResolver(paths.Config{Rules: []paths.Rule{
		{Source: `C:\Jellyfin\media`, Target: "/media"},
		{Source: `C:\Jellyfin`, Target: "/config"},
	}})
	require.NoError(t, err)
	fsRules, err := paths.NewResolver(paths.Config{Rules: []paths.Rule{
		{Source: "/media", Target: "media"},
		{Source: "/config", Target: ""},
	}})
	require.NoError(t, err)
	e.mapper = paths.NewMapper(paths.Roots{Original: `C:\Jellyfin`, Source: e.source, Target: e.target}, pathRules, fsRules)

	e.jobs = Jobs{
		LibraryDB: "data/library.db",
		Paths: []files.Job{
			{Source: "data/library.db", Tables: []dbupdate.TableSpec{{Name: "TypedBaseItems", PathColumns: []string{"Path"}}}},
			{Source: "media/**"},
			{Source: "metadata/**"},
			{Source: "root/**"},
		},
		IDPaths: []files.Job{{Source: "metadata/library", Target: files.TargetAutoExisting}},
		IDs: []files.Job{{
			Source: "data/library.db",
			Target: files.TargetAutoExisting,
			Tables: []dbupdate.TableSpec{{Name: "TypedBaseItems", IDColumns: []string{"guid"}}},
		}},
	}
	return e
}

func oldMetadataDir(id ids.ID) string {
	return "metadata/library/" + id.String()[:2] + "/" + id.String()
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
}

func createLegacyLibrary(t *testing.T, path string, movie ids.ID) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	db, err := database.Connect(database.Config{}, path)
	require.NoError(t, err)
	defer database.Close(db)

	folder := ids.Compute("CollectionFolder", `C:\Jellyfin\root\default\Movies`)
	stmts := []struct {
		sql  string
		args []any
	}{
		{sql: `CREATE TABLE TypedBaseItems (guid GUID PRIMARY KEY NOT NULL, type TEXT NOT NULL, Path TEXT, DateCreated DATETIME, DateModified DATETIME)`},
		{
			sql:  `INSERT INTO TypedBaseItems (guid, type, Path, DateCreated, DateModified) VALUES (?, ?, ?, ?, ?)`,
			args: []any{movie[:], movieType, oldMoviePath, "0001-01-01 00:00:00Z", "2020-05-01 10:00:00.0000000Z"},
		},
		{
			sql:  `INSERT INTO TypedBaseItems (guid, type, Path, DateCreated, DateModified) VALUES (?, ?, ?, ?, ?)`,
			args: []any{folder[:], "CollectionFolder", `%AppDataPath%\root\default\Movies`, "2020-01-01 00:00:00Z", "2020-01-01 00:00:00Z"},
		},
	}
	sqlDB, err := db.DB()
	require.NoError(t, err)
	for _, s := range stmts {
		_, err := sqlDB.Exec(s.sql, s.args...)
		require.NoError(t, err)
	}
}

func (e *env) open(t *testing.T) *checkpoint.Store {
	t.Helper()
	s, err := checkpoint.Open(e.state)
	require.NoError(t, err)
	_, err = s.Begin("run", "fingerprint", false)
	require.NoError(t, err)
	return s
}

func (e *env) deps(store *checkpoint.Store, p Progress) Deps {
	return Deps{
		Config:   Config{Workers: 1, BatchSize: 10, DeleteEmptyDirs: true},
		Jobs:     e.jobs,
		Mapper:   e.mapper,
		Store:    store,
		Progress: p,
		Logger:   zap.NewNop(),
	}
}

type movieRow struct {
	ID           []byte
	Path         string
	DateCreated  string
	DateModified string
}

func (e *env) movieRow(t *testing.T) movieRow {
	t.Helper()
	db, err := database.Connect(database.Config{}, filepath.Join(e.target, "data", "library.db"))
	require.NoError(t, err)
	defer database.Close(db)

	var r movieRow
	err = db.Raw(`SELECT guid, Path, CAST(DateCreated AS TEXT), CAST(DateModified AS TEXT) FROM TypedBaseItems WHERE type = ?`, movieType).
		Row().Scan(&r.ID, &r.Path, &r.DateCreated, &r.DateModified)
	require.NoError(t, err)
	return r
}

// treeDigest hashes every file of the target except databases, whose bytes
// carry filesystem dependent creation dates.
func (e *env) treeDigest(t *testing.T) map[string]string {
	t.Helper()
	out := make(map[string]string)
	err := filepath.WalkDir(e.target, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || strings.HasSuffix(p, ".db") {
			return err
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(e.target, p)
		sum := sha256.Sum256(data)
		out[filepath.ToSlash(rel)] = hex.EncodeToString(sum[:])
		return nil
	})
	require.NoError(t, err)
	return out
}

func TestRun_EndToEnd(t *testing.T) {
	e := newEnv(t)
	store := e.open(t)
	defer store.Close()

	progress := newMockProgress()
	progress.On("Advance", mock.Anything, 1).Return()

	sum, err := New(e.deps(store, progress)).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, sum.Reports, 4)
	assert.Equal(t, checkpoint.StageDone, store.CurrentStage())

	moviePath := filepath.Join(e.target, "media", "Movie (2020)", "movie.mkv")
	data, err := os.ReadFile(moviePath)
	require.NoError(t, err)
	assert.Equal(t, "movie bytes", string(data))
	info, err := os.Stat(moviePath)
	require.NoError(t, err)
	assert.True(t, info.ModTime().Equal(movieModified), "mtime %s", info.ModTime())

	row := e.movieRow(t)
	assert.Equal(t, newMoviePath, row.Path)
	recomputed := ids.Compute(movieType, newMoviePath)
	assert.Equal(t, recomputed[:], row.ID)
	assert.NotEqual(t, e.oldID[:], row.ID)
	assert.False(t, strings.HasPrefix(row.DateCreated, "0001"), "created date filled, got %s", row.DateCreated)

	newDir := filepath.Join(e.target, "metadata", "library", e.newID.String()[:2], e.newID.String())
	_, err = os.Stat(filepath.Join(newDir, "poster.jpg"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(e.target, filepath.FromSlash(oldMetadataDir(e.oldID))))
	assert.True(t, errors.Is(err, fs.ErrNotExist))

	options, err := os.ReadFile(filepath.Join(e.target, "root", "default", "Movies", "options.xml"))
	require.NoError(t, err)
	assert.Contains(t, string(options), "<Path>/media/Movies</Path>")

	pathRep, renaming, idUpdate, dates := sum.Reports[0], sum.Reports[1], sum.Reports[2], sum.Reports[3]
	assert.Equal(t, 4, pathRep.Done)
	assert.Equal(t, 1, pathRep.Registered)
	assert.Equal(t, 1, pathRep.Changed)
	assert.Equal(t, 1, pathRep.Database.Updated)
	assert.Equal(t, 1, renaming.Renamed)
	assert.Equal(t, 1, idUpdate.Database.Updated)
	assert.Equal(t, 1, idUpdate.Database.Unmapped)
	assert.Equal(t, 1, dates.Database.FilesTouched)
	assert.Equal(t, 1, dates.Database.DatesFilled)
	assert.NoError(t, sum.Err())

	progress.AssertCalled(t, "StageStarted", "PathMigration", 4)
	progress.AssertCalled(t, "StageStarted", "IdPathRenaming", 1)
	progress.AssertCalled(t, "StageStarted", "DatabaseIdUpdate", 1)
	progress.AssertCalled(t, "StageStarted", "DateSync", 1)
	progress.AssertNumberOfCalls(t, "Advance", 7)
	progress.AssertNumberOfCalls(t, "StageFinished", 4)

	t.Run("rerun is a no-op", func(t *testing.T) {
		again, err := New(e.deps(store, nil)).Run(context.Background())
		require.NoError(t, err)
		assert.Empty(t, again.Reports)
		assert.Equal(t, checkpoint.Stages, again.Skipped)
		assert.Equal(t, row, e.movieRow(t))
	})
}

func TestRun_ResumesAfterInterrupt(t *testing.T) {
	ref := newEnv(t)
	refStore := ref.open(t)
	_, err := New(ref.deps(refStore, nil)).Run(context.Background())
	require.NoError(t, err)
	require.NoError(t, refStore.Close())

	e := newEnv(t)
	store := e.open(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var advanced atomic.Int32
	progress := newMockProgress()
	progress.On("Advance", mock.Anything, 1).Return().Run(func(mock.Arguments) {
		if advanced.Add(1) == 2 {
			cancel()
		}
	})

	_, err = New(e.deps(store, progress)).Run(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, migerr.IsFatal(err))
	assert.Equal(t, checkpoint.StagePathMigration, store.CurrentStage())
	require.NoError(t, store.Close())

	store = e.open(t)
	defer store.Close()
	sum, err := New(e.deps(store, nil)).Run(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, sum.Reports)
	assert.Equal(t, 2, sum.Reports[0].Skipped)
	assert.Equal(t, 2, sum.Reports[0].Done)

	assert.Equal(t, ref.treeDigest(t), e.treeDigest(t))
	want, got := ref.movieRow(t), e.movieRow(t)
	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, want.Path, got.Path)
	assert.Equal(t, want.DateModified, got.DateModified)
}

func TestRun_FileErrorPolicy(t *testing.T) {
	t.Run("skip records the failure and completes", func(t *testing.T) {
		e := newEnv(t)
		writeFile(t, e.source, "root/default/broken.json", "{")
		store := e.open(t)
		defer store.Close()

		sum, err := New(e.deps(store, nil)).Run(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, sum.Reports[0].Failed)
		assert.ErrorIs(t, sum.Err(), migerr.ErrFileIO)
		assert.False(t, store.IsDone(checkpoint.FileKey(checkpoint.StagePathMigration, "root/default/broken.json")))
		assert.Equal(t, checkpoint.StageDone, store.CurrentStage())
	})

	t.Run("abort stops the stage", func(t *testing.T) {
		e := newEnv(t)
		writeFile(t, e.source, "root/default/broken.json", "{")
		store := e.open(t)
		defer store.Close()

		deps := e.deps(store, nil)
		deps.Config.OnFileError = files.OnErrorAbort
		_, err := New(deps).Run(context.Background())
		require.Error(t, err)
		assert.True(t, migerr.IsFatal(err))
		assert.ErrorIs(t, err, migerr.ErrFileIO)
		assert.Equal(t, checkpoint.StagePathMigration, store.CurrentStage())
	})
}

func TestRun_ReportsUnresolvedDatabasePaths(t *testing.T) {
	e := newEnv(t)
	pathRules, err := paths.NewResolver(paths.Config{Unresolved: paths.PolicyReport, Rules: e.mapper.PathRules().Rules()})
	require.NoError(t, err)
	e.mapper = paths.NewMapper(e.mapper.Roots(), pathRules, e.mapper.FSRules())

	db, err := database.Connect(database.Config{}, filepath.Join(e.source, "data", "library.db"))
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	stray := ids.Compute(movieType, `D:\Elsewhere\x.mkv`)
	_, err = sqlDB.Exec(`INSERT INTO TypedBaseItems (guid, type, Path) VALUES (?, ?, ?)`, stray[:], movieType, `D:\Elsewhere\x.mkv`)
	require.NoError(t, err)
	require.NoError(t, database.Close(db))

	store := e.open(t)
	defer store.Close()
	sum, err := New(e.deps(store, nil)).Run(context.Background())
	require.NoError(t, err)

	pathRep := sum.Reports[0]
	require.Len(t, pathRep.Database.Paths.Errors, 1)
	require.NotEmpty(t, pathRep.Errors)
	assert.ErrorIs(t, pathRep.Err(), migerr.ErrPathUnresolved)
	assert.ErrorIs(t, sum.Err(), migerr.ErrPathUnresolved)
	assert.Equal(t, checkpoint.StageDone, store.CurrentStage())
}

func TestRun_RestoresRegistry(t *testing.T) {
	e := newEnv(t)
	store := e.open(t)

	// Complete the first stage only.
	o := New(e.deps(store, nil))
	rep, err := o.runStage(context.Background(), checkpoint.StagePathMigration)
	require.NoError(t, err)
	require.Equal(t, 1, rep.Registered)
	require.NoError(t, store.CompleteStage(checkpoint.StagePathMigration, o.Registry().Snapshot()))
	require.NoError(t, o.pool.close())
	require.NoError(t, store.Close())

	store = e.open(t)
	defer store.Close()
	resumed := New(e.deps(store, nil))
	sum, err := resumed.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []checkpoint.Stage{checkpoint.StagePathMigration}, sum.Skipped)
	assert.Equal(t, 1, resumed.Registry().Changed())
	assert.Equal(t, e.newID[:], e.movieRow(t).ID)
}

func TestRun_MissingLibrary(t *testing.T) {
	e := newEnv(t)
	e.jobs.LibraryDB = "data/other.db"
	store := e.open(t)
	defer store.Close()

	_, err := New(e.deps(store, nil)).Run(context.Background())
	require.Error(t, err)
	assert.True(t, migerr.IsFatal(err))
	assert.ErrorIs(t, err, migerr.ErrFileIO)
	assert.Equal(t, checkpoint.StagePathMigration, store.CurrentStage())
}

func TestPlan(t *testing.T) {
	e := newEnv(t)
	pl, err := New(e.deps(nil, nil)).Plan()
	require.NoError(t, err)

	assert.Equal(t, schema.Legacy, pl.Variant)
	assert.Equal(t, filepath.Join(e.target, "data", "library.db"), pl.Library.Target)
	require.Len(t, pl.Stages, 4)
	assert.Equal(t, 4, pl.Stages[0].Items)
	assert.Equal(t, 1, pl.Stages[1].Items)
	assert.Equal(t, 1, pl.Stages[2].Items)
	assert.Equal(t, 1, pl.Stages[3].Items)
	for _, sp := range pl.Stages {
		assert.False(t, sp.Complete)
		assert.Zero(t, sp.Done)
	}
	_, err = os.Stat(e.target)
	assert.True(t, errors.Is(err, fs.ErrNotExist), "plan writes nothing")
}
