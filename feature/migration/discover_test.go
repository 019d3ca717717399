package migration

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"jellyfin-migrator/core/database"
	"jellyfin-migrator/core/migerr"
	"jellyfin-migrator/feature/ids"
	"jellyfin-migrator/feature/schema"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func v1011Library(t *testing.T, rows ...[]any) *schema.Adapter {
	t.Helper()
	db, err := database.Connect(database.Config{}, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })

	require.NoError(t, db.Exec(`CREATE TABLE BaseItems (Id TEXT PRIMARY KEY NOT NULL, Type TEXT NOT NULL, Path TEXT)`).Error)
	for _, r := range rows {
		require.NoError(t, db.Exec(`INSERT INTO BaseItems (Id, Type, Path) VALUES (?, ?, ?)`, r...).Error)
	}
	a, err := schema.Detect(db)
	require.NoError(t, err)
	require.Equal(t, schema.V10_11Plus, a.Variant())
	return a
}

func TestDiscover(t *testing.T) {
	episodeType := "MediaBrowser.Controller.Entities.TV.Episode"
	moved := ids.Compute(movieType, oldMoviePath)
	same := ids.Compute(episodeType, "/media/Show/S01E01.mkv")

	a := v1011Library(t,
		[]any{strings.ToUpper(moved.Dashed()), movieType, newMoviePath},
		[]any{same.Dashed(), episodeType, "/media/Show/S01E01.mkv"},
		[]any{"00000000-0000-0000-0000-000000000001", "UserRootFolder", nil},
		[]any{"00000000-0000-0000-0000-000000000002", "Folder", "%MetadataPath%/People"},
		[]any{"not an id", movieType, "/media/x.mkv"},
	)

	reg := ids.NewRegistry()
	d, err := Discover(context.Background(), a, reg, zap.NewNop())
	require.NoError(t, err)

	assert.Equal(t, 5, d.Rows)
	assert.Equal(t, 2, d.Registered)
	assert.Equal(t, 1, d.Changed)
	assert.Equal(t, 2, d.Skipped)
	assert.Equal(t, 1, d.Invalid)
	assert.Empty(t, d.Collisions)

	got, err := reg.Lookup(moved.String())
	require.NoError(t, err)
	assert.Equal(t, ids.Compute(movieType, newMoviePath), got)
	assert.Equal(t, 1, reg.Changed())
}

func TestDiscover_Collisions(t *testing.T) {
	first := ids.Compute(movieType, `C:\media\a.mkv`)
	second := ids.Compute(movieType, `D:\media\a.mkv`)
	a := v1011Library(t,
		[]any{first.Dashed(), movieType, "/media/a.mkv"},
		[]any{second.Dashed(), movieType, "/media/a.mkv"},
	)

	d, err := Discover(context.Background(), a, ids.NewRegistry(), nil)
	require.NoError(t, err)
	require.Len(t, d.Collisions, 1)
	assert.Len(t, d.Collisions[ids.Compute(movieType, "/media/a.mkv")], 2)
}

func TestDiscover_Conflict(t *testing.T) {
	old := ids.Compute(movieType, oldMoviePath)
	a := v1011Library(t, []any{old.Dashed(), movieType, newMoviePath})

	reg := ids.NewRegistry()
	require.NoError(t, reg.RegisterID(old, ids.Compute(movieType, "/elsewhere.mkv")))

	_, err := Discover(context.Background(), a, reg, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, migerr.ErrIdConflict)
	assert.True(t, migerr.IsFatal(err))
}

func TestDiscover_RequiresLibrary(t *testing.T) {
	db, err := database.Connect(database.Config{}, ":memory:")
	require.NoError(t, err)
	defer database.Close(db)
	a, err := schema.NewGeneric(db)
	require.NoError(t, err)

	_, err = Discover(context.Background(), a, ids.NewRegistry(), nil)
	assert.ErrorIs(t, err, migerr.ErrUnsupportedSchema)
}

func TestDBPool(t *testing.T) {
	dir := t.TempDir()
	lib := filepath.Join(dir, "library.db")
	createLegacyLibrary(t, lib, ids.Compute(movieType, oldMoviePath))

	plain := filepath.Join(dir, "jellyfin.db")
	db, err := database.Connect(database.Config{}, plain)
	require.NoError(t, err)
	require.NoError(t, db.Exec(`CREATE TABLE Users (Id TEXT)`).Error)
	require.NoError(t, database.Close(db))

	p := newDBPool(database.Config{}, zap.NewNop())
	a, err := p.get(lib)
	require.NoError(t, err)
	assert.Equal(t, schema.Legacy, a.Variant())

	again, err := p.get(filepath.Join(dir, ".", "library.db"))
	require.NoError(t, err)
	assert.Same(t, a, again)

	g, err := p.get(plain)
	require.NoError(t, err)
	assert.Equal(t, schema.Generic, g.Variant())

	_, err = p.get(filepath.Join(dir, "missing.db"))
	assert.Error(t, err)
	assert.NoFileExists(t, filepath.Join(dir, "missing.db"))

	require.NoError(t, p.close())
	assert.Empty(t, p.adapters)
}
