package catalog

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"comicshelf/pkg/database"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db := database.MustOpen(database.Config{Path: filepath.Join(t.TempDir(), "test.db")})
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.Migrate(db))
	return db
}

func seedTitle(t *testing.T, db *sql.DB, slug, name, path string) int64 {
	t.Helper()
	res, err := db.Exec(`INSERT INTO titles (slug, name, path) VALUES (?, ?, ?)`, slug, name, path)
	require.NoError(t, err)
	id, err := res.LastInsertId()
	require.NoError(t, err)
	return id
}

func seedVolume(t *testing.T, db *sql.DB, titleID int64, slug, name, path string, sortIndex, pageCount int) int64 {
	t.Helper()
	res, err := db.Exec(`
		INSERT INTO volumes (title_id, slug, name, path, sort_index, page_count)
		VALUES (?, ?, ?, ?, ?, ?)`,
		titleID, slug, name, path, sortIndex, pageCount)
	require.NoError(t, err)
	id, err := res.LastInsertId()
	require.NoError(t, err)
	return id
}

func TestListTitlesOrdersByNameAndCountsVolumes(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	repo := NewRepo(db)

	bID := seedTitle(t, db, "banana", "Banana", "/lib/banana")
	aID := seedTitle(t, db, "apple", "apple", "/lib/apple")
	seedTitle(t, db, "cherry", "Cherry", "/lib/cherry")
	seedVolume(t, db, bID, "v1", "v1", "/lib/banana/v1.cbz", 0, 10)
	seedVolume(t, db, bID, "v2", "v2", "/lib/banana/v2.cbz", 1, 12)
	seedVolume(t, db, aID, "v1", "v1", "/lib/apple/v1.cbz", 0, 3)

	items, err := repo.ListTitles(ctx)
	require.NoError(t, err)
	require.Len(t, items, 3)

	assert.Equal(t, "apple", items[0].Name)
	assert.Equal(t, 1, items[0].VolumeCount)
	assert.Equal(t, "Banana", items[1].Name)
	assert.Equal(t, 2, items[1].VolumeCount)
	assert.Equal(t, "Cherry", items[2].Name)
	assert.Equal(t, 0, items[2].VolumeCount, "titles without volumes still list")
}

func TestGetTitleMissingIsNil(t *testing.T) {
	ctx := context.Background()
	repo := NewRepo(openTestDB(t))

	title, err := repo.GetTitle(ctx, 42)
	require.NoError(t, err)
	assert.Nil(t, title)

	title, err = repo.GetTitleBySlug(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, title)
}

func TestGetVolumeIsScopedToTitle(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	repo := NewRepo(db)

	t1 := seedTitle(t, db, "one", "One", "/lib/one")
	t2 := seedTitle(t, db, "two", "Two", "/lib/two")
	volID := seedVolume(t, db, t1, "v1", "v1", "/lib/one/v1.cbz", 0, 5)

	vol, err := repo.GetVolume(ctx, t1, volID)
	require.NoError(t, err)
	require.NotNil(t, vol)
	assert.Equal(t, "v1", vol.Slug)

	vol, err = repo.GetVolume(ctx, t2, volID)
	require.NoError(t, err)
	assert.Nil(t, vol, "a volume id cannot be reached through another title")
}

func TestGetVolumeBySlugs(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	repo := NewRepo(db)

	id := seedTitle(t, db, "tidebreaker", "Tidebreaker", "/lib/tide")
	seedVolume(t, db, id, "year-one", "Year One", "/lib/tide/y1.cbz", 0, 20)

	vol, err := repo.GetVolumeBySlugs(ctx, "tidebreaker", "year-one")
	require.NoError(t, err)
	require.NotNil(t, vol)
	assert.Equal(t, id, vol.TitleID)
	assert.Equal(t, 20, vol.PageCount)

	vol, err = repo.GetVolumeBySlugs(ctx, "tidebreaker", "year-two")
	require.NoError(t, err)
	assert.Nil(t, vol)
}

func TestListVolumesHonorsSortIndex(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	repo := NewRepo(db)

	id := seedTitle(t, db, "one", "One", "/lib/one")
	seedVolume(t, db, id, "c", "c", "/lib/one/c", 2, 1)
	seedVolume(t, db, id, "a", "a", "/lib/one/a", 0, 1)
	seedVolume(t, db, id, "b", "b", "/lib/one/b", 1, 1)

	vols, err := repo.ListVolumes(ctx, id)
	require.NoError(t, err)
	require.Len(t, vols, 3)
	assert.Equal(t, []int{0, 1, 2}, []int{vols[0].SortIndex, vols[1].SortIndex, vols[2].SortIndex})
	assert.Equal(t, "a", vols[0].Slug)
}

func TestCounts(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	repo := NewRepo(db)

	titles, volumes, err := repo.Counts(ctx)
	require.NoError(t, err)
	assert.Zero(t, titles)
	assert.Zero(t, volumes)

	id := seedTitle(t, db, "one", "One", "/lib/one")
	seedVolume(t, db, id, "a", "a", "/lib/one/a", 0, 1)

	titles, volumes, err = repo.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, titles)
	assert.Equal(t, 1, volumes)
}
