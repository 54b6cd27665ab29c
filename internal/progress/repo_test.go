package progress

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

func seedTitle(t *testing.T, db *sql.DB, slug, name string) int64 {
	t.Helper()
	res, err := db.Exec(`INSERT INTO titles (slug, name, path) VALUES (?, ?, ?)`, slug, name, "/lib/"+slug)
	require.NoError(t, err)
	id, err := res.LastInsertId()
	require.NoError(t, err)
	return id
}

func seedVolume(t *testing.T, db *sql.DB, titleID int64, slug string, sortIndex, pageCount int) int64 {
	t.Helper()
	res, err := db.Exec(`
		INSERT INTO volumes (title_id, slug, name, path, sort_index, page_count)
		VALUES (?, ?, ?, ?, ?, ?)`,
		titleID, slug, slug, "/lib/"+slug, sortIndex, pageCount)
	require.NoError(t, err)
	id, err := res.LastInsertId()
	require.NoError(t, err)
	return id
}

func TestSetUpsertsSingleRow(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	repo := NewRepo(db)

	titleID := seedTitle(t, db, "one", "One")
	volumeID := seedVolume(t, db, titleID, "v1", 0, 20)

	_, err := repo.Set(ctx, titleID, volumeID, 3)
	require.NoError(t, err)
	saved, err := repo.Set(ctx, titleID, volumeID, 7)
	require.NoError(t, err)
	assert.Equal(t, 7, saved.PageIndex)

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM progress`).Scan(&n))
	assert.Equal(t, 1, n)

	p, err := repo.Get(ctx, titleID, volumeID)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, 7, p.PageIndex)
}

func TestGetMissingIsNil(t *testing.T) {
	ctx := context.Background()
	repo := NewRepo(openTestDB(t))

	p, err := repo.Get(ctx, 1, 2)
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestClearVolume(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	repo := NewRepo(db)

	titleID := seedTitle(t, db, "one", "One")
	volumeID := seedVolume(t, db, titleID, "v1", 0, 20)

	_, err := repo.Set(ctx, titleID, volumeID, 5)
	require.NoError(t, err)

	existed, err := repo.ClearVolume(ctx, titleID, volumeID)
	require.NoError(t, err)
	assert.True(t, existed)

	p, err := repo.Get(ctx, titleID, volumeID)
	require.NoError(t, err)
	assert.Nil(t, p)

	existed, err = repo.ClearVolume(ctx, titleID, volumeID)
	require.NoError(t, err)
	assert.False(t, existed)
}

func TestClearTitleAndAll(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	repo := NewRepo(db)

	t1 := seedTitle(t, db, "one", "One")
	t2 := seedTitle(t, db, "two", "Two")
	v1 := seedVolume(t, db, t1, "a", 0, 10)
	v2 := seedVolume(t, db, t1, "b", 1, 10)
	v3 := seedVolume(t, db, t2, "c", 0, 10)

	for _, pair := range [][2]int64{{t1, v1}, {t1, v2}, {t2, v3}} {
		_, err := repo.Set(ctx, pair[0], pair[1], 1)
		require.NoError(t, err)
	}

	n, err := repo.ClearTitle(ctx, t1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = repo.ClearAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestLastReadPicksNewestVolume(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	repo := NewRepo(db)

	titleID := seedTitle(t, db, "blackwood", "Blackwood")
	v1 := seedVolume(t, db, titleID, "vol-01", 0, 24)
	v2 := seedVolume(t, db, titleID, "vol-02", 1, 30)

	_, err := repo.Set(ctx, titleID, v2, 12)
	require.NoError(t, err)
	_, err = repo.Set(ctx, titleID, v1, 3)
	require.NoError(t, err)

	entry, err := repo.LastRead(ctx, titleID)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, v1, entry.VolumeID, "the later write wins")
	assert.Equal(t, 3, entry.PageIndex)
	assert.Equal(t, "blackwood", entry.TitleSlug)
	assert.Equal(t, "vol-01", entry.VolumeSlug)
	assert.Equal(t, 24, entry.PageCount)
}

func TestLastReadNoProgressIsNil(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	repo := NewRepo(db)

	titleID := seedTitle(t, db, "one", "One")
	entry, err := repo.LastRead(ctx, titleID)
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestLastReadAllOnePerTitleNewestFirst(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	repo := NewRepo(db)

	t1 := seedTitle(t, db, "one", "One")
	t2 := seedTitle(t, db, "two", "Two")
	v1a := seedVolume(t, db, t1, "a", 0, 10)
	v1b := seedVolume(t, db, t1, "b", 1, 10)
	v2a := seedVolume(t, db, t2, "c", 0, 10)

	_, err := repo.Set(ctx, t1, v1a, 1)
	require.NoError(t, err)
	_, err = repo.Set(ctx, t2, v2a, 2)
	require.NoError(t, err)
	_, err = repo.Set(ctx, t1, v1b, 9)
	require.NoError(t, err)

	entries, err := repo.LastReadAll(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2, "one entry per title")

	assert.Equal(t, t1, entries[0].TitleID, "title with the newest write comes first")
	assert.Equal(t, v1b, entries[0].VolumeID)
	assert.Equal(t, t2, entries[1].TitleID)
	assert.Equal(t, v2a, entries[1].VolumeID)
}

func TestProgressCascadesWithVolume(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	repo := NewRepo(db)

	titleID := seedTitle(t, db, "one", "One")
	volumeID := seedVolume(t, db, titleID, "v1", 0, 10)
	_, err := repo.Set(ctx, titleID, volumeID, 5)
	require.NoError(t, err)

	_, err = db.Exec(`DELETE FROM volumes WHERE id = ?`, volumeID)
	require.NoError(t, err)

	p, err := repo.Get(ctx, titleID, volumeID)
	require.NoError(t, err)
	assert.Nil(t, p)
}
