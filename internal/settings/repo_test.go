package settings

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"comicshelf/pkg/database"
)

func openTestRepo(t *testing.T) *Repo {
	t.Helper()
	db := database.MustOpen(database.Config{Path: filepath.Join(t.TempDir(), "test.db")})
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.Migrate(db))
	return NewRepo(db)
}

func TestSetGetDelete(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)

	_, ok, err := repo.Get(ctx, "missing")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, repo.Set(ctx, "k", "v1"))
	require.NoError(t, repo.Set(ctx, "k", "v2"))

	v, ok, err := repo.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "v2", v)

	all, err := repo.All(ctx)
	require.NoError(t, err)
	require.Equal(t, map[string]string{"k": "v2"}, all)

	require.NoError(t, repo.Delete(ctx, "k"))
	_, ok, err = repo.Get(ctx, "k")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestResolveLibraryRootPriority(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)

	env := map[string]string{}
	lookup := func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}

	root, prov, err := ResolveLibraryRoot(ctx, repo, lookup)
	require.NoError(t, err)
	require.Equal(t, DefaultLibraryRoot, root)
	require.Equal(t, FromDefault, prov)

	env["COMICSHELF_LIBRARY_ROOT"] = "/srv/comics"
	root, prov, err = ResolveLibraryRoot(ctx, repo, lookup)
	require.NoError(t, err)
	require.Equal(t, "/srv/comics", root)
	require.Equal(t, FromEnv, prov)

	require.NoError(t, repo.Set(ctx, KeyLibraryRoot, "/mnt/shelf"))
	root, prov, err = ResolveLibraryRoot(ctx, repo, lookup)
	require.NoError(t, err)
	require.Equal(t, "/mnt/shelf", root)
	require.Equal(t, FromSetting, prov)

	// a blank saved setting falls through to the environment
	require.NoError(t, repo.Set(ctx, KeyLibraryRoot, "  "))
	root, prov, err = ResolveLibraryRoot(ctx, repo, lookup)
	require.NoError(t, err)
	require.Equal(t, "/srv/comics", root)
	require.Equal(t, FromEnv, prov)
}

func TestRecordScanResult(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)

	started := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, repo.RecordScanStarted(ctx, started))
	require.NoError(t, repo.RecordScanResult(ctx, started.Add(2*time.Second), 2*time.Second, errors.New("boom")))

	all, err := repo.All(ctx)
	require.NoError(t, err)
	require.Equal(t, "2025-06-01T10:00:00Z", all[KeyScanLastStarted])
	require.Equal(t, "2025-06-01T10:00:02Z", all[KeyScanLastFinished])
	require.Equal(t, "2000", all[KeyScanDurationMS])
	require.Equal(t, "boom", all[KeyScanLastError])

	// a clean result clears the sticky error
	require.NoError(t, repo.RecordScanResult(ctx, started.Add(3*time.Second), time.Second, nil))
	all, err = repo.All(ctx)
	require.NoError(t, err)
	_, hasErr := all[KeyScanLastError]
	require.False(t, hasErr)
}
