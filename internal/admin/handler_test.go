package admin

import (
	"archive/zip"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"comicshelf/internal/catalog"
	"comicshelf/internal/events"
	"comicshelf/internal/reader"
	"comicshelf/internal/scanner"
	"comicshelf/internal/settings"
	"comicshelf/pkg/database"
)

type fixture struct {
	db      *sql.DB
	router  *gin.Engine
	handler *Handler
	env     map[string]string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := database.MustOpen(database.Config{Path: filepath.Join(t.TempDir(), "test.db")})
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.Migrate(db))

	settingsRepo := settings.NewRepo(db)
	sc := scanner.New(db, reader.New(), settingsRepo)

	env := map[string]string{}
	h := NewHandler(sc, settingsRepo, catalog.NewRepo(db), sc.Reader, events.NewHub())
	h.LookupEnv = func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}

	r := gin.New()
	h.RegisterRoutes(r.Group("/api/admin"))
	return &fixture{db: db, router: r, handler: h, env: env}
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func writeZip(t *testing.T, path string, names ...string) {
	t.Helper()
	file, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(file)
	for _, name := range names {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte("data:" + name))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, file.Close())
}

func buildLibrary(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	dir := filepath.Join(root, "Tidebreaker")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	writeZip(t, filepath.Join(dir, "Year One.cbz"), "a.jpg", "b.jpg")
	return root
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestScanEndpointBuildsCatalog(t *testing.T) {
	f := newFixture(t)
	root := buildLibrary(t)
	require.NoError(t, f.handler.Settings.Set(context.Background(), settings.KeyLibraryRoot, root))

	w := f.do(t, http.MethodPost, "/api/admin/scan", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	body := decode(t, w)
	assert.Equal(t, root, body["library_root"])
	assert.Equal(t, "setting", body["source"])
	scan, ok := body["scan"].(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, 1, scan["titles"])
	assert.EqualValues(t, 1, scan["volumes"])

	titles, volumes, err := f.handler.Catalog.Counts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, titles)
	assert.Equal(t, 1, volumes)
}

func TestScanStatusAfterRuns(t *testing.T) {
	f := newFixture(t)
	root := buildLibrary(t)
	require.NoError(t, f.handler.Settings.Set(context.Background(), settings.KeyLibraryRoot, root))

	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/api/admin/scan", "").Code)

	w := f.do(t, http.MethodGet, "/api/admin/scan/status", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, root, body["library_root"])
	assert.Contains(t, body, "last_started")
	assert.Contains(t, body, "last_completed")
	assert.Contains(t, body, "duration_ms")
	assert.NotContains(t, body, "last_error")

	caps, ok := body["capabilities"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, caps["zip"], "stdlib zip is always available")
}

func TestScanFailureSurfacesAndPersists(t *testing.T) {
	f := newFixture(t)
	missing := filepath.Join(t.TempDir(), "gone")
	require.NoError(t, f.handler.Settings.Set(context.Background(), settings.KeyLibraryRoot, missing))

	w := f.do(t, http.MethodPost, "/api/admin/scan", "")
	require.Equal(t, http.StatusInternalServerError, w.Code)
	body := decode(t, w)
	assert.Contains(t, body["error"], "gone")

	w = f.do(t, http.MethodGet, "/api/admin/scan/status", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, decode(t, w), "last_error")
}

func TestSetLibraryRootPersistsAndRescans(t *testing.T) {
	f := newFixture(t)
	root := buildLibrary(t)

	w := f.do(t, http.MethodPut, "/api/admin/settings/library-root",
		`{"library_root": "`+root+`"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	body := decode(t, w)
	assert.Equal(t, root, body["library_root"])
	assert.Equal(t, "setting", body["source"])
	require.Contains(t, body, "scan", "saving a root triggers an immediate rescan")

	saved, ok, err := f.handler.Settings.Get(context.Background(), settings.KeyLibraryRoot)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, root, saved)
}

func TestClearLibraryRootFallsBackToEnv(t *testing.T) {
	f := newFixture(t)
	envRoot := buildLibrary(t)
	f.env["COMICSHELF_LIBRARY_ROOT"] = envRoot
	require.NoError(t, f.handler.Settings.Set(context.Background(), settings.KeyLibraryRoot, t.TempDir()))

	w := f.do(t, http.MethodPut, "/api/admin/settings/library-root", `{"library_root": ""}`)
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	assert.Equal(t, envRoot, body["library_root"])
	assert.Equal(t, "env", body["source"])

	_, ok, err := f.handler.Settings.Get(context.Background(), settings.KeyLibraryRoot)
	require.NoError(t, err)
	assert.False(t, ok, "the persisted root is gone")
}

func TestSetLibraryRootKeepsBadPathButReportsScanError(t *testing.T) {
	f := newFixture(t)
	missing := filepath.Join(t.TempDir(), "not-there")

	w := f.do(t, http.MethodPut, "/api/admin/settings/library-root",
		`{"library_root": "`+missing+`"}`)
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	assert.Contains(t, body, "scan_error")

	saved, ok, err := f.handler.Settings.Get(context.Background(), settings.KeyLibraryRoot)
	require.NoError(t, err)
	require.True(t, ok, "the setting sticks even when the scan fails")
	assert.Equal(t, missing, saved)
}

func TestSettingsEndpoint(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.handler.Settings.Set(ctx, "theme", "dark"))
	f.env["COMICSHELF_LIBRARY_ROOT"] = "/mnt/comics"

	w := f.do(t, http.MethodGet, "/api/admin/settings", "")
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	assert.Equal(t, "/mnt/comics", body["library_root"])
	assert.Equal(t, "env", body["source"])
	assert.Equal(t, "/mnt/comics", body["env_library_root"])
	all, ok := body["settings"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "dark", all["theme"])
}

func TestStatsEndpoint(t *testing.T) {
	f := newFixture(t)
	_, err := f.db.Exec(`INSERT INTO titles (slug, name, path) VALUES ('one', 'One', '/lib/one')`)
	require.NoError(t, err)
	_, err = f.db.Exec(`
		INSERT INTO volumes (title_id, slug, name, path, sort_index, page_count)
		VALUES (1, 'v1', 'v1', '/lib/one/v1.cbz', 0, 4)`)
	require.NoError(t, err)

	w := f.do(t, http.MethodGet, "/api/admin/stats", "")
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	assert.EqualValues(t, 1, body["titles"])
	assert.EqualValues(t, 1, body["volumes"])
	feed, ok := body["feed"].(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, 0, feed["tcp_clients"])
	assert.EqualValues(t, 0, feed["ws_clients"])
}
