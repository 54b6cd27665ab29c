package reader

import (
	"archive/zip"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

type unavailableExtractor struct{}

func (unavailableExtractor) Available() bool { return false }

func (unavailableExtractor) List(string) ([]string, error) {
	return nil, errors.New("unavailable")
}

func (unavailableExtractor) Read(string, string) ([]byte, error) {
	return nil, errors.New("unavailable")
}

type stubRenderer struct {
	available bool
	pages     int
	renders   int
}

func (s *stubRenderer) Available() bool { return s.available }

func (s *stubRenderer) PageCount(string) (int, error) { return s.pages, nil }

func (s *stubRenderer) RenderPage(string, int, int) ([]byte, error) {
	s.renders++
	return []byte("png-bytes"), nil
}

func newTestReader() *Reader {
	return &Reader{
		Zip: zipExtractor{},
		Rar: unavailableExtractor{},
		PDF: &stubRenderer{},
	}
}

func writeZip(t *testing.T, path string, entries map[string][]byte) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	zw := zip.NewWriter(f)
	for name, data := range entries {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
}

func TestDirPagesOrderAndFiltering(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.jpg", "A.jpg", "c.jpg", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(name), 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.jpg"), 0o755))

	r := newTestReader()
	require.Equal(t, []string{"A.jpg", "b.jpg", "c.jpg"}, r.Pages(dir))
}

func TestDirPagesLexicographicNotNumeric(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"2.jpg", "10.jpg", "1.jpg"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(name), 0o644))
	}

	r := newTestReader()
	require.Equal(t, []string{"1.jpg", "10.jpg", "2.jpg"}, r.Pages(dir))
}

func TestZipRoundTrip(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "vol1.cbz")
	writeZip(t, archive, map[string][]byte{
		"img2.png":  []byte("two"),
		"IMG1.png":  []byte("one"),
		"notes.txt": []byte("skip me"),
		"inner/":    nil,
	})

	r := newTestReader()

	pages := r.Pages(archive)
	require.Equal(t, []string{"IMG1.png", "img2.png"}, pages)

	cnt := r.Count(archive)
	require.Equal(t, CountExact, cnt.State)
	require.Equal(t, 2, cnt.N)

	for n := 1; n <= cnt.N; n++ {
		page, ok := r.ReadPage(archive, n)
		require.True(t, ok, "page %d", n)
		require.Equal(t, pages[n-1], page.Name)
		require.NotEmpty(t, page.Data)
	}

	_, ok := r.ReadPage(archive, 0)
	require.False(t, ok)
	_, ok = r.ReadPage(archive, cnt.N+1)
	require.False(t, ok)
}

func TestCorruptZipDegradesToEmpty(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "broken.cbz")
	require.NoError(t, os.WriteFile(archive, []byte("not a zip"), 0o644))

	r := newTestReader()
	require.Empty(t, r.Pages(archive))

	cnt := r.Count(archive)
	require.Equal(t, CountExact, cnt.State)
	require.Zero(t, cnt.N)
}

func TestMissingRarBackendDegradesToEmpty(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "vol1.cbr")
	require.NoError(t, os.WriteFile(archive, []byte("rar-ish"), 0o644))

	r := newTestReader()
	require.Empty(t, r.Pages(archive))

	cnt := r.Count(archive)
	require.Equal(t, CountExact, cnt.State)
	require.Zero(t, cnt.N)

	_, ok := r.ReadPage(archive, 1)
	require.False(t, ok)
}

func TestPDFCountUnknownWithoutRenderer(t *testing.T) {
	dir := t.TempDir()
	doc := filepath.Join(dir, "book.pdf")
	require.NoError(t, os.WriteFile(doc, []byte("%PDF-1.4"), 0o644))

	r := &Reader{Zip: zipExtractor{}, Rar: unavailableExtractor{}, PDF: &stubRenderer{available: false}}
	require.Equal(t, Count{State: CountUnknown}, r.Count(doc))

	r = &Reader{Zip: zipExtractor{}, Rar: unavailableExtractor{}, PDF: &stubRenderer{available: true, pages: 12}}
	require.Equal(t, Count{N: 12, State: CountExact}, r.Count(doc))
}

func TestReadFileRejectsTraversal(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "01.jpg"), []byte("ok"), 0o644))

	r := newTestReader()

	for _, name := range []string{
		"../../etc/passwd",
		"..",
		"/etc/passwd",
		"sub/../../escape.jpg",
		"",
	} {
		_, err := r.ReadFile(dir, name)
		require.ErrorIs(t, err, ErrInvalidPath, "name %q", name)
	}

	b, err := r.ReadFile(dir, "01.jpg")
	require.NoError(t, err)
	require.Equal(t, []byte("ok"), b)
}

func TestReadFileMissing(t *testing.T) {
	dir := t.TempDir()
	r := newTestReader()

	_, err := r.ReadFile(dir, "nope.jpg")
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrInvalidPath)
}

func TestCapabilities(t *testing.T) {
	r := &Reader{Zip: zipExtractor{}, Rar: unavailableExtractor{}, PDF: &stubRenderer{available: true}}
	caps := r.Capabilities()
	require.True(t, caps["zip"])
	require.False(t, caps["rar"])
	require.True(t, caps["pdf"])
}
