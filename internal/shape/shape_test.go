package shape

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		want Kind
	}{
		{"page001.jpg", KindImage},
		{"page001.JPEG", KindImage},
		{"cover.webp", KindImage},
		{"anim.GIF", KindImage},
		{"vol1.cbz", KindArchive},
		{"vol2.CBR", KindArchive},
		{"bundle.zip", KindArchive},
		{"book.pdf", KindPDF},
		{"book.PDF", KindPDF},
		{"notes.txt", KindOther},
		{"series.json", KindOther},
		{"jpg", KindOther},
	}

	for _, tc := range cases {
		require.Equal(t, tc.want, Classify(tc.name), "classify %s", tc.name)
	}
}

func TestDetect(t *testing.T) {
	dir := t.TempDir()

	// a directory named like an archive is still dir-shaped
	zipDir := filepath.Join(dir, "oops.zip")
	require.NoError(t, os.Mkdir(zipDir, 0o755))
	require.Equal(t, VolumeDir, Detect(zipDir))

	// files (existing or not) go by extension
	require.Equal(t, VolumeArchive, Detect(filepath.Join(dir, "missing.cbz")))
	require.Equal(t, VolumePDF, Detect(filepath.Join(dir, "missing.pdf")))
	require.Equal(t, VolumeNone, Detect(filepath.Join(dir, "missing")))
}

func TestIsVolumeDir(t *testing.T) {
	root := t.TempDir()

	withImage := filepath.Join(root, "with-image")
	require.NoError(t, os.Mkdir(withImage, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(withImage, "01.png"), []byte("x"), 0o644))

	noImage := filepath.Join(root, "no-image")
	require.NoError(t, os.Mkdir(noImage, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(noImage, "readme.txt"), []byte("x"), 0o644))

	// a nested image does not make the parent a volume
	nested := filepath.Join(root, "nested")
	require.NoError(t, os.MkdirAll(filepath.Join(nested, "inner"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(nested, "inner", "01.jpg"), []byte("x"), 0o644))

	require.True(t, IsVolumeDir(withImage))
	require.False(t, IsVolumeDir(noImage))
	require.False(t, IsVolumeDir(nested))
	require.False(t, IsVolumeDir(filepath.Join(root, "does-not-exist")))
}

func TestIsVolumeCandidate(t *testing.T) {
	root := t.TempDir()

	vol := filepath.Join(root, "Vol 1")
	require.NoError(t, os.Mkdir(vol, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(vol, "p1.jpg"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "vol2.cbz"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "book.pdf"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.txt"), []byte("x"), 0o644))

	entries, err := os.ReadDir(root)
	require.NoError(t, err)

	got := map[string]bool{}
	for _, e := range entries {
		got[e.Name()] = IsVolumeCandidate(root, e)
	}

	require.True(t, got["Vol 1"])
	require.True(t, got["vol2.cbz"])
	require.True(t, got["book.pdf"])
	require.False(t, got["notes.txt"])
}
