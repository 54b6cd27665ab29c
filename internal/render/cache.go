// Package render caches rasterized PDF pages on disk. Entries are keyed
// by (title slug, volume slug, page, dpi) and never invalidated: if the
// source PDF changes, stale renders are served until the cache file is
// removed by hand.
package render

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"comicshelf/internal/reader"
)

const (
	MinDPI     = 72
	MaxDPI     = 400
	DefaultDPI = 150
)

// ErrUnavailable means no PDF renderer is installed on this host.
var ErrUnavailable = errors.New("pdf renderer not installed")

// ClampDPI bounds a requested resolution so the cache key space stays
// finite.
func ClampDPI(dpi int) int {
	if dpi < MinDPI {
		return MinDPI
	}
	if dpi > MaxDPI {
		return MaxDPI
	}
	return dpi
}

type Cache struct {
	Dir      string
	Renderer reader.Renderer
}

func NewCache(dir string, r reader.Renderer) *Cache {
	return &Cache{Dir: dir, Renderer: r}
}

// DefaultDir resolves the cache directory: env override, else
// ~/.comicshelf/renders.
func DefaultDir() string {
	if p := os.Getenv("COMICSHELF_CACHE_DIR"); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		home = "."
	}
	return filepath.Join(home, ".comicshelf", "renders")
}

// Page returns the rendered PNG for one PDF page, serving from disk
// when the key already exists. Two concurrent misses for the same key
// may both render; the output is deterministic, so the second write is
// harmless. A failed cache write still returns the rendered bytes.
func (c *Cache) Page(pdfPath, titleSlug, volumeSlug string, page, dpi int) ([]byte, error) {
	if page < 1 {
		return nil, fmt.Errorf("page %d out of range", page)
	}
	dpi = ClampDPI(dpi)

	key := c.keyPath(titleSlug, volumeSlug, page, dpi)
	if b, err := os.ReadFile(key); err == nil {
		return b, nil
	}

	if !c.Renderer.Available() {
		return nil, ErrUnavailable
	}
	b, err := c.Renderer.RenderPage(pdfPath, page, dpi)
	if err != nil {
		return nil, fmt.Errorf("render %s page %d: %w", pdfPath, page, err)
	}

	if err := os.MkdirAll(filepath.Dir(key), 0o755); err != nil {
		log.Printf("[render] cache dir for %s: %v", key, err)
		return b, nil
	}
	if err := os.WriteFile(key, b, 0o644); err != nil {
		log.Printf("[render] cache write %s: %v", key, err)
	}
	return b, nil
}

func (c *Cache) keyPath(titleSlug, volumeSlug string, page, dpi int) string {
	return filepath.Join(c.Dir, titleSlug, volumeSlug, fmt.Sprintf("%d@%d.png", page, dpi))
}
