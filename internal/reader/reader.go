// Package reader resolves "page N of a volume" into names and bytes
// across the three storage shapes: image directory, zip-family archive,
// PDF document. Read failures degrade to empty results so one broken
// volume cannot take down a scan or a sibling request; the only hard
// rejection is a path that tries to escape its volume root.
package reader

import (
	"errors"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"comicshelf/internal/shape"
)

// ErrInvalidPath marks a page name that resolves outside its volume
// directory. It is raised before any filesystem access.
var ErrInvalidPath = errors.New("path escapes volume root")

// CountState distinguishes a true zero from "could not count". PDF
// volumes report CountUnknown when no renderer is installed; callers
// must not clamp navigation against an unknown count.
type CountState int

const (
	CountExact CountState = iota
	CountUnknown
)

type Count struct {
	N     int
	State CountState
}

// Page is one resolved page of a directory or archive volume.
type Page struct {
	Name string
	Data []byte
}

type Reader struct {
	Zip Extractor
	Rar Extractor
	PDF Renderer
}

// New wires the default backends: stdlib zip, external unrar, external
// poppler tools. The external ones probe their binaries on first use.
func New() *Reader {
	return &Reader{
		Zip: zipExtractor{},
		Rar: &rarExtractor{},
		PDF: &popplerRenderer{},
	}
}

// Capabilities reports which backends are usable on this host.
func (r *Reader) Capabilities() map[string]bool {
	return map[string]bool{
		"zip": r.Zip.Available(),
		"rar": r.Rar.Available(),
		"pdf": r.PDF.Available(),
	}
}

func (r *Reader) extractorFor(path string) Extractor {
	switch {
	case shape.IsZipFile(path):
		return r.Zip
	case shape.IsRarFile(path):
		return r.Rar
	default:
		return nil
	}
}

// Pages enumerates page names for a volume in reading order. PDF
// volumes have numbered, not named, pages and always report nil here.
func (r *Reader) Pages(path string) []string {
	switch shape.Detect(path) {
	case shape.VolumeDir:
		return r.dirPages(path)
	case shape.VolumeArchive:
		return r.archivePages(path)
	default:
		return nil
	}
}

func (r *Reader) dirPages(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		log.Printf("[reader] list %s: %v", dir, err)
		return nil
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && shape.IsImageFile(e.Name()) {
			names = append(names, e.Name())
		}
	}
	sortPages(names)
	return names
}

func (r *Reader) archivePages(path string) []string {
	ex := r.extractorFor(path)
	if ex == nil || !ex.Available() {
		log.Printf("[reader] no extractor for %s", path)
		return nil
	}

	names, err := ex.List(path)
	if err != nil {
		log.Printf("[reader] %v", err)
		return nil
	}
	sortPages(names)
	return names
}

// sortPages orders names case-insensitively, plain lexicographic on the
// folded name: "10.jpg" sorts before "2.jpg".
func sortPages(names []string) {
	sort.SliceStable(names, func(i, j int) bool {
		return strings.ToLower(names[i]) < strings.ToLower(names[j])
	})
}

// Count reports the page count for a volume. Directory and archive
// counts are exact, possibly zero after degradation; PDF counts are
// unknown when the renderer is missing or the document will not parse.
func (r *Reader) Count(path string) Count {
	switch shape.Detect(path) {
	case shape.VolumePDF:
		if !r.PDF.Available() {
			return Count{State: CountUnknown}
		}
		n, err := r.PDF.PageCount(path)
		if err != nil {
			log.Printf("[reader] %v", err)
			return Count{State: CountUnknown}
		}
		return Count{N: n}
	default:
		return Count{N: len(r.Pages(path))}
	}
}

// ReadPage returns 1-based page n of a directory or archive volume. PDF
// pages are rasterized through the render cache, never read here. The
// bool is false whenever the page does not resolve.
func (r *Reader) ReadPage(path string, n int) (*Page, bool) {
	names := r.Pages(path)
	if n < 1 || n > len(names) {
		return nil, false
	}
	name := names[n-1]

	switch shape.Detect(path) {
	case shape.VolumeDir:
		b, err := r.ReadFile(path, name)
		if err != nil {
			return nil, false
		}
		return &Page{Name: name, Data: b}, true
	case shape.VolumeArchive:
		ex := r.extractorFor(path)
		if ex == nil || !ex.Available() {
			return nil, false
		}
		b, err := ex.Read(path, name)
		if err != nil {
			log.Printf("[reader] %v", err)
			return nil, false
		}
		return &Page{Name: name, Data: b}, true
	default:
		return nil, false
	}
}

// ReadFile returns a named file from inside a directory volume. The
// name is validated against the volume root before any filesystem
// access; traversal attempts fail with ErrInvalidPath.
func (r *Reader) ReadFile(dir, name string) ([]byte, error) {
	p, err := securePath(dir, name)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(p)
	if err != nil {
		log.Printf("[reader] read %s: %v", p, err)
		return nil, err
	}
	return b, nil
}

// securePath joins name under root and rejects any result that escapes
// root. Purely lexical, so it runs before touching the filesystem.
func securePath(root, name string) (string, error) {
	if name == "" || filepath.IsAbs(name) {
		return "", ErrInvalidPath
	}
	rootClean := filepath.Clean(root)
	p := filepath.Join(rootClean, filepath.FromSlash(name))
	if p == rootClean || !strings.HasPrefix(p, rootClean+string(os.PathSeparator)) {
		return "", ErrInvalidPath
	}
	return p, nil
}
