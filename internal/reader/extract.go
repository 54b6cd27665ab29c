package reader

import (
	"archive/zip"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"

	"comicshelf/internal/shape"
)

// Extractor lists and reads image entries of one archive family. The
// archive is opened fresh on every call; no handle is kept between
// requests. An unavailable backend degrades its volumes to empty page
// lists instead of failing a scan.
type Extractor interface {
	Available() bool
	List(path string) ([]string, error)
	Read(path, name string) ([]byte, error)
}

// zipExtractor handles .cbz and .zip with the standard library.
type zipExtractor struct{}

func (zipExtractor) Available() bool { return true }

func (zipExtractor) List(path string) ([]string, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open zip %s: %w", path, err)
	}
	defer zr.Close()

	var names []string
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		if shape.IsImageFile(f.Name) {
			names = append(names, f.Name)
		}
	}
	return names, nil
}

func (zipExtractor) Read(path, name string) ([]byte, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open zip %s: %w", path, err)
	}
	defer zr.Close()

	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open zip entry %s: %w", name, err)
		}
		defer rc.Close()
		return io.ReadAll(rc)
	}
	return nil, fmt.Errorf("zip entry %s not found in %s", name, path)
}

// rarExtractor handles .cbr through the unrar binary. The binary is
// probed once; hosts without it serve CBR volumes as empty.
type rarExtractor struct {
	once      sync.Once
	available bool
}

func (r *rarExtractor) Available() bool {
	r.once.Do(func() {
		_, err := exec.LookPath("unrar")
		r.available = err == nil
	})
	return r.available
}

// List runs `unrar lb`, which prints one entry name per line.
func (r *rarExtractor) List(path string) ([]string, error) {
	out, err := exec.Command("unrar", "lb", path).Output()
	if err != nil {
		return nil, fmt.Errorf("unrar lb %s: %w", path, err)
	}

	var names []string
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" || strings.HasSuffix(line, "/") {
			continue
		}
		if shape.IsImageFile(line) {
			names = append(names, line)
		}
	}
	return names, nil
}

// Read pipes a single entry to stdout with `unrar p`.
func (r *rarExtractor) Read(path, name string) ([]byte, error) {
	out, err := exec.Command("unrar", "p", "-inul", path, name).Output()
	if err != nil {
		return nil, fmt.Errorf("unrar p %s %s: %w", path, name, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("unrar p %s %s: empty output", path, name)
	}
	return out, nil
}
