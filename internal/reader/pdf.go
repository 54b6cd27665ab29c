package reader

import (
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"sync"
)

// Renderer reports PDF page counts and rasterizes single pages. Both
// operations open the document fresh; nothing is cached at this layer.
type Renderer interface {
	Available() bool
	PageCount(path string) (int, error)
	RenderPage(path string, page, dpi int) ([]byte, error)
}

// popplerRenderer shells out to the poppler tools: pdfinfo for counts,
// pdftoppm for rendering. Both binaries must be present for the
// capability to be available.
type popplerRenderer struct {
	once      sync.Once
	available bool
}

func (p *popplerRenderer) Available() bool {
	p.once.Do(func() {
		_, infoErr := exec.LookPath("pdfinfo")
		_, ppmErr := exec.LookPath("pdftoppm")
		p.available = infoErr == nil && ppmErr == nil
	})
	return p.available
}

func (p *popplerRenderer) PageCount(path string) (int, error) {
	out, err := exec.Command("pdfinfo", path).Output()
	if err != nil {
		return 0, fmt.Errorf("pdfinfo %s: %w", path, err)
	}

	for _, line := range strings.Split(string(out), "\n") {
		if !strings.HasPrefix(line, "Pages:") {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(line, "Pages:")))
		if err != nil {
			return 0, fmt.Errorf("pdfinfo %s: parse page count: %w", path, err)
		}
		return n, nil
	}
	return 0, fmt.Errorf("pdfinfo %s: no Pages line in output", path)
}

// RenderPage rasterizes one page to PNG bytes on stdout.
func (p *popplerRenderer) RenderPage(path string, page, dpi int) ([]byte, error) {
	pageArg := strconv.Itoa(page)
	out, err := exec.Command(
		"pdftoppm", "-png",
		"-f", pageArg,
		"-l", pageArg,
		"-r", strconv.Itoa(dpi),
		path,
	).Output()
	if err != nil {
		return nil, fmt.Errorf("pdftoppm %s page %d: %w", path, page, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("pdftoppm %s page %d: empty output", path, page)
	}
	return out, nil
}
