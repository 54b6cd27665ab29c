// Package shape classifies filesystem entries into the physical storage
// forms the library understands: loose images, zip-family archives, PDF
// documents, and directories of images. Classification is by extension
// only; a lying extension surfaces later as a read failure, not here.
package shape

import (
	"os"
	"path/filepath"
	"strings"
)

var (
	ImageExtensions = []string{".jpg", ".jpeg", ".png", ".webp", ".gif"}
	ZipExtensions   = []string{".cbz", ".zip"}
	RarExtensions   = []string{".cbr"}
)

func hasExtension(name string, exts []string) bool {
	lower := strings.ToLower(name)
	for _, ext := range exts {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

func IsImageFile(name string) bool {
	return hasExtension(name, ImageExtensions)
}

func IsZipFile(name string) bool {
	return hasExtension(name, ZipExtensions)
}

func IsRarFile(name string) bool {
	return hasExtension(name, RarExtensions)
}

func IsArchiveFile(name string) bool {
	return IsZipFile(name) || IsRarFile(name)
}

func IsPDFFile(name string) bool {
	return strings.HasSuffix(strings.ToLower(name), ".pdf")
}

// Kind of a single file entry.
type Kind int

const (
	KindOther Kind = iota
	KindImage
	KindArchive
	KindPDF
)

func Classify(name string) Kind {
	switch {
	case IsImageFile(name):
		return KindImage
	case IsArchiveFile(name):
		return KindArchive
	case IsPDFFile(name):
		return KindPDF
	default:
		return KindOther
	}
}

// Volume is the storage form behind a catalog volume.
type Volume int

const (
	VolumeNone Volume = iota
	VolumeDir
	VolumeArchive
	VolumePDF
)

func (v Volume) String() string {
	switch v {
	case VolumeDir:
		return "dir"
	case VolumeArchive:
		return "archive"
	case VolumePDF:
		return "pdf"
	default:
		return "none"
	}
}

// Detect reports the storage form of a catalog path. An existing
// directory is always dir-shaped regardless of its name; files go by
// extension. A vanished path with no recognizable extension detects as
// VolumeNone.
func Detect(path string) Volume {
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return VolumeDir
	}
	switch {
	case IsPDFFile(path):
		return VolumePDF
	case IsArchiveFile(path):
		return VolumeArchive
	default:
		return VolumeNone
	}
}

// IsVolumeDir reports whether dir directly contains at least one image
// file. Unreadable directories read as empty.
func IsVolumeDir(path string) bool {
	entries, err := os.ReadDir(path)
	if err != nil {
		return false
	}
	for _, e := range entries {
		if !e.IsDir() && IsImageFile(e.Name()) {
			return true
		}
	}
	return false
}

// IsVolumeCandidate classifies a direct child of a title directory: an
// image directory, or a file with an archive or PDF extension.
func IsVolumeCandidate(dir string, entry os.DirEntry) bool {
	if entry.IsDir() {
		return IsVolumeDir(filepath.Join(dir, entry.Name()))
	}
	return IsArchiveFile(entry.Name()) || IsPDFFile(entry.Name())
}
