// Package meta manages the optional sidecar files inside a title
// directory: a series.json with display metadata and poster/logo
// artwork. All of it lives next to the comics so the library stays
// portable as plain files.
package meta

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
)

const (
	MetaFile   = "series.json"
	PosterBase = "poster"
	LogoBase   = "logo"
)

var artExtensions = []string{".jpg", ".jpeg", ".png", ".webp"}

// SeriesMeta mirrors series.json. Name overrides the directory-derived
// display name at scan time; the rest is informational.
type SeriesMeta struct {
	Name        string `json:"name,omitempty"`
	Author      string `json:"author,omitempty"`
	Description string `json:"description,omitempty"`
}

// Load reads series.json from a title directory. Missing file returns
// nil; a malformed file is logged and treated as absent so one bad
// sidecar never blocks a scan.
func Load(dir string) *SeriesMeta {
	data, err := os.ReadFile(filepath.Join(dir, MetaFile))
	if err != nil {
		return nil
	}
	var m SeriesMeta
	if err := json.Unmarshal(data, &m); err != nil {
		log.Printf("[meta] skipping malformed %s in %s: %v", MetaFile, dir, err)
		return nil
	}
	return &m
}

func Save(dir string, m *SeriesMeta) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal series meta: %w", err)
	}
	path := filepath.Join(dir, MetaFile)
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// FindArt locates base.<ext> for any supported image extension.
func FindArt(dir, base string) (string, bool) {
	for _, ext := range artExtensions {
		p := filepath.Join(dir, base+ext)
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p, true
		}
	}
	return "", false
}

// SaveArt stores uploaded artwork as base.<ext>, replacing any variant
// with a different extension so FindArt stays unambiguous.
func SaveArt(dir, base, filename string, data []byte) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if !AllowedArt(ext) {
		return "", fmt.Errorf("unsupported artwork type %q", ext)
	}
	for _, old := range artExtensions {
		if old == ext {
			continue
		}
		_ = os.Remove(filepath.Join(dir, base+old))
	}
	path := filepath.Join(dir, base+ext)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}

// AllowedArt reports whether ext (lowercase, dot included) is a
// supported artwork extension.
func AllowedArt(ext string) bool {
	for _, e := range artExtensions {
		if e == ext {
			return true
		}
	}
	return false
}
