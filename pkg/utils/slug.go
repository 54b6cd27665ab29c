package utils

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var (
	slugStrip    = regexp.MustCompile(`[^\p{L}\p{N}_\s-]`)
	slugCollapse = regexp.MustCompile(`[\s_-]+`)
)

// Slugify turns a display name into a stable URL slug: lowercase,
// punctuation stripped, runs of whitespace/underscores/hyphens collapsed
// to a single hyphen. Input is NFC-normalized first so decomposed and
// precomposed accents produce the same slug. A name that normalizes to
// nothing falls back to "untitled".
func Slugify(name string) string {
	s := norm.NFC.String(name)
	s = strings.ToLower(s)
	s = slugStrip.ReplaceAllString(s, "")
	s = slugCollapse.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if s == "" {
		return "untitled"
	}
	return s
}
