package utils

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSlugify(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"punctuation stripped", "The Amazing Spider-Man!", "the-amazing-spider-man"},
		{"all punctuation falls back", "!!!", "untitled"},
		{"empty falls back", "", "untitled"},
		{"underscores collapse", "Vol_01 - Part 2", "vol-01-part-2"},
		{"archive filename", "Year One (2019).cbz", "year-one-2019cbz"},
		{"leading and trailing junk", "  --Spaced Out--  ", "spaced-out"},
		{"unicode letters survive", "Café Lumière", "café-lumière"},
		{"mixed case", "ALL CAPS TITLE", "all-caps-title"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, Slugify(tc.in))
		})
	}
}

func TestSlugifyStableAcrossNormalizationForms(t *testing.T) {
	// e + combining acute vs precomposed é
	require.Equal(t, Slugify("Café"), Slugify("Café"))
}
