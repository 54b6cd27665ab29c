package models

import "time"

// Progress is the last page viewed in a volume. One row per
// (title, volume) pair, last write wins.
type Progress struct {
	TitleID   int64     `json:"title_id"`
	VolumeID  int64     `json:"volume_id"`
	PageIndex int       `json:"page_index"` // zero-based
	UpdatedAt time.Time `json:"updated_at"`
}

// ContinueEntry is one row of the "keep reading" shelf: the most
// recently read volume of a title joined with enough catalog fields to
// render a card.
type ContinueEntry struct {
	TitleID    int64     `json:"title_id"`
	TitleSlug  string    `json:"title_slug"`
	TitleName  string    `json:"title_name"`
	VolumeID   int64     `json:"volume_id"`
	VolumeSlug string    `json:"volume_slug"`
	VolumeName string    `json:"volume_name"`
	PageIndex  int       `json:"page_index"`
	PageCount  int       `json:"page_count"`
	UpdatedAt  time.Time `json:"updated_at"`
}
