package models

// Title is a top-level series: one immediate subdirectory of the library
// root. The scanner owns its lifecycle. The slug is derived from the
// directory name, so identity survives renames only when the normalized
// name is unchanged.
type Title struct {
	ID   int64  `json:"id"`
	Slug string `json:"slug"`
	Name string `json:"name"`
	Path string `json:"path"`
}

// Volume is a readable unit within a title. Path points at a directory
// of images, a zip-family archive, or a PDF file; SortIndex is the
// volume's position in the case-insensitive directory listing at scan
// time.
type Volume struct {
	ID        int64  `json:"id"`
	TitleID   int64  `json:"title_id"`
	Slug      string `json:"slug"`
	Name      string `json:"name"`
	Path      string `json:"path"`
	SortIndex int    `json:"sort_index"`
	// PageCount is authoritative as of the last scan. Zero on a
	// PDF-backed volume can mean "no renderer installed", not "empty".
	PageCount int `json:"page_count"`
}
