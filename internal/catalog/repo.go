// Package catalog is the read side of the library: everything here
// serves titles and volumes the scanner has already persisted.
package catalog

import (
	"context"
	"database/sql"
	"fmt"

	"comicshelf/pkg/models"
)

type Repo struct {
	DB *sql.DB
}

func NewRepo(db *sql.DB) *Repo {
	return &Repo{DB: db}
}

// TitleSummary is a title with its volume count, for shelf listings.
type TitleSummary struct {
	models.Title
	VolumeCount int `json:"volume_count"`
}

func (r *Repo) ListTitles(ctx context.Context) ([]TitleSummary, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT t.id, t.slug, t.name, t.path, COUNT(v.id)
		FROM titles t
		LEFT JOIN volumes v ON v.title_id = t.id
		GROUP BY t.id
		ORDER BY t.name COLLATE NOCASE, t.slug
	`)
	if err != nil {
		return nil, fmt.Errorf("list titles: %w", err)
	}
	defer rows.Close()

	var out []TitleSummary
	for rows.Next() {
		var t TitleSummary
		if err := rows.Scan(&t.ID, &t.Slug, &t.Name, &t.Path, &t.VolumeCount); err != nil {
			return nil, fmt.Errorf("scan title: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *Repo) GetTitle(ctx context.Context, id int64) (*models.Title, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT id, slug, name, path FROM titles WHERE id = ?`, id)
	return scanTitle(row)
}

func (r *Repo) GetTitleBySlug(ctx context.Context, slug string) (*models.Title, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT id, slug, name, path FROM titles WHERE slug = ?`, slug)
	return scanTitle(row)
}

func scanTitle(row *sql.Row) (*models.Title, error) {
	var t models.Title
	if err := row.Scan(&t.ID, &t.Slug, &t.Name, &t.Path); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan title: %w", err)
	}
	return &t, nil
}

func (r *Repo) ListVolumes(ctx context.Context, titleID int64) ([]models.Volume, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT id, title_id, slug, name, path, sort_index, page_count
		FROM volumes
		WHERE title_id = ?
		ORDER BY sort_index, name COLLATE NOCASE
	`, titleID)
	if err != nil {
		return nil, fmt.Errorf("list volumes for title %d: %w", titleID, err)
	}
	defer rows.Close()

	var out []models.Volume
	for rows.Next() {
		var v models.Volume
		if err := rows.Scan(&v.ID, &v.TitleID, &v.Slug, &v.Name, &v.Path, &v.SortIndex, &v.PageCount); err != nil {
			return nil, fmt.Errorf("scan volume: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// GetVolume scopes the lookup to a title so a volume id can never be
// addressed through the wrong title.
func (r *Repo) GetVolume(ctx context.Context, titleID, volumeID int64) (*models.Volume, error) {
	row := r.DB.QueryRowContext(ctx, `
		SELECT id, title_id, slug, name, path, sort_index, page_count
		FROM volumes
		WHERE title_id = ? AND id = ?
	`, titleID, volumeID)
	return scanVolume(row)
}

func (r *Repo) GetVolumeBySlugs(ctx context.Context, titleSlug, volumeSlug string) (*models.Volume, error) {
	row := r.DB.QueryRowContext(ctx, `
		SELECT v.id, v.title_id, v.slug, v.name, v.path, v.sort_index, v.page_count
		FROM volumes v
		JOIN titles t ON t.id = v.title_id
		WHERE t.slug = ? AND v.slug = ?
	`, titleSlug, volumeSlug)
	return scanVolume(row)
}

func scanVolume(row *sql.Row) (*models.Volume, error) {
	var v models.Volume
	if err := row.Scan(&v.ID, &v.TitleID, &v.Slug, &v.Name, &v.Path, &v.SortIndex, &v.PageCount); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan volume: %w", err)
	}
	return &v, nil
}

func (r *Repo) Counts(ctx context.Context) (titles, volumes int, err error) {
	if err = r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM titles`).Scan(&titles); err != nil {
		return 0, 0, fmt.Errorf("count titles: %w", err)
	}
	if err = r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM volumes`).Scan(&volumes); err != nil {
		return 0, 0, fmt.Errorf("count volumes: %w", err)
	}
	return titles, volumes, nil
}
