// Package progress stores reading positions. One row per
// (title, volume) pair; whoever writes last wins, which is the whole
// conflict model for a single-household server.
package progress

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"comicshelf/pkg/models"
)

type Repo struct {
	DB *sql.DB
}

func NewRepo(db *sql.DB) *Repo {
	return &Repo{DB: db}
}

// Set upserts the position for a volume. The timestamp is written from
// Go so ordering between writes in the same second stays stable.
func (r *Repo) Set(ctx context.Context, titleID, volumeID int64, pageIndex int) (*models.Progress, error) {
	now := time.Now().UTC()
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO progress (title_id, volume_id, page_index, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(title_id, volume_id) DO UPDATE SET
		  page_index = excluded.page_index,
		  updated_at = excluded.updated_at
	`, titleID, volumeID, pageIndex, now)
	if err != nil {
		return nil, fmt.Errorf("set progress %d/%d: %w", titleID, volumeID, err)
	}
	return &models.Progress{TitleID: titleID, VolumeID: volumeID, PageIndex: pageIndex, UpdatedAt: now}, nil
}

func (r *Repo) Get(ctx context.Context, titleID, volumeID int64) (*models.Progress, error) {
	row := r.DB.QueryRowContext(ctx, `
		SELECT title_id, volume_id, page_index, updated_at
		FROM progress
		WHERE title_id = ? AND volume_id = ?
	`, titleID, volumeID)

	var p models.Progress
	if err := row.Scan(&p.TitleID, &p.VolumeID, &p.PageIndex, &p.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get progress %d/%d: %w", titleID, volumeID, err)
	}
	return &p, nil
}

const continueColumns = `
	t.id, t.slug, t.name,
	v.id, v.slug, v.name, v.page_count,
	p.page_index, p.updated_at`

func scanContinueEntry(rows *sql.Rows) (models.ContinueEntry, error) {
	var e models.ContinueEntry
	err := rows.Scan(
		&e.TitleID, &e.TitleSlug, &e.TitleName,
		&e.VolumeID, &e.VolumeSlug, &e.VolumeName, &e.PageCount,
		&e.PageIndex, &e.UpdatedAt,
	)
	return e, err
}

// LastRead returns the most recently touched volume of one title, nil
// when the title has no progress at all.
func (r *Repo) LastRead(ctx context.Context, titleID int64) (*models.ContinueEntry, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT `+continueColumns+`
		FROM progress p
		JOIN titles t ON t.id = p.title_id
		JOIN volumes v ON v.id = p.volume_id
		WHERE p.title_id = ?
		ORDER BY p.updated_at DESC
		LIMIT 1
	`, titleID)
	if err != nil {
		return nil, fmt.Errorf("last read for title %d: %w", titleID, err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	e, err := scanContinueEntry(rows)
	if err != nil {
		return nil, fmt.Errorf("scan last read: %w", err)
	}
	return &e, nil
}

// LastReadAll returns one entry per title that has progress, newest
// first, for the continue-reading shelf.
func (r *Repo) LastReadAll(ctx context.Context) ([]models.ContinueEntry, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT `+continueColumns+`
		FROM progress p
		JOIN (
			SELECT title_id, MAX(updated_at) AS last_at
			FROM progress
			GROUP BY title_id
		) latest ON latest.title_id = p.title_id AND latest.last_at = p.updated_at
		JOIN titles t ON t.id = p.title_id
		JOIN volumes v ON v.id = p.volume_id
		ORDER BY p.updated_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("last read all: %w", err)
	}
	defer rows.Close()

	var out []models.ContinueEntry
	for rows.Next() {
		e, err := scanContinueEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan last read: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ClearVolume removes one position; the bool reports whether a row
// existed.
func (r *Repo) ClearVolume(ctx context.Context, titleID, volumeID int64) (bool, error) {
	res, err := r.DB.ExecContext(ctx, `
		DELETE FROM progress WHERE title_id = ? AND volume_id = ?
	`, titleID, volumeID)
	if err != nil {
		return false, fmt.Errorf("clear progress %d/%d: %w", titleID, volumeID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *Repo) ClearTitle(ctx context.Context, titleID int64) (int64, error) {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM progress WHERE title_id = ?`, titleID)
	if err != nil {
		return 0, fmt.Errorf("clear progress for title %d: %w", titleID, err)
	}
	return res.RowsAffected()
}

func (r *Repo) ClearAll(ctx context.Context) (int64, error) {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM progress`)
	if err != nil {
		return 0, fmt.Errorf("clear all progress: %w", err)
	}
	return res.RowsAffected()
}
