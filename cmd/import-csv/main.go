package main

import (
	"context"
	"database/sql"
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"comicshelf/pkg/database"
	"comicshelf/pkg/utils"
)

// Only progress is imported. The catalog itself always comes from disk via
// the scanner, so restoring it from CSV would just be overwritten by the
// next rescan.
func main() {
	progressIn := flag.String("progress", "data/progress.csv", "input CSV path for reading progress")
	flag.Parse()

	utils.LoadDotEnv()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db := database.MustOpen(database.DefaultConfig())
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatalf("db migrate failed: %v", err)
	}

	restored, skipped, err := importProgress(ctx, db, *progressIn)
	if err != nil {
		log.Fatalf("import progress failed: %v", err)
	}

	log.Printf("✅ restored %d progress rows from %s (%d skipped)", restored, *progressIn, skipped)
}

// importProgress matches rows to the current catalog by slug. Rows whose
// slugs no longer resolve (volume renamed or removed since the export) are
// skipped, not treated as errors.
func importProgress(ctx context.Context, db *sql.DB, path string) (restored, skipped int, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	volumes, err := loadVolumeIDs(ctx, db)
	if err != nil {
		return 0, 0, err
	}

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := readHeader(r)
	if err != nil {
		return 0, 0, err
	}

	stmt, err := db.PrepareContext(ctx, `
		INSERT INTO progress (title_id, volume_id, page_index, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(title_id, volume_id) DO UPDATE SET
			page_index = excluded.page_index,
			updated_at = excluded.updated_at
	`)
	if err != nil {
		return 0, 0, err
	}
	defer stmt.Close()

	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return restored, skipped, err
		}
		if len(row) == 0 {
			continue
		}

		titleSlug := valueAt(header, row, "title_slug")
		volumeSlug := valueAt(header, row, "volume_slug")
		if titleSlug == "" || volumeSlug == "" {
			skipped++
			continue
		}

		ids, ok := volumes[slugKey{titleSlug, volumeSlug}]
		if !ok {
			log.Printf("skip %s/%s: not in catalog", titleSlug, volumeSlug)
			skipped++
			continue
		}

		pageIndex, err := strconv.Atoi(valueAt(header, row, "page_index"))
		if err != nil || pageIndex < 0 {
			log.Printf("skip %s/%s: bad page_index %q", titleSlug, volumeSlug, valueAt(header, row, "page_index"))
			skipped++
			continue
		}

		updatedAt, err := parseTime(valueAt(header, row, "updated_at"))
		if err != nil {
			return restored, skipped, fmt.Errorf("parse updated_at for %s/%s: %w", titleSlug, volumeSlug, err)
		}
		if !updatedAt.Valid {
			updatedAt = sql.NullTime{Time: time.Now().UTC(), Valid: true}
		}

		if _, err := stmt.ExecContext(ctx, ids.titleID, ids.volumeID, pageIndex, updatedAt.Time); err != nil {
			return restored, skipped, err
		}
		restored++
	}

	return restored, skipped, nil
}

type slugKey struct {
	titleSlug  string
	volumeSlug string
}

type volumeIDs struct {
	titleID  int64
	volumeID int64
}

func loadVolumeIDs(ctx context.Context, db *sql.DB) (map[slugKey]volumeIDs, error) {
	rows, err := db.QueryContext(ctx, `
        SELECT t.slug, v.slug, t.id, v.id
        FROM volumes v
        JOIN titles t ON t.id = v.title_id
    `)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[slugKey]volumeIDs)
	for rows.Next() {
		var key slugKey
		var ids volumeIDs
		if err := rows.Scan(&key.titleSlug, &key.volumeSlug, &ids.titleID, &ids.volumeID); err != nil {
			return nil, err
		}
		out[key] = ids
	}
	return out, rows.Err()
}

func readHeader(r *csv.Reader) (map[string]int, error) {
	row, err := r.Read()
	if err != nil {
		return nil, err
	}
	header := make(map[string]int, len(row))
	for idx, name := range row {
		header[strings.TrimSpace(strings.ToLower(name))] = idx
	}
	return header, nil
}

func valueAt(header map[string]int, row []string, key string) string {
	idx, ok := header[key]
	if !ok || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func parseTime(raw string) (sql.NullTime, error) {
	if raw == "" {
		return sql.NullTime{}, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return sql.NullTime{}, err
	}
	return sql.NullTime{Time: t, Valid: true}, nil
}
