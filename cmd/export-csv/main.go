package main

import (
	"context"
	"database/sql"
	"encoding/csv"
	"flag"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"comicshelf/pkg/database"
	"comicshelf/pkg/utils"
)

func main() {
	var (
		catalogOut  = flag.String("catalog", "data/catalog.csv", "output CSV path for the catalog")
		progressOut = flag.String("progress", "data/progress.csv", "output CSV path for reading progress")
	)
	flag.Parse()

	utils.LoadDotEnv()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db := database.MustOpen(database.DefaultConfig())
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatalf("db migrate failed: %v", err)
	}

	if err := exportCatalog(ctx, db, *catalogOut); err != nil {
		log.Fatalf("export catalog failed: %v", err)
	}
	if err := exportProgress(ctx, db, *progressOut); err != nil {
		log.Fatalf("export progress failed: %v", err)
	}

	log.Printf("✅ exported catalog to %s and progress to %s", *catalogOut, *progressOut)
}

// exportCatalog writes one row per volume with its title alongside. The
// catalog is rebuilt from disk by the scanner, so this is a snapshot for
// inspection, not a restore source.
func exportCatalog(ctx context.Context, db *sql.DB, outPath string) error {
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return err
	}

	f, err := os.Create(outPath)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"title_slug", "title_name", "volume_slug", "volume_name", "path", "sort_index", "page_count"}); err != nil {
		return err
	}

	rows, err := db.QueryContext(ctx, `
        SELECT t.slug, t.name, v.slug, v.name, v.path, v.sort_index, v.page_count
        FROM volumes v
        JOIN titles t ON t.id = v.title_id
        ORDER BY t.slug, v.sort_index, v.slug
    `)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			titleSlug  string
			titleName  string
			volumeSlug string
			volumeName string
			path       string
			sortIndex  int64
			pageCount  int64
		)

		if err := rows.Scan(&titleSlug, &titleName, &volumeSlug, &volumeName, &path, &sortIndex, &pageCount); err != nil {
			return err
		}

		if err := w.Write([]string{
			titleSlug,
			titleName,
			volumeSlug,
			volumeName,
			path,
			strconv.FormatInt(sortIndex, 10),
			strconv.FormatInt(pageCount, 10),
		}); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	w.Flush()
	return w.Error()
}

// exportProgress keys rows by slug rather than id so they can be matched
// back up after a rescan has reassigned ids.
func exportProgress(ctx context.Context, db *sql.DB, outPath string) error {
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return err
	}

	f, err := os.Create(outPath)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"title_slug", "volume_slug", "page_index", "updated_at"}); err != nil {
		return err
	}

	rows, err := db.QueryContext(ctx, `
        SELECT t.slug, v.slug, p.page_index, p.updated_at
        FROM progress p
        JOIN titles t ON t.id = p.title_id
        JOIN volumes v ON v.id = p.volume_id
        ORDER BY p.updated_at DESC
    `)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			titleSlug  string
			volumeSlug string
			pageIndex  int64
			updatedAt  sql.NullTime
		)

		if err := rows.Scan(&titleSlug, &volumeSlug, &pageIndex, &updatedAt); err != nil {
			return err
		}

		updated := ""
		if updatedAt.Valid {
			updated = updatedAt.Time.UTC().Format(time.RFC3339)
		}

		if err := w.Write([]string{
			titleSlug,
			volumeSlug,
			strconv.FormatInt(pageIndex, 10),
			updated,
		}); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	w.Flush()
	return w.Error()
}
