package scanner

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"comicshelf/internal/meta"
	"comicshelf/internal/shape"
	"comicshelf/pkg/utils"
)

type volumeCandidate struct {
	Slug      string
	Name      string
	Path      string
	SortIndex int
	PageCount int
}

type titleCandidate struct {
	Slug    string
	Name    string
	Path    string
	Volumes []volumeCandidate
}

// reconcile derives the candidate catalog from disk, then persists it.
// Derivation happens entirely before the transaction opens so the
// write lock never waits on archive or PDF I/O.
func (s *Scanner) reconcile(ctx context.Context, root string) (*Summary, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("read library root %s: %w", root, err)
	}

	var titles []titleCandidate
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		t, err := s.deriveTitle(filepath.Join(root, entry.Name()), entry.Name())
		if err != nil {
			return nil, err
		}
		titles = append(titles, t)
	}

	if err := s.persist(ctx, titles); err != nil {
		return nil, err
	}

	// Slug collisions collapse to one row, last writer wins; count what
	// the database actually holds.
	perTitle := make(map[string]int, len(titles))
	for _, t := range titles {
		seen := make(map[string]struct{}, len(t.Volumes))
		for _, v := range t.Volumes {
			seen[v.Slug] = struct{}{}
		}
		perTitle[t.Slug] = len(seen)
	}
	volumes := 0
	for _, n := range perTitle {
		volumes += n
	}
	return &Summary{Root: root, Titles: len(perTitle), Volumes: volumes}, nil
}

// deriveTitle walks one title directory. The slug always comes from
// the directory name; series.json may override the display name only.
func (s *Scanner) deriveTitle(dir, dirName string) (titleCandidate, error) {
	t := titleCandidate{
		Slug: utils.Slugify(dirName),
		Name: dirName,
		Path: dir,
	}
	if m := meta.Load(dir); m != nil && m.Name != "" {
		t.Name = m.Name
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return t, fmt.Errorf("read title %s: %w", dir, err)
	}

	type child struct {
		name  string
		isDir bool
	}
	var kept []child
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if !shape.IsVolumeCandidate(dir, e) {
			continue
		}
		kept = append(kept, child{name: e.Name(), isDir: e.IsDir()})
	}
	sort.SliceStable(kept, func(i, j int) bool {
		return strings.ToLower(kept[i].name) < strings.ToLower(kept[j].name)
	})

	for i, c := range kept {
		p := filepath.Join(dir, c.name)
		name := c.name
		if !c.isDir {
			name = strings.TrimSuffix(c.name, filepath.Ext(c.name))
		}
		t.Volumes = append(t.Volumes, volumeCandidate{
			Slug:      utils.Slugify(c.name),
			Name:      name,
			Path:      p,
			SortIndex: i,
			PageCount: s.Reader.Count(p).N,
		})
	}
	return t, nil
}

// persist applies the candidate catalog in one transaction: vanished
// titles go first (cascading their volumes and progress), then each
// title is upserted by slug and its volume set reconciled the same way.
func (s *Scanner) persist(ctx context.Context, titles []titleCandidate) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := deleteVanishedTitles(ctx, tx, titles); err != nil {
		return err
	}

	upsertVol, err := tx.PrepareContext(ctx, `
		INSERT INTO volumes (title_id, slug, name, path, sort_index, page_count)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(title_id, slug) DO UPDATE SET
		  name = excluded.name,
		  path = excluded.path,
		  sort_index = excluded.sort_index,
		  page_count = excluded.page_count
	`)
	if err != nil {
		return fmt.Errorf("prepare volume upsert: %w", err)
	}
	defer upsertVol.Close()

	for _, t := range titles {
		id, err := upsertTitle(ctx, tx, t)
		if err != nil {
			return err
		}
		if err := deleteVanishedVolumes(ctx, tx, id, t.Volumes); err != nil {
			return err
		}
		for _, v := range t.Volumes {
			if _, err := upsertVol.ExecContext(ctx, id, v.Slug, v.Name, v.Path, v.SortIndex, v.PageCount); err != nil {
				return fmt.Errorf("upsert volume %s/%s: %w", t.Slug, v.Slug, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func upsertTitle(ctx context.Context, tx *sql.Tx, t titleCandidate) (int64, error) {
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO titles (slug, name, path)
		VALUES (?, ?, ?)
		ON CONFLICT(slug) DO UPDATE SET
		  name = excluded.name,
		  path = excluded.path
	`, t.Slug, t.Name, t.Path); err != nil {
		return 0, fmt.Errorf("upsert title %s: %w", t.Slug, err)
	}

	var id int64
	if err := tx.QueryRowContext(ctx, `SELECT id FROM titles WHERE slug = ?`, t.Slug).Scan(&id); err != nil {
		return 0, fmt.Errorf("resolve title id for %s: %w", t.Slug, err)
	}
	return id, nil
}

func deleteVanishedTitles(ctx context.Context, tx *sql.Tx, titles []titleCandidate) error {
	keep := make(map[string]struct{}, len(titles))
	for _, t := range titles {
		keep[t.Slug] = struct{}{}
	}

	rows, err := tx.QueryContext(ctx, `SELECT id, slug FROM titles`)
	if err != nil {
		return fmt.Errorf("list titles: %w", err)
	}
	defer rows.Close()

	var stale []int64
	for rows.Next() {
		var (
			id   int64
			slug string
		)
		if err := rows.Scan(&id, &slug); err != nil {
			return fmt.Errorf("scan title row: %w", err)
		}
		if _, ok := keep[slug]; !ok {
			stale = append(stale, id)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("list titles: %w", err)
	}

	for _, id := range stale {
		if _, err := tx.ExecContext(ctx, `DELETE FROM titles WHERE id = ?`, id); err != nil {
			return fmt.Errorf("delete title %d: %w", id, err)
		}
	}
	return nil
}

func deleteVanishedVolumes(ctx context.Context, tx *sql.Tx, titleID int64, vols []volumeCandidate) error {
	keep := make(map[string]struct{}, len(vols))
	for _, v := range vols {
		keep[v.Slug] = struct{}{}
	}

	rows, err := tx.QueryContext(ctx, `SELECT id, slug FROM volumes WHERE title_id = ?`, titleID)
	if err != nil {
		return fmt.Errorf("list volumes for title %d: %w", titleID, err)
	}
	defer rows.Close()

	var stale []int64
	for rows.Next() {
		var (
			id   int64
			slug string
		)
		if err := rows.Scan(&id, &slug); err != nil {
			return fmt.Errorf("scan volume row: %w", err)
		}
		if _, ok := keep[slug]; !ok {
			stale = append(stale, id)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("list volumes for title %d: %w", titleID, err)
	}

	for _, id := range stale {
		if _, err := tx.ExecContext(ctx, `DELETE FROM volumes WHERE id = ?`, id); err != nil {
			return fmt.Errorf("delete volume %d: %w", id, err)
		}
	}
	return nil
}
