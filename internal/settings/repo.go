package settings

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Keys the rest of the system stores here.
const (
	KeyLibraryRoot      = "library_root"
	KeyScanLastStarted  = "scan_last_started"
	KeyScanLastFinished = "scan_last_completed"
	KeyScanDurationMS   = "scan_duration_ms"
	KeyScanLastError    = "scan_last_error"
)

type Repo struct {
	DB *sql.DB
}

func NewRepo(db *sql.DB) *Repo {
	return &Repo{DB: db}
}

// Get returns the stored value for key; the bool is false when the key
// is not set.
func (r *Repo) Get(ctx context.Context, key string) (string, bool, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key)

	var v string
	if err := row.Scan(&v); err != nil {
		if err == sql.ErrNoRows {
			return "", false, nil
		}
		return "", false, fmt.Errorf("get setting %s: %w", key, err)
	}
	return v, true, nil
}

func (r *Repo) Set(ctx context.Context, key, value string) error {
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO settings (key, value)
		VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("set setting %s: %w", key, err)
	}
	return nil
}

func (r *Repo) Delete(ctx context.Context, key string) error {
	if _, err := r.DB.ExecContext(ctx, `DELETE FROM settings WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete setting %s: %w", key, err)
	}
	return nil
}

func (r *Repo) All(ctx context.Context) (map[string]string, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT key, value FROM settings ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("list settings: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("scan setting row: %w", err)
		}
		out[k] = v
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("settings rows: %w", err)
	}
	return out, nil
}

// RecordScanStarted stamps the start of a scan. Called for every scan,
// successful or not.
func (r *Repo) RecordScanStarted(ctx context.Context, at time.Time) error {
	return r.Set(ctx, KeyScanLastStarted, at.UTC().Format(time.RFC3339))
}

// RecordScanResult stamps completion time and duration, and keeps the
// error text visible to operators until a later scan succeeds.
func (r *Repo) RecordScanResult(ctx context.Context, finished time.Time, took time.Duration, scanErr error) error {
	if err := r.Set(ctx, KeyScanLastFinished, finished.UTC().Format(time.RFC3339)); err != nil {
		return err
	}
	if err := r.Set(ctx, KeyScanDurationMS, strconv.FormatInt(took.Milliseconds(), 10)); err != nil {
		return err
	}
	if scanErr != nil {
		return r.Set(ctx, KeyScanLastError, scanErr.Error())
	}
	return r.Delete(ctx, KeyScanLastError)
}

// Provenance records which layer supplied the library root.
type Provenance string

const (
	FromSetting Provenance = "setting"
	FromEnv     Provenance = "env"
	FromDefault Provenance = "default"
)

const DefaultLibraryRoot = "comics"

// ResolveLibraryRoot returns the active library root and where it came
// from: persisted setting first, then environment, then the built-in
// default. lookup is an environment snapshot, os.LookupEnv in
// production.
func ResolveLibraryRoot(ctx context.Context, repo *Repo, lookup func(string) (string, bool)) (string, Provenance, error) {
	v, ok, err := repo.Get(ctx, KeyLibraryRoot)
	if err != nil {
		return "", "", err
	}
	if ok && strings.TrimSpace(v) != "" {
		return v, FromSetting, nil
	}

	if lookup != nil {
		if v, ok := lookup("COMICSHELF_LIBRARY_ROOT"); ok && strings.TrimSpace(v) != "" {
			return v, FromEnv, nil
		}
	}

	return DefaultLibraryRoot, FromDefault, nil
}
