// Package scanner reconciles the on-disk library with the catalog
// tables. A scan derives every title and volume from the filesystem
// first, then applies the whole result in one transaction, so readers
// only ever observe the previous catalog or the new one.
package scanner

import (
	"context"
	"database/sql"
	"log"
	"sync"
	"time"

	"comicshelf/internal/events"
	"comicshelf/internal/notify"
	"comicshelf/internal/reader"
	"comicshelf/internal/settings"
)

// Scanner owns catalog synchronization. Hub and Notifier are optional;
// with both nil a scan runs silently.
type Scanner struct {
	DB       *sql.DB
	Reader   *reader.Reader
	Settings *settings.Repo
	Hub      *events.Hub
	Notifier *notify.Server

	mu sync.Mutex
}

func New(db *sql.DB, rd *reader.Reader, st *settings.Repo) *Scanner {
	return &Scanner{DB: db, Reader: rd, Settings: st}
}

// Summary of one completed scan.
type Summary struct {
	Root    string `json:"root"`
	Titles  int    `json:"titles"`
	Volumes int    `json:"volumes"`
	TookMS  int64  `json:"took_ms"`
}

// Run executes a full scan of root. Concurrent calls serialize; each
// caller gets a complete scan of its own. Outcome and timing land in
// the settings table whether the scan succeeds or not.
func (s *Scanner) Run(ctx context.Context, root string) (*Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	started := time.Now()
	log.Printf("[scanner] scanning %s", root)
	if s.Settings != nil {
		if err := s.Settings.RecordScanStarted(ctx, started); err != nil {
			log.Printf("[scanner] record start: %v", err)
		}
	}
	if s.Hub != nil {
		go s.Hub.BroadcastJSON(events.ScanStarted(root))
	}

	summary, err := s.reconcile(ctx, root)
	took := time.Since(started)

	if s.Settings != nil {
		if rerr := s.Settings.RecordScanResult(ctx, time.Now(), took, err); rerr != nil {
			log.Printf("[scanner] record result: %v", rerr)
		}
	}
	if err != nil {
		log.Printf("[scanner] scan failed: %v", err)
		if s.Hub != nil {
			go s.Hub.BroadcastJSON(events.ScanFailed(root, err))
		}
		return nil, err
	}

	summary.TookMS = took.Milliseconds()
	log.Printf("[scanner] scan complete: %d titles, %d volumes in %s",
		summary.Titles, summary.Volumes, took.Round(time.Millisecond))
	if s.Hub != nil {
		go s.Hub.BroadcastJSON(events.ScanCompleted(summary.Titles, summary.Volumes, summary.TookMS))
	}
	if s.Notifier != nil {
		s.Notifier.BroadcastLibraryUpdated(summary.Titles, summary.Volumes)
	}
	return summary, nil
}
