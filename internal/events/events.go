// Package events fans library lifecycle events out to connected
// clients: reading devices follow the feed to refresh shelves when a
// scan lands or progress moves. The feed is read-only; catalog and
// progress state never leave the host database.
package events

import "time"

// Event types carried on the feed.
const (
	TypeScanStarted     = "scan.started"
	TypeScanCompleted   = "scan.completed"
	TypeScanFailed      = "scan.failed"
	TypeProgressUpdated = "progress.updated"
	TypeProgressCleared = "progress.cleared"
)

// ScanEvent covers the scan lifecycle.
type ScanEvent struct {
	Type    string    `json:"type"`
	Root    string    `json:"root,omitempty"`
	Titles  int       `json:"titles,omitempty"`
	Volumes int       `json:"volumes,omitempty"`
	TookMS  int64     `json:"took_ms,omitempty"`
	Error   string    `json:"error,omitempty"`
	At      time.Time `json:"at"`
}

func ScanStarted(root string) ScanEvent {
	return ScanEvent{Type: TypeScanStarted, Root: root, At: time.Now().UTC()}
}

func ScanCompleted(titles, volumes int, tookMS int64) ScanEvent {
	return ScanEvent{
		Type:    TypeScanCompleted,
		Titles:  titles,
		Volumes: volumes,
		TookMS:  tookMS,
		At:      time.Now().UTC(),
	}
}

func ScanFailed(root string, err error) ScanEvent {
	return ScanEvent{Type: TypeScanFailed, Root: root, Error: err.Error(), At: time.Now().UTC()}
}

// ProgressEvent reports a progress write or clear. A cleared whole
// title carries volume_id 0.
type ProgressEvent struct {
	Type      string    `json:"type"`
	TitleID   int64     `json:"title_id"`
	VolumeID  int64     `json:"volume_id"`
	PageIndex int       `json:"page_index"`
	At        time.Time `json:"at"`
}

func ProgressUpdated(titleID, volumeID int64, pageIndex int) ProgressEvent {
	return ProgressEvent{
		Type:      TypeProgressUpdated,
		TitleID:   titleID,
		VolumeID:  volumeID,
		PageIndex: pageIndex,
		At:        time.Now().UTC(),
	}
}

func ProgressCleared(titleID, volumeID int64) ProgressEvent {
	return ProgressEvent{
		Type:     TypeProgressCleared,
		TitleID:  titleID,
		VolumeID: volumeID,
		At:       time.Now().UTC(),
	}
}
