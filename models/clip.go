package models

import (
	"time"

	"github.com/google/uuid"
)

// Clip represents one finished, independently playable output artifact.
// Immutable after creation except for the download counter, which is bumped
// by the download endpoint on behalf of external callers.
type Clip struct {
	ID            uuid.UUID  `json:"id"`
	VideoID       uuid.UUID  `json:"video_id"`
	RunID         uuid.UUID  `json:"run_id"`
	Title         string     `json:"title"`
	StartTime     float64    `json:"start_time"`
	EndTime       float64    `json:"end_time"`
	StoragePath   string     `json:"storage_path"`
	ThumbnailPath *string    `json:"thumbnail_path,omitempty"`
	Confidence    *float64   `json:"confidence,omitempty"`
	DownloadCount int        `json:"download_count"`
	CreatedAt     time.Time  `json:"created_at"`
}

// DurationSeconds is the playable length of the clip.
func (c Clip) DurationSeconds() float64 {
	return c.EndTime - c.StartTime
}
