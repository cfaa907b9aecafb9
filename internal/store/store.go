// Package store persists videos, processing runs, and clips. Two
// implementations exist: an in-memory store for tests and single-binary runs,
// and a PostgREST-backed store for the hosted deployment.
package store

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"

	"github.com/voskpaul/clipwizard/models"
)

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrRunAlreadyActive is returned by CreateRun when the video already has
	// a run in a non-terminal state.
	ErrRunAlreadyActive = errors.New("video already has an active processing run")

	// ErrRunFinished is returned when an update targets a run that already
	// reached a terminal state.
	ErrRunFinished = errors.New("processing run already finished")
)

// VideoStore persists source video records.
type VideoStore interface {
	CreateVideo(ctx context.Context, v *models.Video) error
	GetVideo(ctx context.Context, id uuid.UUID) (models.Video, error)
	ListVideos(ctx context.Context) ([]models.Video, error)
	UpdateVideoStatus(ctx context.Context, id uuid.UUID, status string, progress int, errorMessage *string) error
	SetVideoMediaInfo(ctx context.Context, id uuid.UUID, durationSeconds float64, format string) error
	SetVideoTranscription(ctx context.Context, id uuid.UUID, transcription json.RawMessage) error
}

// RunStore persists processing runs. CreateRun enforces the one-active-run
// invariant: at most one non-terminal run may exist per video at any time.
type RunStore interface {
	CreateRun(ctx context.Context, r *models.ProcessingRun) error
	GetRun(ctx context.Context, id uuid.UUID) (models.ProcessingRun, error)
	UpdateRun(ctx context.Context, r models.ProcessingRun) error
	LatestRunForVideo(ctx context.Context, videoID uuid.UUID) (models.ProcessingRun, error)
	ListUnfinishedRuns(ctx context.Context) ([]models.ProcessingRun, error)
}

// ClipStore persists finished clips.
type ClipStore interface {
	CreateClip(ctx context.Context, c *models.Clip) error
	GetClip(ctx context.Context, id uuid.UUID) (models.Clip, error)
	ListClipsByVideo(ctx context.Context, videoID uuid.UUID) ([]models.Clip, error)
	IncrementDownloadCount(ctx context.Context, id uuid.UUID) (int, error)
}

// Store is the full persistence surface the service depends on.
type Store interface {
	VideoStore
	RunStore
	ClipStore
}
