package models

import (
	"time"

	"github.com/google/uuid"
)

// RunState is the orchestrator state of a processing run.
type RunState string

const (
	RunStateQueued             RunState = "queued"
	RunStateExtractingAudio    RunState = "extracting_audio"
	RunStateTranscribing       RunState = "transcribing"
	RunStateAnalyzing          RunState = "analyzing"
	RunStateClipping           RunState = "clipping"
	RunStateCompleted          RunState = "completed"
	RunStatePartiallyCompleted RunState = "partially_completed"
	RunStateFailed             RunState = "failed"
)

// Terminal reports whether the state admits no further transitions.
func (s RunState) Terminal() bool {
	switch s {
	case RunStateCompleted, RunStatePartiallyCompleted, RunStateFailed:
		return true
	}
	return false
}

// RunOptions are the caller-supplied knobs for one processing run.
type RunOptions struct {
	Tone              string `json:"tone,omitempty"`
	TargetClipSeconds int    `json:"duration,omitempty"`
	CustomPrompt      string `json:"custom_prompt,omitempty"`
}

// SegmentFailure records one highlight segment that could not be clipped.
type SegmentFailure struct {
	Title        string  `json:"title"`
	StartTime    float64 `json:"start_time"`
	EndTime      float64 `json:"end_time"`
	ErrorKind    string  `json:"error_kind"`
	ErrorMessage string  `json:"error_message"`
}

// ProcessingRun represents one execution of the pipeline against a Video.
// Once the run reaches a terminal state the record is never mutated again.
type ProcessingRun struct {
	ID             uuid.UUID        `json:"id"`
	VideoID        uuid.UUID        `json:"video_id"`
	Options        RunOptions       `json:"options"`
	State          RunState         `json:"state"`
	Progress       int              `json:"progress"`
	ErrorKind      *string          `json:"error_kind,omitempty"`
	ErrorMessage   *string          `json:"error_message,omitempty"`
	Summary        *string          `json:"summary,omitempty"`
	Tags           []string         `json:"tags,omitempty"`
	Sentiment      *string          `json:"sentiment,omitempty"`
	ClipIDs        []uuid.UUID      `json:"clip_ids,omitempty"`
	FailedSegments []SegmentFailure `json:"failed_segments,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
	StartedAt      *time.Time       `json:"started_at,omitempty"`
	CompletedAt    *time.Time       `json:"completed_at,omitempty"`
}
