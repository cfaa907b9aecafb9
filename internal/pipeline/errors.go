package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/voskpaul/clipwizard/internal/media"
)

// ErrorKind is the stable failure vocabulary persisted on runs and failed
// segments. API clients branch on these values, so they never change.
type ErrorKind string

const (
	KindUnsupportedMedia         ErrorKind = "unsupported_media"
	KindExtractionFailed         ErrorKind = "extraction_failed"
	KindEmptyAudio               ErrorKind = "empty_audio"
	KindTranscriptionUnavailable ErrorKind = "transcription_unavailable"
	KindEmptyTranscript          ErrorKind = "empty_transcript"
	KindAnalysisUnavailable      ErrorKind = "analysis_unavailable"
	KindNoValidSegments          ErrorKind = "no_valid_segments"
	KindInvalidSegmentBounds     ErrorKind = "invalid_segment_bounds"
	KindClipGenerationFailed     ErrorKind = "clip_generation_failed"
	KindRunAlreadyActive         ErrorKind = "run_already_active"
	KindVideoNotFound            ErrorKind = "video_not_found"
	KindCancelled                ErrorKind = "cancelled"
	KindTimeout                  ErrorKind = "timeout"
)

// Sentinel errors stage adapters wrap so the orchestrator can classify
// failures without knowing adapter internals.
var (
	ErrEmptyAudio               = errors.New("extracted audio track is empty")
	ErrTranscriptionUnavailable = errors.New("transcription engine unavailable")
	ErrEmptyTranscript          = errors.New("transcript contains no usable text")
	ErrAnalysisUnavailable      = errors.New("content analyzer unavailable")
)

// StageError ties a failure to its taxonomy kind.
type StageError struct {
	Kind ErrorKind
	Err  error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

func stageErr(kind ErrorKind, err error) *StageError {
	return &StageError{Kind: kind, Err: err}
}

// classify maps an arbitrary stage failure to its taxonomy kind, with
// fallback as the kind for errors the sentinels do not cover.
func classify(err error, fallback ErrorKind) ErrorKind {
	var se *StageError
	if errors.As(err, &se) {
		return se.Kind
	}
	switch {
	case errors.Is(err, media.ErrNoAudioStream):
		return KindUnsupportedMedia
	case errors.Is(err, ErrEmptyAudio):
		return KindEmptyAudio
	case errors.Is(err, ErrTranscriptionUnavailable):
		return KindTranscriptionUnavailable
	case errors.Is(err, ErrEmptyTranscript):
		return KindEmptyTranscript
	case errors.Is(err, ErrAnalysisUnavailable):
		return KindAnalysisUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, context.Canceled):
		return KindCancelled
	}
	return fallback
}

// retryable reports whether retrying the stage could possibly help. Media
// shape problems and cancellation are permanent for a given source.
func retryable(err error) bool {
	switch {
	case errors.Is(err, media.ErrNoAudioStream),
		errors.Is(err, ErrEmptyAudio),
		errors.Is(err, ErrEmptyTranscript),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return false
	}
	return true
}
