package pipeline

import (
	"context"

	"github.com/voskpaul/clipwizard/models"
)

// MediaToolkit is the ffmpeg surface the pipeline needs. Satisfied by
// media.Toolkit in production and by fakes in tests.
type MediaToolkit interface {
	ProbeDuration(ctx context.Context, filePath string) (float64, error)
	ExtractAudio(ctx context.Context, videoPath, audioPath string) error
	CutClip(ctx context.Context, videoPath string, start, end float64, clipPath string) error
	CaptureThumbnail(ctx context.Context, videoPath string, at float64, thumbPath string) error
}

// Transcriber turns an audio track into a timestamped transcript. Wraps
// ErrEmptyAudio, ErrEmptyTranscript, and ErrTranscriptionUnavailable as
// appropriate.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (models.TranscriptionData, error)
}

// Analyzer proposes highlight segments for a transcript. durationSeconds is
// the full length of the source video; candidates must fit inside it. Wraps
// ErrAnalysisUnavailable when the engine cannot be reached or returns
// garbage.
type Analyzer interface {
	Analyze(ctx context.Context, transcript models.TranscriptionData, durationSeconds float64, opts models.RunOptions) (models.AnalysisResult, error)
}
