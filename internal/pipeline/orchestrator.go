// Package pipeline drives a processing run through its stages: audio
// extraction, transcription, highlight analysis, and clip rendering. Run
// state is persisted after every transition so clients polling the store see
// the same picture as event subscribers.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/voskpaul/clipwizard/internal/events"
	"github.com/voskpaul/clipwizard/internal/storage"
	"github.com/voskpaul/clipwizard/internal/store"
	"github.com/voskpaul/clipwizard/models"
)

const (
	progressExtracting   = 10
	progressTranscribing = 30
	progressAnalyzing    = 70
	progressDone         = 100

	extractionAttempts    = 3
	transcriptionAttempts = 3
	analysisAttempts      = 2
	clipAttempts          = 3

	retryBackoff = 2 * time.Second
)

// Orchestrator executes one run at a time. It is stateless between runs; all
// run state lives in the store.
type Orchestrator struct {
	store       store.Store
	artifacts   storage.ArtifactStore
	toolkit     MediaToolkit
	transcriber Transcriber
	analyzer    Analyzer
	bus         *events.Bus
	log         *logrus.Logger
	workDir     string
	backoff     time.Duration
}

// NewOrchestrator wires the stage adapters together. workDir holds scratch
// files; each run gets its own subdirectory, removed when the run finishes.
func NewOrchestrator(st store.Store, artifacts storage.ArtifactStore, toolkit MediaToolkit, transcriber Transcriber, analyzer Analyzer, bus *events.Bus, log *logrus.Logger, workDir string) *Orchestrator {
	return &Orchestrator{
		store:       st,
		artifacts:   artifacts,
		toolkit:     toolkit,
		transcriber: transcriber,
		analyzer:    analyzer,
		bus:         bus,
		log:         log,
		workDir:     workDir,
		backoff:     retryBackoff,
	}
}

// Execute runs the full pipeline for run. Failures are persisted on the run
// record rather than returned; the only error conditions surfaced are ones
// that prevent even recording an outcome. wasCancelled distinguishes an
// operator cancel from a deadline when the context dies.
func (o *Orchestrator) Execute(ctx context.Context, run models.ProcessingRun, wasCancelled func() bool) {
	log := o.log.WithFields(logrus.Fields{"run_id": run.ID, "video_id": run.VideoID})

	video, err := o.store.GetVideo(ctx, run.VideoID)
	if err != nil {
		log.WithError(err).Error("Run aborted: source video missing")
		o.finishFailed(ctx, &run, KindVideoNotFound, err, events.JobTranscription, wasCancelled)
		return
	}

	runDir := filepath.Join(o.workDir, run.ID.String())
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		o.finishFailed(ctx, &run, KindExtractionFailed, err, events.JobTranscription, wasCancelled)
		return
	}
	defer os.RemoveAll(runDir)

	now := time.Now().UTC()
	run.StartedAt = &now

	// Stage 1: fetch source and extract the audio track.
	o.transition(ctx, &run, models.RunStateExtractingAudio, progressExtracting)
	o.publishJob(run, events.JobTranscription, events.JobStatusRunning, "")

	sourcePath := filepath.Join(runDir, "source"+filepath.Ext(video.OriginalFilename))
	audioPath := filepath.Join(runDir, "audio.wav")
	duration, err := o.extractAudio(ctx, video, sourcePath, audioPath)
	if err != nil {
		o.finishFailed(ctx, &run, KindExtractionFailed, err, events.JobTranscription, wasCancelled)
		return
	}

	// Stage 2: transcribe.
	o.transition(ctx, &run, models.RunStateTranscribing, progressTranscribing)

	transcript, err := o.transcribe(ctx, audioPath)
	if err != nil {
		o.finishFailed(ctx, &run, KindTranscriptionUnavailable, err, events.JobTranscription, wasCancelled)
		return
	}
	if raw, merr := json.Marshal(transcript); merr == nil {
		if serr := o.store.SetVideoTranscription(ctx, video.ID, raw); serr != nil {
			log.WithError(serr).Warn("Could not persist transcription")
		}
	}
	o.publishJob(run, events.JobTranscription, events.JobStatusCompleted, "")

	// Stage 3: analyze for highlights.
	o.transition(ctx, &run, models.RunStateAnalyzing, progressAnalyzing)
	o.publishJob(run, events.JobAnalysis, events.JobStatusRunning, "")

	analysis, err := o.analyze(ctx, transcript, duration, run.Options)
	if err != nil {
		o.finishFailed(ctx, &run, KindAnalysisUnavailable, err, events.JobAnalysis, wasCancelled)
		return
	}
	run.Summary = &analysis.Summary
	run.Tags = analysis.Tags
	run.Sentiment = &analysis.Sentiment
	o.publishJob(run, events.JobAnalysis, events.JobStatusCompleted, "")

	// Stage 4: cut clips and thumbnails.
	o.transition(ctx, &run, models.RunStateClipping, progressAnalyzing)
	o.publishJob(run, events.JobClipping, events.JobStatusRunning, "")

	o.cutClips(ctx, &run, video, sourcePath, runDir, duration, analysis.KeyMoments, wasCancelled)
}

func (o *Orchestrator) extractAudio(ctx context.Context, video models.Video, sourcePath, audioPath string) (float64, error) {
	if err := o.artifacts.Fetch(ctx, video.StoragePath, sourcePath); err != nil {
		return 0, fmt.Errorf("fetch source video: %w", err)
	}

	duration, err := o.toolkit.ProbeDuration(ctx, sourcePath)
	if err != nil {
		return 0, err
	}
	format := filepath.Ext(video.OriginalFilename)
	if serr := o.store.SetVideoMediaInfo(ctx, video.ID, duration, format); serr != nil {
		o.log.WithError(serr).WithField("video_id", video.ID).Warn("Could not persist media info")
	}

	err = o.withRetry(ctx, extractionAttempts, 0, func() error {
		return o.toolkit.ExtractAudio(ctx, sourcePath, audioPath)
	})
	if err != nil {
		return 0, err
	}

	info, err := os.Stat(audioPath)
	if err != nil {
		return 0, fmt.Errorf("stat extracted audio: %w", err)
	}
	// 44 bytes is a bare WAV header with no samples.
	if info.Size() <= 44 {
		return 0, ErrEmptyAudio
	}
	return duration, nil
}

func (o *Orchestrator) transcribe(ctx context.Context, audioPath string) (models.TranscriptionData, error) {
	var transcript models.TranscriptionData
	err := o.withRetry(ctx, transcriptionAttempts, o.backoff, func() error {
		var terr error
		transcript, terr = o.transcriber.Transcribe(ctx, audioPath)
		return terr
	})
	if err != nil {
		return models.TranscriptionData{}, err
	}
	if transcript.Text == "" && len(transcript.Segments) == 0 {
		return models.TranscriptionData{}, ErrEmptyTranscript
	}
	return transcript, nil
}

// analyze asks the analyzer for key moments and falls back to equal spans
// when it returns nothing cuttable. Only engine unavailability fails the run.
func (o *Orchestrator) analyze(ctx context.Context, transcript models.TranscriptionData, duration float64, opts models.RunOptions) (models.AnalysisResult, error) {
	var analysis models.AnalysisResult
	err := o.withRetry(ctx, analysisAttempts, o.backoff, func() error {
		var aerr error
		analysis, aerr = o.analyzer.Analyze(ctx, transcript, duration, opts)
		return aerr
	})
	if err != nil {
		return models.AnalysisResult{}, err
	}

	analysis.KeyMoments = sanitizeCandidates(analysis.KeyMoments, duration)
	if len(analysis.KeyMoments) == 0 {
		o.log.Warn("Analyzer returned no cuttable segments, using equal-span fallback")
		fb := fallbackAnalysis(duration, float64(opts.TargetClipSeconds))
		if analysis.Summary != "" {
			fb.Summary = analysis.Summary
		}
		return fb, nil
	}
	return analysis, nil
}

func (o *Orchestrator) cutClips(ctx context.Context, run *models.ProcessingRun, video models.Video, sourcePath, runDir string, durationSeconds float64, moments []models.CandidateSegment, wasCancelled func() bool) {
	log := o.log.WithFields(logrus.Fields{"run_id": run.ID, "video_id": run.VideoID})
	total := len(moments)

	for i, m := range moments {
		if ctx.Err() != nil {
			o.finishFailed(ctx, run, KindClipGenerationFailed, ctx.Err(), events.JobClipping, wasCancelled)
			return
		}

		if !validBounds(m.StartTime, m.EndTime, durationSeconds) {
			run.FailedSegments = append(run.FailedSegments, models.SegmentFailure{
				Title:        m.Title,
				StartTime:    m.StartTime,
				EndTime:      m.EndTime,
				ErrorKind:    string(KindInvalidSegmentBounds),
				ErrorMessage: fmt.Sprintf("segment [%0.2f, %0.2f] outside video bounds", m.StartTime, m.EndTime),
			})
			o.bumpClipProgress(ctx, run, i+1, total)
			continue
		}

		clipLocal := filepath.Join(runDir, fmt.Sprintf("clip-%d.mp4", i+1))
		err := o.withRetry(ctx, clipAttempts, 0, func() error {
			return o.toolkit.CutClip(ctx, sourcePath, m.StartTime, m.EndTime, clipLocal)
		})
		if err != nil {
			log.WithError(err).WithField("segment", m.Title).Error("Clip rendering failed")
			run.FailedSegments = append(run.FailedSegments, models.SegmentFailure{
				Title:        m.Title,
				StartTime:    m.StartTime,
				EndTime:      m.EndTime,
				ErrorKind:    string(classify(err, KindClipGenerationFailed)),
				ErrorMessage: err.Error(),
			})
			o.bumpClipProgress(ctx, run, i+1, total)
			continue
		}

		clipStorage := fmt.Sprintf("clips/%s/%s-%d.mp4", video.ID, run.ID, i+1)
		if err := o.artifacts.Put(ctx, clipLocal, clipStorage, "video/mp4"); err != nil {
			log.WithError(err).WithField("segment", m.Title).Error("Clip upload failed")
			run.FailedSegments = append(run.FailedSegments, models.SegmentFailure{
				Title:        m.Title,
				StartTime:    m.StartTime,
				EndTime:      m.EndTime,
				ErrorKind:    string(KindClipGenerationFailed),
				ErrorMessage: err.Error(),
			})
			o.bumpClipProgress(ctx, run, i+1, total)
			continue
		}

		// Thumbnail failures do not fail the segment.
		var thumbStorage *string
		thumbLocal := filepath.Join(runDir, fmt.Sprintf("thumb-%d.jpg", i+1))
		mid := m.StartTime + (m.EndTime-m.StartTime)/2
		if terr := o.toolkit.CaptureThumbnail(ctx, sourcePath, mid, thumbLocal); terr != nil {
			log.WithError(terr).WithField("segment", m.Title).Warn("Thumbnail capture failed")
		} else {
			path := fmt.Sprintf("thumbnails/%s/%s-%d.jpg", video.ID, run.ID, i+1)
			if uerr := o.artifacts.Put(ctx, thumbLocal, path, "image/jpeg"); uerr != nil {
				log.WithError(uerr).WithField("segment", m.Title).Warn("Thumbnail upload failed")
			} else {
				thumbStorage = &path
			}
		}

		confidence := m.Confidence
		clip := models.Clip{
			VideoID:       video.ID,
			RunID:         run.ID,
			Title:         m.Title,
			StartTime:     m.StartTime,
			EndTime:       m.EndTime,
			StoragePath:   clipStorage,
			ThumbnailPath: thumbStorage,
			Confidence:    &confidence,
		}
		if cerr := o.store.CreateClip(ctx, &clip); cerr != nil {
			log.WithError(cerr).Error("Could not persist clip record")
			run.FailedSegments = append(run.FailedSegments, models.SegmentFailure{
				Title:        m.Title,
				StartTime:    m.StartTime,
				EndTime:      m.EndTime,
				ErrorKind:    string(KindClipGenerationFailed),
				ErrorMessage: cerr.Error(),
			})
		} else {
			run.ClipIDs = append(run.ClipIDs, clip.ID)
		}
		o.bumpClipProgress(ctx, run, i+1, total)
	}

	switch {
	case len(run.ClipIDs) == 0:
		err := fmt.Errorf("no clips could be generated from %d segments", total)
		o.finishFailed(ctx, run, KindClipGenerationFailed, err, events.JobClipping, wasCancelled)
	case len(run.FailedSegments) > 0:
		// The job-completed event goes out first so the terminal video event
		// is the last thing a subscriber sees, matching the failure path.
		o.publishJob(*run, events.JobClipping, events.JobStatusCompleted, "")
		o.finishTerminal(ctx, run, models.RunStatePartiallyCompleted)
	default:
		o.publishJob(*run, events.JobClipping, events.JobStatusCompleted, "")
		o.finishTerminal(ctx, run, models.RunStateCompleted)
	}
}

// bumpClipProgress maps per-segment completion onto the 70..100 band.
func (o *Orchestrator) bumpClipProgress(ctx context.Context, run *models.ProcessingRun, done, total int) {
	if total == 0 {
		return
	}
	p := progressAnalyzing + (progressDone-progressAnalyzing)*done/total
	if p <= run.Progress {
		return
	}
	run.Progress = p
	if err := o.store.UpdateRun(ctx, *run); err != nil {
		o.log.WithError(err).WithField("run_id", run.ID).Warn("Could not persist clip progress")
	}
	if err := o.store.UpdateVideoStatus(ctx, run.VideoID, models.VideoStatusProcessing, p, nil); err != nil {
		o.log.WithError(err).WithField("video_id", run.VideoID).Warn("Could not persist video progress")
	}
	o.publishVideo(*run, models.VideoStatusProcessing, "")
}

// transition moves the run to a non-terminal state and fans the update out.
func (o *Orchestrator) transition(ctx context.Context, run *models.ProcessingRun, state models.RunState, progress int) {
	run.State = state
	if progress > run.Progress {
		run.Progress = progress
	}
	if err := o.store.UpdateRun(ctx, *run); err != nil {
		o.log.WithError(err).WithField("run_id", run.ID).Warn("Could not persist run transition")
	}
	if err := o.store.UpdateVideoStatus(ctx, run.VideoID, models.VideoStatusProcessing, run.Progress, nil); err != nil {
		o.log.WithError(err).WithField("video_id", run.VideoID).Warn("Could not persist video status")
	}
	o.publishVideo(*run, models.VideoStatusProcessing, "")
}

func (o *Orchestrator) finishTerminal(ctx context.Context, run *models.ProcessingRun, state models.RunState) {
	now := time.Now().UTC()
	run.State = state
	run.Progress = progressDone
	run.CompletedAt = &now
	if err := o.store.UpdateRun(ctx, *run); err != nil {
		o.log.WithError(err).WithField("run_id", run.ID).Error("Could not persist terminal run state")
	}
	if err := o.store.UpdateVideoStatus(ctx, run.VideoID, models.VideoStatusCompleted, progressDone, nil); err != nil {
		o.log.WithError(err).WithField("video_id", run.VideoID).Error("Could not persist video completion")
	}
	o.publishVideo(*run, models.VideoStatusCompleted, "")
	o.log.WithFields(logrus.Fields{
		"run_id":          run.ID,
		"state":           state,
		"clips":           len(run.ClipIDs),
		"failed_segments": len(run.FailedSegments),
	}).Info("Run finished")
}

// finishFailed records the failure on the run and the video. Cancellation and
// deadline are reclassified here so one code path handles all endings.
func (o *Orchestrator) finishFailed(ctx context.Context, run *models.ProcessingRun, fallback ErrorKind, cause error, jobType events.JobType, wasCancelled func() bool) {
	kind := classify(cause, fallback)
	if kind == KindCancelled || kind == KindTimeout || ctx.Err() != nil {
		if wasCancelled != nil && wasCancelled() {
			kind = KindCancelled
		} else if errors.Is(cause, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			kind = KindTimeout
		}
	}

	now := time.Now().UTC()
	msg := cause.Error()
	kindStr := string(kind)
	run.State = models.RunStateFailed
	run.ErrorKind = &kindStr
	run.ErrorMessage = &msg
	run.CompletedAt = &now

	// The run context may already be dead; persistence must still happen.
	persistCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := o.store.UpdateRun(persistCtx, *run); err != nil {
		o.log.WithError(err).WithField("run_id", run.ID).Error("Could not persist failed run state")
	}
	if err := o.store.UpdateVideoStatus(persistCtx, run.VideoID, models.VideoStatusFailed, run.Progress, &msg); err != nil {
		o.log.WithError(err).WithField("video_id", run.VideoID).Error("Could not persist video failure")
	}

	o.publishJob(*run, jobType, events.JobStatusFailed, msg)
	o.publishVideo(*run, models.VideoStatusFailed, msg)
	o.log.WithFields(logrus.Fields{"run_id": run.ID, "kind": kind}).WithError(cause).Error("Run failed")
}

func (o *Orchestrator) publishVideo(run models.ProcessingRun, status, errMsg string) {
	o.bus.Publish(events.Event{
		VideoID:      run.VideoID,
		RunID:        run.ID,
		Kind:         events.KindVideo,
		Status:       status,
		Progress:     run.Progress,
		ErrorMessage: errMsg,
	})
}

func (o *Orchestrator) publishJob(run models.ProcessingRun, jobType events.JobType, status, errMsg string) {
	o.bus.Publish(events.Event{
		VideoID:      run.VideoID,
		RunID:        run.ID,
		Kind:         events.KindJob,
		Status:       status,
		Progress:     run.Progress,
		JobType:      jobType,
		ErrorMessage: errMsg,
	})
}

// withRetry runs op up to attempts times. A zero backoff retries
// immediately; otherwise the wait doubles after each attempt.
func (o *Orchestrator) withRetry(ctx context.Context, attempts int, backoff time.Duration, op func() error) error {
	var err error
	wait := backoff
	for i := 0; i < attempts; i++ {
		if err = op(); err == nil {
			return nil
		}
		if !retryable(err) || i == attempts-1 {
			return err
		}
		o.log.WithError(err).WithField("attempt", i+1).Warn("Stage attempt failed, retrying")
		if wait > 0 {
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return ctx.Err()
			}
			wait *= 2
		}
	}
	return err
}
