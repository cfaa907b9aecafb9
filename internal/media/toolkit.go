// Package media wraps the ffmpeg and ffprobe binaries for audio extraction,
// clip rendering, and thumbnail capture.
package media

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"

	"github.com/sirupsen/logrus"
)

// ErrNoAudioStream is returned when the source container carries no audio.
var ErrNoAudioStream = errors.New("container has no audio stream")

// Toolkit shells out to ffmpeg/ffprobe. All operations write new artifacts
// and never mutate their inputs.
type Toolkit struct {
	ffmpeg  string
	ffprobe string
	log     *logrus.Logger
}

// New creates a Toolkit. Empty paths fall back to binaries on PATH.
func New(ffmpegPath, ffprobePath string, log *logrus.Logger) *Toolkit {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &Toolkit{ffmpeg: ffmpegPath, ffprobe: ffprobePath, log: log}
}

// probeOutput is the subset of ffprobe JSON output we care about.
type probeOutput struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
	Streams []struct {
		CodecType string `json:"codec_type"`
	} `json:"streams"`
}

func (t *Toolkit) probe(ctx context.Context, filePath string) (probeOutput, error) {
	cmd := exec.CommandContext(ctx, t.ffprobe,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		filePath,
	)

	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return probeOutput{}, fmt.Errorf("ffprobe failed: %w\nstderr: %s", err, stderr.String())
	}
	return parseProbeOutput(out.Bytes())
}

func parseProbeOutput(b []byte) (probeOutput, error) {
	var po probeOutput
	if err := json.Unmarshal(b, &po); err != nil {
		return probeOutput{}, fmt.Errorf("unmarshal ffprobe output: %w", err)
	}
	return po, nil
}

func (po probeOutput) durationSeconds() (float64, error) {
	if po.Format.Duration == "" {
		return 0, fmt.Errorf("ffprobe output has no duration")
	}
	sec, err := strconv.ParseFloat(po.Format.Duration, 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", po.Format.Duration, err)
	}
	return sec, nil
}

func (po probeOutput) hasAudioStream() bool {
	for _, s := range po.Streams {
		if s.CodecType == "audio" {
			return true
		}
	}
	return false
}

// ProbeDuration returns the container duration in seconds.
func (t *Toolkit) ProbeDuration(ctx context.Context, filePath string) (float64, error) {
	po, err := t.probe(ctx, filePath)
	if err != nil {
		return 0, err
	}
	return po.durationSeconds()
}

// ExtractAudio writes a mono 16kHz WAV track next to the source, the format
// the transcription engine expects. Returns ErrNoAudioStream when the
// container carries no audio.
func (t *Toolkit) ExtractAudio(ctx context.Context, videoPath, audioPath string) error {
	po, err := t.probe(ctx, videoPath)
	if err != nil {
		return err
	}
	if !po.hasAudioStream() {
		return fmt.Errorf("%s: %w", videoPath, ErrNoAudioStream)
	}

	cmd := exec.CommandContext(ctx, t.ffmpeg, extractAudioArgs(videoPath, audioPath)...)
	b, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg extract audio: %w\n%s", err, string(b))
	}
	t.log.WithFields(logrus.Fields{"source": videoPath, "audio": audioPath}).Info("Extracted audio track")
	return nil
}

// CutClip renders the [start,end] span of the source into an independently
// playable mp4.
func (t *Toolkit) CutClip(ctx context.Context, videoPath string, start, end float64, clipPath string) error {
	cmd := exec.CommandContext(ctx, t.ffmpeg, cutClipArgs(videoPath, start, end, clipPath)...)
	b, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg cut clip: %w\n%s", err, string(b))
	}
	t.log.WithFields(logrus.Fields{
		"source": videoPath,
		"clip":   clipPath,
		"start":  start,
		"end":    end,
	}).Info("Rendered clip")
	return nil
}

// CaptureThumbnail grabs a single frame at the given offset.
func (t *Toolkit) CaptureThumbnail(ctx context.Context, videoPath string, at float64, thumbPath string) error {
	cmd := exec.CommandContext(ctx, t.ffmpeg, thumbnailArgs(videoPath, at, thumbPath)...)
	b, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg capture thumbnail: %w\n%s", err, string(b))
	}
	return nil
}

func extractAudioArgs(videoPath, audioPath string) []string {
	return []string{
		"-y",
		"-i", videoPath,
		"-vn",
		"-ac", "1",
		"-ar", "16000",
		"-f", "wav",
		audioPath,
	}
}

func cutClipArgs(videoPath string, start, end float64, clipPath string) []string {
	return []string{
		"-y",
		"-ss", fmtSeconds(start),
		"-to", fmtSeconds(end),
		"-i", videoPath,
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-crf", "23",
		"-c:a", "aac",
		"-b:a", "192k",
		clipPath,
	}
}

func thumbnailArgs(videoPath string, at float64, thumbPath string) []string {
	return []string{
		"-y",
		"-ss", fmtSeconds(at),
		"-i", videoPath,
		"-vframes", "1",
		"-q:v", "2",
		thumbPath,
	}
}

func fmtSeconds(sec float64) string {
	return strconv.FormatFloat(sec, 'f', 3, 64)
}
