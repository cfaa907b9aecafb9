// Package transcribe is a client for an OpenAI-compatible speech-to-text
// endpoint (Whisper-style /audio/transcriptions).
package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/voskpaul/clipwizard/internal/pipeline"
	"github.com/voskpaul/clipwizard/models"
)

const defaultTimeout = 5 * time.Minute

// Client posts audio files to a transcription endpoint and normalizes the
// verbose JSON response into TranscriptionData.
type Client struct {
	baseURL string
	apiKey  string
	model   string
	http    *http.Client
	log     *logrus.Logger
}

// New builds a Client. baseURL is the API root, e.g.
// "https://api.groq.com/openai/v1".
func New(baseURL, apiKey, model string, log *logrus.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   model,
		http:    &http.Client{Timeout: defaultTimeout},
		log:     log,
	}
}

type verboseResponse struct {
	Text     string `json:"text"`
	Segments []struct {
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Text  string  `json:"text"`
	} `json:"segments"`
}

// Transcribe uploads the audio track and returns its transcript. Wraps
// pipeline.ErrEmptyAudio for empty inputs and
// pipeline.ErrTranscriptionUnavailable for transport and server failures.
func (c *Client) Transcribe(ctx context.Context, audioPath string) (models.TranscriptionData, error) {
	info, err := os.Stat(audioPath)
	if err != nil {
		return models.TranscriptionData{}, fmt.Errorf("stat audio file: %w", err)
	}
	if info.Size() == 0 {
		return models.TranscriptionData{}, pipeline.ErrEmptyAudio
	}

	body, contentType, err := c.buildRequestBody(audioPath)
	if err != nil {
		return models.TranscriptionData{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/audio/transcriptions", body)
	if err != nil {
		return models.TranscriptionData{}, fmt.Errorf("build transcription request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return models.TranscriptionData{}, fmt.Errorf("%w: %v", pipeline.ErrTranscriptionUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return models.TranscriptionData{}, fmt.Errorf("%w: status %d: %s", pipeline.ErrTranscriptionUnavailable, resp.StatusCode, string(b))
	}

	var vr verboseResponse
	if err := json.NewDecoder(resp.Body).Decode(&vr); err != nil {
		return models.TranscriptionData{}, fmt.Errorf("%w: decode response: %v", pipeline.ErrTranscriptionUnavailable, err)
	}

	data := models.TranscriptionData{Text: vr.Text}
	for _, s := range vr.Segments {
		data.Segments = append(data.Segments, models.TranscriptSegment{
			StartTime: s.Start,
			EndTime:   s.End,
			Text:      s.Text,
		})
	}
	normalizeSegments(data.Segments)

	c.log.WithFields(logrus.Fields{
		"audio":    filepath.Base(audioPath),
		"segments": len(data.Segments),
	}).Info("Transcription completed")
	return data, nil
}

func (c *Client) buildRequestBody(audioPath string) (*bytes.Buffer, string, error) {
	f, err := os.Open(audioPath)
	if err != nil {
		return nil, "", fmt.Errorf("open audio file: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return nil, "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, "", fmt.Errorf("copy audio into request: %w", err)
	}
	if err := w.WriteField("model", c.model); err != nil {
		return nil, "", fmt.Errorf("write model field: %w", err)
	}
	if err := w.WriteField("response_format", "verbose_json"); err != nil {
		return nil, "", fmt.Errorf("write response_format field: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("finalize multipart body: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}

// normalizeSegments sorts by start time and trims overlaps so downstream
// consumers can assume ordered, non-overlapping spans.
func normalizeSegments(segs []models.TranscriptSegment) {
	sort.Slice(segs, func(i, j int) bool { return segs[i].StartTime < segs[j].StartTime })
	for i := 1; i < len(segs); i++ {
		if segs[i].StartTime < segs[i-1].EndTime {
			segs[i].StartTime = segs[i-1].EndTime
		}
		if segs[i].EndTime < segs[i].StartTime {
			segs[i].EndTime = segs[i].StartTime
		}
	}
}
