package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voskpaul/clipwizard/internal/events"
	"github.com/voskpaul/clipwizard/internal/pipeline"
	"github.com/voskpaul/clipwizard/internal/storage"
	"github.com/voskpaul/clipwizard/internal/store"
	"github.com/voskpaul/clipwizard/internal/worker"
	"github.com/voskpaul/clipwizard/models"
)

type stubToolkit struct{}

func (stubToolkit) ProbeDuration(ctx context.Context, filePath string) (float64, error) {
	return 60, nil
}

func (stubToolkit) ExtractAudio(ctx context.Context, videoPath, audioPath string) error {
	return os.WriteFile(audioPath, make([]byte, 512), 0o644)
}

func (stubToolkit) CutClip(ctx context.Context, videoPath string, start, end float64, clipPath string) error {
	return os.WriteFile(clipPath, []byte("clip"), 0o644)
}

func (stubToolkit) CaptureThumbnail(ctx context.Context, videoPath string, at float64, thumbPath string) error {
	return os.WriteFile(thumbPath, []byte("thumb"), 0o644)
}

type stubTranscriber struct {
	gate chan struct{}
}

func (s *stubTranscriber) Transcribe(ctx context.Context, audioPath string) (models.TranscriptionData, error) {
	if s.gate != nil {
		select {
		case <-s.gate:
		case <-ctx.Done():
			return models.TranscriptionData{}, ctx.Err()
		}
	}
	return models.TranscriptionData{
		Text:     "hello",
		Segments: []models.TranscriptSegment{{StartTime: 0, EndTime: 60, Text: "hello"}},
	}, nil
}

type stubAnalyzer struct{}

func (stubAnalyzer) Analyze(ctx context.Context, transcript models.TranscriptionData, durationSeconds float64, opts models.RunOptions) (models.AnalysisResult, error) {
	return models.AnalysisResult{
		KeyMoments: []models.CandidateSegment{
			{StartTime: 5, EndTime: 25, Title: "Moment", Confidence: 0.9},
		},
		Summary:   "s",
		Sentiment: "neutral",
	}, nil
}

type testApp struct {
	app       *fiber.App
	store     *store.MemoryStore
	artifacts *storage.LocalStore
	trans     *stubTranscriber
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	tmp := t.TempDir()

	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	st := store.NewMemoryStore()
	artifacts, err := storage.NewLocalStore(filepath.Join(tmp, "artifacts"))
	require.NoError(t, err)

	bus := events.NewBus(log)
	trans := &stubTranscriber{}
	orch := pipeline.NewOrchestrator(st, artifacts, stubToolkit{}, trans, stubAnalyzer{}, bus, log, filepath.Join(tmp, "work"))

	dispatcher := worker.NewDispatcher(1, 8, log)
	dispatcher.Run()
	t.Cleanup(dispatcher.Stop)
	svc := pipeline.NewService(orch, dispatcher, st, log, time.Minute)

	app := fiber.New()
	h := NewApplicationHandler(log, st, artifacts, svc, bus)
	h.RegisterRoutes(app)

	return &testApp{app: app, store: st, artifacts: artifacts, trans: trans}
}

func (ta *testApp) seedVideo(t *testing.T) models.Video {
	t.Helper()
	ctx := context.Background()
	v := models.Video{
		ID:               uuid.New(),
		Title:            "seeded",
		OriginalFilename: "seed.mp4",
		Status:           models.VideoStatusUploaded,
	}
	v.StoragePath = fmt.Sprintf("sources/%s/seed.mp4", v.ID)
	require.NoError(t, ta.store.CreateVideo(ctx, &v))

	src := filepath.Join(t.TempDir(), "seed.mp4")
	require.NoError(t, os.WriteFile(src, []byte("video"), 0o644))
	require.NoError(t, ta.artifacts.Put(ctx, src, v.StoragePath, "video/mp4"))
	return v
}

func doJSON(t *testing.T, app *fiber.App, method, path string, body interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := app.Test(req, 10000)
	require.NoError(t, err)

	var parsed map[string]interface{}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &parsed))
	}
	return resp, parsed
}

func waitRunTerminal(t *testing.T, st *store.MemoryStore, runID uuid.UUID) models.ProcessingRun {
	t.Helper()
	var run models.ProcessingRun
	require.Eventually(t, func() bool {
		var err error
		run, err = st.GetRun(context.Background(), runID)
		return err == nil && run.State.Terminal()
	}, 5*time.Second, 10*time.Millisecond)
	return run
}

func TestHealth(t *testing.T) {
	ta := newTestApp(t)
	resp, body := doJSON(t, ta.app, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
}

func TestCreateVideo(t *testing.T) {
	ta := newTestApp(t)
	resp, body := doJSON(t, ta.app, http.MethodPost, "/api/v1/videos", map[string]interface{}{
		"title":    "  My video  ",
		"filename": "my.mp4",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	data := body["data"].(map[string]interface{})
	video := data["video"].(map[string]interface{})
	assert.Equal(t, "My video", video["title"])
	assert.Contains(t, video["storage_path"], "my.mp4")
}

func TestCreateVideoValidation(t *testing.T) {
	ta := newTestApp(t)
	resp, body := doJSON(t, ta.app, http.MethodPost, "/api/v1/videos", map[string]interface{}{
		"title": "no filename",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.NotEmpty(t, body["errors"])
}

func TestVideoStatusNotFound(t *testing.T) {
	ta := newTestApp(t)
	resp, _ := doJSON(t, ta.app, http.MethodGet, "/api/v1/videos/"+uuid.NewString()+"/status", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestVideoStatusBadID(t *testing.T) {
	ta := newTestApp(t)
	resp, _ := doJSON(t, ta.app, http.MethodGet, "/api/v1/videos/not-a-uuid/status", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestProcessVideoLifecycle(t *testing.T) {
	ta := newTestApp(t)
	v := ta.seedVideo(t)

	resp, body := doJSON(t, ta.app, http.MethodPost, "/api/v1/videos/"+v.ID.String()+"/process", map[string]interface{}{
		"tone":     "casual",
		"duration": 30,
	})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	data := body["data"].(map[string]interface{})
	runID, err := uuid.Parse(data["run_id"].(string))
	require.NoError(t, err)

	final := waitRunTerminal(t, ta.store, runID)
	assert.Equal(t, models.RunStateCompleted, final.State)

	// Status now reflects the finished run.
	resp, body = doJSON(t, ta.app, http.MethodGet, "/api/v1/videos/"+v.ID.String()+"/status", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	data = body["data"].(map[string]interface{})
	video := data["video"].(map[string]interface{})
	assert.Equal(t, models.VideoStatusCompleted, video["status"])
	assert.Equal(t, float64(100), video["processing_progress"])
	require.NotNil(t, data["latest_run"])
	assert.Equal(t, string(models.RunStateCompleted), data["state"])
	assert.Equal(t, float64(100), data["progress"])
	assert.Nil(t, data["error"])

	statusClips := data["clips"].([]interface{})
	require.Len(t, statusClips, 1)
	statusClip := statusClips[0].(map[string]interface{})
	assert.Equal(t, float64(20), statusClip["duration_seconds"])
	assert.NotEmpty(t, statusClip["url"])

	// Clips are listed with retrieval URLs.
	resp, body = doJSON(t, ta.app, http.MethodGet, "/api/v1/videos/"+v.ID.String()+"/clips", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	clips := body["data"].(map[string]interface{})["clips"].([]interface{})
	require.Len(t, clips, 1)
	clip := clips[0].(map[string]interface{})
	assert.NotEmpty(t, clip["url"])

	// Downloading bumps the counter.
	clipID := clip["id"].(string)
	resp, body = doJSON(t, ta.app, http.MethodPost, "/api/v1/clips/"+clipID+"/download", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	downloaded := body["data"].(map[string]interface{})["clip"].(map[string]interface{})
	assert.Equal(t, float64(1), downloaded["download_count"])
}

func TestProcessVideoConflictWhileActive(t *testing.T) {
	ta := newTestApp(t)
	ta.trans.gate = make(chan struct{})
	v := ta.seedVideo(t)

	resp, body := doJSON(t, ta.app, http.MethodPost, "/api/v1/videos/"+v.ID.String()+"/process", nil)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	runID, err := uuid.Parse(body["data"].(map[string]interface{})["run_id"].(string))
	require.NoError(t, err)

	resp, _ = doJSON(t, ta.app, http.MethodPost, "/api/v1/videos/"+v.ID.String()+"/process", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	close(ta.trans.gate)
	waitRunTerminal(t, ta.store, runID)
}

func TestProcessVideoNotFound(t *testing.T) {
	ta := newTestApp(t)
	resp, _ := doJSON(t, ta.app, http.MethodPost, "/api/v1/videos/"+uuid.NewString()+"/process", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGetRun(t *testing.T) {
	ta := newTestApp(t)
	v := ta.seedVideo(t)

	_, body := doJSON(t, ta.app, http.MethodPost, "/api/v1/videos/"+v.ID.String()+"/process", nil)
	runID := body["data"].(map[string]interface{})["run_id"].(string)

	resp, body := doJSON(t, ta.app, http.MethodGet, "/api/v1/runs/"+runID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	run := body["data"].(map[string]interface{})["run"].(map[string]interface{})
	assert.Equal(t, runID, run["id"])

	resp, _ = doJSON(t, ta.app, http.MethodGet, "/api/v1/runs/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCancelRun(t *testing.T) {
	ta := newTestApp(t)
	ta.trans.gate = make(chan struct{})
	defer close(ta.trans.gate)
	v := ta.seedVideo(t)

	_, body := doJSON(t, ta.app, http.MethodPost, "/api/v1/videos/"+v.ID.String()+"/process", nil)
	runID, err := uuid.Parse(body["data"].(map[string]interface{})["run_id"].(string))
	require.NoError(t, err)

	resp, _ := doJSON(t, ta.app, http.MethodPost, "/api/v1/runs/"+runID.String()+"/cancel", nil)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	final := waitRunTerminal(t, ta.store, runID)
	assert.Equal(t, models.RunStateFailed, final.State)
	require.NotNil(t, final.ErrorKind)
	assert.Equal(t, "cancelled", *final.ErrorKind)

	// Cancelling a finished run conflicts.
	resp, _ = doJSON(t, ta.app, http.MethodPost, "/api/v1/runs/"+runID.String()+"/cancel", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestCancelUnknownRun(t *testing.T) {
	ta := newTestApp(t)
	resp, _ := doJSON(t, ta.app, http.MethodPost, "/api/v1/runs/"+uuid.NewString()+"/cancel", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestListClipsVideoNotFound(t *testing.T) {
	ta := newTestApp(t)
	resp, _ := doJSON(t, ta.app, http.MethodGet, "/api/v1/videos/"+uuid.NewString()+"/clips", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
