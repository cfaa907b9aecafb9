package transcribe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voskpaul/clipwizard/internal/pipeline"
	"github.com/voskpaul/clipwizard/models"
)

func writeAudio(t *testing.T, size int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "audio.wav")
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0o644))
	return path
}

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func TestTranscribeSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/audio/transcriptions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "whisper-large-v3", r.FormValue("model"))
		assert.Equal(t, "verbose_json", r.FormValue("response_format"))
		_, _, err := r.FormFile("file")
		require.NoError(t, err)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"text": "hello world",
			"segments": [
				{"start": 10, "end": 20, "text": "world"},
				{"start": 0, "end": 12, "text": "hello"}
			]
		}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "test-key", "whisper-large-v3", testLogger())
	data, err := c.Transcribe(context.Background(), writeAudio(t, 2048))
	require.NoError(t, err)

	assert.Equal(t, "hello world", data.Text)
	require.Len(t, data.Segments, 2)
	// Segments come back sorted with overlaps trimmed.
	assert.Equal(t, 0.0, data.Segments[0].StartTime)
	assert.Equal(t, 12.0, data.Segments[1].StartTime)
	assert.Equal(t, 20.0, data.Segments[1].EndTime)
}

func TestTranscribeEmptyAudio(t *testing.T) {
	c := New("http://unused", "key", "model", testLogger())
	_, err := c.Transcribe(context.Background(), writeAudio(t, 0))
	assert.ErrorIs(t, err, pipeline.ErrEmptyAudio)
}

func TestTranscribeServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := New(srv.URL, "key", "model", testLogger())
	_, err := c.Transcribe(context.Background(), writeAudio(t, 2048))
	assert.ErrorIs(t, err, pipeline.ErrTranscriptionUnavailable)
}

func TestTranscribeConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	c := New(srv.URL, "key", "model", testLogger())
	_, err := c.Transcribe(context.Background(), writeAudio(t, 2048))
	assert.ErrorIs(t, err, pipeline.ErrTranscriptionUnavailable)
}

func TestTranscribeGarbageResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer srv.Close()

	c := New(srv.URL, "key", "model", testLogger())
	_, err := c.Transcribe(context.Background(), writeAudio(t, 2048))
	assert.ErrorIs(t, err, pipeline.ErrTranscriptionUnavailable)
}

func TestNormalizeSegmentsInvertedSpan(t *testing.T) {
	segs := []models.TranscriptSegment{
		{StartTime: 0, EndTime: 10},
		{StartTime: 4, EndTime: 6},
	}
	normalizeSegments(segs)
	// The overlapped span collapses to a zero-length marker, never inverts.
	assert.Equal(t, 10.0, segs[1].StartTime)
	assert.Equal(t, 10.0, segs[1].EndTime)
}
