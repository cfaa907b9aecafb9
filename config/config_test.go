package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PORT", "STORAGE_BACKEND", "LOCAL_STORAGE_ROOT", "WORK_DIR",
		"SUPABASE_URL", "SUPABASE_SERVICE_KEY", "STORAGE_BUCKET",
		"FFMPEG_PATH", "FFPROBE_PATH", "TRANSCRIBE_BASE_URL", "TRANSCRIBE_MODEL",
		"GROQ_API_KEY", "GROQ_MODEL", "WORKERS", "QUEUE_SIZE", "RUN_TIMEOUT",
		"LOG_LEVEL", "LOG_JSON",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("STORAGE_BACKEND", "local")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "local", cfg.StorageBackend)
	assert.Equal(t, "whisper-large-v3", cfg.TranscribeModel)
	assert.Equal(t, "llama-3.3-70b-versatile", cfg.GroqModel)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, 64, cfg.QueueSize)
	assert.Equal(t, 15*time.Minute, cfg.RunTimeout)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("STORAGE_BACKEND", "local")
	t.Setenv("PORT", "9999")
	t.Setenv("WORKERS", "8")
	t.Setenv("RUN_TIMEOUT", "30m")
	t.Setenv("LOG_JSON", "true")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "9999", cfg.Port)
	assert.Equal(t, 8, cfg.Workers)
	assert.Equal(t, 30*time.Minute, cfg.RunTimeout)
	assert.True(t, cfg.LogJSON)
}

func TestLoadYAMLFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"storage_backend: local\nport: \"7070\"\nworkers: 2\n",
	), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "7070", cfg.Port)
	assert.Equal(t, 2, cfg.Workers)
}

func TestLoadEnvBeatsYAML(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"storage_backend: local\nport: \"7070\"\n",
	), 0o644))
	t.Setenv("PORT", "6060")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "6060", cfg.Port)
}

func TestLoadSupabaseRequiresCredentials(t *testing.T) {
	clearEnv(t)
	t.Setenv("STORAGE_BACKEND", "supabase")

	_, err := Load("")
	assert.Error(t, err)
}

func TestLoadUnknownBackend(t *testing.T) {
	clearEnv(t)
	t.Setenv("STORAGE_BACKEND", "s3")

	_, err := Load("")
	assert.Error(t, err)
}

func TestLoadMissingFileIsOK(t *testing.T) {
	clearEnv(t)
	t.Setenv("STORAGE_BACKEND", "local")

	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	assert.NoError(t, err)
}
