// Package config loads service configuration from an optional YAML file,
// a .env file, and environment variables, in increasing precedence.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is everything the service needs to run.
type Config struct {
	Port string `yaml:"port"`

	// Storage selects where media artifacts live: "supabase" or "local".
	StorageBackend   string `yaml:"storage_backend"`
	LocalStorageRoot string `yaml:"local_storage_root"`
	WorkDir          string `yaml:"work_dir"`

	SupabaseURL        string `yaml:"supabase_url"`
	SupabaseServiceKey string `yaml:"-"`
	StorageBucket      string `yaml:"storage_bucket"`

	FFmpegPath  string `yaml:"ffmpeg_path"`
	FFprobePath string `yaml:"ffprobe_path"`

	TranscribeBaseURL string `yaml:"transcribe_base_url"`
	TranscribeModel   string `yaml:"transcribe_model"`
	GroqAPIKey        string `yaml:"-"`
	GroqModel         string `yaml:"groq_model"`

	Workers    int           `yaml:"workers"`
	QueueSize  int           `yaml:"queue_size"`
	RunTimeout time.Duration `yaml:"run_timeout"`

	LogLevel string `yaml:"log_level"`
	LogJSON  bool   `yaml:"log_json"`
}

// Load reads configPath (may be empty or missing), then .env, then the
// environment. Returns a validated Config with defaults applied.
func Load(configPath string) (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if configPath != "" {
		data, err := os.ReadFile(configPath)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse %s: %w", configPath, err)
			}
		case os.IsNotExist(err):
			// Optional file.
		default:
			return nil, fmt.Errorf("read %s: %w", configPath, err)
		}
	}

	applyEnv(cfg)
	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.Port, "PORT")
	setString(&cfg.StorageBackend, "STORAGE_BACKEND")
	setString(&cfg.LocalStorageRoot, "LOCAL_STORAGE_ROOT")
	setString(&cfg.WorkDir, "WORK_DIR")
	setString(&cfg.SupabaseURL, "SUPABASE_URL")
	setString(&cfg.SupabaseServiceKey, "SUPABASE_SERVICE_KEY")
	setString(&cfg.StorageBucket, "STORAGE_BUCKET")
	setString(&cfg.FFmpegPath, "FFMPEG_PATH")
	setString(&cfg.FFprobePath, "FFPROBE_PATH")
	setString(&cfg.TranscribeBaseURL, "TRANSCRIBE_BASE_URL")
	setString(&cfg.TranscribeModel, "TRANSCRIBE_MODEL")
	setString(&cfg.GroqAPIKey, "GROQ_API_KEY")
	setString(&cfg.GroqModel, "GROQ_MODEL")
	setInt(&cfg.Workers, "WORKERS")
	setInt(&cfg.QueueSize, "QUEUE_SIZE")
	setDuration(&cfg.RunTimeout, "RUN_TIMEOUT")
	setString(&cfg.LogLevel, "LOG_LEVEL")
	if v := os.Getenv("LOG_JSON"); v != "" {
		cfg.LogJSON = v == "true" || v == "1"
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Port == "" {
		cfg.Port = "8080"
	}
	if cfg.StorageBackend == "" {
		cfg.StorageBackend = "supabase"
	}
	if cfg.LocalStorageRoot == "" {
		cfg.LocalStorageRoot = "./data/artifacts"
	}
	if cfg.WorkDir == "" {
		cfg.WorkDir = os.TempDir()
	}
	if cfg.StorageBucket == "" {
		cfg.StorageBucket = "videos"
	}
	if cfg.TranscribeBaseURL == "" {
		cfg.TranscribeBaseURL = "https://api.groq.com/openai/v1"
	}
	if cfg.TranscribeModel == "" {
		cfg.TranscribeModel = "whisper-large-v3"
	}
	if cfg.GroqModel == "" {
		cfg.GroqModel = "llama-3.3-70b-versatile"
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = 15 * time.Minute
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
}

func (c *Config) validate() error {
	switch c.StorageBackend {
	case "local":
	case "supabase":
		if c.SupabaseURL == "" || c.SupabaseServiceKey == "" {
			return fmt.Errorf("SUPABASE_URL and SUPABASE_SERVICE_KEY are required for the supabase backend")
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.StorageBackend)
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
