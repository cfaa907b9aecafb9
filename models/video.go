package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Video statuses as stored in the videos table.
const (
	VideoStatusUploaded   = "uploaded"
	VideoStatusProcessing = "processing"
	VideoStatusCompleted  = "completed"
	VideoStatusFailed     = "failed"
)

// Video represents one user-submitted source asset in the database.
type Video struct {
	ID                 uuid.UUID       `json:"id"`
	UserID             *uuid.UUID      `json:"user_id,omitempty"` // Nullable attribution
	Title              string          `json:"title"`
	OriginalFilename   string          `json:"original_filename"`
	StoragePath        string          `json:"storage_path"`
	FileSize           *int64          `json:"file_size,omitempty"`        // Nullable BIGINT
	DurationSeconds    *float64        `json:"duration_seconds,omitempty"` // Nullable FLOAT
	Format             *string         `json:"format,omitempty"`
	Status             string          `json:"status"`
	ProcessingProgress int             `json:"processing_progress"`
	ErrorMessage       *string         `json:"error_message,omitempty"`
	Transcription      json.RawMessage `json:"transcription,omitempty"` // Nullable JSONB
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}
