package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	postgrest "github.com/supabase-community/postgrest-go"

	"github.com/voskpaul/clipwizard/models"
)

const (
	videosTable = "videos"
	runsTable   = "processing_runs"
	clipsTable  = "clips"
)

// PostgrestStore persists records through the Supabase PostgREST endpoint.
// The one-active-run invariant relies on a partial unique index on
// processing_runs(video_id) where the state is non-terminal, so concurrent
// CreateRun calls race safely at the database.
type PostgrestStore struct {
	client *postgrest.Client
}

// NewPostgrestStore builds a store against supabaseURL using the service key
// for both the apikey and bearer headers.
func NewPostgrestStore(supabaseURL, serviceKey string) (*PostgrestStore, error) {
	if supabaseURL == "" || serviceKey == "" {
		return nil, fmt.Errorf("supabase url and service key are required")
	}

	client := postgrest.NewClient(supabaseURL+"/rest/v1", "", map[string]string{
		"apikey":        serviceKey,
		"Authorization": fmt.Sprintf("Bearer %s", serviceKey),
	})
	if client.ClientError != nil {
		return nil, fmt.Errorf("initialize postgrest client: %w", client.ClientError)
	}
	return &PostgrestStore{client: client}, nil
}

func isDuplicateKeyErr(err error) bool {
	return err != nil && strings.Contains(err.Error(), "duplicate key")
}

func (s *PostgrestStore) CreateVideo(ctx context.Context, v *models.Video) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	now := time.Now().UTC()
	v.CreatedAt = now
	v.UpdatedAt = now

	var results []models.Video
	_, err := s.client.From(videosTable).Insert(*v, false, "", "representation", "").ExecuteTo(&results)
	if err != nil {
		return fmt.Errorf("insert video: %w", err)
	}
	if len(results) > 0 {
		*v = results[0]
	}
	return nil
}

func (s *PostgrestStore) GetVideo(ctx context.Context, id uuid.UUID) (models.Video, error) {
	var results []models.Video
	_, err := s.client.From(videosTable).
		Select("*", "", false).
		Eq("id", id.String()).
		Limit(1, "").
		ExecuteTo(&results)
	if err != nil {
		return models.Video{}, fmt.Errorf("select video: %w", err)
	}
	if len(results) == 0 {
		return models.Video{}, ErrNotFound
	}
	return results[0], nil
}

func (s *PostgrestStore) ListVideos(ctx context.Context) ([]models.Video, error) {
	var results []models.Video
	_, err := s.client.From(videosTable).Select("*", "", false).ExecuteTo(&results)
	if err != nil {
		return nil, fmt.Errorf("list videos: %w", err)
	}
	sort.Slice(results, func(i, j int) bool { return results[i].CreatedAt.Before(results[j].CreatedAt) })
	return results, nil
}

func (s *PostgrestStore) UpdateVideoStatus(ctx context.Context, id uuid.UUID, status string, progress int, errorMessage *string) error {
	update := map[string]interface{}{
		"status":              status,
		"processing_progress": progress,
		"error_message":       errorMessage,
		"updated_at":          time.Now().UTC(),
	}
	_, count, err := s.client.From(videosTable).Update(update, "", "exact").Eq("id", id.String()).Execute()
	if err != nil {
		return fmt.Errorf("update video status: %w", err)
	}
	if count == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgrestStore) SetVideoMediaInfo(ctx context.Context, id uuid.UUID, durationSeconds float64, format string) error {
	update := map[string]interface{}{
		"duration_seconds": durationSeconds,
		"format":           format,
		"updated_at":       time.Now().UTC(),
	}
	_, count, err := s.client.From(videosTable).Update(update, "", "exact").Eq("id", id.String()).Execute()
	if err != nil {
		return fmt.Errorf("update video media info: %w", err)
	}
	if count == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgrestStore) SetVideoTranscription(ctx context.Context, id uuid.UUID, transcription json.RawMessage) error {
	update := map[string]interface{}{
		"transcription": transcription,
		"updated_at":    time.Now().UTC(),
	}
	_, count, err := s.client.From(videosTable).Update(update, "", "exact").Eq("id", id.String()).Execute()
	if err != nil {
		return fmt.Errorf("update video transcription: %w", err)
	}
	if count == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgrestStore) CreateRun(ctx context.Context, r *models.ProcessingRun) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	now := time.Now().UTC()
	r.CreatedAt = now
	r.UpdatedAt = now

	var results []models.ProcessingRun
	_, err := s.client.From(runsTable).Insert(*r, false, "", "representation", "").ExecuteTo(&results)
	if err != nil {
		if isDuplicateKeyErr(err) {
			return ErrRunAlreadyActive
		}
		return fmt.Errorf("insert processing run: %w", err)
	}
	if len(results) > 0 {
		*r = results[0]
	}
	return nil
}

func (s *PostgrestStore) GetRun(ctx context.Context, id uuid.UUID) (models.ProcessingRun, error) {
	var results []models.ProcessingRun
	_, err := s.client.From(runsTable).
		Select("*", "", false).
		Eq("id", id.String()).
		Limit(1, "").
		ExecuteTo(&results)
	if err != nil {
		return models.ProcessingRun{}, fmt.Errorf("select processing run: %w", err)
	}
	if len(results) == 0 {
		return models.ProcessingRun{}, ErrNotFound
	}
	return results[0], nil
}

func (s *PostgrestStore) UpdateRun(ctx context.Context, r models.ProcessingRun) error {
	r.UpdatedAt = time.Now().UTC()

	update := map[string]interface{}{
		"state":           r.State,
		"progress":        r.Progress,
		"error_kind":      r.ErrorKind,
		"error_message":   r.ErrorMessage,
		"summary":         r.Summary,
		"tags":            r.Tags,
		"sentiment":       r.Sentiment,
		"clip_ids":        r.ClipIDs,
		"failed_segments": r.FailedSegments,
		"started_at":      r.StartedAt,
		"completed_at":    r.CompletedAt,
		"updated_at":      r.UpdatedAt,
	}
	_, count, err := s.client.From(runsTable).Update(update, "", "exact").Eq("id", r.ID.String()).Execute()
	if err != nil {
		return fmt.Errorf("update processing run: %w", err)
	}
	if count == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgrestStore) LatestRunForVideo(ctx context.Context, videoID uuid.UUID) (models.ProcessingRun, error) {
	var results []models.ProcessingRun
	_, err := s.client.From(runsTable).
		Select("*", "", false).
		Eq("video_id", videoID.String()).
		ExecuteTo(&results)
	if err != nil {
		return models.ProcessingRun{}, fmt.Errorf("select runs for video: %w", err)
	}
	if len(results) == 0 {
		return models.ProcessingRun{}, ErrNotFound
	}
	sort.Slice(results, func(i, j int) bool { return results[i].CreatedAt.After(results[j].CreatedAt) })
	return results[0], nil
}

func (s *PostgrestStore) ListUnfinishedRuns(ctx context.Context) ([]models.ProcessingRun, error) {
	var results []models.ProcessingRun
	_, err := s.client.From(runsTable).Select("*", "", false).ExecuteTo(&results)
	if err != nil {
		return nil, fmt.Errorf("list processing runs: %w", err)
	}

	var out []models.ProcessingRun
	for _, r := range results {
		if !r.State.Terminal() {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *PostgrestStore) CreateClip(ctx context.Context, c *models.Clip) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	c.CreatedAt = time.Now().UTC()

	var results []models.Clip
	_, err := s.client.From(clipsTable).Insert(*c, false, "", "representation", "").ExecuteTo(&results)
	if err != nil {
		return fmt.Errorf("insert clip: %w", err)
	}
	if len(results) > 0 {
		*c = results[0]
	}
	return nil
}

func (s *PostgrestStore) GetClip(ctx context.Context, id uuid.UUID) (models.Clip, error) {
	var results []models.Clip
	_, err := s.client.From(clipsTable).
		Select("*", "", false).
		Eq("id", id.String()).
		Limit(1, "").
		ExecuteTo(&results)
	if err != nil {
		return models.Clip{}, fmt.Errorf("select clip: %w", err)
	}
	if len(results) == 0 {
		return models.Clip{}, ErrNotFound
	}
	return results[0], nil
}

func (s *PostgrestStore) ListClipsByVideo(ctx context.Context, videoID uuid.UUID) ([]models.Clip, error) {
	var results []models.Clip
	_, err := s.client.From(clipsTable).
		Select("*", "", false).
		Eq("video_id", videoID.String()).
		ExecuteTo(&results)
	if err != nil {
		return nil, fmt.Errorf("list clips: %w", err)
	}
	sort.Slice(results, func(i, j int) bool { return results[i].StartTime < results[j].StartTime })
	return results, nil
}

// IncrementDownloadCount is read-then-write; clip rows are append-only apart
// from this counter, so lost increments under concurrency are acceptable.
func (s *PostgrestStore) IncrementDownloadCount(ctx context.Context, id uuid.UUID) (int, error) {
	clip, err := s.GetClip(ctx, id)
	if err != nil {
		return 0, err
	}
	next := clip.DownloadCount + 1

	update := map[string]interface{}{"download_count": next}
	_, count, err := s.client.From(clipsTable).Update(update, "", "exact").Eq("id", id.String()).Execute()
	if err != nil {
		return 0, fmt.Errorf("update download count: %w", err)
	}
	if count == 0 {
		return 0, ErrNotFound
	}
	return next, nil
}
