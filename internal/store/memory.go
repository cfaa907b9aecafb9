package store

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/voskpaul/clipwizard/models"
)

// MemoryStore keeps all records in process memory. It backs tests and the
// single-binary CLI mode, and implements the same invariants as the
// PostgREST store.
type MemoryStore struct {
	mu     sync.Mutex
	videos map[uuid.UUID]models.Video
	runs   map[uuid.UUID]models.ProcessingRun
	clips  map[uuid.UUID]models.Clip
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		videos: make(map[uuid.UUID]models.Video),
		runs:   make(map[uuid.UUID]models.ProcessingRun),
		clips:  make(map[uuid.UUID]models.Clip),
	}
}

func (m *MemoryStore) CreateVideo(ctx context.Context, v *models.Video) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	now := time.Now().UTC()
	v.CreatedAt = now
	v.UpdatedAt = now
	m.videos[v.ID] = *v
	return nil
}

func (m *MemoryStore) GetVideo(ctx context.Context, id uuid.UUID) (models.Video, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.videos[id]
	if !ok {
		return models.Video{}, ErrNotFound
	}
	return v, nil
}

func (m *MemoryStore) ListVideos(ctx context.Context) ([]models.Video, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]models.Video, 0, len(m.videos))
	for _, v := range m.videos {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) UpdateVideoStatus(ctx context.Context, id uuid.UUID, status string, progress int, errorMessage *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.videos[id]
	if !ok {
		return ErrNotFound
	}
	v.Status = status
	v.ProcessingProgress = progress
	v.ErrorMessage = errorMessage
	v.UpdatedAt = time.Now().UTC()
	m.videos[id] = v
	return nil
}

func (m *MemoryStore) SetVideoMediaInfo(ctx context.Context, id uuid.UUID, durationSeconds float64, format string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.videos[id]
	if !ok {
		return ErrNotFound
	}
	v.DurationSeconds = &durationSeconds
	v.Format = &format
	v.UpdatedAt = time.Now().UTC()
	m.videos[id] = v
	return nil
}

func (m *MemoryStore) SetVideoTranscription(ctx context.Context, id uuid.UUID, transcription json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.videos[id]
	if !ok {
		return ErrNotFound
	}
	v.Transcription = append(json.RawMessage(nil), transcription...)
	v.UpdatedAt = time.Now().UTC()
	m.videos[id] = v
	return nil
}

func (m *MemoryStore) CreateRun(ctx context.Context, r *models.ProcessingRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.videos[r.VideoID]; !ok {
		return ErrNotFound
	}
	for _, existing := range m.runs {
		if existing.VideoID == r.VideoID && !existing.State.Terminal() {
			return ErrRunAlreadyActive
		}
	}

	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	now := time.Now().UTC()
	r.CreatedAt = now
	r.UpdatedAt = now
	m.runs[r.ID] = *r
	return nil
}

func (m *MemoryStore) GetRun(ctx context.Context, id uuid.UUID) (models.ProcessingRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.runs[id]
	if !ok {
		return models.ProcessingRun{}, ErrNotFound
	}
	return r, nil
}

func (m *MemoryStore) UpdateRun(ctx context.Context, r models.ProcessingRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.runs[r.ID]
	if !ok {
		return ErrNotFound
	}
	if existing.State.Terminal() {
		return ErrRunFinished
	}
	r.CreatedAt = existing.CreatedAt
	r.UpdatedAt = time.Now().UTC()
	m.runs[r.ID] = r
	return nil
}

func (m *MemoryStore) LatestRunForVideo(ctx context.Context, videoID uuid.UUID) (models.ProcessingRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var latest models.ProcessingRun
	found := false
	for _, r := range m.runs {
		if r.VideoID != videoID {
			continue
		}
		if !found || r.CreatedAt.After(latest.CreatedAt) {
			latest = r
			found = true
		}
	}
	if !found {
		return models.ProcessingRun{}, ErrNotFound
	}
	return latest, nil
}

func (m *MemoryStore) ListUnfinishedRuns(ctx context.Context) ([]models.ProcessingRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.ProcessingRun
	for _, r := range m.runs {
		if !r.State.Terminal() {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) CreateClip(ctx context.Context, c *models.Clip) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	c.CreatedAt = time.Now().UTC()
	m.clips[c.ID] = *c
	return nil
}

func (m *MemoryStore) GetClip(ctx context.Context, id uuid.UUID) (models.Clip, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.clips[id]
	if !ok {
		return models.Clip{}, ErrNotFound
	}
	return c, nil
}

func (m *MemoryStore) ListClipsByVideo(ctx context.Context, videoID uuid.UUID) ([]models.Clip, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.Clip
	for _, c := range m.clips {
		if c.VideoID == videoID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime < out[j].StartTime })
	return out, nil
}

func (m *MemoryStore) IncrementDownloadCount(ctx context.Context, id uuid.UUID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.clips[id]
	if !ok {
		return 0, ErrNotFound
	}
	c.DownloadCount++
	m.clips[id] = c
	return c.DownloadCount, nil
}
