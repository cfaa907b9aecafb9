// Package events is an in-process publish/subscribe bus keyed by video id.
// It replaces per-record realtime database channels with a transport-agnostic
// bus so a web handler, a CLI, or a test harness can all subscribe the same
// way.
package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Kind discriminates the two event shapes delivered to subscribers.
const (
	KindVideo = "video"
	KindJob   = "job"
)

// JobType identifies the pipeline job a job-level event belongs to.
type JobType string

const (
	JobTranscription JobType = "transcription"
	JobAnalysis      JobType = "analysis"
	JobClipping      JobType = "clipping"
)

// Job statuses mirror the processing_jobs rows the front end renders.
const (
	JobStatusPending   = "pending"
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
)

// Event is one progress update for a processing run. Video-level events carry
// the overall status and progress; job-level events carry per-stage detail.
type Event struct {
	VideoID      uuid.UUID `json:"video_id"`
	RunID        uuid.UUID `json:"run_id"`
	Kind         string    `json:"kind"`
	Status       string    `json:"status"`
	Progress     int       `json:"progress"`
	JobType      JobType   `json:"job_type,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// Subscription is one subscriber's view of a video's event stream. C is
// closed when the subscription is cancelled or when the subscriber falls too
// far behind; a reader seeing C closed should re-query persisted run state.
type Subscription struct {
	C <-chan Event

	bus     *Bus
	videoID uuid.UUID
	ch      chan Event
	once    sync.Once
}

// Close cancels the subscription. Safe to call more than once.
func (s *Subscription) Close() {
	s.bus.remove(s.videoID, s)
	s.closeChan()
}

func (s *Subscription) closeChan() {
	s.once.Do(func() { close(s.ch) })
}

// Bus fans events out to subscribers of a video. Publish never blocks: per-run
// ordering is preserved for every connected subscriber, and a subscriber whose
// buffer fills up is disconnected instead of stalling the pipeline.
type Bus struct {
	mu   sync.Mutex
	subs map[uuid.UUID]map[*Subscription]struct{}
	log  *logrus.Logger
}

// NewBus creates an empty bus.
func NewBus(log *logrus.Logger) *Bus {
	return &Bus{
		subs: make(map[uuid.UUID]map[*Subscription]struct{}),
		log:  log,
	}
}

// Subscribe registers a subscriber for all events of one video. buffer bounds
// how far the subscriber may lag before it is disconnected.
func (b *Bus) Subscribe(videoID uuid.UUID, buffer int) *Subscription {
	if buffer <= 0 {
		buffer = 16
	}
	sub := &Subscription{
		bus:     b,
		videoID: videoID,
		ch:      make(chan Event, buffer),
	}
	sub.C = sub.ch

	b.mu.Lock()
	defer b.mu.Unlock()
	set, ok := b.subs[videoID]
	if !ok {
		set = make(map[*Subscription]struct{})
		b.subs[videoID] = set
	}
	set[sub] = struct{}{}
	return sub
}

// Publish delivers ev to every subscriber of ev.VideoID without blocking.
func (b *Bus) Publish(ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for sub := range b.subs[ev.VideoID] {
		select {
		case sub.ch <- ev:
		default:
			// Subscriber stopped draining; drop it rather than stall the run.
			delete(b.subs[ev.VideoID], sub)
			sub.closeChan()
			if b.log != nil {
				b.log.WithFields(logrus.Fields{
					"video_id": ev.VideoID,
					"run_id":   ev.RunID,
				}).Warn("Dropping slow event subscriber")
			}
		}
	}
	if len(b.subs[ev.VideoID]) == 0 {
		delete(b.subs, ev.VideoID)
	}
}

// SubscriberCount reports how many subscribers are attached to a video.
func (b *Bus) SubscriberCount(videoID uuid.UUID) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[videoID])
}

func (b *Bus) remove(videoID uuid.UUID, sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if set, ok := b.subs[videoID]; ok {
		delete(set, sub)
		if len(set) == 0 {
			delete(b.subs, videoID)
		}
	}
}
