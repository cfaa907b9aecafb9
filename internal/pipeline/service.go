package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/voskpaul/clipwizard/internal/worker"
	"github.com/voskpaul/clipwizard/models"
)

// DefaultRunTimeout bounds a single run end to end.
const DefaultRunTimeout = 15 * time.Minute

// Service schedules runs onto the worker pool and tracks in-flight runs so
// they can be cancelled. One Service instance owns all runs of the process.
type Service struct {
	orch       *Orchestrator
	dispatcher *worker.Dispatcher
	store      RunStarter
	log        *logrus.Logger
	runTimeout time.Duration

	mu     sync.Mutex
	active map[uuid.UUID]*runHandle
}

// RunStarter is the slice of the store the scheduler itself needs.
type RunStarter interface {
	GetVideo(ctx context.Context, id uuid.UUID) (models.Video, error)
	CreateRun(ctx context.Context, r *models.ProcessingRun) error
	GetRun(ctx context.Context, id uuid.UUID) (models.ProcessingRun, error)
	UpdateRun(ctx context.Context, r models.ProcessingRun) error
	ListUnfinishedRuns(ctx context.Context) ([]models.ProcessingRun, error)
}

type runHandle struct {
	cancel    context.CancelFunc
	cancelled bool
}

// NewService wires the orchestrator to the dispatcher. A zero runTimeout
// means DefaultRunTimeout.
func NewService(orch *Orchestrator, dispatcher *worker.Dispatcher, st RunStarter, log *logrus.Logger, runTimeout time.Duration) *Service {
	if runTimeout <= 0 {
		runTimeout = DefaultRunTimeout
	}
	return &Service{
		orch:       orch,
		dispatcher: dispatcher,
		store:      st,
		log:        log,
		runTimeout: runTimeout,
		active:     make(map[uuid.UUID]*runHandle),
	}
}

// Start creates a queued run for the video and hands it to the worker pool.
// Returns store.ErrRunAlreadyActive when the video already has a live run and
// store.ErrNotFound when the video does not exist.
func (s *Service) Start(ctx context.Context, videoID uuid.UUID, opts models.RunOptions) (models.ProcessingRun, error) {
	if _, err := s.store.GetVideo(ctx, videoID); err != nil {
		return models.ProcessingRun{}, err
	}

	run := models.ProcessingRun{
		ID:      uuid.New(),
		VideoID: videoID,
		Options: opts,
		State:   models.RunStateQueued,
	}
	if err := s.store.CreateRun(ctx, &run); err != nil {
		return models.ProcessingRun{}, err
	}

	if err := s.enqueue(run); err != nil {
		s.failUnstarted(run, err)
		return models.ProcessingRun{}, err
	}
	s.log.WithFields(logrus.Fields{"run_id": run.ID, "video_id": videoID}).Info("Run queued")
	return run, nil
}

// Cancel stops a queued or in-flight run. Terminal runs return
// store.ErrRunFinished semantics via the run record; cancelling an unknown
// run is a no-op error.
func (s *Service) Cancel(ctx context.Context, runID uuid.UUID) error {
	s.mu.Lock()
	h, ok := s.active[runID]
	if ok {
		h.cancelled = true
		if h.cancel != nil {
			h.cancel()
		}
	}
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("run %s is not active", runID)
	}
	s.log.WithField("run_id", runID).Info("Run cancellation requested")
	return nil
}

// Recover re-enqueues runs that were alive when the previous process died.
// Called once at startup, before the HTTP listener accepts traffic.
func (s *Service) Recover(ctx context.Context) error {
	runs, err := s.store.ListUnfinishedRuns(ctx)
	if err != nil {
		return fmt.Errorf("list unfinished runs: %w", err)
	}
	for _, run := range runs {
		if err := s.enqueue(run); err != nil {
			s.log.WithError(err).WithField("run_id", run.ID).Error("Could not re-enqueue run")
			s.failUnstarted(run, err)
			continue
		}
		s.log.WithField("run_id", run.ID).Info("Re-enqueued interrupted run")
	}
	return nil
}

func (s *Service) enqueue(run models.ProcessingRun) error {
	s.mu.Lock()
	s.active[run.ID] = &runHandle{}
	s.mu.Unlock()

	if err := s.dispatcher.Submit(&runJob{svc: s, run: run}); err != nil {
		s.release(run.ID)
		return err
	}
	return nil
}

func (s *Service) release(runID uuid.UUID) {
	s.mu.Lock()
	delete(s.active, runID)
	s.mu.Unlock()
}

func (s *Service) wasCancelled(runID uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if h, ok := s.active[runID]; ok {
		return h.cancelled
	}
	return false
}

// failUnstarted records a failure for a run that never reached a worker.
func (s *Service) failUnstarted(run models.ProcessingRun, cause error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// The run died before its first stage, so it carries the first stage's kind.
	msg := cause.Error()
	kind := string(KindExtractionFailed)
	if s.wasCancelled(run.ID) {
		kind = string(KindCancelled)
	}
	now := time.Now().UTC()
	run.State = models.RunStateFailed
	run.ErrorKind = &kind
	run.ErrorMessage = &msg
	run.CompletedAt = &now
	if err := s.store.UpdateRun(ctx, run); err != nil {
		s.log.WithError(err).WithField("run_id", run.ID).Error("Could not persist unstarted run failure")
	}
	s.release(run.ID)
}

// runJob adapts a processing run to the worker pool's Job interface.
type runJob struct {
	svc *Service
	run models.ProcessingRun
}

func (j *runJob) ID() string { return j.run.ID.String() }

func (j *runJob) Execute(ctx context.Context) error {
	s := j.svc
	defer s.release(j.run.ID)

	runCtx, cancel := context.WithTimeout(ctx, s.runTimeout)
	defer cancel()

	s.mu.Lock()
	h, ok := s.active[j.run.ID]
	if ok {
		h.cancel = cancel
	}
	cancelled := ok && h.cancelled
	s.mu.Unlock()

	if cancelled {
		// Cancelled while still queued.
		s.orch.finishFailed(runCtx, &j.run, KindCancelled, context.Canceled, "", func() bool { return true })
		return nil
	}

	s.orch.Execute(runCtx, j.run, func() bool { return s.wasCancelled(j.run.ID) })
	return nil
}
