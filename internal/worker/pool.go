// Package worker runs processing-run jobs on a bounded pool of goroutines.
package worker

import (
	"context"
	"errors"
	"sync"

	"github.com/sirupsen/logrus"
)

// ErrQueueFull is returned by Submit when the job queue has no free slot.
var ErrQueueFull = errors.New("job queue is full")

// Job is a unit of work executed by the pool. The context is cancelled when
// the dispatcher shuts down.
type Job interface {
	ID() string
	Execute(ctx context.Context) error
}

// Dispatcher owns the job queue and the worker goroutines draining it.
type Dispatcher struct {
	maxWorkers int
	jobQueue   chan Job
	log        *logrus.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	stopOnce sync.Once
}

// NewDispatcher creates a dispatcher with maxWorkers workers and a job queue
// of jobQueueSize entries. Run must be called before Submit.
func NewDispatcher(maxWorkers, jobQueueSize int, log *logrus.Logger) *Dispatcher {
	if maxWorkers <= 0 {
		maxWorkers = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		maxWorkers: maxWorkers,
		jobQueue:   make(chan Job, jobQueueSize),
		log:        log,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Run starts the worker goroutines.
func (d *Dispatcher) Run() {
	d.log.Infof("Dispatcher starting with %d workers", d.maxWorkers)
	for i := 1; i <= d.maxWorkers; i++ {
		d.wg.Add(1)
		go d.work(i)
	}
}

func (d *Dispatcher) work(id int) {
	defer d.wg.Done()
	for {
		select {
		case job, ok := <-d.jobQueue:
			if !ok {
				return
			}
			d.log.WithFields(logrus.Fields{"worker": id, "job_id": job.ID()}).Info("Worker started job")
			if err := job.Execute(d.ctx); err != nil {
				d.log.WithFields(logrus.Fields{"worker": id, "job_id": job.ID()}).
					WithError(err).Error("Worker job failed")
			} else {
				d.log.WithFields(logrus.Fields{"worker": id, "job_id": job.ID()}).Info("Worker finished job")
			}
		case <-d.ctx.Done():
			return
		}
	}
}

// Submit enqueues a job without blocking. Returns ErrQueueFull when the queue
// has no capacity; the caller decides whether to surface or retry.
func (d *Dispatcher) Submit(job Job) error {
	select {
	case d.jobQueue <- job:
		d.log.WithField("job_id", job.ID()).Info("Job submitted to queue")
		return nil
	default:
		d.log.WithField("job_id", job.ID()).Warn("Job queue full, rejecting job")
		return ErrQueueFull
	}
}

// Stop cancels in-flight job contexts and waits for all workers to exit.
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() {
		d.log.Info("Dispatcher shutting down")
		d.cancel()
		d.wg.Wait()
		d.log.Info("Dispatcher shutdown complete")
	})
}
