package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countJob struct {
	id   string
	runs *atomic.Int32
	wg   *sync.WaitGroup
	err  error
}

func (j *countJob) ID() string { return j.id }

func (j *countJob) Execute(ctx context.Context) error {
	j.runs.Add(1)
	j.wg.Done()
	return j.err
}

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func TestDispatcherRunsJobs(t *testing.T) {
	d := NewDispatcher(2, 8, testLogger())
	d.Run()
	defer d.Stop()

	var runs atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		require.NoError(t, d.Submit(&countJob{id: "job", runs: &runs, wg: &wg}))
	}
	wg.Wait()
	assert.Equal(t, int32(5), runs.Load())
}

func TestDispatcherJobErrorDoesNotStopWorkers(t *testing.T) {
	d := NewDispatcher(1, 4, testLogger())
	d.Run()
	defer d.Stop()

	var runs atomic.Int32
	var wg sync.WaitGroup
	wg.Add(2)
	require.NoError(t, d.Submit(&countJob{id: "bad", runs: &runs, wg: &wg, err: errors.New("boom")}))
	require.NoError(t, d.Submit(&countJob{id: "good", runs: &runs, wg: &wg}))
	wg.Wait()
	assert.Equal(t, int32(2), runs.Load())
}

func TestDispatcherQueueFull(t *testing.T) {
	// Never started, so nothing drains the queue.
	d := NewDispatcher(1, 1, testLogger())

	var runs atomic.Int32
	var wg sync.WaitGroup
	require.NoError(t, d.Submit(&countJob{id: "a", runs: &runs, wg: &wg}))
	assert.ErrorIs(t, d.Submit(&countJob{id: "b", runs: &runs, wg: &wg}), ErrQueueFull)
}

type blockJob struct {
	started chan struct{}
}

func (j *blockJob) ID() string { return "block" }

func (j *blockJob) Execute(ctx context.Context) error {
	close(j.started)
	<-ctx.Done()
	return ctx.Err()
}

func TestDispatcherStopCancelsJobs(t *testing.T) {
	d := NewDispatcher(1, 1, testLogger())
	d.Run()

	job := &blockJob{started: make(chan struct{})}
	require.NoError(t, d.Submit(job))
	<-job.started

	done := make(chan struct{})
	go func() {
		d.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return")
	}

	// Stop is idempotent.
	d.Stop()
}
