package batch

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Job is the handle of one run. All methods are safe for concurrent use and,
// except Wait, never block.
type Job struct {
	id        uuid.UUID
	total     int
	started   time.Time
	completed atomic.Int64
	cancel    context.CancelFunc
	done      chan struct{}

	mu    sync.Mutex
	state State
	err   error
}

func newJob(total int, cancel context.CancelFunc) *Job {
	return &Job{
		id:      uuid.New(),
		total:   total,
		started: time.Now(),
		cancel:  cancel,
		done:    make(chan struct{}),
		state:   StateRunning,
	}
}

// ID identifies the run in logs and in the SQLite sink.
func (j *Job) ID() string { return j.id.String() }

// Total is the number of pairs the run measures.
func (j *Job) Total() int { return j.total }

// Poll returns the current status without waiting.
func (j *Job) Poll() Status {
	j.mu.Lock()
	state, err := j.state, j.err
	j.mu.Unlock()
	return Status{
		State:     state,
		Completed: int(j.completed.Load()),
		Total:     j.total,
		Err:       err,
	}
}

// Done is closed once the run reaches a terminal state.
func (j *Job) Done() <-chan struct{} { return j.done }

// Wait blocks until the run ends or ctx is done, then returns the latest status.
func (j *Job) Wait(ctx context.Context) Status {
	select {
	case <-j.done:
	case <-ctx.Done():
	}
	return j.Poll()
}

// Cancel asks the run to stop. Pairs already in flight finish; the job then
// fails with context.Canceled. Cancel after completion is a no-op.
func (j *Job) Cancel() { j.cancel() }

// Elapsed is the wall time since Start.
func (j *Job) Elapsed() time.Duration { return time.Since(j.started) }

func (j *Job) advance() int64 { return j.completed.Add(1) }

func (j *Job) finish(err error) {
	j.mu.Lock()
	if err != nil {
		j.state, j.err = StateFailed, err
	} else {
		j.state = StateCompleted
	}
	j.mu.Unlock()
	j.cancel()
	close(j.done)
}
