package model

import (
	"time"

	"github.com/soocke/subtractor-go/domain/batch"
)

// JobHandle is the part of a batch job the model tracks.
type JobHandle interface {
	ID() string
	Poll() batch.Status
	Cancel()
}

// BatchModel holds the single optional handle of the active run and the
// run durations. At most one run is active per session. The zero value is
// ready to use. Not synchronized: presenters drive it from the refresh tick.
type BatchModel struct {
	job     JobHandle
	started time.Time
	last    batch.Status
	hasLast bool

	lastRun     time.Duration
	accumulated time.Duration
	runs        int
}

func NewBatchModel() *BatchModel { return &BatchModel{} }

// Active reports whether a run handle is held.
func (m *BatchModel) Active() bool { return m != nil && m.job != nil }

// Attach stores the handle of a run started at now. It refuses while
// another run is active.
func (m *BatchModel) Attach(job JobHandle, now time.Time) error {
	if m == nil {
		return nil
	}
	if m.job != nil {
		return batch.ErrBusy
	}
	m.job = job
	m.started = now
	m.lastRun = 0
	m.hasLast = false
	return nil
}

// Job returns the active handle, nil when idle.
func (m *BatchModel) Job() JobHandle {
	if m == nil {
		return nil
	}
	return m.job
}

// OnTick polls the active run. A terminal status releases the handle and
// folds the run into the accumulated time. ok is false when no run has been
// observed yet.
func (m *BatchModel) OnTick(now time.Time) (st batch.Status, ok bool) {
	if m == nil {
		return batch.Status{}, false
	}
	if m.job == nil {
		return m.last, m.hasLast
	}
	st = m.job.Poll()
	m.last, m.hasLast = st, true
	m.lastRun = now.Sub(m.started)
	if st.State.Terminal() {
		m.accumulated += m.lastRun
		m.runs++
		m.job = nil
	}
	return st, true
}

// Durations returns the latest run duration and the total over all runs,
// including the ongoing one.
func (m *BatchModel) Durations() (run, total time.Duration) {
	if m == nil {
		return 0, 0
	}
	run, total = m.lastRun, m.accumulated
	if m.job != nil {
		total += run
	}
	return
}

// Runs is the number of finished runs.
func (m *BatchModel) Runs() int {
	if m == nil {
		return 0
	}
	return m.runs
}
