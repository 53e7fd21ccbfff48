package presenter

import "time"

// Loop is the refresh tick shared by the preview and the batch run: the
// preview re-renders if dirty, then the batch status is polled. Schedule, when
// set, re-arms the next tick. Methods are nil-safe.
type Loop struct {
	Preview  *PreviewPresenter
	Batch    *BatchPresenter
	Schedule func()
}

func NewLoop(preview *PreviewPresenter, batch *BatchPresenter, schedule func()) *Loop {
	return &Loop{Preview: preview, Batch: batch, Schedule: schedule}
}

// Tick runs one refresh.
func (l *Loop) Tick() {
	if l == nil {
		return
	}
	now := time.Now()
	if l.Preview != nil {
		l.Preview.Tick(now)
	}
	if l.Batch != nil {
		l.Batch.Tick(now)
	}
	if l.Schedule != nil {
		l.Schedule()
	}
}
