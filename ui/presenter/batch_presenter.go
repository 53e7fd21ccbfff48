package presenter

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/soocke/subtractor-go/domain/batch"
	"github.com/soocke/subtractor-go/domain/output"
	"github.com/soocke/subtractor-go/domain/roi"
	"github.com/soocke/subtractor-go/domain/stack"
	"github.com/soocke/subtractor-go/ui/model"
)

// JobStarter launches a batch run.
type JobStarter interface {
	Start(ctx context.Context, req batch.Request, sink output.Sink) (*batch.Job, error)
}

// RunSource supplies the live stack and grid a run snapshots.
type RunSource interface {
	Stack() *stack.Stack
	Grid() *roi.Grid
}

// SinkFactory opens the output of a new run.
type SinkFactory func() (output.Sink, error)

// BatchView shows run progress.
type BatchView interface {
	SetBatchStatus(st batch.Status)
	SetBatchDurations(run, total time.Duration)
}

// BatchPresenter starts runs, holds the single active handle through the
// model and polls it on every tick.
type BatchPresenter struct {
	model   *model.BatchModel
	starter JobStarter
	source  RunSource
	sinks   SinkFactory
	view    BatchView
	logger  *slog.Logger

	reported batch.State
}

func NewBatchPresenter(m *model.BatchModel, starter JobStarter, source RunSource, sinks SinkFactory, view BatchView, logger *slog.Logger) *BatchPresenter {
	if m == nil {
		m = model.NewBatchModel()
	}
	return &BatchPresenter{model: m, starter: starter, source: source, sinks: sinks, view: view, logger: logger}
}

// Active reports whether a run is in flight.
func (p *BatchPresenter) Active() bool { return p != nil && p.model.Active() }

// Start launches a run over params. It refuses with batch.ErrBusy while
// another run is active. The sink is opened first; if that or the run start
// fails, nothing runs.
func (p *BatchPresenter) Start(ctx context.Context, params batch.Params) (*batch.Job, error) {
	if p == nil || p.starter == nil || p.source == nil || p.sinks == nil {
		return nil, errors.New("presenter: batch presenter not wired")
	}
	if p.model.Active() {
		return nil, batch.ErrBusy
	}
	sink, err := p.sinks()
	if err != nil {
		return nil, err
	}
	job, err := p.starter.Start(ctx, batch.Request{
		Frames: p.source.Stack(),
		Grid:   p.source.Grid(),
		Params: params,
	}, sink)
	if err != nil {
		if cerr := sink.Close(); cerr != nil && p.logger != nil {
			p.logger.Warn("close output after failed start", "error", cerr)
		}
		return nil, err
	}
	if err := p.model.Attach(job, time.Now()); err != nil {
		job.Cancel()
		return nil, err
	}
	p.reported = batch.StateRunning
	return job, nil
}

// Cancel asks the active run to stop; the next ticks observe it failing.
func (p *BatchPresenter) Cancel() {
	if p == nil {
		return
	}
	if job := p.model.Job(); job != nil {
		job.Cancel()
	}
}

// Tick polls the active run and pushes its status to the view. Terminal
// states release the handle.
func (p *BatchPresenter) Tick(now time.Time) {
	if p == nil || p.view == nil {
		return
	}
	var id string
	if job := p.model.Job(); job != nil {
		id = job.ID()
	}
	st, ok := p.model.OnTick(now)
	if !ok {
		return
	}
	p.view.SetBatchStatus(st)
	p.view.SetBatchDurations(p.model.Durations())
	if st.State != p.reported && st.State.Terminal() {
		p.reported = st.State
		if p.logger != nil {
			p.logger.Info("batch observed", "job", id, "state", st.State.String(), "done", st.Completed, "total", st.Total, "error", st.Err)
		}
	}
}
