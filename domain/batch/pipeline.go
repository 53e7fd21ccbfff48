package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"runtime/debug"
	"slices"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/soocke/subtractor-go/domain/output"
	"github.com/soocke/subtractor-go/domain/roi"
)

const instrumentationName = "github.com/soocke/subtractor-go/domain/batch"

// DefaultReservedCores is left free for the interactive side.
const DefaultReservedCores = 1

// DefaultWorkers sizes the pool from the available CPUs minus reserved, floor 1.
func DefaultWorkers(reserved int) int {
	return max(runtime.NumCPU()-reserved, 1)
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithWorkers fixes the pool size. Values below 1 keep the default.
func WithWorkers(n int) Option {
	return func(p *Pipeline) {
		if n >= 1 {
			p.workers = n
		}
	}
}

// WithProgressInterval throttles the progress log line.
func WithProgressInterval(d time.Duration) Option {
	return func(p *Pipeline) { p.progressEvery = d }
}

// Pipeline starts batch runs. It holds no per-run state and may start runs
// concurrently; exclusivity is the caller's concern.
type Pipeline struct {
	differ        Differ
	logger        *slog.Logger
	workers       int
	progressEvery time.Duration

	tracer  trace.Tracer
	pairs   metric.Int64Counter
	latency metric.Float64Histogram
}

// New returns a Pipeline measuring pairs produced by differ.
func New(differ Differ, logger *slog.Logger, opts ...Option) *Pipeline {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	p := &Pipeline{
		differ:        differ,
		logger:        logger,
		workers:       DefaultWorkers(DefaultReservedCores),
		progressEvery: time.Second,
		tracer:        otel.Tracer(instrumentationName),
	}
	for _, o := range opts {
		o(p)
	}
	p.initMetrics()
	return p
}

func (p *Pipeline) initMetrics() {
	meter := otel.Meter(instrumentationName)
	var err error
	p.pairs, err = meter.Int64Counter("subtractor.batch.pairs",
		metric.WithDescription("Frame pairs measured"),
		metric.WithUnit("{pair}"),
	)
	if err != nil {
		p.logger.Warn("pair counter unavailable", "error", err)
		p.pairs = noop.Int64Counter{}
	}
	p.latency, err = meter.Float64Histogram("subtractor.batch.pair.duration",
		metric.WithDescription("Time to subtract and measure one pair"),
		metric.WithUnit("s"),
	)
	if err != nil {
		p.logger.Warn("pair histogram unavailable", "error", err)
		p.latency = noop.Float64Histogram{}
	}
}

// Workers is the pool size used for each run.
func (p *Pipeline) Workers() int { return p.workers }

// Start validates the request, writes the header row and launches the run in
// the background. On success the job owns sink and closes it when the run
// ends; on error nothing was launched and sink is left to the caller.
// Cancelling ctx cancels the run.
func (p *Pipeline) Start(ctx context.Context, req Request, sink output.Sink) (*Job, error) {
	if req.Step < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidStep, req.Step)
	}
	if !req.Grid.Generated() {
		return nil, fmt.Errorf("batch: %w", roi.ErrNotGenerated)
	}
	grid := req.Grid.Clone()
	frames := req.Frames.Snapshot()
	tasks := Plan(frames, req.Params)

	if err := sink.WriteHeader(grid.RegionCount()); err != nil {
		return nil, fmt.Errorf("batch: write header: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	job := newJob(len(tasks), cancel)
	lo, hi := req.Bounds()
	p.logger.Info("batch started",
		"job", job.ID(),
		"pairs", len(tasks),
		"range_lo", lo,
		"range_hi", hi,
		"step", req.Step,
		"threshold", req.Threshold,
		"regions", grid.RegionCount(),
		"workers", p.workers,
	)

	r := &run{p: p, job: job, tasks: tasks, grid: grid, threshold: req.Threshold, sink: sink}
	go r.execute(runCtx)
	return job, nil
}

type run struct {
	p         *Pipeline
	job       *Job
	tasks     []Task
	grid      *roi.Grid
	threshold float64
	sink      output.Sink
}

func (r *run) execute(ctx context.Context) {
	ctx, span := r.p.tracer.Start(ctx, "batch.run", trace.WithAttributes(
		attribute.String("batch.job_id", r.job.ID()),
		attribute.Int("batch.pairs", len(r.tasks)),
		attribute.Int("batch.workers", r.p.workers),
		attribute.Float64("batch.threshold", r.threshold),
	))
	defer span.End()

	var err error
	defer func() {
		if rec := recover(); rec != nil {
			r.p.logger.Error("batch panic", "job", r.job.ID(), "error", rec, "stack", string(debug.Stack()))
			err = fmt.Errorf("batch: panic: %v", rec)
		}
		if cerr := r.sink.Close(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("batch: close output: %w", cerr))
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			r.p.logger.Error("batch failed", "job", r.job.ID(), "completed", r.job.completed.Load(), "total", len(r.tasks), "error", err)
		} else {
			r.p.logger.Info("batch completed", "job", r.job.ID(), "pairs", len(r.tasks), "elapsed", r.job.Elapsed())
		}
		r.job.finish(err)
	}()

	var records []output.Record
	records, err = r.measure(ctx)
	if err != nil {
		return
	}
	err = r.write(records)
}

// measure runs every task on the pool and returns the records in Seq order.
// The first failing task cancels the rest.
func (r *run) measure(ctx context.Context) ([]output.Record, error) {
	var (
		mu      sync.Mutex
		records = make([]output.Record, 0, len(r.tasks))
	)
	progress := rate.Sometimes{Interval: r.p.progressEvery}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.p.workers)
	for _, t := range r.tasks {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rec, err := r.measureOne(gctx, t)
			if err != nil {
				return err
			}
			mu.Lock()
			records = append(records, rec)
			mu.Unlock()
			n := r.job.advance()
			progress.Do(func() {
				r.p.logger.Debug("batch progress", "job", r.job.ID(), "completed", n, "total", len(r.tasks))
			})
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if len(records) < len(r.tasks) {
		// Launch loop stopped early without a task error.
		return nil, ctx.Err()
	}
	slices.SortFunc(records, func(a, b output.Record) int { return a.Seq - b.Seq })
	return records, nil
}

func (r *run) measureOne(ctx context.Context, t Task) (output.Record, error) {
	start := time.Now()
	diff, err := r.p.differ.SubtractFiles(t.Prev, t.Cur)
	if err != nil {
		return output.Record{}, fmt.Errorf("batch: pair %d: %w", t.Seq, err)
	}
	counts, err := r.grid.MeasureAll(diff, r.threshold)
	if err != nil {
		return output.Record{}, fmt.Errorf("batch: pair %d: %w", t.Seq, err)
	}
	r.p.pairs.Add(ctx, 1)
	r.p.latency.Record(ctx, time.Since(start).Seconds())
	return output.Record{Seq: t.Seq, Prev: t.Prev, Cur: t.Cur, Counts: counts}, nil
}

func (r *run) write(records []output.Record) error {
	for _, rec := range records {
		if err := r.sink.WriteRecord(rec); err != nil {
			return fmt.Errorf("batch: write pair %d: %w", rec.Seq, err)
		}
	}
	return nil
}
