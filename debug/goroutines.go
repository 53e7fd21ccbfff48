package debug

// Debug goroutine metrics logger. Started only when config.Debug is true.
// Emits goroutine count (runtime metrics) and stack usage at a fixed interval,
// mainly to watch the batch worker pool wind down after a run.

import (
	"context"
	"log/slog"
	"runtime"
	"runtime/metrics"
	"time"

	"github.com/dustin/go-humanize"
)

// StartGoroutineLogger launches a ticker that logs goroutine count and stack memory
// until ctx is done.
func StartGoroutineLogger(ctx context.Context, interval time.Duration, logger *slog.Logger) {
	if logger == nil {
		return
	}
	if interval <= 0 {
		interval = time.Second
	}

	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		samples := []metrics.Sample{{Name: "/sched/goroutines:goroutines"}}
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
			}
			logger.Info("goroutine-stacks", goroutineAttrs(samples)...)
		}
	}()
}

func goroutineAttrs(samples []metrics.Sample) []any {
	metrics.Read(samples)
	var goroutines uint64
	if samples[0].Value.Kind() == metrics.KindUint64 {
		goroutines = samples[0].Value.Uint64()
	}
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return []any{
		slog.Uint64("goroutines", goroutines),
		slog.String("stack_inuse", humanize.IBytes(ms.StackInuse)),
		slog.String("stack_sys", humanize.IBytes(ms.StackSys)),
		slog.String("heap_alloc", humanize.IBytes(ms.HeapAlloc)),
	}
}
