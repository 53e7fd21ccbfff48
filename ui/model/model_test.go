package model

import (
	"errors"
	"image"
	"testing"
	"time"

	"github.com/soocke/subtractor-go/domain/batch"
	"github.com/soocke/subtractor-go/domain/subtract"
)

func TestPreviewCache_SingleSlot(t *testing.T) {
	c := NewPreviewCache()
	calls := 0
	compute := func() (*subtract.Difference, error) {
		calls++
		return &subtract.Difference{Image: image.NewGray(image.Rect(0, 0, 1, 1))}, nil
	}

	first, _ := c.GetOrCompute(3, compute)
	again, _ := c.GetOrCompute(3, compute)
	if calls != 1 || first != again {
		t.Fatalf("hit should not recompute: calls=%d", calls)
	}

	c.GetOrCompute(4, compute)
	if calls != 2 || c.Cached(3) || !c.Cached(4) {
		t.Fatalf("new position should replace the slot: calls=%d", calls)
	}

	c.GetOrCompute(3, compute)
	if calls != 3 {
		t.Fatalf("evicted position must recompute: calls=%d", calls)
	}

	c.Invalidate()
	c.GetOrCompute(3, compute)
	if calls != 4 {
		t.Fatalf("invalidate must force recompute: calls=%d", calls)
	}
}

func TestPreviewCache_ErrorNotStored(t *testing.T) {
	c := NewPreviewCache()
	boom := errors.New("boom")
	if _, err := c.GetOrCompute(1, func() (*subtract.Difference, error) { return nil, boom }); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if c.Cached(1) {
		t.Fatalf("failed compute must not fill the slot")
	}
}

func TestPreviewCache_NilSafe(t *testing.T) {
	var c *PreviewCache
	c.Invalidate()
	d, err := c.GetOrCompute(0, func() (*subtract.Difference, error) { return &subtract.Difference{}, nil })
	if err != nil || d == nil {
		t.Fatalf("nil cache should pass through")
	}
}

type fakeJob struct{ st batch.Status }

func (f *fakeJob) ID() string         { return "job" }
func (f *fakeJob) Poll() batch.Status { return f.st }
func (f *fakeJob) Cancel()            {}

func TestBatchModel_Lifecycle(t *testing.T) {
	m := NewBatchModel()
	base := time.Unix(0, 0)
	if _, ok := m.OnTick(base); ok {
		t.Fatalf("no status before any run")
	}

	job := &fakeJob{st: batch.Status{State: batch.StateRunning, Total: 4}}
	if err := m.Attach(job, base); err != nil {
		t.Fatalf("attach: %v", err)
	}
	if err := m.Attach(&fakeJob{}, base); !errors.Is(err, batch.ErrBusy) {
		t.Fatalf("second attach should be busy, got %v", err)
	}

	st, ok := m.OnTick(base.Add(2 * time.Second))
	if !ok || st.State != batch.StateRunning || !m.Active() {
		t.Fatalf("expected running, got %v ok=%v", st.State, ok)
	}
	run, total := m.Durations()
	if run != 2*time.Second || total != 2*time.Second {
		t.Fatalf("durations run=%v total=%v", run, total)
	}

	job.st = batch.Status{State: batch.StateCompleted, Completed: 4, Total: 4}
	st, _ = m.OnTick(base.Add(3 * time.Second))
	if st.State != batch.StateCompleted || m.Active() || m.Runs() != 1 {
		t.Fatalf("terminal status should release the handle: state=%v active=%v", st.State, m.Active())
	}

	// Idle ticks keep reporting the last status without changing totals.
	st, ok = m.OnTick(base.Add(10 * time.Second))
	run, total = m.Durations()
	if !ok || st.State != batch.StateCompleted || run != 3*time.Second || total != 3*time.Second {
		t.Fatalf("idle tick changed state: %v run=%v total=%v", st.State, run, total)
	}

	if err := m.Attach(&fakeJob{st: batch.Status{State: batch.StateFailed}}, base.Add(20*time.Second)); err != nil {
		t.Fatalf("attach after completion: %v", err)
	}
	m.OnTick(base.Add(21 * time.Second))
	if _, total := m.Durations(); total != 4*time.Second || m.Runs() != 2 {
		t.Fatalf("total=%v runs=%d", total, m.Runs())
	}
}

func TestPreviewSettings(t *testing.T) {
	s := NewPreviewSettings(2, 1)
	if s.Level() != 101 || !s.ShowSubtract() {
		t.Fatalf("defaults: level=%d show=%v", s.Level(), s.ShowSubtract())
	}
	if s.SetThreshold(2) {
		t.Fatalf("unchanged threshold reported as change")
	}
	if !s.SetThreshold(50) || s.Threshold() != MaxThreshold {
		t.Fatalf("threshold not clamped: %v", s.Threshold())
	}
	if s.SetStep(0) || s.Step() != 1 {
		t.Fatalf("step below 1 must be ignored")
	}
	if !s.SetStep(3) || !s.SetShowSubtract(false) || s.SetShowSubtract(false) {
		t.Fatalf("setter change reporting broken")
	}
}
