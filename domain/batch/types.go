// Package batch measures a range of frame pairs in parallel and writes one
// ordered row per pair to an output sink.
package batch

import (
	"errors"

	"github.com/soocke/subtractor-go/domain/roi"
	"github.com/soocke/subtractor-go/domain/stack"
	"github.com/soocke/subtractor-go/domain/subtract"
)

var (
	// ErrInvalidStep is returned by Start when the frame step is below 1.
	ErrInvalidStep = errors.New("batch: step must be >= 1")
	// ErrBusy is returned when a run is requested while another is active.
	ErrBusy = errors.New("batch: a run is already active")
)

// State enumerates the lifecycle of a batch run.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transitions can happen.
func (s State) Terminal() bool { return s == StateCompleted || s == StateFailed }

// Params selects the frame range and sensitivity of a run. Start and End may
// be given in either order.
type Params struct {
	Start     int
	End       int
	Step      int
	Threshold float64
}

// Request is everything a run reads. Start snapshots Frames and clones Grid,
// so the caller may keep mutating its own copies.
type Request struct {
	Frames *stack.Stack
	Grid   *roi.Grid
	Params
}

// Differ produces the normalized difference of two frame files. It must be
// safe for concurrent use.
type Differ interface {
	SubtractFiles(prev, cur string) (*subtract.Difference, error)
}

// Status is a point-in-time view of a job.
type Status struct {
	State     State
	Completed int
	Total     int
	Err       error
}

// Fraction is the share of pairs measured so far.
func (s Status) Fraction() float64 {
	if s.Total == 0 {
		if s.State == StateCompleted {
			return 1
		}
		return 0
	}
	return float64(s.Completed) / float64(s.Total)
}
