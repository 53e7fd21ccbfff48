package model

import (
	"math"

	"github.com/soocke/subtractor-go/domain/roi"
)

// Threshold limits for the preview and batch sensitivity.
const (
	MinThreshold = -10.0
	MaxThreshold = 10.0
)

// PreviewSettings holds the parameters the preview depends on. Setters report
// whether the value changed so callers know when cached results went stale.
// The zero value has step 0; use NewPreviewSettings.
type PreviewSettings struct {
	threshold    float64
	step         int
	showSubtract bool
}

func NewPreviewSettings(threshold float64, step int) *PreviewSettings {
	s := &PreviewSettings{step: 1, showSubtract: true}
	s.SetThreshold(threshold)
	s.SetStep(step)
	return s
}

func (s *PreviewSettings) Threshold() float64 { return s.threshold }
func (s *PreviewSettings) Step() int          { return s.step }
func (s *PreviewSettings) ShowSubtract() bool { return s.showSubtract }

// Level is the binarization cutoff for the current threshold.
func (s *PreviewSettings) Level() uint8 { return roi.Level(s.threshold) }

// SetThreshold clamps t to the supported range. NaN is ignored.
func (s *PreviewSettings) SetThreshold(t float64) bool {
	if math.IsNaN(t) {
		return false
	}
	t = math.Max(MinThreshold, math.Min(MaxThreshold, t))
	if t == s.threshold {
		return false
	}
	s.threshold = t
	return true
}

// SetStep ignores steps below 1.
func (s *PreviewSettings) SetStep(step int) bool {
	if step < 1 || step == s.step {
		return false
	}
	s.step = step
	return true
}

func (s *PreviewSettings) SetShowSubtract(b bool) bool {
	if b == s.showSubtract {
		return false
	}
	s.showSubtract = b
	return true
}
