package presenter

import (
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/soocke/subtractor-go/domain/roi"
	"github.com/soocke/subtractor-go/domain/stack"
	"github.com/soocke/subtractor-go/domain/subtract"
	"github.com/soocke/subtractor-go/ui/images"
	"github.com/soocke/subtractor-go/ui/model"
)

// PairDiffer subtracts two frame files.
type PairDiffer interface {
	SubtractFiles(prev, cur string) (*subtract.Difference, error)
}

// FrameLoader decodes a single frame for the raw (non-subtracted) view.
type FrameLoader interface {
	LoadGray(path string) (*image.Gray, error)
}

// PreviewView displays the rendered preview or the error that prevented it.
type PreviewView interface {
	ShowFrame(img image.Image)
	ShowError(err error)
}

// PreviewPresenter renders the current frame pair with the ROI grid. Parameter
// setters mark the preview dirty; the next Tick re-renders it. A failed
// render is reported to the view and the last good frame stays displayed.
type PreviewPresenter struct {
	frames   *stack.Stack
	grid     *roi.Grid
	settings *model.PreviewSettings
	cache    *model.PreviewCache
	differ   PairDiffer
	loader   FrameLoader
	view     PreviewView
	logger   *slog.Logger

	dirty bool
	last  image.Image
}

// NewPreviewPresenter wires a presenter. grid is regenerated on the way in.
func NewPreviewPresenter(frames *stack.Stack, grid *roi.Grid, settings *model.PreviewSettings, cache *model.PreviewCache, differ PairDiffer, loader FrameLoader, view PreviewView, logger *slog.Logger) *PreviewPresenter {
	if grid == nil {
		grid = roi.DefaultGrid()
	}
	if !grid.Generated() {
		grid.Regenerate()
	}
	if settings == nil {
		settings = model.NewPreviewSettings(0, 1)
	}
	if cache == nil {
		cache = model.NewPreviewCache()
	}
	return &PreviewPresenter{
		frames:   frames,
		grid:     grid,
		settings: settings,
		cache:    cache,
		differ:   differ,
		loader:   loader,
		view:     view,
		logger:   logger,
		dirty:    true,
	}
}

// Stack is the live frame stack the preview navigates.
func (p *PreviewPresenter) Stack() *stack.Stack {
	if p == nil {
		return nil
	}
	return p.frames
}

// Grid is the current, generated ROI grid.
func (p *PreviewPresenter) Grid() *roi.Grid {
	if p == nil {
		return nil
	}
	return p.grid
}

func (p *PreviewPresenter) Settings() *model.PreviewSettings {
	if p == nil {
		return nil
	}
	return p.settings
}

// SetThreshold, SetStep and SetShowSubtract change what a cached difference
// means, so they clear the cache.
func (p *PreviewPresenter) SetThreshold(t float64) {
	if p == nil || !p.settings.SetThreshold(t) {
		return
	}
	p.invalidate()
}

func (p *PreviewPresenter) SetStep(step int) {
	if p == nil || !p.settings.SetStep(step) {
		return
	}
	p.invalidate()
}

func (p *PreviewPresenter) SetShowSubtract(b bool) {
	if p == nil || !p.settings.SetShowSubtract(b) {
		return
	}
	p.invalidate()
}

// SetPosition moves the preview. The position is the cache key, so no
// invalidation is needed.
func (p *PreviewPresenter) SetPosition(pos int) {
	if p == nil || p.frames == nil {
		return
	}
	p.frames.SetPosition(pos)
	p.dirty = true
}

func (p *PreviewPresenter) Next() {
	if p == nil || p.frames == nil {
		return
	}
	p.frames.Next()
	p.dirty = true
}

func (p *PreviewPresenter) Prev() {
	if p == nil || p.frames == nil {
		return
	}
	p.frames.Prev()
	p.dirty = true
}

// SetGrid replaces the layout after validation and regenerates it.
func (p *PreviewPresenter) SetGrid(g *roi.Grid) error {
	if p == nil {
		return nil
	}
	if err := g.Validate(); err != nil {
		return err
	}
	g = g.Clone()
	g.Regenerate()
	p.grid = g
	p.dirty = true
	return nil
}

func (p *PreviewPresenter) invalidate() {
	p.cache.Invalidate()
	p.dirty = true
}

// Tick re-renders when something changed since the last render.
func (p *PreviewPresenter) Tick(now time.Time) {
	if p == nil || !p.dirty {
		return
	}
	p.Refresh()
}

// Refresh renders unconditionally and pushes the result to the view.
func (p *PreviewPresenter) Refresh() {
	if p == nil {
		return
	}
	p.dirty = false
	img, err := p.Render()
	if err != nil {
		if p.logger != nil {
			p.logger.Warn("preview render failed", "pos", p.frames.Position(), "error", err)
		}
		if p.view != nil {
			p.view.ShowError(err)
		}
		return
	}
	p.last = img
	if p.view != nil {
		p.view.ShowFrame(img)
	}
}

// Last is the most recent successfully rendered preview.
func (p *PreviewPresenter) Last() image.Image {
	if p == nil {
		return nil
	}
	return p.last
}

// Render draws the current pair. With subtraction on and a previous frame
// available it shows the thresholded difference; otherwise the raw frame.
func (p *PreviewPresenter) Render() (*image.NRGBA, error) {
	prev, hasPrev, cur, hasCur := p.frames.CurrentPair(p.settings.Step())
	if !hasCur {
		return nil, stack.ErrNoFramesFound
	}
	if p.settings.ShowSubtract() && hasPrev {
		diff, err := p.difference(prev, cur)
		if err != nil {
			return nil, err
		}
		level := p.settings.Level()
		if diff.Degenerate() {
			level = 0
		}
		return images.Overlay(images.ThresholdMask(diff.Image, level), p.grid.Rois()), nil
	}
	frame, err := p.loader.LoadGray(cur)
	if err != nil {
		return nil, err
	}
	return images.Overlay(frame, p.grid.Rois()), nil
}

// MeasureCurrent measures the current pair with the preview threshold.
func (p *PreviewPresenter) MeasureCurrent() ([]uint32, error) {
	prev, hasPrev, cur, _ := p.frames.CurrentPair(p.settings.Step())
	if !hasPrev {
		return nil, fmt.Errorf("presenter: position %d has no frame %d steps back", p.frames.Position(), p.settings.Step())
	}
	diff, err := p.difference(prev, cur)
	if err != nil {
		return nil, err
	}
	return p.grid.MeasureAll(diff, p.settings.Threshold())
}

func (p *PreviewPresenter) difference(prev, cur string) (*subtract.Difference, error) {
	return p.cache.GetOrCompute(p.frames.Position(), func() (*subtract.Difference, error) {
		return p.differ.SubtractFiles(prev, cur)
	})
}
