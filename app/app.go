package app

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/soocke/subtractor-go/domain/batch"
	"github.com/soocke/subtractor-go/ui/images"
)

const defaultTick = 100 * time.Millisecond

// Options selects what a headless run does.
type Options struct {
	// PreviewPath, when set, receives the rendered preview of PreviewPos.
	PreviewPath string
	PreviewPos  int
	// PreviewMax bounds the exported preview's width and height; 0 keeps
	// the frame size.
	PreviewMax int
	// SkipBatch stops after the preview.
	SkipBatch bool
	Params    batch.Params
}

// Run renders the optional preview and then measures the configured range,
// ticking the presenter loop until the run ends. Cancelling ctx cancels the run.
func (c *AppContainer) Run(ctx context.Context, opts Options) error {
	if opts.PreviewPath != "" {
		if err := c.exportPreview(opts.PreviewPath, opts.PreviewPos, opts.PreviewMax); err != nil {
			return err
		}
	}
	if opts.SkipBatch {
		return nil
	}
	return c.runBatch(ctx, opts.Params)
}

func (c *AppContainer) exportPreview(path string, pos, maxSize int) error {
	c.Preview.SetPosition(pos)
	c.Preview.Refresh()
	if err := c.View.Err(); err != nil {
		return fmt.Errorf("app: preview at %d: %w", pos, err)
	}
	img := c.Preview.Last()
	if maxSize > 0 {
		img = images.ScaleToFit(img, maxSize, maxSize)
	}
	if err := images.SavePNG(path, img); err != nil {
		return err
	}
	attrs := []any{"path", path, "pos", c.Frames.Position(), "level", c.Preview.Settings().Level()}
	if counts, err := c.Preview.MeasureCurrent(); err == nil {
		var total uint64
		for _, n := range counts {
			total += uint64(n)
		}
		attrs = append(attrs, "regions", len(counts), "changed_pixels", humanize.Comma(int64(total)))
	}
	c.Logger.Info("preview exported", attrs...)
	return nil
}

func (c *AppContainer) runBatch(ctx context.Context, params batch.Params) error {
	job, err := c.Batch.Start(ctx, params)
	if err != nil {
		return err
	}
	tick := time.Duration(c.Config.TickMS) * time.Millisecond
	if tick <= 0 {
		tick = defaultTick
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()
	for c.Batch.Active() {
		select {
		case <-ticker.C:
		case <-job.Done():
		}
		c.Loop.Tick()
	}
	st := c.View.Status()
	if st.State == batch.StateFailed {
		return st.Err
	}
	c.Logger.Info("measurements written", "path", c.resolve(c.Config.OutputFile), "pairs", job.Total(), "elapsed", job.Elapsed().Round(time.Millisecond).String())
	return nil
}
