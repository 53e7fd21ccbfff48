package app

import (
	"image"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/soocke/subtractor-go/domain/batch"
)

// LogView is the headless view: it reports preview and batch updates as log
// lines and remembers the latest of each.
type LogView struct {
	logger *slog.Logger

	frame    image.Image
	err      error
	status   batch.Status
	run      time.Duration
	lastDone int
}

func NewLogView(logger *slog.Logger) *LogView {
	return &LogView{logger: logger, lastDone: -1}
}

func (v *LogView) ShowFrame(img image.Image) {
	v.frame, v.err = img, nil
	b := img.Bounds()
	v.logger.Debug("preview rendered", "width", b.Dx(), "height", b.Dy())
}

func (v *LogView) ShowError(err error) {
	v.err = err
	v.logger.Warn("preview failed", "error", err)
}

// SetBatchStatus logs progress whenever the completed count moves.
func (v *LogView) SetBatchStatus(st batch.Status) {
	v.status = st
	if st.Completed == v.lastDone && !st.State.Terminal() {
		return
	}
	v.lastDone = st.Completed
	v.logger.Info("batch progress",
		"state", st.State.String(),
		"done", humanize.Comma(int64(st.Completed)),
		"total", humanize.Comma(int64(st.Total)),
		"percent", humanize.FtoaWithDigits(st.Fraction()*100, 1),
	)
}

func (v *LogView) SetBatchDurations(run, total time.Duration) { v.run = run }

// Err is the error of the latest preview render, nil after a success.
func (v *LogView) Err() error { return v.err }

// Status is the latest batch status pushed to the view.
func (v *LogView) Status() batch.Status { return v.status }
