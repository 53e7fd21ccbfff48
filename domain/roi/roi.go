// Package roi lays out a rotated rectangular grid of regions of interest and
// measures binarized difference images over it.
package roi

import (
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/soocke/subtractor-go/domain/subtract"
)

var (
	// ErrParse marks a malformed or out-of-range persisted grid.
	ErrParse = errors.New("roi: malformed grid config")
	// ErrNotGenerated is returned when measuring before Regenerate.
	ErrNotGenerated = errors.New("roi: grid not generated")
)

// Limits applied by Validate.
const (
	MaxCount    = 100
	MaxRotation = 90.0
)

// Roi is one rectangle of a generated grid. It may extend past the image;
// clipping happens at measurement time.
type Roi struct {
	X, Y          int
	Width, Height int
	Index         int
}

// Rect returns the half-open rectangle covered by r.
func (r Roi) Rect() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

// Measure counts pixels of bin whose least significant bit is set inside the
// part of r that lies within the image.
func (r Roi) Measure(bin *image.Gray) uint32 {
	clip := r.Rect().Add(bin.Bounds().Min).Intersect(bin.Bounds())
	if clip.Empty() {
		return 0
	}
	var n uint32
	for y := clip.Min.Y; y < clip.Max.Y; y++ {
		row := bin.Pix[bin.PixOffset(clip.Min.X, y):][:clip.Dx()]
		for _, v := range row {
			n += uint32(v & 1)
		}
	}
	return n
}

// Grid holds the layout parameters. Generated ROIs are rebuilt by Regenerate
// and are not persisted. Callers must call Regenerate after changing any
// layout field and before measuring.
type Grid struct {
	Rows      int     `json:"nrow"`
	Cols      int     `json:"ncol"`
	X         int     `json:"x"`
	Y         int     `json:"y"`
	XInterval int     `json:"xinterval"`
	YInterval int     `json:"yinterval"`
	Width     int     `json:"width"`
	Height    int     `json:"height"`
	Rotation  float64 `json:"rotate"`

	rois []Roi
}

// DefaultGrid is the 6x8 plate layout used when no config is present.
func DefaultGrid() *Grid {
	return &Grid{
		Rows:      6,
		Cols:      8,
		X:         18,
		Y:         20,
		XInterval: 128,
		YInterval: 125,
		Width:     78,
		Height:    78,
	}
}

// Validate rejects negative sizes and out-of-range counts or rotation.
func (g *Grid) Validate() error {
	switch {
	case g.Rows < 0 || g.Cols < 0 || g.Rows > MaxCount || g.Cols > MaxCount:
		return fmt.Errorf("%w: counts %dx%d outside 0..%d", ErrParse, g.Rows, g.Cols, MaxCount)
	case g.X < 0 || g.Y < 0 || g.XInterval < 0 || g.YInterval < 0 || g.Width < 0 || g.Height < 0:
		return fmt.Errorf("%w: negative geometry", ErrParse)
	case math.IsNaN(g.Rotation) || math.Abs(g.Rotation) > MaxRotation:
		return fmt.Errorf("%w: rotation %v outside ±%v", ErrParse, g.Rotation, MaxRotation)
	}
	return nil
}

// Regenerate rebuilds the ROI list in row-major order. Each cell offset is
// rotated about the image origin; both rotated coordinates derive from the
// same unrotated point, then are rounded and clamped at 0.
func (g *Grid) Regenerate() {
	rad := g.Rotation / 180 * math.Pi
	sin, cos := math.Sincos(rad)
	rois := make([]Roi, 0, max(g.Rows, 0)*max(g.Cols, 0))
	for i := 0; i < g.Rows; i++ {
		for j := 0; j < g.Cols; j++ {
			fx := float64(g.X + j*g.XInterval)
			fy := float64(g.Y + i*g.YInterval)
			rx := fx*cos - fy*sin
			ry := fx*sin + fy*cos
			rois = append(rois, Roi{
				X:      int(math.Max(math.Round(rx), 0)),
				Y:      int(math.Max(math.Round(ry), 0)),
				Width:  g.Width,
				Height: g.Height,
				Index:  len(rois),
			})
		}
	}
	g.rois = rois
}

// Generated reports whether Regenerate has run.
func (g *Grid) Generated() bool { return g != nil && g.rois != nil }

// Rois returns the generated regions. The slice must not be modified.
func (g *Grid) Rois() []Roi {
	if g == nil {
		return nil
	}
	return g.rois
}

// RegionCount is the number of generated regions, 0 before Regenerate.
func (g *Grid) RegionCount() int {
	if g == nil {
		return 0
	}
	return len(g.rois)
}

// Clone returns a deep copy, safe to hand to another goroutine.
func (g *Grid) Clone() *Grid {
	c := *g
	if g.rois != nil {
		c.rois = append([]Roi(nil), g.rois...)
	}
	return &c
}

// Equal compares layout parameters only.
func (g *Grid) Equal(o *Grid) bool {
	return g.Rows == o.Rows && g.Cols == o.Cols && g.X == o.X && g.Y == o.Y &&
		g.XInterval == o.XInterval && g.YInterval == o.YInterval &&
		g.Width == o.Width && g.Height == o.Height && g.Rotation == o.Rotation
}

// Level converts a sensitivity threshold, in multiples of the pair's own
// standard deviation, into the byte cutoff on the normalized image.
func Level(threshold float64) uint8 {
	return uint8(math.Round(math.Max(0, math.Min(255, 127-threshold*12.8))))
}

// Binarize thresholds img at level (>= level is 255) and inverts the result,
// so pixels below the level carry a set low bit.
func Binarize(img *image.Gray, level uint8) *image.Gray {
	b := img.Bounds()
	out := image.NewGray(b)
	w := b.Dx()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		src := img.Pix[img.PixOffset(b.Min.X, y):][:w]
		dst := out.Pix[out.PixOffset(b.Min.X, y):][:w]
		for x, v := range src {
			var bin uint8
			if v >= level {
				bin = 255
			}
			dst[x] = ^bin
		}
	}
	return out
}

// MeasureImage binarizes img and counts foreground pixels per ROI, in index order.
func (g *Grid) MeasureImage(img *image.Gray, threshold float64) ([]uint32, error) {
	if !g.Generated() {
		return nil, ErrNotGenerated
	}
	bin := Binarize(img, Level(threshold))
	counts := make([]uint32, len(g.rois))
	for i, r := range g.rois {
		counts[i] = r.Measure(bin)
	}
	return counts, nil
}

// MeasureAll measures a difference image. A degenerate difference (the two
// frames were identical) has no measurable change and yields zeros.
func (g *Grid) MeasureAll(diff *subtract.Difference, threshold float64) ([]uint32, error) {
	if !g.Generated() {
		return nil, ErrNotGenerated
	}
	if diff == nil || diff.Image == nil {
		return nil, fmt.Errorf("roi: nil difference")
	}
	if diff.Degenerate() {
		return make([]uint32, len(g.rois)), nil
	}
	return g.MeasureImage(diff.Image, threshold)
}
