// Package subtract computes the normalized difference between two grayscale
// frames. The delta distribution of every pair is rescaled to ±10 standard
// deviations of itself, so contrast is self-calibrating per pair, and the
// result is median filtered to suppress shot noise before thresholding.
package subtract

import (
	"errors"
	"fmt"
	"image"
	"math"
)

const (
	// lutSize covers every signed delta of two 8-bit samples, -255..255.
	lutSize   = 511
	lutOffset = 255
	// stdSpan is the half width of the rescaling window in standard deviations.
	stdSpan = 10.0
	// MedianRadius gives a 5x5 neighbourhood.
	MedianRadius = 2
)

var (
	ErrDecode            = errors.New("subtract: decode failure")
	ErrDimensionMismatch = errors.New("subtract: dimension mismatch")
)

// Stats describes the signed delta distribution of a frame pair.
type Stats struct {
	Mean float64
	Std  float64
}

// Range is the width of the rescaling window, 20 standard deviations.
func (s Stats) Range() float64 { return 2 * stdSpan * s.Std }

// Degenerate reports whether the rescaling window is unusable (identical
// frames, or a non-finite spread). Degenerate pairs map to an all-zero image.
func (s Stats) Degenerate() bool {
	r := s.Range()
	return !(r >= 0x1p-1022) || math.IsInf(r, 1)
}

// Difference is the 8-bit normalized difference of one frame pair. It is
// never mutated after creation and may be shared between readers.
type Difference struct {
	Image *image.Gray
	Stats
}

// Bounds returns the image bounds, or an empty rectangle for a nil difference.
func (d *Difference) Bounds() image.Rectangle {
	if d == nil || d.Image == nil {
		return image.Rectangle{}
	}
	return d.Image.Bounds()
}

// Subtract computes prev-cur, rescales it through the pair's lookup table and
// median filters the result. Safe for concurrent use.
func Subtract(prev, cur *image.Gray) (*Difference, error) {
	if err := checkDims(prev, cur); err != nil {
		return nil, err
	}
	stats := deltaStats(prev, cur)
	lut := buildLUT(stats)

	scratch := acquireScratch(prev.Bounds().Dx(), prev.Bounds().Dy())
	defer recycleScratch(scratch)
	applyLUT(scratch, prev, cur, &lut)

	return &Difference{Image: MedianFilter(scratch, MedianRadius), Stats: stats}, nil
}

// Normalize is Subtract without the median filter.
func Normalize(prev, cur *image.Gray) (*Difference, error) {
	if err := checkDims(prev, cur); err != nil {
		return nil, err
	}
	stats := deltaStats(prev, cur)
	lut := buildLUT(stats)
	dst := image.NewGray(image.Rect(0, 0, prev.Bounds().Dx(), prev.Bounds().Dy()))
	applyLUT(dst, prev, cur, &lut)
	return &Difference{Image: dst, Stats: stats}, nil
}

func checkDims(a, b *image.Gray) error {
	if a == nil || b == nil {
		return fmt.Errorf("%w: nil frame", ErrDecode)
	}
	if a.Bounds().Size() != b.Bounds().Size() {
		return fmt.Errorf("%w: %v vs %v", ErrDimensionMismatch, a.Bounds().Size(), b.Bounds().Size())
	}
	return nil
}

// deltaStats accumulates a histogram of signed deltas; mean and population
// variance are then exact sums over at most 511 bins.
func deltaStats(a, b *image.Gray) Stats {
	var hist [lutSize]int64
	ab, bb := a.Bounds(), b.Bounds()
	w, h := ab.Dx(), ab.Dy()
	for y := 0; y < h; y++ {
		ra := a.Pix[a.PixOffset(ab.Min.X, ab.Min.Y+y):][:w]
		rb := b.Pix[b.PixOffset(bb.Min.X, bb.Min.Y+y):][:w]
		for x := range ra {
			hist[int(ra[x])-int(rb[x])+lutOffset]++
		}
	}
	n := float64(w * h)
	if n == 0 {
		return Stats{}
	}
	var sum float64
	for i, c := range hist {
		sum += float64(c) * float64(i-lutOffset)
	}
	mean := sum / n
	var sq float64
	for i, c := range hist {
		if c == 0 {
			continue
		}
		d := float64(i-lutOffset) - mean
		sq += float64(c) * d * d
	}
	return Stats{Mean: mean, Std: math.Sqrt(sq / n)}
}

// buildLUT maps every signed delta to a byte. A degenerate window leaves the
// table all zero.
func buildLUT(s Stats) [lutSize]uint8 {
	var lut [lutSize]uint8
	if s.Degenerate() {
		return lut
	}
	vmin := -stdSpan * s.Std
	rng := s.Range()
	for i := range lut {
		d := float64(i - lutOffset)
		v := ((d - s.Mean) - vmin) / rng * 255
		lut[i] = uint8(math.Round(math.Max(0, math.Min(255, v))))
	}
	return lut
}

func applyLUT(dst, a, b *image.Gray, lut *[lutSize]uint8) {
	ab, bb := a.Bounds(), b.Bounds()
	w, h := ab.Dx(), ab.Dy()
	for y := 0; y < h; y++ {
		ra := a.Pix[a.PixOffset(ab.Min.X, ab.Min.Y+y):][:w]
		rb := b.Pix[b.PixOffset(bb.Min.X, bb.Min.Y+y):][:w]
		rd := dst.Pix[y*dst.Stride:][:w]
		for x := range rd {
			rd[x] = lut[int(ra[x])-int(rb[x])+lutOffset]
		}
	}
}
