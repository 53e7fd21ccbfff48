package images

import (
	"image"
	"image/color"
	"image/draw"
	"strconv"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/soocke/subtractor-go/domain/roi"
)

// RoiColor outlines regions and their labels.
var RoiColor = color.NRGBA{R: 255, G: 255, B: 0, A: 255}

// labelOffset places an index label up and left of its region.
const labelOffset = 15

// ThresholdMask renders a normalized difference as gray, with every pixel
// below level shown in red. Red pixels are the ones a measurement counts.
func ThresholdMask(diff *image.Gray, level uint8) *image.NRGBA {
	b := diff.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	w := b.Dx()
	for y := 0; y < b.Dy(); y++ {
		src := diff.Pix[diff.PixOffset(b.Min.X, b.Min.Y+y):][:w]
		dst := out.Pix[out.PixOffset(0, y):][: w*4 : w*4]
		for x, v := range src {
			px := dst[x*4 : x*4+4 : x*4+4]
			px[0], px[1], px[2], px[3] = v, v, v, 255
			if v < level {
				px[0] = 255
			}
		}
	}
	return out
}

// Frame copies any decoded image into a drawable NRGBA canvas at the origin.
func Frame(img image.Image) *image.NRGBA {
	return imaging.Clone(img)
}

// DrawRois outlines every region twice (the region and a one pixel wider
// border) and writes its index label.
func DrawRois(dst draw.Image, rois []roi.Roi) {
	for _, r := range rois {
		strokeRect(dst, r.Rect(), RoiColor)
		strokeRect(dst, r.Rect().Inset(-1), RoiColor)
		drawLabel(dst, strconv.Itoa(r.Index), r.X-labelOffset, r.Y-labelOffset)
	}
}

func strokeRect(dst draw.Image, r image.Rectangle, c color.Color) {
	if r.Empty() {
		return
	}
	b := dst.Bounds()
	for x := r.Min.X; x < r.Max.X; x++ {
		setIn(dst, b, x, r.Min.Y, c)
		setIn(dst, b, x, r.Max.Y-1, c)
	}
	for y := r.Min.Y; y < r.Max.Y; y++ {
		setIn(dst, b, r.Min.X, y, c)
		setIn(dst, b, r.Max.X-1, y, c)
	}
}

func setIn(dst draw.Image, b image.Rectangle, x, y int, c color.Color) {
	if image.Pt(x, y).In(b) {
		dst.Set(x, y, c)
	}
}

// drawLabel writes text with its top-left corner at (x, y).
func drawLabel(dst draw.Image, text string, x, y int) {
	face := basicfont.Face7x13
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(RoiColor),
		Face: face,
		Dot:  fixed.P(x, y+face.Metrics().Ascent.Ceil()),
	}
	d.DrawString(text)
}

// Overlay draws the ROI grid over base, the thresholded difference or the raw
// current frame. An NRGBA base at the origin is drawn into in place.
func Overlay(base image.Image, rois []roi.Roi) *image.NRGBA {
	canvas, ok := base.(*image.NRGBA)
	if !ok || canvas.Bounds().Min != (image.Point{}) {
		canvas = Frame(base)
	}
	DrawRois(canvas, rois)
	return canvas
}
