package images

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/soocke/subtractor-go/domain/roi"
)

func TestThresholdMask_PaintsBelowLevelRed(t *testing.T) {
	diff := image.NewGray(image.Rect(0, 0, 3, 1))
	copy(diff.Pix, []uint8{10, 127, 200})
	out := ThresholdMask(diff, 127)

	want := []color.NRGBA{
		{R: 255, G: 10, B: 10, A: 255},
		{R: 127, G: 127, B: 127, A: 255},
		{R: 200, G: 200, B: 200, A: 255},
	}
	for x, w := range want {
		if got := out.NRGBAAt(x, 0); got != w {
			t.Fatalf("pixel %d: got %v want %v", x, got, w)
		}
	}
}

func TestThresholdMask_SubImageOrigin(t *testing.T) {
	diff := image.NewGray(image.Rect(0, 0, 4, 4))
	diff.SetGray(2, 2, color.Gray{Y: 0})
	for i := range diff.Pix {
		if i != diff.PixOffset(2, 2) {
			diff.Pix[i] = 255
		}
	}
	sub := diff.SubImage(image.Rect(2, 2, 4, 4)).(*image.Gray)
	out := ThresholdMask(sub, 127)
	if out.Bounds() != image.Rect(0, 0, 2, 2) {
		t.Fatalf("bounds %v", out.Bounds())
	}
	if out.NRGBAAt(0, 0).R != 255 || out.NRGBAAt(0, 0).G != 0 {
		t.Fatalf("expected red marker at origin, got %v", out.NRGBAAt(0, 0))
	}
	if out.NRGBAAt(1, 1).G != 255 {
		t.Fatalf("expected white at (1,1), got %v", out.NRGBAAt(1, 1))
	}
}

func TestDrawRois_DoubleOutline(t *testing.T) {
	canvas := image.NewNRGBA(image.Rect(0, 0, 40, 40))
	DrawRois(canvas, []roi.Roi{{X: 20, Y: 20, Width: 10, Height: 10, Index: 3}})

	for _, p := range []image.Point{{20, 20}, {29, 29}, {19, 19}, {30, 30}, {25, 20}, {20, 25}} {
		if got := canvas.NRGBAAt(p.X, p.Y); got != RoiColor {
			t.Fatalf("outline missing at %v: %v", p, got)
		}
	}
	if got := canvas.NRGBAAt(25, 25); got.A != 0 {
		t.Fatalf("interior should be untouched, got %v", got)
	}

	var label int
	for y := 5; y < 18; y++ {
		for x := 5; x < 12; x++ {
			if canvas.NRGBAAt(x, y) == RoiColor {
				label++
			}
		}
	}
	if label == 0 {
		t.Fatalf("expected label pixels above-left of the region")
	}
}

func TestDrawRois_ClipsAtEdges(t *testing.T) {
	canvas := image.NewNRGBA(image.Rect(0, 0, 10, 10))
	DrawRois(canvas, []roi.Roi{{X: 0, Y: 0, Width: 50, Height: 50}})
	if canvas.NRGBAAt(5, 0) != RoiColor || canvas.NRGBAAt(0, 5) != RoiColor {
		t.Fatalf("visible edges not drawn")
	}
}

func TestOverlay_ConvertsGray(t *testing.T) {
	frame := image.NewGray(image.Rect(0, 0, 8, 8))
	out := Overlay(frame, []roi.Roi{{X: 2, Y: 2, Width: 2, Height: 2}})
	if out.NRGBAAt(2, 2) != RoiColor {
		t.Fatalf("roi not drawn on converted frame")
	}
	if frame.GrayAt(2, 2).Y != 0 {
		t.Fatalf("gray source must not be modified")
	}
}

func TestScaleToFit(t *testing.T) {
	small := image.NewGray(image.Rect(0, 0, 10, 10))
	if ScaleToFit(small, 20, 20) != image.Image(small) {
		t.Fatalf("fitting image should be returned as is")
	}
	big := image.NewGray(image.Rect(0, 0, 200, 100))
	got := ScaleToFit(big, 50, 50).Bounds()
	if got.Dx() != 50 || got.Dy() != 25 {
		t.Fatalf("unexpected scaled size %v", got)
	}
	if ScaleToFit(nil, 1, 1) != nil {
		t.Fatalf("nil in, nil out")
	}
}

func TestSavePNG(t *testing.T) {
	img := ThresholdMask(image.NewGray(image.Rect(0, 0, 3, 2)), 1)
	path := filepath.Join(t.TempDir(), "preview.png")
	if err := SavePNG(path, img); err != nil {
		t.Fatalf("save: %v", err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	decoded, err := png.Decode(f)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Bounds().Dx() != 3 || decoded.Bounds().Dy() != 2 {
		t.Fatalf("bounds %v", decoded.Bounds())
	}
	if err := SavePNG(filepath.Join(t.TempDir(), "missing", "x.png"), img); err == nil {
		t.Fatalf("expected error for missing directory")
	}
}
