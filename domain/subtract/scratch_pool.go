package subtract

import (
	"image"
	"sync"
)

// Scratch buffers for the pre-filter normalized image. A buffer is only live
// between applyLUT and the median filter reading it.

var scratchPool sync.Pool // stores *image.Gray

// acquireScratch returns a gray image of w x h at the origin. Its contents are
// undefined; callers overwrite every pixel.
func acquireScratch(w, h int) *image.Gray {
	rect := image.Rect(0, 0, w, h)
	if w <= 0 || h <= 0 {
		return &image.Gray{Rect: rect}
	}
	needed := w * h
	var img *image.Gray
	if v := scratchPool.Get(); v != nil {
		img = v.(*image.Gray)
	}
	if img == nil || cap(img.Pix) < needed {
		return &image.Gray{Pix: make([]byte, needed), Stride: w, Rect: rect}
	}
	img.Stride = w
	img.Rect = rect
	img.Pix = img.Pix[:needed]
	return img
}

// recycleScratch hands the buffer back. It must not be used afterwards.
func recycleScratch(img *image.Gray) {
	if img == nil || img.Pix == nil {
		return
	}
	scratchPool.Put(img)
}
