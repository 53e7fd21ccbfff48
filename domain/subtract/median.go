package subtract

import "image"

// MedianFilter returns a new image where each pixel is the median of its
// (2r+1)x(2r+1) neighbourhood. Pixels outside the image take the value of the
// nearest edge pixel. A sliding 256-bin histogram per row keeps the cost
// independent of the radius apart from the column updates.
func MedianFilter(src *image.Gray, radius int) *image.Gray {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	dst := image.NewGray(image.Rect(0, 0, w, h))
	if w == 0 || h == 0 {
		return dst
	}
	if radius <= 0 {
		for y := 0; y < h; y++ {
			copy(dst.Pix[y*dst.Stride:][:w], src.Pix[src.PixOffset(b.Min.X, b.Min.Y+y):][:w])
		}
		return dst
	}

	at := func(x, y int) uint8 {
		x = max(0, min(x, w-1))
		y = max(0, min(y, h-1))
		return src.Pix[src.PixOffset(b.Min.X+x, b.Min.Y+y)]
	}
	side := 2*radius + 1
	rank := side * side / 2

	var hist [256]int
	for y := 0; y < h; y++ {
		clear(hist[:])
		for dy := -radius; dy <= radius; dy++ {
			for dx := -radius; dx <= radius; dx++ {
				hist[at(dx, y+dy)]++
			}
		}
		row := dst.Pix[y*dst.Stride:][:w]
		row[0] = histMedian(&hist, rank)
		for x := 1; x < w; x++ {
			for dy := -radius; dy <= radius; dy++ {
				hist[at(x-radius-1, y+dy)]--
				hist[at(x+radius, y+dy)]++
			}
			row[x] = histMedian(&hist, rank)
		}
	}
	return dst
}

func histMedian(hist *[256]int, rank int) uint8 {
	seen := 0
	for v, c := range hist {
		seen += c
		if seen > rank {
			return uint8(v)
		}
	}
	return 255
}
