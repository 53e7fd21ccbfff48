package subtract

import (
	"fmt"
	"image"
	"image/draw"

	"github.com/disintegration/imaging"
	lru "github.com/hashicorp/golang-lru/v2"
)

// Loader decodes a frame file into single-channel 8-bit grayscale.
type Loader interface {
	LoadGray(path string) (*image.Gray, error)
}

// FileLoader decodes any format registered with imaging (jpeg, png, tiff, bmp, gif).
type FileLoader struct{}

func (FileLoader) LoadGray(path string) (*image.Gray, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrDecode, path, err)
	}
	return ToGray(img), nil
}

// ToGray converts img with the standard luminance mapping of color.GrayModel.
// The result always starts at the origin.
func ToGray(img image.Image) *image.Gray {
	b := img.Bounds()
	if g, ok := img.(*image.Gray); ok && b.Min == (image.Point{}) {
		return g
	}
	gray := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(gray, gray.Bounds(), img, b.Min, draw.Src)
	return gray
}

// CachedLoader keeps the most recently decoded frames. The interactive
// preview walks the stack one frame at a time, so the previous frame of the
// new position is usually the current frame of the old one.
type CachedLoader struct {
	next  Loader
	cache *lru.Cache[string, *image.Gray]
}

// NewCachedLoader wraps next with an LRU of size frames.
func NewCachedLoader(next Loader, size int) (*CachedLoader, error) {
	if next == nil {
		next = FileLoader{}
	}
	c, err := lru.New[string, *image.Gray](max(size, 1))
	if err != nil {
		return nil, err
	}
	return &CachedLoader{next: next, cache: c}, nil
}

func (l *CachedLoader) LoadGray(path string) (*image.Gray, error) {
	if img, ok := l.cache.Get(path); ok {
		return img, nil
	}
	img, err := l.next.LoadGray(path)
	if err != nil {
		return nil, err
	}
	l.cache.Add(path, img)
	return img, nil
}

// Purge drops every cached frame, e.g. after a new directory is opened.
func (l *CachedLoader) Purge() { l.cache.Purge() }

// Differencer loads a frame pair and subtracts it.
type Differencer struct {
	loader Loader
}

// NewDifferencer returns a Differencer reading frames through loader
// (FileLoader when nil).
func NewDifferencer(loader Loader) *Differencer {
	if loader == nil {
		loader = FileLoader{}
	}
	return &Differencer{loader: loader}
}

// SubtractFiles computes the difference of prev minus cur.
func (d *Differencer) SubtractFiles(prev, cur string) (*Difference, error) {
	a, err := d.loader.LoadGray(prev)
	if err != nil {
		return nil, err
	}
	b, err := d.loader.LoadGray(cur)
	if err != nil {
		return nil, err
	}
	diff, err := Subtract(a, b)
	if err != nil {
		return nil, fmt.Errorf("%s vs %s: %w", prev, cur, err)
	}
	return diff, nil
}
