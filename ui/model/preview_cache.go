package model

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/soocke/subtractor-go/domain/subtract"
)

// PreviewCache memoizes the difference image of one stack position. It is
// keyed by position only: callers must Invalidate whenever the step, the
// threshold or the display mode changes. Not safe for concurrent use; the
// preview runs on the refresh tick.
type PreviewCache struct {
	slot *lru.Cache[int, *subtract.Difference]
}

// NewPreviewCache returns an empty cache.
func NewPreviewCache() *PreviewCache {
	// Size 1 is always valid for lru.New.
	slot, _ := lru.New[int, *subtract.Difference](1)
	return &PreviewCache{slot: slot}
}

// GetOrCompute returns the stored result for pos, or calls compute and
// stores its result. Errors are returned without touching the slot.
func (c *PreviewCache) GetOrCompute(pos int, compute func() (*subtract.Difference, error)) (*subtract.Difference, error) {
	if c == nil {
		return compute()
	}
	if d, ok := c.slot.Get(pos); ok {
		return d, nil
	}
	d, err := compute()
	if err != nil {
		return nil, err
	}
	c.slot.Add(pos, d)
	return d, nil
}

// Invalidate clears the slot unconditionally.
func (c *PreviewCache) Invalidate() {
	if c == nil {
		return
	}
	c.slot.Purge()
}

// Cached reports whether pos is currently stored.
func (c *PreviewCache) Cached(pos int) bool {
	if c == nil {
		return false
	}
	return c.slot.Contains(pos)
}
