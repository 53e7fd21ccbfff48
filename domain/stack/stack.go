// Package stack holds the ordered list of frame files discovered in a working
// directory together with the cursor used by the interactive preview.
package stack

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
)

var (
	// ErrNoFramesFound is returned when no discovery pattern matched a file.
	ErrNoFramesFound = errors.New("stack: no frames found")
	// ErrUnreadable is returned when the directory cannot be listed.
	ErrUnreadable = errors.New("stack: directory unreadable")
)

// DefaultPatterns are tried in order; the first pattern with any match wins.
var DefaultPatterns = []string{"*.jpg", "*.tif"}

// Stack is an ordered, immutable list of frame paths plus a cursor.
// The frame slice is never mutated after Discover, so snapshots share it
// freely across goroutines. The cursor is not synchronized: it belongs to the
// goroutine driving the UI.
type Stack struct {
	dir    string
	frames []string
	pos    int
}

// Discover lists dir and returns a stack positioned at index 0. Patterns are
// filepath.Match globs applied to file names; nil means DefaultPatterns.
// Matches of different patterns are never merged.
func Discover(dir string, patterns []string) (*Stack, error) {
	if len(patterns) == 0 {
		patterns = DefaultPatterns
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrUnreadable, dir, err)
	}
	for _, pattern := range patterns {
		var frames []string
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			ok, err := filepath.Match(pattern, e.Name())
			if err != nil {
				return nil, fmt.Errorf("stack: bad pattern %q: %w", pattern, err)
			}
			if ok {
				frames = append(frames, filepath.Join(dir, e.Name()))
			}
		}
		if len(frames) > 0 {
			slices.Sort(frames)
			return &Stack{dir: dir, frames: frames}, nil
		}
	}
	return nil, fmt.Errorf("%w in %s (patterns %v)", ErrNoFramesFound, dir, patterns)
}

// FromFrames builds a stack from an explicit list, sorted lexicographically.
func FromFrames(frames []string) *Stack {
	sorted := slices.Clone(frames)
	slices.Sort(sorted)
	return &Stack{frames: sorted}
}

// Dir returns the directory the stack was discovered in (empty for FromFrames).
func (s *Stack) Dir() string {
	if s == nil {
		return ""
	}
	return s.dir
}

func (s *Stack) Len() int {
	if s == nil {
		return 0
	}
	return len(s.frames)
}

// MaxIndex is Len()-1, or 0 for an empty stack.
func (s *Stack) MaxIndex() int {
	if s.Len() == 0 {
		return 0
	}
	return len(s.frames) - 1
}

// Frame returns the path at index i.
func (s *Stack) Frame(i int) (string, bool) {
	if s == nil || i < 0 || i >= len(s.frames) {
		return "", false
	}
	return s.frames[i], true
}

// Frames returns a copy of the ordered frame list.
func (s *Stack) Frames() []string {
	if s == nil {
		return nil
	}
	return slices.Clone(s.frames)
}

func (s *Stack) Position() int {
	if s == nil {
		return 0
	}
	return s.pos
}

// SetPosition moves the cursor, clamped to [0, MaxIndex].
func (s *Stack) SetPosition(pos int) {
	if s == nil {
		return
	}
	s.pos = max(0, min(pos, s.MaxIndex()))
}

// Next advances the cursor, wrapping to the first frame.
func (s *Stack) Next() {
	if s.Len() == 0 {
		return
	}
	s.pos = (s.pos + 1) % len(s.frames)
}

// Prev moves the cursor back, wrapping to the last frame.
func (s *Stack) Prev() {
	if s.Len() == 0 {
		return
	}
	if s.pos == 0 {
		s.pos = len(s.frames) - 1
		return
	}
	s.pos--
}

// CurrentPair returns (previous, current) for the given step. previous is
// empty with ok=false when position < step; current is missing only when the
// stack is empty.
func (s *Stack) CurrentPair(step int) (prev string, hasPrev bool, cur string, hasCur bool) {
	cur, hasCur = s.Frame(s.Position())
	if step >= 1 && s.Position() >= step {
		prev, hasPrev = s.Frame(s.Position() - step)
	}
	return prev, hasPrev, cur, hasCur
}

// Snapshot returns a stack sharing the same frame list with its own cursor.
// Batch runs take a snapshot so the preview can keep moving independently.
func (s *Stack) Snapshot() *Stack {
	if s == nil {
		return &Stack{}
	}
	return &Stack{dir: s.dir, frames: s.frames, pos: s.pos}
}
