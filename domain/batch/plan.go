package batch

import "github.com/soocke/subtractor-go/domain/stack"

// Task is one frame pair. Seq is the ordinal within the normalized range and
// orders the output rows.
type Task struct {
	Seq  int
	Prev string
	Cur  string
}

// Bounds normalizes a requested range. The lower bound moves back one step so
// the frame before Start serves as the first previous frame.
func (p Params) Bounds() (lo, hi int) {
	lo = max(min(p.Start, p.End)-p.Step, 0)
	hi = max(p.Start, p.End)
	return lo, hi
}

// Plan lists the pairs a run over frames measures. Pairs whose current frame
// lies beyond the stack are left out. Step must be >= 1.
func Plan(frames *stack.Stack, p Params) []Task {
	if p.Step < 1 {
		return nil
	}
	lo, hi := p.Bounds()
	var tasks []Task
	for k, a := 0, lo; a < hi; k, a = k+1, a+p.Step {
		prev, ok := frames.Frame(a)
		if !ok {
			continue
		}
		cur, ok := frames.Frame(a + p.Step)
		if !ok {
			continue
		}
		tasks = append(tasks, Task{Seq: k, Prev: prev, Cur: cur})
	}
	return tasks
}
