package agent

import (
	"sync"
	"time"
)

const (
	windowInitial = 1
	windowCap     = 2048
)

// kernelWindow implements the adaptive launch-count heuristic of spec.md
// §4.8, bounding how long the agent can go between forced synchronizations
// so that DROP_LOCK handling never has to drain an unbounded backlog. It
// has its own mutex (spec.md §5: "a separate mutex protects the
// kernel-window counter to avoid contention with work submission").
type kernelWindow struct {
	mu    sync.Mutex
	size  int
	since int
}

func newKernelWindow() *kernelWindow {
	return &kernelWindow{size: windowInitial}
}

// reset returns the counter to the initial window, used on re-acquiring
// ownership of the lock (spec.md §4.8 "reset ... whenever ownership is
// re-acquired").
func (w *kernelWindow) reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.size = windowInitial
	w.since = 0
}

// afterLaunch records one launch/copy and, if the window has elapsed,
// synchronizes and re-tunes the window size based on how long that took.
func (w *kernelWindow) afterLaunch(synchronize func() error) error {
	w.mu.Lock()
	w.since++
	due := w.since >= w.size
	w.mu.Unlock()

	if !due {
		return nil
	}

	start := time.Now()
	err := synchronize()
	elapsed := time.Since(start)

	w.mu.Lock()
	w.since = 0
	switch {
	case elapsed >= 10*time.Second:
		w.size = windowInitial
	case elapsed >= time.Second:
		w.size /= 2
		if w.size < 1 {
			w.size = 1
		}
	default:
		w.size *= 2
		if w.size > windowCap {
			w.size = windowCap
		}
	}
	w.mu.Unlock()

	return err
}

func (w *kernelWindow) current() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.size
}
