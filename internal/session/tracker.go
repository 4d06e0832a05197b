package session

import (
	"slices"
	"sync"
)

// CompletionTracker remembers which frames completed and which failed.
// A frame that failed and later completed counts as completed.
//
// Thread-safety: CompletionTracker is safe for concurrent use.
type CompletionTracker struct {
	mu        sync.RWMutex
	completed map[int]bool
	failed    map[int]bool
}

// NewCompletionTracker creates an empty tracker.
func NewCompletionTracker() *CompletionTracker {
	return &CompletionTracker{
		completed: make(map[int]bool),
		failed:    make(map[int]bool),
	}
}

// IsFrameCompleted reports whether every view sink resolved for frame n.
func (t *CompletionTracker) IsFrameCompleted(n int) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.completed[n]
}

// IsFrameFailed reports whether frame n was run and has not completed.
func (t *CompletionTracker) IsFrameFailed(n int) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.failed[n] && !t.completed[n]
}

// Completed returns the completed frames in ascending order.
func (t *CompletionTracker) Completed() []int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return sortedKeys(t.completed)
}

// Failed returns the frames that were run but never completed.
func (t *CompletionTracker) Failed() []int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var out []int
	for n := range t.failed {
		if !t.completed[n] {
			out = append(out, n)
		}
	}
	slices.Sort(out)
	return out
}

// Reset forgets every frame, e.g. after a structural edit invalidates
// what earlier frames produced.
func (t *CompletionTracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.completed = make(map[int]bool)
	t.failed = make(map[int]bool)
}

func (t *CompletionTracker) mark(n int, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if ok {
		t.completed[n] = true
	} else {
		t.failed[n] = true
	}
}

func sortedKeys(m map[int]bool) []int {
	out := make([]int, 0, len(m))
	for n := range m {
		out = append(out, n)
	}
	slices.Sort(out)
	return out
}
