package session

import (
	"sync"

	"github.com/roach88/dopgraph/internal/document"
)

// Edit is a structural change to the document, applied between passes.
type Edit func(d *document.Document) error

// editQueue is a thread-safe FIFO of pending edits.
//
// Edits may be submitted from any goroutine, including from inside a
// running pass; the frame loop drains the queue before the next pass. The
// signal channel (buffered, size 1) lets Watch wait for edits with a
// context.
type editQueue struct {
	mu     sync.Mutex
	edits  []Edit
	closed bool
	signal chan struct{}
}

func newEditQueue() *editQueue {
	return &editQueue{
		edits:  make([]Edit, 0, 16),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue appends an edit. Returns false if the queue is closed.
func (q *editQueue) Enqueue(e Edit) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.edits = append(q.edits, e)

	// Non-blocking; the buffer of 1 coalesces signals.
	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// Drain removes and returns every pending edit in submission order.
func (q *editQueue) Drain() []Edit {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.edits) == 0 {
		return nil
	}
	out := q.edits
	q.edits = make([]Edit, 0, cap(out))
	return out
}

// Wait returns a channel that signals when edits may be available. It is
// closed when the queue is closed.
func (q *editQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the number of pending edits.
func (q *editQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.edits)
}

// Close rejects further edits and wakes any waiter.
func (q *editQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}
