package event

import (
	"context"
	"sync"
)

// Queue is an unbounded FIFO of events that is safe for concurrent
// producers. Push never blocks; Pop blocks until an event is available.
//
// Cross-producer order is the order in which Push calls acquired the
// queue lock, which gives every producer its own submission order.
type Queue struct {
	mu     sync.Mutex
	items  []Event
	closed bool

	// notify holds at most one pending wake-up for a blocked Pop.
	notify chan struct{}
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{
		notify: make(chan struct{}, 1),
	}
}

// Push appends e to the tail. It returns ErrQueueClosed after Close and
// ErrNilEvent for a nil event.
func (q *Queue) Push(e Event) error {
	if e == nil {
		return ErrNilEvent
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrQueueClosed
	}
	q.items = append(q.items, e)
	q.mu.Unlock()

	q.wake()
	return nil
}

// Pop removes and returns the head, blocking while the queue is empty.
// It returns ctx.Err() if ctx is done first, and ErrQueueClosed once the
// queue is closed and empty.
func (q *Queue) Pop(ctx context.Context) (Event, error) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			e := q.popLocked()
			q.mu.Unlock()
			return e, nil
		}
		closed := q.closed
		q.mu.Unlock()

		if closed {
			return nil, ErrQueueClosed
		}

		select {
		case <-q.notify:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// TryPop removes and returns the head without blocking.
func (q *Queue) TryPop() (Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return nil, false
	}
	return q.popLocked(), true
}

// popLocked removes the head. The backing array is released once the
// queue drains. Callers hold q.mu and have checked the queue is not empty.
func (q *Queue) popLocked() Event {
	e := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	if len(q.items) == 0 {
		q.items = nil
	}
	return e
}

// Len returns the number of queued events.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close stops the queue from accepting events. Events already queued can
// still be popped.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.wake()
}

// Closed reports whether Close has been called.
func (q *Queue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

func (q *Queue) wake() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}
