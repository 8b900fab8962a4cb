package engine

import (
	"context"
	"errors"
	"sync"
)

// errQueueClosed is returned by acquire once the queue is closed.
var errQueueClosed = errors.New("writer queue closed")

// writerQueue serializes mutating requests in arrival order.
//
// Each request takes a ticket. The ticket at the head of the queue holds
// the turn; the caller runs its request (including any interceptor or
// resolver that blocks) and then releases, which hands the turn to the
// next ticket. Reads never touch the queue.
//
// The queue is unbounded: callers block in acquire, not in enqueue.
type writerQueue struct {
	mu      sync.Mutex
	waiting []*ticket
	closed  bool
}

// ticket is one caller's place in line. ready is closed when the caller
// holds the turn or has been evicted; err distinguishes the two.
type ticket struct {
	ready chan struct{}
	err   error
}

func newWriterQueue() *writerQueue {
	return &writerQueue{
		waiting: make([]*ticket, 0, 8),
	}
}

// acquire blocks until the caller holds the turn.
//
// If ctx is done while waiting, the ticket leaves the line and ctx.Err() is
// returned. If the turn was handed over in the same instant, it is passed on
// so the queue never stalls.
func (q *writerQueue) acquire(ctx context.Context) (*ticket, error) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil, errQueueClosed
	}
	t := &ticket{ready: make(chan struct{})}
	q.waiting = append(q.waiting, t)
	if len(q.waiting) == 1 {
		close(t.ready)
	}
	q.mu.Unlock()

	select {
	case <-t.ready:
		if t.err != nil {
			return nil, t.err
		}
		return t, nil
	case <-ctx.Done():
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	select {
	case <-t.ready:
		if t.err == nil {
			q.advanceLocked()
		}
	default:
		q.removeLocked(t)
	}
	return nil, ctx.Err()
}

// release hands the turn to the next ticket.
// Must be called exactly once for every successful acquire.
func (q *writerQueue) release(t *ticket) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.waiting) == 0 || q.waiting[0] != t {
		return
	}
	q.advanceLocked()
}

// advanceLocked drops the head and wakes the new head.
func (q *writerQueue) advanceLocked() {
	q.waiting[0] = nil
	q.waiting = q.waiting[1:]
	if len(q.waiting) == 0 {
		q.waiting = make([]*ticket, 0, 8)
		return
	}
	close(q.waiting[0].ready)
}

func (q *writerQueue) removeLocked(t *ticket) {
	for i, w := range q.waiting {
		if w == t {
			q.waiting = append(q.waiting[:i], q.waiting[i+1:]...)
			return
		}
	}
}

// pending returns the number of tickets in line, including the holder.
func (q *writerQueue) pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.waiting)
}

// close rejects new tickets and evicts every waiter behind the holder.
// The current holder finishes its request normally.
func (q *writerQueue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true

	if len(q.waiting) <= 1 {
		return
	}
	for _, t := range q.waiting[1:] {
		t.err = errQueueClosed
		close(t.ready)
	}
	q.waiting = q.waiting[:1]
}
