package threadpool

import (
	"context"
	"sync"
)

const (
	initialResultCapacity = 64
)

// resultQueue is the unbounded FIFO of completed tasks shared by all workers.
//
// Tasks come out in the order they were pushed, which is the order in which
// workers acquired the queue lock after finishing them. Waiters are woken
// through a capacity-1 notify channel; a consumer that leaves tasks behind
// passes the wakeup on, so no waiter sleeps while results are queued.
type resultQueue[R any] struct {
	mu         sync.Mutex
	buf        []*Task[R] // circular buffer
	head, size int
	closed     bool

	notify chan struct{}
	done   chan struct{}
}

func newResultQueue[R any](capacity int) *resultQueue[R] {
	if capacity <= 0 {
		capacity = initialResultCapacity
	}
	return &resultQueue[R]{
		buf:    make([]*Task[R], capacity),
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// Len returns the number of tasks waiting to be retrieved.
func (q *resultQueue[R]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.size
}

// push appends a completed task. It must not be called after close.
func (q *resultQueue[R]) push(t *Task[R]) {
	q.mu.Lock()
	if q.size == len(q.buf) {
		q.grow()
	}
	q.buf[(q.head+q.size)%len(q.buf)] = t
	q.size++
	q.mu.Unlock()
	q.wake()
}

// pop removes the oldest task, blocking until one is available.
// It returns ErrPoolClosed once the queue is closed and empty.
func (q *resultQueue[R]) pop(ctx context.Context) (*Task[R], error) {
	for {
		q.mu.Lock()
		if q.size > 0 {
			t := q.buf[q.head]
			q.buf[q.head] = nil
			q.head = (q.head + 1) % len(q.buf)
			q.size--
			more := q.size > 0
			q.mu.Unlock()
			if more {
				q.wake()
			}
			return t, nil
		}
		closed := q.closed
		q.mu.Unlock()

		if closed {
			return nil, ErrPoolClosed
		}
		select {
		case <-q.notify:
		case <-q.done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// close marks the end of input. Queued tasks stay retrievable.
func (q *resultQueue[R]) close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.done)
}

func (q *resultQueue[R]) wake() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// grow doubles the buffer and unwraps it so head is zero again.
func (q *resultQueue[R]) grow() {
	buf := make([]*Task[R], len(q.buf)*2)
	n := copy(buf, q.buf[q.head:])
	copy(buf[n:], q.buf[:q.head])
	q.buf = buf
	q.head = 0
}
