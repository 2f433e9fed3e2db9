package queue

import (
	"context"
	"sync"
)

type (
	// Q is a FIFO shared by any number of producers and consumers.
	//
	// A zero capacity means the queue grows without bound, otherwise Push
	// waits for room. Close marks the receiving side as gone: every Push
	// after it fails with ErrClosed while consumers can still drain what was
	// queued before.
	Q[T any] struct {
		mutex    sync.Mutex
		items    []T
		capacity int
		closed   bool

		done  chan struct{}
		ready chan struct{}
		room  chan struct{}
	}

	errMsg string
)

const (
	ErrClosed = errMsg("queue: closed")
)

func (e errMsg) Error() string { return string(e) }

func New[T any](capacity int) *Q[T] {
	if capacity < 0 {
		capacity = 0
	}
	return &Q[T]{
		capacity: capacity,
		done:     make(chan struct{}),
		ready:    make(chan struct{}, 1),
		room:     make(chan struct{}, 1),
	}
}

func (q *Q[T]) Push(ctx context.Context, v T) error {
	for {
		q.mutex.Lock()
		if q.closed {
			q.mutex.Unlock()
			return ErrClosed
		}
		if q.capacity == 0 || len(q.items) < q.capacity {
			q.items = append(q.items, v)
			q.mutex.Unlock()
			signal(q.ready)
			return nil
		}
		q.mutex.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-q.done:
		case <-q.room:
		}
	}
}

// TryPop never blocks.
func (q *Q[T]) TryPop() (T, bool) {
	var zero T
	q.mutex.Lock()
	if len(q.items) == 0 {
		q.mutex.Unlock()
		return zero, false
	}
	v := q.items[0]
	q.items[0] = zero
	q.items = q.items[1:]
	remaining := len(q.items)
	q.mutex.Unlock()

	signal(q.room)
	if remaining > 0 {
		// another consumer might be parked on ready
		signal(q.ready)
	}
	return v, true
}

// Pop waits for an item. Once the queue is closed and drained it returns
// ErrClosed.
func (q *Q[T]) Pop(ctx context.Context) (T, error) {
	var zero T
	for {
		if v, ok := q.TryPop(); ok {
			return v, nil
		}
		if q.Closed() {
			return zero, ErrClosed
		}
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-q.done:
		case <-q.ready:
		}
	}
}

func (q *Q[T]) Close() {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.done)
}

func (q *Q[T]) Closed() bool {
	q.mutex.Lock()
	closed := q.closed
	q.mutex.Unlock()
	return closed
}

func (q *Q[T]) Len() int {
	q.mutex.Lock()
	sz := len(q.items)
	q.mutex.Unlock()
	return sz
}

func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
