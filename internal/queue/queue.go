// Package queue provides a bounded FIFO that blocks producers while full and
// consumers while empty. It is the hand-off between the decode worker and
// the dispatch loops.
package queue

import (
	"context"
	"errors"
	"sync"
)

// ErrInvalidCapacity is returned by New for a capacity below one.
var ErrInvalidCapacity = errors.New("queue: capacity must be at least 1")

// Queue is a bounded FIFO guarded by one mutex and two condition variables.
// Every waiter re-checks its predicate after waking, so spurious wake-ups
// are harmless.
//
// Len never exceeds Cap except transiently after Replace. Pop must not be
// called from code running inside another Pop's consumer callback on the
// same queue.
type Queue[T any] struct {
	mu       sync.Mutex
	notEmpty *sync.Cond
	notFull  *sync.Cond
	items    []T
	capacity int
}

// New returns an empty queue holding at most capacity items.
func New[T any](capacity int) (*Queue[T], error) {
	if capacity < 1 {
		return nil, ErrInvalidCapacity
	}
	q := &Queue[T]{
		items:    make([]T, 0, capacity),
		capacity: capacity,
	}
	q.notEmpty = sync.NewCond(&q.mu)
	q.notFull = sync.NewCond(&q.mu)
	return q, nil
}

// Push appends item, blocking while the queue is full. It returns ctx.Err()
// without enqueueing if ctx ends first. Items are never dropped silently.
func (q *Queue[T]) Push(ctx context.Context, item T) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) >= q.capacity {
		// Cond has no select; wake every waiter on cancellation and let
		// each one re-check ctx.
		stop := context.AfterFunc(ctx, func() {
			q.mu.Lock()
			q.notFull.Broadcast()
			q.mu.Unlock()
		})
		defer stop()

		for len(q.items) >= q.capacity {
			if err := ctx.Err(); err != nil {
				return err
			}
			q.notFull.Wait()
		}
	}

	q.items = append(q.items, item)
	q.notEmpty.Signal()
	return nil
}

// Pop removes and returns the oldest item, blocking while the queue is
// empty.
func (q *Queue[T]) Pop() T {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.items) == 0 {
		q.notEmpty.Wait()
	}
	return q.popLocked()
}

// PopOrEmpty removes and returns the oldest item without blocking. ok is
// false when the queue was empty.
func (q *Queue[T]) PopOrEmpty() (item T, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return item, false
	}
	return q.popLocked(), true
}

func (q *Queue[T]) popLocked() T {
	var zero T
	item := q.items[0]
	q.items[0] = zero
	q.items = q.items[1:]
	q.notFull.Signal()
	return item
}

// Replace atomically swaps the queue contents for items and wakes every
// blocked producer and consumer. It returns the displaced items so the
// caller can release them.
func (q *Queue[T]) Replace(items []T) []T {
	q.mu.Lock()
	defer q.mu.Unlock()

	old := q.items
	q.items = make([]T, len(items), max(len(items), q.capacity))
	copy(q.items, items)
	q.notEmpty.Broadcast()
	q.notFull.Broadcast()
	return old
}

// Len returns the current number of queued items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Cap returns the capacity the queue was created with.
func (q *Queue[T]) Cap() int {
	return q.capacity
}
