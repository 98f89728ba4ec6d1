// Copyright (c) 2021 Nutanix, Inc.
package queue

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned by Pop once the queue has been closed and drained
var ErrClosed = errors.New("queue closed")

type node[T any] struct {
	item T
	next *node[T]
}

// Queue is an unbounded FIFO safe for concurrent producers and consumers
type Queue[T any] struct {
	// mu guards head, tail, size and closed for every operation.
	// ready is only used to wait for size > 0.
	mu     sync.Mutex
	ready  *sync.Cond
	head   *node[T]
	tail   *node[T]
	size   int
	closed bool
}

// New creates an empty queue
func New[T any]() *Queue[T] {
	q := &Queue[T]{}
	q.ready = sync.NewCond(&q.mu)
	return q
}

// Push appends item to the tail of the queue and makes exactly one waiting Pop eligible to proceed.
// Pushing onto a closed queue discards the item.
func (q *Queue[T]) Push(item T) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	n := &node[T]{item: item}
	if q.tail == nil {
		q.head = n
	} else {
		q.tail.next = n
	}
	q.tail = n
	q.size++
	q.ready.Signal()
}

// Pop removes and returns the head of the queue, waiting for an item if the queue is empty.
// It returns ctx.Err() if ctx is done first and ErrClosed if the queue is closed while empty.
func (q *Queue[T]) Pop(ctx context.Context) (T, error) {
	var zero T

	// sync.Cond has no notion of a context, so wake every waiter when ctx ends
	// and let each one re-check its own context.
	stop := context.AfterFunc(ctx, func() {
		q.mu.Lock()
		defer q.mu.Unlock()
		q.ready.Broadcast()
	})
	defer stop()

	q.mu.Lock()
	defer q.mu.Unlock()

	for q.size == 0 {
		if q.closed {
			return zero, ErrClosed
		}
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		q.ready.Wait()
	}

	n := q.head
	q.head = n.next
	if q.head == nil {
		q.tail = nil
	}
	q.size--
	return n.item, nil
}

// Len returns the number of items currently available
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.size
}

// Close marks the queue closed and returns the items it still held, oldest first.
// Waiting and future Pops return ErrClosed. Close is idempotent.
func (q *Queue[T]) Close() []T {
	q.mu.Lock()
	defer q.mu.Unlock()

	items := make([]T, 0, q.size)
	for n := q.head; n != nil; n = n.next {
		items = append(items, n.item)
	}
	q.head, q.tail, q.size = nil, nil, 0
	q.closed = true
	q.ready.Broadcast()
	return items
}
