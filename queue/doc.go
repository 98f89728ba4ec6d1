// Copyright (c) 2021 Nutanix, Inc.
/*
Package queue provides Queue, an unbounded, goroutine-safe FIFO whose Pop blocks until an item
is available. It is the synchronization primitive the message queue client is built on: the
application produces onto one queue that the pusher consumes, and the puller produces onto
another that the application consumes.

A queue is created with New:
	q := queue.New[*request.Request]()

Producers append with Push, which never blocks:
	q.Push(r)

Consumers take the head with Pop. Pop waits for an item, for the context to end, or for the
queue to be closed:
	r, err := q.Pop(ctx)

Close releases the queue and hands back anything still queued. Pops waiting on a closed queue
return ErrClosed.
	leftovers := q.Close()
*/
package queue
