// Copyright (c) 2021 Nutanix, Inc.
package internal

import (
	"sync"
	"sync/atomic"
)

// Lazy holds a value that is built on first use. A build that fails is retried by the next Get.
type Lazy[T any] struct {
	// done is set once value holds a successfully built result
	done  atomic.Bool
	m     sync.Mutex
	value T
}

// Get returns the held value, calling build to produce it if no earlier call succeeded.
// Concurrent callers wait for a build in progress rather than starting their own.
// If build fails its error is returned and nothing is kept.
func (l *Lazy[T]) Get(build func() (T, error)) (T, error) {
	if l.done.Load() {
		return l.value, nil
	}
	return l.getSlow(build)
}

func (l *Lazy[T]) getSlow(build func() (T, error)) (T, error) {
	l.m.Lock()
	defer l.m.Unlock()
	if !l.done.Load() {
		v, err := build()
		if err != nil {
			var zero T
			return zero, err
		}
		l.value = v
		l.done.Store(true)
	}
	return l.value, nil
}

// Peek returns the held value and whether one has been built, without building it
func (l *Lazy[T]) Peek() (T, bool) {
	l.m.Lock()
	defer l.m.Unlock()
	return l.value, l.done.Load()
}
