package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue(t *testing.T) {
	t.Run("pop returns items in push order", func(t *testing.T) {
		q := New[string]()
		q.Push("a")
		q.Push("b")
		q.Push("c")
		assert.Equal(t, 3, q.Len())

		for _, want := range []string{"a", "b", "c"} {
			got, err := q.Pop(context.Background())
			require.NoError(t, err)
			assert.Equal(t, want, got)
		}
		assert.Equal(t, 0, q.Len())
	})

	t.Run("pop on empty queue waits for a push", func(t *testing.T) {
		q := New[int]()
		got := make(chan int)
		go func() {
			v, err := q.Pop(context.Background())
			assert.NoError(t, err)
			got <- v
		}()

		select {
		case <-got:
			t.Fatal("pop returned before anything was pushed")
		case <-time.After(50 * time.Millisecond):
		}

		q.Push(42)
		select {
		case v := <-got:
			assert.Equal(t, 42, v)
		case <-time.After(time.Second):
			t.Fatal("pop did not return after push")
		}
	})

	t.Run("queue is reusable after draining", func(t *testing.T) {
		q := New[int]()
		q.Push(1)
		_, err := q.Pop(context.Background())
		require.NoError(t, err)

		q.Push(2)
		v, err := q.Pop(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 2, v)
	})

	t.Run("each item is delivered to exactly one consumer", func(t *testing.T) {
		const items = 1000
		const consumers = 8
		q := New[int]()
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		var mu sync.Mutex
		seen := make(map[int]int)
		received := make(chan struct{}, items)
		var wg sync.WaitGroup
		for i := 0; i < consumers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for {
					v, err := q.Pop(ctx)
					if err != nil {
						return
					}
					mu.Lock()
					seen[v]++
					mu.Unlock()
					received <- struct{}{}
				}
			}()
		}

		var producers sync.WaitGroup
		for p := 0; p < 4; p++ {
			producers.Add(1)
			go func(p int) {
				defer producers.Done()
				for i := p; i < items; i += 4 {
					q.Push(i)
				}
			}(p)
		}
		producers.Wait()

		for i := 0; i < items; i++ {
			select {
			case <-received:
			case <-time.After(5 * time.Second):
				t.Fatalf("only %d of %d items received", i, items)
			}
		}
		cancel()
		wg.Wait()

		assert.Len(t, seen, items)
		for v, n := range seen {
			assert.Equalf(t, 1, n, "item %d delivered %d times", v, n)
		}
	})

	t.Run("single producer order survives concurrent producers", func(t *testing.T) {
		q := New[[2]int]()
		var wg sync.WaitGroup
		for p := 0; p < 4; p++ {
			wg.Add(1)
			go func(p int) {
				defer wg.Done()
				for i := 0; i < 200; i++ {
					q.Push([2]int{p, i})
				}
			}(p)
		}
		wg.Wait()

		last := map[int]int{0: -1, 1: -1, 2: -1, 3: -1}
		for q.Len() > 0 {
			v, err := q.Pop(context.Background())
			require.NoError(t, err)
			assert.Greater(t, v[1], last[v[0]])
			last[v[0]] = v[1]
		}
	})

	t.Run("pop returns context error when cancelled", func(t *testing.T) {
		q := New[int]()
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		_, err := q.Pop(ctx)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("close releases items and wakes waiters", func(t *testing.T) {
		q := New[string]()
		errs := make(chan error)
		go func() {
			_, err := q.Pop(context.Background())
			errs <- err
		}()
		time.Sleep(20 * time.Millisecond)

		assert.Empty(t, q.Close())
		select {
		case err := <-errs:
			assert.ErrorIs(t, err, ErrClosed)
		case <-time.After(time.Second):
			t.Fatal("waiter not released by close")
		}
	})

	t.Run("close returns remaining items oldest first", func(t *testing.T) {
		q := New[string]()
		q.Push("x")
		q.Push("y")
		assert.Equal(t, []string{"x", "y"}, q.Close())
		assert.Equal(t, 0, q.Len())

		q.Push("z")
		assert.Equal(t, 0, q.Len())
		_, err := q.Pop(context.Background())
		assert.ErrorIs(t, err, ErrClosed)
		assert.Empty(t, q.Close())
	})
}
