package internal

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLazy(t *testing.T) {
	t.Run("build gets called once if it succeeds", func(t *testing.T) {
		calls := 0
		var l Lazy[int]
		for i := 1; i < 5; i++ {
			v, err := l.Get(func() (int, error) {
				calls++
				return 7, nil
			})
			assert.NoError(t, err)
			assert.Equal(t, 7, v)
		}
		assert.Equal(t, 1, calls)
	})

	t.Run("build gets called n times if it fails n times", func(t *testing.T) {
		calls := 0
		var l Lazy[string]
		for i := 0; i < 5; i++ {
			v, err := l.Get(func() (string, error) {
				calls++
				return "ignored", fmt.Errorf("error")
			})
			assert.EqualError(t, err, "error")
			assert.Empty(t, v)
		}
		assert.Equal(t, 5, calls)
		_, ok := l.Peek()
		assert.False(t, ok)
	})

	t.Run("build does not get called after it succeeds", func(t *testing.T) {
		calls := 0
		var l Lazy[int]
		for i := 0; i < 5; i++ {
			_, err := l.Get(func() (int, error) {
				calls++
				return 0, fmt.Errorf("error")
			})
			assert.Error(t, err)
		}
		for i := 1; i < 5; i++ {
			v, err := l.Get(func() (int, error) {
				calls++
				return calls, nil
			})
			assert.NoError(t, err)
			assert.Equal(t, 6, v)
		}
		assert.Equal(t, 6, calls)

		v, ok := l.Peek()
		assert.True(t, ok)
		assert.Equal(t, 6, v)
	})

	t.Run("concurrent callers share one build", func(t *testing.T) {
		var mu sync.Mutex
		calls := 0
		var l Lazy[int]
		var wg sync.WaitGroup
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := l.Get(func() (int, error) {
					mu.Lock()
					defer mu.Unlock()
					calls++
					return 1, nil
				})
				assert.NoError(t, err)
			}()
		}
		wg.Wait()
		assert.Equal(t, 1, calls)
	})
}
