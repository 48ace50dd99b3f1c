package workerpool

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPoolRunsAllTasks(t *testing.T) {
	t.Parallel()
	p := New(4)
	defer p.Close()

	var count atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		ok := p.Submit(func() {
			defer wg.Done()
			count.Add(1)
		})
		assert.True(t, ok)
	}
	wg.Wait()
	assert.Equal(t, int64(50), count.Load())
}

func TestPoolDefaultsToOneWorker(t *testing.T) {
	t.Parallel()
	p := New(0)
	defer p.Close()
	assert.Equal(t, 1, p.Cap())
}

func TestSubmitAfterCloseIsRejected(t *testing.T) {
	t.Parallel()
	p := New(2)
	p.Close()
	assert.False(t, p.Submit(func() {}))
}

func TestCloseIsIdempotent(t *testing.T) {
	t.Parallel()
	p := New(2)
	assert.NotPanics(t, func() {
		p.Close()
		p.Close()
	})
}

func TestForEachVisitsEveryItem(t *testing.T) {
	t.Parallel()
	p := New(3)
	defer p.Close()

	var (
		mu   sync.Mutex
		seen []int
	)
	ForEach(context.Background(), p, []int{1, 2, 3, 4, 5}, func(n int) {
		mu.Lock()
		seen = append(seen, n)
		mu.Unlock()
	})
	assert.ElementsMatch(t, []int{1, 2, 3, 4, 5}, seen)
}

func TestForEachStopsOnCancelledContext(t *testing.T) {
	t.Parallel()
	p := New(2)
	defer p.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var count atomic.Int64
	ForEach(ctx, p, make([]int, 100), func(int) {
		count.Add(1)
	})
	assert.Zero(t, count.Load())
}

func TestConcurrentSubmitAndCloseNeverPanics(t *testing.T) {
	t.Parallel()
	for i := 0; i < 20; i++ {
		p := New(2)
		var wg sync.WaitGroup
		for j := 0; j < 8; j++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for k := 0; k < 50; k++ {
					if !p.Submit(func() {}) {
						return
					}
				}
			}()
		}
		p.Close()
		wg.Wait()
	}
}
