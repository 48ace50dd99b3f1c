// Package workerpool provides a bounded goroutine pool used to cap
// in-flight requests against a target.
package workerpool

import (
	"context"
	"sync"
)

// Pool manages a fixed set of worker goroutines. Tasks submitted after
// Close are rejected.
type Pool struct {
	workers int
	tasks   chan func()
	wg      sync.WaitGroup
	once    sync.Once

	// mu orders Submit sends before the channel close; a bare flag
	// would let a Submit race the close and panic on send.
	mu     sync.RWMutex
	closed bool
}

// New creates a pool with the given number of workers. Workers start
// eagerly; the pool is ready for Submit immediately.
func New(workers int) *Pool {
	if workers <= 0 {
		workers = 1
	}
	p := &Pool{
		workers: workers,
		tasks:   make(chan func(), workers*4),
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for task := range p.tasks {
		if task != nil {
			task()
		}
	}
}

// Submit queues a task for execution. Returns false if the pool is
// closed. Blocks when the queue is full, which is the backpressure
// that keeps request volume bounded.
func (p *Pool) Submit(task func()) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return false
	}
	p.tasks <- task
	return true
}

// Cap returns the worker capacity.
func (p *Pool) Cap() int { return p.workers }

// Close shuts the pool down after draining queued tasks. Safe to call
// concurrently with Submit; late submissions are rejected, not panicked.
func (p *Pool) Close() {
	p.once.Do(func() {
		p.mu.Lock()
		p.closed = true
		close(p.tasks)
		p.mu.Unlock()
		p.wg.Wait()
	})
}

// ForEach runs fn for every item through the pool and blocks until all
// complete or ctx is cancelled. Items not yet started when ctx ends are
// skipped; running items are expected to honor ctx themselves.
func ForEach[T any](ctx context.Context, p *Pool, items []T, fn func(T)) {
	var wg sync.WaitGroup
	for _, item := range items {
		if ctx.Err() != nil {
			break
		}
		item := item
		wg.Add(1)
		if !p.Submit(func() {
			defer wg.Done()
			if ctx.Err() == nil {
				fn(item)
			}
		}) {
			wg.Done()
			break
		}
	}
	wg.Wait()
}
