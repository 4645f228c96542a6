// Package workerpool runs row-band fan-out for the per-pixel stages.
//
// A Pool is created once per process and shared by every stage of every
// detection, so goroutines are spawned once instead of per convolution.
//
//	pool := workerpool.New(runtime.GOMAXPROCS(0))
//	defer pool.Close()
//	pool.Rows(height, func(r0, r1 int) { ... })
package workerpool

import (
	"runtime"
	"sync"
)

// Pool is a persistent set of goroutines executing row bands.
type Pool struct {
	size int
	jobs chan job

	// mu is held for reading while Rows queues bands and for writing by
	// Close, so jobs is never closed under a pending send.
	mu     sync.RWMutex
	closed bool
}

type job struct {
	fn   func()
	done *sync.WaitGroup
}

// New starts a pool with n workers. n <= 0 means GOMAXPROCS.
func New(n int) *Pool {
	if n <= 0 {
		n = runtime.GOMAXPROCS(0)
	}
	p := &Pool{
		size: n,
		jobs: make(chan job, n*2),
	}
	for range n {
		go p.loop()
	}
	return p
}

func (p *Pool) loop() {
	for j := range p.jobs {
		j.fn()
		j.done.Done()
	}
}

// Size returns the number of workers. A nil pool reports 1.
func (p *Pool) Size() int {
	if p == nil {
		return 1
	}
	return p.size
}

// Close stops the workers after queued bands finish. Safe to call twice.
func (p *Pool) Close() {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	close(p.jobs)
}

// Rows splits [0, n) into contiguous bands, one per worker, and blocks until
// every band has run. A nil or closed pool runs fn(0, n) on the caller.
// Close may race with Rows: a call that starts after Close runs sequentially.
func (p *Pool) Rows(n int, fn func(r0, r1 int)) {
	if n <= 0 {
		return
	}
	workers := min(p.Size(), n)
	if workers == 1 {
		fn(0, n)
		return
	}

	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		fn(0, n)
		return
	}
	band := (n + workers - 1) / workers
	var wg sync.WaitGroup
	for start := 0; start < n; start += band {
		end := min(start+band, n)
		wg.Add(1)
		p.jobs <- job{
			fn:   func() { fn(start, end) },
			done: &wg,
		}
	}
	p.mu.RUnlock()
	wg.Wait()
}
