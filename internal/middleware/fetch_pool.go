package middleware

import (
	"context"
	"fmt"
	"sync"

	drepo "TickPulse/internal/domain/repository"
)

// FetchJob is one unit of blocking fetch work executed on a pool worker.
type FetchJob func(ctx context.Context)

type job struct {
	ctx context.Context
	fn  FetchJob
}

// FetchPool offloads blocking terminal I/O to a bounded set of workers
// so the cycle scheduler and the cache read path are never blocked
// behind a slow provider call.
type FetchPool struct {
	workers int
	jobs    chan job
	metrics drepo.Metrics

	mu      sync.Mutex
	started bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

type PoolOption func(*FetchPool)

// WithWorkers sets the number of concurrent workers.
func WithWorkers(n int) PoolOption {
	return func(p *FetchPool) {
		if n > 0 {
			p.workers = n
		}
	}
}

// WithQueueSize sets the pending-job buffer.
func WithQueueSize(n int) PoolOption {
	return func(p *FetchPool) {
		if n > 0 {
			p.jobs = make(chan job, n)
		}
	}
}

// NewFetchPool creates a pool; Start launches the workers.
func NewFetchPool(metrics drepo.Metrics, opts ...PoolOption) *FetchPool {
	p := &FetchPool{
		workers: 4,
		jobs:    make(chan job, 64),
		metrics: metrics,
		stopCh:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start launches the workers. Idempotent while running.
func (p *FetchPool) Start() {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.stopCh = make(chan struct{})
	p.mu.Unlock()

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

// Stop signals the workers and waits for in-flight jobs to finish.
func (p *FetchPool) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	close(p.stopCh)
	p.mu.Unlock()

	p.wg.Wait()
}

// Submit enqueues a job, blocking while the queue is full. Returns an
// error when the pool is stopped or the context expires first.
func (p *FetchPool) Submit(ctx context.Context, fn FetchJob) error {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return fmt.Errorf("fetch pool not running")
	}
	stopCh := p.stopCh
	p.mu.Unlock()

	select {
	case p.jobs <- job{ctx: ctx, fn: fn}:
		return nil
	case <-stopCh:
		return fmt.Errorf("fetch pool stopped")
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *FetchPool) worker() {
	defer p.wg.Done()
	for {
		select {
		case <-p.stopCh:
			// Drain whatever is already queued so submitted cycle work
			// is not silently lost on shutdown.
			for {
				select {
				case j := <-p.jobs:
					p.run(j)
				default:
					return
				}
			}
		case j := <-p.jobs:
			p.run(j)
		}
	}
}

// run invokes the job even when its context is already cancelled:
// submitters may be waiting on the job for completion signalling, so
// the job itself decides what cancellation means.
func (p *FetchPool) run(j job) {
	defer func() {
		if r := recover(); r != nil {
			p.metrics.RecordError("fetch_panic")
		}
	}()
	j.fn(j.ctx)
}
