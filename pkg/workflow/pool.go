package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

const DefaultPoolSize = 16

// Task is work handed to the pool.
type Task func(ctx context.Context) error

// Pool runs fire-and-forget tasks with bounded concurrency. Submit never blocks; tasks
// beyond the bound wait for a slot and are visible through Pending.
type Pool struct {
	sem    *semaphore.Weighted
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
	logger *slog.Logger

	mu      sync.RWMutex
	closed  bool
	pending atomic.Int64
	running atomic.Int64
	failed  atomic.Int64

	onDone func(name string, err error)
}

func NewPool(size int, logger *slog.Logger) *Pool {
	if size <= 0 {
		size = DefaultPoolSize
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Pool{
		sem:    semaphore.NewWeighted(int64(size)),
		ctx:    ctx,
		cancel: cancel,
		logger: logger,
	}
}

// OnDone registers a callback invoked after every task finishes.
func (p *Pool) OnDone(fn func(name string, err error)) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.onDone = fn
}

// Submit schedules task. The task context is detached from ctx cancellation but keeps
// its values; it is cancelled only when the pool is force-closed.
func (p *Pool) Submit(ctx context.Context, name string, task Task) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		p.logger.WarnContext(ctx, "pool closed, task dropped", "task", name)

		return false
	}

	p.wg.Add(1)
	p.pending.Add(1)

	go func() {
		defer p.wg.Done()

		if err := p.sem.Acquire(p.ctx, 1); err != nil {
			p.pending.Add(-1)
			p.logger.WarnContext(ctx, "task dropped before start", "task", name, "error", err)

			return
		}

		p.pending.Add(-1)
		p.running.Add(1)

		defer func() {
			p.running.Add(-1)
			p.sem.Release(1)
		}()

		taskCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		stop := context.AfterFunc(p.ctx, cancel)

		defer func() {
			stop()
			cancel()
		}()

		err := p.run(taskCtx, task)
		if err != nil {
			p.failed.Add(1)
			p.logger.ErrorContext(taskCtx, "fire-and-forget task failed", "task", name, "error", err)
		}

		p.mu.RLock()
		onDone := p.onDone
		p.mu.RUnlock()

		if onDone != nil {
			onDone(name, err)
		}
	}()

	return true
}

func (p *Pool) run(ctx context.Context, task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	return task(ctx)
}

func (p *Pool) Pending() int64 { return p.pending.Load() }
func (p *Pool) Running() int64 { return p.running.Load() }
func (p *Pool) Failed() int64  { return p.failed.Load() }

// Close stops accepting tasks and waits for submitted ones. When ctx expires first,
// remaining tasks are cancelled and ctx's error is returned.
func (p *Pool) Close(ctx context.Context) error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	done := make(chan struct{})

	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()

		return nil
	case <-ctx.Done():
		p.cancel()

		return ctx.Err()
	}
}
