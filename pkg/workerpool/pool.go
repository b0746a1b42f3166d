// Package workerpool bounds CPU-heavy work (image thumbnails) to a fixed set
// of goroutines. Submit never blocks; Do waits for the result.
//
//	pool := workerpool.New("thumbnails", runtime.NumCPU())
//	defer pool.Shutdown()
//
//	err := pool.Do(ctx, func(ctx context.Context) error {
//	    return makeThumbnail(ctx, key)
//	})
//	if errors.Is(err, workerpool.ErrPoolFull) { /* skip the thumbnail */ }
package workerpool

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/rrnagar/marketplace/pkg/logger"
)

var (
	ErrPoolFull   = errors.New("workerpool: pool is full")
	ErrPoolClosed = errors.New("workerpool: pool is closed")
)

type Task func(ctx context.Context) error

type item struct {
	ctx  context.Context
	task Task
	done chan error // nil for fire-and-forget
}

type Pool struct {
	name   string
	tasks  chan item
	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
}

// New starts size workers with a queue of 2*size pending tasks.
func New(name string, size int) *Pool {
	if size <= 0 {
		size = 1
	}
	p := &Pool{name: name, tasks: make(chan item, size*2)}
	for i := 0; i < size; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

// Submit queues task and returns immediately.
func (p *Pool) Submit(ctx context.Context, task Task) error {
	return p.enqueue(item{ctx: context.WithoutCancel(ctx), task: task}, false)
}

// Do queues task and waits for it to finish or for ctx to end. It returns
// ErrPoolFull rather than waiting for a free slot.
func (p *Pool) Do(ctx context.Context, task Task) error {
	done := make(chan error, 1)
	if err := p.enqueue(item{ctx: ctx, task: task, done: done}, false); err != nil {
		return err
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SubmitWait queues task, blocking while the queue is full.
func (p *Pool) SubmitWait(ctx context.Context, task Task) error {
	return p.enqueue(item{ctx: context.WithoutCancel(ctx), task: task}, true)
}

func (p *Pool) enqueue(it item, block bool) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}
	if block {
		p.tasks <- it
		return nil
	}
	select {
	case p.tasks <- it:
		return nil
	default:
		return ErrPoolFull
	}
}

// Shutdown stops accepting tasks and waits for queued ones to finish.
// Safe to call more than once.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.tasks)
	p.mu.Unlock()
	p.wg.Wait()
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for it := range p.tasks {
		err := p.run(it)
		if it.done != nil {
			it.done <- err
		} else if err != nil {
			logger.WithCtx(it.ctx).Warn("workerpool: task failed", "pool", p.name, "error", err)
		}
	}
}

func (p *Pool) run(it item) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("workerpool: task panicked", "pool", p.name, "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("workerpool: %s task panicked: %v", p.name, r)
		}
	}()
	if err := it.ctx.Err(); err != nil {
		return err
	}
	return it.task(it.ctx)
}
