// Package workerpool bounds how many background jobs run at once.
package workerpool

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

type Pool struct {
	sem *semaphore.Weighted
	wg  sync.WaitGroup
}

func New(size int) *Pool {
	if size < 1 {
		size = 1
	}
	return &Pool{sem: semaphore.NewWeighted(int64(size))}
}

// Go blocks until a slot is free, then runs fn in its own goroutine.
// It returns ctx.Err() when ctx ends before a slot frees up; fn is not run.
func (p *Pool) Go(ctx context.Context, fn func()) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer p.sem.Release(1)
		fn()
	}()
	return nil
}

// Wait blocks until every started job has returned.
func (p *Pool) Wait() {
	p.wg.Wait()
}
