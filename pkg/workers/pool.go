// Package workers bounds how many blocking jobs (transcoding, speech calls)
// run at once across all conversations.
package workers

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

const DefaultSize = 4

type Pool struct {
	sem     *semaphore.Weighted
	size    int64
	running atomic.Int64
}

func NewPool(size int) *Pool {
	if size <= 0 {
		size = DefaultSize
	}
	return &Pool{
		sem:  semaphore.NewWeighted(int64(size)),
		size: int64(size),
	}
}

// Size reports the pool capacity.
func (p *Pool) Size() int { return int(p.size) }

// Running reports how many jobs currently hold a slot.
func (p *Pool) Running() int { return int(p.running.Load()) }

// Run waits for a free slot and executes fn on the calling goroutine. It
// returns ctx.Err() if the context ends before a slot is acquired.
func (p *Pool) Run(ctx context.Context, fn func(context.Context) error) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	p.running.Add(1)
	defer func() {
		p.running.Add(-1)
		p.sem.Release(1)
	}()
	return fn(ctx)
}

// Do is Run for jobs that produce a value.
func Do[T any](ctx context.Context, p *Pool, fn func(context.Context) (T, error)) (T, error) {
	var out T
	err := p.Run(ctx, func(ctx context.Context) error {
		v, err := fn(ctx)
		out = v
		return err
	})
	return out, err
}
