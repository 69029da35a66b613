// Package workpool runs blocking jobs on a bounded number of goroutines.
package workpool

import (
	"context"
	"errors"

	"golang.org/x/sync/semaphore"
)

// DefaultSize is used when New is given a non-positive size.
const DefaultSize = 8

type Pool struct {
	sem  *semaphore.Weighted
	size int
}

func New(size int) *Pool {
	if size <= 0 {
		size = DefaultSize
	}
	return &Pool{sem: semaphore.NewWeighted(int64(size)), size: size}
}

func (p *Pool) Size() int { return p.size }

type result[T any] struct {
	val T
	err error
}

// Do waits for a free slot and runs fn on it. Waiting honours ctx; once fn
// has started it runs to completion and releases its slot itself, while a
// cancelled caller gets ctx.Err() right away.
func Do[T any](ctx context.Context, p *Pool, fn func() (T, error)) (T, error) {
	var zero T
	if p == nil {
		return zero, errors.New("workpool: nil pool")
	}
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return zero, err
	}

	done := make(chan result[T], 1)
	go func() {
		defer p.sem.Release(1)
		v, err := fn()
		done <- result[T]{val: v, err: err}
	}()

	select {
	case r := <-done:
		return r.val, r.err
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}
