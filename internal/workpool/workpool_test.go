package workpool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestDoReturnsResult(t *testing.T) {
	p := New(2)
	v, err := Do(context.Background(), p, func() (int, error) { return 42, nil })
	if err != nil || v != 42 {
		t.Fatalf("Do = %d, %v", v, err)
	}

	want := errors.New("boom")
	_, err = Do(context.Background(), p, func() (string, error) { return "", want })
	if !errors.Is(err, want) {
		t.Fatalf("expected job error, got %v", err)
	}
}

// TestDoBoundsConcurrency never lets more than Size jobs run at once.
func TestDoBoundsConcurrency(t *testing.T) {
	const size = 3
	p := New(size)
	var running, peak int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = Do(context.Background(), p, func() (struct{}, error) {
				n := atomic.AddInt32(&running, 1)
				for {
					old := atomic.LoadInt32(&peak)
					if n <= old || atomic.CompareAndSwapInt32(&peak, old, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				atomic.AddInt32(&running, -1)
				return struct{}{}, nil
			})
		}()
	}
	wg.Wait()
	if peak > size {
		t.Fatalf("peak concurrency %d exceeds %d", peak, size)
	}
}

// TestDoCancelWhileWaiting gives up on a full pool when ctx ends.
func TestDoCancelWhileWaiting(t *testing.T) {
	p := New(1)
	release := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_, _ = Do(context.Background(), p, func() (int, error) {
			close(started)
			<-release
			return 0, nil
		})
	}()
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	ran := false
	_, err := Do(ctx, p, func() (int, error) { ran = true; return 0, nil })
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	close(release)
	if ran {
		t.Fatalf("job should not have run")
	}
}

// TestDoCancelWhileRunning returns early but lets the job finish.
func TestDoCancelWhileRunning(t *testing.T) {
	p := New(1)
	ctx, cancel := context.WithCancel(context.Background())
	finished := make(chan struct{})
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	_, err := Do(ctx, p, func() (int, error) {
		time.Sleep(50 * time.Millisecond)
		close(finished)
		return 1, nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatalf("job did not run to completion")
	}
	// The slot is released once the job ends.
	if _, err := Do(context.Background(), p, func() (int, error) { return 0, nil }); err != nil {
		t.Fatalf("pool slot not released: %v", err)
	}
}

func TestNewDefaultsSize(t *testing.T) {
	if New(0).Size() != DefaultSize {
		t.Fatalf("expected default size")
	}
}
