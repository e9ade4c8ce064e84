package pool

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestAcquireReleaseRoundTrip(t *testing.T) {
	p := NewSpawnPool(1)
	if err := p.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	p.Release()
	if err := p.Acquire(context.Background()); err != nil {
		t.Fatalf("second Acquire: %v", err)
	}
}

func TestAcquireBlocksUntilRelease(t *testing.T) {
	p := NewSpawnPool(1)
	if err := p.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	var wg sync.WaitGroup
	acquired := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := p.Acquire(context.Background()); err != nil {
			t.Errorf("blocked Acquire: %v", err)
		}
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatalf("second Acquire returned before Release")
	case <-time.After(20 * time.Millisecond):
	}

	p.Release()
	wg.Wait()
}

func TestAcquireRespectsContextCancellation(t *testing.T) {
	p := NewSpawnPool(1)
	if err := p.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := p.Acquire(ctx); err != context.Canceled {
		t.Fatalf("Acquire err = %v, want context.Canceled", err)
	}
}

func TestAcquireFailsAfterShutdown(t *testing.T) {
	p := NewSpawnPool(2)
	p.Shutdown()
	if err := p.Acquire(context.Background()); err != ErrPoolIsClosing {
		t.Fatalf("Acquire err = %v, want ErrPoolIsClosing", err)
	}
}
