// Package pool bounds the number of concurrently in-flight spawn
// pipelines so a burst of create requests cannot fork unbounded
// concurrent executors on a small host (spec.md §5).
package pool

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// SpawnPool is a channel-backed semaphore over spawn-pipeline execution
// slots. It is the same acquire/release/shutdown shape as a resource pool
// of warm handles, repurposed here to gate concurrency rather than reuse
// connections: Acquire blocks until a slot is free, Release returns it.
type SpawnPool struct {
	slots       chan struct{}
	maxSize     int
	currentSize int
	mu          sync.Mutex
	closing     bool
}

// ErrPoolIsClosing is returned by Acquire once Shutdown has been called.
var ErrPoolIsClosing = errors.New("pool is shutting down")

// NewSpawnPool creates a pool that admits at most maxSize concurrent
// spawn pipelines.
func NewSpawnPool(maxSize int) *SpawnPool {
	return &SpawnPool{
		slots:   make(chan struct{}, maxSize),
		maxSize: maxSize,
	}
}

// Acquire blocks until a spawn slot is available or ctx is done.
func (p *SpawnPool) Acquire(ctx context.Context) error {
	p.mu.Lock()
	if p.closing {
		p.mu.Unlock()
		return ErrPoolIsClosing
	}
	p.mu.Unlock()

	select {
	case p.slots <- struct{}{}:
		p.mu.Lock()
		p.currentSize++
		p.mu.Unlock()
		slog.Debug("pool: acquired spawn slot", "in_use", p.currentSize, "max", p.maxSize)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release returns a spawn slot to the pool.
func (p *SpawnPool) Release() {
	select {
	case <-p.slots:
		p.mu.Lock()
		p.currentSize--
		slog.Debug("pool: released spawn slot", "in_use", p.currentSize, "max", p.maxSize)
		p.mu.Unlock()
	default:
		// No slot is held at all; ignore rather than panic. An unmatched
		// Release while other slots are held frees one of those slots.
	}
}

// Shutdown marks the pool closed; subsequent Acquire calls fail
// immediately with ErrPoolIsClosing. In-flight spawns are not
// interrupted — callers should drain their own work before calling this.
func (p *SpawnPool) Shutdown() {
	p.mu.Lock()
	p.closing = true
	p.mu.Unlock()
}
