// Package reaper implements the daemon's dead-child detector: a fixed-tick
// poll of /proc existence rather than SIGCHLD, because the executor is
// reparented across namespace entry and is not the daemon's direct child
// by the rules wait(2) recognizes (spec.md §4.E, §9).
package reaper

import (
	"context"
	"log/slog"
	"time"
)

// Tick is the fixed cadence spec.md §4.E specifies.
const Tick = 100 * time.Millisecond

// Registry is the narrow slice of registry.Registry the reaper needs,
// kept as an interface so tests can supply a fake without a real
// filesystem/signal backend.
type Registry interface {
	Snapshot() map[int]string
	Remove(id string) error
}

// ProcessExists reports whether pid is still present in the kernel
// process table. The production implementation probes /proc/<pid>; tests
// substitute a fake.
type ProcessExists func(pid int) bool

// Reaper runs Sweep on a fixed ticker until its context is cancelled.
type Reaper struct {
	reg    Registry
	exists ProcessExists
}

// New builds a Reaper over reg, probing liveness with exists.
func New(reg Registry, exists ProcessExists) *Reaper {
	return &Reaper{reg: reg, exists: exists}
}

// Run blocks, ticking every tick until ctx is done. Callers that don't
// need an overridden cadence should pass Tick.
func (r *Reaper) Run(ctx context.Context, tick time.Duration) {
	ticker := time.NewTicker(tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}

// Sweep performs one tick: snapshot the pid->id mapping under the
// registry's lock, release the lock, then test each pid's liveness and
// remove the gone ones. Individual removal errors are logged and do not
// stop the sweep.
func (r *Reaper) Sweep() {
	snapshot := r.reg.Snapshot()
	for pid, id := range snapshot {
		if r.exists(pid) {
			continue
		}
		if err := r.reg.Remove(id); err != nil {
			slog.Warn("reaper: remove failed", "id", id, "pid", pid, "error", err)
			continue
		}
		slog.Info("reaper: removed dead container", "id", id, "pid", pid)
	}
}
