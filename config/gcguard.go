package config

import (
	"runtime/debug"
	"sync"
	"sync/atomic"
)

// GCGuard is a process-wide, reference-counted guard around
// debug.SetGCPercent(-1), implementing the disable_gc knob from spec §5:
// the first Acquire disables the garbage collector, and the collector is
// restored to its prior percentage only once every Acquire has a matching
// Release.
//
// No library in the dependency stack this module draws from wraps
// runtime/debug's GC controls, so this is grounded directly on the standard
// library; the counted acquire/release shape mirrors how the rest of this
// package guards the single process-wide Config behind a single swap point.
type GCGuard struct {
	count    atomic.Int64
	mu       sync.Mutex
	previous int
}

var defaultGuard GCGuard

// AcquireGC disables garbage collection for the process if it is not
// already disabled by another caller, and returns a func that must be
// called to release this caller's hold.
func AcquireGC() func() {
	return defaultGuard.Acquire()
}

// Acquire increments the guard's reference count, disabling GC on the
// 0-to-1 transition.
func (g *GCGuard) Acquire() func() {
	if g.count.Add(1) == 1 {
		g.mu.Lock()
		g.previous = debug.SetGCPercent(-1)
		g.mu.Unlock()
	}

	var released atomic.Bool

	return func() {
		if released.CompareAndSwap(false, true) {
			g.release()
		}
	}
}

func (g *GCGuard) release() {
	if g.count.Add(-1) == 0 {
		g.mu.Lock()
		debug.SetGCPercent(g.previous)
		g.mu.Unlock()
	}
}
