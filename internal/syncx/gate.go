// Package syncx provides extended synchronization primitives
package syncx

import "sync/atomic"

// Gate is a single-owner latch: at most one holder at a time, acquisition
// never blocks. It serializes capture pipelines so a new capture cannot
// start while a prior one is in flight.
type Gate struct {
	held atomic.Bool
}

// TryAcquire claims the gate; false means another holder is in flight.
func (g *Gate) TryAcquire() bool {
	return g.held.CompareAndSwap(false, true)
}

// Release frees the gate for the next holder.
func (g *Gate) Release() {
	g.held.Store(false)
}

// Held reports whether the gate is currently claimed.
func (g *Gate) Held() bool {
	return g.held.Load()
}
