// Package metrics collects atomic counters from across the storage
// and transaction core for ambient observability.
package metrics

import "sync/atomic"

// Counters is a set of atomic counters updated from many goroutines.
// The zero value is ready to use.
type Counters struct {
	cacheHits      atomic.Uint64
	cacheMisses    atomic.Uint64
	cacheEvictions atomic.Uint64

	walAppends atomic.Uint64
	walBytes   atomic.Uint64

	lockWaits atomic.Uint64
	deadlocks atomic.Uint64

	recoveryRedos atomic.Uint64
	recoveryUndos atomic.Uint64
}

// Snapshot is a point-in-time copy of every counter, safe to read and
// pass around without further synchronization.
type Snapshot struct {
	CacheHits      uint64
	CacheMisses    uint64
	CacheEvictions uint64

	WALAppends uint64
	WALBytes   uint64

	LockWaits uint64
	Deadlocks uint64

	RecoveryRedos uint64
	RecoveryUndos uint64
}

func (c *Counters) CacheHit()      { c.cacheHits.Add(1) }
func (c *Counters) CacheMiss()     { c.cacheMisses.Add(1) }
func (c *Counters) CacheEviction() { c.cacheEvictions.Add(1) }

func (c *Counters) WALAppend(bytes int) {
	c.walAppends.Add(1)
	c.walBytes.Add(uint64(bytes))
}

func (c *Counters) LockWait() { c.lockWaits.Add(1) }
func (c *Counters) Deadlock() { c.deadlocks.Add(1) }

func (c *Counters) RecoveryRedo() { c.recoveryRedos.Add(1) }
func (c *Counters) RecoveryUndo() { c.recoveryUndos.Add(1) }

// Stats returns a snapshot of every counter's current value.
func (c *Counters) Stats() Snapshot {
	return Snapshot{
		CacheHits:      c.cacheHits.Load(),
		CacheMisses:    c.cacheMisses.Load(),
		CacheEvictions: c.cacheEvictions.Load(),
		WALAppends:     c.walAppends.Load(),
		WALBytes:       c.walBytes.Load(),
		LockWaits:      c.lockWaits.Load(),
		Deadlocks:      c.deadlocks.Load(),
		RecoveryRedos:  c.recoveryRedos.Load(),
		RecoveryUndos:  c.recoveryUndos.Load(),
	}
}
