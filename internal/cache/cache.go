// Package cache implements the reference-counted, single-loader cache
// skeleton shared by the page store and the data-item manager.
//
// Unlike an LRU cache, entries are never evicted while referenced: a
// resource is only a candidate for eviction once its reference count
// drops to zero. This mirrors the teacher's AbstractCache: no generics
// over a type parameter, just a narrow Loader/Evictor pair supplied by
// the embedding component.
package cache

import (
	"sync"
	"time"

	"github.com/Curzsu/ShadowDB/internal/xerrors"
)

// Loader fetches the resource for key from its backing store when the
// cache does not hold it. It is invoked without the cache's mutex held.
type Loader func(key uint64) (any, error)

// Evictor is called when a resource's reference count reaches zero and
// it is being dropped from the cache, to flush it if needed.
type Evictor func(key uint64, resource any)

// Cache is a generic reference-counted, single-loader resource cache.
type Cache struct {
	mu sync.Mutex

	entries map[uint64]any
	refs    map[uint64]int
	loading map[uint64]bool

	count int
	max   int

	load  Loader
	evict Evictor

	hooks Hooks
}

// Hooks lets a caller observe cache activity for metrics purposes
// without changing the cache's core contract. Any field left nil is
// simply not called.
type Hooks struct {
	Hit   func()
	Miss  func()
	Evict func()
}

// SetHooks installs h. Not safe to call concurrently with Acquire or
// Release; intended to be set once, right after New.
func (c *Cache) SetHooks(h Hooks) { c.hooks = h }

// New creates a cache bounded at max resident-or-loading entries. A
// max of 0 means unbounded.
func New(max int, load Loader, evict Evictor) *Cache {
	return &Cache{
		entries: make(map[uint64]any),
		refs:    make(map[uint64]int),
		loading: make(map[uint64]bool),
		max:     max,
		load:    load,
		evict:   evict,
	}
}

// Acquire returns the resource for key, loading it via Loader if it is
// not resident. The caller must call Release exactly once per
// successful Acquire.
func (c *Cache) Acquire(key uint64) (any, error) {
	for {
		c.mu.Lock()
		if c.loading[key] {
			// Another goroutine is loading this key. The load is
			// bounded by a single disk read and contention on a given
			// key is rare, so a coarse poll is preferable to the extra
			// bookkeeping of a per-key condition variable.
			c.mu.Unlock()
			time.Sleep(time.Millisecond)
			continue
		}

		if res, ok := c.entries[key]; ok {
			c.refs[key]++
			c.mu.Unlock()
			if c.hooks.Hit != nil {
				c.hooks.Hit()
			}
			return res, nil
		}

		if c.max > 0 && c.count == c.max {
			c.mu.Unlock()
			return nil, xerrors.ErrCacheFull
		}

		c.count++
		c.loading[key] = true
		c.mu.Unlock()
		break
	}

	if c.hooks.Miss != nil {
		c.hooks.Miss()
	}

	res, err := c.load(key)
	if err != nil {
		c.mu.Lock()
		c.count--
		delete(c.loading, key)
		c.mu.Unlock()
		return nil, err
	}

	c.mu.Lock()
	delete(c.loading, key)
	c.entries[key] = res
	c.refs[key] = 1
	c.mu.Unlock()

	return res, nil
}

// Release decrements the reference count for key. At zero references
// the resource is evicted via Evictor and dropped from the cache.
func (c *Cache) Release(key uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ref, ok := c.refs[key]
	if !ok {
		return
	}
	ref--
	if ref > 0 {
		c.refs[key] = ref
		return
	}

	res := c.entries[key]
	delete(c.refs, key)
	delete(c.entries, key)
	c.count--

	if c.evict != nil {
		c.evict(key, res)
	}
	if c.hooks.Evict != nil {
		c.hooks.Evict()
	}
}

// Close evicts every resident entry, regardless of reference count.
// Callers must ensure no concurrent Acquire/Release is in flight.
func (c *Cache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, res := range c.entries {
		if c.evict != nil {
			c.evict(key, res)
		}
		if c.hooks.Evict != nil {
			c.hooks.Evict()
		}
		delete(c.entries, key)
		delete(c.refs, key)
		c.count--
	}
}

// Len returns the number of resident-or-loading entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}
