package pagestore

import "sync"

// intervals is the number of free-space buckets; bucket 40 catches a
// just-created, fully-empty page (freeSpace == MaxFreeSpace).
const intervals = 40

// threshold is the bucket width in bytes.
const threshold = Size / intervals

// entry is one bucketed (page, free-space) observation.
type entry struct {
	pgno      PageNo
	freeSpace int
}

// Index is the page free-space bucket index (C6): bucket k holds pages
// whose free space falls in [k*threshold, (k+1)*threshold). Entries are
// one-shot — callers must re-Add a page after using it.
type Index struct {
	mu      sync.Mutex
	buckets [intervals + 1][]entry
}

// NewIndex creates an empty free-space index.
func NewIndex() *Index {
	return &Index{}
}

// Add records pgno as having freeSpace bytes free.
func (idx *Index) Add(pgno PageNo, freeSpace int) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	k := freeSpace / threshold
	if k > intervals {
		k = intervals
	}
	idx.buckets[k] = append(idx.buckets[k], entry{pgno: pgno, freeSpace: freeSpace})
}

// Select returns a page guaranteed to have at least n free bytes, and
// removes it from the index, or ok=false if no such page is indexed
// (signaling the caller to allocate a fresh page).
func (idx *Index) Select(n int) (pgno PageNo, ok bool) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	k := n/threshold + 1
	for ; k <= intervals; k++ {
		bucket := idx.buckets[k]
		if len(bucket) == 0 {
			continue
		}
		e := bucket[len(bucket)-1]
		idx.buckets[k] = bucket[:len(bucket)-1]
		return e.pgno, true
	}
	return 0, false
}
