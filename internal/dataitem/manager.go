package dataitem

import (
	"fmt"
	"sync"

	"github.com/Curzsu/ShadowDB/internal/cache"
	"github.com/Curzsu/ShadowDB/internal/logrecord"
	"github.com/Curzsu/ShadowDB/internal/pagestore"
	"github.com/Curzsu/ShadowDB/internal/recid"
	"github.com/Curzsu/ShadowDB/internal/walog"
	"github.com/Curzsu/ShadowDB/internal/xerrors"
)

// Item is a handle to a cached data item: a live view into a sub-slice
// of its page's byte buffer, plus the before/after mutation protocol.
type Item struct {
	uid  recid.UID
	page *pagestore.Page
	mgr  *Manager

	mu     sync.RWMutex
	oldRaw []byte
}

// UID returns the item's identifier.
func (it *Item) UID() recid.UID { return it.uid }

// Valid reports whether the item has not been logically deleted.
func (it *Item) Valid() bool {
	it.mu.RLock()
	defer it.mu.RUnlock()
	return IsValidAt(it.page, it.uid.Offset())
}

// Payload returns the item's current user-payload bytes. Callers that
// intend to mutate it must bracket the write with Before/After.
func (it *Item) Payload() []byte {
	return PayloadAt(it.page, it.uid.Offset())
}

// RLock/RUnlock bracket a read of Payload against concurrent mutation.
func (it *Item) RLock()   { it.mu.RLock() }
func (it *Item) RUnlock() { it.mu.RUnlock() }

// Before begins the item's in-place mutation protocol: it takes the
// write lock, marks the page dirty, and snapshots the current frame
// bytes so a local abort can restore them via UnBefore.
func (it *Item) Before() {
	it.mu.Lock()
	it.page.Dirty = true
	frame := FrameAt(it.page, it.uid.Offset())
	it.oldRaw = append([]byte(nil), frame...)
}

// After completes the mutation protocol: it logs an update entry
// reproducing the old and new frame bytes under xid, then releases
// the write lock.
func (it *Item) After(xid uint64) error {
	defer it.mu.Unlock()

	newRaw := append([]byte(nil), FrameAt(it.page, it.uid.Offset())...)
	rec := logrecord.Update{XID: xid, UID: it.uid, Old: it.oldRaw, New: newRaw}
	if err := it.mgr.log.Append(logrecord.EncodeUpdate(rec)); err != nil {
		return fmt.Errorf("dataitem: log update: %w", err)
	}
	return nil
}

// UnBefore aborts an in-flight local mutation, restoring the
// pre-Before bytes without emitting a log entry.
func (it *Item) UnBefore() {
	defer it.mu.Unlock()
	copy(FrameAt(it.page, it.uid.Offset()), it.oldRaw)
}

// Manager is the data-item manager (C7): it lays out item frames
// inside pages via the page store and free-space index, and logs
// every durable mutation to the write-ahead log before it becomes
// visible to a crash.
type Manager struct {
	store *pagestore.Store
	log   *walog.Log
	index *pagestore.Index
	cache *cache.Cache
}

// New creates a data-item manager over store and log, with its own
// item-level cache of capacity cacheSize.
func New(store *pagestore.Store, log *walog.Log, index *pagestore.Index, cacheSize int) *Manager {
	m := &Manager{store: store, log: log, index: index}
	m.cache = cache.New(cacheSize, m.load, m.evict)
	return m
}

// SetCacheHooks installs observability hooks on the manager's item
// cache. See cache.Hooks.
func (m *Manager) SetCacheHooks(h cache.Hooks) { m.cache.SetHooks(h) }

func (m *Manager) load(key uint64) (any, error) {
	uid := recid.UID(key)
	page, err := m.store.Acquire(uid.PageNo())
	if err != nil {
		return nil, err
	}
	return &Item{uid: uid, page: page, mgr: m}, nil
}

func (m *Manager) evict(key uint64, resource any) {
	it := resource.(*Item)
	m.store.Release(it.page.No)
}

// Read returns the item for uid, or ErrNullEntry if it has been
// logically deleted (its valid byte is set). The caller must call
// Release exactly once on a successful Read.
func (m *Manager) Read(uid recid.UID) (*Item, error) {
	res, err := m.cache.Acquire(uint64(uid))
	if err != nil {
		return nil, err
	}
	it := res.(*Item)
	if !it.Valid() {
		m.cache.Release(uint64(uid))
		return nil, xerrors.ErrNullEntry
	}
	return it, nil
}

// Release drops the caller's hold on an item acquired via Read or
// Insert.
func (m *Manager) Release(it *Item) {
	m.cache.Release(uint64(it.uid))
}

// Insert lays out a new item frame containing payload, logging its
// insertion before the page write becomes durable, and returns the
// new item (its uid via UID). The caller must call Release on it.
func (m *Manager) Insert(xid uint64, payload []byte) (*Item, error) {
	if len(payload) > MaxPayload {
		return nil, fmt.Errorf("dataitem: payload of %d bytes exceeds max %d: %w", len(payload), MaxPayload, xerrors.ErrValueTooLarge)
	}
	frame := WrapItem(payload)

	pgno, ok := m.index.Select(len(frame))
	if !ok {
		var err error
		pgno, err = m.store.NewPage(pagestore.InitRaw())
		if err != nil {
			return nil, err
		}
	}

	page, err := m.store.Acquire(pgno)
	if err != nil {
		return nil, err
	}

	page.Lock()
	offset := pagestore.FSO(page)
	rec := logrecord.Insert{XID: xid, Pgno: pgno, Offset: offset, Item: frame}
	if err := m.log.Append(logrecord.EncodeInsert(rec)); err != nil {
		page.Unlock()
		m.store.Release(pgno)
		return nil, fmt.Errorf("dataitem: log insert: %w", err)
	}
	pagestore.Insert(page, frame)
	m.index.Add(pgno, pagestore.FreeSpace(page))
	page.Unlock()
	m.store.Release(pgno) // drop our direct hold; the cache re-acquires below

	uid := recid.New(pgno, offset)

	// Load the freshly written item into the cache so later reads
	// see it without re-parsing, and hand the caller a reference
	// they must Release.
	res, err := m.cache.Acquire(uint64(uid))
	if err != nil {
		return nil, err
	}
	return res.(*Item), nil
}
