// Package shadowdb is a small relational storage-and-transaction core:
// a page cache, write-ahead log, transaction status store, data-item
// manager, MVCC version manager, and deadlock-detecting lock table,
// assembled behind a single Engine.
package shadowdb

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/Curzsu/ShadowDB/internal/cache"
	"github.com/Curzsu/ShadowDB/internal/dataitem"
	"github.com/Curzsu/ShadowDB/internal/locktable"
	"github.com/Curzsu/ShadowDB/internal/metrics"
	"github.com/Curzsu/ShadowDB/internal/mvcc"
	"github.com/Curzsu/ShadowDB/internal/pagestore"
	"github.com/Curzsu/ShadowDB/internal/recid"
	"github.com/Curzsu/ShadowDB/internal/recovery"
	"github.com/Curzsu/ShadowDB/internal/walog"
	"github.com/Curzsu/ShadowDB/internal/xid"
)

// IsolationLevel selects the visibility rule a transaction reads
// under. See internal/mvcc for the rules themselves.
type IsolationLevel = mvcc.IsolationLevel

const (
	ReadCommitted  = mvcc.ReadCommitted
	RepeatableRead = mvcc.RepeatableRead
)

// UID identifies a stored record. It is opaque to callers beyond
// round-tripping through Insert/Read/Delete.
type UID = recid.UID

// Engine is the storage-and-transaction core. A single Engine owns one
// on-disk database directory: a page file, a write-ahead log, and a
// transaction status file.
type Engine struct {
	opts Options
	log  Logger

	tm    *xid.Store
	store *pagestore.Store
	wal   *walog.Log
	dm    *dataitem.Manager
	vm    *mvcc.Manager

	counters metrics.Counters

	closed bool
}

func paths(dir string) (db, logPath, xidPath string) {
	return filepath.Join(dir, "shadow.db"),
		filepath.Join(dir, "shadow.log"),
		filepath.Join(dir, "shadow.xid")
}

// Create initializes a brand-new database in dir, which must not yet
// contain a database. dir itself is created if missing.
func Create(dir string, options ...Option) (*Engine, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("shadowdb: create dir %q: %w", dir, err)
	}

	opts := defaultOptions()
	for _, opt := range options {
		opt(&opts)
	}

	dbPath, logPath, xidPath := paths(dir)

	tm, err := xid.Create(xidPath)
	if err != nil {
		return nil, err
	}
	log, err := walog.Create(logPath)
	if err != nil {
		tm.Close()
		return nil, err
	}
	store, err := pagestore.Create(dbPath, opts.pageStoreCacheSize)
	if err != nil {
		log.Close()
		tm.Close()
		return nil, err
	}

	return newEngine(opts, tm, log, store, pagestore.NewIndex()), nil
}

// Open opens an existing database in dir, running crash recovery
// before returning.
func Open(dir string, options ...Option) (*Engine, error) {
	opts := defaultOptions()
	for _, opt := range options {
		opt(&opts)
	}

	dbPath, logPath, xidPath := paths(dir)

	tm, err := xid.Open(xidPath)
	if err != nil {
		return nil, err
	}
	log, err := walog.Open(logPath)
	if err != nil {
		tm.Close()
		return nil, err
	}
	store, err := pagestore.Open(dbPath, opts.pageStoreCacheSize)
	if err != nil {
		log.Close()
		tm.Close()
		return nil, err
	}

	index := pagestore.NewIndex()
	e := newEngine(opts, tm, log, store, index)

	e.log.Info("running crash recovery", "dir", dir)
	if err := recovery.Recover(tm, log, store, &e.counters); err != nil {
		store.Close()
		log.Close()
		tm.Close()
		return nil, fmt.Errorf("shadowdb: recovery: %w", err)
	}
	// The free-space index is never persisted, so it must be rebuilt
	// from each page's own live FSO after recovery has settled every
	// page's final on-disk contents; index is the same pointer the
	// data-item manager already holds, and nothing has used it yet.
	if err := store.RebuildIndex(index); err != nil {
		store.Close()
		log.Close()
		tm.Close()
		return nil, fmt.Errorf("shadowdb: rebuild free-space index: %w", err)
	}

	return e, nil
}

func newEngine(opts Options, tm *xid.Store, log *walog.Log, store *pagestore.Store, index *pagestore.Index) *Engine {
	store.SetSyncOnEvict(opts.syncMode == SyncEveryCommit)

	e := &Engine{opts: opts, log: opts.logger, tm: tm, store: store, wal: log}

	store.SetCacheHooks(e.pageCacheHooks())
	log.SetAppendHook(func(n int) { e.counters.WALAppend(n) })

	e.dm = dataitem.New(store, log, index, opts.cacheSize)
	e.dm.SetCacheHooks(e.itemCacheHooks())
	e.vm = mvcc.New(tm, e.dm)
	e.vm.SetLockHooks(e.lockHooks())

	return e
}

func (e *Engine) pageCacheHooks() cache.Hooks {
	return cache.Hooks{
		Hit:  e.counters.CacheHit,
		Miss: e.counters.CacheMiss,
		Evict: func() {
			e.counters.CacheEviction()
		},
	}
}

func (e *Engine) itemCacheHooks() cache.Hooks {
	return cache.Hooks{
		Hit:   e.counters.CacheHit,
		Miss:  e.counters.CacheMiss,
		Evict: e.counters.CacheEviction,
	}
}

func (e *Engine) lockHooks() locktable.Hooks {
	return locktable.Hooks{
		Wait:     e.counters.LockWait,
		Deadlock: e.counters.Deadlock,
	}
}

// Begin starts a new transaction at the engine's configured default
// isolation level and returns its transaction id.
func (e *Engine) Begin() (uint64, error) {
	if e.closed {
		return 0, ErrClosed
	}
	return e.vm.Begin(e.opts.defaultIsolation)
}

// BeginLevel starts a new transaction at the given isolation level.
func (e *Engine) BeginLevel(level IsolationLevel) (uint64, error) {
	if e.closed {
		return 0, ErrClosed
	}
	return e.vm.Begin(level)
}

// Read returns the payload visible to txid at uid, or (nil, nil) if no
// visible version exists.
func (e *Engine) Read(txid uint64, uid UID) ([]byte, error) {
	if e.closed {
		return nil, ErrClosed
	}
	return e.vm.Read(txid, uid)
}

// Insert creates a new record owned by txid and returns its uid.
func (e *Engine) Insert(txid uint64, data []byte) (UID, error) {
	if e.closed {
		return 0, ErrClosed
	}
	return e.vm.Insert(txid, data)
}

// Delete marks uid as deleted by txid. It returns false, without
// error, if txid cannot see uid or has already deleted it itself.
func (e *Engine) Delete(txid uint64, uid UID) (bool, error) {
	if e.closed {
		return false, ErrClosed
	}
	return e.vm.Delete(txid, uid)
}

// Commit durably commits txid.
func (e *Engine) Commit(txid uint64) error {
	if e.closed {
		return ErrClosed
	}
	return e.vm.Commit(txid)
}

// Abort aborts txid, discarding its writes.
func (e *Engine) Abort(txid uint64) error {
	if e.closed {
		return ErrClosed
	}
	return e.vm.Abort(txid)
}

// Stats returns a snapshot of the engine's observability counters.
func (e *Engine) Stats() metrics.Snapshot {
	return e.counters.Stats()
}

// Close flushes and closes every underlying file. The Engine must not
// be used afterward.
func (e *Engine) Close() error {
	if e.closed {
		return ErrClosed
	}
	e.closed = true

	e.log.Info("closing engine")

	var firstErr error
	if err := e.store.Close(); err != nil {
		firstErr = err
	}
	if err := e.wal.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := e.tm.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
