// Package mvcc implements the version manager (C9): it begins and ends
// transactions, decides what each one can see via xmin/xmax visibility
// rules, and arbitrates write-write conflicts through the lock table
// before handing a delete's xmax write to the data-item manager.
package mvcc

import (
	"fmt"
	"sync"

	"github.com/Curzsu/ShadowDB/internal/dataitem"
	"github.com/Curzsu/ShadowDB/internal/locktable"
	"github.com/Curzsu/ShadowDB/internal/recid"
	"github.com/Curzsu/ShadowDB/internal/xerrors"
	"github.com/Curzsu/ShadowDB/internal/xid"
)

// Manager is the version manager. It owns no storage of its own: reads
// and writes flow through dm, transaction state through tm, and
// write-write arbitration through an internal lock table.
type Manager struct {
	tm *xid.Store
	dm *dataitem.Manager

	mu     sync.Mutex
	active map[uint64]*Transaction
	lt     *locktable.Table
}

// New creates a version manager over tm and dm.
func New(tm *xid.Store, dm *dataitem.Manager) *Manager {
	return &Manager{
		tm:     tm,
		dm:     dm,
		active: make(map[uint64]*Transaction),
		lt:     locktable.New(),
	}
}

// SetLockHooks installs observability hooks on the manager's internal
// lock table. See locktable.Hooks.
func (m *Manager) SetLockHooks(h locktable.Hooks) { m.lt.SetHooks(h) }

func (m *Manager) txn(id uint64) (*Transaction, error) {
	m.mu.Lock()
	t, ok := m.active[id]
	m.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("mvcc: unknown xid %d: %w", id, xerrors.ErrTxDone)
	}
	if t.err != nil {
		return nil, fmt.Errorf("mvcc: xid %d: %w: %w", id, xerrors.ErrTxDone, t.err)
	}
	return t, nil
}

// Begin starts a new transaction at the given isolation level and
// returns its xid.
func (m *Manager) Begin(level IsolationLevel) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, err := m.tm.Begin()
	if err != nil {
		return 0, err
	}
	m.active[id] = newTransaction(id, level, m.active)
	return id, nil
}

// Read returns the payload visible to xid at uid, or (nil, nil) if no
// visible version exists (either the item was never visible, or has
// been deleted from xid's point of view).
func (m *Manager) Read(id uint64, uid recid.UID) ([]byte, error) {
	t, err := m.txn(id)
	if err != nil {
		return nil, err
	}

	it, err := m.dm.Read(uid)
	if err != nil {
		if err == xerrors.ErrNullEntry {
			return nil, nil
		}
		return nil, err
	}
	defer m.dm.Release(it)

	it.RLock()
	visible, err := isVisible(m.tm, t, it.Payload())
	var data []byte
	if visible {
		data = append([]byte(nil), dataAt(it.Payload())...)
	}
	it.RUnlock()
	if err != nil {
		return nil, err
	}
	if !visible {
		return nil, nil
	}
	return data, nil
}

// Insert creates a new record owned by xid and returns its uid.
func (m *Manager) Insert(id uint64, data []byte) (recid.UID, error) {
	t, err := m.txn(id)
	if err != nil {
		return 0, err
	}

	raw := wrapEntryRaw(t.XID, data)
	it, err := m.dm.Insert(t.XID, raw)
	if err != nil {
		return 0, err
	}
	uid := it.UID()
	m.dm.Release(it)
	return uid, nil
}

// Delete marks uid as deleted by xid, returning false (not an error)
// if xid cannot see uid or has already deleted it itself. A deadlock
// or a version xid cannot safely act on auto-aborts the transaction
// and returns ErrConcurrentUpdate.
func (m *Manager) Delete(id uint64, uid recid.UID) (bool, error) {
	t, err := m.txn(id)
	if err != nil {
		return false, err
	}

	it, err := m.dm.Read(uid)
	if err != nil {
		if err == xerrors.ErrNullEntry {
			return false, nil
		}
		return false, err
	}
	defer m.dm.Release(it)

	it.RLock()
	visible, verr := isVisible(m.tm, t, it.Payload())
	it.RUnlock()
	if verr != nil {
		return false, verr
	}
	if !visible {
		return false, nil
	}

	latch, lerr := m.lt.Acquire(t.XID, uint64(uid))
	if lerr != nil {
		t.err = xerrors.ErrConcurrentUpdate
		m.internalAbort(t.XID, true)
		t.autoAborted = true
		return false, t.err
	}
	if latch != nil {
		latch.Lock()
	}

	it.RLock()
	raw := it.Payload()
	xmax := xmaxAt(raw)
	if xmax == t.XID {
		it.RUnlock()
		return false, nil
	}
	var concurrentlySet bool
	if xmax != 0 {
		committed, cerr := isCommitted(m.tm, xmax)
		if cerr != nil {
			it.RUnlock()
			return false, cerr
		}
		concurrentlySet = committed
	}
	skip, serr := isVersionSkip(m.tm, t, raw)
	it.RUnlock()
	if serr != nil {
		return false, serr
	}
	if concurrentlySet || skip {
		t.err = xerrors.ErrConcurrentUpdate
		m.internalAbort(t.XID, true)
		t.autoAborted = true
		return false, t.err
	}

	it.Before()
	setXmaxAt(it.Payload(), t.XID)
	if err := it.After(t.XID); err != nil {
		it.UnBefore()
		return false, err
	}
	return true, nil
}

// Commit durably commits xid and releases everything it held in the
// lock table.
func (m *Manager) Commit(id uint64) error {
	t, err := m.txn(id)
	if err != nil {
		return err
	}

	m.mu.Lock()
	delete(m.active, id)
	m.mu.Unlock()

	err = m.tm.Commit(t.XID)
	m.lt.Release(t.XID)
	return err
}

// Abort aborts xid, releasing its locks and discarding its snapshot.
func (m *Manager) Abort(id uint64) error {
	return m.internalAbort(id, false)
}

// internalAbort is abort's implementation, shared with the
// auto-abort paths inside Delete. When autoAborted is true the
// transaction is left registered (so its stored err keeps surfacing
// to the caller that triggered it) and a transaction already marked
// autoAborted is left alone, since its locks and status were already
// released by the call that set the flag.
func (m *Manager) internalAbort(id uint64, autoAborted bool) error {
	m.mu.Lock()
	t, ok := m.active[id]
	if !autoAborted {
		delete(m.active, id)
	}
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("mvcc: unknown xid %d: %w", id, xerrors.ErrTxDone)
	}
	if t.autoAborted {
		return nil
	}

	err := m.tm.Abort(t.XID)
	m.lt.Release(t.XID)
	return err
}
