// Package locktable implements the deadlock-detecting wait-for graph
// (C8) that arbitrates write-write conflicts between transactions.
package locktable

import (
	"sync"

	"github.com/Curzsu/ShadowDB/internal/xerrors"
)

// Latch is the blocking primitive handed back to a caller that must
// wait for a uid to be released. The caller locks it (blocking until
// the releaser unlocks it on their behalf) and then discards it.
type Latch struct {
	mu sync.Mutex
}

func newLatch() *Latch {
	l := &Latch{}
	l.mu.Lock() // pre-locked: caller's Lock() blocks until we Unlock()
	return l
}

// Lock blocks until the table grants this latch's xid ownership.
func (l *Latch) Lock() { l.mu.Lock() }

// Table is the lock table (C8): grant/wait queues per uid plus
// epoch-stamped DFS deadlock detection over the wait-for graph.
type Table struct {
	mu sync.Mutex

	held      map[uint64]map[uint64]struct{} // xid -> set of uids held
	owner     map[uint64]uint64              // uid -> owning xid
	waiters   map[uint64][]uint64            // uid -> FIFO xids waiting
	waitingOn map[uint64]uint64              // xid -> uid it's waiting on
	latches   map[uint64]*Latch              // xid -> its wait latch

	stamp    int
	xidStamp map[uint64]int

	hooks Hooks
}

// Hooks lets a caller observe lock-table contention for metrics
// purposes. Any field left nil is simply not called.
type Hooks struct {
	Wait     func()
	Deadlock func()
}

// SetHooks installs h. Intended to be set once, right after New.
func (t *Table) SetHooks(h Hooks) { t.hooks = h }

// New creates an empty lock table.
func New() *Table {
	return &Table{
		held:      make(map[uint64]map[uint64]struct{}),
		owner:     make(map[uint64]uint64),
		waiters:   make(map[uint64][]uint64),
		waitingOn: make(map[uint64]uint64),
		latches:   make(map[uint64]*Latch),
	}
}

// Acquire arbitrates xid's claim on uid. If xid already holds uid, or
// uid is unowned, ownership is granted immediately and Acquire returns
// (nil, nil). Otherwise xid is queued behind the current owner; if
// that would close a cycle in the wait-for graph, Acquire fails with
// ErrDeadlock and the wait registration is rolled back. Otherwise it
// returns a Latch the caller must Lock (outside this table's mutex) to
// block until ownership transfers to xid.
func (t *Table) Acquire(xid, uid uint64) (*Latch, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.held[xid][uid]; ok {
		return nil, nil
	}

	if _, owned := t.owner[uid]; !owned {
		t.grant(xid, uid)
		return nil, nil
	}

	t.waitingOn[xid] = uid
	t.waiters[uid] = append(t.waiters[uid], xid)

	if t.hasDeadlock() {
		t.removeWaiter(xid, uid)
		delete(t.waitingOn, xid)
		if t.hooks.Deadlock != nil {
			t.hooks.Deadlock()
		}
		return nil, xerrors.ErrDeadlock
	}

	if t.hooks.Wait != nil {
		t.hooks.Wait()
	}
	latch := newLatch()
	t.latches[xid] = latch
	return latch, nil
}

func (t *Table) grant(xid, uid uint64) {
	t.owner[uid] = xid
	if t.held[xid] == nil {
		t.held[xid] = make(map[uint64]struct{})
	}
	t.held[xid][uid] = struct{}{}
}

func (t *Table) removeWaiter(xid, uid uint64) {
	q := t.waiters[uid]
	for i, w := range q {
		if w == xid {
			t.waiters[uid] = append(q[:i], q[i+1:]...)
			break
		}
	}
	if len(t.waiters[uid]) == 0 {
		delete(t.waiters, uid)
	}
}

// Release gives up every uid xid holds, waking the next eligible
// waiter (if any) for each, and clears all of xid's bookkeeping.
func (t *Table) Release(xid uint64) {
	t.mu.Lock()
	var toWake []*Latch
	for uid := range t.held[xid] {
		if l := t.selectNewOwner(uid); l != nil {
			toWake = append(toWake, l)
		}
	}
	delete(t.held, xid)
	delete(t.waitingOn, xid)
	delete(t.latches, xid)
	t.mu.Unlock()

	for _, l := range toWake {
		l.mu.Unlock()
	}
}

// selectNewOwner transfers uid's ownership to the next waiter whose
// latch has not been revoked, skipping any that have. It must be
// called with t.mu held; it returns the latch to unlock outside the
// mutex, or nil if no waiter took over (in which case uid becomes
// unowned).
func (t *Table) selectNewOwner(uid uint64) *Latch {
	delete(t.owner, uid)
	queue := t.waiters[uid]

	for len(queue) > 0 {
		xid := queue[0]
		queue = queue[1:]

		latch, ok := t.latches[xid]
		if !ok {
			continue
		}
		delete(t.latches, xid)
		delete(t.waitingOn, xid)
		t.grant(xid, uid)
		t.waiters[uid] = queue
		if len(t.waiters[uid]) == 0 {
			delete(t.waiters, uid)
		}
		return latch
	}

	delete(t.waiters, uid)
	return nil
}

// hasDeadlock runs epoch-stamped DFS from every xid that currently
// holds a resource, looking for a cycle in the wait-for graph. Must be
// called with t.mu held.
func (t *Table) hasDeadlock() bool {
	t.xidStamp = make(map[uint64]int)
	t.stamp = 1

	for xid := range t.held {
		if s, ok := t.xidStamp[xid]; ok && s > 0 {
			continue
		}
		t.stamp++
		if t.dfs(xid) {
			return true
		}
	}
	return false
}

func (t *Table) dfs(xid uint64) bool {
	if s, ok := t.xidStamp[xid]; ok {
		if s == t.stamp {
			return true // closed a cycle on this DFS pass
		}
		return false // visited safely in an earlier pass, prune
	}

	t.xidStamp[xid] = t.stamp

	uid, waiting := t.waitingOn[xid]
	if !waiting {
		return false // sink: not waiting on anything
	}
	owner, ok := t.owner[uid]
	if !ok {
		return false
	}
	return t.dfs(owner)
}
