package mvcc

import "github.com/Curzsu/ShadowDB/internal/xid"

// IsolationLevel selects which visibility rule a transaction reads
// under.
type IsolationLevel int

const (
	// ReadCommitted is the default: a read sees any row whose creator
	// has committed and which has not been committed-deleted.
	ReadCommitted IsolationLevel = 0
	// RepeatableRead additionally hides rows created after the
	// transaction's snapshot was taken, and keeps showing rows whose
	// deletion committed after it.
	RepeatableRead IsolationLevel = 1
)

// Transaction is the in-memory bookkeeping kept for an active
// transaction: its isolation level, the snapshot of transactions that
// were still active when it began, and any terminal error that forces
// every later call on it to fail.
type Transaction struct {
	XID         uint64
	Level       IsolationLevel
	snapshot    map[uint64]struct{}
	err         error
	autoAborted bool
}

func newTransaction(id uint64, level IsolationLevel, active map[uint64]*Transaction) *Transaction {
	t := &Transaction{XID: id, Level: level}
	if level != ReadCommitted {
		t.snapshot = make(map[uint64]struct{}, len(active))
		for other := range active {
			t.snapshot[other] = struct{}{}
		}
	}
	return t
}

func (t *Transaction) isInSnapshot(xid uint64) bool {
	if t.snapshot == nil {
		return false
	}
	_, ok := t.snapshot[xid]
	return ok
}

// isCommitted reports xid's committed status, treating the super xid
// as always committed per the xid store's own convention.
func isCommitted(tm *xid.Store, id uint64) (bool, error) {
	return tm.IsCommitted(id)
}

// isVisible implements the level-dispatching visibility predicate over
// an entry's xmin/xmax header.
func isVisible(tm *xid.Store, t *Transaction, raw []byte) (bool, error) {
	if t.Level == ReadCommitted {
		return readCommitted(tm, t, raw)
	}
	return repeatableRead(tm, t, raw)
}

func readCommitted(tm *xid.Store, t *Transaction, raw []byte) (bool, error) {
	xmin, xmax := xminAt(raw), xmaxAt(raw)

	if xmin == t.XID && xmax == 0 {
		return true, nil
	}

	minCommitted, err := isCommitted(tm, xmin)
	if err != nil {
		return false, err
	}
	if minCommitted {
		if xmax == 0 {
			return true, nil
		}
		if xmax != t.XID {
			maxCommitted, err := isCommitted(tm, xmax)
			if err != nil {
				return false, err
			}
			if !maxCommitted {
				return true, nil
			}
		}
	}
	return false, nil
}

func repeatableRead(tm *xid.Store, t *Transaction, raw []byte) (bool, error) {
	xmin, xmax := xminAt(raw), xmaxAt(raw)

	if xmin == t.XID && xmax == 0 {
		return true, nil
	}

	minCommitted, err := isCommitted(tm, xmin)
	if err != nil {
		return false, err
	}
	if minCommitted && xmin < t.XID && !t.isInSnapshot(xmin) {
		if xmax == 0 {
			return true, nil
		}
		if xmax != t.XID {
			maxCommitted, err := isCommitted(tm, xmax)
			if err != nil {
				return false, err
			}
			if !maxCommitted || xmax > t.XID || t.isInSnapshot(xmax) {
				return true, nil
			}
		}
	}
	return false, nil
}

// isVersionSkip reports whether t must abort rather than act on raw: a
// repeatable-read transaction that tries to delete a row already
// committed-deleted by a transaction it cannot see has found a version
// it skipped over, not one it can safely overwrite.
func isVersionSkip(tm *xid.Store, t *Transaction, raw []byte) (bool, error) {
	if t.Level == ReadCommitted {
		return false, nil
	}
	xmax := xmaxAt(raw)
	committed, err := isCommitted(tm, xmax)
	if err != nil {
		return false, err
	}
	return committed && (xmax > t.XID || t.isInSnapshot(xmax)), nil
}
