// Package recovery implements startup crash recovery (C10): a forward
// redo pass over committed transactions' log entries followed by a
// reverse undo pass over still-active transactions' entries.
package recovery

import (
	"fmt"

	"github.com/Curzsu/ShadowDB/internal/dataitem"
	"github.com/Curzsu/ShadowDB/internal/logrecord"
	"github.com/Curzsu/ShadowDB/internal/metrics"
	"github.com/Curzsu/ShadowDB/internal/pagestore"
	"github.com/Curzsu/ShadowDB/internal/walog"
	"github.com/Curzsu/ShadowDB/internal/xid"
)

type entry struct {
	kind logrecord.Kind
	ins  logrecord.Insert
	upd  logrecord.Update
}

// logged pairs a decoded entry with the xid it belongs to, preserving
// the order entries appeared in the log.
type logged struct {
	xid   uint64
	entry entry
}

// Recover scans log once to classify every xid it mentions as
// committed or still-active per tm, redoes every committed entry
// forward, then undoes every still-active entry in reverse and marks
// those xids ABORTED.
//
// A page allocated via store.NewPage but never referenced by a log
// entry (a crash between the two) is left in place: the page counter
// and the log can disagree without corrupting anything reachable, so
// recovery never truncates the page file.
func Recover(tm *xid.Store, log *walog.Log, store *pagestore.Store, counters *metrics.Counters) error {
	committed, active, ordered, byXID, err := scan(tm, log)
	if err != nil {
		return err
	}

	if err := redo(store, ordered, committed, counters); err != nil {
		return fmt.Errorf("recovery: redo: %w", err)
	}
	if err := undo(store, byXID, active, counters); err != nil {
		return fmt.Errorf("recovery: undo: %w", err)
	}
	for id := range active {
		if err := tm.Abort(id); err != nil {
			return fmt.Errorf("recovery: abort xid %d: %w", id, err)
		}
	}
	return nil
}

// scan reads every log entry once, in file order. It returns that
// order unchanged (for forward redo), groups the same entries by xid
// (for reverse-per-xid undo), and classifies each xid it saw against
// tm's durable status.
func scan(tm *xid.Store, log *walog.Log) (committed, active map[uint64]struct{}, ordered []logged, byXID map[uint64][]entry, err error) {
	committed = make(map[uint64]struct{})
	active = make(map[uint64]struct{})
	byXID = make(map[uint64][]entry)

	err = log.Iterate(func(data []byte) error {
		e, xid, err := decode(data)
		if err != nil {
			return err
		}
		ordered = append(ordered, logged{xid: xid, entry: e})
		byXID[xid] = append(byXID[xid], e)

		if _, seen := committed[xid]; seen {
			return nil
		}
		if _, seen := active[xid]; seen {
			return nil
		}
		isCommitted, err := tm.IsCommitted(xid)
		if err != nil {
			return err
		}
		if isCommitted {
			committed[xid] = struct{}{}
			return nil
		}
		isActive, err := tm.IsActive(xid)
		if err != nil {
			return err
		}
		if isActive {
			active[xid] = struct{}{}
		}
		return nil
	})
	return committed, active, ordered, byXID, err
}

func decode(data []byte) (entry, uint64, error) {
	kind, err := logrecord.PeekKind(data)
	if err != nil {
		return entry{}, 0, err
	}
	switch kind {
	case logrecord.KindInsert:
		ins, err := logrecord.DecodeInsert(data)
		if err != nil {
			return entry{}, 0, err
		}
		return entry{kind: kind, ins: ins}, ins.XID, nil
	case logrecord.KindUpdate:
		upd, err := logrecord.DecodeUpdate(data)
		if err != nil {
			return entry{}, 0, err
		}
		return entry{kind: kind, upd: upd}, upd.XID, nil
	default:
		return entry{}, 0, fmt.Errorf("recovery: unknown log entry kind %d", kind)
	}
}

// redo forward-applies every entry belonging to a committed xid, in
// the order the entries appear in the log. Log order must be
// preserved across transactions: an Insert from one committed xid and
// a later Update of the same item from another committed xid have to
// replay in that relative order, or the second would be clobbered by
// the first.
func redo(store *pagestore.Store, ordered []logged, committed map[uint64]struct{}, counters *metrics.Counters) error {
	for _, le := range ordered {
		if _, ok := committed[le.xid]; !ok {
			continue
		}
		if err := applyRedo(store, le.entry); err != nil {
			return err
		}
		if counters != nil {
			counters.RecoveryRedo()
		}
	}
	return nil
}

func applyRedo(store *pagestore.Store, e entry) error {
	switch e.kind {
	case logrecord.KindInsert:
		page, err := store.Acquire(e.ins.Pgno)
		if err != nil {
			return err
		}
		page.Lock()
		pagestore.RedoInsert(page, e.ins.Item, e.ins.Offset)
		page.Unlock()
		store.Release(e.ins.Pgno)
	case logrecord.KindUpdate:
		page, err := store.Acquire(e.upd.UID.PageNo())
		if err != nil {
			return err
		}
		page.Lock()
		pagestore.RedoUpdate(page, e.upd.New, e.upd.UID.Offset())
		page.Unlock()
		store.Release(e.upd.UID.PageNo())
	}
	return nil
}

// undo reverse-applies every entry belonging to a still-active xid:
// updates restore their old bytes, inserts are logically deleted.
func undo(store *pagestore.Store, byXID map[uint64][]entry, active map[uint64]struct{}, counters *metrics.Counters) error {
	for id, entries := range byXID {
		if _, ok := active[id]; !ok {
			continue
		}
		for i := len(entries) - 1; i >= 0; i-- {
			if err := applyUndo(store, entries[i]); err != nil {
				return err
			}
			if counters != nil {
				counters.RecoveryUndo()
			}
		}
	}
	return nil
}

func applyUndo(store *pagestore.Store, e entry) error {
	switch e.kind {
	case logrecord.KindInsert:
		page, err := store.Acquire(e.ins.Pgno)
		if err != nil {
			return err
		}
		page.Lock()
		dataitem.SetInvalidAt(page, e.ins.Offset)
		page.Unlock()
		store.Release(e.ins.Pgno)
	case logrecord.KindUpdate:
		page, err := store.Acquire(e.upd.UID.PageNo())
		if err != nil {
			return err
		}
		page.Lock()
		pagestore.RedoUpdate(page, e.upd.Old, e.upd.UID.Offset())
		page.Unlock()
		store.Release(e.upd.UID.PageNo())
	}
	return nil
}
