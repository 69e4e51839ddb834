package recovery

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Curzsu/ShadowDB/internal/dataitem"
	"github.com/Curzsu/ShadowDB/internal/mvcc"
	"github.com/Curzsu/ShadowDB/internal/pagestore"
	"github.com/Curzsu/ShadowDB/internal/walog"
	"github.com/Curzsu/ShadowDB/internal/xid"
)

// wipePage overwrites pgno's on-disk bytes with a freshly formatted,
// empty page, simulating a page write that a crash lost entirely.
func wipePage(t *testing.T, dbPath string, pgno pagestore.PageNo) {
	t.Helper()
	f, err := os.OpenFile(dbPath, os.O_RDWR, 0644)
	require.NoError(t, err)
	defer f.Close()

	blank := pagestore.InitRaw()
	_, err = f.WriteAt(blank[:], int64(pgno-1)*int64(pagestore.Size))
	require.NoError(t, err)
	require.NoError(t, f.Sync())
}

type paths struct {
	db, log, xidFile string
}

func newPaths(t *testing.T) paths {
	dir := t.TempDir()
	return paths{
		db:      filepath.Join(dir, "test.db"),
		log:     filepath.Join(dir, "test.log"),
		xidFile: filepath.Join(dir, "test.xid"),
	}
}

// TestRecoveryRedoesCommittedInsertNeverFlushed simulates scenario 5:
// a committed insert's log entry is durable, but its page write never
// reached disk before the crash. We wipe the page back to empty after
// a clean shutdown to stand in for that lost write, then confirm redo
// reconstructs it from the log alone.
func TestRecoveryRedoesCommittedInsertNeverFlushed(t *testing.T) {
	t.Parallel()

	p := newPaths(t)

	tm, err := xid.Create(p.xidFile)
	require.NoError(t, err)
	log, err := walog.Create(p.log)
	require.NoError(t, err)
	store, err := pagestore.Create(p.db, pagestore.MinCacheSize)
	require.NoError(t, err)

	dm := dataitem.New(store, log, pagestore.NewIndex(), 64)

	txid, err := tm.Begin()
	require.NoError(t, err)

	it, err := dm.Insert(txid, []byte("crash-durable"))
	require.NoError(t, err)
	uid := it.UID()
	dm.Release(it)

	require.NoError(t, tm.Commit(txid))
	require.NoError(t, store.Close())
	require.NoError(t, log.Close())
	require.NoError(t, tm.Close())

	wipePage(t, p.db, uid.PageNo())

	// Recovery runs against fresh handles onto the same files, as it
	// would after a real process restart.
	tm2, err := xid.Open(p.xidFile)
	require.NoError(t, err)
	log2, err := walog.Open(p.log)
	require.NoError(t, err)
	store2, err := pagestore.Open(p.db, pagestore.MinCacheSize)
	require.NoError(t, err)

	require.NoError(t, Recover(tm2, log2, store2, nil))

	dm2 := dataitem.New(store2, log2, pagestore.NewIndex(), 64)
	got, err := dm2.Read(uid)
	require.NoError(t, err)
	assert.Equal(t, []byte("crash-durable"), got.Payload())
}

// TestRedoAppliesAcrossTransactionsInLogOrder covers two different
// committed transactions touching the same item: T1's insert and,
// later, T2's delete (an Update record against the same frame). Both
// page writes are lost before a crash, so redo must replay the
// Insert before the Update or the insert's xmax=0 frame would
// clobber the committed delete.
func TestRedoAppliesAcrossTransactionsInLogOrder(t *testing.T) {
	t.Parallel()

	p := newPaths(t)

	tm, err := xid.Create(p.xidFile)
	require.NoError(t, err)
	log, err := walog.Create(p.log)
	require.NoError(t, err)
	store, err := pagestore.Create(p.db, pagestore.MinCacheSize)
	require.NoError(t, err)

	dm := dataitem.New(store, log, pagestore.NewIndex(), 64)
	vm := mvcc.New(tm, dm)

	xidIns, err := vm.Begin(mvcc.ReadCommitted)
	require.NoError(t, err)
	uid, err := vm.Insert(xidIns, []byte("contested"))
	require.NoError(t, err)
	require.NoError(t, vm.Commit(xidIns))

	xidDel, err := vm.Begin(mvcc.ReadCommitted)
	require.NoError(t, err)
	ok, err := vm.Delete(xidDel, uid)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, vm.Commit(xidDel))

	require.NoError(t, store.Close())
	require.NoError(t, log.Close())
	require.NoError(t, tm.Close())

	wipePage(t, p.db, uid.PageNo())

	tm2, err := xid.Open(p.xidFile)
	require.NoError(t, err)
	log2, err := walog.Open(p.log)
	require.NoError(t, err)
	store2, err := pagestore.Open(p.db, pagestore.MinCacheSize)
	require.NoError(t, err)

	require.NoError(t, Recover(tm2, log2, store2, nil))

	dm2 := dataitem.New(store2, log2, pagestore.NewIndex(), 64)
	vm2 := mvcc.New(tm2, dm2)

	xid3, err := vm2.Begin(mvcc.ReadCommitted)
	require.NoError(t, err)
	got, err := vm2.Read(xid3, uid)
	require.NoError(t, err)
	assert.Nil(t, got, "T2's committed delete must survive redo regardless of map iteration order")
}

// TestRecoveryUndoesStillActiveUpdate simulates scenario 6: an update
// by a transaction that never committed or aborted before the crash.
// After recovery the record's bytes are restored and the xid is ABORTED.
func TestRecoveryUndoesStillActiveUpdate(t *testing.T) {
	t.Parallel()

	p := newPaths(t)

	tm, err := xid.Create(p.xidFile)
	require.NoError(t, err)
	log, err := walog.Create(p.log)
	require.NoError(t, err)
	store, err := pagestore.Create(p.db, pagestore.MinCacheSize)
	require.NoError(t, err)

	dm := dataitem.New(store, log, pagestore.NewIndex(), 64)

	xidIns, err := tm.Begin()
	require.NoError(t, err)
	it, err := dm.Insert(xidIns, []byte("original!"))
	require.NoError(t, err)
	uid := it.UID()
	dm.Release(it)
	require.NoError(t, tm.Commit(xidIns))

	xidUpd, err := tm.Begin()
	require.NoError(t, err)
	it2, err := dm.Read(uid)
	require.NoError(t, err)
	it2.Before()
	copy(it2.Payload(), []byte("mutated!!"))
	require.NoError(t, it2.After(xidUpd))
	// No Commit/Abort: xidUpd is still ACTIVE at crash. The mutated
	// page is flushed anyway, standing in for an ordinary buffer-pool
	// writeback that races ahead of the transaction's own commit.
	pg, err := store.Acquire(uid.PageNo())
	require.NoError(t, err)
	require.NoError(t, store.Flush(pg))
	store.Release(pg.No)

	tm2, err := xid.Open(p.xidFile)
	require.NoError(t, err)
	log2, err := walog.Open(p.log)
	require.NoError(t, err)
	store2, err := pagestore.Open(p.db, pagestore.MinCacheSize)
	require.NoError(t, err)

	require.NoError(t, Recover(tm2, log2, store2, nil))

	status, err := tm2.Status(xidUpd)
	require.NoError(t, err)
	assert.Equal(t, xid.StatusAborted, status)

	dm2 := dataitem.New(store2, log2, pagestore.NewIndex(), 64)
	got, err := dm2.Read(uid)
	require.NoError(t, err)
	assert.Equal(t, []byte("original!"), got.Payload())
}

// TestRecoveryLeavesCommittedDataAloneWhenNoCrash is a sanity check
// that a clean redo/undo pass over an otherwise-quiescent log is a
// no-op for data that was already fully durable.
func TestRecoveryLeavesCommittedDataAloneWhenNoCrash(t *testing.T) {
	t.Parallel()

	p := newPaths(t)

	tm, err := xid.Create(p.xidFile)
	require.NoError(t, err)
	log, err := walog.Create(p.log)
	require.NoError(t, err)
	store, err := pagestore.Create(p.db, pagestore.MinCacheSize)
	require.NoError(t, err)

	dm := dataitem.New(store, log, pagestore.NewIndex(), 64)
	txid, err := tm.Begin()
	require.NoError(t, err)
	it, err := dm.Insert(txid, []byte("settled"))
	require.NoError(t, err)
	uid := it.UID()
	dm.Release(it)
	require.NoError(t, tm.Commit(txid))
	require.NoError(t, store.Close())
	require.NoError(t, log.Close())
	require.NoError(t, tm.Close())

	tm2, err := xid.Open(p.xidFile)
	require.NoError(t, err)
	log2, err := walog.Open(p.log)
	require.NoError(t, err)
	store2, err := pagestore.Open(p.db, pagestore.MinCacheSize)
	require.NoError(t, err)

	require.NoError(t, Recover(tm2, log2, store2, nil))

	dm2 := dataitem.New(store2, log2, pagestore.NewIndex(), 64)
	got, err := dm2.Read(uid)
	require.NoError(t, err)
	assert.Equal(t, []byte("settled"), got.Payload())
}
