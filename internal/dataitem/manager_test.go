package dataitem

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Curzsu/ShadowDB/internal/pagestore"
	"github.com/Curzsu/ShadowDB/internal/walog"
)

func newManager(t *testing.T) *Manager {
	t.Helper()
	dir := t.TempDir()

	store, err := pagestore.Create(filepath.Join(dir, "test.db"), pagestore.MinCacheSize)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	log, err := walog.Create(filepath.Join(dir, "test.log"))
	require.NoError(t, err)
	t.Cleanup(func() { log.Close() })

	return New(store, log, pagestore.NewIndex(), 64)
}

func TestInsertThenReadRoundTrip(t *testing.T) {
	t.Parallel()

	m := newManager(t)

	it, err := m.Insert(1, []byte("hello world"))
	require.NoError(t, err)
	uid := it.UID()
	m.Release(it)

	got, err := m.Read(uid)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello world"), got.Payload())
	m.Release(got)
}

func TestMutationProtocolLogsUpdate(t *testing.T) {
	t.Parallel()

	m := newManager(t)

	it, err := m.Insert(1, []byte("original"))
	require.NoError(t, err)
	uid := it.UID()
	m.Release(it)

	it2, err := m.Read(uid)
	require.NoError(t, err)

	it2.Before()
	copy(it2.Payload(), []byte("changed!"))
	require.NoError(t, it2.After(2))
	m.Release(it2)

	it3, err := m.Read(uid)
	require.NoError(t, err)
	assert.Equal(t, []byte("changed!"), it3.Payload())
	m.Release(it3)
}

func TestUnBeforeRestoresOldBytes(t *testing.T) {
	t.Parallel()

	m := newManager(t)

	it, err := m.Insert(1, []byte("keepme!!"))
	require.NoError(t, err)
	uid := it.UID()
	m.Release(it)

	it2, err := m.Read(uid)
	require.NoError(t, err)
	it2.Before()
	copy(it2.Payload(), []byte("trashed!"))
	it2.UnBefore()
	m.Release(it2)

	it3, err := m.Read(uid)
	require.NoError(t, err)
	assert.Equal(t, []byte("keepme!!"), it3.Payload())
	m.Release(it3)
}

func TestLargestPayloadFits(t *testing.T) {
	t.Parallel()

	m := newManager(t)

	payload := make([]byte, MaxPayload)
	it, err := m.Insert(1, payload)
	require.NoError(t, err)
	m.Release(it)
}

func TestOversizedPayloadRejected(t *testing.T) {
	t.Parallel()

	m := newManager(t)

	payload := make([]byte, MaxPayload+1)
	_, err := m.Insert(1, payload)
	assert.Error(t, err)
}

func TestInsertReusesFreedSpaceViaIndex(t *testing.T) {
	t.Parallel()

	m := newManager(t)

	// First insert allocates a fresh page; its remaining free space
	// should be indexed and reused by the next insert rather than
	// allocating a second page.
	it1, err := m.Insert(1, []byte("a"))
	require.NoError(t, err)
	pg1 := it1.uid.PageNo()
	m.Release(it1)

	it2, err := m.Insert(1, []byte("b"))
	require.NoError(t, err)
	pg2 := it2.uid.PageNo()
	m.Release(it2)

	assert.Equal(t, pg1, pg2)
}
