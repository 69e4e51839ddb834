package locktable

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Curzsu/ShadowDB/internal/xerrors"
)

func TestAcquireUnownedGrantsImmediately(t *testing.T) {
	t.Parallel()

	lt := New()
	l, err := lt.Acquire(1, 100)
	require.NoError(t, err)
	assert.Nil(t, l)
}

func TestReacquireSameXIDIsNoWait(t *testing.T) {
	t.Parallel()

	lt := New()
	_, err := lt.Acquire(1, 100)
	require.NoError(t, err)

	l, err := lt.Acquire(1, 100)
	require.NoError(t, err)
	assert.Nil(t, l)
}

func TestSecondXIDWaitsThenWakesOnRelease(t *testing.T) {
	t.Parallel()

	lt := New()
	_, err := lt.Acquire(1, 100)
	require.NoError(t, err)

	l, err := lt.Acquire(2, 100)
	require.NoError(t, err)
	require.NotNil(t, l)

	woke := make(chan struct{})
	go func() {
		l.Lock()
		close(woke)
	}()

	select {
	case <-woke:
		t.Fatal("second xid should still be waiting")
	case <-time.After(20 * time.Millisecond):
	}

	lt.Release(1)

	select {
	case <-woke:
	case <-time.After(time.Second):
		t.Fatal("second xid never woke after release")
	}
}

func TestDeadlockDetected(t *testing.T) {
	t.Parallel()

	lt := New()

	// T1 holds u1, T2 holds u2.
	_, err := lt.Acquire(1, 10)
	require.NoError(t, err)
	_, err = lt.Acquire(2, 20)
	require.NoError(t, err)

	// T1 waits on u2 (held by T2) — fine, no cycle yet.
	l, err := lt.Acquire(1, 20)
	require.NoError(t, err)
	require.NotNil(t, l)

	// T2 waits on u1 (held by T1) — closes the cycle T2->T1->T2.
	_, err = lt.Acquire(2, 10)
	assert.ErrorIs(t, err, xerrors.ErrDeadlock)
}

func TestNoFalseDeadlockOnIndependentChains(t *testing.T) {
	t.Parallel()

	lt := New()

	require_ := require.New(t)
	_, err := lt.Acquire(1, 1)
	require_.NoError(err)
	_, err = lt.Acquire(2, 2)
	require_.NoError(err)
	_, err = lt.Acquire(3, 3)
	require_.NoError(err)

	// 4 waits on uid 1 (held by 1): one wait edge, no cycle.
	l1, err := lt.Acquire(4, 1)
	require_.NoError(err)
	require_.NotNil(l1)

	// 5 waits on uid 2 and 6 waits on uid 3: independent edges, still no cycle.
	l2, err := lt.Acquire(5, 2)
	require_.NoError(err)
	require_.NotNil(l2)

	l3, err := lt.Acquire(6, 3)
	require_.NoError(err)
	require_.NotNil(l3)
}

func TestHooksObserveWaitsAndDeadlocks(t *testing.T) {
	t.Parallel()

	var waits, deadlocks int32
	lt := New()
	lt.SetHooks(Hooks{
		Wait:     func() { waits++ },
		Deadlock: func() { deadlocks++ },
	})

	_, err := lt.Acquire(1, 10)
	require.NoError(t, err)
	_, err = lt.Acquire(2, 20)
	require.NoError(t, err)

	l, err := lt.Acquire(1, 20)
	require.NoError(t, err)
	require.NotNil(t, l)
	assert.Equal(t, int32(1), waits)

	_, err = lt.Acquire(2, 10)
	assert.ErrorIs(t, err, xerrors.ErrDeadlock)
	assert.Equal(t, int32(1), deadlocks)
}

func TestReleaseCleansUpWaitingXIDFully(t *testing.T) {
	t.Parallel()

	lt := New()
	_, err := lt.Acquire(1, 100)
	require.NoError(t, err)

	_, err = lt.Acquire(2, 100)
	require.NoError(t, err)

	// T2 gives up without ever being granted (e.g. its own abort).
	lt.Release(2)

	// T1 can still release cleanly afterward.
	lt.Release(1)

	// uid 100 should now be grantable fresh.
	l, err := lt.Acquire(3, 100)
	require.NoError(t, err)
	assert.Nil(t, l)
}
