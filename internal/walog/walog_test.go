package walog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendThenIterateRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "test.log")
	l, err := Create(path)
	require.NoError(t, err)
	defer l.Close()

	require.NoError(t, l.Append([]byte("hello")))
	require.NoError(t, l.Append([]byte("world")))

	var got []string
	err = l.Iterate(func(data []byte) error {
		got = append(got, string(data))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"hello", "world"}, got)
}

func TestIterateEmptyYieldsNothing(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "test.log")
	l, err := Create(path)
	require.NoError(t, err)
	defer l.Close()

	var count int
	err = l.Iterate(func(data []byte) error {
		count++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestTornTailTruncatedOnReopen(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "test.log")
	l, err := Create(path)
	require.NoError(t, err)

	require.NoError(t, l.Append([]byte("first")))
	require.NoError(t, l.Append([]byte("second")))
	require.NoError(t, l.Close())

	// Simulate a crash mid-write of a third entry: append extra bytes
	// that look like the start of a frame but are incomplete.
	f, err := os.OpenFile(path, os.O_RDWR|os.O_APPEND, 0644)
	require.NoError(t, err)
	_, err = f.Write([]byte{0, 0, 0, 100, 0, 0, 0, 1, 'x', 'y'})
	require.NoError(t, err)
	require.NoError(t, f.Close())

	l2, err := Open(path)
	require.NoError(t, err)
	defer l2.Close()

	var got []string
	err = l2.Iterate(func(data []byte) error {
		got = append(got, string(data))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second"}, got)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(headerLen+ofData+len("first")+ofData+len("second")), info.Size(), "torn tail should have been truncated")
}

func TestAppendHookObservesPayloadSize(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "test.log")
	l, err := Create(path)
	require.NoError(t, err)
	defer l.Close()

	var total, calls int
	l.SetAppendHook(func(n int) {
		total += n
		calls++
	})

	require.NoError(t, l.Append([]byte("hello")))
	require.NoError(t, l.Append([]byte("!!")))

	assert.Equal(t, 2, calls)
	assert.Equal(t, 7, total)
}

func TestAppendAfterReopenExtendsCleanly(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "test.log")
	l, err := Create(path)
	require.NoError(t, err)
	require.NoError(t, l.Append([]byte("a")))
	require.NoError(t, l.Close())

	l2, err := Open(path)
	require.NoError(t, err)
	defer l2.Close()
	require.NoError(t, l2.Append([]byte("b")))

	var got []string
	err = l2.Iterate(func(data []byte) error {
		got = append(got, string(data))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, got)
}
