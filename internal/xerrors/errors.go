// Package xerrors collects the sentinel errors raised by the storage and
// transaction core. Callers at the root package re-export the ones that
// are part of the public surface.
package xerrors

import "errors"

var (
	// ErrBadXIDFile is raised when the transaction status file's length
	// does not match the counter recorded in its header.
	ErrBadXIDFile = errors.New("shadowdb: xid file is corrupt or truncated")

	// ErrBadLogFile is raised when the write-ahead log's cumulative
	// checksum does not match the fold of its frames.
	ErrBadLogFile = errors.New("shadowdb: log file checksum mismatch")

	// ErrFileExists is raised by Create when the target already exists.
	ErrFileExists = errors.New("shadowdb: file already exists")

	// ErrFileNotExists is raised by Open when the target is missing.
	ErrFileNotExists = errors.New("shadowdb: file does not exist")

	// ErrFileCannotRW names the case of a file that cannot be opened
	// for read/write access. The open paths in xid, walog and pagestore
	// do not return it: they wrap the underlying os error instead.
	ErrFileCannotRW = errors.New("shadowdb: file cannot be opened for read/write")

	// ErrMemTooSmall is raised when the page cache is initialized with a
	// capacity below the minimum working set.
	ErrMemTooSmall = errors.New("shadowdb: cache capacity too small")

	// ErrCacheFull is raised by the ref-counted cache when a miss occurs
	// and the cache is already at capacity.
	ErrCacheFull = errors.New("shadowdb: cache is full")

	// ErrNullEntry is raised internally when a data item cannot be
	// resolved; callers convert it to an absent read/delete result.
	ErrNullEntry = errors.New("shadowdb: no such data item")

	// ErrDeadlock is raised by the lock table when granting a wait would
	// close a cycle in the wait-for graph.
	ErrDeadlock = errors.New("shadowdb: deadlock detected")

	// ErrConcurrentUpdate is raised when a transaction's write is
	// invalidated by a concurrent committed writer, or by a version it
	// cannot see under repeatable-read (version skip).
	ErrConcurrentUpdate = errors.New("shadowdb: concurrent update conflict")

	// ErrTxDone is raised when an operation is attempted on a
	// transaction that already has a terminal error or has already
	// committed/aborted.
	ErrTxDone = errors.New("shadowdb: transaction already terminated")

	// ErrClosed is raised when an operation is attempted after Close.
	ErrClosed = errors.New("shadowdb: engine is closed")

	// ErrValueTooLarge is raised when a record's payload would not fit
	// in a single page.
	ErrValueTooLarge = errors.New("shadowdb: value too large for a single page")
)
