package shadowdb

import "github.com/Curzsu/ShadowDB/internal/xerrors"

// Sentinel errors, re-exported from internal/xerrors for callers that
// don't want to import an internal package to use errors.Is.
var (
	ErrFileExists       = xerrors.ErrFileExists
	ErrFileNotExists    = xerrors.ErrFileNotExists
	ErrMemTooSmall      = xerrors.ErrMemTooSmall
	ErrCacheFull        = xerrors.ErrCacheFull
	ErrDeadlock         = xerrors.ErrDeadlock
	ErrConcurrentUpdate = xerrors.ErrConcurrentUpdate
	ErrTxDone           = xerrors.ErrTxDone
	ErrClosed           = xerrors.ErrClosed
	ErrValueTooLarge    = xerrors.ErrValueTooLarge
	ErrBadXIDFile       = xerrors.ErrBadXIDFile
	ErrBadLogFile       = xerrors.ErrBadLogFile
)
