// Package xid implements the transaction status store (C2): a durable,
// append-style record of every transaction's state, keyed by xid.
package xid

import (
	"encoding/binary"
	"fmt"
	"os"
	"sync"

	"github.com/Curzsu/ShadowDB/internal/xerrors"
)

// Status is the terminal or in-flight state of a transaction.
type Status byte

const (
	// StatusActive marks a transaction that has begun but not yet
	// terminated.
	StatusActive Status = 0
	// StatusCommitted marks a transaction that committed.
	StatusCommitted Status = 1
	// StatusAborted marks a transaction that aborted.
	StatusAborted Status = 2
)

// SuperXID is the always-committed, never-active transaction id used
// for system-owned records.
const SuperXID uint64 = 0

const headerLen = 8 // 8-byte big-endian xid counter

// Store is the on-disk transaction status file (<db>.xid).
type Store struct {
	mu      sync.Mutex
	file    *os.File
	counter uint64
}

// Create initializes a new, empty status file at path.
func Create(path string) (*Store, error) {
	if _, err := os.Stat(path); err == nil {
		return nil, xerrors.ErrFileExists
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return nil, fmt.Errorf("xid: create: %w", err)
	}
	var hdr [headerLen]byte
	if _, err := f.Write(hdr[:]); err != nil {
		f.Close()
		return nil, fmt.Errorf("xid: write header: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return nil, fmt.Errorf("xid: sync header: %w", err)
	}
	return &Store{file: f}, nil
}

// Open opens an existing status file, validating header-vs-length
// integrity per spec §4.2.
func Open(path string) (*Store, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0644)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, xerrors.ErrFileNotExists
		}
		return nil, fmt.Errorf("xid: open: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("xid: stat: %w", err)
	}
	if info.Size() < headerLen {
		f.Close()
		return nil, xerrors.ErrBadXIDFile
	}

	var hdr [headerLen]byte
	if _, err := f.ReadAt(hdr[:], 0); err != nil {
		f.Close()
		return nil, fmt.Errorf("xid: read header: %w", err)
	}
	counter := binary.BigEndian.Uint64(hdr[:])

	if info.Size() != headerLen+int64(counter) {
		f.Close()
		return nil, xerrors.ErrBadXIDFile
	}

	return &Store{file: f, counter: counter}, nil
}

func position(id uint64) int64 {
	return headerLen + int64(id-1)
}

// Begin allocates a new active xid, durably.
func (s *Store) Begin() (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.counter + 1
	if err := s.writeStatus(id, StatusActive); err != nil {
		return 0, err
	}
	if err := s.incrCounter(id); err != nil {
		return 0, err
	}
	return id, nil
}

func (s *Store) writeStatus(id uint64, status Status) error {
	if _, err := s.file.WriteAt([]byte{byte(status)}, position(id)); err != nil {
		return fmt.Errorf("xid: write status: %w", err)
	}
	if err := s.file.Sync(); err != nil {
		return fmt.Errorf("xid: sync status: %w", err)
	}
	return nil
}

func (s *Store) incrCounter(id uint64) error {
	s.counter = id
	var hdr [headerLen]byte
	binary.BigEndian.PutUint64(hdr[:], s.counter)
	if _, err := s.file.WriteAt(hdr[:], 0); err != nil {
		return fmt.Errorf("xid: write counter: %w", err)
	}
	if err := s.file.Sync(); err != nil {
		return fmt.Errorf("xid: sync counter: %w", err)
	}
	return nil
}

// Commit durably marks xid as committed.
func (s *Store) Commit(id uint64) error {
	return s.writeStatus(id, StatusCommitted)
}

// Abort durably marks xid as aborted.
func (s *Store) Abort(id uint64) error {
	return s.writeStatus(id, StatusAborted)
}

// Status reads the current status byte for xid. The super transaction
// always reads as committed.
func (s *Store) Status(id uint64) (Status, error) {
	if id == SuperXID {
		return StatusCommitted, nil
	}
	var b [1]byte
	if _, err := s.file.ReadAt(b[:], position(id)); err != nil {
		return 0, fmt.Errorf("xid: read status: %w", err)
	}
	return Status(b[0]), nil
}

// IsActive, IsCommitted, IsAborted are convenience predicates matching
// the original TransactionManager interface shape.
func (s *Store) IsActive(id uint64) (bool, error) {
	if id == SuperXID {
		return false, nil
	}
	st, err := s.Status(id)
	return st == StatusActive, err
}

func (s *Store) IsCommitted(id uint64) (bool, error) {
	if id == SuperXID {
		return true, nil
	}
	st, err := s.Status(id)
	return st == StatusCommitted, err
}

func (s *Store) IsAborted(id uint64) (bool, error) {
	if id == SuperXID {
		return false, nil
	}
	st, err := s.Status(id)
	return st == StatusAborted, err
}

// Counter returns the highest xid ever allocated.
func (s *Store) Counter() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counter
}

// Close closes the underlying file handle.
func (s *Store) Close() error {
	return s.file.Close()
}
