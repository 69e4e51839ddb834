// Package walog implements the write-ahead log (C5): a framed append
// log with a cumulative checksum header and torn-tail detection.
//
// File layout: [X: 4][frame1][frame2]...[frameN], frame = [size: 4]
// [checksum: 4][data: size]. X is the polynomial fold (seed 13331) of
// every complete frame's bytes (size+checksum+data); checksum is the
// same fold over data alone.
package walog

import (
	"encoding/binary"
	"fmt"
	"os"
	"sync"

	"github.com/Curzsu/ShadowDB/internal/xerrors"
)

const seed = 13331

const (
	ofSize     = 0
	ofChecksum = 4
	ofData     = 8
	headerLen  = 4
)

// fold computes the polynomial checksum of b, continuing from the
// accumulator acc. Each byte is folded as its signed int8 value, to
// match the original implementation's use of Java's signed byte.
func fold(acc int32, b []byte) int32 {
	for _, c := range b {
		acc = acc*seed + int32(int8(c))
	}
	return acc
}

func checksum(data []byte) uint32 {
	return uint32(fold(0, data))
}

// Log is the on-disk write-ahead log file (<db>.log).
type Log struct {
	mu       sync.Mutex
	file     *os.File
	position int64 // repair's scan position; ends at the last good frame boundary
	fileSize int64
	xCheck   uint32

	onAppend func(bytes int)
}

// SetAppendHook installs fn to be called with the payload length of
// every successful Append, for metrics purposes. Intended to be set
// once, right after Create/Open.
func (l *Log) SetAppendHook(fn func(bytes int)) { l.onAppend = fn }

// Create initializes a new, empty log file.
func Create(path string) (*Log, error) {
	if _, err := os.Stat(path); err == nil {
		return nil, xerrors.ErrFileExists
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return nil, fmt.Errorf("walog: create: %w", err)
	}
	var hdr [headerLen]byte
	if _, err := f.Write(hdr[:]); err != nil {
		f.Close()
		return nil, fmt.Errorf("walog: write header: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return nil, fmt.Errorf("walog: sync header: %w", err)
	}
	return &Log{file: f, fileSize: headerLen}, nil
}

// Open opens an existing log file and repairs any torn tail, failing
// with ErrBadLogFile if the verified portion's checksum does not match
// the stored header.
func Open(path string) (*Log, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0644)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, xerrors.ErrFileNotExists
		}
		return nil, fmt.Errorf("walog: open: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("walog: stat: %w", err)
	}
	if info.Size() < headerLen {
		f.Close()
		return nil, xerrors.ErrBadLogFile
	}

	var hdr [headerLen]byte
	if _, err := f.ReadAt(hdr[:], 0); err != nil {
		f.Close()
		return nil, fmt.Errorf("walog: read header: %w", err)
	}

	l := &Log{
		file:     f,
		fileSize: info.Size(),
		xCheck:   binary.BigEndian.Uint32(hdr[:]),
	}

	if err := l.repair(); err != nil {
		f.Close()
		return nil, err
	}

	return l, nil
}

// repair verifies the whole file against the stored cumulative
// checksum and truncates any torn tail, per spec §4.5.
func (l *Log) repair() error {
	l.position = headerLen
	var fold32 int32

	for {
		frame, frameLen, ok := l.readFrameAt(l.position)
		if !ok {
			break
		}
		fold32 = fold(fold32, frame)
		l.position += frameLen
	}

	if uint32(fold32) != l.xCheck {
		return xerrors.ErrBadLogFile
	}

	if l.position != l.fileSize {
		if err := l.file.Truncate(l.position); err != nil {
			return fmt.Errorf("walog: truncate bad tail: %w", err)
		}
		l.fileSize = l.position
	}
	return nil
}

// readFrameAt reads and validates one complete frame at off, returning
// its full bytes (size+checksum+data), its length, and whether a
// complete, checksum-valid frame was present.
func (l *Log) readFrameAt(off int64) ([]byte, int64, bool) {
	if off+ofData > l.fileSize {
		return nil, 0, false
	}

	head := make([]byte, ofData)
	if _, err := l.file.ReadAt(head, off); err != nil {
		return nil, 0, false
	}
	size := binary.BigEndian.Uint32(head[ofSize:ofChecksum])
	storedChecksum := binary.BigEndian.Uint32(head[ofChecksum:ofData])

	frameLen := int64(ofData) + int64(size)
	if off+frameLen > l.fileSize {
		return nil, 0, false
	}

	frame := make([]byte, frameLen)
	if _, err := l.file.ReadAt(frame, off); err != nil {
		return nil, 0, false
	}

	if checksum(frame[ofData:]) != storedChecksum {
		return nil, 0, false
	}

	return frame, frameLen, true
}

// Append writes a new log entry and durably updates the cumulative
// checksum header. The write is forced to disk before returning, so a
// successful Append happens-before any page mutation that depends on
// it becoming crash-durable.
func (l *Log) Append(data []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	frame := make([]byte, ofData+len(data))
	binary.BigEndian.PutUint32(frame[ofSize:ofChecksum], uint32(len(data)))
	binary.BigEndian.PutUint32(frame[ofChecksum:ofData], checksum(data))
	copy(frame[ofData:], data)

	if _, err := l.file.WriteAt(frame, l.fileSize); err != nil {
		return fmt.Errorf("walog: append: %w", err)
	}

	l.xCheck = uint32(fold(int32(l.xCheck), frame))
	var hdr [headerLen]byte
	binary.BigEndian.PutUint32(hdr[:], l.xCheck)
	if _, err := l.file.WriteAt(hdr[:], 0); err != nil {
		return fmt.Errorf("walog: update header: %w", err)
	}
	if err := l.file.Sync(); err != nil {
		return fmt.Errorf("walog: sync: %w", err)
	}

	l.fileSize += int64(len(frame))
	if l.onAppend != nil {
		l.onAppend(len(data))
	}
	return nil
}

// Iterate calls fn with the data payload of every valid frame in file
// order, starting after the header. It stops silently at the first
// incomplete or checksum-invalid frame (the bad tail).
func (l *Log) Iterate(fn func(data []byte) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	pos := int64(headerLen)
	for {
		frame, frameLen, ok := l.readFrameAt(pos)
		if !ok {
			return nil
		}
		if err := fn(frame[ofData:]); err != nil {
			return err
		}
		pos += frameLen
	}
}

// Close closes the underlying file handle.
func (l *Log) Close() error {
	return l.file.Close()
}
