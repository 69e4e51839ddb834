// Package pagestore implements the fixed-size page file (C3), the
// append-only "normal page" layout (C4), and the free-space bucket
// index (C6).
package pagestore

import (
	"encoding/binary"
	"sync"
)

// Size is the fixed size of every page, in bytes.
const Size = 8192

// ofFSO is the offset of the 2-byte free-space-offset header.
const ofFSO = 0

// ofData is the first byte available for payload.
const ofData = 2

// MaxFreeSpace is the usable payload capacity of an empty page.
const MaxFreeSpace = Size - ofData

// PageNo is a 1-based page number.
type PageNo uint32

// Page is one fixed-size block of the page file, held in memory. Its
// mutex guards exclusive sections (e.g. a data-item manager's
// before/after mutation protocol); it does not guard Dirty or the
// cache's own bookkeeping, which the store/cache mutex owns.
type Page struct {
	No    PageNo
	Data  [Size]byte
	Dirty bool

	mu sync.Mutex
}

// Lock and Unlock expose the page's exclusive-section mutex.
func (p *Page) Lock()   { p.mu.Lock() }
func (p *Page) Unlock() { p.mu.Unlock() }

// InitRaw returns a freshly formatted page body with FSO set to the
// first free byte.
func InitRaw() [Size]byte {
	var data [Size]byte
	setFSO(&data, ofData)
	return data
}

func setFSO(data *[Size]byte, fso uint16) {
	binary.BigEndian.PutUint16(data[ofFSO:ofData], fso)
}

// FSO returns the page's current free-space offset.
func FSO(p *Page) uint16 {
	return binary.BigEndian.Uint16(p.Data[ofFSO:ofData])
}

// FreeSpace returns the number of unused bytes remaining in the page.
func FreeSpace(p *Page) int {
	return Size - int(FSO(p))
}

// Insert appends raw at the page's current FSO, advances FSO past it,
// marks the page dirty, and returns the offset written.
func Insert(p *Page, raw []byte) uint16 {
	offset := FSO(p)
	copy(p.Data[offset:], raw)
	setFSO(&p.Data, offset+uint16(len(raw)))
	p.Dirty = true
	return offset
}

// RedoInsert writes raw at offset during recovery, growing FSO if the
// write extends past the page's current high-water mark.
func RedoInsert(p *Page, raw []byte, offset uint16) {
	copy(p.Data[offset:], raw)
	end := offset + uint16(len(raw))
	if end > FSO(p) {
		setFSO(&p.Data, end)
	}
	p.Dirty = true
}

// RedoUpdate writes raw at offset in place during recovery, without
// advancing FSO: updates never extend past their record's original
// high-water mark.
func RedoUpdate(p *Page, raw []byte, offset uint16) {
	copy(p.Data[offset:], raw)
	p.Dirty = true
}
