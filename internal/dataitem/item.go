// Package dataitem implements the data-item manager (C7): record
// slots inside pages, the before/after mutation protocol, and the
// recovery hooks that redo/undo item frames.
package dataitem

import (
	"encoding/binary"

	"github.com/Curzsu/ShadowDB/internal/pagestore"
)

// Frame layout within a page: [valid:1][size:2][payload:size].
const (
	ofValid = 0
	ofSize  = 1
	ofData  = 3
)

// MaxPayload is the largest payload that fits in an otherwise-empty
// page, after frame and FSO overhead.
const MaxPayload = pagestore.MaxFreeSpace - ofData

// WrapItem frames a payload as a fresh, valid item.
func WrapItem(payload []byte) []byte {
	buf := make([]byte, ofData+len(payload))
	buf[ofValid] = 0
	binary.BigEndian.PutUint16(buf[ofSize:ofData], uint16(len(payload)))
	copy(buf[ofData:], payload)
	return buf
}

// sizeAt reads the size field of the frame at offset.
func sizeAt(p *pagestore.Page, offset uint16) uint16 {
	return binary.BigEndian.Uint16(p.Data[offset+ofSize : offset+ofData])
}

// FrameAt returns the full frame (valid+size+payload) at offset, as a
// slice backed directly by the page's buffer.
func FrameAt(p *pagestore.Page, offset uint16) []byte {
	size := sizeAt(p, offset)
	end := offset + ofData + size
	return p.Data[offset:end]
}

// PayloadAt returns just the payload portion of the frame at offset,
// as a mutable slice backed directly by the page's buffer.
func PayloadAt(p *pagestore.Page, offset uint16) []byte {
	size := sizeAt(p, offset)
	start := offset + ofData
	return p.Data[start : start+size]
}

// IsValidAt reports whether the item at offset is live (valid byte 0).
func IsValidAt(p *pagestore.Page, offset uint16) bool {
	return p.Data[offset+ofValid] == 0
}

// SetInvalidAt flips the valid byte of the item at offset, logically
// deleting it. Used by recovery's undo pass.
func SetInvalidAt(p *pagestore.Page, offset uint16) {
	p.Data[offset+ofValid] = 1
	p.Dirty = true
}
