// Package recid defines the uid identifying a data item: the
// combination of its page number and in-page byte offset.
package recid

import "github.com/Curzsu/ShadowDB/internal/pagestore"

// UID identifies a data item by packing its page number into the high
// 32 bits and its in-page offset into the low 32 bits.
type UID uint64

// New packs a page number and offset into a UID.
func New(pgno pagestore.PageNo, offset uint16) UID {
	return UID(uint64(pgno)<<32 | uint64(offset))
}

// PageNo unpacks the page number component of a UID.
func (u UID) PageNo() pagestore.PageNo {
	return pagestore.PageNo(uint64(u) >> 32)
}

// Offset unpacks the in-page offset component of a UID.
func (u UID) Offset() uint16 {
	return uint16(uint64(u) & 0xFFFFFFFF)
}
