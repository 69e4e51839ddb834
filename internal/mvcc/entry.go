package mvcc

import "encoding/binary"

// entryHeaderLen is the size of the xmin/xmax header prefixed to every
// record's user payload before it is handed to the data-item manager.
const entryHeaderLen = 16

// wrapEntryRaw builds the raw bytes a new record stores: the creating
// xid in xmin, a zero xmax (not yet deleted), and the caller's data.
func wrapEntryRaw(xid uint64, data []byte) []byte {
	raw := make([]byte, entryHeaderLen+len(data))
	binary.BigEndian.PutUint64(raw[0:8], xid)
	// xmax stays zero.
	copy(raw[entryHeaderLen:], data)
	return raw
}

func xminAt(raw []byte) uint64 { return binary.BigEndian.Uint64(raw[0:8]) }
func xmaxAt(raw []byte) uint64 { return binary.BigEndian.Uint64(raw[8:16]) }

func setXmaxAt(raw []byte, xid uint64) {
	binary.BigEndian.PutUint64(raw[8:16], xid)
}

func dataAt(raw []byte) []byte { return raw[entryHeaderLen:] }
