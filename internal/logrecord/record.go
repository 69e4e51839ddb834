// Package logrecord encodes and decodes the two kinds of write-ahead
// log payloads the data-item manager emits and recovery replays, per
// spec §4.10.
package logrecord

import (
	"encoding/binary"
	"fmt"

	"github.com/Curzsu/ShadowDB/internal/pagestore"
	"github.com/Curzsu/ShadowDB/internal/recid"
)

// Kind tags a log entry's payload format.
type Kind byte

const (
	// KindInsert tags an insert log entry.
	KindInsert Kind = 0x00
	// KindUpdate tags an update log entry.
	KindUpdate Kind = 0x01
)

// PeekKind reads the leading kind byte of a log payload.
func PeekKind(data []byte) (Kind, error) {
	if len(data) < 1 {
		return 0, fmt.Errorf("logrecord: empty payload")
	}
	return Kind(data[0]), nil
}

// Insert is the payload of an insert log entry:
// [0x00][xid:8][pgno:4][offset:2][framedItem:N].
type Insert struct {
	XID    uint64
	Pgno   pagestore.PageNo
	Offset uint16
	Item   []byte // the full [valid][size][payload] frame as written
}

// EncodeInsert serializes an Insert record.
func EncodeInsert(r Insert) []byte {
	buf := make([]byte, 1+8+4+2+len(r.Item))
	buf[0] = byte(KindInsert)
	binary.BigEndian.PutUint64(buf[1:9], r.XID)
	binary.BigEndian.PutUint32(buf[9:13], uint32(r.Pgno))
	binary.BigEndian.PutUint16(buf[13:15], r.Offset)
	copy(buf[15:], r.Item)
	return buf
}

// DecodeInsert parses an Insert record. data must include the leading
// kind byte.
func DecodeInsert(data []byte) (Insert, error) {
	if len(data) < 15 {
		return Insert{}, fmt.Errorf("logrecord: insert payload too short")
	}
	if Kind(data[0]) != KindInsert {
		return Insert{}, fmt.Errorf("logrecord: not an insert record")
	}
	r := Insert{
		XID:    binary.BigEndian.Uint64(data[1:9]),
		Pgno:   pagestore.PageNo(binary.BigEndian.Uint32(data[9:13])),
		Offset: binary.BigEndian.Uint16(data[13:15]),
		Item:   data[15:],
	}
	return r, nil
}

// UID computes the uid this insert produced.
func (r Insert) UID() recid.UID {
	return recid.New(r.Pgno, r.Offset)
}

// Update is the payload of an update log entry:
// [0x01][xid:8][uid:8][oldLen:4][old][newLen:4][new].
type Update struct {
	XID uint64
	UID recid.UID
	Old []byte
	New []byte
}

// EncodeUpdate serializes an Update record.
func EncodeUpdate(r Update) []byte {
	buf := make([]byte, 1+8+8+4+len(r.Old)+4+len(r.New))
	buf[0] = byte(KindUpdate)
	binary.BigEndian.PutUint64(buf[1:9], r.XID)
	binary.BigEndian.PutUint64(buf[9:17], uint64(r.UID))
	binary.BigEndian.PutUint32(buf[17:21], uint32(len(r.Old)))
	off := 21
	copy(buf[off:off+len(r.Old)], r.Old)
	off += len(r.Old)
	binary.BigEndian.PutUint32(buf[off:off+4], uint32(len(r.New)))
	off += 4
	copy(buf[off:off+len(r.New)], r.New)
	return buf
}

// DecodeUpdate parses an Update record. data must include the leading
// kind byte.
func DecodeUpdate(data []byte) (Update, error) {
	if len(data) < 21 {
		return Update{}, fmt.Errorf("logrecord: update payload too short")
	}
	if Kind(data[0]) != KindUpdate {
		return Update{}, fmt.Errorf("logrecord: not an update record")
	}
	xid := binary.BigEndian.Uint64(data[1:9])
	uid := recid.UID(binary.BigEndian.Uint64(data[9:17]))
	oldLen := binary.BigEndian.Uint32(data[17:21])
	off := 21
	if len(data) < off+int(oldLen)+4 {
		return Update{}, fmt.Errorf("logrecord: update payload truncated (old)")
	}
	old := data[off : off+int(oldLen)]
	off += int(oldLen)
	newLen := binary.BigEndian.Uint32(data[off : off+4])
	off += 4
	if len(data) < off+int(newLen) {
		return Update{}, fmt.Errorf("logrecord: update payload truncated (new)")
	}
	newData := data[off : off+int(newLen)]
	return Update{XID: xid, UID: uid, Old: old, New: newData}, nil
}
