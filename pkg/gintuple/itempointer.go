// Package gintuple decodes the two tuple shapes stored in GIN pages: entry
// tuples (on entry-tree pages) and posting items / posting-leaf payloads
// (on posting-tree pages).
package gintuple

import (
	"encoding/binary"

	"dinodb/pkg/ginpage"
)

// ItemPointer identifies a heap tuple by (block, offset within block). It
// is also reused, on internal posting-tree pages, as the high key of the
// child subtree it points at.
type ItemPointer struct {
	Block  ginpage.BlockNumber
	Offset uint16
}

// Compare returns -1, 0 or 1 the way bytes.Compare does, ordering item
// pointers lexicographically by (Block, Offset).
func (p ItemPointer) Compare(other ItemPointer) int {
	if p.Block != other.Block {
		if p.Block < other.Block {
			return -1
		}
		return 1
	}
	if p.Offset != other.Offset {
		if p.Offset < other.Offset {
			return -1
		}
		return 1
	}
	return 0
}

// ItemPointerSize is the on-disk size of one marshaled ItemPointer.
const ItemPointerSize = 6

// MarshalItemPointer serializes an item pointer into a fixed 6-byte form.
func MarshalItemPointer(p ItemPointer) []byte {
	buf := make([]byte, ItemPointerSize)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(p.Block))
	binary.LittleEndian.PutUint16(buf[4:6], p.Offset)
	return buf
}

// UnmarshalItemPointer decodes a fixed 6-byte item pointer. The slice must
// be at least ItemPointerSize bytes long.
func UnmarshalItemPointer(data []byte) ItemPointer {
	return ItemPointer{
		Block:  ginpage.BlockNumber(binary.LittleEndian.Uint32(data[0:4])),
		Offset: binary.LittleEndian.Uint16(data[4:6]),
	}
}
