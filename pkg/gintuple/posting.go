package gintuple

import (
	"encoding/binary"
	"fmt"

	"dinodb/pkg/ginpage"
)

// PostingItem is one entry on an internal posting-tree page: a key (the
// item pointer forming the high key of the child subtree) paired with the
// block number of that child.
type PostingItem struct {
	Key   ItemPointer
	Child ginpage.BlockNumber
}

// PostingItemSize is the fixed on-disk size of one posting item.
const PostingItemSize = ItemPointerSize + 4

// DecodePostingItem decodes one fixed-size posting item. data must be
// exactly PostingItemSize bytes -- a posting item has no internal length
// field of its own, so the slot it was read from is its only declared
// size, and any leftover bytes mean that slot disagrees with this format.
func DecodePostingItem(data []byte) (PostingItem, error) {
	if len(data) < PostingItemSize {
		return PostingItem{}, ErrTruncatedTuple
	}
	if len(data) > PostingItemSize {
		return PostingItem{}, ErrTrailingBytes
	}
	return PostingItem{
		Key:   UnmarshalItemPointer(data[0:ItemPointerSize]),
		Child: ginpage.BlockNumber(binary.LittleEndian.Uint32(data[ItemPointerSize:PostingItemSize])),
	}, nil
}

// EncodePostingItem serializes a posting item, used by the builder.
func EncodePostingItem(p PostingItem) []byte {
	buf := make([]byte, PostingItemSize)
	copy(buf[0:ItemPointerSize], MarshalItemPointer(p.Key))
	binary.LittleEndian.PutUint32(buf[ItemPointerSize:PostingItemSize], uint32(p.Child))
	return buf
}

// DecodePostingLeaf decodes a posting-tree leaf payload into its sorted
// list of item pointers. When compressed is true the payload is a
// length-prefixed stream of varbyte-encoded deltas from the previous item
// pointer (encoded as a single delta over the linearized (block, offset)
// space); when false it is a flat array of fixed-size item pointers, as
// produced by EncodeFlatPostingLeaf.
func DecodePostingLeaf(data []byte, compressed bool) ([]ItemPointer, error) {
	if !compressed {
		return decodeFlatPostingLeaf(data)
	}
	return decodeCompressedPostingLeaf(data)
}

func decodeFlatPostingLeaf(data []byte) ([]ItemPointer, error) {
	if len(data)%ItemPointerSize != 0 {
		return nil, ErrTruncatedTuple
	}
	n := len(data) / ItemPointerSize
	items := make([]ItemPointer, n)
	for i := 0; i < n; i++ {
		items[i] = UnmarshalItemPointer(data[i*ItemPointerSize : (i+1)*ItemPointerSize])
	}
	return items, nil
}

// linearize folds a (block, offset) pair into a single uint64 so that
// delta compression between consecutive item pointers stays positive
// whenever the list is strictly ascending.
func linearize(p ItemPointer) uint64 {
	return uint64(p.Block)<<16 | uint64(p.Offset)
}

func delinearize(v uint64) ItemPointer {
	return ItemPointer{
		Block:  ginpage.BlockNumber(v >> 16),
		Offset: uint16(v & 0xFFFF),
	}
}

// decodeCompressedPostingLeaf decodes a length-prefixed stream of
// zig-zag-free (always non-negative, since the list is strictly
// ascending) varbyte deltas: a varint item count, followed by that many
// uvarint-encoded deltas, the first taken from zero.
func decodeCompressedPostingLeaf(data []byte) ([]ItemPointer, error) {
	count, n := binary.Varint(data)
	if n <= 0 || count < 0 {
		return nil, ErrTruncatedTuple
	}
	data = data[n:]
	items := make([]ItemPointer, 0, count)
	var prev uint64
	for i := int64(0); i < count; i++ {
		delta, n := binary.Uvarint(data)
		if n <= 0 {
			return nil, ErrTruncatedTuple
		}
		data = data[n:]
		cur := prev + delta
		items = append(items, delinearize(cur))
		prev = cur
	}
	return items, nil
}

// EncodeCompressedPostingLeaf is the inverse of decodeCompressedPostingLeaf,
// used by the builder. Items must already be sorted and strictly ascending.
func EncodeCompressedPostingLeaf(items []ItemPointer) ([]byte, error) {
	buf := make([]byte, binary.MaxVarintLen64)
	n := binary.PutVarint(buf, int64(len(items)))
	out := append([]byte{}, buf[:n]...)

	var prev uint64
	for i, it := range items {
		cur := linearize(it)
		if i > 0 && cur <= prev {
			return nil, fmt.Errorf("gintuple: posting list not strictly ascending at index %d", i)
		}
		delta := cur - prev
		dbuf := make([]byte, binary.MaxVarintLen64)
		n := binary.PutUvarint(dbuf, delta)
		out = append(out, dbuf[:n]...)
		prev = cur
	}
	return out, nil
}

// EncodeFlatPostingLeaf serializes items as a flat array of fixed-size
// item pointers, used by the builder for uncompressed posting leaves.
func EncodeFlatPostingLeaf(items []ItemPointer) []byte {
	out := make([]byte, 0, len(items)*ItemPointerSize)
	for _, it := range items {
		out = append(out, MarshalItemPointer(it)...)
	}
	return out
}
