// Package ginpage classifies and sanity-checks the raw pages backing a GIN
// index: every page, whether it belongs to the entry tree or to one of the
// per-key posting trees, carries the same small header describing its kind
// and its place among its siblings.
package ginpage

import (
	"encoding/binary"
	"errors"
	"fmt"

	"dinodb/pkg/pager"
)

// BlockNumber identifies a page within the relation's backing file.
type BlockNumber uint32

// InvalidBlockNumber marks the absence of a sibling or child pointer.
const InvalidBlockNumber BlockNumber = 1<<32 - 1

// Flag bits stored in every GIN page's header.
const (
	FlagLeaf       byte = 0x01
	FlagDeleted    byte = 0x02
	FlagData       byte = 0x04
	FlagCompressed byte = 0x08
	FlagRightmost  byte = 0x10
)

// Header layout constants, following the same fixed-offset-plus-varint
// convention used throughout the rest of the page formats in this module.
const (
	FlagsOffset        int64 = 0
	FlagsSize          int64 = 1
	NumTuplesOffset    int64 = FlagsOffset + FlagsSize
	NumTuplesSize      int64 = binary.MaxVarintLen64
	RightSiblingOffset int64 = NumTuplesOffset + NumTuplesSize
	RightSiblingSize   int64 = binary.MaxVarintLen64
	HeaderSize         int64 = FlagsSize + NumTuplesSize + RightSiblingSize
)

// ErrPageTooSmall is returned when a page's header doesn't leave room for
// the slot directory or tuple bytes it claims to hold.
var ErrPageTooSmall = errors.New("ginpage: header does not fit on page")

// Header is the decoded form of a page's fixed-size header.
type Header struct {
	Flags        byte
	NumTuples    int64
	RightSibling BlockNumber
}

// IsLeaf reports whether the page is a leaf of whichever tree it belongs to.
func (h Header) IsLeaf() bool { return h.Flags&FlagLeaf != 0 }

// IsDeleted reports whether the page has been recycled and carries no live tuples.
func (h Header) IsDeleted() bool { return h.Flags&FlagDeleted != 0 }

// IsDataPage reports whether the page belongs to a posting tree (as opposed
// to the entry tree).
func (h Header) IsDataPage() bool { return h.Flags&FlagData != 0 }

// IsCompressed reports whether a posting-tree leaf's payload is the
// varbyte-delta encoded form rather than a flat array of item pointers.
func (h Header) IsCompressed() bool { return h.Flags&FlagCompressed != 0 }

// IsRightmost reports whether the page is the rightmost page at its level,
// meaning it has no right sibling and its implicit high key is +infinity.
func (h Header) IsRightmost() bool { return h.Flags&FlagRightmost != 0 }

// ReadHeader decodes the header of the given page.
func ReadHeader(page *pager.Page) (Header, error) {
	data := page.GetData()
	if int64(len(data)) < HeaderSize {
		return Header{}, ErrPageTooSmall
	}
	numTuples, _ := binary.Varint(data[NumTuplesOffset : NumTuplesOffset+NumTuplesSize])
	sibling, _ := binary.Varint(data[RightSiblingOffset : RightSiblingOffset+RightSiblingSize])
	return Header{
		Flags:        data[FlagsOffset],
		NumTuples:    numTuples,
		RightSibling: BlockNumber(sibling),
	}, nil
}

// WriteHeader serializes h into the page's header region. Used only by the
// index builder, never by the checker itself.
func WriteHeader(page *pager.Page, h Header) {
	flagByte := make([]byte, FlagsSize)
	flagByte[0] = h.Flags
	page.Update(flagByte, FlagsOffset, FlagsSize)

	numTuples := make([]byte, NumTuplesSize)
	binary.PutVarint(numTuples, h.NumTuples)
	page.Update(numTuples, NumTuplesOffset, NumTuplesSize)

	sibling := make([]byte, RightSiblingSize)
	binary.PutVarint(sibling, int64(h.RightSibling))
	page.Update(sibling, RightSiblingOffset, RightSiblingSize)
}

// Sanity performs the page-local structural checks that don't require
// looking at any other page: a deleted page must be a leaf and must carry
// no tuples, and the tuple count must be non-negative and no larger than
// the number of slot descriptors that fit on the page after the header.
func Sanity(h Header) error {
	if h.IsDeleted() {
		if !h.IsLeaf() {
			return fmt.Errorf("ginpage: deleted page flagged as internal")
		}
		if h.NumTuples != 0 {
			return fmt.Errorf("ginpage: deleted page carries %d tuples", h.NumTuples)
		}
		return nil
	}
	if h.NumTuples < 0 {
		return fmt.Errorf("ginpage: negative tuple count %d", h.NumTuples)
	}
	maxPossible := (pager.Pagesize - HeaderSize) / SlotSize
	if h.NumTuples > maxPossible {
		return fmt.Errorf("ginpage: implausible tuple count %d for page size %d", h.NumTuples, pager.Pagesize)
	}
	return nil
}

// SlotDirectoryOffset is where the first tuple-slot descriptor begins.
const SlotDirectoryOffset int64 = HeaderSize

// SlotSize is the size, in bytes, of one (offset, length) directory entry.
const SlotSize int64 = 4

// Slot is a pointer into the variable-length tuple area of a page, in the
// style of Postgres's ItemId / line pointer array: tuples are packed from
// the end of the page backwards, while the directory grows forward from
// the header. Sanity's bound keeps the directory itself on the page;
// packSlottedPage refuses a tuple set whose bytes would overlap it.
type Slot struct {
	Offset uint16
	Length uint16
}

// ReadSlot reads the i'th slot descriptor from the page.
func ReadSlot(page *pager.Page, i int64) Slot {
	pos := SlotDirectoryOffset + i*SlotSize
	data := page.GetData()
	return Slot{
		Offset: binary.LittleEndian.Uint16(data[pos : pos+2]),
		Length: binary.LittleEndian.Uint16(data[pos+2 : pos+4]),
	}
}

// WriteSlot writes the i'th slot descriptor. Used only by the builder.
func WriteSlot(page *pager.Page, i int64, s Slot) {
	buf := make([]byte, SlotSize)
	binary.LittleEndian.PutUint16(buf[0:2], s.Offset)
	binary.LittleEndian.PutUint16(buf[2:4], s.Length)
	page.Update(buf, SlotDirectoryOffset+i*SlotSize, SlotSize)
}

// TupleBytes returns the raw bytes of the i'th tuple on the page.
func TupleBytes(page *pager.Page, i int64) ([]byte, error) {
	s := ReadSlot(page, i)
	data := page.GetData()
	end := int64(s.Offset) + int64(s.Length)
	if s.Offset == 0 && s.Length == 0 {
		return nil, fmt.Errorf("ginpage: slot %d is empty", i)
	}
	if end > int64(len(data)) || int64(s.Offset) < SlotDirectoryOffset {
		return nil, fmt.Errorf("ginpage: slot %d out of bounds", i)
	}
	return data[s.Offset:end], nil
}
