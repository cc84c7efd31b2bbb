package gintuple

import (
	"encoding/binary"
	"errors"
)

// Category tags what kind of key an entry tuple carries. Category is part
// of the tuple's ordering key, not a side channel: two tuples with equal
// Key but different Category are NOT duplicates, and category must be
// compared before key bytes are compared at all.
type Category byte

const (
	CategoryNormal    Category = 0 // an ordinary indexed key
	CategoryNullKey   Category = 1 // a NULL appearing as an element value
	CategoryNullItem  Category = 2 // the heap tuple's whole indexed value was NULL
	CategoryEmptyItem Category = 3 // the heap tuple's indexed value had zero elements
)

// ErrTruncatedTuple is returned when a tuple's declared structure runs
// past the bytes actually available.
var ErrTruncatedTuple = errors.New("gintuple: truncated tuple")

// ErrTrailingBytes is returned when a tuple's declared structure is
// fully decoded but bytes remain in the slot afterward -- the slot's
// length disagrees with what the tuple itself declares.
var ErrTrailingBytes = errors.New("gintuple: trailing bytes after decoded tuple")

// EntryTuple is a decoded entry-tree tuple: an attribute number, a key
// with its category, and either an inline posting list or a pointer to
// that key's posting tree root. Internal entry tuples instead carry a
// downlink block number, stored directly after the key where a leaf
// tuple's posting payload would begin.
type EntryTuple struct {
	AttrNum  int16
	Category Category
	Key      []byte // raw key bytes; nil for NullItem/EmptyItem categories

	IsPostingTree bool                // true if this tuple holds a PostingTreeRoot rather than InlinePosting
	PostingTree   uint32              // valid iff IsPostingTree
	InlinePosting []ItemPointer       // valid iff !IsPostingTree && !internal
	Downlink      uint32              // valid iff this tuple came from an internal entry-tree page
	IsInternal    bool
}

// entry tuple wire layout:
//
//	attrNum   int16 (2 bytes, little endian)
//	category  byte
//	keyLen    varint
//	key       keyLen bytes
//	if internal:
//	    downlink uint32
//	else if category is NullItem/EmptyItem:
//	    (nothing further; no posting data is meaningful)
//	else if posting-tree flag byte == 1:
//	    postingTreeRoot uint32
//	else:
//	    postingTreeRoot flag byte == 0
//	    numItems varint
//	    numItems * ItemPointerSize bytes of sorted, distinct item pointers

// DecodeEntryTuple decodes a single entry tuple from raw bytes. isInternal
// must reflect whether the tuple came from an internal (non-leaf)
// entry-tree page, since internal and leaf entry tuples are laid out
// differently after the key.
func DecodeEntryTuple(data []byte, isInternal bool) (EntryTuple, error) {
	if len(data) < 3 {
		return EntryTuple{}, ErrTruncatedTuple
	}
	attrNum := int16(binary.LittleEndian.Uint16(data[0:2]))
	category := Category(data[2])
	rest := data[3:]

	keyLen, n := binary.Varint(rest)
	if n <= 0 {
		return EntryTuple{}, ErrTruncatedTuple
	}
	rest = rest[n:]
	if keyLen < 0 || int64(len(rest)) < keyLen {
		return EntryTuple{}, ErrTruncatedTuple
	}
	var key []byte
	if keyLen > 0 {
		key = rest[:keyLen]
	}
	rest = rest[keyLen:]

	t := EntryTuple{
		AttrNum:    attrNum,
		Category:   category,
		Key:        key,
		IsInternal: isInternal,
	}

	if isInternal {
		if len(rest) < 4 {
			return EntryTuple{}, ErrTruncatedTuple
		}
		t.Downlink = binary.LittleEndian.Uint32(rest[0:4])
		rest = rest[4:]
		return finishDecode(t, rest)
	}

	if category == CategoryNullItem || category == CategoryEmptyItem {
		return finishDecode(t, rest)
	}

	if len(rest) < 1 {
		return EntryTuple{}, ErrTruncatedTuple
	}
	isPostingTree := rest[0] == 1
	rest = rest[1:]
	t.IsPostingTree = isPostingTree
	if isPostingTree {
		if len(rest) < 4 {
			return EntryTuple{}, ErrTruncatedTuple
		}
		t.PostingTree = binary.LittleEndian.Uint32(rest[0:4])
		rest = rest[4:]
		return finishDecode(t, rest)
	}

	numItems, n := binary.Varint(rest)
	if n <= 0 || numItems < 0 {
		return EntryTuple{}, ErrTruncatedTuple
	}
	rest = rest[n:]
	if int64(len(rest)) < numItems*ItemPointerSize {
		return EntryTuple{}, ErrTruncatedTuple
	}
	items := make([]ItemPointer, numItems)
	for i := int64(0); i < numItems; i++ {
		items[i] = UnmarshalItemPointer(rest[i*ItemPointerSize : (i+1)*ItemPointerSize])
	}
	t.InlinePosting = items
	rest = rest[numItems*ItemPointerSize:]
	return finishDecode(t, rest)
}

// finishDecode enforces that a tuple's declared structure consumed the
// slot's bytes exactly -- trailing bytes left over after every known
// field has been read mean the slot's length disagrees with what the
// tuple itself declares, the same defect a short slot represents.
func finishDecode(t EntryTuple, rest []byte) (EntryTuple, error) {
	if len(rest) != 0 {
		return EntryTuple{}, ErrTrailingBytes
	}
	return t, nil
}

// EncodeEntryTuple is the inverse of DecodeEntryTuple, used by the index
// builder when constructing fixtures.
func EncodeEntryTuple(t EntryTuple) []byte {
	var buf []byte
	head := make([]byte, 2)
	binary.LittleEndian.PutUint16(head, uint16(t.AttrNum))
	buf = append(buf, head...)
	buf = append(buf, byte(t.Category))

	keyLenBuf := make([]byte, binary.MaxVarintLen64)
	n := binary.PutVarint(keyLenBuf, int64(len(t.Key)))
	buf = append(buf, keyLenBuf[:n]...)
	buf = append(buf, t.Key...)

	if t.IsInternal {
		dl := make([]byte, 4)
		binary.LittleEndian.PutUint32(dl, t.Downlink)
		buf = append(buf, dl...)
		return buf
	}

	if t.Category == CategoryNullItem || t.Category == CategoryEmptyItem {
		return buf
	}

	if t.IsPostingTree {
		buf = append(buf, 1)
		root := make([]byte, 4)
		binary.LittleEndian.PutUint32(root, t.PostingTree)
		buf = append(buf, root...)
		return buf
	}

	buf = append(buf, 0)
	cntBuf := make([]byte, binary.MaxVarintLen64)
	n = binary.PutVarint(cntBuf, int64(len(t.InlinePosting)))
	buf = append(buf, cntBuf[:n]...)
	for _, ip := range t.InlinePosting {
		buf = append(buf, MarshalItemPointer(ip)...)
	}
	return buf
}
