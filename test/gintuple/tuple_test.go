package gintuple_test

import (
	"reflect"
	"testing"

	"dinodb/pkg/ginpage"
	"dinodb/pkg/gintuple"
)

func TestItemPointerRoundTrip(t *testing.T) {
	want := gintuple.ItemPointer{Block: 7, Offset: 42}
	got := gintuple.UnmarshalItemPointer(gintuple.MarshalItemPointer(want))
	if got != want {
		t.Errorf("round trip mismatch: got %+v, want %+v", got, want)
	}
}

func TestItemPointerCompare(t *testing.T) {
	a := gintuple.ItemPointer{Block: 1, Offset: 5}
	b := gintuple.ItemPointer{Block: 1, Offset: 6}
	c := gintuple.ItemPointer{Block: 2, Offset: 0}
	if a.Compare(b) >= 0 {
		t.Error("expected a < b")
	}
	if b.Compare(c) >= 0 {
		t.Error("expected b < c")
	}
	if a.Compare(a) != 0 {
		t.Error("expected a == a")
	}
}

func TestEntryTupleLeafRoundTripInline(t *testing.T) {
	tup := gintuple.EntryTuple{
		AttrNum:  1,
		Category: gintuple.CategoryNormal,
		Key:      []byte("banana"),
		InlinePosting: []gintuple.ItemPointer{
			{Block: 1, Offset: 1},
			{Block: 1, Offset: 2},
			{Block: 3, Offset: 1},
		},
	}
	data := gintuple.EncodeEntryTuple(tup)
	got, err := gintuple.DecodeEntryTuple(data, false)
	if err != nil {
		t.Fatalf("decode failed: %s", err)
	}
	if got.AttrNum != tup.AttrNum || got.Category != tup.Category || string(got.Key) != string(tup.Key) {
		t.Fatalf("header mismatch: got %+v", got)
	}
	if !reflect.DeepEqual(got.InlinePosting, tup.InlinePosting) {
		t.Fatalf("inline posting mismatch: got %+v, want %+v", got.InlinePosting, tup.InlinePosting)
	}
}

func TestEntryTupleLeafRoundTripPostingTree(t *testing.T) {
	tup := gintuple.EntryTuple{
		Category:      gintuple.CategoryNormal,
		Key:           []byte("kiwi"),
		IsPostingTree: true,
		PostingTree:   99,
	}
	data := gintuple.EncodeEntryTuple(tup)
	got, err := gintuple.DecodeEntryTuple(data, false)
	if err != nil {
		t.Fatalf("decode failed: %s", err)
	}
	if !got.IsPostingTree || got.PostingTree != 99 {
		t.Fatalf("posting tree ref mismatch: got %+v", got)
	}
}

func TestEntryTupleNullItemHasNoPostingData(t *testing.T) {
	tup := gintuple.EntryTuple{Category: gintuple.CategoryNullItem}
	data := gintuple.EncodeEntryTuple(tup)
	got, err := gintuple.DecodeEntryTuple(data, false)
	if err != nil {
		t.Fatalf("decode failed: %s", err)
	}
	if got.IsPostingTree || len(got.InlinePosting) != 0 {
		t.Fatalf("expected no posting data for NullItem, got %+v", got)
	}
}

func TestEntryTupleInternalRoundTrip(t *testing.T) {
	tup := gintuple.EntryTuple{
		Category:   gintuple.CategoryNormal,
		Key:        []byte("mango"),
		IsInternal: true,
		Downlink:   17,
	}
	data := gintuple.EncodeEntryTuple(tup)
	got, err := gintuple.DecodeEntryTuple(data, true)
	if err != nil {
		t.Fatalf("decode failed: %s", err)
	}
	if got.Downlink != 17 || !got.IsInternal {
		t.Fatalf("internal tuple mismatch: got %+v", got)
	}
}

func TestEntryTupleTruncated(t *testing.T) {
	tup := gintuple.EntryTuple{Category: gintuple.CategoryNormal, Key: []byte("pear")}
	data := gintuple.EncodeEntryTuple(tup)
	for i := 0; i < len(data); i++ {
		if _, err := gintuple.DecodeEntryTuple(data[:i], false); err == nil {
			t.Fatalf("expected truncation error decoding %d of %d bytes", i, len(data))
		}
	}
}

func TestEntryTupleRejectsTrailingBytes(t *testing.T) {
	tup := gintuple.EntryTuple{
		Category:      gintuple.CategoryNormal,
		Key:           []byte("grape"),
		InlinePosting: []gintuple.ItemPointer{{Block: 1, Offset: 1}},
	}
	data := append(gintuple.EncodeEntryTuple(tup), 0xFF, 0xFF)
	if _, err := gintuple.DecodeEntryTuple(data, false); err != gintuple.ErrTrailingBytes {
		t.Fatalf("expected ErrTrailingBytes for an oversized slot, got %v", err)
	}
}

func TestPostingItemRoundTrip(t *testing.T) {
	want := gintuple.PostingItem{Key: gintuple.ItemPointer{Block: 4, Offset: 9}, Child: 12}
	got, err := gintuple.DecodePostingItem(gintuple.EncodePostingItem(want))
	if err != nil {
		t.Fatalf("decode failed: %s", err)
	}
	if got != want {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, want)
	}
}

func TestPostingItemRejectsTrailingBytes(t *testing.T) {
	data := append(gintuple.EncodePostingItem(gintuple.PostingItem{Key: gintuple.ItemPointer{Block: 1, Offset: 1}, Child: 2}), 0x00)
	if _, err := gintuple.DecodePostingItem(data); err != gintuple.ErrTrailingBytes {
		t.Fatalf("expected ErrTrailingBytes for an oversized posting item, got %v", err)
	}
}

func strictlyAscendingItems() []gintuple.ItemPointer {
	return []gintuple.ItemPointer{
		{Block: 1, Offset: 1},
		{Block: 1, Offset: 5},
		{Block: 2, Offset: 0},
		{Block: ginpage.BlockNumber(100), Offset: 65000},
	}
}

func TestFlatPostingLeafRoundTrip(t *testing.T) {
	items := strictlyAscendingItems()
	got, err := gintuple.DecodePostingLeaf(gintuple.EncodeFlatPostingLeaf(items), false)
	if err != nil {
		t.Fatalf("decode failed: %s", err)
	}
	if !reflect.DeepEqual(got, items) {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, items)
	}
}

func TestCompressedPostingLeafRoundTrip(t *testing.T) {
	items := strictlyAscendingItems()
	blob, err := gintuple.EncodeCompressedPostingLeaf(items)
	if err != nil {
		t.Fatalf("encode failed: %s", err)
	}
	got, err := gintuple.DecodePostingLeaf(blob, true)
	if err != nil {
		t.Fatalf("decode failed: %s", err)
	}
	if !reflect.DeepEqual(got, items) {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, items)
	}
}

func TestCompressedPostingLeafRejectsNonAscending(t *testing.T) {
	items := []gintuple.ItemPointer{
		{Block: 2, Offset: 0},
		{Block: 1, Offset: 0},
	}
	if _, err := gintuple.EncodeCompressedPostingLeaf(items); err == nil {
		t.Fatal("expected an error encoding a non-ascending posting list")
	}
}
