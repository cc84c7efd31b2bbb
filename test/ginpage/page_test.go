package ginpage_test

import (
	"testing"

	"dinodb/pkg/ginpage"
	"dinodb/pkg/pager"
	"dinodb/test/utils"
)

func openPager(t *testing.T) *pager.Pager {
	t.Helper()
	p, err := pager.New(utils.GetTempDbFile(t))
	if err != nil {
		t.Fatalf("failed to open pager: %s", err)
	}
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func TestHeaderRoundTrip(t *testing.T) {
	p := openPager(t)
	page, err := p.GetNewPage()
	if err != nil {
		t.Fatalf("failed to allocate page: %s", err)
	}
	defer p.PutPage(page)

	want := ginpage.Header{
		Flags:        ginpage.FlagLeaf | ginpage.FlagData,
		NumTuples:    5,
		RightSibling: 12,
	}
	ginpage.WriteHeader(page, want)

	got, err := ginpage.ReadHeader(page)
	if err != nil {
		t.Fatalf("failed to read header: %s", err)
	}
	if got != want {
		t.Fatalf("header round trip mismatch: got %+v, want %+v", got, want)
	}
	if !got.IsLeaf() || !got.IsDataPage() || got.IsDeleted() || got.IsCompressed() || got.IsRightmost() {
		t.Fatalf("flag predicates disagree with flags byte: %+v", got)
	}
}

func TestSanityRejectsDeletedInternalPage(t *testing.T) {
	h := ginpage.Header{Flags: ginpage.FlagDeleted}
	if err := ginpage.Sanity(h); err == nil {
		t.Fatal("expected an error for a deleted page flagged as internal")
	}
}

func TestSanityRejectsDeletedPageWithTuples(t *testing.T) {
	h := ginpage.Header{Flags: ginpage.FlagDeleted | ginpage.FlagLeaf, NumTuples: 3}
	if err := ginpage.Sanity(h); err == nil {
		t.Fatal("expected an error for a deleted page carrying tuples")
	}
}

func TestSanityAcceptsEmptyDeletedLeaf(t *testing.T) {
	h := ginpage.Header{Flags: ginpage.FlagDeleted | ginpage.FlagLeaf}
	if err := ginpage.Sanity(h); err != nil {
		t.Fatalf("expected a deleted, empty leaf to pass sanity, got %s", err)
	}
}

func TestSanityRejectsNegativeTupleCount(t *testing.T) {
	h := ginpage.Header{Flags: ginpage.FlagLeaf, NumTuples: -1}
	if err := ginpage.Sanity(h); err == nil {
		t.Fatal("expected an error for a negative tuple count")
	}
}

func TestSanityRejectsImplausibleTupleCount(t *testing.T) {
	h := ginpage.Header{Flags: ginpage.FlagLeaf, NumTuples: pager.Pagesize}
	if err := ginpage.Sanity(h); err == nil {
		t.Fatal("expected an error for an implausibly large tuple count")
	}
}

func TestSlotAndTupleBytesRoundTrip(t *testing.T) {
	p := openPager(t)
	page, err := p.GetNewPage()
	if err != nil {
		t.Fatalf("failed to allocate page: %s", err)
	}
	defer p.PutPage(page)

	payload := []byte("hello gin")
	offset := pager.Pagesize - int64(len(payload))
	page.Update(payload, offset, int64(len(payload)))
	ginpage.WriteSlot(page, 0, ginpage.Slot{Offset: uint16(offset), Length: uint16(len(payload))})

	got, err := ginpage.TupleBytes(page, 0)
	if err != nil {
		t.Fatalf("failed to read tuple bytes: %s", err)
	}
	if string(got) != string(payload) {
		t.Fatalf("tuple bytes mismatch: got %q, want %q", got, payload)
	}
}

func TestTupleBytesRejectsEmptySlot(t *testing.T) {
	p := openPager(t)
	page, err := p.GetNewPage()
	if err != nil {
		t.Fatalf("failed to allocate page: %s", err)
	}
	defer p.PutPage(page)

	if _, err := ginpage.TupleBytes(page, 0); err == nil {
		t.Fatal("expected an error reading an empty slot")
	}
}
