package ginwalk

import (
	"dinodb/pkg/ginpage"
	"dinodb/pkg/gintuple"
)

// refindEntryHighKey re-reads the parent entry page fresh and looks for
// the tuple whose downlink still points at child. If found, it returns
// that tuple's current key as the authoritative bound and benign=false.
// If no such tuple exists any more, the parent has moved on (its tuple
// for this child was coalesced away by a split that completed between
// our read of the parent and this re-find), which is treated as benign:
// callers should advise and continue rather than fail.
func (w *walker) refindEntryHighKey(parentBlock, child ginpage.BlockNumber, comparator interface {
	Compare(catA gintuple.Category, keyA []byte, catB gintuple.Category, keyB []byte) int
}) (resolved *keyBound, benign bool, err error) {
	page, readErr := w.rel.Buffers().ReadShared(parentBlock)
	if readErr != nil {
		return nil, false, wrapErrAt(KindIOError, w.rel.Name(), parentBlock, "re-reading parent entry page for downlink re-find", readErr)
	}
	defer w.rel.Buffers().Release(page)

	header, decErr := ginpage.ReadHeader(page)
	if decErr != nil {
		return nil, false, wrapErrAt(KindDecodingMismatch, w.rel.Name(), parentBlock, "decoding parent entry page header during re-find", decErr)
	}
	if header.IsLeaf() {
		// The parent can no longer be an internal page; nothing to
		// re-find against. Treat as benign: the tree shape changed
		// under us and we simply can't corroborate further.
		return nil, true, nil
	}

	for i := int64(0); i < header.NumTuples; i++ {
		raw, tErr := ginpage.TupleBytes(page, i)
		if tErr != nil {
			continue
		}
		t, decErr := gintuple.DecodeEntryTuple(raw, true)
		if decErr != nil {
			continue
		}
		if ginpage.BlockNumber(t.Downlink) == child {
			return &keyBound{category: t.Category, key: t.Key}, false, nil
		}
	}
	return nil, true, nil
}

// refindPostingHighKey is the posting-tree analogue of
// refindEntryHighKey: it re-reads the parent posting page fresh and
// looks for the item whose child block still matches.
func (w *walker) refindPostingHighKey(parentBlock, child ginpage.BlockNumber) (resolved *gintuple.ItemPointer, benign bool, err error) {
	page, readErr := w.rel.Buffers().ReadShared(parentBlock)
	if readErr != nil {
		return nil, false, wrapErrAt(KindIOError, w.rel.Name(), parentBlock, "re-reading parent posting page for downlink re-find", readErr)
	}
	defer w.rel.Buffers().Release(page)

	header, decErr := ginpage.ReadHeader(page)
	if decErr != nil {
		return nil, false, wrapErrAt(KindDecodingMismatch, w.rel.Name(), parentBlock, "decoding parent posting page header during re-find", decErr)
	}
	if header.IsLeaf() {
		return nil, true, nil
	}
	for i := int64(0); i < header.NumTuples; i++ {
		raw, tErr := ginpage.TupleBytes(page, i)
		if tErr != nil {
			continue
		}
		pi, decErr := gintuple.DecodePostingItem(raw)
		if decErr != nil {
			continue
		}
		if pi.Child == child {
			k := pi.Key
			return &k, false, nil
		}
	}
	return nil, true, nil
}
