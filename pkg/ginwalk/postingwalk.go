package ginwalk

import (
	"fmt"

	"dinodb/pkg/ginpage"
	"dinodb/pkg/gintuple"
	"dinodb/pkg/pager"
)

// postingFrame is one stack frame of a single posting tree's explicit,
// non-recursive traversal. Bounds here are item pointers rather than
// entry-tree keys: an internal posting page's key IS its child's high
// key, so no separate comparator is involved -- ItemPointer.Compare is
// the only ordering posting trees need.
type postingFrame struct {
	block       ginpage.BlockNumber
	depth       int
	lo          *gintuple.ItemPointer
	hi          *gintuple.ItemPointer
	parentBlock ginpage.BlockNumber
	hasParent   bool
}

// walkPostingTree walks one key's posting tree in its entirety, checking
// the same family of structural invariants as the entry tree but over
// item-pointer keyed pages.
func (w *walker) walkPostingTree(root ginpage.BlockNumber) error {
	stack := []postingFrame{{block: root}}
	leafDepth := -1
	kindAtDepth := map[int]bool{}

	for len(stack) > 0 {
		if ce := checkCancelled(w.rel.Name(), w.cancel); ce != nil {
			return ce
		}
		frame := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		page, err := w.rel.Buffers().ReadShared(frame.block)
		if err != nil {
			return wrapErrAt(KindIOError, w.rel.Name(), frame.block, "reading posting tree page", err)
		}
		w.markVisited(frame.block)

		header, err := ginpage.ReadHeader(page)
		if err != nil {
			w.rel.Buffers().Release(page)
			return wrapErrAt(KindDecodingMismatch, w.rel.Name(), frame.block, "decoding posting page header", err)
		}
		if err := ginpage.Sanity(header); err != nil {
			w.rel.Buffers().Release(page)
			return wrapErrAt(KindStructuralCorruption, w.rel.Name(), frame.block, "posting page sanity check", err)
		}
		if !header.IsDataPage() {
			w.rel.Buffers().Release(page)
			return newErrAt(KindStructuralCorruption, w.rel.Name(), frame.block, "posting tree page not flagged as data page")
		}
		if header.IsDeleted() {
			w.rel.Buffers().Release(page)
			continue
		}

		if seen, ok := kindAtDepth[frame.depth]; ok && seen != header.IsLeaf() {
			w.rel.Buffers().Release(page)
			return newErrAt(KindStructuralCorruption, w.rel.Name(), frame.block, fmt.Sprintf("posting tree depth %d mixes leaf and internal pages", frame.depth))
		}
		kindAtDepth[frame.depth] = header.IsLeaf()

		if header.IsLeaf() {
			items, err := readPostingLeaf(page, header)
			if err != nil {
				w.rel.Buffers().Release(page)
				return wrapErrAt(KindDecodingMismatch, w.rel.Name(), frame.block, "decoding posting leaf payload", err)
			}
			if err := checkAscending(items); err != nil {
				w.rel.Buffers().Release(page)
				return newErrAt(KindStructuralCorruption, w.rel.Name(), frame.block, err.Error())
			}
			for i, ip := range items {
				if ip.Offset == 0 {
					w.rel.Buffers().Release(page)
					return newErrAt(KindStructuralCorruption, w.rel.Name(), frame.block, fmt.Sprintf("posting item %d has zero offset", i))
				}
			}
			if len(items) > 0 {
				first, last := items[0], items[len(items)-1]
				if frame.lo != nil && first.Compare(*frame.lo) <= 0 {
					w.rel.Buffers().Release(page)
					return newErrAt(KindStructuralCorruption, w.rel.Name(), frame.block, "posting leaf's first item is at or below its lower bound")
				}
				if frame.hi != nil && !header.IsRightmost() {
					if last.Compare(*frame.hi) > 0 {
						w.rel.Buffers().Release(page)
						return newErrAt(KindStructuralCorruption, w.rel.Name(), frame.block, "posting leaf's last item exceeds its upper bound")
					}
					if last.Compare(*frame.hi) != 0 {
						resolved, benign, rerr := w.refindPostingHighKey(frame.parentBlock, frame.block)
						if rerr != nil {
							w.rel.Buffers().Release(page)
							return rerr
						}
						if !benign {
							if resolved == nil || last.Compare(*resolved) != 0 {
								w.rel.Buffers().Release(page)
								return newErrAt(KindStructuralCorruption, w.rel.Name(), frame.block, "posting leaf's last item does not equal its parent's downlink key")
							}
							w.notices.Notice(w.runID, fmt.Sprintf("posting page %d high key re-matched parent %d after concurrent split", frame.block, frame.parentBlock))
						} else {
							w.notices.Notice(w.runID, fmt.Sprintf("posting page %d's parent downlink in %d not found; treating as in-flight split", frame.block, frame.parentBlock))
						}
					}
				}
			}
			if leafDepth == -1 {
				leafDepth = frame.depth
			} else if leafDepth != frame.depth {
				w.rel.Buffers().Release(page)
				return newErrAt(KindStructuralCorruption, w.rel.Name(), frame.block, fmt.Sprintf("posting leaf at depth %d, expected %d", frame.depth, leafDepth))
			}
			w.rel.Buffers().Release(page)
			continue
		}

		// Internal posting page.
		items := make([]gintuple.PostingItem, 0, header.NumTuples)
		for i := int64(0); i < header.NumTuples; i++ {
			raw, err := ginpage.TupleBytes(page, i)
			if err != nil {
				w.rel.Buffers().Release(page)
				return wrapErrAt(KindDecodingMismatch, w.rel.Name(), frame.block, fmt.Sprintf("reading posting item slot %d", i), err)
			}
			pi, err := gintuple.DecodePostingItem(raw)
			if err != nil {
				w.rel.Buffers().Release(page)
				return wrapErrAt(KindDecodingMismatch, w.rel.Name(), frame.block, fmt.Sprintf("decoding posting item %d", i), err)
			}
			items = append(items, pi)
		}
		if len(items) == 0 {
			w.rel.Buffers().Release(page)
			return newErrAt(KindStructuralCorruption, w.rel.Name(), frame.block, "internal posting page has no items")
		}
		for i := 1; i < len(items); i++ {
			if items[i-1].Key.Compare(items[i].Key) >= 0 {
				w.rel.Buffers().Release(page)
				return newErrAt(KindStructuralCorruption, w.rel.Name(), frame.block, fmt.Sprintf("posting items %d and %d are not strictly increasing", i-1, i))
			}
		}

		children := make([]postingFrame, 0, len(items))
		lo := frame.lo
		for i, it := range items {
			hi := it.Key
			isLast := i == len(items)-1
			var childHi *gintuple.ItemPointer
			if isLast && header.IsRightmost() {
				childHi = frame.hi
			} else {
				k := hi
				childHi = &k
			}
			children = append(children, postingFrame{
				block:       it.Child,
				depth:       frame.depth + 1,
				lo:          lo,
				hi:          childHi,
				parentBlock: frame.block,
				hasParent:   true,
			})
			k := it.Key
			lo = &k
		}
		w.rel.Buffers().Release(page)
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, children[i])
		}
	}
	return nil
}

// readPostingLeaf decodes a posting leaf's item pointers. A compressed
// leaf stores its entire varbyte-delta stream as one blob immediately
// after the page header, bypassing the slot directory every other page
// kind uses, since the whole point of compression is to avoid per-item
// slot overhead; an uncompressed leaf instead stores one item pointer per
// slot, same as any other tuple.
func readPostingLeaf(page *pager.Page, header ginpage.Header) ([]gintuple.ItemPointer, error) {
	if header.IsCompressed() {
		data := page.GetData()
		payload := data[ginpage.HeaderSize:]
		items, err := gintuple.DecodePostingLeaf(payload, true)
		if err != nil {
			return nil, err
		}
		if int64(len(items)) != header.NumTuples {
			return nil, fmt.Errorf("compressed posting leaf decoded %d items, header declares %d", len(items), header.NumTuples)
		}
		return items, nil
	}
	items := make([]gintuple.ItemPointer, 0, header.NumTuples)
	for i := int64(0); i < header.NumTuples; i++ {
		raw, err := ginpage.TupleBytes(page, i)
		if err != nil {
			return nil, err
		}
		flat, err := gintuple.DecodePostingLeaf(raw, false)
		if err != nil {
			return nil, err
		}
		items = append(items, flat...)
	}
	return items, nil
}

func checkAscending(items []gintuple.ItemPointer) error {
	for i := 1; i < len(items); i++ {
		if items[i-1].Compare(items[i]) >= 0 {
			return fmt.Errorf("posting leaf items %d and %d are not strictly ascending", i-1, i)
		}
	}
	return nil
}
