package ginwalk

import (
	"fmt"

	"dinodb/pkg/ginpage"
	"dinodb/pkg/gintuple"
)

// keyBound is a detached copy of an entry-tree key, used as a frame's
// inherited upper or lower bound. A nil bound means unbounded (-infinity
// as a lower bound, +infinity as an upper bound).
type keyBound struct {
	category gintuple.Category
	key      []byte
}

func (b *keyBound) string() string {
	if b == nil {
		return "<unbounded>"
	}
	return fmt.Sprintf("%d:%x", b.category, b.key)
}

// entryFrame is one stack frame of the explicit, non-recursive entry-tree
// traversal. It carries only detached copies of the bounds implied by the
// parent page -- never a live pointer to the parent's page or tuples, so
// the parent page can be (and is) released well before this frame is
// popped.
type entryFrame struct {
	block       ginpage.BlockNumber
	depth       int
	lo          *keyBound // exclusive lower bound
	hi          *keyBound // inclusive upper bound; nil means unbounded
	parentBlock ginpage.BlockNumber
	hasParent   bool
}

func (w *walker) walkEntryTree() error {
	stack := []entryFrame{{block: w.rel.EntryTreeRoot(), depth: 0}}
	leafDepth := -1
	kindAtDepth := map[int]bool{} // depth -> isLeaf, first observed

	for len(stack) > 0 {
		if ce := checkCancelled(w.rel.Name(), w.cancel); ce != nil {
			return ce
		}
		frame := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		page, err := w.rel.Buffers().ReadShared(frame.block)
		if err != nil {
			return wrapErrAt(KindIOError, w.rel.Name(), frame.block, "reading entry tree page", err)
		}
		w.markVisited(frame.block)

		header, err := ginpage.ReadHeader(page)
		if err != nil {
			w.rel.Buffers().Release(page)
			return wrapErrAt(KindDecodingMismatch, w.rel.Name(), frame.block, "decoding entry page header", err)
		}
		if err := ginpage.Sanity(header); err != nil {
			w.rel.Buffers().Release(page)
			return wrapErrAt(KindStructuralCorruption, w.rel.Name(), frame.block, "entry page sanity check", err)
		}
		if header.IsDataPage() {
			w.rel.Buffers().Release(page)
			return newErrAt(KindStructuralCorruption, w.rel.Name(), frame.block, "entry tree page flagged as posting-tree data page")
		}
		if header.IsDeleted() {
			w.rel.Buffers().Release(page)
			continue
		}

		// Kind homogeneity (I2): every page at the same depth must agree
		// on leaf-ness.
		if seen, ok := kindAtDepth[frame.depth]; ok && seen != header.IsLeaf() {
			w.rel.Buffers().Release(page)
			return newErrAt(KindStructuralCorruption, w.rel.Name(), frame.block,
				fmt.Sprintf("depth %d mixes leaf and internal entry pages", frame.depth))
		}
		kindAtDepth[frame.depth] = header.IsLeaf()

		tuples := make([]gintuple.EntryTuple, 0, header.NumTuples)
		for i := int64(0); i < header.NumTuples; i++ {
			raw, err := ginpage.TupleBytes(page, i)
			if err != nil {
				w.rel.Buffers().Release(page)
				return wrapErrAt(KindDecodingMismatch, w.rel.Name(), frame.block, fmt.Sprintf("reading entry tuple slot %d", i), err)
			}
			t, err := gintuple.DecodeEntryTuple(raw, !header.IsLeaf())
			if err != nil {
				w.rel.Buffers().Release(page)
				return wrapErrAt(KindDecodingMismatch, w.rel.Name(), frame.block, fmt.Sprintf("decoding entry tuple %d", i), err)
			}
			tuples = append(tuples, t)
		}

		comparator := w.state.Comparator()

		// Move-right: if this page is not the rightmost at its level and
		// every key on it falls at or before frame.lo, a concurrent split
		// has pushed the content we're looking for to the right sibling.
		// Queue the sibling at the same depth with the same bounds rather
		// than treating this as corruption.
		if movedAway(comparator, header, tuples, frame.lo) {
			w.rel.Buffers().Release(page)
			if header.RightSibling == ginpage.InvalidBlockNumber {
				return newErrAt(KindStructuralCorruption, w.rel.Name(), frame.block, "page lagging behind a split has no right sibling to follow")
			}
			w.notices.Notice(w.runID, fmt.Sprintf("entry page %d appears stale behind a concurrent split; following right sibling %d", frame.block, header.RightSibling))
			stack = append(stack, entryFrame{block: header.RightSibling, depth: frame.depth, lo: frame.lo, hi: frame.hi, parentBlock: frame.parentBlock, hasParent: frame.hasParent})
			continue
		}

		// Validate intra-page order (I4) and that every key respects the
		// bounds this frame was given, honoring the rightmost high-key
		// exception for the very last tuple of a rightmost page.
		for i, t := range tuples {
			if i > 0 {
				prev := tuples[i-1]
				if comparator.Compare(prev.Category, prev.Key, t.Category, t.Key) >= 0 {
					w.rel.Buffers().Release(page)
					return newErrAt(KindStructuralCorruption, w.rel.Name(), frame.block, fmt.Sprintf("entry tuples %d and %d are not strictly increasing", i-1, i))
				}
			}
			if frame.lo != nil && comparator.Compare(frame.lo.category, frame.lo.key, t.Category, t.Key) >= 0 {
				w.rel.Buffers().Release(page)
				return newErrAt(KindStructuralCorruption, w.rel.Name(), frame.block, fmt.Sprintf("entry tuple %d at or below its page's lower bound", i))
			}
			isLastOfRightmostPage := header.IsRightmost() && i == len(tuples)-1
			if frame.hi != nil && !isLastOfRightmostPage {
				if comparator.Compare(t.Category, t.Key, frame.hi.category, frame.hi.key) > 0 {
					w.rel.Buffers().Release(page)
					return newErrAt(KindStructuralCorruption, w.rel.Name(), frame.block, fmt.Sprintf("entry tuple %d exceeds its page's upper bound", i))
				}
			}
		}

		// Parent-covers-child with high-key equality (I5): outside the
		// rightmost exception, a page's final key must equal the bound
		// its parent's downlink tuple assigned it. A mismatch that still
		// falls within bounds (checked above) is most often a parent
		// tuple left stale by a concurrent split rather than corruption,
		// so it's resolved via re-find before being treated as an error.
		if frame.hasParent && frame.hi != nil && len(tuples) > 0 {
			isLastOfRightmostPage := header.IsRightmost()
			last := tuples[len(tuples)-1]
			if !isLastOfRightmostPage && comparator.Compare(last.Category, last.Key, frame.hi.category, frame.hi.key) != 0 {
				resolved, benign, err := w.refindEntryHighKey(frame.parentBlock, frame.block, comparator)
				if err != nil {
					w.rel.Buffers().Release(page)
					return err
				}
				if !benign {
					if resolved == nil || comparator.Compare(last.Category, last.Key, resolved.category, resolved.key) != 0 {
						w.rel.Buffers().Release(page)
						return newErrAt(KindStructuralCorruption, w.rel.Name(), frame.block, "page's final key does not equal its parent's downlink key")
					}
					w.notices.Notice(w.runID, fmt.Sprintf("entry page %d high key re-matched parent %d after concurrent split", frame.block, frame.parentBlock))
				} else {
					w.notices.Notice(w.runID, fmt.Sprintf("entry page %d's parent downlink in %d not found; treating as in-flight split", frame.block, frame.parentBlock))
				}
			}
		}

		if header.IsLeaf() {
			if leafDepth == -1 {
				leafDepth = frame.depth
			} else if leafDepth != frame.depth {
				w.rel.Buffers().Release(page)
				return newErrAt(KindStructuralCorruption, w.rel.Name(), frame.block, fmt.Sprintf("entry leaf at depth %d, expected %d", frame.depth, leafDepth))
			}
			// Check each leaf entry's own payload (inline posting list or
			// posting-tree reference) before releasing the page.
			postingRoots := make([]ginpage.BlockNumber, 0)
			for i, t := range tuples {
				if err := validateLeafPayload(t); err != nil {
					w.rel.Buffers().Release(page)
					return wrapErrAt(KindStructuralCorruption, w.rel.Name(), frame.block, fmt.Sprintf("leaf entry %d payload", i), err)
				}
				if t.IsPostingTree {
					postingRoots = append(postingRoots, ginpage.BlockNumber(t.PostingTree))
				}
			}
			w.rel.Buffers().Release(page)
			for _, root := range postingRoots {
				if err := w.walkPostingTree(root); err != nil {
					return err
				}
			}
			continue
		}

		// Internal page: non-empty (I3) already implied by tuples being
		// decoded; but an internal page with zero tuples has no children
		// at all, which is never valid.
		if len(tuples) == 0 {
			w.rel.Buffers().Release(page)
			return newErrAt(KindStructuralCorruption, w.rel.Name(), frame.block, "internal entry page has no tuples")
		}

		children := make([]entryFrame, 0, len(tuples))
		lo := frame.lo
		for i, t := range tuples {
			// t.Key aliases the page buffer, which is released below;
			// copy it so the child frames own their bounds.
			key := append([]byte(nil), t.Key...)
			hi := &keyBound{category: t.Category, key: key}
			isLast := i == len(tuples)-1
			if isLast && header.IsRightmost() {
				hi = frame.hi // inherit the unbounded (or wider) bound
			}
			children = append(children, entryFrame{
				block:       ginpage.BlockNumber(t.Downlink),
				depth:       frame.depth + 1,
				lo:          lo,
				hi:          hi,
				parentBlock: frame.block,
				hasParent:   true,
			})
			lo = &keyBound{category: t.Category, key: key}
		}
		w.rel.Buffers().Release(page)

		// Push in reverse so the leftmost child is processed next, keeping
		// the traversal's observable order close to an in-order DFS even
		// though it's driven by an explicit stack rather than recursion.
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, children[i])
		}
	}
	return nil
}

// movedAway reports whether a page's entire key range falls at or below
// lo, which can only happen if the page we expected to find here has
// since been split and its relevant content pushed to a right sibling.
func movedAway(cmp interface {
	Compare(catA gintuple.Category, keyA []byte, catB gintuple.Category, keyB []byte) int
}, header ginpage.Header, tuples []gintuple.EntryTuple, lo *keyBound) bool {
	if lo == nil || len(tuples) == 0 || header.IsRightmost() {
		return false
	}
	last := tuples[len(tuples)-1]
	return cmp.Compare(last.Category, last.Key, lo.category, lo.key) <= 0
}

// validateLeafPayload checks a single leaf entry tuple's posting data
// shape without yet walking a referenced posting tree: the inline case's
// item pointers must be strictly ascending and carry a non-zero offset
// (the GIN convention for a valid heap line pointer), and exactly one of
// InlinePosting/PostingTree must be populated unless the tuple's category
// makes postings meaningless.
func validateLeafPayload(t gintuple.EntryTuple) error {
	if t.Category == gintuple.CategoryNullItem || t.Category == gintuple.CategoryEmptyItem {
		return nil
	}
	if t.IsPostingTree {
		if t.PostingTree == 0 {
			return fmt.Errorf("posting tree reference to block 0")
		}
		return nil
	}
	items := t.InlinePosting
	if len(items) == 0 {
		return fmt.Errorf("inline posting list is empty")
	}
	for i, ip := range items {
		if ip.Offset == 0 {
			return fmt.Errorf("item pointer %d has zero offset", i)
		}
		if i > 0 && items[i-1].Compare(ip) >= 0 {
			return fmt.Errorf("inline posting list not strictly ascending at index %d", i)
		}
	}
	return nil
}
