package ginindex

import (
	"dinodb/pkg/ginpage"
	"dinodb/pkg/gintuple"
	"dinodb/pkg/pager"
)

// postingLevel is one level of freshly written sibling pages, in
// left-to-right order, each paired with the high key a parent tuple
// pointing at it should carry.
type postingLevel struct {
	blocks  []ginpage.BlockNumber
	highKey []gintuple.ItemPointer // highKey[i] is the last item pointer written under blocks[i]
}

// buildPostingTree writes a dedicated posting tree for a single key's item
// pointer list, once it has outgrown the inline threshold, returning the
// tree's root block. items must already be sorted and strictly ascending.
func buildPostingTree(p *pager.Pager, items []gintuple.ItemPointer, opts Options) (ginpage.BlockNumber, error) {
	leaves, err := buildPostingLeaves(p, items, opts)
	if err != nil {
		return 0, err
	}
	level := leaves
	for len(level.blocks) > 1 {
		level, err = buildPostingInternalLevel(p, level, opts)
		if err != nil {
			return 0, err
		}
	}
	return level.blocks[0], nil
}

func buildPostingLeaves(p *pager.Pager, items []gintuple.ItemPointer, opts Options) (postingLevel, error) {
	ranges := chunk(len(items), opts.MaxPostingItemsPerLeaf)
	pages := make([]*pager.Page, len(ranges))
	level := postingLevel{
		blocks:  make([]ginpage.BlockNumber, len(ranges)),
		highKey: make([]gintuple.ItemPointer, len(ranges)),
	}
	for i, r := range ranges {
		page, err := allocPage(p)
		if err != nil {
			return postingLevel{}, err
		}
		pages[i] = page
		level.blocks[i] = ginpage.BlockNumber(page.GetPageNum())
		level.highKey[i] = items[r[1]-1]

		chunkItems := items[r[0]:r[1]]
		h := ginpage.Header{Flags: ginpage.FlagLeaf | ginpage.FlagData, RightSibling: ginpage.InvalidBlockNumber}
		if i == len(ranges)-1 {
			h.Flags |= ginpage.FlagRightmost
		}

		if opts.CompressPostingLeaves {
			blob, err := gintuple.EncodeCompressedPostingLeaf(chunkItems)
			if err != nil {
				return postingLevel{}, err
			}
			h.Flags |= ginpage.FlagCompressed
			if err := packBlobPage(page, blob, int64(len(chunkItems)), h); err != nil {
				return postingLevel{}, err
			}
		} else {
			tupleBytes := make([][]byte, len(chunkItems))
			for j, it := range chunkItems {
				tupleBytes[j] = gintuple.MarshalItemPointer(it)
			}
			if err := packSlottedPage(page, tupleBytes, h); err != nil {
				return postingLevel{}, err
			}
		}
	}
	// Now that every leaf has a block number, wire up right-sibling links
	// and release the pages.
	if err := linkSiblings(p, pages, level.blocks); err != nil {
		return postingLevel{}, err
	}
	return level, nil
}

func buildPostingInternalLevel(p *pager.Pager, child postingLevel, opts Options) (postingLevel, error) {
	n := len(child.blocks)
	ranges := chunk(n, opts.MaxPostingItemsPerInternal)
	pages := make([]*pager.Page, len(ranges))
	level := postingLevel{
		blocks:  make([]ginpage.BlockNumber, len(ranges)),
		highKey: make([]gintuple.ItemPointer, len(ranges)),
	}
	for i, r := range ranges {
		page, err := allocPage(p)
		if err != nil {
			return postingLevel{}, err
		}
		pages[i] = page
		level.blocks[i] = ginpage.BlockNumber(page.GetPageNum())
		level.highKey[i] = child.highKey[r[1]-1]

		tupleBytes := make([][]byte, r[1]-r[0])
		for j := r[0]; j < r[1]; j++ {
			tupleBytes[j-r[0]] = gintuple.EncodePostingItem(gintuple.PostingItem{
				Key:   child.highKey[j],
				Child: child.blocks[j],
			})
		}
		h := ginpage.Header{Flags: ginpage.FlagData, RightSibling: ginpage.InvalidBlockNumber}
		if i == len(ranges)-1 {
			h.Flags |= ginpage.FlagRightmost
		}
		if err := packSlottedPage(page, tupleBytes, h); err != nil {
			return postingLevel{}, err
		}
	}
	if err := linkSiblings(p, pages, level.blocks); err != nil {
		return postingLevel{}, err
	}
	return level, nil
}
