package ginindex

import (
	"dinodb/pkg/ginpage"
	"dinodb/pkg/gintuple"
	"dinodb/pkg/pager"
)

// entryLevel is one level of freshly written entry-tree sibling pages, left
// to right, each paired with the (category, key) of the last leaf tuple
// reachable under it -- the high key a parent tuple pointing at it carries.
type entryLevel struct {
	blocks  []ginpage.BlockNumber
	highKey []gintuple.EntryTuple // only Category and Key are meaningful here
}

// buildEntryTree writes the entry tree itself, bottom-up from a sorted set
// of already-constructed leaf tuples, returning the root block. Any key that
// needed a posting tree has already had one built and wired into its tuple's
// PostingTree field by the time it reaches here.
func buildEntryTree(p *pager.Pager, leafTuples []gintuple.EntryTuple, opts Options) (ginpage.BlockNumber, error) {
	level, err := buildEntryLeaves(p, leafTuples, opts)
	if err != nil {
		return 0, err
	}
	for len(level.blocks) > 1 {
		level, err = buildEntryInternalLevel(p, level, opts)
		if err != nil {
			return 0, err
		}
	}
	return level.blocks[0], nil
}

func buildEntryLeaves(p *pager.Pager, tuples []gintuple.EntryTuple, opts Options) (entryLevel, error) {
	ranges := chunk(len(tuples), opts.MaxEntryTuplesPerPage)
	pages := make([]*pager.Page, len(ranges))
	level := entryLevel{
		blocks:  make([]ginpage.BlockNumber, len(ranges)),
		highKey: make([]gintuple.EntryTuple, len(ranges)),
	}
	for i, r := range ranges {
		page, err := allocPage(p)
		if err != nil {
			return entryLevel{}, err
		}
		pages[i] = page
		level.blocks[i] = ginpage.BlockNumber(page.GetPageNum())
		last := tuples[r[1]-1]
		level.highKey[i] = gintuple.EntryTuple{Category: last.Category, Key: last.Key}

		tupleBytes := make([][]byte, r[1]-r[0])
		for j := r[0]; j < r[1]; j++ {
			t := tuples[j]
			t.IsInternal = false
			tupleBytes[j-r[0]] = gintuple.EncodeEntryTuple(t)
		}
		h := ginpage.Header{Flags: ginpage.FlagLeaf, RightSibling: ginpage.InvalidBlockNumber}
		if i == len(ranges)-1 {
			h.Flags |= ginpage.FlagRightmost
		}
		if err := packSlottedPage(page, tupleBytes, h); err != nil {
			return entryLevel{}, err
		}
	}
	if err := linkSiblings(p, pages, level.blocks); err != nil {
		return entryLevel{}, err
	}
	return level, nil
}

func buildEntryInternalLevel(p *pager.Pager, child entryLevel, opts Options) (entryLevel, error) {
	ranges := chunk(len(child.blocks), opts.MaxEntryTuplesPerPage)
	pages := make([]*pager.Page, len(ranges))
	level := entryLevel{
		blocks:  make([]ginpage.BlockNumber, len(ranges)),
		highKey: make([]gintuple.EntryTuple, len(ranges)),
	}
	for i, r := range ranges {
		page, err := allocPage(p)
		if err != nil {
			return entryLevel{}, err
		}
		pages[i] = page
		level.blocks[i] = ginpage.BlockNumber(page.GetPageNum())
		level.highKey[i] = child.highKey[r[1]-1]

		tupleBytes := make([][]byte, r[1]-r[0])
		for j := r[0]; j < r[1]; j++ {
			hk := child.highKey[j]
			tupleBytes[j-r[0]] = gintuple.EncodeEntryTuple(gintuple.EntryTuple{
				Category:   hk.Category,
				Key:        hk.Key,
				IsInternal: true,
				Downlink:   uint32(child.blocks[j]),
			})
		}
		h := ginpage.Header{RightSibling: ginpage.InvalidBlockNumber}
		if i == len(ranges)-1 {
			h.Flags |= ginpage.FlagRightmost
		}
		if err := packSlottedPage(page, tupleBytes, h); err != nil {
			return entryLevel{}, err
		}
	}
	if err := linkSiblings(p, pages, level.blocks); err != nil {
		return entryLevel{}, err
	}
	return level, nil
}

