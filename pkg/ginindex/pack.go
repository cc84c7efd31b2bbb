package ginindex

import (
	"fmt"

	"dinodb/pkg/ginpage"
	"dinodb/pkg/pager"
)

// packSlottedPage writes tupleBytes into page as a slotted page: the slot
// directory grows forward from the header, and tuple bytes are packed
// from the end of the page backward, matching how pkg/ginpage reads
// tuples back out via TupleBytes.
func packSlottedPage(page *pager.Page, tupleBytes [][]byte, h ginpage.Header) error {
	tail := pager.Pagesize
	dirEnd := ginpage.SlotDirectoryOffset + int64(len(tupleBytes))*ginpage.SlotSize
	for i, tb := range tupleBytes {
		tail -= int64(len(tb))
		if tail < dirEnd {
			return fmt.Errorf("ginindex: tuple set does not fit on one page (%d tuples)", len(tupleBytes))
		}
		page.Update(tb, tail, int64(len(tb)))
		ginpage.WriteSlot(page, int64(i), ginpage.Slot{Offset: uint16(tail), Length: uint16(len(tb))})
	}
	h.NumTuples = int64(len(tupleBytes))
	ginpage.WriteHeader(page, h)
	return nil
}

// packBlobPage writes a single variable-length blob directly after the
// header, bypassing the slot directory; used for compressed posting
// leaves, whose payload is one delta-encoded stream rather than a set of
// individually addressable tuples. logicalCount is the number of items
// the blob decodes to, recorded in the header for Sanity's bound check
// even though it isn't literally the slot count.
func packBlobPage(page *pager.Page, blob []byte, logicalCount int64, h ginpage.Header) error {
	if ginpage.HeaderSize+int64(len(blob)) > pager.Pagesize {
		return fmt.Errorf("ginindex: compressed payload does not fit on one page (%d bytes)", len(blob))
	}
	page.Update(blob, ginpage.HeaderSize, int64(len(blob)))
	h.NumTuples = logicalCount
	ginpage.WriteHeader(page, h)
	return nil
}

// linkSiblings sets each page's RightSibling to the next page's block
// number (the last page is left as whatever its header already carries,
// normally InvalidBlockNumber) and releases every page.
func linkSiblings(p *pager.Pager, pages []*pager.Page, blocks []ginpage.BlockNumber) error {
	for i, page := range pages {
		if i < len(pages)-1 {
			h, err := ginpage.ReadHeader(page)
			if err != nil {
				return err
			}
			h.RightSibling = blocks[i+1]
			ginpage.WriteHeader(page, h)
		}
		if err := p.PutPage(page); err != nil {
			return err
		}
	}
	return nil
}

// chunk splits n items into groups of at most size each.
func chunk(n int, size int64) [][2]int64 {
	if size <= 0 {
		size = int64(n)
	}
	var ranges [][2]int64
	for start := int64(0); start < int64(n); start += size {
		end := start + size
		if end > int64(n) {
			end = int64(n)
		}
		ranges = append(ranges, [2]int64{start, end})
	}
	return ranges
}
