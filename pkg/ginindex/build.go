// Package ginindex builds real, on-disk GIN-shaped indexes: an entry
// tree plus, for any key whose heap item pointer list outgrows the
// inline threshold, a dedicated posting tree. It exists because
// constructing the test fixtures pkg/ginwalk's tests (and the gincheck
// CLI's "build" subcommand) need is itself out of this module's checking
// scope -- a real deployment would get these pages from index inserts,
// not from this package.
package ginindex

import (
	"fmt"
	"sort"

	"dinodb/pkg/config"
	"dinodb/pkg/ginpage"
	"dinodb/pkg/gintuple"
	"dinodb/pkg/pager"
)

// Value is one distinct indexed key together with every heap item
// pointer it maps to, already deduplicated and sorted the way a real GIN
// entry's posting list would be.
type Value struct {
	Category gintuple.Category
	Key      []byte
	Items    []gintuple.ItemPointer
}

// Options controls how densely the builder packs pages, and how it
// decides between an inline posting list and a dedicated posting tree.
type Options struct {
	MaxEntryTuplesPerPage      int64
	MaxPostingItemsPerLeaf     int64
	MaxPostingItemsPerInternal int64
	InlinePostingThreshold     int
	CompressPostingLeaves      bool
}

// DefaultOptions mirrors this module's own sizing constants.
func DefaultOptions() Options {
	return Options{
		MaxEntryTuplesPerPage:      config.MaxEntryTuplesPerPage,
		MaxPostingItemsPerLeaf:     config.MaxPostingItemsPerLeaf,
		MaxPostingItemsPerInternal: config.MaxPostingItemsPerInternal,
		InlinePostingThreshold:     config.InlinePostingThreshold,
	}
}

// Build writes a complete entry tree (and any posting trees its keys
// need) to p, returning the entry tree's root block. Build first sorts
// values in place by Category and then by raw key bytes, the order
// gincompare.ByteLexical produces; it has no pluggable comparator of its
// own, so fixtures for any other key ordering come out in byte order.
func Build(p *pager.Pager, values []Value, opts Options) (ginpage.BlockNumber, error) {
	if len(values) == 0 {
		return 0, fmt.Errorf("ginindex: cannot build an index over zero keys")
	}
	sort.SliceStable(values, func(i, j int) bool {
		return lessValue(values[i], values[j])
	})

	leafTuples := make([]gintuple.EntryTuple, 0, len(values))
	for _, v := range values {
		t := gintuple.EntryTuple{Category: v.Category, Key: v.Key}
		switch {
		case v.Category == gintuple.CategoryNullItem || v.Category == gintuple.CategoryEmptyItem:
			// No posting data is meaningful for these categories.
		case len(v.Items) > opts.InlinePostingThreshold:
			root, err := buildPostingTree(p, v.Items, opts)
			if err != nil {
				return 0, err
			}
			t.IsPostingTree = true
			t.PostingTree = uint32(root)
		default:
			t.InlinePosting = v.Items
		}
		leafTuples = append(leafTuples, t)
	}

	root, err := buildEntryTree(p, leafTuples, opts)
	if err != nil {
		return 0, err
	}
	return root, nil
}

func lessValue(a, b Value) bool {
	if a.Category != b.Category {
		return a.Category < b.Category
	}
	return string(a.Key) < string(b.Key)
}

func allocPage(p *pager.Pager) (*pager.Page, error) {
	return p.GetNewPage()
}
