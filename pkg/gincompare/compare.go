// Package gincompare supplies the pluggable key-comparison capability the
// walker uses instead of ever hardcoding what "less than" means for an
// indexed column. The core never branches on a concrete Go type here; it
// only calls Comparator methods.
package gincompare

import (
	"bytes"

	"dinodb/pkg/gintuple"
)

// Comparator orders entry-tree keys. Category participates in ordering
// ahead of the key bytes: CategoryNormal keys sort before NullKey, then
// NullItem, then EmptyItem, and within CategoryNormal, Compare decides.
type Comparator interface {
	// Compare returns -1, 0 or 1 comparing (catA, keyA) to (catB, keyB).
	Compare(catA gintuple.Category, keyA []byte, catB gintuple.Category, keyB []byte) int
}

// ByteLexical is the default Comparator: normal keys compare as raw
// bytes. Real GIN opclasses supply their own comparator (e.g. for arrays
// of int4, or tsvector lexemes); this implementation is what the index
// builder in this module uses to produce test fixtures.
type ByteLexical struct{}

func (ByteLexical) Compare(catA gintuple.Category, keyA []byte, catB gintuple.Category, keyB []byte) int {
	if catA != catB {
		if catA < catB {
			return -1
		}
		return 1
	}
	if catA != gintuple.CategoryNormal {
		return 0
	}
	return bytes.Compare(keyA, keyB)
}

// LessOrEqual is a convenience wrapper used throughout the walker.
func LessOrEqual(c Comparator, catA gintuple.Category, keyA []byte, catB gintuple.Category, keyB []byte) bool {
	return c.Compare(catA, keyA, catB, keyB) <= 0
}

// Equal is a convenience wrapper used throughout the walker.
func Equal(c Comparator, catA gintuple.Category, keyA []byte, catB gintuple.Category, keyB []byte) bool {
	return c.Compare(catA, keyA, catB, keyB) == 0
}
