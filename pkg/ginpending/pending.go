// Package ginpending models a GIN index's pending list: the fast-update
// buffer that temporarily stages freshly inserted heap item pointers
// before they're incorporated into the entry and posting trees. The
// checker in pkg/ginwalk treats a non-empty pending list purely as a
// precondition -- it never inspects the pending list's own contents for
// structural validity, since those contents are by definition not yet
// reflected in the trees it checks.
package ginpending

import (
	"encoding/binary"

	"dinodb/pkg/gintuple"

	"github.com/cespare/xxhash"
	"github.com/spaolacci/murmur3"
)

// List stages (key-hash, item pointer) pairs the way a real pending list
// stages whole index tuples awaiting a fast-update flush. It exists here
// so CheckIndex has something concrete to ask IsEmpty() of; building and
// flushing it is outside the checker's scope by design (checking the
// pending list's own contents is explicitly out of scope).
type List struct {
	staged map[uint64]gintuple.ItemPointer
}

// NewList constructs an empty pending list.
func NewList() *List {
	return &List{staged: make(map[uint64]gintuple.ItemPointer)}
}

// IsEmpty reports whether any entries are currently staged.
func (l *List) IsEmpty() bool {
	return len(l.staged) == 0
}

// Count returns the number of distinct staged entries.
func (l *List) Count() int {
	return len(l.staged)
}

// Stage records a heap item pointer under the given raw key bytes,
// deduplicating repeated (key, item pointer) pairs the way a real
// fast-update buffer collapses duplicate inserts of the same value
// before they're ever written to the entry tree. Two independent hashes
// are combined so an accidental collision in either one alone can't
// silently merge two distinct keys.
func (l *List) Stage(key []byte, item gintuple.ItemPointer) {
	h := combinedHash(key, item)
	l.staged[h] = item
}

// Flush clears every staged entry, simulating the effect (from this
// package's point of view) of a fast-update flush having completed.
func (l *List) Flush() {
	l.staged = make(map[uint64]gintuple.ItemPointer)
}

func combinedHash(key []byte, item gintuple.ItemPointer) uint64 {
	buf := make([]byte, len(key)+gintuple.ItemPointerSize)
	copy(buf, key)
	copy(buf[len(key):], gintuple.MarshalItemPointer(item))

	x := xxhash.Sum64(buf)
	m := murmur3.Sum64(buf)
	// Fold the two hashes together so the dedup key depends on both;
	// this is the same "belt and suspenders" combination the hash index
	// package uses XxHasher and MurmurHasher for, just folded into one
	// map key instead of two separate lookup structures.
	var mix [8]byte
	binary.LittleEndian.PutUint64(mix[:], m)
	return x ^ binary.LittleEndian.Uint64(mix[:])
}
