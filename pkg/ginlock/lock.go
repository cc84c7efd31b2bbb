// Package ginlock models the one piece of concurrency control the
// checker actually depends on: the caller-held, relation-level shared
// lock mentioned throughout pkg/ginwalk's design. CheckIndex itself takes
// no locks beyond the individual page reads it performs -- it assumes
// the caller already holds at least a shared hold of the relation lock,
// which cmd/gincheck acquires around every check via
// ginhost.PagerRelation.Lock().
package ginlock

import (
	"errors"
	"sync"

	"github.com/google/uuid"
)

// Mode distinguishes a shared (read) hold of the relation lock, which is
// what CheckIndex requires, from an exclusive (write) hold, which a
// mutator needs before splitting or deleting a page.
type Mode int

const (
	Shared Mode = iota
	Exclusive
)

// ErrNotHeld is returned by Unlock when the caller never acquired the
// relation lock it's trying to release.
var ErrNotHeld = errors.New("ginlock: lock not held by this holder")

// RelationLock is a single relation-scoped reader/writer lock, matching
// the one a GIN index's host is expected to hold (at least in shared
// mode) for the full duration of an integrity check.
type RelationLock struct {
	mtx     sync.RWMutex
	holders map[uuid.UUID]Mode
	hmtx    sync.Mutex
}

// NewRelationLock constructs an unheld lock.
func NewRelationLock() *RelationLock {
	return &RelationLock{holders: make(map[uuid.UUID]Mode)}
}

// Lock acquires the relation lock in the given mode on behalf of holder,
// blocking until it's available.
func (l *RelationLock) Lock(holder uuid.UUID, mode Mode) {
	switch mode {
	case Shared:
		l.mtx.RLock()
	case Exclusive:
		l.mtx.Lock()
	}
	l.hmtx.Lock()
	l.holders[holder] = mode
	l.hmtx.Unlock()
}

// Unlock releases a lock previously acquired by holder.
func (l *RelationLock) Unlock(holder uuid.UUID) error {
	l.hmtx.Lock()
	mode, ok := l.holders[holder]
	if !ok {
		l.hmtx.Unlock()
		return ErrNotHeld
	}
	delete(l.holders, holder)
	l.hmtx.Unlock()

	switch mode {
	case Shared:
		l.mtx.RUnlock()
	case Exclusive:
		l.mtx.Unlock()
	}
	return nil
}

// HeldBy reports the mode holder currently holds the lock in, if any.
func (l *RelationLock) HeldBy(holder uuid.UUID) (Mode, bool) {
	l.hmtx.Lock()
	defer l.hmtx.Unlock()
	mode, ok := l.holders[holder]
	return mode, ok
}
