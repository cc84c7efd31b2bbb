package ginwalk

import (
	"fmt"

	"dinodb/pkg/ginhost"
	"dinodb/pkg/ginpage"

	"github.com/bits-and-blooms/bitset"
	"github.com/google/uuid"
)

// NoticeSink receives the checker's advisories about conditions it
// recovers from rather than reports as errors: a parent/child mismatch
// resolved by re-finding the child's downlink, an entry page followed to
// its right sibling after a concurrent split, and a check skipped because
// the pending list is non-empty.
type NoticeSink interface {
	Notice(runID uuid.UUID, message string)
}

// discardSink is used when the caller doesn't care to observe notices.
type discardSink struct{}

func (discardSink) Notice(uuid.UUID, string) {}

// DiscardNotices returns a NoticeSink that drops everything written to it.
func DiscardNotices() NoticeSink { return discardSink{} }

// PendingList reports whether a GIN index's fast-update buffer currently
// holds unflushed entries. A non-empty pending list means the entry/
// posting trees don't yet reflect every inserted tuple, which is a
// precondition violation for this checker, not a structural defect: the
// checker refuses to walk and reports an advisory instead of risking a
// false positive on pages that are correct but simply not yet where
// they'll end up after the next flush.
type PendingList interface {
	IsEmpty() bool
}

// alwaysEmptyPending is used by callers that have already verified (or
// don't maintain) a pending list.
type alwaysEmptyPending struct{}

func (alwaysEmptyPending) IsEmpty() bool { return true }

// NoPendingList returns a PendingList that always reports empty.
func NoPendingList() PendingList { return alwaysEmptyPending{} }

// Report summarizes one run of CheckIndex: nothing beyond reachability
// statistics if the index is sound, or the error that stopped the walk.
type Report struct {
	RunID               uuid.UUID
	ReachableBlocks     uint
	TotalBlocks         uint
	PendingListAdvisory bool
}

// CheckIndex walks both the entry tree and, transitively, every posting
// tree reachable from it, checking the structural invariants described by
// this module's page and tuple formats. It assumes the caller already
// holds at least a share lock on rel for the duration of the call; it
// takes no locks of its own beyond the individual page reads it performs
// and releases as it goes.
//
// A non-nil error is always a *CheckError. The only condition under
// which CheckIndex both returns successfully and leaves something
// unverified is a non-empty pending list, which is reported via
// Report.PendingListAdvisory rather than walked into.
func CheckIndex(rel ginhost.Relation, state ginhost.GinState, pending PendingList, cancel ginhost.Cancellation, notices NoticeSink) (*Report, error) {
	runID := uuid.New()
	if notices == nil {
		notices = DiscardNotices()
	}

	if rel.Buffers().NumBlocks() == 0 {
		return nil, newErr(KindUnsupportedTarget, rel.Name(), "relation has no pages")
	}

	if !pending.IsEmpty() {
		notices.Notice(runID, fmt.Sprintf("index %q has a non-empty pending list; skipping structural check", rel.Name()))
		return &Report{RunID: runID, TotalBlocks: uint(rel.Buffers().NumBlocks()), PendingListAdvisory: true}, nil
	}

	visited := bitset.New(uint(rel.Buffers().NumBlocks()))

	w := &walker{
		rel:     rel,
		state:   state,
		cancel:  cancel,
		notices: notices,
		runID:   runID,
		visited: visited,
	}

	if err := w.walkEntryTree(); err != nil {
		return nil, err
	}

	return &Report{
		RunID:           runID,
		ReachableBlocks: visited.Count(),
		TotalBlocks:     uint(rel.Buffers().NumBlocks()),
	}, nil
}

// walker bundles the collaborators and run-scoped state (the visited-page
// bitset) threaded through the traversal. Nothing on it outlives a single
// CheckIndex call.
type walker struct {
	rel     ginhost.Relation
	state   ginhost.GinState
	cancel  ginhost.Cancellation
	notices NoticeSink
	runID   uuid.UUID
	visited *bitset.BitSet
}

func (w *walker) markVisited(b ginpage.BlockNumber) {
	w.visited.Set(uint(b))
}
