// Package ginhost defines the collaborator interfaces the checker is
// built against -- the buffer manager, the relation handle, the
// comparator/category capability set, and cancellation -- together with
// concrete implementations backed by this module's own pager.
package ginhost

import (
	"errors"

	"dinodb/pkg/ginlock"
	"dinodb/pkg/ginpage"
	"dinodb/pkg/gintuple"
	"dinodb/pkg/pager"

	"github.com/google/uuid"
)

// BufferManager hands out pages by block number and takes them back. A
// page returned by ReadShared must be released exactly once, via Release,
// on every exit path including error paths; callers must never hold a
// page across a call that might itself need to read another page for the
// same traversal frame.
type BufferManager interface {
	ReadShared(block ginpage.BlockNumber) (*pager.Page, error)
	Release(page *pager.Page)
	NumBlocks() ginpage.BlockNumber
}

// Relation names the index under examination and exposes its buffer
// manager and root block.
type Relation interface {
	Name() string
	ID() uuid.UUID
	Buffers() BufferManager
	EntryTreeRoot() ginpage.BlockNumber
}

// GinState is the per-index capability set the checker treats as an
// opaque plug-in: an attribute lookup and a Comparator, so the checker
// never hardcodes how two keys compare. It has no key-extraction
// callback; keys and categories are read from the entry tuples
// themselves by gintuple.DecodeEntryTuple.
type GinState interface {
	AttrOf(block ginpage.BlockNumber) int16
	Comparator() Comparator
}

// Comparator is re-exported here so callers constructing a GinState don't
// need to import gincompare directly; the concrete type satisfying it
// lives in package gincompare.
type Comparator interface {
	Compare(catA gintuple.Category, keyA []byte, catB gintuple.Category, keyB []byte) int
}

// Cancellation lets a caller interrupt a long-running check between page
// visits. Done must be safe to poll repeatedly and cheaply.
type Cancellation interface {
	Done() <-chan struct{}
}

// noCancellation never cancels.
type noCancellation struct{}

func (noCancellation) Done() <-chan struct{} { return nil }

// NoCancellation returns a Cancellation that never fires.
func NoCancellation() Cancellation { return noCancellation{} }

// PagerBufferManager adapts a *pager.Pager to the BufferManager interface.
type PagerBufferManager struct {
	p *pager.Pager
}

// NewPagerBufferManager wraps an existing pager.
func NewPagerBufferManager(p *pager.Pager) *PagerBufferManager {
	return &PagerBufferManager{p: p}
}

func (m *PagerBufferManager) ReadShared(block ginpage.BlockNumber) (*pager.Page, error) {
	page, err := m.p.GetPage(int64(block))
	if err != nil {
		return nil, err
	}
	page.RLock()
	return page, nil
}

func (m *PagerBufferManager) Release(page *pager.Page) {
	if page == nil {
		return
	}
	page.RUnlock()
	_ = m.p.PutPage(page)
}

func (m *PagerBufferManager) NumBlocks() ginpage.BlockNumber {
	return ginpage.BlockNumber(m.p.GetNumPages())
}

// PagerRelation is the concrete, pager-backed Relation used by the
// gincheck CLI and by tests that build real on-disk fixtures.
type PagerRelation struct {
	name    string
	id      uuid.UUID
	buffers *PagerBufferManager
	root    ginpage.BlockNumber
	lock    *ginlock.RelationLock
}

// ErrNoPages is returned when a relation has no pages at all, which makes
// it an unsupported target: there is no entry tree root to start from.
var ErrNoPages = errors.New("ginhost: relation has no pages")

// NewPagerRelation builds a Relation over an already-open pager, treating
// root as the entry tree's root block.
func NewPagerRelation(name string, p *pager.Pager, root ginpage.BlockNumber) (*PagerRelation, error) {
	if p.GetNumPages() == 0 {
		return nil, ErrNoPages
	}
	return &PagerRelation{
		name:    name,
		id:      uuid.New(),
		buffers: NewPagerBufferManager(p),
		root:    root,
		lock:    ginlock.NewRelationLock(),
	}, nil
}

func (r *PagerRelation) Name() string { return r.name }
func (r *PagerRelation) ID() uuid.UUID { return r.id }
func (r *PagerRelation) Buffers() BufferManager { return r.buffers }
func (r *PagerRelation) EntryTreeRoot() ginpage.BlockNumber { return r.root }

// Lock returns the relation-scoped lock a caller must hold (at least in
// ginlock.Shared mode) for the duration of a CheckIndex call.
func (r *PagerRelation) Lock() *ginlock.RelationLock { return r.lock }
