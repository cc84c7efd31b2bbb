package ginwalk_test

import (
	"fmt"
	"testing"

	"dinodb/pkg/gincompare"
	"dinodb/pkg/ginhost"
	"dinodb/pkg/ginindex"
	"dinodb/pkg/ginpage"
	"dinodb/pkg/ginpending"
	"dinodb/pkg/gintuple"
	"dinodb/pkg/ginwalk"
	"dinodb/pkg/pager"
	"dinodb/test/utils"
)

// testState is the simplest ginhost.GinState: one indexed attribute,
// byte-lexical comparison -- all a fixture built against a single Values
// slice ever needs.
type testState struct{}

func (testState) AttrOf(ginpage.BlockNumber) int16 { return 1 }
func (testState) Comparator() ginhost.Comparator   { return gincompare.ByteLexical{} }

func buildFixture(t *testing.T, n, fanout int) (string, ginpage.BlockNumber) {
	t.Helper()
	path := utils.GetTempDbFile(t)
	p, err := pager.New(path)
	if err != nil {
		t.Fatalf("failed to open pager: %s", err)
	}
	defer p.Close()

	values := make([]ginindex.Value, n)
	for i := 0; i < n; i++ {
		items := make([]gintuple.ItemPointer, fanout)
		for j := 0; j < fanout; j++ {
			items[j] = gintuple.ItemPointer{Block: ginpage.BlockNumber(j/200 + 1), Offset: uint16(j%200 + 1)}
		}
		values[i] = ginindex.Value{
			Category: gintuple.CategoryNormal,
			Key:      []byte(fmt.Sprintf("%08d", i)),
			Items:    items,
		}
	}

	root, err := ginindex.Build(p, values, ginindex.DefaultOptions())
	if err != nil {
		t.Fatalf("build failed: %s", err)
	}
	return path, root
}

// buildCompressedPostingFixture builds a single-key index whose one key
// needs a posting tree, with compressed posting leaves, so the returned
// posting leaf block is predictable: it's the very first page the builder
// ever allocates, since Build constructs a key's posting tree before it
// writes any entry-tree page.
func buildCompressedPostingFixture(t *testing.T, fanout int) (path string, entryRoot, postingLeaf ginpage.BlockNumber) {
	t.Helper()
	path = utils.GetTempDbFile(t)
	p, err := pager.New(path)
	if err != nil {
		t.Fatalf("failed to open pager: %s", err)
	}
	defer p.Close()

	opts := ginindex.DefaultOptions()
	opts.CompressPostingLeaves = true
	items := make([]gintuple.ItemPointer, fanout)
	for j := 0; j < fanout; j++ {
		items[j] = gintuple.ItemPointer{Block: ginpage.BlockNumber(j/200 + 1), Offset: uint16(j%200 + 1)}
	}
	values := []ginindex.Value{{Category: gintuple.CategoryNormal, Key: []byte("onlykey"), Items: items}}

	root, err := ginindex.Build(p, values, opts)
	if err != nil {
		t.Fatalf("build failed: %s", err)
	}
	return path, root, 0
}

func openRelation(t *testing.T, path string, root ginpage.BlockNumber) (*ginhost.PagerRelation, *pager.Pager) {
	t.Helper()
	p, err := pager.New(path)
	if err != nil {
		t.Fatalf("failed to reopen pager: %s", err)
	}
	t.Cleanup(func() { _ = p.Close() })
	rel, err := ginhost.NewPagerRelation(path, p, root)
	if err != nil {
		t.Fatalf("failed to build relation: %s", err)
	}
	return rel, p
}

func TestCheckIndexCleanBuildPasses(t *testing.T) {
	path, root := buildFixture(t, 50, 3)
	rel, _ := openRelation(t, path, root)

	report, err := ginwalk.CheckIndex(rel, testState{}, ginpending.NewList(), ginhost.NoCancellation(), ginwalk.DiscardNotices())
	if err != nil {
		t.Fatalf("expected a clean build to pass, got %s", err)
	}
	if report.PendingListAdvisory {
		t.Fatal("expected no pending-list advisory for a fresh build")
	}
	if report.ReachableBlocks == 0 {
		t.Fatal("expected at least one reachable block")
	}
}

func TestCheckIndexLargeBuildWithPostingTreesPasses(t *testing.T) {
	opts := ginindex.DefaultOptions()
	path, root := buildFixture(t, int(opts.MaxEntryTuplesPerPage)*2, int(opts.InlinePostingThreshold)+10)
	rel, _ := openRelation(t, path, root)

	report, err := ginwalk.CheckIndex(rel, testState{}, ginpending.NewList(), ginhost.NoCancellation(), ginwalk.DiscardNotices())
	if err != nil {
		t.Fatalf("expected a clean multi-posting-tree build to pass, got %s", err)
	}
	if report.ReachableBlocks != report.TotalBlocks {
		t.Fatalf("expected every block to be reachable from a clean build: reached %d of %d", report.ReachableBlocks, report.TotalBlocks)
	}
}

func TestCheckIndexPendingListAdvisory(t *testing.T) {
	path, root := buildFixture(t, 10, 2)
	rel, _ := openRelation(t, path, root)

	pending := ginpending.NewList()
	pending.Stage([]byte("zzz"), gintuple.ItemPointer{Block: 9, Offset: 1})

	report, err := ginwalk.CheckIndex(rel, testState{}, pending, ginhost.NoCancellation(), ginwalk.DiscardNotices())
	if err != nil {
		t.Fatalf("a non-empty pending list should be advisory, not an error, got %s", err)
	}
	if !report.PendingListAdvisory {
		t.Fatal("expected PendingListAdvisory to be set")
	}
}

// TestCheckIndexDetectsCorruptedHeader duplicates a known-good fixture,
// stomps the root page's header flags so it claims to be deleted while
// still advertising tuples, and confirms the walker reports structural
// corruption rather than panicking or silently passing.
func TestCheckIndexDetectsCorruptedHeader(t *testing.T) {
	goodPath, root := buildFixture(t, 40, 3)
	corruptPath := utils.CopyDBFile(t, goodPath)

	p, err := pager.New(corruptPath)
	if err != nil {
		t.Fatalf("failed to reopen fixture copy: %s", err)
	}
	page, err := p.GetPage(int64(root))
	if err != nil {
		t.Fatalf("failed to read root page: %s", err)
	}
	bad := ginpage.Header{Flags: ginpage.FlagDeleted | ginpage.FlagLeaf, NumTuples: 99}
	ginpage.WriteHeader(page, bad)
	if err := p.PutPage(page); err != nil {
		t.Fatalf("failed to write back corrupted page: %s", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("failed to close pager: %s", err)
	}

	rel, _ := openRelation(t, corruptPath, root)
	_, err = ginwalk.CheckIndex(rel, testState{}, ginpending.NewList(), ginhost.NoCancellation(), ginwalk.DiscardNotices())
	if err == nil {
		t.Fatal("expected a corrupted root header to fail the check")
	}
	ce, ok := err.(*ginwalk.CheckError)
	if !ok {
		t.Fatalf("expected a *ginwalk.CheckError, got %T: %s", err, err)
	}
	if ce.Kind != ginwalk.KindStructuralCorruption {
		t.Fatalf("expected structural-corruption, got %s", ce.Kind)
	}
}

// TestCheckIndexDetectsCompressedPostingCountMismatch inflates a
// compressed posting leaf's declared NumTuples beyond what its own
// varbyte-encoded stream actually decodes to, and confirms the walker
// catches the disagreement as a decoding mismatch instead of silently
// trusting the header.
func TestCheckIndexDetectsCompressedPostingCountMismatch(t *testing.T) {
	opts := ginindex.DefaultOptions()
	goodPath, entryRoot, leafBlock := buildCompressedPostingFixture(t, opts.InlinePostingThreshold+20)
	corruptPath := utils.CopyDBFile(t, goodPath)

	p, err := pager.New(corruptPath)
	if err != nil {
		t.Fatalf("failed to reopen fixture copy: %s", err)
	}
	page, err := p.GetPage(int64(leafBlock))
	if err != nil {
		t.Fatalf("failed to read posting leaf page: %s", err)
	}
	h, err := ginpage.ReadHeader(page)
	if err != nil {
		t.Fatalf("failed to read posting leaf header: %s", err)
	}
	if !h.IsLeaf() || !h.IsCompressed() {
		t.Fatalf("expected block %d to be a compressed posting leaf, got %+v", leafBlock, h)
	}
	h.NumTuples += 3
	ginpage.WriteHeader(page, h)
	if err := p.PutPage(page); err != nil {
		t.Fatalf("failed to write back corrupted page: %s", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("failed to close pager: %s", err)
	}

	rel, _ := openRelation(t, corruptPath, entryRoot)
	_, err = ginwalk.CheckIndex(rel, testState{}, ginpending.NewList(), ginhost.NoCancellation(), ginwalk.DiscardNotices())
	if err == nil {
		t.Fatal("expected a posting leaf count mismatch to fail the check")
	}
	ce, ok := err.(*ginwalk.CheckError)
	if !ok {
		t.Fatalf("expected a *ginwalk.CheckError, got %T: %s", err, err)
	}
	if ce.Kind != ginwalk.KindDecodingMismatch {
		t.Fatalf("expected decoding-mismatch, got %s", ce.Kind)
	}
}

func TestCheckIndexCancellation(t *testing.T) {
	path, root := buildFixture(t, 200, 3)
	rel, _ := openRelation(t, path, root)

	done := make(chan struct{})
	close(done)
	cancel := cancelNow{ch: done}

	_, err := ginwalk.CheckIndex(rel, testState{}, ginpending.NewList(), cancel, ginwalk.DiscardNotices())
	if err == nil {
		t.Fatal("expected an already-cancelled check to fail")
	}
	ce, ok := err.(*ginwalk.CheckError)
	if !ok {
		t.Fatalf("expected a *ginwalk.CheckError, got %T: %s", err, err)
	}
	if ce.Kind != ginwalk.KindCancelled {
		t.Fatalf("expected cancelled, got %s", ce.Kind)
	}
}

type cancelNow struct{ ch <-chan struct{} }

func (c cancelNow) Done() <-chan struct{} { return c.ch }
