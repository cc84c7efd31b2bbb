// Command gincheck is the callable surface for this module's GIN
// structural checker: a demo index builder, the checker itself, the
// notice log, and an interactive shell tying all three together, in the
// same stdlib-flag style as cmd/dinodb.
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"dinodb/pkg/config"
	"dinodb/pkg/gincompare"
	"dinodb/pkg/ginhost"
	"dinodb/pkg/ginindex"
	"dinodb/pkg/ginlock"
	"dinodb/pkg/ginlog"
	"dinodb/pkg/ginpage"
	"dinodb/pkg/ginpending"
	"dinodb/pkg/gintuple"
	"dinodb/pkg/ginwalk"
	"dinodb/pkg/pager"
	"dinodb/pkg/repl"

	"github.com/google/uuid"
)

const defaultNoticeLog = "data/gincheck_notices.log"

// singleAttrState is the simplest ginhost.GinState: every page belongs to
// attribute 1, and keys compare as raw bytes. The demo index gincheck
// builds never has more than one indexed column.
type singleAttrState struct {
	cmp gincompare.Comparator
}

func (s singleAttrState) AttrOf(ginpage.BlockNumber) int16 { return 1 }
func (s singleAttrState) Comparator() ginhost.Comparator   { return s.cmp }

func newGinState() ginhost.GinState { return singleAttrState{cmp: gincompare.ByteLexical{}} }

func main() {
	var dbFlag = flag.String("db", "data/gin.db", "index file path")
	var logFlag = flag.String("log", defaultNoticeLog, "notice log path")
	var keysFlag = flag.Int("keys", 200, "number of distinct keys for 'build'")
	var fanoutFlag = flag.Int("fanout", 20, "max item pointers per key for 'build'")
	var seedFlag = flag.Int64("seed", 1, "PRNG seed for 'build'")
	var promptFlag = flag.Bool("c", true, "use prompt?")

	flag.Parse()
	args := flag.Args()

	setupCloseHandler()

	if len(args) == 0 {
		runShell(*dbFlag, *logFlag, *promptFlag)
		return
	}

	var output string
	var err error
	switch args[0] {
	case "build":
		err = runBuild(*dbFlag, *keysFlag, *fanoutFlag, *seedFlag)
	case "check":
		output, err = runCheck(*dbFlag, *logFlag)
	case "notices":
		output, err = runNotices(*logFlag)
	default:
		fmt.Fprintf(os.Stderr, "unknown subcommand %q; want build, check, or notices\n", args[0])
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if output != "" {
		fmt.Print(output)
	}
}

func setupCloseHandler() {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		fmt.Println("gincheck: closehandler invoked")
		os.Exit(0)
	}()
}

// runBuild constructs a synthetic single-attribute GIN index: keys are
// zero-padded decimal strings (the byte-lexical comparator's natural
// order then matches numeric order), each mapped to a random-length,
// strictly ascending run of item pointers so that some keys stay inline
// and others are large enough to force a posting tree.
func runBuild(dbPath string, numKeys, maxFanout int, seed int64) error {
	p, err := pager.New(dbPath)
	if err != nil {
		return err
	}
	defer p.Close()

	rng := rand.New(rand.NewSource(seed))
	values := make([]ginindex.Value, numKeys)
	block := ginpage.BlockNumber(1)
	for i := 0; i < numKeys; i++ {
		key := fmt.Sprintf("%010d", i)
		n := 1 + rng.Intn(maxFanout)
		items := make([]gintuple.ItemPointer, n)
		offset := uint16(1)
		for j := 0; j < n; j++ {
			items[j] = gintuple.ItemPointer{Block: block, Offset: offset}
			offset++
			if offset > 200 {
				offset = 1
				block++
			}
		}
		values[i] = ginindex.Value{Category: gintuple.CategoryNormal, Key: []byte(key), Items: items}
	}

	root, err := ginindex.Build(p, values, ginindex.DefaultOptions())
	if err != nil {
		return err
	}
	if err := writeRoot(dbPath, root); err != nil {
		return err
	}
	fmt.Printf("built %s: %d keys, entry tree root block %d, %d total pages\n", dbPath, numKeys, root, p.GetNumPages())
	return nil
}

// rootSidecarPath returns where a build's entry tree root block is
// recorded. The builder's bottom-up construction allocates a fresh page
// for every level it writes, so unlike pkg/btree's pinned-at-page-zero
// root, the final root block isn't known until the build finishes and
// isn't predictable from the file alone; the sidecar is how "build" tells
// "check" where it ended up.
func rootSidecarPath(dbPath string) string { return dbPath + ".root" }

func writeRoot(dbPath string, root ginpage.BlockNumber) error {
	return os.WriteFile(rootSidecarPath(dbPath), []byte(fmt.Sprintf("%d\n", root)), 0644)
}

func readRoot(dbPath string) (ginpage.BlockNumber, error) {
	data, err := os.ReadFile(rootSidecarPath(dbPath))
	if err != nil {
		return 0, fmt.Errorf("gincheck: no recorded root block for %q (run 'build' first): %w", dbPath, err)
	}
	var root int64
	if _, err := fmt.Sscanf(string(data), "%d", &root); err != nil {
		return 0, fmt.Errorf("gincheck: malformed root sidecar for %q: %w", dbPath, err)
	}
	return ginpage.BlockNumber(root), nil
}

func openRelation(dbPath string) (*ginhost.PagerRelation, *pager.Pager, error) {
	root, err := readRoot(dbPath)
	if err != nil {
		return nil, nil, err
	}
	p, err := pager.New(dbPath)
	if err != nil {
		return nil, nil, err
	}
	rel, err := ginhost.NewPagerRelation(dbPath, p, root)
	if err != nil {
		p.Close()
		return nil, nil, err
	}
	return rel, p, nil
}

func runCheck(dbPath, logPath string) (string, error) {
	rel, p, err := openRelation(dbPath)
	if err != nil {
		return "", err
	}
	defer p.Close()

	notices, err := ginlog.Open(logPath)
	if err != nil {
		return "", err
	}
	defer notices.Close()

	holder := uuid.New()
	rel.Lock().Lock(holder, ginlock.Shared)
	defer func() { _ = rel.Lock().Unlock(holder) }()

	report, err := ginwalk.CheckIndex(rel, newGinState(), ginpending.NewList(), ginhost.NoCancellation(), notices)
	if err != nil {
		if ce, ok := err.(*ginwalk.CheckError); ok {
			return fmt.Sprintf("check failed: kind=%s block=%d message=%s\n", ce.Kind, ce.Block, ce.Message), nil
		}
		return "", err
	}

	if report.PendingListAdvisory {
		return fmt.Sprintf("index %q has a non-empty pending list; structural check skipped\n", dbPath), nil
	}
	return fmt.Sprintf("ok: run %s, reached %d/%d blocks\n", report.RunID, report.ReachableBlocks, report.TotalBlocks), nil
}

func runNotices(logPath string) (string, error) {
	lines, err := ginlog.TailLines(logPath, 50)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	for _, l := range lines {
		sb.WriteString(l)
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

func runShell(dbPath, logPath string, promptFlag bool) {
	r := repl.NewRepl()

	r.AddCommand("gin_build", func(payload string, _ *repl.REPLConfig) (string, error) {
		if err := runBuild(dbPath, 200, 20, 1); err != nil {
			return "", err
		}
		return "build complete", nil
	}, "Build a synthetic GIN index at the configured db path. usage: gin_build")

	r.AddCommand("gin_check", func(payload string, _ *repl.REPLConfig) (string, error) {
		return runCheck(dbPath, logPath)
	}, "Run the structural check against the configured db path. usage: gin_check")

	r.AddCommand("gin_notices", func(payload string, _ *repl.REPLConfig) (string, error) {
		return runNotices(logPath)
	}, "Print the tail of the notice log. usage: gin_notices")

	prompt := config.GetPrompt(promptFlag)
	r.Run(uuid.New(), prompt, nil, nil)
}
