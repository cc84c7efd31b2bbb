package utils

import (
	"os"
	"testing"

	"github.com/otiai10/copy"
)

// CopyDBFile duplicates the backing file at src into a fresh temp file:
// corruption-injection tests need a known-good baseline they can mutate
// without disturbing the fixture other subtests share.
func CopyDBFile(t *testing.T, src string) string {
	t.Helper()
	dst := GetTempDbFile(t)
	// GetTempDbFile already created (and registered cleanup for) an empty
	// file at dst; overwrite it with src's contents.
	if err := os.Remove(dst); err != nil {
		t.Fatal(err)
	}
	if err := copy.Copy(src, dst); err != nil {
		t.Fatalf("failed to copy fixture %q to %q: %s", src, dst, err)
	}
	return dst
}
