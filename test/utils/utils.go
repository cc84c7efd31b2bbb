package utils

import (
	"os"
	"testing"
)

// EnsureCleanup registers cleanup to run when the test and all its subtests finish.
func EnsureCleanup(t *testing.T, cleanup func()) {
	t.Cleanup(cleanup)
}

// GetTempDbFile creates a random file in the OS's default temporary directory to be used
// for testing, returning the file's name. Once the test is done running, the file is deleted
func GetTempDbFile(t *testing.T) string {
	// file will be created in OS's default temporary directory
	tmpfile, err := os.CreateTemp("", "*.db")
	if err != nil {
		t.Fatal(err)
	}

	// Since os.CreateTemp automatically opens the file, we need to close it
	_ = tmpfile.Close()

	EnsureCleanup(t, func() {
		_ = os.Remove(tmpfile.Name())

		// Remove meta database file used for hash indices if it exists
		_ = os.Remove(tmpfile.Name() + ".meta")
	})
	return tmpfile.Name()
}
