// Package ginlog backs ginwalk.NoticeSink with a plain-text, append-only
// log file, and provides a way to read it back from the end -- the same
// "tail the log" workflow a DBA relies on when chasing down the
// recoverable conditions this checker reports as advisories.
package ginlog

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/icza/backscanner"
)

// Log appends advisory notices to a file, one per line, each tagged with
// the run's UUID so notices from concurrent or successive checks of the
// same index don't get interleaved in a confusing way.
type Log struct {
	path string
	file *os.File
}

// Open opens (creating if necessary) the notice log at path for
// appending.
func Open(path string) (*Log, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	return &Log{path: path, file: f}, nil
}

// Notice implements ginwalk.NoticeSink.
func (l *Log) Notice(runID uuid.UUID, message string) {
	if l == nil || l.file == nil {
		return
	}
	line := fmt.Sprintf("%s [%s] %s\n", time.Now().UTC().Format(time.RFC3339Nano), runID, message)
	_, _ = l.file.WriteString(line)
}

// Close closes the underlying file.
func (l *Log) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	return l.file.Close()
}

// TailLines returns up to n of the most recently written lines, read from
// the end of the file backwards -- useful for a CLI that wants to show
// "what just happened" without reading a potentially large log forwards.
func TailLines(path string, n int) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}

	scanner := backscanner.New(f, int(info.Size()))
	lines := make([]string, 0, n)
	for len(lines) < n {
		line, _, err := scanner.Line()
		if err != nil {
			break
		}
		lines = append(lines, line)
	}
	// Restore forward chronological order before returning.
	for i, j := 0, len(lines)-1; i < j; i, j = i+1, j-1 {
		lines[i], lines[j] = lines[j], lines[i]
	}
	return lines, nil
}
