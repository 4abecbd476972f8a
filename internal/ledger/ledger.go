// Package ledger keeps the durable record of result files that have been
// fully ingested. It is an append-only log colocated with the watched
// directory, deliberately independent of the central store: ledger writes
// must succeed even when Postgres is unreachable, and the record must
// survive process restarts.
package ledger

import (
	"bufio"
	"fmt"
	"os"
	"sync"
)

// Ledger tracks processed file names. Safe for concurrent use; the
// check-then-mark sequence of callers is serialized by the ingestion layer,
// this lock only protects the internal state.
type Ledger struct {
	mu    sync.Mutex
	file  *os.File
	names map[string]struct{}
}

// Open loads the ledger at path, creating it if absent. Existing entries are
// read into memory; the file handle stays open for appends.
func Open(path string) (*Ledger, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open ledger %s: %w", path, err)
	}

	names := make(map[string]struct{})
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if name := scanner.Text(); name != "" {
			names[name] = struct{}{}
		}
	}
	if err := scanner.Err(); err != nil {
		f.Close()
		return nil, fmt.Errorf("scan ledger %s: %w", path, err)
	}

	return &Ledger{file: f, names: names}, nil
}

// Contains reports whether name has been marked processed.
func (l *Ledger) Contains(name string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.names[name]
	return ok
}

// MarkProcessed durably appends name to the ledger. Callers must only mark a
// file after all its predictions are committed and its validation jobs
// registered; a crash before the mark means the file is re-ingested on the
// next scan. Marking an already-marked name is a no-op.
func (l *Ledger) MarkProcessed(name string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.names[name]; ok {
		return nil
	}

	if _, err := fmt.Fprintln(l.file, name); err != nil {
		return fmt.Errorf("append ledger entry %s: %w", name, err)
	}
	if err := l.file.Sync(); err != nil {
		return fmt.Errorf("sync ledger: %w", err)
	}

	l.names[name] = struct{}{}
	return nil
}

// Len returns the number of ledgered files.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.names)
}

// Close releases the underlying file handle.
func (l *Ledger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}
