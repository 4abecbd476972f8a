// Package watch detects new result files via two converging triggers:
// fsnotify create events and a periodic full re-scan. Both feed the same
// idempotent ingestion call; the processed-file ledger (consulted inside
// Ingest) is the single source of truth, so a race between the triggers
// never double-processes a file.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Ingestor processes one candidate file. Must be idempotent per file name.
type Ingestor interface {
	Ingest(ctx context.Context, path string) error
}

// Detector watches one directory, non-recursively.
type Detector struct {
	dir        string
	ledgerFile string
	ingestor   Ingestor
	watcher    *fsnotify.Watcher
	logger     *slog.Logger
}

// New creates a Detector watching dir. ledgerFile is the name of the dedup
// ledger colocated in the directory, which is never ingested.
func New(dir, ledgerFile string, ingestor Ingestor, logger *slog.Logger) (*Detector, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("watch directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("watch directory %s is not a directory", dir)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}

	return &Detector{
		dir:        dir,
		ledgerFile: ledgerFile,
		ingestor:   ingestor,
		watcher:    watcher,
		logger:     logger,
	}, nil
}

// Run consumes file-create events until ctx is cancelled. Per-file failures
// are logged and never stop the loop.
func (d *Detector) Run(ctx context.Context) error {
	d.logger.Info("watching directory", "dir", d.dir)

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("watcher stopping", "reason", ctx.Err())
			return nil
		case event, ok := <-d.watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) {
				continue
			}
			d.handleCandidate(ctx, event.Name)
		case err, ok := <-d.watcher.Errors:
			if !ok {
				return nil
			}
			d.logger.Error("watcher error", "error", err)
		}
	}
}

// Rescan lists the directory and offers every regular file to the ingestor.
// The safety net for events missed while the process was down or the
// watcher raced a write.
func (d *Detector) Rescan(ctx context.Context) error {
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		return fmt.Errorf("scan %s: %w", d.dir, err)
	}

	d.logger.Debug("scanning directory", "dir", d.dir, "entries", len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		d.handleCandidate(ctx, filepath.Join(d.dir, entry.Name()))
	}
	return nil
}

func (d *Detector) handleCandidate(ctx context.Context, path string) {
	name := filepath.Base(path)
	if name == d.ledgerFile {
		return
	}
	if info, err := os.Stat(path); err != nil || info.IsDir() {
		return
	}

	if err := d.ingestor.Ingest(ctx, path); err != nil {
		// File-scoped: left unmarked for the next scan to retry.
		d.logger.Error("ingest failed", "file", name, "error", err)
	}
}

// Close shuts down the underlying fsnotify watcher.
func (d *Detector) Close() error {
	return d.watcher.Close()
}
