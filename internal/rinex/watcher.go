package rinex

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/navtrace/navtrace/internal/metrics"
)

// Watcher reloads the store when navigation files appear in a watched
// directory. Files are recognized by extension: .rnx, .nav, or the classic
// two-digit-year "n" suffix (e.g. brdc0010.24n).
type Watcher struct {
	dir    string
	store  *Store
	logger *slog.Logger
}

// NewWatcher creates a Watcher for the given directory.
func NewWatcher(dir string, store *Store, logger *slog.Logger) *Watcher {
	return &Watcher{dir: dir, store: store, logger: logger}
}

// Run watches the directory until ctx is cancelled. Create and write events
// on navigation files trigger a parse and an atomic store swap; parse failures
// leave the current dataset in place.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(w.dir); err != nil {
		return fmt.Errorf("watching %s: %w", w.dir, err)
	}
	w.logger.Info("watching navigation directory", "dir", w.dir)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if !isNavFile(event.Name) {
				continue
			}
			w.reload(event.Name)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", "error", err)
		}
	}
}

// reload parses path and swaps it in as the current dataset.
func (w *Watcher) reload(path string) {
	f, err := os.Open(path)
	if err != nil {
		w.logger.Warn("cannot open navigation file", "path", path, "error", err)
		return
	}
	defer f.Close()

	ds, err := Parse(f, w.logger)
	if err != nil {
		w.logger.Warn("navigation file rejected", "path", path, "error", err)
		return
	}
	ds.Source = path

	w.store.Lock()
	w.store.Set(ds)
	w.store.Unlock()

	metrics.RecordParse(ds.Stats.Records, ds.Stats.BlankBlocks, ds.Stats.ShortBlocks, ds.Stats.BadTimestamps)
	metrics.SetDatasetSatellites(len(ds.Satellites))

	w.logger.Info("navigation dataset reloaded",
		"path", path,
		"satellites", len(ds.Satellites),
		"records", ds.Stats.Records,
		"skipped_blocks", ds.Stats.Skipped(),
	)
}

// isNavFile reports whether the filename looks like a RINEX navigation file.
func isNavFile(path string) bool {
	name := strings.ToLower(filepath.Base(path))
	if strings.HasSuffix(name, ".rnx") || strings.HasSuffix(name, ".nav") {
		return true
	}
	// Classic short names end in a two-digit year plus 'n', e.g. brdc0010.24n.
	if len(name) > 4 && name[len(name)-1] == 'n' && name[len(name)-4] == '.' {
		return true
	}
	return false
}
