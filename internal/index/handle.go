package index

import (
	"context"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Handle is the serving process's view of the current index. Queries read
// through an atomic pointer, so an ingestion run that atomically replaces
// the index file can be picked up without restarting or locking the query
// path. A Handle may hold no index yet (service not ready).
type Handle struct {
	current atomic.Pointer[Index]
	path    string
}

// NewHandle creates a handle for the index at path. Missing file is not
// an error: the handle starts empty and reports not-ready until a reload
// succeeds.
func NewHandle(path string) *Handle {
	return &Handle{path: path}
}

// Get returns the current index, or nil when none is loaded.
func (h *Handle) Get() *Index {
	return h.current.Load()
}

// Ready reports whether an index with at least one record is loaded.
func (h *Handle) Ready() bool {
	ix := h.current.Load()
	return ix != nil && ix.Len() > 0
}

// Records reports how many chunks the loaded index holds, 0 when none
// is loaded.
func (h *Handle) Records() int {
	ix := h.current.Load()
	if ix == nil {
		return 0
	}
	return ix.Len()
}

// Reload loads the index file and swaps it in.
func (h *Handle) Reload() error {
	ix, err := Load(h.path)
	if err != nil {
		return err
	}
	h.current.Store(ix)
	return nil
}

// Watch reloads the handle whenever the index file is replaced. Rename
// over the watched path (the Save discipline) surfaces as Create/Rename
// events on the parent directory. Watch blocks until ctx is cancelled.
func (h *Handle) Watch(ctx context.Context, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating index watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory, not the file: atomic rename replaces the inode.
	dir := filepath.Dir(h.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watching index directory %s: %w", dir, err)
	}

	base := filepath.Base(h.path)
	var debounce *time.Timer
	reload := func() {
		if err := h.Reload(); err != nil {
			logger.Error("index reload failed", zap.Error(err))
			return
		}
		ix := h.Get()
		logger.Info("index reloaded",
			zap.Int("records", ix.Len()),
			zap.Int("dimension", ix.Dimension()),
			zap.String("embedder", ix.Embedder()))
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != base {
				continue
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) && !event.Has(fsnotify.Write) {
				continue
			}
			// Coalesce the event burst a rename can produce.
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(200*time.Millisecond, reload)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("index watcher error", zap.Error(err))
		}
	}
}
