package storagenode

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/docspp/cluster/internal/logger"
)

// rescanDebounce coalesces a burst of filesystem events (e.g. a large
// directory copied in at once) into a single registry rescan.
const rescanDebounce = 500 * time.Millisecond

// Watcher watches a FileRegistry's base directory for out-of-band
// filesystem changes (files dropped in by another process) and triggers
// a registry rescan, supplementing the startup-only scan (spec.md §6
// Persistent state describes scan only at startup; this extends it).
type Watcher struct {
	registry *FileRegistry
	fsw      *fsnotify.Watcher
}

// NewWatcher starts watching registry.BasePath and every subdirectory
// discovered so far.
func NewWatcher(registry *FileRegistry) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{registry: registry, fsw: fsw}
	if err := w.addTree(registry.BasePath); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	return w, nil
}

func (w *Watcher) addTree(root string) error {
	if err := w.fsw.Add(root); err != nil {
		return err
	}
	for _, e := range w.registry.List() {
		if e.IsDirectory {
			_ = w.fsw.Add(filepath.Join(root, filepath.FromSlash(e.Path)))
		}
	}
	return nil
}

// Close releases the underlying fsnotify watcher.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

// Run consumes filesystem events until ctx is cancelled, debouncing
// bursts into a single Scan per quiet period.
func (w *Watcher) Run(ctx context.Context) {
	var pending *time.Timer
	rescan := func() {
		if err := w.registry.Scan(); err != nil {
			logger.Warn("base path rescan failed", "error", err)
			return
		}
		logger.Debug("base path rescan completed after filesystem change", "files", w.registry.Count())
	}

	for {
		select {
		case <-ctx.Done():
			if pending != nil {
				pending.Stop()
			}
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if event.Op&fsnotify.Create == fsnotify.Create {
				_ = w.fsw.Add(event.Name) // harmless if it's a file, not a directory
			}
			if pending != nil {
				pending.Stop()
			}
			pending = time.AfterFunc(rescanDebounce, rescan)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			logger.Warn("base path watcher error", "error", err)
		}
	}
}
