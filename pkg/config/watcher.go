package config

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/samanhappy/selectly/pkg/logging"
)

// Watcher reloads the store when an exported configuration file is dropped
// into place externally (e.g. restoring a backup while the daemon runs).
type Watcher struct {
	store  *Store
	path   string
	logger *logging.Logger
	fsw    *fsnotify.Watcher
	done   chan struct{}
}

// NewWatcher watches path for writes and imports the file into store on
// each change. The parent directory must exist.
func NewWatcher(store *Store, path string, logger *logging.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		fsw.Close()
		return nil, err
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Watcher{store: store, path: path, logger: logger, fsw: fsw, done: make(chan struct{})}, nil
}

// Run delivers reloads until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) {
	defer close(w.done)
	var pending *time.Timer
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			// Editors and browsers write in bursts; settle first.
			if pending != nil {
				pending.Stop()
			}
			pending = time.AfterFunc(200*time.Millisecond, func() {
				w.importFile(ctx)
			})
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn(logging.CategoryConfig, "watch_error", err.Error(), nil)
		}
	}
}

func (w *Watcher) importFile(ctx context.Context) {
	data, err := os.ReadFile(w.path)
	if err != nil {
		w.logger.Warn(logging.CategoryConfig, "import_read_failed", err.Error(), nil)
		return
	}
	var partial Partial
	if err := json.Unmarshal(MigrateLegacy(data), &partial); err != nil {
		w.logger.Warn(logging.CategoryConfig, "import_parse_failed", err.Error(), nil)
		return
	}
	w.store.Save(ctx, &partial)
	w.logger.Info(logging.CategoryConfig, "config_imported", "reloaded from "+w.path, nil)
}

// Close stops watching.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}
