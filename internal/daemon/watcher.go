package daemon

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// SnapshotWatcher watches a snapshot file and reports changes once the file
// has been quiet for the debounce period.
type SnapshotWatcher struct {
	mu     sync.Mutex
	logger *slog.Logger

	// Path to watch
	path string

	// Quiet period before the callback fires
	debounce time.Duration

	// Callback for changes
	onChangeCallback func()

	watcher *fsnotify.Watcher

	// Control channels
	stopCh chan struct{}
	doneCh chan struct{}

	running bool
}

// NewSnapshotWatcher creates a watcher for the snapshot file at path.
func NewSnapshotWatcher(path string, debounce time.Duration, logger *slog.Logger) *SnapshotWatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &SnapshotWatcher{
		logger:   logger,
		path:     path,
		debounce: debounce,
	}
}

// SetChangeCallback sets the callback to invoke when the file changes.
// The callback runs on the watcher goroutine.
func (w *SnapshotWatcher) SetChangeCallback(callback func()) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onChangeCallback = callback
}

// Start begins watching. The directory is watched rather than the file so
// that atomic replacement and late creation are seen.
func (w *SnapshotWatcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(w.path)); err != nil {
		_ = watcher.Close()
		return err
	}

	w.watcher = watcher
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	w.running = true

	go w.watchLoop(ctx, watcher, w.stopCh, w.doneCh)

	w.logger.Debug("snapshot watcher started", "path", w.path, "debounce", w.debounce)
	return nil
}

// Stop stops watching and waits for the watcher goroutine to exit.
func (w *SnapshotWatcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	close(w.stopCh)
	doneCh := w.doneCh
	watcher := w.watcher
	w.mu.Unlock()

	<-doneCh
	if err := watcher.Close(); err != nil {
		w.logger.Debug("failed to close snapshot watcher", "error", err)
	}
	w.logger.Debug("snapshot watcher stopped")
}

// watchLoop is the main watch loop.
func (w *SnapshotWatcher) watchLoop(ctx context.Context, watcher *fsnotify.Watcher, stopCh, doneCh chan struct{}) {
	defer close(doneCh)

	filename := filepath.Base(w.path)

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != filename {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			w.logger.Debug("snapshot file changed", "path", w.path, "op", event.Op.String())
			if w.debounce <= 0 {
				w.notify()
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			w.notify()

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("snapshot watcher error", "error", err)
		}
	}
}

func (w *SnapshotWatcher) notify() {
	w.mu.Lock()
	callback := w.onChangeCallback
	w.mu.Unlock()

	if callback != nil {
		callback()
	}
}
