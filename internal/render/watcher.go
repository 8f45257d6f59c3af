package render

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DocumentWatcher observes the open document on disk and invokes a
// reload callback when its content changes. Events are debounced: PDF
// exporters and sync clients write in bursts, and one reload per burst
// is enough.
//
// The parent directory is watched rather than the file itself, because
// most writers replace the file via rename and an inode-level watch
// would go quiet after the first save.
type DocumentWatcher struct {
	watcher  *fsnotify.Watcher
	onChange func()
	path     string
	debounce time.Duration
	stopOnce sync.Once
	done     chan struct{}
}

// NewDocumentWatcher creates a watcher for the document at path. The
// onChange callback runs on the watcher goroutine after each debounced
// burst of changes.
func NewDocumentWatcher(path string, debounce time.Duration, onChange func()) (*DocumentWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve document path: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("failed to watch document directory: %w", err)
	}

	return &DocumentWatcher{
		watcher:  fsw,
		path:     abs,
		debounce: debounce,
		onChange: onChange,
		done:     make(chan struct{}),
	}, nil
}

// Start runs the event loop until the context is canceled or Close is
// called.
func (w *DocumentWatcher) Start(ctx context.Context) {
	go w.loop(ctx)
}

// Close stops the watcher and releases the underlying file handles.
func (w *DocumentWatcher) Close() {
	w.stopOnce.Do(func() {
		close(w.done)
		_ = w.watcher.Close()
	})
}

func (w *DocumentWatcher) loop(ctx context.Context) {
	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			w.Close()
			return

		case <-w.done:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !w.relevant(event) {
				continue
			}

			slog.Debug("document changed on disk", "path", w.path, "op", event.Op.String())
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				fire = timer.C
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("document watcher error", "path", w.path, "error", err)

		case <-fire:
			timer = nil
			fire = nil
			slog.Info("reloading annotations after document change", "path", w.path)
			w.onChange()
		}
	}
}

// relevant filters directory noise down to mutations of the watched
// document itself.
func (w *DocumentWatcher) relevant(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != w.path {
		return false
	}
	return event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0
}
