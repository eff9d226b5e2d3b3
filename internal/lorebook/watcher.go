package lorebook

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ReloadFunc receives the freshly loaded book after the directory settles.
type ReloadFunc func(*Book)

// Watcher reloads a lorebook directory when its files change. Events are
// debounced so a burst of saves from an editor triggers a single reload.
type Watcher struct {
	dir      string
	reload   ReloadFunc
	debounce time.Duration

	mu      sync.Mutex
	pending bool
	lastEv  time.Time

	watcher *fsnotify.Watcher
	stopCh  chan struct{}
	doneCh  chan struct{}
	running bool
}

// NewWatcher creates a watcher for dir. Start must be called to begin
// delivering reloads.
func NewWatcher(dir string, reload ReloadFunc) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		dir:      dir,
		reload:   reload,
		debounce: 500 * time.Millisecond,
		watcher:  fw,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Start begins watching. Non-blocking; the event loop runs in a goroutine
// until Stop is called or ctx is cancelled.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	if err := w.watcher.Add(w.dir); err != nil {
		return err
	}
	slog.Info("watching lorebook directory", "dir", w.dir)

	go w.run(ctx)
	return nil
}

// Stop halts the event loop and closes the underlying watcher.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh
	if err := w.watcher.Close(); err != nil {
		slog.Error("failed to close lorebook watcher", "error", err)
	}
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Error("lorebook watcher error", "error", err)

		case <-ticker.C:
			w.maybeReload()
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	switch strings.ToLower(filepath.Ext(event.Name)) {
	case ".yaml", ".yml", ".json":
	default:
		return
	}
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}

	w.mu.Lock()
	w.pending = true
	w.lastEv = time.Now()
	w.mu.Unlock()
}

func (w *Watcher) maybeReload() {
	w.mu.Lock()
	due := w.pending && time.Since(w.lastEv) >= w.debounce
	if due {
		w.pending = false
	}
	w.mu.Unlock()
	if !due {
		return
	}

	book, err := LoadDir(w.dir)
	if err != nil {
		// Keep serving the previous book; a broken edit should never
		// wipe loaded lore.
		slog.Error("lorebook reload failed", "dir", w.dir, "error", err)
		return
	}
	slog.Info("lorebook reloaded", "dir", w.dir, "rules", len(book.Rules), "codices", len(book.Codices))
	w.reload(book)
}
