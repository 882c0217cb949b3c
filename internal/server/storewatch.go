package server

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/repokit/repokit/internal/logging"
)

// StoreWatcher watches the manifest store directory and logs changes, with
// debouncing so a burst of writes produces one summary. It gives operators
// visibility into the store; the server itself never caches store state, so
// no invalidation is needed.
type StoreWatcher struct {
	watcher  *fsnotify.Watcher
	logger   logging.Logger
	path     string
	debounce time.Duration
}

// NewStoreWatcher creates a watcher over the store directory, creating the
// directory if it does not exist yet.
func NewStoreWatcher(path string, logger logging.Logger) (*StoreWatcher, error) {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(path); err != nil {
		watcher.Close()
		return nil, err
	}

	return &StoreWatcher{
		watcher:  watcher,
		logger:   logger.WithComponent("storewatch"),
		path:     path,
		debounce: 500 * time.Millisecond,
	}, nil
}

// Start consumes filesystem events until the context is cancelled.
func (w *StoreWatcher) Start(ctx context.Context) {
	go w.loop(ctx)
}

// Close stops the underlying watcher.
func (w *StoreWatcher) Close() error {
	return w.watcher.Close()
}

func (w *StoreWatcher) loop(ctx context.Context) {
	var pending []fsnotify.Event

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			pending = append(pending, event)
			timer.Reset(w.debounce)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn(ctx, err, "store watcher error")

		case <-timer.C:
			w.flush(ctx, pending)
			pending = nil
		}
	}
}

// flush logs one summary per debounce window. Removed manifests are called
// out individually: a manifest disappearing without a cancel request means
// someone edited the store by hand.
func (w *StoreWatcher) flush(ctx context.Context, events []fsnotify.Event) {
	if len(events) == 0 {
		return
	}

	creates, writes, removes := 0, 0, 0
	for _, event := range events {
		switch {
		case event.Op.Has(fsnotify.Create):
			creates++
		case event.Op.Has(fsnotify.Write):
			writes++
		case event.Op.Has(fsnotify.Remove), event.Op.Has(fsnotify.Rename):
			removes++
			if strings.HasSuffix(event.Name, ".yml") {
				w.logger.Info(ctx, "manifest removed from store",
					"manifest", filepath.Base(event.Name))
			}
		}
	}

	w.logger.Debug(ctx, "store directory activity",
		"creates", creates, "writes", writes, "removes", removes)
}
