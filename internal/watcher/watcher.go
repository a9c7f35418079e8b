package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/evanofslack/adguard-dns-sync/internal/trigger"
)

// Firer receives a trigger for every relevant change.
type Firer interface {
	Fire(reason string)
}

// Watcher fires when the routing file is written, created or renamed into place.
// The parent directory is watched so the file may be absent at startup and
// editors that replace the file atomically are still seen.
type Watcher struct {
	path    string
	queue   Firer
	watcher *fsnotify.Watcher
}

func New(path string, queue Firer) (*Watcher, error) {
	path = filepath.Clean(path)
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	dir := filepath.Dir(path)
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	return &Watcher{path: path, queue: queue, watcher: fw}, nil
}

// Run forwards matching events until ctx is done, then releases the watch.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()
	slog.Info("Watching config file", "path", w.path)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			slog.Info("Config file changed", "path", event.Name, "op", event.Op.String())
			w.queue.Fire(trigger.ReasonConfigChanged)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("File watcher error", "error", err)
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != w.path {
		return false
	}
	return event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename)
}
