package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const reloadDebounce = 500 * time.Millisecond

// Watcher reloads the configuration file into a Manager when it changes on disk.
type Watcher struct {
	watcher  *fsnotify.Watcher
	path     string
	manager  *Manager
	onReload func(*Config)

	mu    sync.Mutex
	timer *time.Timer
	done  chan struct{}
}

// NewWatcher creates a watcher for the config file at path. onReload may be nil.
func NewWatcher(path string, manager *Manager, onReload func(*Config)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create config watcher: %w", err)
	}
	// Watch the directory: editors often replace the file instead of writing it.
	if err := fw.Add(filepath.Dir(path)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("failed to watch config directory: %w", err)
	}
	return &Watcher{
		watcher:  fw,
		path:     filepath.Clean(path),
		manager:  manager,
		onReload: onReload,
		done:     make(chan struct{}),
	}, nil
}

// Start runs the event loop until ctx is done or Stop is called.
func (w *Watcher) Start(ctx context.Context) {
	slog.Info("Watching configuration file", "path", w.path)
	go w.loop(ctx)
}

// Stop closes the underlying fsnotify watcher and waits for the loop to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()
	w.watcher.Close()
	<-w.done
}

func (w *Watcher) loop(ctx context.Context) {
	defer close(w.done)
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			w.scheduleReload()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Error("Config watcher error", "error", err)
		case <-ctx.Done():
			w.watcher.Close()
			return
		}
	}
}

func (w *Watcher) scheduleReload() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(reloadDebounce, w.reload)
}

func (w *Watcher) reload() {
	cfg, err := readConfig(w.path)
	if err != nil {
		slog.Error("Ignoring invalid configuration change", "path", w.path, "error", err)
		return
	}
	w.manager.Update(cfg)
	slog.Info("Configuration reloaded", "path", w.path)
	if w.onReload != nil {
		w.onReload(cfg)
	}
}
