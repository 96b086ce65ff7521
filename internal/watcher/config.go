// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package watcher reloads configuration when the config file changes on
// disk.
package watcher

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/wingedpig/launchpad/internal/events"
)

// ReloadFunc applies the config file at path.
type ReloadFunc func(path string) error

// ConfigWatcher calls a ReloadFunc after the config file changes. The
// containing directory is watched so editors that save by renaming a temp
// file over the original are picked up.
type ConfigWatcher struct {
	path      string
	reload    ReloadFunc
	bus       events.EventBus
	watcher   *fsnotify.Watcher
	debouncer *Debouncer

	mu      sync.Mutex
	closed  bool
	closeCh chan struct{}
	wg      sync.WaitGroup
}

// NewConfigWatcher starts watching path.
func NewConfigWatcher(path string, debounce time.Duration, bus events.EventBus, reload ReloadFunc) (*ConfigWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	if err := fsWatcher.Add(filepath.Dir(abs)); err != nil {
		fsWatcher.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	w := &ConfigWatcher{
		path:      abs,
		reload:    reload,
		bus:       bus,
		watcher:   fsWatcher,
		debouncer: NewDebouncer(debounce),
		closeCh:   make(chan struct{}),
	}

	w.wg.Add(1)
	go w.processEvents()
	return w, nil
}

// Path returns the watched config file.
func (w *ConfigWatcher) Path() string {
	return w.path
}

func (w *ConfigWatcher) processEvents() {
	defer w.wg.Done()

	for {
		select {
		case <-w.closeCh:
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
			log.Printf("Config watcher error: %v", err)
		}
	}
}

func (w *ConfigWatcher) handleEvent(event fsnotify.Event) {
	if filepath.Clean(event.Name) != w.path {
		return
	}
	// Chmod alone does not change content
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
		return
	}
	w.debouncer.Debounce(w.path, w.apply)
}

func (w *ConfigWatcher) apply() {
	w.mu.Lock()
	closed := w.closed
	w.mu.Unlock()
	if closed {
		return
	}

	payload := map[string]interface{}{"path": w.path}
	if err := w.reload(w.path); err != nil {
		log.Printf("Config reload failed, keeping previous config: %v", err)
		payload["error"] = err.Error()
	} else {
		log.Printf("Config reloaded from %s", w.path)
	}
	events.Emit(context.Background(), w.bus, events.EventConfigReloaded, "", payload)
}

// Close stops watching.
func (w *ConfigWatcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	close(w.closeCh)
	w.mu.Unlock()

	w.debouncer.Stop()
	err := w.watcher.Close()
	w.wg.Wait()
	return err
}
