// Package config resolves the daemon's user configuration file path
// and watches it for changes, reloading the LSP registry in place
// (spec §4.7/§6).
package config

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/lspdaemon/lspd/internal/debug"
	"github.com/lspdaemon/lspd/internal/lspregistry"
)

// DefaultReloadDebounce batches rapid-fire fsnotify events (editors
// often write a config file via a temp-file-then-rename sequence,
// which fires multiple events for one logical save).
const DefaultReloadDebounce = 200 * time.Millisecond

// Dir returns the directory the daemon looks for config.toml in:
// os.UserConfigDir()/lsp-daemon.
func Dir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "lsp-daemon"), nil
}

// Path returns the full path to the user config file.
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// Watcher reloads a lspregistry.Registry from a TOML file whenever it
// changes on disk.
type Watcher struct {
	path     string
	registry *lspregistry.Registry
	debounce time.Duration
	onReload func(err error)

	watcher *fsnotify.Watcher

	mu     sync.Mutex
	timer  *time.Timer
	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// NewWatcher constructs a Watcher for path, reloading into registry.
// onReload, if non-nil, is invoked after every reload attempt
// (including failed ones) with the resulting error.
func NewWatcher(path string, registry *lspregistry.Registry, onReload func(err error)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		fw.Close()
		return nil, err
	}
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, err
	}

	return &Watcher{
		path:     path,
		registry: registry,
		debounce: DefaultReloadDebounce,
		onReload: onReload,
		watcher:  fw,
	}, nil
}

// Start loads the file once, then begins watching for changes in the
// background until Stop is called.
func (w *Watcher) Start() error {
	err := w.registry.LoadUserConfig(w.path)
	if w.onReload != nil {
		w.onReload(err)
	}
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	w.wg.Add(1)
	go w.run(ctx)
	return nil
}

func (w *Watcher) run(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.scheduleReload()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			debug.LogConfig("config watcher error: %v", err)
		}
	}
}

func (w *Watcher) scheduleReload() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.reload)
}

func (w *Watcher) reload() {
	err := w.registry.LoadUserConfig(w.path)
	if err != nil {
		debug.LogConfig("config reload from %s failed: %v", w.path, err)
	} else {
		debug.LogConfig("config reloaded from %s", w.path)
	}
	if w.onReload != nil {
		w.onReload(err)
	}
}

// Stop halts the watch loop and releases the fsnotify handle.
func (w *Watcher) Stop() error {
	if w.cancel != nil {
		w.cancel()
	}
	err := w.watcher.Close()
	w.wg.Wait()
	return err
}
