package session

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/cmarkh/audible-api/pkg/logging"
)

const (
	// DefaultDebounceInterval is how long the watcher waits after the last
	// change before reloading, so a temp-file-and-rename save fires once.
	DefaultDebounceInterval = 250 * time.Millisecond

	// DefaultPollInterval is used when fsnotify is unavailable.
	DefaultPollInterval = 5 * time.Second
)

// WatcherConfig configures a Watcher.
type WatcherConfig struct {
	// Path is the session file to watch.
	Path string

	// OnChange receives the freshly loaded session. Unreadable saves are
	// logged and skipped.
	OnChange func(*Session)

	Debounce     time.Duration
	PollInterval time.Duration
}

// Watcher reloads a session file when another process (auth login, serve)
// rewrites it.
type Watcher struct {
	mu      sync.Mutex
	config  WatcherConfig
	fs      *fsnotify.Watcher
	stopCh  chan struct{}
	running bool
	lastMod time.Time

	debounceMu    sync.Mutex
	debounceTimer *time.Timer
}

// NewWatcher creates a watcher. Call Start to begin watching.
func NewWatcher(config WatcherConfig) *Watcher {
	if config.Debounce == 0 {
		config.Debounce = DefaultDebounceInterval
	}
	if config.PollInterval == 0 {
		config.PollInterval = DefaultPollInterval
	}
	return &Watcher{config: config}
}

// Start begins watching. The parent directory is watched rather than the
// file because atomic saves replace the inode.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return nil
	}
	w.stopCh = make(chan struct{})
	w.running = true

	dir := filepath.Dir(w.config.Path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		w.running = false
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logging.Warn("SessionWatcher", "fsnotify not available, falling back to polling: %v", err)
		go w.poll()
		return nil
	}
	if err := watcher.Add(dir); err != nil {
		logging.Warn("SessionWatcher", "Failed to watch %s, falling back to polling: %v", dir, err)
		watcher.Close()
		go w.poll()
		return nil
	}
	w.fs = watcher

	go w.processEvents(watcher.Events, watcher.Errors)

	logging.Debug("SessionWatcher", "Watching %s", w.config.Path)
	return nil
}

// Stop stops watching and cancels any pending reload.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return
	}
	w.running = false
	close(w.stopCh)
	if w.fs != nil {
		w.fs.Close()
		w.fs = nil
	}

	w.debounceMu.Lock()
	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.debounceMu.Unlock()
}

// IsRunning reports whether the watcher is active.
func (w *Watcher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *Watcher) processEvents(events <-chan fsnotify.Event, errs <-chan error) {
	target := filepath.Clean(w.config.Path)
	for {
		select {
		case <-w.stopCh:
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.reloadDebounced()
		case err, ok := <-errs:
			if !ok {
				return
			}
			logging.Error("SessionWatcher", err, "fsnotify error")
		}
	}
}

func (w *Watcher) poll() {
	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	w.lastMod = modTime(w.config.Path)
	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			if mod := modTime(w.config.Path); !mod.IsZero() && mod.After(w.lastMod) {
				w.lastMod = mod
				w.reloadDebounced()
			}
		}
	}
}

func (w *Watcher) reloadDebounced() {
	w.debounceMu.Lock()
	defer w.debounceMu.Unlock()

	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.debounceTimer = time.AfterFunc(w.config.Debounce, w.reload)
}

func (w *Watcher) reload() {
	w.mu.Lock()
	running := w.running
	callback := w.config.OnChange
	w.mu.Unlock()

	if !running || callback == nil {
		return
	}

	s, err := Load(w.config.Path)
	if err != nil {
		logging.Warn("SessionWatcher", "Ignoring session change: %v", err)
		return
	}
	logging.Info("SessionWatcher", "Session reloaded from %s", w.config.Path)
	callback(s)
}

func modTime(path string) time.Time {
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}
	}
	return info.ModTime()
}
