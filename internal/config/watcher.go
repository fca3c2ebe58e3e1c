package config

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads the settings file when it changes on disk, e.g.
// after a settings-edit action. It watches the containing directory
// rather than the file itself so editors that write via rename are
// still observed.
type Watcher struct {
	watcher *fsnotify.Watcher
	configs chan *Config
	errors  chan error
	done    chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
	path    string
}

// NewWatcher creates a Watcher for the settings file at path.
// The watcher must be started with Start() before it emits anything.
func NewWatcher(path string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &Watcher{
		watcher: fsw,
		configs: make(chan *Config, 4),
		errors:  make(chan error, 4),
		done:    make(chan struct{}),
		path:    path,
	}, nil
}

// Start begins watching the settings file's directory.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return fmt.Errorf("watcher already running")
	}

	dir := filepath.Dir(w.path)
	if err := w.watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch settings directory %s: %w", dir, err)
	}

	w.running = true
	w.wg.Add(1)
	go w.processEvents()

	return nil
}

// Stop stops watching and releases resources. It blocks until the
// event goroutine has exited.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	w.mu.Unlock()

	close(w.done)
	if err := w.watcher.Close(); err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}
	w.wg.Wait()
	return nil
}

// Configs returns the channel of reloaded configurations.
func (w *Watcher) Configs() <-chan *Config {
	return w.configs
}

// Errors returns the channel of reload errors.
func (w *Watcher) Errors() <-chan error {
	return w.errors
}

func (w *Watcher) processEvents() {
	defer w.wg.Done()

	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			cfg, err := Load(w.path)
			if err != nil {
				select {
				case w.errors <- err:
				default:
				}
				continue
			}
			select {
			case w.configs <- cfg:
			default:
				// Drop when the consumer is behind; the next write
				// delivers a fresh config anyway.
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			select {
			case w.errors <- err:
			default:
			}
		}
	}
}
