package source

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/Esakkiraja-Pothikannan/ios-inappmessaging/internal/model"
)

// Handler receives the definitions after every successful reload.
type Handler func(campaigns []model.Campaign)

// Watcher reloads the definitions file when it changes. Empty and invalid
// files are logged and ignored; the handler only ever sees valid
// definitions.
type Watcher struct {
	watcher  *fsnotify.Watcher
	filePath string
	handler  Handler
	logger   *slog.Logger
	done     chan struct{}
	mu       sync.Mutex
	running  bool
}

// NewWatcher creates a watcher for path.
func NewWatcher(path string, handler Handler, logger *slog.Logger) (*Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Watcher{
		watcher:  watcher,
		filePath: path,
		handler:  handler,
		logger:   logger.With("component", "source", "file", path),
		done:     make(chan struct{}),
	}, nil
}

// Start begins watching the file.
func (w *Watcher) Start() error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	// Watch the directory; editors replace files rather than writing them.
	if err := w.watcher.Add(filepath.Dir(w.filePath)); err != nil {
		return err
	}

	go w.watch()
	return nil
}

func (w *Watcher) watch() {
	filename := filepath.Base(w.filePath)

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != filename {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				w.reload()
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("file watcher error", "error", err)

		case <-w.done:
			return
		}
	}
}

func (w *Watcher) reload() {
	data, err := os.ReadFile(w.filePath)
	if err != nil {
		w.logger.Warn("failed to read campaign definitions", "error", err)
		return
	}
	// Truncation during a rewrite shows up as an empty file.
	if len(bytes.TrimSpace(data)) == 0 {
		w.logger.Debug("ignoring empty campaign definitions")
		return
	}

	campaigns, err := Parse(data)
	if err != nil {
		w.logger.Warn("ignoring invalid campaign definitions", "error", err)
		return
	}
	w.logger.Info("campaign definitions reloaded", "campaigns", len(campaigns))
	w.handler(campaigns)
}

// Stop stops the watcher.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return nil
	}

	w.running = false
	close(w.done)
	return w.watcher.Close()
}
