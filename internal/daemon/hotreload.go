package daemon

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Esakkiraja-Pothikannan/ios-inappmessaging/internal/config"
)

// DefaultConfigDebounce coalesces the burst of events an editor or an atomic
// rename produces into one reload.
const DefaultConfigDebounce = 100 * time.Millisecond

// ConfigWatcherOptions configures a ConfigWatcher.
type ConfigWatcherOptions struct {
	Path     string        // Empty means config.ConfigPath()
	Debounce time.Duration // Default DefaultConfigDebounce

	// OnReload receives every valid configuration read after a change.
	OnReload func(cfg *config.Config)
	// OnError receives load and validation failures; the current
	// configuration stays in effect.
	OnError func(err error)

	Logger *slog.Logger
}

// ConfigWatcher applies config file edits to a running daemon. Only the
// settings iamd can change in place are reloaded: permission rules and
// presenter linger.
type ConfigWatcher struct {
	path     string
	debounce time.Duration
	onReload func(*config.Config)
	onError  func(error)
	logger   *slog.Logger

	mu      sync.Mutex
	current *config.Config
	fsw     *fsnotify.Watcher
	stop    chan struct{}
	done    chan struct{}
	running bool
}

// NewConfigWatcher creates a watcher. It does nothing until Start.
func NewConfigWatcher(opts ConfigWatcherOptions) *ConfigWatcher {
	if opts.Path == "" {
		opts.Path = config.ConfigPath()
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultConfigDebounce
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &ConfigWatcher{
		path:     opts.Path,
		debounce: opts.Debounce,
		onReload: opts.OnReload,
		onError:  opts.OnError,
		logger:   opts.Logger.With("component", "config", "file", opts.Path),
	}
}

// Start watches the directory holding the config file. A directory that does
// not exist yet leaves hot reload off; restarting iamd picks the file up.
func (w *ConfigWatcher) Start(ctx context.Context, initial *config.Config) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return nil
	}
	w.current = initial

	dir := filepath.Dir(w.path)
	if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		w.logger.Debug("config directory missing, hot reload disabled", "dir", dir)
		return nil
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fsw.Add(dir); err != nil {
		_ = fsw.Close()
		return err
	}

	w.fsw = fsw
	w.stop = make(chan struct{})
	w.done = make(chan struct{})
	w.running = true

	go w.watch(ctx)
	w.logger.Debug("config watcher started", "debounce", w.debounce)
	return nil
}

// Stop ends the watch and waits for it. It is safe to call more than once.
func (w *ConfigWatcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	close(w.stop)
	done := w.done
	w.mu.Unlock()

	<-done
	w.logger.Debug("config watcher stopped")
}

// CurrentConfig returns the configuration last applied.
func (w *ConfigWatcher) CurrentConfig() *config.Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

func (w *ConfigWatcher) watch(ctx context.Context) {
	defer close(w.done)
	defer w.fsw.Close()

	filename := filepath.Base(w.path)

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != filename {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			w.reload()

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("config watcher error", "error", err)

		case <-ctx.Done():
			return
		case <-w.stop:
			return
		}
	}
}

// reload reads the file once the burst of events has settled.
func (w *ConfigWatcher) reload() {
	data, err := os.ReadFile(w.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			w.logger.Warn("failed to read config", "error", err)
		}
		return
	}
	if len(bytes.TrimSpace(data)) == 0 {
		w.logger.Debug("ignoring empty config file")
		return
	}

	cfg, err := config.LoadConfig(w.path)
	if err != nil {
		w.logger.Warn("config changed but is invalid, keeping current", "error", err)
		if w.onError != nil {
			w.onError(err)
		}
		return
	}

	w.mu.Lock()
	w.current = cfg
	w.mu.Unlock()

	w.logger.Info("config reloaded")
	if w.onReload != nil {
		w.onReload(cfg)
	}
}
