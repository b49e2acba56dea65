package daemon

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Esakkiraja-Pothikannan/ios-inappmessaging/internal/config"
)

const reloadTimeout = 2 * time.Second

func startConfigWatcher(t *testing.T, path string, initial *config.Config, opts ConfigWatcherOptions) *ConfigWatcher {
	t.Helper()
	opts.Path = path
	if opts.Debounce == 0 {
		opts.Debounce = 20 * time.Millisecond
	}
	w := NewConfigWatcher(opts)
	require.NoError(t, w.Start(context.Background(), initial))
	t.Cleanup(w.Stop)
	return w
}

func TestConfigWatcher_Reload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	initial := config.DefaultConfig()
	require.NoError(t, initial.Save(path))

	reloaded := make(chan *config.Config, 1)
	w := startConfigWatcher(t, path, initial, ConfigWatcherOptions{
		OnReload: func(cfg *config.Config) { reloaded <- cfg },
		OnError:  func(err error) { t.Errorf("unexpected error: %v", err) },
	})
	assert.Same(t, initial, w.CurrentConfig())

	next := config.DefaultConfig()
	next.Tooltip.Margin = 12
	require.NoError(t, next.Save(path))

	select {
	case cfg := <-reloaded:
		assert.Equal(t, 12.0, cfg.Tooltip.Margin)
		assert.Same(t, cfg, w.CurrentConfig())
	case <-time.After(reloadTimeout):
		t.Fatal("config was not reloaded")
	}
}

func TestConfigWatcher_BurstReloadsOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	initial := config.DefaultConfig()
	require.NoError(t, initial.Save(path))

	var reloads atomic.Int32
	var last atomic.Pointer[config.Config]
	startConfigWatcher(t, path, initial, ConfigWatcherOptions{
		Debounce: 250 * time.Millisecond,
		OnReload: func(cfg *config.Config) {
			reloads.Add(1)
			last.Store(cfg)
		},
	})

	for _, margin := range []float64{4, 8, 16} {
		next := config.DefaultConfig()
		next.Tooltip.Margin = margin
		require.NoError(t, next.Save(path))
	}

	require.Eventually(t, func() bool {
		cfg := last.Load()
		return cfg != nil && cfg.Tooltip.Margin == 16
	}, reloadTimeout, 10*time.Millisecond)
	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, int32(1), reloads.Load())
}

func TestConfigWatcher_InvalidConfigKeepsCurrent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	initial := config.DefaultConfig()
	require.NoError(t, initial.Save(path))

	errs := make(chan error, 1)
	w := startConfigWatcher(t, path, initial, ConfigWatcherOptions{
		OnReload: func(*config.Config) { t.Error("invalid config must not be applied") },
		OnError: func(err error) {
			select {
			case errs <- err:
			default:
			}
		},
	})

	require.NoError(t, os.WriteFile(path, []byte("[tooltip\nmargin = "), 0o600))

	select {
	case err := <-errs:
		assert.Error(t, err)
	case <-time.After(reloadTimeout):
		t.Fatal("error callback not called")
	}
	assert.Same(t, initial, w.CurrentConfig())
}

func TestConfigWatcher_IgnoresOtherFilesAndEmptyConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	initial := config.DefaultConfig()
	require.NoError(t, initial.Save(path))

	w := startConfigWatcher(t, path, initial, ConfigWatcherOptions{
		OnReload: func(*config.Config) { t.Error("nothing to reload") },
		OnError:  func(err error) { t.Errorf("unexpected error: %v", err) },
	})

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.toml"), []byte("x = 1"), 0o600))
	require.NoError(t, os.WriteFile(path, nil, 0o600))
	time.Sleep(150 * time.Millisecond)

	assert.Same(t, initial, w.CurrentConfig())
}

func TestConfigWatcher_MissingDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent", "config.toml")
	initial := config.DefaultConfig()

	w := NewConfigWatcher(ConfigWatcherOptions{Path: path})
	require.NoError(t, w.Start(context.Background(), initial))
	assert.Same(t, initial, w.CurrentConfig())
	w.Stop()
	w.Stop()
}

func TestConfigWatcher_StopsWithContext(t *testing.T) {
	w := NewConfigWatcher(ConfigWatcherOptions{Path: filepath.Join(t.TempDir(), "config.toml")})

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, w.Start(ctx, config.DefaultConfig()))
	cancel()

	select {
	case <-w.done:
	case <-time.After(time.Second):
		t.Fatal("watch loop did not exit")
	}
	w.Stop()
}
