package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/Esakkiraja-Pothikannan/ios-inappmessaging/internal/config"
	"github.com/Esakkiraja-Pothikannan/ios-inappmessaging/internal/dbus"
	"github.com/Esakkiraja-Pothikannan/ios-inappmessaging/internal/dispatch"
	"github.com/Esakkiraja-Pothikannan/ios-inappmessaging/internal/display"
	"github.com/Esakkiraja-Pothikannan/ios-inappmessaging/internal/gate"
	"github.com/Esakkiraja-Pothikannan/ios-inappmessaging/internal/history"
	"github.com/Esakkiraja-Pothikannan/ios-inappmessaging/internal/mainloop"
	"github.com/Esakkiraja-Pothikannan/ios-inappmessaging/internal/model"
	"github.com/Esakkiraja-Pothikannan/ios-inappmessaging/internal/permission"
	"github.com/Esakkiraja-Pothikannan/ios-inappmessaging/internal/platform/redis"
	"github.com/Esakkiraja-Pothikannan/ios-inappmessaging/internal/source"
	"github.com/Esakkiraja-Pothikannan/ios-inappmessaging/internal/store"
	"github.com/Esakkiraja-Pothikannan/ios-inappmessaging/internal/telemetry"
	"github.com/Esakkiraja-Pothikannan/ios-inappmessaging/internal/tooltip"
	"github.com/Esakkiraja-Pothikannan/ios-inappmessaging/internal/ui"
)

// ErrAlreadyRunning is returned by Start on a running daemon.
var ErrAlreadyRunning = errors.New("daemon: already running")

// Options configures a Daemon.
type Options struct {
	Config     *config.Config
	ConfigPath string // Watched for hot reload; empty means the default path
	Version    string
	Logger     *slog.Logger

	// Counter overrides the impressions counter selected by the config.
	Counter store.Counter
	// Sender overrides the D-Bus session connection used for desktop
	// notifications.
	Sender display.NotificationSender
}

// Status is a point-in-time summary of the daemon.
type Status struct {
	Running              bool
	StartedAt            time.Time
	Campaigns            int
	QueueState           dispatch.State
	QueuePending         int
	TooltipsPending      []string
	TooltipsDisplayed    int
	DesktopNotifications bool
	SharedCounter        bool
}

// Daemon owns every runtime component of iamd.
type Daemon struct {
	opts   Options
	logger *slog.Logger

	mu        sync.Mutex
	cfg       *config.Config
	running   bool
	startedAt time.Time
	cancel    context.CancelFunc

	background *mainloop.Loop
	foreground *mainloop.Loop

	redisClient *goredis.Client
	store       *store.Store
	history     *history.Store
	rules       *permission.Rules
	gate        *gate.Gate
	router      *display.Router
	linger      *display.LogPresenter
	notifier    *dbus.Notifier
	desktop     bool
	queue       *dispatch.Queue
	tooltips    *tooltip.Positioner

	sourceWatcher *source.Watcher
	configWatcher *ConfigWatcher
	internal      *InternalNotifier

	shutdownTelemetry telemetry.Shutdown
}

// New creates a daemon. Nothing runs until Start.
func New(opts Options) *Daemon {
	if opts.Config == nil {
		opts.Config = config.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}
	return &Daemon{
		opts:   opts,
		cfg:    opts.Config,
		logger: opts.Logger,
	}
}

// Start builds and starts every component. On error everything already
// started is stopped again.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return ErrAlreadyRunning
	}
	d.running = true
	d.startedAt = time.Now()
	cfg := d.cfg
	d.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	if err := d.start(ctx, cfg); err != nil {
		d.Stop()
		return err
	}

	d.logger.Info("iamd ready",
		"campaigns", d.store.Count(),
		"desktop_notifications", d.desktop,
		"shared_counter", d.redisClient != nil)
	d.internal.NotifyStartup(d.opts.Version)
	return nil
}

func (d *Daemon) start(ctx context.Context, cfg *config.Config) error {
	shutdown, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		d.logger.Warn("failed to set up tracing", "error", err)
	}
	d.shutdownTelemetry = shutdown

	d.background = mainloop.New("background", d.logger)
	d.foreground = mainloop.New("foreground", d.logger)
	d.background.Start(ctx)
	d.foreground.Start(ctx)

	if err := d.openStore(ctx, cfg); err != nil {
		return err
	}
	d.openHistory(cfg)

	d.rules = permission.NewRules(cfg.Permission, d.logger)
	d.gate = gate.New(d.rules, d.logger)
	d.gate.SetDelegate(&hostDelegate{
		rules:  d.rules,
		ping:   d.RefreshCampaigns,
		logger: d.logger,
	})

	d.setupPresenters(cfg)

	var recorder dispatch.Recorder
	if d.history != nil {
		recorder = d.history
	}

	queue, err := dispatch.New(dispatch.Options{
		Loop:          d.background,
		Repository:    d.store,
		Gate:          d.gate,
		Router:        d.router,
		Recorder:      recorder,
		RecordTimeout: cfg.Dispatch.RecordTimeout.Duration(),
		Logger:        d.logger,
	})
	if err != nil {
		return fmt.Errorf("create dispatch queue: %w", err)
	}
	d.queue = queue

	var tooltipRecorder tooltip.Recorder
	if d.history != nil {
		tooltipRecorder = d.history
	}
	tooltips, err := tooltip.New(tooltip.Options{
		Background:    d.background,
		Foreground:    d.foreground,
		Repository:    d.store,
		Gate:          d.gate,
		Images:        display.NewHTTPImageLoader(cfg.Tooltip.ImageTimeout.Duration()),
		ImageTimeout:  cfg.Tooltip.ImageTimeout.Duration(),
		Margin:        cfg.Tooltip.Margin,
		DefaultSize:   ui.Size{W: cfg.Tooltip.Width, H: cfg.Tooltip.Height},
		Recorder:      tooltipRecorder,
		RecordTimeout: cfg.Dispatch.RecordTimeout.Duration(),
		OnBecameVisible: func(c model.Campaign, _ ui.View) {
			d.logger.Info("tooltip visible", "campaign_id", c.ID, "title", model.StripContexts(c.Data.Title))
		},
		Logger: d.logger,
	})
	if err != nil {
		return fmt.Errorf("create tooltip positioner: %w", err)
	}
	d.tooltips = tooltips

	d.LoadCampaigns()

	if cfg.Source.Watch {
		d.startSourceWatcher(cfg.SourcePath())
	}

	d.configWatcher = NewConfigWatcher(ConfigWatcherOptions{
		Path:     d.opts.ConfigPath,
		OnReload: d.applyConfig,
		OnError:  d.internal.NotifyConfigError,
		Logger:   d.logger,
	})
	if err := d.configWatcher.Start(ctx, cfg); err != nil {
		d.logger.Warn("failed to start config watcher", "error", err)
	}

	return nil
}

// openStore builds the campaign repository and its counter.
func (d *Daemon) openStore(ctx context.Context, cfg *config.Config) error {
	counter := d.opts.Counter
	if counter == nil && cfg.Redis.Enabled {
		client, err := redis.NewClient(ctx, redis.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			d.logger.Warn("shared impressions counter unavailable, using local counts", "addr", cfg.Redis.Addr, "error", err)
		} else {
			d.redisClient = client
			counter = redis.NewCounter(client, cfg.Redis.Key)
		}
	}

	persistence, err := store.NewJSONLPersistence(cfg.CampaignCachePath())
	if err != nil {
		return fmt.Errorf("open campaign cache: %w", err)
	}

	d.store = store.NewStore(store.Options{
		Counter:     counter,
		Persistence: persistence,
		Logger:      d.logger,
	})
	if err := d.store.Hydrate(); err != nil {
		d.logger.Warn("failed to hydrate campaign cache", "error", err)
	}
	d.logger.Info("campaign repository initialized", "path", persistence.Path(), "count", d.store.Count())
	return nil
}

// openHistory opens attempt history. Without it attempts are not recorded.
func (d *Daemon) openHistory(cfg *config.Config) {
	path := cfg.HistoryDBPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		d.logger.Warn("failed to create history directory", "error", err)
		return
	}
	h, err := history.Open(path)
	if err != nil {
		d.logger.Warn("attempt history unavailable", "path", path, "error", err)
		return
	}
	d.history = h
}

// setupPresenters registers a presenter for every routed view type.
func (d *Daemon) setupPresenters(cfg *config.Config) {
	d.router = display.NewRouter(d.foreground, d.logger)
	d.linger = display.NewLogPresenter(d.foreground, cfg.Display.Linger.Duration(), d.logger)

	var presenter display.Presenter = d.linger
	var sender Sender

	if cfg.Display.DesktopNotifications {
		ns := d.opts.Sender
		if ns == nil {
			n := dbus.NewNotifier(d.logger)
			if err := n.Start(); err != nil {
				d.logger.Warn("desktop notifications unavailable, logging campaigns instead", "error", err)
			} else {
				d.notifier = n
				ns = n
			}
		}
		if ns != nil {
			presenter = display.NewNotifyPresenter(ns, d.foreground, cfg.Display.AppName, d.logger)
			sender = ns
			d.desktop = true
		}
	}

	for _, t := range []model.ViewType{model.ViewTypeModal, model.ViewTypeFull, model.ViewTypeSlide} {
		d.router.Register(t, presenter)
	}
	d.internal = NewInternalNotifier(sender, cfg.Display.AppName, d.logger)
}

func (d *Daemon) startSourceWatcher(path string) {
	w, err := source.NewWatcher(path, d.applyCampaigns, d.logger)
	if err != nil {
		d.logger.Warn("failed to create campaign watcher", "error", err)
		return
	}
	if err := w.Start(); err != nil {
		d.logger.Warn("failed to start campaign watcher", "path", path, "error", err)
		_ = w.Stop()
		return
	}
	d.sourceWatcher = w
}

// LoadCampaigns reads the definitions file, syncs the repository and
// enqueues every displayable campaign.
func (d *Daemon) LoadCampaigns() {
	campaigns, ok := d.readSource()
	if !ok {
		return
	}
	d.applyCampaigns(campaigns)
}

// RefreshCampaigns reads the definitions file and syncs the repository
// without enqueuing anything.
func (d *Daemon) RefreshCampaigns() {
	campaigns, ok := d.readSource()
	if !ok {
		return
	}
	if err := d.store.Sync(campaigns); err != nil {
		d.logger.Warn("failed to refresh campaigns", "error", err)
	}
}

func (d *Daemon) readSource() ([]model.Campaign, bool) {
	path := d.config().SourcePath()
	campaigns, err := source.LoadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		d.logger.Info("no campaign definitions", "path", path)
		return nil, false
	case err != nil:
		d.logger.Warn("failed to load campaign definitions", "path", path, "error", err)
		d.internal.NotifySourceError(err)
		return nil, false
	}
	return campaigns, true
}

// applyCampaigns replaces the queue contents with the new definitions.
func (d *Daemon) applyCampaigns(campaigns []model.Campaign) {
	if err := d.store.Sync(campaigns); err != nil {
		d.logger.Warn("failed to sync campaigns", "error", err)
		return
	}
	d.queue.ResetQueue()

	var messages, tooltips int
	for _, c := range d.store.List() {
		if d.rules.Denied(c.ID) {
			d.logger.Debug("campaign denied by id", "campaign_id", c.ID)
			continue
		}
		if c.IsOptedOut || c.Exhausted() {
			continue
		}
		if c.IsTooltip() {
			d.tooltips.SetNeedsDisplay(c)
			tooltips++
			continue
		}
		d.queue.AddToQueue(c)
		messages++
	}
	d.queue.DispatchAllIfNeeded()
	d.logger.Info("campaigns enqueued", "messages", messages, "tooltips", tooltips)
}

// applyConfig applies the settings that can change without a restart.
func (d *Daemon) applyConfig(cfg *config.Config) {
	d.mu.Lock()
	d.cfg = cfg
	d.mu.Unlock()

	d.rules.Update(cfg.Permission)
	d.linger.SetLinger(cfg.Display.Linger.Duration())
	d.internal.NotifyConfigReloaded()
}

func (d *Daemon) config() *config.Config {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cfg
}

// Store returns the campaign repository.
func (d *Daemon) Store() *store.Store { return d.store }

// History returns the attempt history, or nil when it could not be opened.
func (d *Daemon) History() *history.Store { return d.history }

// Tooltips returns the tooltip positioner for the embedding host.
func (d *Daemon) Tooltips() *tooltip.Positioner { return d.tooltips }

// SetDelegate replaces the built-in delegate.
func (d *Daemon) SetDelegate(delegate gate.Delegate) {
	d.gate.SetDelegate(delegate)
}

// Status returns a summary of the running daemon.
func (d *Daemon) Status() Status {
	d.mu.Lock()
	running := d.running
	startedAt := d.startedAt
	d.mu.Unlock()

	s := Status{
		Running:              running,
		StartedAt:            startedAt,
		DesktopNotifications: d.desktop,
		SharedCounter:        d.redisClient != nil,
	}
	if !running || d.queue == nil {
		return s
	}
	s.Campaigns = d.store.Count()
	s.QueueState = d.queue.State()
	s.QueuePending = len(d.queue.Pending())
	s.TooltipsPending = d.tooltips.Pending()
	s.TooltipsDisplayed = len(d.tooltips.Displayed())
	return s
}

// Stop shuts every component down. It is safe to call more than once.
func (d *Daemon) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	d.running = false
	d.mu.Unlock()

	if d.configWatcher != nil {
		d.configWatcher.Stop()
	}
	if d.sourceWatcher != nil {
		if err := d.sourceWatcher.Stop(); err != nil {
			d.logger.Warn("error stopping campaign watcher", "error", err)
		}
	}
	if d.queue != nil {
		d.queue.Close()
	}
	if d.tooltips != nil {
		d.tooltips.Close()
	}
	if d.background != nil {
		d.background.Stop()
	}
	if d.foreground != nil {
		d.foreground.Stop()
	}
	if d.notifier != nil {
		if err := d.notifier.Stop(); err != nil {
			d.logger.Warn("error stopping notifier", "error", err)
		}
	}
	if d.store != nil {
		if err := d.store.Close(); err != nil {
			d.logger.Warn("error closing campaign repository", "error", err)
		}
	}
	if d.history != nil {
		if err := d.history.Close(); err != nil {
			d.logger.Warn("error closing history", "error", err)
		}
	}
	if d.redisClient != nil {
		_ = d.redisClient.Close()
	}
	if d.cancel != nil {
		d.cancel()
	}
	if d.shutdownTelemetry != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := d.shutdownTelemetry(ctx); err != nil {
			d.logger.Warn("error flushing traces", "error", err)
		}
		cancel()
	}

	d.logger.Info("iamd stopped")
}
