package daemon

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Esakkiraja-Pothikannan/ios-inappmessaging/internal/dbus"
)

// NotificationLevel indicates the severity of an internal notification.
type NotificationLevel int

const (
	// NotificationLevelInfo is for informational messages (low urgency).
	NotificationLevelInfo NotificationLevel = iota
	// NotificationLevelWarning is for warning messages (normal urgency).
	NotificationLevelWarning
	// NotificationLevelError is for error messages (critical urgency).
	NotificationLevelError
)

// Sender delivers desktop notifications.
type Sender interface {
	Notify(ctx context.Context, msg dbus.Message, onClose dbus.CloseHandler) (uint32, error)
}

// InternalNotifier tells the desktop user about daemon events such as config
// reloads. Repeats of the same event are rate limited.
type InternalNotifier struct {
	mu     sync.Mutex
	logger *slog.Logger

	sender  Sender
	appName string

	lastNotifyTime map[string]time.Time // key -> last notification time
	minInterval    time.Duration

	enabled bool
}

// NewInternalNotifier creates an InternalNotifier. A nil sender only logs.
func NewInternalNotifier(sender Sender, appName string, logger *slog.Logger) *InternalNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &InternalNotifier{
		logger:         logger,
		sender:         sender,
		appName:        appName,
		lastNotifyTime: make(map[string]time.Time),
		minInterval:    5 * time.Second,
		enabled:        true,
	}
}

// SetEnabled enables or disables internal notifications.
func (n *InternalNotifier) SetEnabled(enabled bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.enabled = enabled
}

// SetMinInterval sets the minimum interval between duplicate notifications.
func (n *InternalNotifier) SetMinInterval(interval time.Duration) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.minInterval = interval
}

// Notify sends an internal notification unless the same key was sent within
// the minimum interval.
func (n *InternalNotifier) Notify(key, summary, body string, level NotificationLevel) {
	n.mu.Lock()
	if !n.enabled {
		n.mu.Unlock()
		return
	}
	if lastTime, ok := n.lastNotifyTime[key]; ok && time.Since(lastTime) < n.minInterval {
		n.mu.Unlock()
		n.logger.Debug("internal notification rate-limited", "key", key, "summary", summary)
		return
	}
	n.lastNotifyTime[key] = time.Now()
	sender := n.sender
	n.mu.Unlock()

	if sender == nil {
		n.logger.Info("internal event", "key", key, "summary", summary, "body", body)
		return
	}

	urgency := dbus.UrgencyNormal
	icon := "dialog-warning"
	switch level {
	case NotificationLevelInfo:
		urgency = dbus.UrgencyLow
		icon = "dialog-information"
	case NotificationLevelError:
		urgency = dbus.UrgencyCritical
		icon = "dialog-error"
	}

	msg := dbus.Message{
		AppName:       n.appName,
		AppIcon:       icon,
		Summary:       summary,
		Body:          body,
		ExpireTimeout: 5000,
	}.WithUrgency(urgency)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := sender.Notify(ctx, msg, nil); err != nil {
		n.logger.Warn("failed to send internal notification", "key", key, "error", err)
	}
}

// NotifyConfigReloaded reports a successful config reload.
func (n *InternalNotifier) NotifyConfigReloaded() {
	n.Notify("config-reload", "Configuration Reloaded",
		"In-app messaging configuration has been reloaded.", NotificationLevelInfo)
}

// NotifyConfigError reports a rejected config file.
func (n *InternalNotifier) NotifyConfigError(err error) {
	n.Notify("config-error", "Configuration Error",
		"Failed to reload configuration: "+err.Error(), NotificationLevelWarning)
}

// NotifySourceError reports campaign definitions that could not be loaded.
func (n *InternalNotifier) NotifySourceError(err error) {
	n.Notify("source-error", "Campaign Definitions Error",
		"Failed to load campaigns: "+err.Error(), NotificationLevelError)
}

// NotifyStartup reports that the daemon is running.
func (n *InternalNotifier) NotifyStartup(version string) {
	n.Notify("startup", "iamd Started",
		"In-app messaging daemon v"+version+" is now running.", NotificationLevelInfo)
}
