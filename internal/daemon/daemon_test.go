package daemon

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Esakkiraja-Pothikannan/ios-inappmessaging/internal/config"
	"github.com/Esakkiraja-Pothikannan/ios-inappmessaging/internal/dbus"
	"github.com/Esakkiraja-Pothikannan/ios-inappmessaging/internal/history"
	"github.com/Esakkiraja-Pothikannan/ios-inappmessaging/internal/model"
	"github.com/Esakkiraja-Pothikannan/ios-inappmessaging/internal/ui"
)

const campaignsYAML = `
campaigns:
  - id: welcome
    data:
      type: modal
      max_impressions: 2
      title: "[onboarding] Welcome"
  - id: promo
    data:
      type: slide
      max_impressions: 2
      title: "[promo] Sale"
  - id: hidden
    data:
      type: full
      max_impressions: 2
      title: Hidden
  - id: buy-tip
    data:
      type: tooltip
      max_impressions: 1
      title: "[Tooltip] Tap to buy"
      tooltip:
        ui_element: buy
        position: top-center
`

func testConfig(t *testing.T) (*config.Config, string) {
	t.Helper()
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Storage.CampaignCache = filepath.Join(dir, "data", "campaigns.jsonl")
	cfg.Storage.HistoryDB = filepath.Join(dir, "data", "history.db")
	cfg.Source.Path = filepath.Join(dir, "campaigns.yaml")
	cfg.Display.Linger = config.Duration(10 * time.Millisecond)
	cfg.Permission.DenyCampaigns = []string{"hidden"}
	cfg.Permission.DenyContexts = []string{"promo"}
	return cfg, dir
}

func waitAttempts(t *testing.T, h *history.Store, campaignID string, want model.Reason) {
	t.Helper()
	require.NotNil(t, h)
	require.Eventually(t, func() bool {
		attempts, err := h.ListAttempts(context.Background(), history.Filter{CampaignID: campaignID})
		if err != nil {
			return false
		}
		for _, a := range attempts {
			if a.Reason == want {
				return true
			}
		}
		return false
	}, 3*time.Second, 10*time.Millisecond)
}

func TestDaemon_EndToEnd(t *testing.T) {
	cfg, dir := testConfig(t)
	require.NoError(t, os.WriteFile(cfg.Source.Path, []byte(campaignsYAML), 0o600))

	d := New(Options{Config: cfg, ConfigPath: filepath.Join(dir, "config.toml")})
	require.NoError(t, d.Start(context.Background()))
	t.Cleanup(d.Stop)

	assert.ErrorIs(t, d.Start(context.Background()), ErrAlreadyRunning)

	waitAttempts(t, d.History(), "welcome", model.ReasonDisplayed)
	waitAttempts(t, d.History(), "promo", model.ReasonRejected)
	assert.Equal(t, 1, d.Store().Get("welcome").ImpressionsLeft)
	assert.Equal(t, 2, d.Store().Get("promo").ImpressionsLeft)

	hidden, err := d.History().ListAttempts(context.Background(), history.Filter{CampaignID: "hidden"})
	require.NoError(t, err)
	assert.Empty(t, hidden)

	status := d.Status()
	assert.True(t, status.Running)
	assert.Equal(t, 4, status.Campaigns)
	assert.Equal(t, []string{"buy-tip"}, status.TooltipsPending)
	assert.False(t, status.DesktopNotifications)

	// A host view with a matching identifier shows the tooltip.
	window := ui.NewNode("window", ui.R(0, 0, 400, 800))
	button := ui.NewNode("checkout.buy", ui.R(100, 300, 80, 40))
	window.AddSubview(button)
	d.Tooltips().ViewAppeared(button)
	require.Eventually(t, func() bool {
		return d.Tooltips().IsDisplayed("checkout.buy")
	}, 3*time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, d.Status().TooltipsDisplayed)

	d.Tooltips().Dismiss("checkout.buy")
	waitAttempts(t, d.History(), "buy-tip", model.ReasonDisplayed)
	assert.Zero(t, d.Store().Get("buy-tip").ImpressionsLeft)
}

func TestDaemon_ReloadsDefinitions(t *testing.T) {
	cfg, dir := testConfig(t)
	cfg.Source.Watch = true

	d := New(Options{Config: cfg, ConfigPath: filepath.Join(dir, "config.toml")})
	require.NoError(t, d.Start(context.Background()))
	t.Cleanup(d.Stop)
	assert.Zero(t, d.Status().Campaigns)

	require.NoError(t, os.WriteFile(cfg.Source.Path, []byte(`
campaigns:
  - id: later
    data:
      type: modal
      max_impressions: 1
      title: Later
`), 0o600))

	waitAttempts(t, d.History(), "later", model.ReasonDisplayed)
	assert.Equal(t, 1, d.Status().Campaigns)
}

func TestDaemon_ConfigHotReload(t *testing.T) {
	cfg, dir := testConfig(t)
	configPath := filepath.Join(dir, "config.toml")
	require.NoError(t, cfg.Save(configPath))
	require.NoError(t, os.WriteFile(cfg.Source.Path, []byte(campaignsYAML), 0o600))

	d := New(Options{Config: cfg, ConfigPath: configPath})
	require.NoError(t, d.Start(context.Background()))
	t.Cleanup(d.Stop)
	waitAttempts(t, d.History(), "promo", model.ReasonRejected)

	// Allow the promo context and bump the linger.
	next := *cfg
	next.Permission.DenyContexts = nil
	next.Display.Linger = config.Duration(20 * time.Millisecond)
	require.NoError(t, next.Save(configPath))

	require.Eventually(t, func() bool {
		return d.rules.AllowsContexts([]string{"promo"})
	}, 5*time.Second, 20*time.Millisecond)
	assert.Equal(t, 20*time.Millisecond, d.linger.Linger())

	d.LoadCampaigns()
	waitAttempts(t, d.History(), "promo", model.ReasonDisplayed)
}

type fakeSender struct {
	mu       sync.Mutex
	messages []dbus.Message
}

func (s *fakeSender) Notify(_ context.Context, msg dbus.Message, onClose dbus.CloseHandler) (uint32, error) {
	s.mu.Lock()
	s.messages = append(s.messages, msg)
	id := uint32(len(s.messages))
	s.mu.Unlock()
	if onClose != nil {
		go onClose(id, dbus.CloseReasonExpired)
	}
	return id, nil
}

func (s *fakeSender) CloseNotification(context.Context, uint32) error { return nil }

func (s *fakeSender) summaries() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.messages))
	for _, m := range s.messages {
		out = append(out, m.Summary)
	}
	return out
}

func TestDaemon_DesktopNotifications(t *testing.T) {
	cfg, dir := testConfig(t)
	cfg.Display.DesktopNotifications = true
	require.NoError(t, os.WriteFile(cfg.Source.Path, []byte(campaignsYAML), 0o600))

	sender := &fakeSender{}
	d := New(Options{Config: cfg, ConfigPath: filepath.Join(dir, "config.toml"), Sender: sender, Version: "1.2.3"})
	require.NoError(t, d.Start(context.Background()))
	t.Cleanup(d.Stop)

	waitAttempts(t, d.History(), "welcome", model.ReasonDisplayed)
	assert.True(t, d.Status().DesktopNotifications)
	assert.Contains(t, sender.summaries(), "iamd Started")
	assert.Contains(t, sender.summaries(), "Welcome")
}

func TestDaemon_StopIdempotent(t *testing.T) {
	cfg, dir := testConfig(t)
	d := New(Options{Config: cfg, ConfigPath: filepath.Join(dir, "config.toml")})
	d.Stop()

	require.NoError(t, d.Start(context.Background()))
	d.Stop()
	d.Stop()
	assert.False(t, d.Status().Running)
}
