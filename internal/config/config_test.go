package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, DefaultLinger, cfg.Display.Linger.Duration())
	assert.Equal(t, DefaultRecordTimeout, cfg.Dispatch.RecordTimeout.Duration())
	assert.Equal(t, DefaultTooltipMargin, cfg.Tooltip.Margin)
	assert.Equal(t, DefaultImageTimeout, cfg.Tooltip.ImageTimeout.Duration())
	assert.Equal(t, DefaultRedisKey, cfg.Redis.Key)
	assert.Equal(t, DefaultRefreshInterval, cfg.Monitor.RefreshInterval.Duration())
	assert.False(t, cfg.Redis.Enabled)
	assert.True(t, cfg.Source.Watch)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfig_DefaultsWhenNoFile(t *testing.T) {
	cfg, err := LoadConfig("/nonexistent/path/config.toml")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Display.Linger, cfg.Display.Linger)
}

func TestLoadConfig_ParsesTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	content := `
[dispatch]
record_timeout = "500ms"

[display]
linger = "3s"
desktop_notifications = true
app_name = "shop"

[tooltip]
margin = 4.0
width = 150.0
height = 80.0
image_timeout = "1500"

[permission]
deny_campaigns = ["c-9"]
deny_types = ["slide"]
perform_ping = true

[redis]
enabled = true
addr = "redis:6379"
db = 2

[source]
path = "/tmp/campaigns.yaml"
watch = false
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 500*time.Millisecond, cfg.Dispatch.RecordTimeout.Duration())
	assert.Equal(t, 3*time.Second, cfg.Display.Linger.Duration())
	assert.True(t, cfg.Display.DesktopNotifications)
	assert.Equal(t, "shop", cfg.Display.AppName)
	assert.Equal(t, 4.0, cfg.Tooltip.Margin)
	assert.Equal(t, 1500*time.Millisecond, cfg.Tooltip.ImageTimeout.Duration())
	assert.Equal(t, []string{"c-9"}, cfg.Permission.DenyCampaigns)
	assert.Equal(t, []string{"slide"}, cfg.Permission.DenyTypes)
	assert.True(t, cfg.Permission.PerformPing)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.Equal(t, 2, cfg.Redis.DB)
	assert.Equal(t, DefaultRedisKey, cfg.Redis.Key, "unset keys keep defaults")
	assert.Equal(t, "/tmp/campaigns.yaml", cfg.SourcePath())
	assert.False(t, cfg.Source.Watch)
}

func TestLoadConfig_InvalidTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[display\nlinger ="), 0644))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[display]\nlinger = \"3s\"\n"), 0644))

	t.Setenv("IAM_DISPLAY_LINGER", "250ms")
	t.Setenv("IAM_REDIS_ENABLED", "true")
	t.Setenv("IAM_REDIS_ADDR", "cache:6380")
	t.Setenv("IAM_PERMISSION_DENY_TYPES", "modal,tooltip")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 250*time.Millisecond, cfg.Display.Linger.Duration())
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "cache:6380", cfg.Redis.Addr)
	assert.Equal(t, []string{"modal", "tooltip"}, cfg.Permission.DenyTypes)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"negative linger", func(c *Config) { c.Display.Linger = Duration(-time.Second) }, true},
		{"zero record timeout", func(c *Config) { c.Dispatch.RecordTimeout = 0 }, true},
		{"negative margin", func(c *Config) { c.Tooltip.Margin = -1 }, true},
		{"zero width", func(c *Config) { c.Tooltip.Width = 0 }, true},
		{"zero image timeout", func(c *Config) { c.Tooltip.ImageTimeout = 0 }, true},
		{"unknown deny type", func(c *Config) { c.Permission.DenyTypes = []string{"banner"} }, true},
		{"known deny type", func(c *Config) { c.Permission.DenyTypes = []string{"full"} }, false},
		{"redis without addr", func(c *Config) { c.Redis.Enabled = true; c.Redis.Addr = "" }, true},
		{"telemetry without endpoint", func(c *Config) { c.Telemetry.Enabled = true }, true},
		{"zero refresh interval", func(c *Config) { c.Monitor.RefreshInterval = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDuration_UnmarshalText(t *testing.T) {
	tests := []struct {
		input   string
		want    time.Duration
		wantErr bool
	}{
		{"5s", 5 * time.Second, false},
		{"1m30s", 90 * time.Second, false},
		{"2500", 2500 * time.Millisecond, false},
		{"0", 0, false},
		{"soon", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			var d Duration
			err := d.UnmarshalText([]byte(tt.input))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, d.Duration())
		})
	}
}

func TestConfig_SaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")

	cfg := DefaultConfig()
	cfg.Display.AppName = "roundtrip"
	cfg.Permission.DenyCampaigns = []string{"a", "b"}
	require.NoError(t, cfg.Save(path))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "roundtrip", loaded.Display.AppName)
	assert.Equal(t, []string{"a", "b"}, loaded.Permission.DenyCampaigns)
	assert.Equal(t, cfg.Display.Linger, loaded.Display.Linger)
}

func TestPaths_XDG(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/xdg/config")
	t.Setenv("XDG_DATA_HOME", "/xdg/data")

	cfg := DefaultConfig()
	assert.Equal(t, "/xdg/config/inappmessaging/config.toml", ConfigPath())
	assert.Equal(t, "/xdg/data/inappmessaging", DataPath())
	assert.Equal(t, "/xdg/data/inappmessaging/campaigns.jsonl", cfg.CampaignCachePath())
	assert.Equal(t, "/xdg/data/inappmessaging/history.db", cfg.HistoryDBPath())
	assert.Equal(t, "/xdg/config/inappmessaging/campaigns.yaml", cfg.SourcePath())
}
