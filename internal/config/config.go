// Package config handles configuration file loading and parsing.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Default configuration values.
const (
	DefaultLinger          = 8 * time.Second
	DefaultRecordTimeout   = 2 * time.Second
	DefaultImageTimeout    = 5 * time.Second
	DefaultTooltipMargin   = 8.0
	DefaultTooltipWidth    = 200.0
	DefaultTooltipHeight   = 120.0
	DefaultAppName         = "inappmessaging"
	DefaultRedisKey        = "iam:impressions"
	DefaultRefreshInterval = 2 * time.Second
	DefaultServiceName     = "iamd"
)

// Config is the configuration shared by iamd and iamctl.
// Loaded from ~/.config/inappmessaging/config.toml
type Config struct {
	Dispatch   DispatchConfig   `toml:"dispatch"`
	Display    DisplayConfig    `toml:"display"`
	Tooltip    TooltipConfig    `toml:"tooltip"`
	Permission PermissionConfig `toml:"permission"`
	Storage    StorageConfig    `toml:"storage"`
	Redis      RedisConfig      `toml:"redis"`
	Source     SourceConfig     `toml:"source"`
	Telemetry  TelemetryConfig  `toml:"telemetry"`
	Monitor    MonitorConfig    `toml:"monitor"`
}

// DispatchConfig contains queue settings.
type DispatchConfig struct {
	RecordTimeout Duration `toml:"record_timeout" env:"IAM_DISPATCH_RECORD_TIMEOUT"` // Budget for writing one history row
}

// DisplayConfig contains presenter settings.
type DisplayConfig struct {
	Linger               Duration `toml:"linger" env:"IAM_DISPLAY_LINGER"`                               // How long the headless presenter keeps a message up
	DesktopNotifications bool     `toml:"desktop_notifications" env:"IAM_DISPLAY_DESKTOP_NOTIFICATIONS"` // Render through org.freedesktop.Notifications
	AppName              string   `toml:"app_name" env:"IAM_DISPLAY_APP_NAME"`
}

// TooltipConfig contains tooltip positioning settings.
type TooltipConfig struct {
	Margin       float64  `toml:"margin" env:"IAM_TOOLTIP_MARGIN"` // Gap between anchor and tooltip
	Width        float64  `toml:"width" env:"IAM_TOOLTIP_WIDTH"`
	Height       float64  `toml:"height" env:"IAM_TOOLTIP_HEIGHT"`
	ImageTimeout Duration `toml:"image_timeout" env:"IAM_TOOLTIP_IMAGE_TIMEOUT"`
}

// PermissionConfig contains the local display rules.
type PermissionConfig struct {
	DenyCampaigns []string `toml:"deny_campaigns" env:"IAM_PERMISSION_DENY_CAMPAIGNS"`
	DenyTypes     []string `toml:"deny_types" env:"IAM_PERMISSION_DENY_TYPES"`       // modal, full, slide, tooltip
	DenyContexts  []string `toml:"deny_contexts" env:"IAM_PERMISSION_DENY_CONTEXTS"` // Title tags the host refuses
	PerformPing   bool     `toml:"perform_ping" env:"IAM_PERMISSION_PERFORM_PING"`
}

// StorageConfig contains on-disk locations. Empty means the XDG default.
type StorageConfig struct {
	CampaignCache string `toml:"campaign_cache" env:"IAM_STORAGE_CAMPAIGN_CACHE"`
	HistoryDB     string `toml:"history_db" env:"IAM_STORAGE_HISTORY_DB"`
}

// RedisConfig selects the shared impressions counter.
type RedisConfig struct {
	Enabled  bool   `toml:"enabled" env:"IAM_REDIS_ENABLED"`
	Addr     string `toml:"addr" env:"IAM_REDIS_ADDR"`
	Password string `toml:"password" env:"IAM_REDIS_PASSWORD"`
	DB       int    `toml:"db" env:"IAM_REDIS_DB"`
	Key      string `toml:"key" env:"IAM_REDIS_KEY"` // Hash holding impressions-left per campaign
}

// SourceConfig points at the campaign definitions file.
type SourceConfig struct {
	Path  string `toml:"path" env:"IAM_SOURCE_PATH"`
	Watch bool   `toml:"watch" env:"IAM_SOURCE_WATCH"`
}

// TelemetryConfig contains OpenTelemetry export settings.
type TelemetryConfig struct {
	Enabled     bool   `toml:"enabled" env:"IAM_OTEL_ENABLED"`
	Endpoint    string `toml:"endpoint" env:"IAM_OTEL_ENDPOINT"` // OTLP/HTTP collector URL, e.g. http://localhost:4318
	ServiceName string `toml:"service_name" env:"IAM_OTEL_SERVICE_NAME"`
}

// MonitorConfig contains iamctl monitor settings.
type MonitorConfig struct {
	RefreshInterval  Duration `toml:"refresh_interval" env:"IAM_MONITOR_REFRESH_INTERVAL"`
	ClipboardCommand string   `toml:"clipboard_command" env:"IAM_MONITOR_CLIPBOARD_COMMAND"` // Auto-detected when empty
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Dispatch: DispatchConfig{
			RecordTimeout: Duration(DefaultRecordTimeout),
		},
		Display: DisplayConfig{
			Linger:               Duration(DefaultLinger),
			DesktopNotifications: false,
			AppName:              DefaultAppName,
		},
		Tooltip: TooltipConfig{
			Margin:       DefaultTooltipMargin,
			Width:        DefaultTooltipWidth,
			Height:       DefaultTooltipHeight,
			ImageTimeout: Duration(DefaultImageTimeout),
		},
		Permission: PermissionConfig{},
		Storage:    StorageConfig{},
		Redis: RedisConfig{
			Addr: "localhost:6379",
			Key:  DefaultRedisKey,
		},
		Source: SourceConfig{
			Watch: true,
		},
		Telemetry: TelemetryConfig{
			ServiceName: DefaultServiceName,
		},
		Monitor: MonitorConfig{
			RefreshInterval: Duration(DefaultRefreshInterval),
		},
	}
}

// ConfigPath returns the path to the config file.
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config.
func ConfigPath() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, "inappmessaging", "config.toml")
}

// DataPath returns the path to the data directory.
// Uses XDG_DATA_HOME if set, otherwise ~/.local/share.
func DataPath() string {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		dataHome = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataHome, "inappmessaging")
}

// CampaignCachePath returns the campaign cache location.
func (c *Config) CampaignCachePath() string {
	if c.Storage.CampaignCache != "" {
		return expandPath(c.Storage.CampaignCache)
	}
	return filepath.Join(DataPath(), "campaigns.jsonl")
}

// HistoryDBPath returns the attempt history database location.
func (c *Config) HistoryDBPath() string {
	if c.Storage.HistoryDB != "" {
		return expandPath(c.Storage.HistoryDB)
	}
	return filepath.Join(DataPath(), "history.db")
}

// SourcePath returns the campaign definitions file.
func (c *Config) SourcePath() string {
	if c.Source.Path != "" {
		return expandPath(c.Source.Path)
	}
	return filepath.Join(filepath.Dir(ConfigPath()), "campaigns.yaml")
}

// LoadConfig loads configuration from the specified path.
// If path is empty, uses the default config path.
// Returns default config if file doesn't exist. Environment overrides are
// applied last and the result is validated.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		path = ConfigPath()
	}

	// Start with defaults, then overlay with file contents
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err == nil {
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Save writes the configuration to the specified path.
// Creates parent directories if needed.
func (c *Config) Save(path string) error {
	if path == "" {
		path = ConfigPath()
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Write atomically via temp file
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return os.Rename(tmpPath, path)
}

// ValidViewTypes returns the view type names accepted in deny_types.
func ValidViewTypes() []string {
	return []string{"modal", "full", "slide", "tooltip"}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Display.Linger < 0 {
		return fmt.Errorf("display.linger must not be negative, got %s", c.Display.Linger)
	}
	if c.Dispatch.RecordTimeout <= 0 {
		return fmt.Errorf("dispatch.record_timeout must be positive, got %s", c.Dispatch.RecordTimeout)
	}

	if c.Tooltip.Margin < 0 {
		return fmt.Errorf("tooltip.margin must not be negative, got %v", c.Tooltip.Margin)
	}
	if c.Tooltip.Width <= 0 || c.Tooltip.Height <= 0 {
		return fmt.Errorf("tooltip size must be positive, got %vx%v", c.Tooltip.Width, c.Tooltip.Height)
	}
	if c.Tooltip.ImageTimeout <= 0 {
		return fmt.Errorf("tooltip.image_timeout must be positive, got %s", c.Tooltip.ImageTimeout)
	}

	valid := make(map[string]bool)
	for _, v := range ValidViewTypes() {
		valid[v] = true
	}
	for _, v := range c.Permission.DenyTypes {
		if !valid[v] {
			return fmt.Errorf("invalid view type %q in permission.deny_types, must be one of: %v", v, ValidViewTypes())
		}
	}

	if c.Monitor.RefreshInterval <= 0 {
		return fmt.Errorf("monitor.refresh_interval must be positive, got %s", c.Monitor.RefreshInterval)
	}

	if c.Redis.Enabled && c.Redis.Addr == "" {
		return errors.New("redis.addr is required when redis is enabled")
	}
	if c.Telemetry.Enabled && c.Telemetry.Endpoint == "" {
		return errors.New("telemetry.endpoint is required when telemetry is enabled")
	}

	return nil
}

// EnsureDataDir creates the data directory if it doesn't exist.
func EnsureDataDir() error {
	path := DataPath()
	if path == "" {
		return errors.New("unable to determine data directory")
	}
	return os.MkdirAll(path, 0755)
}

// expandPath expands ~ to the user's home directory.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
