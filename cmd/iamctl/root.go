// Package main provides the iamctl operator CLI.
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Esakkiraja-Pothikannan/ios-inappmessaging/internal/config"
	"github.com/Esakkiraja-Pothikannan/ios-inappmessaging/internal/history"
	"github.com/Esakkiraja-Pothikannan/ios-inappmessaging/internal/store"
)

// Build-time variables (set via ldflags)
var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

// Global configuration and state
var (
	cfg        *config.Config
	globalOpts struct {
		verbose    bool
		configPath string
	}
	logger *slog.Logger
)

// errNoHistory is returned when iamd has not recorded anything yet.
var errNoHistory = errors.New("no attempt history found; has iamd run yet?")

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "iamctl",
	Short: "Operator CLI for the in-app messaging daemon",
	Long: `iamctl inspects the campaigns and display history of iamd.

It validates campaign definition files, shows how titles are split into
contexts, lists campaign state and browses the attempt history.

Running iamctl without a subcommand launches the interactive monitor.`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildTime),
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		setupLogger()

		var err error
		cfg, err = config.LoadConfig(globalOpts.configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMonitor(cmd, args)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&globalOpts.verbose, "verbose", "v", false,
		"Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&globalOpts.configPath, "config", "",
		"Path to config file (default: ~/.config/inappmessaging/config.toml)")
}

// setupLogger configures the global slog logger.
func setupLogger() {
	level := slog.LevelWarn
	if globalOpts.verbose {
		level = slog.LevelDebug
	}

	// Log to stderr so stdout is clean for output
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	logger = slog.New(handler)
	slog.SetDefault(logger)
}

// openHistory opens the attempt database iamd writes. It is never created
// here.
func openHistory() (*history.Store, error) {
	path := cfg.HistoryDBPath()
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil, errNoHistory
	}
	h, err := history.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}
	return h, nil
}

// openCampaignCache opens the campaign state cache for reading.
func openCampaignCache() (*store.JSONLPersistence, error) {
	p, err := store.NewJSONLPersistence(cfg.CampaignCachePath())
	if err != nil {
		return nil, fmt.Errorf("open campaign cache: %w", err)
	}
	return p, nil
}
