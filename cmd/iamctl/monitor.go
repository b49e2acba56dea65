package main

import (
	"github.com/spf13/cobra"

	"github.com/Esakkiraja-Pothikannan/ios-inappmessaging/internal/tui"
)

var monitorOpts struct {
	limit int
}

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Launch the interactive attempt monitor",
	Long: `Launch the terminal monitor for iamd's display attempts.

The monitor refreshes every monitor.refresh_interval and provides:
  - Scrollable list of attempts, newest first, colored by outcome
  - Outcome and kind filters, and live search
  - Detail view with the campaign definition and impressions left
  - Copy to clipboard support

Key bindings:
  j/k, ↑/↓    Navigate list
  enter       View attempt details
  f / t       Cycle outcome / kind filter
  /           Search
  c           Copy campaign id
  r           Refresh now
  ?           Show help
  q           Quit`,
	Args: cobra.NoArgs,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)

	monitorCmd.Flags().IntVarP(&monitorOpts.limit, "limit", "n", 500,
		"Maximum number of attempts to load")
}

func runMonitor(cmd *cobra.Command, args []string) error {
	h, err := openHistory()
	if err != nil {
		return err
	}
	defer h.Close()

	src := &tui.HistorySource{History: h, Limit: monitorOpts.limit}
	if cache, err := openCampaignCache(); err != nil {
		logger.Warn("campaign cache unavailable", "error", err)
	} else {
		defer cache.Close()
		src.Campaigns = cache
	}

	return tui.Run(tui.RunOptions{
		Config: cfg,
		Source: src,
	})
}
