package main

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/Esakkiraja-Pothikannan/ios-inappmessaging/internal/adapter/output"
	"github.com/Esakkiraja-Pothikannan/ios-inappmessaging/internal/core"
	"github.com/Esakkiraja-Pothikannan/ios-inappmessaging/internal/history"
	"github.com/Esakkiraja-Pothikannan/ios-inappmessaging/internal/model"
)

// historyFetchLimit bounds the rows read before client-side filtering.
const historyFetchLimit = 5000

var historyOpts struct {
	// Filter options
	campaign string
	since    string
	kind     string
	reason   string
	filter   string
	search   string
	limit    int

	// Sort options
	sortBy    string
	sortOrder string

	// Output options
	format   string
	field    string
	template string
	counts   bool
}

var historyCmd = &cobra.Command{
	Use:   "history [index|id]",
	Short: "Query the display attempt history",
	Long: `Query the display attempts iamd recorded and output them in various formats.

With an index (1-based, after filtering and sorting) or attempt ID argument,
outputs that specific attempt.

Filter expressions combine field conditions with commas:
  campaign=welcome,reason!=displayed
  kind=tooltip,time>1h
  detail~opted

Examples:
  # Everything from the last day
  iamctl history --since 1d

  # Rejections of one campaign, as JSON
  iamctl history --campaign promo --reason rejected --format json

  # Outcome totals
  iamctl history --counts

  # Detail of the newest attempt
  iamctl history 1 --field detail`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHistory,
}

var historyPruneOpts struct {
	olderThan string
}

var historyPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove old attempts from history",
	Long: `Remove old display attempts from the history database.

Examples:
  # Remove attempts older than 30 days
  iamctl history prune --older-than 30d`,
	Args: cobra.NoArgs,
	RunE: runHistoryPrune,
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyPruneCmd)

	// Filter flags
	historyCmd.Flags().StringVar(&historyOpts.campaign, "campaign", "",
		"Filter by campaign id (exact match)")
	historyCmd.Flags().StringVar(&historyOpts.since, "since", "",
		"Show attempts from the last duration (e.g., 1h, 7d, 1w)")
	historyCmd.Flags().StringVar(&historyOpts.kind, "kind", "",
		"Filter by kind (message, tooltip)")
	historyCmd.Flags().StringVar(&historyOpts.reason, "reason", "",
		"Filter by outcome (displayed, skipped, rejected, ineligible, interrupted, unavailable)")
	historyCmd.Flags().StringVar(&historyOpts.filter, "filter", "",
		"Filter expression (e.g., \"kind=tooltip,time>1h\")")
	historyCmd.Flags().StringVarP(&historyOpts.search, "search", "s", "",
		"Search in campaign id and detail")
	historyCmd.Flags().IntVarP(&historyOpts.limit, "limit", "n", 0,
		"Maximum number of attempts to show (0=unlimited)")

	// Sort flags
	historyCmd.Flags().StringVar(&historyOpts.sortBy, "sort", "time",
		"Sort by field (time, campaign, reason)")
	historyCmd.Flags().StringVar(&historyOpts.sortOrder, "order", "desc",
		"Sort order (asc, desc)")

	// Output flags
	historyCmd.Flags().StringVarP(&historyOpts.format, "format", "f", "line",
		"Output format (line, plain, json, yaml, ids)")
	historyCmd.Flags().StringVar(&historyOpts.field, "field", "",
		"Output single field from an attempt (id, campaign, kind, reason, detail, time)")
	historyCmd.Flags().StringVar(&historyOpts.template, "template", "",
		"Custom Go template for line output")
	historyCmd.Flags().BoolVar(&historyOpts.counts, "counts", false,
		"Print attempt totals per outcome instead of attempts")

	historyPruneCmd.Flags().StringVar(&historyPruneOpts.olderThan, "older-than", "",
		"Remove attempts older than this duration (e.g., 48h, 7d, 1w)")
}

func runHistory(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
	defer cancel()

	h, err := openHistory()
	if err != nil {
		return err
	}
	defer h.Close()

	if historyOpts.counts {
		return printCounts(ctx, cmd, h)
	}

	opts, err := historyFilterOptions()
	if err != nil {
		return err
	}

	attempts, err := h.ListAttempts(ctx, history.Filter{
		CampaignID: opts.CampaignID,
		Limit:      historyFetchLimit,
	})
	if err != nil {
		return err
	}
	logger.Debug("loaded attempts", "count", len(attempts))

	// Limit applies after every other filter.
	limit := opts.Limit
	opts.Limit = 0
	attempts = core.Filter(attempts, opts)

	if historyOpts.filter != "" {
		expr, err := core.ParseFilter(historyOpts.filter)
		if err != nil {
			return fmt.Errorf("invalid filter: %w", err)
		}
		attempts = core.FilterWithExpr(attempts, expr)
	}
	if historyOpts.search != "" {
		attempts = core.Search(attempts, historyOpts.search)
	}

	if err := sortAttempts(attempts); err != nil {
		return err
	}
	if limit > 0 && len(attempts) > limit {
		attempts = attempts[:limit]
	}

	if len(args) == 1 {
		return outputSingle(cmd, attempts, args[0])
	}

	fopts := output.DefaultFormatterOptions()
	fopts.Template = historyOpts.template
	formatter := output.NewFormatter(output.FormatType(historyOpts.format), fopts)
	return formatter.Format(cmd.OutOrStdout(), attempts)
}

// historyFilterOptions converts the filter flags.
func historyFilterOptions() (core.FilterOptions, error) {
	opts := core.FilterOptions{
		CampaignID: historyOpts.campaign,
		Limit:      historyOpts.limit,
	}

	if historyOpts.since != "" {
		d, err := core.ParseDuration(historyOpts.since)
		if err != nil {
			return opts, fmt.Errorf("invalid --since: %w", err)
		}
		opts.Since = d
	}
	if historyOpts.kind != "" {
		k, err := core.ParseKind(historyOpts.kind)
		if err != nil {
			return opts, err
		}
		opts.Kind = k
	}
	if historyOpts.reason != "" {
		r, err := core.ParseReason(historyOpts.reason)
		if err != nil {
			return opts, err
		}
		opts.Reason = r
	}
	return opts, nil
}

func sortAttempts(attempts []model.Attempt) error {
	field, err := core.ParseSortField(historyOpts.sortBy)
	if err != nil {
		return err
	}
	order, err := core.ParseSortOrder(historyOpts.sortOrder)
	if err != nil {
		return err
	}
	core.Sort(attempts, core.SortOptions{Field: field, Order: order})
	return nil
}

// outputSingle prints the attempt named by a 1-based index or an id.
func outputSingle(cmd *cobra.Command, attempts []model.Attempt, arg string) error {
	var a *model.Attempt
	if idx, err := strconv.Atoi(arg); err == nil && idx > 0 {
		a = core.LookupByIndex(attempts, idx)
	} else {
		a = core.LookupByID(attempts, arg)
	}
	if a == nil {
		return fmt.Errorf("attempt not found: %s", arg)
	}

	w := cmd.OutOrStdout()
	if historyOpts.field != "" {
		_, err := fmt.Fprintln(w, output.FormatField(a, historyOpts.field))
		return err
	}
	if output.FormatType(historyOpts.format) == output.FormatJSON {
		return output.NewJSONFormatter(output.DefaultFormatterOptions()).FormatSingle(w, a)
	}
	return output.NewPlainFormatter(output.DefaultFormatterOptions()).Format(w, []model.Attempt{*a})
}

func printCounts(ctx context.Context, cmd *cobra.Command, h *history.Store) error {
	counts, err := h.OutcomeCounts(ctx, historyOpts.campaign)
	if err != nil {
		return err
	}

	reasons := make([]model.Reason, 0, len(counts))
	var total int
	for r, n := range counts {
		reasons = append(reasons, r)
		total += n
	}
	slices.Sort(reasons)

	w := cmd.OutOrStdout()
	for _, r := range reasons {
		fmt.Fprintf(w, "%-12s %s\n", r, humanize.Comma(int64(counts[r])))
	}
	fmt.Fprintf(w, "%-12s %s\n", "total", humanize.Comma(int64(total)))
	return nil
}

func runHistoryPrune(cmd *cobra.Command, args []string) error {
	if historyPruneOpts.olderThan == "" {
		return fmt.Errorf("specify --older-than")
	}
	d, err := core.ParseDuration(historyPruneOpts.olderThan)
	if err != nil {
		return fmt.Errorf("invalid duration: %w", err)
	}
	if d <= 0 {
		return fmt.Errorf("--older-than must be positive")
	}

	h, err := openHistory()
	if err != nil {
		if errors.Is(err, errNoHistory) {
			fmt.Fprintln(cmd.OutOrStdout(), "No attempts in history")
			return nil
		}
		return err
	}
	defer h.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	removed, err := h.Prune(ctx, time.Now().Add(-d))
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Removed %s attempt(s)\n", humanize.Comma(removed))
	return nil
}
