package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Esakkiraja-Pothikannan/ios-inappmessaging/internal/adapter/output"
	"github.com/Esakkiraja-Pothikannan/ios-inappmessaging/internal/model"
	"github.com/Esakkiraja-Pothikannan/ios-inappmessaging/internal/platform/redis"
	"github.com/Esakkiraja-Pothikannan/ios-inappmessaging/internal/source"
	"github.com/Esakkiraja-Pothikannan/ios-inappmessaging/internal/store"
)

var campaignsOpts struct {
	format string
}

var campaignsCmd = &cobra.Command{
	Use:   "campaigns",
	Short: "Inspect campaign definitions and state",
}

var validateCmd = &cobra.Command{
	Use:   "validate [path]",
	Short: "Validate a campaign definitions file",
	Long: `Validate a campaign definitions file and report every invalid entry.

Without a path the configured source file is checked. Use - to read stdin.

Examples:
  iamctl campaigns validate
  iamctl campaigns validate ./campaigns.yaml
  cat campaigns.yaml | iamctl campaigns validate -`,
	Args: cobra.MaximumNArgs(1),
	RunE: runValidate,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List campaigns with their impressions left",
	Long: `List the configured campaigns together with the local state iamd keeps:
impressions left and opt-out. When the shared Redis counter is enabled its
values take precedence over the local cache.

Examples:
  iamctl campaigns list
  iamctl campaigns list --format json`,
	Args: cobra.NoArgs,
	RunE: runList,
}

func init() {
	rootCmd.AddCommand(campaignsCmd)
	campaignsCmd.AddCommand(validateCmd, listCmd)

	listCmd.Flags().StringVarP(&campaignsOpts.format, "format", "f", "plain",
		"Output format (plain, json, yaml, ids)")
}

func runValidate(cmd *cobra.Command, args []string) error {
	path := cfg.SourcePath()
	if len(args) == 1 {
		path = args[0]
	}

	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return fmt.Errorf("read campaigns: %w", err)
	}

	campaigns, err := source.Parse(data)
	if err != nil {
		return reportInvalid(cmd.ErrOrStderr(), err)
	}

	var tooltips int
	for i := range campaigns {
		if campaigns[i].IsTooltip() {
			tooltips++
		}
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %d campaign(s) valid (%d tooltip)\n", path, len(campaigns), tooltips)
	return nil
}

// reportInvalid prints each invalid entry on its own line.
func reportInvalid(w io.Writer, err error) error {
	var joined interface{ Unwrap() []error }
	if !errors.As(err, &joined) {
		return err
	}
	errs := joined.Unwrap()
	for _, e := range errs {
		fmt.Fprintln(w, "  "+e.Error())
	}
	return fmt.Errorf("%d invalid campaign(s)", len(errs))
}

func runList(cmd *cobra.Command, args []string) error {
	definitions, err := source.LoadFile(cfg.SourcePath())
	if err != nil {
		return err
	}

	state := make(map[string]model.Campaign)
	cache, err := openCampaignCache()
	if err != nil {
		logger.Warn("campaign cache unavailable", "error", err)
	} else {
		cached, err := cache.Load()
		if err != nil {
			logger.Warn("failed to read campaign cache", "error", err)
		}
		for _, c := range cached {
			state[c.ID] = c
		}
		_ = cache.Close()
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
	defer cancel()
	counter, closeCounter := sharedCounter(ctx)
	defer closeCounter()

	campaigns := make([]model.Campaign, 0, len(definitions))
	for _, c := range definitions {
		c.ImpressionsLeft = c.Data.MaxImpressions
		if s, ok := state[c.ID]; ok {
			c.ImpressionsLeft = s.ImpressionsLeft
			c.IsOptedOut = s.IsOptedOut
		}
		if counter != nil {
			if n, found, err := counter.Get(ctx, c.ID); err == nil && found {
				c.ImpressionsLeft = n
			}
		}
		campaigns = append(campaigns, c)
	}

	return output.WriteCampaigns(cmd.OutOrStdout(), output.FormatType(campaignsOpts.format), campaigns)
}

// sharedCounter returns the Redis impressions counter when it is enabled
// and reachable. The returned func releases the connection.
func sharedCounter(ctx context.Context) (store.Counter, func()) {
	if !cfg.Redis.Enabled {
		return nil, func() {}
	}
	client, err := redis.NewClient(ctx, redis.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		logger.Warn("shared impressions counter unavailable", "addr", cfg.Redis.Addr, "error", err)
		return nil, func() {}
	}
	return redis.NewCounter(client, cfg.Redis.Key), func() { _ = client.Close() }
}
