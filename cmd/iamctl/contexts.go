package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Esakkiraja-Pothikannan/ios-inappmessaging/internal/model"
	"github.com/Esakkiraja-Pothikannan/ios-inappmessaging/internal/permission"
)

var contextsOpts struct {
	tooltip bool
}

var contextsCmd = &cobra.Command{
	Use:   "contexts <title>",
	Short: "Show the contexts parsed from a campaign title",
	Long: `Show the bracketed contexts of a campaign title, the plain title, and
whether the configured deny_contexts rule lets the host show it.

Tooltip titles start with a marker tag that is not a context; pass --tooltip
to drop it.

Examples:
  iamctl contexts "[onboarding][promo] Welcome"
  iamctl contexts --tooltip "[Tooltip][checkout] Tap to pay"`,
	Args: cobra.ExactArgs(1),
	RunE: runContexts,
}

func init() {
	rootCmd.AddCommand(contextsCmd)

	contextsCmd.Flags().BoolVar(&contextsOpts.tooltip, "tooltip", false,
		"Treat the first tag as the tooltip marker")
}

func runContexts(cmd *cobra.Command, args []string) error {
	title := args[0]

	contexts := model.ParseContexts(title)
	if contextsOpts.tooltip {
		contexts = model.TooltipContexts(title)
	}

	rules := permission.NewRules(cfg.Permission, logger)

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "title:    %s\n", model.StripContexts(title))
	if len(contexts) == 0 {
		fmt.Fprintln(w, "contexts: (none, the host is not asked)")
		return nil
	}
	fmt.Fprintf(w, "contexts: %s\n", strings.Join(contexts, ", "))
	if rules.AllowsContexts(contexts) {
		fmt.Fprintln(w, "allowed:  yes")
	} else {
		fmt.Fprintln(w, "allowed:  no (denied by permission.deny_contexts)")
	}
	return nil
}
