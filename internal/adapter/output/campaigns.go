package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	"github.com/Esakkiraja-Pothikannan/ios-inappmessaging/internal/model"
)

// WriteCampaigns writes campaigns in the given format. Line and plain both
// produce an aligned table.
func WriteCampaigns(w io.Writer, format FormatType, campaigns []model.Campaign) error {
	if campaigns == nil {
		campaigns = []model.Campaign{}
	}

	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(campaigns)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(campaigns); err != nil {
			return err
		}
		return enc.Close()
	case FormatIDs:
		for _, c := range campaigns {
			if _, err := fmt.Fprintln(w, c.ID); err != nil {
				return err
			}
		}
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTYPE\tLEFT\tCONTEXTS\tTITLE")
	for i := range campaigns {
		c := &campaigns[i]
		left := fmt.Sprintf("%d/%d", c.ImpressionsLeft, c.Data.MaxImpressions)
		if c.IsOptedOut {
			left = "opted out"
		}
		contexts := strings.Join(c.Contexts(), ",")
		if contexts == "" {
			contexts = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			c.ID, c.Data.Type, left, contexts, sanitize(model.StripContexts(c.Data.Title)))
	}
	return tw.Flush()
}
