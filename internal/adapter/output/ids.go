package output

import (
	"fmt"
	"io"

	"github.com/Esakkiraja-Pothikannan/ios-inappmessaging/internal/model"
)

// IDsFormatter outputs the distinct campaign ids, one per line, in first
// seen order.
type IDsFormatter struct{}

// NewIDsFormatter creates a new IDs formatter.
func NewIDsFormatter() *IDsFormatter {
	return &IDsFormatter{}
}

// Format writes campaign ids to the writer.
func (f *IDsFormatter) Format(w io.Writer, attempts []model.Attempt) error {
	seen := make(map[string]bool, len(attempts))
	for _, a := range attempts {
		if seen[a.CampaignID] {
			continue
		}
		seen[a.CampaignID] = true
		if _, err := fmt.Fprintln(w, a.CampaignID); err != nil {
			return err
		}
	}
	return nil
}
