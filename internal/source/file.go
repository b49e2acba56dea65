// Package source loads campaign definitions from a YAML file and watches it
// for changes.
package source

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/Esakkiraja-Pothikannan/ios-inappmessaging/internal/model"
)

// ErrDuplicateID is returned when two definitions share an id.
var ErrDuplicateID = errors.New("duplicate campaign id")

// File is the on-disk layout of the campaign definitions file.
//
//	campaigns:
//	  - id: welcome
//	    data:
//	      type: modal
//	      max_impressions: 3
//	      title: "[onboarding] Welcome"
type File struct {
	Campaigns []model.Campaign `yaml:"campaigns"`
}

// InvalidCampaignError reports one invalid definition.
type InvalidCampaignError struct {
	Index int    // Position in the file
	ID    string // May be empty
	Err   error
}

func (e *InvalidCampaignError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("campaign #%d: %v", e.Index, e.Err)
	}
	return fmt.Sprintf("campaign #%d (%s): %v", e.Index, e.ID, e.Err)
}

func (e *InvalidCampaignError) Unwrap() error {
	return e.Err
}

// LoadFile reads and validates a definitions file.
func LoadFile(path string) ([]model.Campaign, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read campaigns: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates definitions. Every invalid entry is reported;
// the campaigns are returned only when all of them are valid.
func Parse(data []byte) ([]model.Campaign, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse campaigns: %w", err)
	}

	var errs []error
	seen := make(map[string]bool, len(f.Campaigns))
	for i := range f.Campaigns {
		c := &f.Campaigns[i]
		// Impressions and opt-out are local state, never definitions.
		c.ImpressionsLeft = 0
		c.IsOptedOut = false

		if err := c.Validate(); err != nil {
			errs = append(errs, &InvalidCampaignError{Index: i, ID: c.ID, Err: err})
			continue
		}
		if seen[c.ID] {
			errs = append(errs, &InvalidCampaignError{Index: i, ID: c.ID, Err: ErrDuplicateID})
			continue
		}
		seen[c.ID] = true
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return f.Campaigns, nil
}

// Marshal encodes campaigns in the definitions file layout.
func Marshal(campaigns []model.Campaign) ([]byte, error) {
	defs := make([]model.Campaign, len(campaigns))
	for i, c := range campaigns {
		c.ImpressionsLeft = 0
		c.IsOptedOut = false
		defs[i] = c
	}
	return yaml.Marshal(File{Campaigns: defs})
}
