// Package model defines the core data structures for in-app messaging.
package model

import (
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
)

// ViewType is the presentation style of a campaign.
type ViewType string

const (
	ViewTypeModal   ViewType = "modal"
	ViewTypeFull    ViewType = "full"
	ViewTypeSlide   ViewType = "slide"
	ViewTypeTooltip ViewType = "tooltip"
)

// ValidViewTypes returns all valid view types.
func ValidViewTypes() []ViewType {
	return []ViewType{ViewTypeModal, ViewTypeFull, ViewTypeSlide, ViewTypeTooltip}
}

// Valid reports whether v is a known view type.
func (v ViewType) Valid() bool {
	for _, t := range ValidViewTypes() {
		if v == t {
			return true
		}
	}
	return false
}

// Placement is where a tooltip sits relative to its anchor.
type Placement string

const (
	PlacementTopLeft      Placement = "top-left"
	PlacementTopCenter    Placement = "top-center"
	PlacementTopRight     Placement = "top-right"
	PlacementBottomLeft   Placement = "bottom-left"
	PlacementBottomCenter Placement = "bottom-center"
	PlacementBottomRight  Placement = "bottom-right"
	PlacementLeft         Placement = "left"
	PlacementRight        Placement = "right"
)

// ValidPlacements returns all valid placement values.
func ValidPlacements() []Placement {
	return []Placement{
		PlacementTopLeft,
		PlacementTopCenter,
		PlacementTopRight,
		PlacementBottomLeft,
		PlacementBottomCenter,
		PlacementBottomRight,
		PlacementLeft,
		PlacementRight,
	}
}

// Valid reports whether p is a known placement.
func (p Placement) Valid() bool {
	for _, v := range ValidPlacements() {
		if p == v {
			return true
		}
	}
	return false
}

// Campaign is one in-app message definition plus its local bookkeeping.
// Campaigns are values; identity is the ID.
type Campaign struct {
	ID              string       `json:"id" yaml:"id"`
	Data            CampaignData `json:"data" yaml:"data"`
	ImpressionsLeft int          `json:"impressions_left" yaml:"impressions_left"`
	IsOptedOut      bool         `json:"is_opted_out,omitempty" yaml:"opted_out,omitempty"`
}

// CampaignData is the server-provided payload of a campaign.
type CampaignData struct {
	Type           ViewType     `json:"type" yaml:"type"`
	MaxImpressions int          `json:"max_impressions" yaml:"max_impressions"`
	IsTest         bool         `json:"is_test,omitempty" yaml:"is_test,omitempty"`
	Delay          int          `json:"delay,omitempty" yaml:"delay,omitempty"` // Milliseconds before the next queued campaign
	Title          string       `json:"title" yaml:"title"`
	Header         string       `json:"header,omitempty" yaml:"header,omitempty"`
	Body           string       `json:"body,omitempty" yaml:"body,omitempty"`
	ImageURL       string       `json:"image_url,omitempty" yaml:"image_url,omitempty"`
	Tooltip        *TooltipData `json:"tooltip,omitempty" yaml:"tooltip,omitempty"`
}

// TooltipData describes where and how a tooltip campaign is attached.
type TooltipData struct {
	UIElementID   string    `json:"ui_element" yaml:"ui_element"`
	Position      Placement `json:"position" yaml:"position"`
	AutoDisappear int       `json:"auto_disappear,omitempty" yaml:"auto_disappear,omitempty"` // Seconds after becoming visible, 0 = never
	RedirectURL   string    `json:"redirect_url,omitempty" yaml:"redirect_url,omitempty"`
	Width         float64   `json:"width,omitempty" yaml:"width,omitempty"`
	Height        float64   `json:"height,omitempty" yaml:"height,omitempty"`
}

// Validation errors.
var (
	ErrEmptyID          = errors.New("campaign id cannot be empty")
	ErrInvalidViewType  = errors.New("view type must be modal, full, slide or tooltip")
	ErrNegativeDelay    = errors.New("delay cannot be negative")
	ErrNegativeMax      = errors.New("max_impressions cannot be negative")
	ErrMissingTooltip   = errors.New("tooltip campaigns require tooltip data")
	ErrEmptyUIElement   = errors.New("tooltip ui_element cannot be empty")
	ErrInvalidPlacement = errors.New("tooltip position is not a valid placement")
)

// Validate checks that the campaign is displayable.
func (c *Campaign) Validate() error {
	if c.ID == "" {
		return ErrEmptyID
	}
	if !c.Data.Type.Valid() {
		return ErrInvalidViewType
	}
	if c.Data.Delay < 0 {
		return ErrNegativeDelay
	}
	if c.Data.MaxImpressions < 0 {
		return ErrNegativeMax
	}
	if c.Data.Type == ViewTypeTooltip {
		if c.Data.Tooltip == nil {
			return ErrMissingTooltip
		}
		if c.Data.Tooltip.UIElementID == "" {
			return ErrEmptyUIElement
		}
		if !c.Data.Tooltip.Position.Valid() {
			return ErrInvalidPlacement
		}
	}
	return nil
}

// IsTooltip reports whether the campaign is presented by the tooltip positioner.
func (c *Campaign) IsTooltip() bool {
	return c.Data.Type == ViewTypeTooltip && c.Data.Tooltip != nil
}

// Exhausted reports whether a non-test campaign has no impressions left.
func (c *Campaign) Exhausted() bool {
	return !c.Data.IsTest && c.ImpressionsLeft <= 0
}

// Contexts returns the bracketed tags of the campaign title.
func (c *Campaign) Contexts() []string {
	return ParseContexts(c.Data.Title)
}

// DelayDuration returns Delay as a time.Duration.
func (d *CampaignData) DelayDuration() time.Duration {
	return time.Duration(d.Delay) * time.Millisecond
}

// NewAttemptID returns a ULID identifying one display attempt.
func NewAttemptID() (string, error) {
	id, err := ulid.New(ulid.Timestamp(time.Now()), rand.Reader)
	if err != nil {
		return "", fmt.Errorf("failed to generate ULID: %w", err)
	}
	return id.String(), nil
}
