package model

import "time"

// Reason explains how a display attempt ended.
type Reason string

const (
	ReasonDisplayed   Reason = "displayed"   // Shown to the user
	ReasonRejected    Reason = "rejected"    // Context policy said no
	ReasonUnavailable Reason = "unavailable" // Missing presenter, image or transport
	ReasonInterrupted Reason = "interrupted" // Torn down or shut down before being seen
	ReasonIneligible  Reason = "ineligible"  // Permission check said no
	ReasonSkipped     Reason = "skipped"     // Opted out or out of impressions
)

// Outcome is the single result of a presentation request.
type Outcome struct {
	Reason Reason
	Detail string
}

// Cancelled reports whether the campaign was not shown.
func (o Outcome) Cancelled() bool {
	return o.Reason != ReasonDisplayed
}

// AttemptKind distinguishes queue messages from tooltips.
type AttemptKind string

const (
	AttemptKindMessage AttemptKind = "message"
	AttemptKindTooltip AttemptKind = "tooltip"
)

// Attempt is one recorded display decision.
type Attempt struct {
	ID         string      `json:"id" yaml:"id"`
	CampaignID string      `json:"campaign_id" yaml:"campaign_id"`
	Kind       AttemptKind `json:"kind" yaml:"kind"`
	Reason     Reason      `json:"reason" yaml:"reason"`
	Detail     string      `json:"detail,omitempty" yaml:"detail,omitempty"`
	CreatedAt  time.Time   `json:"created_at" yaml:"created_at"`
}
