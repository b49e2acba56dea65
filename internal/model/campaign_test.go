package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validCampaign() Campaign {
	return Campaign{
		ID: "c-1",
		Data: CampaignData{
			Type:           ViewTypeModal,
			MaxImpressions: 3,
			Title:          "Spring sale",
		},
		ImpressionsLeft: 3,
	}
}

func TestCampaign_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Campaign)
		wantErr error
	}{
		{
			name:   "valid campaign",
			modify: func(c *Campaign) {},
		},
		{
			name:    "empty id",
			modify:  func(c *Campaign) { c.ID = "" },
			wantErr: ErrEmptyID,
		},
		{
			name:    "unknown view type",
			modify:  func(c *Campaign) { c.Data.Type = "banner" },
			wantErr: ErrInvalidViewType,
		},
		{
			name:    "negative delay",
			modify:  func(c *Campaign) { c.Data.Delay = -1 },
			wantErr: ErrNegativeDelay,
		},
		{
			name:    "negative max impressions",
			modify:  func(c *Campaign) { c.Data.MaxImpressions = -2 },
			wantErr: ErrNegativeMax,
		},
		{
			name:    "tooltip without data",
			modify:  func(c *Campaign) { c.Data.Type = ViewTypeTooltip },
			wantErr: ErrMissingTooltip,
		},
		{
			name: "tooltip without element",
			modify: func(c *Campaign) {
				c.Data.Type = ViewTypeTooltip
				c.Data.Tooltip = &TooltipData{Position: PlacementTopCenter}
			},
			wantErr: ErrEmptyUIElement,
		},
		{
			name: "tooltip with bad placement",
			modify: func(c *Campaign) {
				c.Data.Type = ViewTypeTooltip
				c.Data.Tooltip = &TooltipData{UIElementID: "buy", Position: "middle"}
			},
			wantErr: ErrInvalidPlacement,
		},
		{
			name: "valid tooltip",
			modify: func(c *Campaign) {
				c.Data.Type = ViewTypeTooltip
				c.Data.Tooltip = &TooltipData{UIElementID: "buy", Position: PlacementRight}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validCampaign()
			tt.modify(&c)
			err := c.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestCampaign_Exhausted(t *testing.T) {
	c := validCampaign()
	assert.False(t, c.Exhausted())

	c.ImpressionsLeft = 0
	assert.True(t, c.Exhausted())

	c.Data.IsTest = true
	assert.False(t, c.Exhausted(), "test campaigns are never exhausted")
}

func TestCampaign_IsTooltip(t *testing.T) {
	c := validCampaign()
	assert.False(t, c.IsTooltip())

	c.Data.Type = ViewTypeTooltip
	assert.False(t, c.IsTooltip(), "tooltip type without data")

	c.Data.Tooltip = &TooltipData{UIElementID: "cart"}
	assert.True(t, c.IsTooltip())
}

func TestCampaignData_DelayDuration(t *testing.T) {
	d := CampaignData{Delay: 1500}
	assert.Equal(t, 1500*time.Millisecond, d.DelayDuration())
}

func TestNewAttemptID(t *testing.T) {
	a, err := NewAttemptID()
	require.NoError(t, err)
	b, err := NewAttemptID()
	require.NoError(t, err)

	assert.Len(t, a, 26)
	assert.NotEqual(t, a, b)
}

func TestPlacement_Valid(t *testing.T) {
	for _, p := range ValidPlacements() {
		assert.True(t, p.Valid(), p)
	}
	assert.Len(t, ValidPlacements(), 8)
	assert.False(t, Placement("center").Valid())
}

func TestOutcome_Cancelled(t *testing.T) {
	assert.False(t, Outcome{Reason: ReasonDisplayed}.Cancelled())
	for _, r := range []Reason{ReasonRejected, ReasonUnavailable, ReasonInterrupted} {
		assert.True(t, Outcome{Reason: r}.Cancelled(), r)
	}
}
