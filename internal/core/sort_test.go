package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Esakkiraja-Pothikannan/ios-inappmessaging/internal/model"
)

func TestSort(t *testing.T) {
	base := time.Unix(1_700_000_000, 0)
	attempts := func() []model.Attempt {
		return []model.Attempt{
			{ID: "1", CampaignID: "Promo", Reason: model.ReasonRejected, CreatedAt: base.Add(1 * time.Second)},
			{ID: "2", CampaignID: "welcome", Reason: model.ReasonDisplayed, CreatedAt: base.Add(3 * time.Second)},
			{ID: "3", CampaignID: "buy-tip", Reason: model.ReasonDisplayed, CreatedAt: base.Add(2 * time.Second)},
		}
	}

	tests := []struct {
		name string
		opts SortOptions
		want []string
	}{
		{"time desc", SortOptions{Field: SortByTime, Order: SortDesc}, []string{"2", "3", "1"}},
		{"time asc", SortOptions{Field: SortByTime, Order: SortAsc}, []string{"1", "3", "2"}},
		{"campaign asc ignores case", SortOptions{Field: SortByCampaign, Order: SortAsc}, []string{"3", "1", "2"}},
		{"reason asc is stable", SortOptions{Field: SortByReason, Order: SortAsc}, []string{"2", "3", "1"}},
		{"reason desc is stable", SortOptions{Field: SortByReason, Order: SortDesc}, []string{"1", "2", "3"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := attempts()
			Sort(a, tt.opts)
			assert.Equal(t, tt.want, ids(a))
		})
	}
}

func TestSort_Empty(t *testing.T) {
	var attempts []model.Attempt
	Sort(attempts, DefaultSortOptions())
	assert.Empty(t, attempts)
}

func TestDefaultSortOptions(t *testing.T) {
	opts := DefaultSortOptions()
	assert.Equal(t, SortByTime, opts.Field)
	assert.Equal(t, SortDesc, opts.Order)
}

func TestParseSortField(t *testing.T) {
	tests := []struct {
		input    string
		expected SortField
		hasError bool
	}{
		{"time", SortByTime, false},
		{"", SortByTime, false},
		{"campaign", SortByCampaign, false},
		{"c", SortByCampaign, false},
		{"outcome", SortByReason, false},
		{"urgency", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result, err := ParseSortField(tt.input)
			if tt.hasError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestParseSortOrder(t *testing.T) {
	tests := []struct {
		input    string
		expected SortOrder
		hasError bool
	}{
		{"asc", SortAsc, false},
		{"ascending", SortAsc, false},
		{"desc", SortDesc, false},
		{"", SortDesc, false},
		{"sideways", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result, err := ParseSortOrder(tt.input)
			if tt.hasError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result)
		})
	}
}
