package core

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Esakkiraja-Pothikannan/ios-inappmessaging/internal/model"
)

// SortField represents a field to sort by.
type SortField string

const (
	SortByTime     SortField = "time"
	SortByCampaign SortField = "campaign"
	SortByReason   SortField = "reason"
)

// SortOrder represents ascending or descending order.
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// SortOptions specifies sorting criteria.
type SortOptions struct {
	Field SortField
	Order SortOrder
}

// DefaultSortOptions returns default sort options (newest first).
func DefaultSortOptions() SortOptions {
	return SortOptions{
		Field: SortByTime,
		Order: SortDesc,
	}
}

// Sort sorts attempts in place. Ties keep their relative order.
func Sort(attempts []model.Attempt, opts SortOptions) {
	if len(attempts) == 0 {
		return
	}

	less := func(i, j int) bool {
		switch opts.Field {
		case SortByCampaign:
			return strings.ToLower(attempts[i].CampaignID) < strings.ToLower(attempts[j].CampaignID)
		case SortByReason:
			return attempts[i].Reason < attempts[j].Reason
		default:
			return attempts[i].CreatedAt.Before(attempts[j].CreatedAt)
		}
	}

	sort.SliceStable(attempts, func(i, j int) bool {
		if opts.Order == SortDesc {
			return less(j, i)
		}
		return less(i, j)
	})
}

// ParseSortField parses a sort field string.
func ParseSortField(s string) (SortField, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "time", "timestamp", "t", "":
		return SortByTime, nil
	case "campaign", "id", "c":
		return SortByCampaign, nil
	case "reason", "outcome", "r":
		return SortByReason, nil
	default:
		return "", fmt.Errorf("invalid sort field: %s (use time, campaign or reason)", s)
	}
}

// ParseSortOrder parses a sort order string.
func ParseSortOrder(s string) (SortOrder, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "asc", "ascending", "a":
		return SortAsc, nil
	case "desc", "descending", "d", "":
		return SortDesc, nil
	default:
		return "", fmt.Errorf("invalid sort order: %s (use asc or desc)", s)
	}
}
