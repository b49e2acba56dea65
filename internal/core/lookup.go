package core

import (
	"slices"
	"strings"

	"github.com/Esakkiraja-Pothikannan/ios-inappmessaging/internal/model"
)

// LookupByID finds an attempt by id, or nil.
func LookupByID(attempts []model.Attempt, id string) *model.Attempt {
	for i := range attempts {
		if attempts[i].ID == id {
			return &attempts[i]
		}
	}
	return nil
}

// LookupByIndex finds an attempt by its 1-based index, or nil.
func LookupByIndex(attempts []model.Attempt, index int) *model.Attempt {
	idx := index - 1
	if idx < 0 || idx >= len(attempts) {
		return nil
	}
	return &attempts[idx]
}

// Search returns attempts whose campaign id or detail contains term,
// ignoring case.
func Search(attempts []model.Attempt, term string) []model.Attempt {
	if term == "" {
		return attempts
	}

	term = strings.ToLower(term)
	var result []model.Attempt
	for _, a := range attempts {
		if strings.Contains(strings.ToLower(a.CampaignID), term) ||
			strings.Contains(strings.ToLower(a.Detail), term) {
			result = append(result, a)
		}
	}
	return result
}

// UniqueCampaigns returns the sorted campaign ids that appear in attempts.
func UniqueCampaigns(attempts []model.Attempt) []string {
	seen := make(map[string]bool)
	var ids []string
	for _, a := range attempts {
		if a.CampaignID != "" && !seen[a.CampaignID] {
			seen[a.CampaignID] = true
			ids = append(ids, a.CampaignID)
		}
	}
	slices.Sort(ids)
	return ids
}
