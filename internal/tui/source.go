package tui

import (
	"context"
	"errors"

	"github.com/Esakkiraja-Pothikannan/ios-inappmessaging/internal/history"
	"github.com/Esakkiraja-Pothikannan/ios-inappmessaging/internal/model"
)

// Snapshot is everything the monitor shows at one refresh.
type Snapshot struct {
	Attempts  []model.Attempt
	Campaigns []model.Campaign
	Counts    map[model.Reason]int
}

// Source supplies monitor snapshots.
type Source interface {
	Snapshot(ctx context.Context) (Snapshot, error)
}

// CampaignLoader reads the campaign cache iamd writes.
type CampaignLoader interface {
	Load() ([]model.Campaign, error)
}

// HistorySource reads attempts from the history database and campaign state
// from the campaign cache. Either may be nil.
type HistorySource struct {
	History   *history.Store
	Campaigns CampaignLoader
	Limit     int
}

// Snapshot implements Source.
func (s *HistorySource) Snapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	var errs []error

	if s.History != nil {
		attempts, err := s.History.ListAttempts(ctx, history.Filter{Limit: s.Limit})
		if err != nil {
			errs = append(errs, err)
		}
		snap.Attempts = attempts

		counts, err := s.History.OutcomeCounts(ctx, "")
		if err != nil {
			errs = append(errs, err)
		}
		snap.Counts = counts
	}

	if s.Campaigns != nil {
		campaigns, err := s.Campaigns.Load()
		if err != nil {
			errs = append(errs, err)
		}
		snap.Campaigns = campaigns
	}

	return snap, errors.Join(errs...)
}
