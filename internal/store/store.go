// Package store provides the campaign repository: the synced campaign list
// and the impressions-left bookkeeping the dispatcher relies on.
package store

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Esakkiraja-Pothikannan/ios-inappmessaging/internal/model"
)

// ChangeType indicates the type of store change.
type ChangeType int

const (
	// ChangeTypeSync indicates the campaign list was replaced.
	ChangeTypeSync ChangeType = iota
	// ChangeTypeImpressions indicates an impressions-left value changed.
	ChangeTypeImpressions
	// ChangeTypeOptOut indicates a campaign was opted out.
	ChangeTypeOptOut
	// ChangeTypeClear indicates all campaigns were cleared.
	ChangeTypeClear
)

// ChangeEvent signals store content changes.
type ChangeEvent struct {
	Type       ChangeType
	CampaignID string // Empty for list-wide changes
	Count      int
}

// Options configures a Store.
type Options struct {
	Counter     Counter       // Defaults to a MemoryCounter
	Persistence Persistence   // Optional campaign cache
	Timeout     time.Duration // Budget for one counter call, default 2s
	Logger      *slog.Logger
}

// Store manages the campaign list with thread-safe operations.
type Store struct {
	mu        sync.RWMutex
	campaigns []model.Campaign
	index     map[string]int // campaign id -> slice index

	counter     Counter
	persistence Persistence
	timeout     time.Duration
	logger      *slog.Logger

	subscribers []chan ChangeEvent
	closed      bool
}

// NewStore creates a new Store.
func NewStore(opts Options) *Store {
	if opts.Counter == nil {
		opts.Counter = NewMemoryCounter()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 2 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Store{
		campaigns:   make([]model.Campaign, 0),
		index:       make(map[string]int),
		counter:     opts.Counter,
		persistence: opts.Persistence,
		timeout:     opts.Timeout,
		logger:      opts.Logger,
	}
}

// Sync replaces the campaign list. Known campaigns keep their
// impressions-left and opt-out state; new ones start from the shared counter
// if it has a value, otherwise from MaxImpressions.
func (s *Store) Sync(campaigns []model.Campaign) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	ctx, cancel := s.context()
	defer cancel()

	next := make([]model.Campaign, 0, len(campaigns))
	index := make(map[string]int, len(campaigns))
	for _, c := range campaigns {
		if _, dup := index[c.ID]; dup {
			s.logger.Warn("duplicate campaign in sync", "campaign_id", c.ID)
			continue
		}

		if i, ok := s.index[c.ID]; ok {
			prev := s.campaigns[i]
			c.ImpressionsLeft = prev.ImpressionsLeft
			c.IsOptedOut = c.IsOptedOut || prev.IsOptedOut
		} else {
			n, found, err := s.counter.Get(ctx, c.ID)
			switch {
			case err != nil:
				s.logger.Warn("failed to read impressions counter", "campaign_id", c.ID, "error", err)
				c.ImpressionsLeft = c.Data.MaxImpressions
			case found:
				c.ImpressionsLeft = n
			default:
				c.ImpressionsLeft = c.Data.MaxImpressions
				if err := s.counter.Set(ctx, c.ID, c.ImpressionsLeft); err != nil {
					s.logger.Warn("failed to seed impressions counter", "campaign_id", c.ID, "error", err)
				}
			}
		}

		index[c.ID] = len(next)
		next = append(next, c)
	}

	s.campaigns = next
	s.index = index
	s.persistLocked()

	s.notifyChange(ChangeEvent{Type: ChangeTypeSync, Count: len(next)})
	return nil
}

// Hydrate loads the campaign cache into the store and the counter.
func (s *Store) Hydrate() error {
	if s.persistence == nil {
		return nil
	}

	campaigns, err := s.persistence.Load()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	ctx, cancel := s.context()
	defer cancel()

	s.campaigns = make([]model.Campaign, 0, len(campaigns))
	s.index = make(map[string]int, len(campaigns))
	for _, c := range campaigns {
		if _, dup := s.index[c.ID]; dup {
			continue
		}
		if n, found, err := s.counter.Get(ctx, c.ID); err == nil && found {
			c.ImpressionsLeft = n
		} else if err := s.counter.Set(ctx, c.ID, c.ImpressionsLeft); err != nil {
			s.logger.Warn("failed to seed impressions counter", "campaign_id", c.ID, "error", err)
		}
		s.index[c.ID] = len(s.campaigns)
		s.campaigns = append(s.campaigns, c)
	}

	s.notifyChange(ChangeEvent{Type: ChangeTypeSync, Count: len(s.campaigns)})
	return nil
}

// List returns a copy of all campaigns in sync order.
func (s *Store) List() []model.Campaign {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Campaign, len(s.campaigns))
	copy(out, s.campaigns)
	return out
}

// Count returns the number of campaigns.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.campaigns)
}

// Get returns a copy of the campaign with the given id, or nil.
func (s *Store) Get(id string) *model.Campaign {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.index[id]
	if !ok {
		return nil
	}
	c := s.campaigns[i]
	return &c
}

// DecrementImpressionsLeft lowers impressions-left by one, never below zero.
func (s *Store) DecrementImpressionsLeft(id string) *model.Campaign {
	return s.addImpressions(id, -1)
}

// IncrementImpressionsLeft raises impressions-left by one.
func (s *Store) IncrementImpressionsLeft(id string) *model.Campaign {
	return s.addImpressions(id, 1)
}

func (s *Store) addImpressions(id string, delta int) *model.Campaign {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	i, ok := s.index[id]
	if !ok {
		s.logger.Debug("impressions update for unknown campaign", "campaign_id", id)
		return nil
	}

	ctx, cancel := s.context()
	defer cancel()

	c := &s.campaigns[i]
	n, err := s.counter.Add(ctx, id, delta)
	if err != nil {
		// Keep the local view consistent even when the shared counter is down.
		s.logger.Warn("failed to update impressions counter", "campaign_id", id, "error", err)
		n = max(c.ImpressionsLeft+delta, 0)
	}
	c.ImpressionsLeft = n
	s.persistLocked()

	s.notifyChange(ChangeEvent{Type: ChangeTypeImpressions, CampaignID: id, Count: n})

	out := *c
	return &out
}

// OptOut marks a campaign as opted out. Returns false for unknown ids.
func (s *Store) OptOut(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[id]
	if s.closed || !ok {
		return false
	}
	s.campaigns[i].IsOptedOut = true
	s.persistLocked()

	s.notifyChange(ChangeEvent{Type: ChangeTypeOptOut, CampaignID: id, Count: 1})
	return true
}

// Clear removes all campaigns and their counters.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	ids := make([]string, 0, len(s.campaigns))
	for _, c := range s.campaigns {
		ids = append(ids, c.ID)
	}
	count := len(s.campaigns)
	s.campaigns = make([]model.Campaign, 0)
	s.index = make(map[string]int)

	ctx, cancel := s.context()
	defer cancel()
	if len(ids) > 0 {
		if err := s.counter.Delete(ctx, ids...); err != nil {
			return err
		}
	}

	if s.persistence != nil {
		if err := s.persistence.Clear(); err != nil {
			return err
		}
	}

	s.notifyChange(ChangeEvent{Type: ChangeTypeClear, Count: count})
	return nil
}

// Subscribe returns a channel that receives change events.
func (s *Store) Subscribe() <-chan ChangeEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan ChangeEvent, 10)
	s.subscribers = append(s.subscribers, ch)
	return ch
}

// Unsubscribe removes a subscriber channel and closes it.
func (s *Store) Unsubscribe(ch <-chan ChangeEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, sub := range s.subscribers {
		if sub == ch {
			s.subscribers = append(s.subscribers[:i], s.subscribers[i+1:]...)
			close(sub)
			return
		}
	}
}

// Close closes the store and its persistence.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	for _, ch := range s.subscribers {
		close(ch)
	}
	s.subscribers = nil

	if s.persistence != nil {
		return s.persistence.Close()
	}
	return nil
}

func (s *Store) context() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.timeout)
}

// persistLocked rewrites the cache. Callers hold s.mu.
func (s *Store) persistLocked() {
	if s.persistence == nil {
		return
	}
	if err := s.persistence.Rewrite(s.campaigns); err != nil {
		s.logger.Warn("failed to persist campaigns", "error", err)
	}
}

// notifyChange sends a change event to all subscribers (non-blocking).
func (s *Store) notifyChange(event ChangeEvent) {
	for _, ch := range s.subscribers {
		select {
		case ch <- event:
		default:
			// Channel full, skip
		}
	}
}

// Errors
var (
	ErrStoreClosed = storeError("store is closed")
)

type storeError string

func (e storeError) Error() string {
	return string(e)
}
