// Package permission implements the local display rules consulted before
// every campaign is shown.
package permission

import (
	"log/slog"
	"slices"
	"sync"

	"github.com/Esakkiraja-Pothikannan/ios-inappmessaging/internal/config"
	"github.com/Esakkiraja-Pothikannan/ios-inappmessaging/internal/gate"
	"github.com/Esakkiraja-Pothikannan/ios-inappmessaging/internal/model"
)

// Rules denies campaigns by id, view type or context and asks the host to refresh its data
// when configured. Rules can be swapped at runtime with Update.
type Rules struct {
	mu          sync.RWMutex
	denyIDs     map[string]bool
	denyTypes   map[model.ViewType]bool
	denyCtx     map[string]bool
	performPing bool

	logger *slog.Logger
}

// NewRules creates Rules from the permission section of the config.
func NewRules(cfg config.PermissionConfig, logger *slog.Logger) *Rules {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Rules{logger: logger}
	r.Update(cfg)
	return r
}

// Update replaces the rules.
func (r *Rules) Update(cfg config.PermissionConfig) {
	denyIDs := make(map[string]bool, len(cfg.DenyCampaigns))
	for _, id := range cfg.DenyCampaigns {
		denyIDs[id] = true
	}
	denyTypes := make(map[model.ViewType]bool, len(cfg.DenyTypes))
	for _, t := range cfg.DenyTypes {
		denyTypes[model.ViewType(t)] = true
	}

	denyCtx := make(map[string]bool, len(cfg.DenyContexts))
	for _, c := range cfg.DenyContexts {
		denyCtx[c] = true
	}

	r.mu.Lock()
	r.denyIDs = denyIDs
	r.denyTypes = denyTypes
	r.denyCtx = denyCtx
	r.performPing = cfg.PerformPing
	r.mu.Unlock()

	r.logger.Debug("permission rules updated",
		"deny_campaigns", len(denyIDs),
		"deny_types", len(denyTypes),
		"deny_contexts", len(denyCtx),
		"perform_ping", cfg.PerformPing)
}

// DeniedTypes returns the denied view types, sorted.
func (r *Rules) DeniedTypes() []model.ViewType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.ViewType, 0, len(r.denyTypes))
	for t := range r.denyTypes {
		out = append(out, t)
	}
	slices.Sort(out)
	return out
}

// CheckPermission implements gate.PermissionService. Campaign data carries
// no id; id rules are applied when campaigns are enqueued, through Denied.
func (r *Rules) CheckPermission(data model.CampaignData) gate.PermissionResponse {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return gate.PermissionResponse{
		Display:     !r.denyTypes[data.Type],
		PerformPing: r.performPing,
	}
}

// Denied reports whether the campaign id is on the deny list.
func (r *Rules) Denied(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.denyIDs[id]
}

// AllowsContexts reports whether none of the contexts is denied.
func (r *Rules) AllowsContexts(contexts []string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range contexts {
		if r.denyCtx[c] {
			return false
		}
	}
	return true
}
