// Package gate holds the eligibility and confirmation rules shared by the
// dispatch queue and the tooltip positioner.
package gate

import (
	"log/slog"
	"sync"

	"github.com/Esakkiraja-Pothikannan/ios-inappmessaging/internal/model"
)

// PermissionResponse is the verdict of a permission check.
type PermissionResponse struct {
	Display     bool // Campaign may be shown
	PerformPing bool // Host should refresh campaign data
}

// PermissionService decides whether a campaign may be displayed now.
// Implementations must be synchronous and side-effect free.
type PermissionService interface {
	CheckPermission(data model.CampaignData) PermissionResponse
}

// PermissionFunc adapts a function to PermissionService.
type PermissionFunc func(data model.CampaignData) PermissionResponse

// CheckPermission calls f(data).
func (f PermissionFunc) CheckPermission(data model.CampaignData) PermissionResponse {
	return f(data)
}

// Delegate is the host application's hook into display decisions.
type Delegate interface {
	// ShouldShow is asked before a campaign with contexts is displayed.
	ShouldShow(title string, contexts []string) bool
	// PerformPing asks the host to refresh campaign data.
	PerformPing()
}

// Repository tracks impressions-left per campaign. Methods return the
// updated campaign, or nil for unknown ids.
type Repository interface {
	Get(id string) *model.Campaign
	DecrementImpressionsLeft(id string) *model.Campaign
	IncrementImpressionsLeft(id string) *model.Campaign
}

// Gate applies permission and confirmation rules.
type Gate struct {
	perms  PermissionService
	logger *slog.Logger

	mu       sync.RWMutex
	delegate Delegate
}

// New creates a gate. A nil permission service permits everything.
func New(perms PermissionService, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{
		perms:  perms,
		logger: logger,
	}
}

// SetDelegate installs or clears the host delegate.
func (g *Gate) SetDelegate(d Delegate) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.delegate = d
}

// Delegate returns the current delegate, or nil.
func (g *Gate) Delegate() Delegate {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.delegate
}

// Permit reports whether the campaign may be displayed. Test campaigns skip
// the permission service entirely. A ping request is forwarded to the
// delegate without waiting for it.
func (g *Gate) Permit(c model.Campaign) bool {
	if c.Data.IsTest {
		return true
	}
	if g.perms == nil {
		return true
	}

	resp := g.perms.CheckPermission(c.Data)
	if resp.PerformPing {
		if d := g.Delegate(); d != nil {
			go d.PerformPing()
		} else {
			g.logger.Debug("ping requested without delegate", "campaign_id", c.ID)
		}
	}
	if !resp.Display {
		g.logger.Debug("campaign not permitted", "campaign_id", c.ID)
	}
	return resp.Display
}

// Confirm asks the delegate whether a campaign with the given contexts should
// be shown. No contexts, a test campaign or a missing delegate all confirm.
func (g *Gate) Confirm(title string, contexts []string, isTest bool) bool {
	if len(contexts) == 0 || isTest {
		return true
	}
	d := g.Delegate()
	if d == nil {
		return true
	}
	return d.ShouldShow(title, contexts)
}

// Reserve takes one impression of id from repo. It reports whether the count
// went down; only then does a cancelled display hand it back with Restore.
func Reserve(repo Repository, id string) bool {
	before := repo.Get(id)
	if before == nil {
		return false
	}
	after := repo.DecrementImpressionsLeft(id)
	return after != nil && after.ImpressionsLeft < before.ImpressionsLeft
}

// Restore returns an impression taken by Reserve.
func Restore(repo Repository, id string, reserved bool) {
	if reserved {
		repo.IncrementImpressionsLeft(id)
	}
}
