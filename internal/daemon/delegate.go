package daemon

import (
	"log/slog"

	"github.com/Esakkiraja-Pothikannan/ios-inappmessaging/internal/permission"
)

// hostDelegate answers for the host when iamd runs headless: contexts are
// checked against the deny_contexts rule and pings re-read the definitions.
type hostDelegate struct {
	rules  *permission.Rules
	ping   func()
	logger *slog.Logger
}

func (h *hostDelegate) ShouldShow(title string, contexts []string) bool {
	if !h.rules.AllowsContexts(contexts) {
		h.logger.Debug("campaign context denied", "title", title, "contexts", contexts)
		return false
	}
	return true
}

func (h *hostDelegate) PerformPing() {
	h.logger.Debug("ping requested, refreshing campaigns")
	h.ping()
}
