package display

import (
	"context"
	"log/slog"
	"sync"

	"github.com/Esakkiraja-Pothikannan/ios-inappmessaging/internal/mainloop"
	"github.com/Esakkiraja-Pothikannan/ios-inappmessaging/internal/model"
)

// Presenter shows one campaign. Present runs on the foreground loop and must
// eventually call done exactly once.
type Presenter interface {
	Present(ctx context.Context, c model.Campaign, done func(model.Outcome))
}

// PresenterFunc adapts a function to Presenter.
type PresenterFunc func(ctx context.Context, c model.Campaign, done func(model.Outcome))

// Present calls f.
func (f PresenterFunc) Present(ctx context.Context, c model.Campaign, done func(model.Outcome)) {
	f(ctx, c, done)
}

// Router hands campaigns to the presenter registered for their view type.
type Router struct {
	ui     *mainloop.Loop
	logger *slog.Logger

	mu         sync.RWMutex
	presenters map[model.ViewType]Presenter
}

// NewRouter creates a router running presentation on ui.
func NewRouter(ui *mainloop.Loop, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		ui:         ui,
		logger:     logger.With("component", "router"),
		presenters: make(map[model.ViewType]Presenter),
	}
}

// Register sets the presenter for a view type, replacing any previous one.
func (r *Router) Register(t model.ViewType, p Presenter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.presenters[t] = p
}

func (r *Router) presenter(t model.ViewType) (Presenter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.presenters[t]
	return p, ok
}

// Display presents c on the foreground loop. confirm is evaluated right
// before the presenter runs. The returned channel receives exactly one
// outcome.
func (r *Router) Display(ctx context.Context, c model.Campaign, confirm func() bool) <-chan model.Outcome {
	results := make(chan model.Outcome, 1)
	var once sync.Once
	finish := func(out model.Outcome) {
		once.Do(func() {
			results <- out
		})
	}

	posted := r.ui.Post(func() {
		if err := ctx.Err(); err != nil {
			finish(model.Outcome{Reason: model.ReasonInterrupted, Detail: err.Error()})
			return
		}

		p, ok := r.presenter(c.Data.Type)
		if !ok {
			err := &PresentError{CampaignID: c.ID, Message: "no presenter for view type " + string(c.Data.Type)}
			r.logger.Error("cannot present campaign", "campaign_id", c.ID, "error", err)
			finish(model.Outcome{Reason: model.ReasonUnavailable, Detail: err.Error()})
			return
		}

		if confirm != nil && !confirm() {
			r.logger.Debug("display rejected at confirmation", "campaign_id", c.ID)
			finish(model.Outcome{Reason: model.ReasonRejected, Detail: "confirmation declined"})
			return
		}

		p.Present(ctx, c, finish)
	})
	if !posted {
		finish(model.Outcome{Reason: model.ReasonInterrupted, Detail: "foreground loop stopped"})
	}

	return results
}

// PresentError represents a presentation failure.
type PresentError struct {
	CampaignID string
	Message    string
	Cause      error
}

func (e *PresentError) Error() string {
	msg := "present " + e.CampaignID + ": " + e.Message
	if e.Cause != nil {
		return msg + ": " + e.Cause.Error()
	}
	return msg
}

func (e *PresentError) Unwrap() error {
	return e.Cause
}
