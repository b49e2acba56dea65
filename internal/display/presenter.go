package display

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Esakkiraja-Pothikannan/ios-inappmessaging/internal/mainloop"
	"github.com/Esakkiraja-Pothikannan/ios-inappmessaging/internal/model"
)

// LogPresenter is a headless presenter. It logs the message, keeps it "up"
// for the linger duration and reports it displayed.
type LogPresenter struct {
	ui     *mainloop.Loop
	logger *slog.Logger

	mu     sync.RWMutex
	linger time.Duration
}

// NewLogPresenter creates a LogPresenter whose timers fire on ui.
func NewLogPresenter(ui *mainloop.Loop, linger time.Duration, logger *slog.Logger) *LogPresenter {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogPresenter{ui: ui, linger: linger, logger: logger}
}

// SetLinger changes the linger used by later presentations.
func (p *LogPresenter) SetLinger(d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.linger = d
}

// Linger returns the current linger.
func (p *LogPresenter) Linger() time.Duration {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.linger
}

// Present implements Presenter.
func (p *LogPresenter) Present(ctx context.Context, c model.Campaign, done func(model.Outcome)) {
	p.logger.Info("campaign message",
		"campaign_id", c.ID,
		"type", c.Data.Type,
		"title", c.Data.Title,
		"header", c.Data.Header,
		"body", c.Data.Body)

	stop := context.AfterFunc(ctx, func() {
		p.ui.Post(func() {
			done(model.Outcome{Reason: model.ReasonInterrupted, Detail: ctx.Err().Error()})
		})
	})

	p.ui.AfterFunc(p.Linger(), func() {
		if !stop() {
			return
		}
		p.logger.Debug("campaign message dismissed", "campaign_id", c.ID)
		done(model.Outcome{Reason: model.ReasonDisplayed})
	})
}
