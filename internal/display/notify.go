package display

import (
	"context"
	"log/slog"
	"strings"

	"github.com/Esakkiraja-Pothikannan/ios-inappmessaging/internal/dbus"
	"github.com/Esakkiraja-Pothikannan/ios-inappmessaging/internal/mainloop"
	"github.com/Esakkiraja-Pothikannan/ios-inappmessaging/internal/model"
)

// NotificationSender is the part of dbus.Notifier the presenter needs.
type NotificationSender interface {
	Notify(ctx context.Context, msg dbus.Message, onClose dbus.CloseHandler) (uint32, error)
	CloseNotification(ctx context.Context, id uint32) error
}

// NotifyPresenter renders campaigns as desktop notifications.
type NotifyPresenter struct {
	sender  NotificationSender
	ui      *mainloop.Loop
	appName string
	logger  *slog.Logger
}

// NewNotifyPresenter creates a NotifyPresenter. Completions are delivered on ui.
func NewNotifyPresenter(sender NotificationSender, ui *mainloop.Loop, appName string, logger *slog.Logger) *NotifyPresenter {
	if logger == nil {
		logger = slog.Default()
	}
	return &NotifyPresenter{
		sender:  sender,
		ui:      ui,
		appName: appName,
		logger:  logger,
	}
}

// Present implements Presenter. The bus call runs off the foreground loop.
func (p *NotifyPresenter) Present(ctx context.Context, c model.Campaign, done func(model.Outcome)) {
	msg := campaignMessage(p.appName, c)

	go func() {
		id, err := p.sender.Notify(ctx, msg, func(id uint32, reason dbus.CloseReason) {
			out := closeOutcome(reason)
			p.ui.Post(func() { done(out) })
		})
		if err != nil {
			perr := &PresentError{CampaignID: c.ID, Message: "desktop notification failed", Cause: err}
			p.logger.Warn("cannot present campaign", "campaign_id", c.ID, "error", perr)
			p.ui.Post(func() {
				done(model.Outcome{Reason: model.ReasonUnavailable, Detail: perr.Error()})
			})
			return
		}

		// Shutdown closes the notification; the server answers with
		// NotificationClosed(closed), which maps to interrupted.
		context.AfterFunc(ctx, func() {
			if err := p.sender.CloseNotification(context.Background(), id); err != nil {
				p.logger.Debug("failed to close notification", "id", id, "error", err)
			}
		})
	}()
}

func campaignMessage(appName string, c model.Campaign) dbus.Message {
	body := strings.TrimSpace(strings.Join([]string{c.Data.Header, c.Data.Body}, "\n"))
	urgency := dbus.UrgencyNormal
	if c.Data.Type == model.ViewTypeFull {
		urgency = dbus.UrgencyCritical
	}
	return dbus.Message{
		AppName:       appName,
		AppIcon:       c.Data.ImageURL,
		Summary:       model.StripContexts(c.Data.Title),
		Body:          body,
		ExpireTimeout: -1,
	}.WithUrgency(urgency)
}

// closeOutcome maps a close reason: the user saw anything that expired or
// was dismissed.
func closeOutcome(reason dbus.CloseReason) model.Outcome {
	switch reason {
	case dbus.CloseReasonExpired, dbus.CloseReasonDismissed:
		return model.Outcome{Reason: model.ReasonDisplayed, Detail: reason.String()}
	default:
		return model.Outcome{Reason: model.ReasonInterrupted, Detail: reason.String()}
	}
}
