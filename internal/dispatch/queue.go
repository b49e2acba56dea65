// Package dispatch implements the campaign dispatch queue: a FIFO of
// campaigns displayed one at a time, with a per-campaign delay between
// displays and impressions-left bookkeeping around each display.
package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Esakkiraja-Pothikannan/ios-inappmessaging/internal/gate"
	"github.com/Esakkiraja-Pothikannan/ios-inappmessaging/internal/mainloop"
	"github.com/Esakkiraja-Pothikannan/ios-inappmessaging/internal/model"
)

// State is the dispatch state machine position.
type State int

const (
	// StateIdle means nothing is displayed or scheduled.
	StateIdle State = iota
	// StateDispatching means a campaign is being displayed.
	StateDispatching
	// StateWaitingToReschedule means the next pop waits for a delay timer.
	StateWaitingToReschedule
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDispatching:
		return "dispatching"
	case StateWaitingToReschedule:
		return "waiting"
	default:
		return "unknown"
	}
}

// Router presents a campaign. The returned channel yields exactly one
// outcome. confirm is evaluated by the router immediately before rendering;
// false means the display is rejected.
type Router interface {
	Display(ctx context.Context, c model.Campaign, confirm func() bool) <-chan model.Outcome
}

// Recorder stores display attempts.
type Recorder interface {
	RecordAttempt(ctx context.Context, a model.Attempt) error
}

// Options configures a Queue.
type Options struct {
	Loop          *mainloop.Loop // Background context owning all queue state
	Repository    gate.Repository
	Gate          *gate.Gate
	Router        Router
	Recorder      Recorder      // Optional
	RecordTimeout time.Duration // Default 2s
	Tracer        trace.Tracer  // Defaults to the global provider
	Logger        *slog.Logger
}

// Errors returned by New.
var (
	ErrNoLoop       = errors.New("dispatch: loop is required")
	ErrNoRepository = errors.New("dispatch: repository is required")
	ErrNoGate       = errors.New("dispatch: gate is required")
	ErrNoRouter     = errors.New("dispatch: router is required")
)

// Queue is the campaign dispatch queue. All methods are safe to call from any
// goroutine; the work itself runs on the background loop.
type Queue struct {
	loop          *mainloop.Loop
	repo          gate.Repository
	gate          *gate.Gate
	router        Router
	recorder      Recorder
	recordTimeout time.Duration
	tracer        trace.Tracer
	logger        *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	// Owned by loop.
	pending     []model.Campaign
	dispatching bool
	scheduled   *mainloop.Timer
}

// New creates a Queue.
func New(opts Options) (*Queue, error) {
	switch {
	case opts.Loop == nil:
		return nil, ErrNoLoop
	case opts.Repository == nil:
		return nil, ErrNoRepository
	case opts.Gate == nil:
		return nil, ErrNoGate
	case opts.Router == nil:
		return nil, ErrNoRouter
	}
	if opts.RecordTimeout <= 0 {
		opts.RecordTimeout = 2 * time.Second
	}
	if opts.Tracer == nil {
		opts.Tracer = otel.Tracer("github.com/Esakkiraja-Pothikannan/ios-inappmessaging/internal/dispatch")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Queue{
		loop:          opts.Loop,
		repo:          opts.Repository,
		gate:          opts.Gate,
		router:        opts.Router,
		recorder:      opts.Recorder,
		recordTimeout: opts.RecordTimeout,
		tracer:        opts.Tracer,
		logger:        opts.Logger.With("component", "dispatch"),
		ctx:           ctx,
		cancel:        cancel,
	}, nil
}

// AddToQueue appends a campaign snapshot. It does not start dispatching.
func (q *Queue) AddToQueue(c model.Campaign) {
	q.loop.Post(func() {
		q.pending = append(q.pending, c)
		q.logger.Debug("campaign queued", "campaign_id", c.ID, "pending", len(q.pending))
	})
}

// DispatchAllIfNeeded starts draining the queue unless a display is in
// flight or scheduled.
func (q *Queue) DispatchAllIfNeeded() {
	q.loop.Post(func() {
		if q.dispatching {
			return
		}
		q.dispatching = true
		q.dispatchNext()
	})
}

// ResetQueue drops pending campaigns and cancels a scheduled pop. A display
// already in flight runs to completion.
func (q *Queue) ResetQueue() {
	q.loop.Post(func() {
		dropped := len(q.pending)
		q.pending = nil
		if q.scheduled != nil {
			q.scheduled.Cancel()
			q.scheduled = nil
			q.dispatching = false
		}
		q.logger.Debug("queue reset", "dropped", dropped)
	})
}

// State returns the current dispatch state.
func (q *Queue) State() State {
	state := StateIdle
	q.loop.Sync(func() {
		state = q.state()
	})
	return state
}

// Pending returns the queued campaigns in order.
func (q *Queue) Pending() []model.Campaign {
	var out []model.Campaign
	q.loop.Sync(func() {
		out = make([]model.Campaign, len(q.pending))
		copy(out, q.pending)
	})
	return out
}

// Close interrupts any in-flight display. The loop itself is owned by the
// caller.
func (q *Queue) Close() {
	q.cancel()
}

func (q *Queue) state() State {
	switch {
	case q.scheduled != nil:
		return StateWaitingToReschedule
	case q.dispatching:
		return StateDispatching
	default:
		return StateIdle
	}
}

// dispatchNext pops until one campaign is handed to the router or the queue
// is empty. Skipped campaigns move on without delay.
func (q *Queue) dispatchNext() {
	for len(q.pending) > 0 {
		c := q.pending[0]
		q.pending = q.pending[1:]
		if q.display(c) {
			return
		}
	}
	q.dispatching = false
}

// display runs the per-campaign checks and hands the campaign to the router.
// It reports whether a display is now in flight.
func (q *Queue) display(c model.Campaign) bool {
	logger := q.logger.With("campaign_id", c.ID)

	if c.IsOptedOut {
		logger.Debug("skipping opted-out campaign")
		q.record(c, model.Outcome{Reason: model.ReasonSkipped, Detail: "opted out"})
		return false
	}
	if c.Exhausted() {
		logger.Debug("skipping campaign without impressions left")
		q.record(c, model.Outcome{Reason: model.ReasonSkipped, Detail: "no impressions left"})
		return false
	}
	if !q.gate.Permit(c) {
		q.record(c, model.Outcome{Reason: model.ReasonIneligible, Detail: "permission denied"})
		return false
	}

	// Reserve the impression. Anything short of a display gives it back.
	reserved := gate.Reserve(q.repo, c.ID)

	if !q.gate.Confirm(c.Data.Title, c.Contexts(), c.Data.IsTest) {
		logger.Debug("campaign rejected by delegate", "contexts", c.Contexts())
		gate.Restore(q.repo, c.ID, reserved)
		q.record(c, model.Outcome{Reason: model.ReasonRejected, Detail: "context rejected by delegate"})
		return false
	}

	ctx, span := q.tracer.Start(q.ctx, "dispatch.display", trace.WithAttributes(
		attribute.String("campaign.id", c.ID),
		attribute.String("campaign.type", string(c.Data.Type)),
		attribute.Bool("campaign.test", c.Data.IsTest),
	))

	logger.Info("displaying campaign", "type", c.Data.Type)
	results := q.router.Display(ctx, c, func() bool {
		return q.stillDisplayable(c.ID)
	})

	go func() {
		var out model.Outcome
		select {
		case out = <-results:
		case <-q.ctx.Done():
			out = model.Outcome{Reason: model.ReasonInterrupted, Detail: "queue closed"}
		}
		q.loop.Post(func() {
			q.complete(c, out, reserved, span)
		})
	}()
	return true
}

// stillDisplayable is the last-moment check the router runs before
// rendering. Campaigns that are no longer known or were opted out in the
// meantime are rejected. It may run on any goroutine.
func (q *Queue) stillDisplayable(id string) bool {
	cur := q.repo.Get(id)
	return cur != nil && !cur.IsOptedOut
}

// complete settles the reservation: a displayed campaign keeps it, every
// other outcome leaves impressions-left where it was before the attempt.
func (q *Queue) complete(c model.Campaign, out model.Outcome, reserved bool, span trace.Span) {
	span.SetAttributes(attribute.String("outcome", string(out.Reason)))
	span.End()

	if out.Reason != model.ReasonDisplayed {
		gate.Restore(q.repo, c.ID, reserved)
		q.logger.Debug("display cancelled", "campaign_id", c.ID, "reason", out.Reason, "detail", out.Detail)
	}
	q.record(c, out)

	if len(q.pending) == 0 {
		q.dispatching = false
		return
	}

	var t *mainloop.Timer
	t = q.loop.AfterFunc(c.Data.DelayDuration(), func() {
		if q.scheduled != t {
			return
		}
		q.scheduled = nil
		q.dispatchNext()
	})
	q.scheduled = t
}

func (q *Queue) record(c model.Campaign, out model.Outcome) {
	if q.recorder == nil {
		return
	}

	id, err := model.NewAttemptID()
	if err != nil {
		q.logger.Warn("failed to create attempt id", "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), q.recordTimeout)
	defer cancel()

	err = q.recorder.RecordAttempt(ctx, model.Attempt{
		ID:         id,
		CampaignID: c.ID,
		Kind:       model.AttemptKindMessage,
		Reason:     out.Reason,
		Detail:     out.Detail,
		CreatedAt:  time.Now(),
	})
	if err != nil {
		q.logger.Warn("failed to record attempt", "campaign_id", c.ID, "error", err)
	}
}
