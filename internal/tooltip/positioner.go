// Package tooltip places tooltip campaigns next to host views and keeps them
// attached while the host layout changes.
//
// Bookkeeping of queued tooltips lives on the background loop. Tracked host
// views and displayed tooltips live on the foreground loop. The two sides
// talk only through Post, except for the background side reading foreground
// state with Sync.
package tooltip

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Esakkiraja-Pothikannan/ios-inappmessaging/internal/gate"
	"github.com/Esakkiraja-Pothikannan/ios-inappmessaging/internal/mainloop"
	"github.com/Esakkiraja-Pothikannan/ios-inappmessaging/internal/model"
	"github.com/Esakkiraja-Pothikannan/ios-inappmessaging/internal/ui"
)

// ImageLoader fetches tooltip artwork.
type ImageLoader interface {
	Load(ctx context.Context, url string) ([]byte, error)
}

// Recorder stores display attempts.
type Recorder interface {
	RecordAttempt(ctx context.Context, a model.Attempt) error
}

// Options configures a Positioner.
type Options struct {
	Background    *mainloop.Loop
	Foreground    *mainloop.Loop
	Repository    gate.Repository
	Gate          *gate.Gate
	Images        ImageLoader   // Optional; without it image URLs are ignored
	ImageTimeout  time.Duration // Default 5s
	Margin        float64       // Gap between anchor and tooltip
	DefaultSize   ui.Size       // Used when the campaign carries no size
	Recorder      Recorder      // Optional
	RecordTimeout time.Duration // Default 2s

	// OnBecameVisible runs on the foreground loop the first time a tooltip
	// intersects its window.
	OnBecameVisible func(c model.Campaign, view ui.View)

	Tracer trace.Tracer
	Logger *slog.Logger
}

// Errors returned by New.
var (
	ErrNoLoops      = errors.New("tooltip: background and foreground loops are required")
	ErrNoRepository = errors.New("tooltip: repository is required")
	ErrNoGate       = errors.New("tooltip: gate is required")
)

// Info describes a displayed tooltip.
type Info struct {
	Identifier string  // Host view the tooltip is attached to
	CampaignID string  // Campaign being shown
	Frame      ui.Rect // Window coordinates
	Visible    bool    // Has intersected the window at least once
	HasImage   bool
}

// Positioner displays at most one tooltip per host view identifier.
type Positioner struct {
	bg, fg        *mainloop.Loop
	repo          gate.Repository
	gate          *gate.Gate
	images        ImageLoader
	imageTimeout  time.Duration
	margin        float64
	defaultSize   ui.Size
	recorder      Recorder
	recordTimeout time.Duration
	onVisible     func(model.Campaign, ui.View)
	tracer        trace.Tracer
	logger        *slog.Logger

	// Owned by bg.
	queued   map[string]model.Campaign
	order    []string
	inFlight map[string]*attempt // campaign id
	targets  map[string]string   // identifier -> in-flight campaign id

	// Owned by fg.
	tracked   map[string]ui.View
	displayed map[string]*entry
}

// attempt is a tooltip between target resolution and completion.
type attempt struct {
	identifier string
	span       trace.Span
	reserved   bool // An impression was taken in admit
}

// entry is one tooltip on screen.
type entry struct {
	campaign   model.Campaign
	identifier string
	anchor     ui.View
	parent     ui.View
	view       *ui.Node
	image      []byte
	observers  *observerSet
	visible    bool
	autoTimer  *mainloop.Timer
	torn       bool
}

// New creates a Positioner.
func New(opts Options) (*Positioner, error) {
	switch {
	case opts.Background == nil || opts.Foreground == nil:
		return nil, ErrNoLoops
	case opts.Repository == nil:
		return nil, ErrNoRepository
	case opts.Gate == nil:
		return nil, ErrNoGate
	}
	if opts.ImageTimeout <= 0 {
		opts.ImageTimeout = 5 * time.Second
	}
	if opts.RecordTimeout <= 0 {
		opts.RecordTimeout = 2 * time.Second
	}
	if opts.DefaultSize.W <= 0 || opts.DefaultSize.H <= 0 {
		opts.DefaultSize = ui.Size{W: 200, H: 120}
	}
	if opts.Tracer == nil {
		opts.Tracer = otel.Tracer("github.com/Esakkiraja-Pothikannan/ios-inappmessaging/internal/tooltip")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &Positioner{
		bg:            opts.Background,
		fg:            opts.Foreground,
		repo:          opts.Repository,
		gate:          opts.Gate,
		images:        opts.Images,
		imageTimeout:  opts.ImageTimeout,
		margin:        opts.Margin,
		defaultSize:   opts.DefaultSize,
		recorder:      opts.Recorder,
		recordTimeout: opts.RecordTimeout,
		onVisible:     opts.OnBecameVisible,
		tracer:        opts.Tracer,
		logger:        opts.Logger.With("component", "tooltip"),
		queued:        make(map[string]model.Campaign),
		inFlight:      make(map[string]*attempt),
		targets:       make(map[string]string),
		tracked:       make(map[string]ui.View),
		displayed:     make(map[string]*entry),
	}, nil
}

// SetNeedsDisplay queues a tooltip campaign. Queuing a campaign that is
// already queued or showing is a no-op.
func (p *Positioner) SetNeedsDisplay(c model.Campaign) {
	p.bg.Post(func() {
		if c.Data.Tooltip == nil {
			p.logger.Error("campaign is not a tooltip", "campaign_id", c.ID)
			return
		}
		if _, ok := p.queued[c.ID]; ok {
			return
		}
		p.queued[c.ID] = c
		p.order = append(p.order, c.ID)
		p.logger.Debug("tooltip queued", "campaign_id", c.ID, "ui_element", c.Data.Tooltip.UIElementID)
		p.tryDisplayAll()
	})
}

// ViewAppeared starts tracking a host view and retries queued tooltips.
func (p *Positioner) ViewAppeared(v ui.View) {
	p.fg.Post(func() {
		id := v.Identifier()
		if id == "" {
			return
		}
		p.tracked[id] = v
		p.bg.Post(p.tryDisplayAll)
	})
}

// ViewRemoved stops tracking a host view and tears down its tooltip.
func (p *Positioner) ViewRemoved(identifier string) {
	p.fg.Post(func() {
		delete(p.tracked, identifier)
		if e, ok := p.displayed[identifier]; ok {
			p.teardown(e, p.endOutcome(e, "view removed"))
		}
	})
}

// IdentifierChanged moves tracking and any displayed tooltip from old to new.
func (p *Positioner) IdentifierChanged(old, new string) {
	p.fg.Post(func() {
		if old == new {
			return
		}
		if v, ok := p.tracked[old]; ok {
			delete(p.tracked, old)
			if new != "" {
				p.tracked[new] = v
			}
		}
		if e, ok := p.displayed[old]; ok {
			if new == "" {
				p.teardown(e, p.endOutcome(e, "identifier cleared"))
				p.bg.Post(p.tryDisplayAll)
				return
			}
			delete(p.displayed, old)
			if existing, ok := p.displayed[new]; ok {
				p.teardown(existing, p.endOutcome(existing, "replaced"))
			}
			e.identifier = new
			p.displayed[new] = e
		}
		p.bg.Post(p.tryDisplayAll)
	})
}

// OrientationChanged recomputes every displayed tooltip's frame.
func (p *Positioner) OrientationChanged() {
	p.fg.Post(func() {
		for _, e := range p.displayed {
			p.reposition(e)
		}
	})
}

// Dismiss removes the tooltip attached to identifier, if any.
func (p *Positioner) Dismiss(identifier string) {
	p.fg.Post(func() {
		if e, ok := p.displayed[identifier]; ok {
			p.teardown(e, p.endOutcome(e, "dismissed"))
		}
	})
}

// IsDisplayed reports whether a tooltip is attached to identifier.
func (p *Positioner) IsDisplayed(identifier string) bool {
	var ok bool
	p.fg.Sync(func() {
		_, ok = p.displayed[identifier]
	})
	return ok
}

// Displayed returns the tooltips currently attached, ordered by identifier.
func (p *Positioner) Displayed() []Info {
	var out []Info
	p.fg.Sync(func() {
		for id, e := range p.displayed {
			out = append(out, Info{
				Identifier: id,
				CampaignID: e.campaign.ID,
				Frame:      ui.WindowFrame(e.view),
				Visible:    e.visible,
				HasImage:   len(e.image) > 0,
			})
		}
	})
	slices.SortFunc(out, func(a, b Info) int { return strings.Compare(a.Identifier, b.Identifier) })
	return out
}

// Pending returns the ids of tooltips waiting for a target or in flight, in
// queue order.
func (p *Positioner) Pending() []string {
	var out []string
	p.bg.Sync(func() {
		out = slices.Clone(p.order)
	})
	return out
}

// Close tears down every displayed tooltip.
func (p *Positioner) Close() {
	p.fg.Sync(func() {
		for _, e := range p.displayed {
			p.teardown(e, model.Outcome{Reason: model.ReasonInterrupted, Detail: "positioner closed"})
		}
	})
}

// tryDisplayAll attempts every queued tooltip that is not in flight.
func (p *Positioner) tryDisplayAll() {
	for _, id := range slices.Clone(p.order) {
		if _, busy := p.inFlight[id]; busy {
			continue
		}
		if c, ok := p.queued[id]; ok {
			p.tryDisplay(c)
		}
	}
}

// tryDisplay resolves the target view and starts preparing the tooltip.
func (p *Positioner) tryDisplay(c model.Campaign) {
	var identifier string
	var busy bool
	ok := p.fg.Sync(func() {
		identifier = p.findTarget(c.Data.Tooltip.UIElementID)
		if identifier != "" {
			_, busy = p.displayed[identifier]
		}
	})
	if !ok || identifier == "" || busy {
		return
	}
	if _, taken := p.targets[identifier]; taken {
		return
	}

	_, span := p.tracer.Start(context.Background(), "tooltip.display", trace.WithAttributes(
		attribute.String("campaign.id", c.ID),
		attribute.String("tooltip.target", identifier),
		attribute.Bool("campaign.test", c.Data.IsTest),
	))
	p.inFlight[c.ID] = &attempt{identifier: identifier, span: span}
	p.targets[identifier] = c.ID

	go p.prepare(c, identifier)
}

// findTarget returns the tracked identifier containing element. Several
// matches resolve to the lexically first.
func (p *Positioner) findTarget(element string) string {
	var match string
	for id := range p.tracked {
		if !strings.Contains(id, element) {
			continue
		}
		if match == "" || id < match {
			match = id
		}
	}
	return match
}

// prepare fetches the tooltip image off both loops.
func (p *Positioner) prepare(c model.Campaign, identifier string) {
	var image []byte
	if p.images != nil && c.Data.ImageURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), p.imageTimeout)
		data, err := p.images.Load(ctx, c.Data.ImageURL)
		cancel()
		if err != nil {
			// TODO: retry image fetches with backoff before giving up on the tooltip.
			p.logger.Warn("failed to load tooltip image", "campaign_id", c.ID, "url", c.Data.ImageURL, "error", err)
			p.bg.Post(func() {
				p.finish(c, model.Outcome{Reason: model.ReasonUnavailable, Detail: fmt.Sprintf("image: %v", err)})
			})
			return
		}
		image = data
	}

	p.bg.Post(func() {
		p.admit(c, identifier, image)
	})
}

// admit runs the eligibility checks and reserves the impression.
func (p *Positioner) admit(c model.Campaign, identifier string, image []byte) {
	if cur := p.repo.Get(c.ID); cur != nil {
		if cur.IsOptedOut {
			p.finish(c, model.Outcome{Reason: model.ReasonSkipped, Detail: "opted out"})
			return
		}
		if cur.Exhausted() {
			p.finish(c, model.Outcome{Reason: model.ReasonSkipped, Detail: "no impressions left"})
			return
		}
	}
	if !p.gate.Permit(c) {
		p.finish(c, model.Outcome{Reason: model.ReasonIneligible, Detail: "permission denied"})
		return
	}

	reserved := gate.Reserve(p.repo, c.ID)
	if a, ok := p.inFlight[c.ID]; ok {
		a.reserved = reserved
	}

	if !p.gate.Confirm(c.Data.Title, model.TooltipContexts(c.Data.Title), c.Data.IsTest) {
		p.finish(c, model.Outcome{Reason: model.ReasonRejected, Detail: "context rejected by delegate"})
		return
	}

	p.fg.Post(func() {
		p.place(c, identifier, image)
	})
}

// requeue returns an admitted tooltip to the queue when its target vanished
// before placement. The reservation is given back.
func (p *Positioner) requeue(c model.Campaign) {
	p.bg.Post(func() {
		if a, ok := p.inFlight[c.ID]; ok {
			gate.Restore(p.repo, c.ID, a.reserved)
			a.span.SetAttributes(attribute.String("outcome", "requeued"))
			a.span.End()
			delete(p.inFlight, c.ID)
			delete(p.targets, a.identifier)
		}
		p.logger.Debug("tooltip target vanished, requeued", "campaign_id", c.ID)
	})
}

// place attaches the tooltip view next to its anchor.
func (p *Positioner) place(c model.Campaign, identifier string, image []byte) {
	anchor, ok := p.tracked[identifier]
	if !ok || anchor.Superview() == nil {
		p.requeue(c)
		return
	}
	if existing, ok := p.displayed[identifier]; ok {
		p.teardown(existing, model.Outcome{Reason: model.ReasonInterrupted, Detail: "replaced"})
	}

	parent := ui.ScrollableAncestor(anchor)
	container, ok := parent.(ui.Container)
	if !ok {
		p.logger.Error("tooltip parent cannot host subviews", "campaign_id", c.ID, "parent", parent.Identifier())
		p.bg.Post(func() {
			p.finish(c, model.Outcome{Reason: model.ReasonUnavailable, Detail: "parent cannot host tooltip"})
		})
		return
	}

	size := p.defaultSize
	if t := c.Data.Tooltip; t.Width > 0 && t.Height > 0 {
		size = ui.Size{W: t.Width, H: t.Height}
	}

	e := &entry{
		campaign:   c,
		identifier: identifier,
		anchor:     anchor,
		parent:     parent,
		view:       ui.NewNode("tooltip."+c.ID, ui.Rect{Size: size}),
		image:      image,
		observers:  &observerSet{},
	}
	container.AddSubview(e.view)
	p.displayed[identifier] = e

	e.observers.add(anchor.Observe(ui.ChangeFrame, func() {
		p.fg.Post(func() { p.reposition(e) })
	}))
	e.observers.add(anchor.Observe(ui.ChangeRemoved, func() {
		p.fg.Post(func() { p.teardown(e, p.endOutcome(e, "anchor removed")) })
	}))
	if parent.IsScrollable() {
		e.observers.add(parent.Observe(ui.ChangeContentOffset, func() {
			p.fg.Post(func() { p.reposition(e) })
		}))
	}
	e.observers.add(e.view.Observe(ui.ChangeRemoved, func() {
		p.fg.Post(func() { p.teardown(e, p.endOutcome(e, "tooltip removed")) })
	}))

	p.logger.Info("tooltip placed", "campaign_id", c.ID, "target", identifier)
	p.reposition(e)
}

// reposition recomputes the tooltip frame from the anchor.
func (p *Positioner) reposition(e *entry) {
	if e.torn {
		return
	}
	from := e.anchor.Superview()
	if from == nil {
		return
	}
	anchorRect := ui.ConvertRect(e.anchor.Frame(), from, e.parent)
	e.view.SetFrame(Frame(anchorRect, e.view.Frame().Size, e.campaign.Data.Tooltip.Position, p.margin))
	p.checkVisible(e)
}

// checkVisible fires the became-visible callback the first time the tooltip
// intersects its window and the viewport of its scrolling parent.
func (p *Positioner) checkVisible(e *entry) {
	if e.visible {
		return
	}
	frame := ui.WindowFrame(e.view)
	root := ui.Root(e.view)
	if !frame.Intersects(root.Frame()) {
		return
	}
	if e.parent.IsScrollable() && e.parent.Superview() != nil && !frame.Intersects(ui.WindowFrame(e.parent)) {
		return
	}

	e.visible = true
	p.logger.Debug("tooltip became visible", "campaign_id", e.campaign.ID, "target", e.identifier)
	if p.onVisible != nil {
		p.onVisible(e.campaign, e.view)
	}
	if secs := e.campaign.Data.Tooltip.AutoDisappear; secs > 0 {
		e.autoTimer = p.fg.AfterFunc(time.Duration(secs)*time.Second, func() {
			p.teardown(e, model.Outcome{Reason: model.ReasonDisplayed, Detail: "auto disappeared"})
		})
	}
}

// endOutcome is displayed once the tooltip was seen, interrupted otherwise.
func (p *Positioner) endOutcome(e *entry, detail string) model.Outcome {
	if e.visible {
		return model.Outcome{Reason: model.ReasonDisplayed, Detail: detail}
	}
	return model.Outcome{Reason: model.ReasonInterrupted, Detail: detail}
}

// teardown removes the tooltip view and completes it. Later calls for the
// same entry are no-ops.
func (p *Positioner) teardown(e *entry, out model.Outcome) {
	if e.torn {
		return
	}
	e.torn = true
	e.observers.dispose()
	if e.autoTimer != nil {
		e.autoTimer.Cancel()
	}
	if p.displayed[e.identifier] == e {
		delete(p.displayed, e.identifier)
	}
	e.view.RemoveFromSuperview()

	p.logger.Debug("tooltip removed", "campaign_id", e.campaign.ID, "reason", out.Reason, "detail", out.Detail)
	p.bg.Post(func() {
		p.finish(e.campaign, out)
	})
}

// finish completes a tooltip attempt and retries the queue. Only a displayed
// tooltip keeps its reserved impression.
func (p *Positioner) finish(c model.Campaign, out model.Outcome) {
	if a, ok := p.inFlight[c.ID]; ok {
		if out.Reason != model.ReasonDisplayed {
			gate.Restore(p.repo, c.ID, a.reserved)
		}
		a.span.SetAttributes(attribute.String("outcome", string(out.Reason)))
		a.span.End()
		delete(p.inFlight, c.ID)
		if p.targets[a.identifier] == c.ID {
			delete(p.targets, a.identifier)
		}
	}
	delete(p.queued, c.ID)
	p.order = slices.DeleteFunc(p.order, func(id string) bool { return id == c.ID })

	p.record(c, out)
	p.tryDisplayAll()
}

func (p *Positioner) record(c model.Campaign, out model.Outcome) {
	if p.recorder == nil {
		return
	}

	id, err := model.NewAttemptID()
	if err != nil {
		p.logger.Warn("failed to create attempt id", "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.recordTimeout)
	defer cancel()

	err = p.recorder.RecordAttempt(ctx, model.Attempt{
		ID:         id,
		CampaignID: c.ID,
		Kind:       model.AttemptKindTooltip,
		Reason:     out.Reason,
		Detail:     out.Detail,
		CreatedAt:  time.Now(),
	})
	if err != nil {
		p.logger.Warn("failed to record attempt", "campaign_id", c.ID, "error", err)
	}
}
