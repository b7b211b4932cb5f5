// Package dispatch implements the serial campaign dispatcher: a FIFO queue
// of ready campaign ids drained one at a time through the permission
// oracle, the host approval gate and the presenter. Serial display is the
// core contract of the engine: two in-app messages are never shown at
// once.
package dispatch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/rafaeljc/muninn/internal/campaign"
	"github.com/rafaeljc/muninn/internal/observability"
)

// Repository is the slice of the campaign repository the dispatcher needs.
type Repository interface {
	Get(id string) (campaign.Campaign, bool)
	DecrementImpressionsLeft(ctx context.Context, id string) (campaign.Campaign, bool)
}

// PermissionOracle answers whether the mixer allows displaying a campaign
// right now. Implementations absorb network failures and report them as
// denial; the call is synchronous from the dispatcher's perspective.
type PermissionOracle interface {
	CheckPermission(ctx context.Context, campaignID string) campaign.DisplayPermission
}

// Delegate receives the oracle's perform-ping signal so the engine can
// refresh its campaign list.
type Delegate interface {
	PerformPing()
}

// ApprovalGate is the host application's final say for campaigns carrying
// context markers in their title.
type ApprovalGate interface {
	ShouldShowCampaign(title string, contexts []string) bool
}

// Presenter renders a campaign. done must be invoked exactly once when the
// presentation resolves; cancelled reports that the display was aborted
// (e.g. by a close-message call) before counting as an impression.
type Presenter interface {
	Display(ctx context.Context, c campaign.Campaign, res Resources, done func(cancelled bool))
}

// Dispatcher drains the ready queue serially.
type Dispatcher struct {
	logger     *slog.Logger
	repo       Repository
	permission PermissionOracle
	gate       ApprovalGate
	presenter  Presenter
	delegate   Delegate
	images     *ImageResolver
	maxDelay   time.Duration

	mu          sync.Mutex
	queue       []string
	dispatching bool
	inFlight    bool
	delayCancel chan struct{}
}

// Config collects the dispatcher's collaborators. Repo, Permission and
// Presenter are mandatory; Gate, Delegate and Images may be nil, disabling
// the corresponding step.
type Config struct {
	Repo       Repository
	Permission PermissionOracle
	Gate       ApprovalGate
	Presenter  Presenter
	Delegate   Delegate
	Images     *ImageResolver

	// MaxDelay caps the per-campaign pacing delay; zero means no cap.
	MaxDelay time.Duration
}

// New creates a dispatcher.
func New(logger *slog.Logger, cfg Config) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Repo == nil {
		panic("dispatch: repository cannot be nil")
	}
	if cfg.Permission == nil {
		panic("dispatch: permission oracle cannot be nil")
	}
	if cfg.Presenter == nil {
		panic("dispatch: presenter cannot be nil")
	}

	return &Dispatcher{
		logger:      logger,
		repo:        cfg.Repo,
		permission:  cfg.Permission,
		gate:        cfg.Gate,
		presenter:   cfg.Presenter,
		delegate:    cfg.Delegate,
		images:      cfg.Images,
		maxDelay:    cfg.MaxDelay,
		delayCancel: make(chan struct{}),
	}
}

// AddToQueue appends a campaign id to the tail of the queue. It never
// starts dispatching by itself; callers follow up with
// DispatchAllIfNeeded.
func (d *Dispatcher) AddToQueue(campaignID string) {
	d.mu.Lock()
	d.queue = append(d.queue, campaignID)
	d.mu.Unlock()
}

// DispatchAllIfNeeded starts the dispatch loop unless one is already
// running. The kick is idempotent.
func (d *Dispatcher) DispatchAllIfNeeded(ctx context.Context) {
	d.mu.Lock()
	if d.dispatching {
		d.mu.Unlock()
		return
	}
	d.dispatching = true
	d.mu.Unlock()

	go d.loop(ctx)
}

// IsDispatching reports whether a dispatch loop is currently active.
func (d *Dispatcher) IsDispatching() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dispatching
}

// ResetQueue drops all queued-but-not-yet-displaying ids and cancels any
// pending scheduled continuation. An in-flight display is never
// interrupted: the loop stays active until that display resolves, then
// finds the queue empty and goes idle.
func (d *Dispatcher) ResetQueue() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.queue = nil
	if !d.inFlight {
		// Wake a loop parked on a pacing delay so it drains to idle
		// immediately.
		close(d.delayCancel)
		d.delayCancel = make(chan struct{})
	}
}

// loop drains the queue serially. Exactly one loop goroutine exists at any
// time, guarded by the dispatching flag.
func (d *Dispatcher) loop(ctx context.Context) {
	for {
		d.mu.Lock()
		if len(d.queue) == 0 || ctx.Err() != nil {
			d.dispatching = false
			d.mu.Unlock()
			return
		}
		id := d.queue[0]
		d.queue = d.queue[1:]
		d.mu.Unlock()

		delay, displayed := d.dispatch(ctx, id)
		if !displayed {
			// Dropped campaigns advance to the next queued id with no
			// pacing delay.
			continue
		}
		if delay > 0 {
			d.mu.Lock()
			empty := len(d.queue) == 0
			cancel := d.delayCancel
			d.mu.Unlock()
			if empty {
				// Pacing only matters before a next display.
				continue
			}

			select {
			case <-time.After(delay):
			case <-cancel:
			case <-ctx.Done():
			}
		}
	}
}

// dispatch processes a single campaign id. It returns the pacing delay to
// apply before the next item, and whether the campaign was actually handed
// to the presenter.
func (d *Dispatcher) dispatch(ctx context.Context, id string) (time.Duration, bool) {
	c, ok := d.repo.Get(id)
	if !ok {
		// Dropped by a concurrent sync; steady-state, not an error.
		d.logger.Debug("queued campaign no longer present", slog.String("campaign_id", id))
		observability.DispatchOutcomes.WithLabelValues("dropped").Inc()
		return 0, false
	}

	// Step 1: display permission. Test campaigns bypass oracle denial so
	// they can be previewed regardless of server-side rollout gating, but
	// the oracle is only consulted for non-test campaigns in the first
	// place.
	if !c.IsTest {
		perm := d.permission.CheckPermission(ctx, c.ID)
		if perm.PerformPing && d.delegate != nil {
			d.delegate.PerformPing()
		}
		if !perm.Display {
			d.logger.Debug("display permission denied", slog.String("campaign_id", c.ID))
			observability.DispatchOutcomes.WithLabelValues("permission_denied").Inc()
			return 0, false
		}
	}

	// Step 2: host approval for campaigns with context markers. This gate
	// applies to test campaigns too.
	if contexts := c.Contexts(); len(contexts) > 0 && d.gate != nil {
		if !d.gate.ShouldShowCampaign(c.Payload.Title, contexts) {
			d.logger.Debug("campaign not approved by host", slog.String("campaign_id", c.ID))
			observability.DispatchOutcomes.WithLabelValues("not_approved").Inc()
			return 0, false
		}
	}

	// Step 3: resolve images. Failures leave the slot empty and never
	// block display.
	var res Resources
	if d.images != nil {
		res = d.images.ResolveCampaign(ctx, c)
	}

	// Step 4: present, blocking this loop until the display resolves.
	done := make(chan bool, 1)
	d.mu.Lock()
	d.inFlight = true
	d.mu.Unlock()

	d.presenter.Display(ctx, c, res, func(cancelled bool) {
		done <- cancelled
	})
	cancelled := <-done

	d.mu.Lock()
	d.inFlight = false
	d.mu.Unlock()

	// Step 5: a completed display costs one impression; a cancelled one is
	// a no-op on the budget.
	if cancelled {
		observability.DispatchOutcomes.WithLabelValues("cancelled").Inc()
	} else {
		d.repo.DecrementImpressionsLeft(ctx, c.ID)
		observability.DispatchOutcomes.WithLabelValues("displayed").Inc()
	}

	delay := c.Delay()
	if d.maxDelay > 0 && delay > d.maxDelay {
		delay = d.maxDelay
	}
	return delay, true
}
