// Package engine wires the campaign lifecycle components together and owns
// the ping loop and identity-transition handling. It is the single entry
// point a host application (or the daemon's host API) talks to.
package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/rafaeljc/muninn/internal/campaign"
	"github.com/rafaeljc/muninn/internal/config"
	"github.com/rafaeljc/muninn/internal/dispatch"
	"github.com/rafaeljc/muninn/internal/eligibility"
	"github.com/rafaeljc/muninn/internal/event"
	"github.com/rafaeljc/muninn/internal/identity"
	"github.com/rafaeljc/muninn/internal/match"
	"github.com/rafaeljc/muninn/internal/mixer"
	"github.com/rafaeljc/muninn/internal/observability"
	"github.com/rafaeljc/muninn/internal/repository"
	"github.com/rafaeljc/muninn/internal/store"
)

// CampaignFetcher delivers the campaign list. The mixer client implements
// it; tests substitute fakes.
type CampaignFetcher interface {
	Ping(ctx context.Context, ids []identity.Identifier) (*mixer.PingResponse, error)
}

// PermissionClient performs the remote display-permission check.
type PermissionClient interface {
	CheckDisplayPermission(ctx context.Context, campaignID string, ids []identity.Identifier, lastPingMillis int64) (campaign.DisplayPermission, error)
}

// Closer is optionally implemented by presenters that can abort an
// in-flight display synchronously.
type Closer interface {
	CloseCurrent()
}

// Dependencies collects the engine's collaborators. Provider, Store,
// Fetcher, Permission and Presenter are mandatory.
type Dependencies struct {
	Provider   identity.Provider
	Store      store.UserStore
	Fetcher    CampaignFetcher
	Permission PermissionClient
	Gate       dispatch.ApprovalGate
	Presenter  dispatch.Presenter
	Images     *dispatch.ImageResolver
}

// Engine is the campaign lifecycle engine.
type Engine struct {
	logger     *slog.Logger
	cfg        config.EngineConfig
	resolver   *identity.Resolver
	repo       *repository.CampaignRepository
	matcher    *match.Matcher
	validator  *eligibility.Validator
	dispatcher *dispatch.Dispatcher
	fetcher    CampaignFetcher
	presenter  dispatch.Presenter

	// baseCtx bounds background dispatch to the engine's lifetime. The
	// dispatch loop must not inherit a caller's context: a host API
	// request ending would abort an in-flight permission check or display.
	baseCtx context.Context

	pingKick chan struct{}
}

// New constructs a fully wired engine and seeds its state from the
// persisted cache, merging last-user data so a fresh process resumes where
// the previous one left off.
func New(ctx context.Context, logger *slog.Logger, cfg config.EngineConfig, deps Dependencies) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if deps.Provider == nil {
		panic("engine: identity provider cannot be nil")
	}
	if deps.Store == nil {
		panic("engine: user store cannot be nil")
	}
	if deps.Fetcher == nil {
		panic("engine: campaign fetcher cannot be nil")
	}
	if deps.Permission == nil {
		panic("engine: permission client cannot be nil")
	}
	if deps.Presenter == nil {
		panic("engine: presenter cannot be nil")
	}

	resolver := identity.NewResolver(logger, deps.Provider)
	repo := repository.New(logger, deps.Store, resolver)
	matcher := match.NewMatcher(logger, repo)
	validator := eligibility.NewValidator(logger, repo, matcher)

	e := &Engine{
		logger:    logger,
		cfg:       cfg,
		resolver:  resolver,
		repo:      repo,
		matcher:   matcher,
		validator: validator,
		fetcher:   deps.Fetcher,
		presenter: deps.Presenter,
		baseCtx:   ctx,
		pingKick:  make(chan struct{}, 1),
	}

	oracle := &permissionOracle{
		logger:   logger,
		client:   deps.Permission,
		repo:     repo,
		resolver: resolver,
	}

	e.dispatcher = dispatch.New(logger, dispatch.Config{
		Repo:       repo,
		Permission: oracle,
		Gate:       deps.Gate,
		Presenter:  deps.Presenter,
		Delegate:   e,
		Images:     deps.Images,
		MaxDelay:   cfg.MaxCampaignDelay,
	})

	e.repo.LoadCachedData(ctx, true)
	return e
}

// Repository exposes the campaign repository for read-only inspection
// (host API, tests).
func (e *Engine) Repository() *repository.CampaignRepository {
	return e.repo
}

// LogEvent records one host-app event: it re-checks the user identity,
// stores the event against every matching campaign, re-validates and kicks
// the dispatcher for any campaign that became ready.
func (e *Engine) LogEvent(ctx context.Context, ev event.Event) {
	observability.EventsLogged.WithLabelValues(ev.Type.String()).Inc()

	e.CheckUserChanges(ctx)
	e.matcher.MatchAndStore(ev)
	e.validateAndDispatch()
}

// CheckUserChanges polls the identity provider and, on a confirmed
// transition, clears non-persistent events, resets the dispatch backlog,
// reloads the new identity's cached state and wipes the last-user slot.
// Last-user data seeds the new state only on the anonymous -> identified
// transition.
func (e *Engine) CheckUserChanges(ctx context.Context) {
	changed, change := e.resolver.CheckUserChanges()
	if !changed {
		return
	}

	e.matcher.ClearNonPersistentEvents()
	e.dispatcher.ResetQueue()
	e.repo.LoadCachedData(ctx, change.BecameIdentified)
	e.repo.ClearLastUserData(ctx)
	e.kickPing()
}

// CloseMessage synchronously closes an in-flight display when the
// presenter supports it, optionally discarding the queued backlog as well.
func (e *Engine) CloseMessage(clearQueue bool) {
	if clearQueue {
		e.dispatcher.ResetQueue()
	}
	if closer, ok := e.presenter.(Closer); ok {
		closer.CloseCurrent()
	}
}

// PerformPing implements dispatch.Delegate: the permission oracle asked
// for a fresh campaign list.
func (e *Engine) PerformPing() {
	e.kickPing()
}

func (e *Engine) kickPing() {
	select {
	case e.pingKick <- struct{}{}:
	default:
	}
}

// Run drives the ping loop until the context is cancelled. The interval
// follows the mixer's nextPingMillis; until the first successful response
// (and after failures) the configured default applies.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Info("starting campaign engine",
		slog.Duration("default_ping_interval", e.cfg.DefaultPingInterval),
		slog.Bool("ignore_tooltips", e.cfg.IgnoreTooltips),
	)

	interval := e.sync(ctx)
	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("campaign engine stopping...")
			return nil
		case <-e.pingKick:
		case <-timer.C:
		}

		interval = e.sync(ctx)
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(interval)
	}
}

// sync performs one ping cycle and returns the interval until the next
// one.
func (e *Engine) sync(ctx context.Context) time.Duration {
	start := time.Now()

	resp, err := e.fetcher.Ping(ctx, e.resolver.Current())
	if err != nil {
		// Keep running on cached data; retry on the next tick.
		e.logger.Error("ping cycle failed", slog.String("error", err.Error()))
		observability.SyncCycles.WithLabelValues("error").Inc()
		return e.cfg.DefaultPingInterval
	}

	if err := e.repo.SyncWith(ctx, resp.Campaigns, resp.CurrentPingMillis, e.cfg.IgnoreTooltips); err != nil {
		e.logger.Warn("failed to persist synced campaigns", slog.String("error", err.Error()))
	}

	// Server decisions were granted against the previous list; drop them.
	e.repo.ClearPermissions()

	// Events stored before this sync may already satisfy new campaigns.
	e.validateAndDispatch()

	observability.SyncCycles.WithLabelValues("ok").Inc()
	observability.SyncDuration.Observe(time.Since(start).Seconds())

	e.logger.Info("ping cycle completed",
		slog.Int("campaigns", len(resp.Campaigns)),
		slog.Duration("duration", time.Since(start)),
	)

	if resp.NextPingMillis > 0 {
		return time.Duration(resp.NextPingMillis) * time.Millisecond
	}
	return e.cfg.DefaultPingInterval
}

func (e *Engine) validateAndDispatch() {
	e.validator.Validate(func(c campaign.Campaign, _ []event.Event) {
		e.dispatcher.AddToQueue(c.ID)
	})
	e.dispatcher.DispatchAllIfNeeded(e.baseCtx)
}
