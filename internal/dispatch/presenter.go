package dispatch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/rafaeljc/muninn/internal/campaign"
)

// LoggingPresenter is the daemon-mode presenter: it records each display
// as a structured log line and resolves it after a fixed hold duration,
// or immediately when hold is zero. CloseCurrent aborts a held display,
// resolving it as cancelled so no impression is counted.
//
// Embedded hosts render real UI and implement Presenter themselves; the
// daemon only needs impression accounting to stay correct.
type LoggingPresenter struct {
	logger *slog.Logger
	hold   time.Duration

	mu      sync.Mutex
	pending func(cancelled bool)
	timer   *time.Timer
}

// NewLoggingPresenter creates a presenter holding each display open for
// the given duration.
func NewLoggingPresenter(logger *slog.Logger, hold time.Duration) *LoggingPresenter {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingPresenter{logger: logger, hold: hold}
}

var _ Presenter = (*LoggingPresenter)(nil)

// Display logs the campaign and schedules its completion.
func (p *LoggingPresenter) Display(ctx context.Context, c campaign.Campaign, res Resources, done func(cancelled bool)) {
	p.logger.Info("displaying campaign",
		slog.String("campaign_id", c.ID),
		slog.String("type", c.Type.String()),
		slog.Bool("is_test", c.IsTest),
		slog.String("title", c.Payload.Title),
	)

	if p.hold <= 0 {
		done(false)
		return
	}

	p.mu.Lock()
	p.pending = done
	p.timer = time.AfterFunc(p.hold, func() { p.resolve(false) })
	p.mu.Unlock()
}

// CloseCurrent aborts the display currently held open, if any.
func (p *LoggingPresenter) CloseCurrent() {
	p.resolve(true)
}

func (p *LoggingPresenter) resolve(cancelled bool) {
	p.mu.Lock()
	done := p.pending
	p.pending = nil
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	p.mu.Unlock()

	if done != nil {
		done(cancelled)
	}
}
