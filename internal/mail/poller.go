// File: internal/mail/poller.go
package mail

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/kitsched/autopunch/internal/config"
)

// Source is one inbox scan. Fetcher implements it; tests script it.
type Source interface {
	Fetch(ctx context.Context, after time.Time) (code string, found bool)
}

// Poller repeats inbox scans at a fixed interval until a code arrives or the
// wall-clock wait budget elapses. It implements the code source consumed by
// the login flow: an exhausted budget is reported as an empty code with a
// nil error, leaving the failure decision to the caller.
type Poller struct {
	source   Source
	interval time.Duration
	budget   time.Duration
	logger   *zap.Logger

	// Injectable for tests.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewPoller returns a Poller over the given source using the mailbox's
// polling settings.
func NewPoller(source Source, cfg config.MailboxConfig, logger *zap.Logger) *Poller {
	return &Poller{
		source:   source,
		interval: cfg.PollInterval,
		budget:   cfg.WaitBudget,
		logger:   logger.Named("poller"),
		now:      time.Now,
		sleep:    sleepCtx,
	}
}

// WaitAndFetch polls for a code delivered at or after the reference instant.
// Returns ("", nil) when the budget elapses without a code; an error only on
// context cancellation.
func (p *Poller) WaitAndFetch(ctx context.Context, after time.Time) (string, error) {
	deadline := p.now().Add(p.budget)
	p.logger.Info("Waiting for the verification code email.",
		zap.Duration("budget", p.budget), zap.Duration("interval", p.interval))

	for attempt := 1; ; attempt++ {
		if code, found := p.source.Fetch(ctx, after); found {
			p.logger.Info("Verification code retrieved.", zap.Int("scan", attempt))
			return code, nil
		}
		if !p.now().Add(p.interval).Before(deadline) {
			p.logger.Warn("Verification code did not arrive within the wait budget.",
				zap.Int("scans", attempt))
			return "", nil
		}
		if err := p.sleep(ctx, p.interval); err != nil {
			return "", err
		}
	}
}

// sleepCtx pauses for d unless ctx is canceled first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
