// File: internal/runner/runner.go

// Package runner schedules and retries punch attempts. It owns the run-level
// policy: credential fail-fast, the weekday gate, the randomized start delay,
// the bounded retry loop with a fresh browser session per attempt, and the
// success notification.
package runner

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kitsched/autopunch/internal/config"
	"github.com/kitsched/autopunch/internal/portal"
)

// ErrAttemptsExhausted reports that every attempt in the run failed.
var ErrAttemptsExhausted = errors.New("all punch attempts failed")

// PortalSession is one attempt's worth of browser-backed portal interaction.
// Each attempt gets a fresh session so no half-authenticated state leaks into
// the next try.
type PortalSession interface {
	Login(ctx context.Context) error
	Punch(ctx context.Context, action portal.Action) error
	Close()
}

// SessionFactory opens a new PortalSession. The production factory launches
// a browser; tests substitute scripted sessions.
type SessionFactory func(ctx context.Context) (PortalSession, error)

// Notifier delivers the success notification.
type Notifier interface {
	Send(ctx context.Context, text string) error
}

// Controller runs the punch workflow end to end.
type Controller struct {
	cfg        *config.Config
	newSession SessionFactory
	notifier   Notifier
	logger     *zap.Logger

	// Injectable for tests.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
	rng   *rand.Rand

	skipDelay       bool
	skipWeekdayGate bool
}

// Option adjusts controller policy.
type Option func(*Controller)

// WithoutDelay disables the randomized start delay.
func WithoutDelay() Option {
	return func(c *Controller) { c.skipDelay = true }
}

// WithoutWeekdayGate disables the weekend skip.
func WithoutWeekdayGate() Option {
	return func(c *Controller) { c.skipWeekdayGate = true }
}

// NewController assembles a Controller.
func NewController(cfg *config.Config, factory SessionFactory, notifier Notifier, logger *zap.Logger, opts ...Option) *Controller {
	c := &Controller{
		cfg:        cfg,
		newSession: factory,
		notifier:   notifier,
		logger:     logger.Named("runner"),
		now:        time.Now,
		sleep:      sleepCtx,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run executes one punch run. A weekend skip returns nil; so does a
// successful attempt. Exhausting every attempt returns ErrAttemptsExhausted.
func (c *Controller) Run(ctx context.Context, action portal.Action) error {
	if err := c.cfg.ValidateCredentials(); err != nil {
		return err
	}
	if !c.cfg.Mailbox.Configured() {
		c.logger.Warn("Mailbox access is not configured; the run will fail if the portal requests a verification code.")
	}

	if !c.skipWeekdayGate {
		if wd := c.now().Weekday(); wd == time.Saturday || wd == time.Sunday {
			c.logger.Info("Weekend; skipping the punch run.", zap.String("weekday", wd.String()))
			return nil
		}
	}

	if err := c.startDelay(ctx); err != nil {
		return err
	}

	for attempt := 1; attempt <= c.cfg.Run.MaxAttempts; attempt++ {
		attemptLogger := c.logger.With(
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", c.cfg.Run.MaxAttempts),
			zap.String("attempt_id", uuid.NewString()[:8]),
		)
		attemptLogger.Info("Starting punch attempt.", zap.String("action", action.Label()))

		err := c.attempt(ctx, action)
		if err == nil {
			attemptLogger.Info("Punch attempt succeeded.")
			c.notifySuccess(ctx, action)
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		attemptLogger.Error("Punch attempt failed.", zap.Error(err))

		if attempt < c.cfg.Run.MaxAttempts {
			attemptLogger.Info("Retrying after the retry interval.",
				zap.Duration("retry_interval", c.cfg.Run.RetryInterval))
			if serr := c.sleep(ctx, c.cfg.Run.RetryInterval); serr != nil {
				return serr
			}
		}
	}

	c.logger.Error("All punch attempts failed.", zap.Int("attempts", c.cfg.Run.MaxAttempts))
	return ErrAttemptsExhausted
}

// attempt opens a fresh session, logs in, and punches. The session is always
// closed before returning so every retry starts from a clean browser.
func (c *Controller) attempt(ctx context.Context, action portal.Action) error {
	session, err := c.newSession(ctx)
	if err != nil {
		return fmt.Errorf("opening portal session: %w", err)
	}
	defer session.Close()

	if err := session.Login(ctx); err != nil {
		return err
	}
	return session.Punch(ctx, action)
}

// startDelay sleeps a uniform random duration within the configured window.
// Cron fires the run at the same instant every day; the jitter keeps the
// punch times from forming a perfectly regular pattern.
func (c *Controller) startDelay(ctx context.Context) error {
	if c.skipDelay {
		return nil
	}
	window := c.cfg.Run.DelayMax - c.cfg.Run.DelayMin
	if window <= 0 && c.cfg.Run.DelayMin <= 0 {
		return nil
	}
	delay := c.cfg.Run.DelayMin
	if window > 0 {
		delay += time.Duration(c.rng.Int63n(int64(window) + 1))
	}
	c.logger.Info("Delaying the run start.", zap.Duration("delay", delay.Round(time.Second)))
	return c.sleep(ctx, delay)
}

// notifySuccess fires the Telegram message. Delivery failure never turns a
// successful punch into a failed run.
func (c *Controller) notifySuccess(ctx context.Context, action portal.Action) {
	text := fmt.Sprintf("✅ <b>%s</b> punched at %s",
		action.Label(), c.now().Format("2006-01-02 15:04:05"))
	if err := c.notifier.Send(ctx, text); err != nil {
		c.logger.Warn("Success notification could not be delivered.", zap.Error(err))
	}
}

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
