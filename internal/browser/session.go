// File: internal/browser/session.go

// Package browser wraps chromedp behind the small set of page primitives the
// portal flow needs. Every attempt gets its own Session backed by a fresh
// browser process; nothing is reused between attempts.
package browser

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kitsched/autopunch/internal/config"
)

// Session owns one isolated browsing context: a dedicated exec allocator
// (browser process) plus one tab. Close tears the whole thing down.
type Session struct {
	id     string
	ctx    context.Context
	logger *zap.Logger
	cfg    *config.Config
	rng    *rand.Rand

	cancelTab   context.CancelFunc
	cancelAlloc context.CancelFunc

	closeOnce sync.Once
}

// NewSession launches a fresh browser process and opens a single tab.
// The caller must Close the session; nothing survives it.
func NewSession(parentCtx context.Context, cfg *config.Config, logger *zap.Logger) (*Session, error) {
	sessionID := uuid.New().String()
	log := logger.Named("browser").With(zap.String("session_id", sessionID))

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Browser.Headless),
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(cfg.Browser.UserAgent),
		chromedp.Flag("lang", cfg.Browser.Locale),
		chromedp.WindowSize(cfg.Browser.ViewportWidth, cfg.Browser.ViewportHeight),
	)
	if cfg.Browser.Timezone != "" {
		opts = append(opts, chromedp.Env("TZ="+cfg.Browser.Timezone))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(parentCtx, opts...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx)

	s := &Session{
		id:          sessionID,
		ctx:         tabCtx,
		logger:      log,
		cfg:         cfg,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
		cancelTab:   cancelTab,
		cancelAlloc: cancelAlloc,
	}

	// Force the browser process to start now so a broken Chrome install
	// surfaces here instead of mid-flow, and pin the emulated locale and
	// timezone; the portal renders punch times in Taipei local time.
	if err := chromedp.Run(tabCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		if cfg.Browser.Timezone != "" {
			if err := emulation.SetTimezoneOverride(cfg.Browser.Timezone).Do(ctx); err != nil {
				return err
			}
		}
		if cfg.Browser.Locale != "" {
			return emulation.SetLocaleOverride().WithLocale(cfg.Browser.Locale).Do(ctx)
		}
		return nil
	})); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	log.Debug("Browser session started.")
	return s, nil
}

// ID returns the unique identifier for the session.
func (s *Session) ID() string {
	return s.id
}

// Close terminates the tab and the browser process. Safe to call twice.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.logger.Debug("Closing browser session.")
		if s.cancelTab != nil {
			s.cancelTab()
		}
		if s.cancelAlloc != nil {
			s.cancelAlloc()
		}
	})
}

// run executes chromedp actions under the session lifetime, a per-call
// timeout, and the caller's context.
func (s *Session) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx, cancel := combineContext(s.ctx, ctx)
	defer cancel()

	if timeout > 0 {
		var tCancel context.CancelFunc
		runCtx, tCancel = context.WithTimeout(runCtx, timeout)
		defer tCancel()
	}
	return chromedp.Run(runCtx, actions...)
}

// queryOpt picks the chromedp query mode for a selector candidate. XPath
// candidates (used where the original markup was only matchable by text
// content) go through the DOM search API; everything else is a CSS query.
func queryOpt(selector string) chromedp.QueryOption {
	if strings.HasPrefix(selector, "//") || strings.HasPrefix(selector, "(") {
		return chromedp.BySearch
	}
	return chromedp.ByQuery
}

// Navigate loads url, waits for the document body, and then applies the
// configured settle wait to let late asynchronous updates land.
func (s *Session) Navigate(ctx context.Context, url string) error {
	s.logger.Debug("Navigating.", zap.String("url", url))

	navTimeout := s.cfg.Browser.NavigationTimeout
	if navTimeout <= 0 {
		navTimeout = 30 * time.Second
	}

	if err := s.run(ctx, navTimeout,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	); err != nil {
		return fmt.Errorf("navigation to %s failed: %w", url, err)
	}
	return s.WaitSettled(ctx, s.cfg.Browser.SettleWait)
}

// WaitVisible blocks until the selector resolves to a visible element or the
// timeout elapses.
func (s *Session) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	return s.run(ctx, timeout, chromedp.WaitVisible(selector, queryOpt(selector)))
}

// Click scrolls the element into view and clicks it.
func (s *Session) Click(ctx context.Context, selector string) error {
	if err := s.run(ctx, 15*time.Second,
		chromedp.ScrollIntoView(selector, queryOpt(selector)),
		chromedp.Click(selector, queryOpt(selector)),
	); err != nil {
		return fmt.Errorf("click failed for %q: %w", selector, err)
	}
	return nil
}

// ClearAndType focuses the element, clears its current value, and types text
// one keystroke at a time with a uniformly random delay in [minDelay,
// maxDelay] between keys, simulating human pacing.
func (s *Session) ClearAndType(ctx context.Context, selector string, text string, minDelay, maxDelay time.Duration) error {
	opt := queryOpt(selector)

	if err := s.run(ctx, 15*time.Second,
		chromedp.ScrollIntoView(selector, opt),
		chromedp.Click(selector, opt),
		chromedp.SetValue(selector, "", opt),
		chromedp.Focus(selector, opt),
	); err != nil {
		return fmt.Errorf("could not focus %q for typing: %w", selector, err)
	}

	for _, r := range text {
		if err := s.run(ctx, 10*time.Second, chromedp.KeyEvent(string(r))); err != nil {
			return fmt.Errorf("keystroke failed for %q: %w", selector, err)
		}
		if maxDelay > minDelay {
			jitter := time.Duration(s.rng.Int63n(int64(maxDelay - minDelay)))
			time.Sleep(minDelay + jitter)
		} else if minDelay > 0 {
			time.Sleep(minDelay)
		}
	}
	return nil
}

// PressEnter sends the Enter key to the focused element.
func (s *Session) PressEnter(ctx context.Context) error {
	return s.run(ctx, 10*time.Second, chromedp.KeyEvent(kb.Enter))
}

// CurrentURL reports the location of the page.
func (s *Session) CurrentURL(ctx context.Context) (string, error) {
	var loc string
	if err := s.run(ctx, 10*time.Second, chromedp.Location(&loc)); err != nil {
		return "", fmt.Errorf("could not read current location: %w", err)
	}
	return loc, nil
}

// VisibleText returns the text content of the first element matching
// selector, or an error if none appears within timeout.
func (s *Session) VisibleText(ctx context.Context, selector string, timeout time.Duration) (string, error) {
	var text string
	if err := s.run(ctx, timeout, chromedp.Text(selector, &text, queryOpt(selector))); err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// WaitSettled pauses for the given settle delay so asynchronous page updates
// can complete before the next probe. A non-positive delay is a no-op.
func (s *Session) WaitSettled(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	return s.run(ctx, 0, chromedp.Sleep(d))
}

// Screenshot captures a full-page screenshot into the configured directory.
// It is a pure debugging side effect: disabled unless browser.debug is set,
// and never allowed to fail the flow.
func (s *Session) Screenshot(ctx context.Context, label string) {
	if !s.cfg.Browser.Debug {
		return
	}

	var buf []byte
	if err := s.run(ctx, 15*time.Second, chromedp.FullScreenshot(&buf, 90)); err != nil {
		s.logger.Warn("Screenshot capture failed.", zap.String("label", label), zap.Error(err))
		return
	}

	dir := s.cfg.Browser.ScreenshotDir
	if err := os.MkdirAll(dir, 0o755); err != nil {
		s.logger.Warn("Could not create screenshot directory.", zap.String("dir", dir), zap.Error(err))
		return
	}
	name := fmt.Sprintf("%s_%s.png", label, time.Now().Format("20060102_150405"))
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		s.logger.Warn("Could not write screenshot.", zap.String("path", path), zap.Error(err))
		return
	}
	s.logger.Info("Screenshot saved.", zap.String("path", path))
}
