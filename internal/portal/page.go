// File: internal/portal/page.go

// Package portal drives the 104 Pro portal: the multi-step login state
// machine and the punch action. All interaction happens through UI element
// location, never a documented API, so element lookup runs through ordered
// selector candidate lists that tolerate markup drift.
package portal

import (
	"context"
	"time"
)

// Page is the browser driver surface the portal flow consumes. The chromedp
// session implements it in production; tests substitute a scripted fake.
type Page interface {
	// Navigate loads the URL and waits for the page to settle.
	Navigate(ctx context.Context, url string) error
	// WaitVisible blocks until selector resolves to a visible element or the
	// timeout elapses.
	WaitVisible(ctx context.Context, selector string, timeout time.Duration) error
	// Click triggers the element matching selector.
	Click(ctx context.Context, selector string) error
	// ClearAndType empties the element and types text with a randomized
	// inter-keystroke delay in [minDelay, maxDelay].
	ClearAndType(ctx context.Context, selector, text string, minDelay, maxDelay time.Duration) error
	// PressEnter sends the Enter key to the focused element.
	PressEnter(ctx context.Context) error
	// CurrentURL reports the page location.
	CurrentURL(ctx context.Context) (string, error)
	// VisibleText returns the text of the first match, or an error if none
	// appears within timeout.
	VisibleText(ctx context.Context, selector string, timeout time.Duration) (string, error)
	// WaitSettled pauses for a settle delay.
	WaitSettled(ctx context.Context, d time.Duration) error
	// Screenshot captures a diagnostic screenshot; best effort, never fails
	// the flow.
	Screenshot(ctx context.Context, label string)
}

// CodeSource supplies a verification code for the two-factor step. The IMAP
// poller implements it.
type CodeSource interface {
	// WaitAndFetch polls for a code delivered at or after the reference
	// instant. An empty code with nil error means the wait budget elapsed.
	WaitAndFetch(ctx context.Context, after time.Time) (string, error)
}
