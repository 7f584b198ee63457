// File: internal/browser/context.go
package browser

import (
	"context"
)

// combineContext creates a new context derived from primary that is canceled
// when either primary or secondary is canceled. It inherits values from
// primary, which matters for chromedp: the session context carries the CDP
// connection info while the caller's context carries the operational
// deadline.
func combineContext(primary, secondary context.Context) (context.Context, context.CancelFunc) {
	combined, cancel := context.WithCancel(primary)

	go func() {
		select {
		case <-secondary.Done():
			cancel()
		case <-combined.Done():
		}
	}()

	return combined, cancel
}
