// File: internal/portal/locator.go
package portal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// ErrNotFound reports that no candidate selector resolved to a visible
// element. For optional roles this is an information-bearing absence, not a
// failure.
var ErrNotFound = errors.New("element not found")

// Candidates is an ordered list of alternative selectors for one logical UI
// role. Order encodes preference: most specific and reliable first.
type Candidates []string

// Locator resolves UI roles against an ordered candidate list. It never
// retries beyond the per-candidate timeout; retrying a whole attempt is the
// attempt controller's job.
type Locator struct {
	page   Page
	logger *zap.Logger
}

// NewLocator returns a Locator probing through page.
func NewLocator(page Page, logger *zap.Logger) *Locator {
	return &Locator{page: page, logger: logger.Named("locator")}
}

// Locate tries each candidate in order with the given per-candidate timeout
// and returns the first selector that resolves to a visible element. No
// further candidates are tried after a success.
//
// When the list is exhausted: a required role logs an error and captures a
// diagnostic screenshot before returning ErrNotFound; an optional role
// returns ErrNotFound quietly so the caller can treat absence as a valid
// state (e.g. the 2FA step not being present).
func (l *Locator) Locate(ctx context.Context, role string, candidates Candidates, perCandidateTimeout time.Duration, required bool) (string, error) {
	for _, selector := range candidates {
		if err := l.page.WaitVisible(ctx, selector, perCandidateTimeout); err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			continue
		}
		l.logger.Debug("Located element.", zap.String("role", role), zap.String("selector", selector))
		return selector, nil
	}

	if required {
		l.logger.Error("Required element not found; selectors may be stale.", zap.String("role", role))
		l.page.Screenshot(ctx, "error_no_"+role)
		return "", fmt.Errorf("required %s: %w", role, ErrNotFound)
	}

	l.logger.Debug("Optional element absent.", zap.String("role", role))
	return "", ErrNotFound
}
