// File: internal/portal/punch.go
package portal

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Action selects which punch direction a run performs. Both directions press
// the same portal control; the distinction matters for logging and the
// success notification.
type Action string

const (
	ActionClockIn  Action = "clock-in"
	ActionClockOut Action = "clock-out"
)

// ParseAction validates a CLI-provided action string.
func ParseAction(s string) (Action, error) {
	switch Action(strings.ToLower(strings.TrimSpace(s))) {
	case ActionClockIn:
		return ActionClockIn, nil
	case ActionClockOut:
		return ActionClockOut, nil
	default:
		return "", fmt.Errorf("unknown action %q (want %q or %q)", s, ActionClockIn, ActionClockOut)
	}
}

// Label returns the human-facing name used in logs and notifications.
func (a Action) Label() string {
	if a == ActionClockOut {
		return "Clock Out"
	}
	return "Clock In"
}

const (
	punchConfirmTimeout  = 5 * time.Second
	dismissLocateTimeout = 3 * time.Second
)

// Punch presses the punch control on the sub-portal page and looks for the
// transient confirmation dialog. The dialog is unreliable across portal
// versions, so its absence after a successful click downgrades to a loud
// warning rather than a failure; the click itself is the committed action.
func (f *Flow) Punch(ctx context.Context, action Action) error {
	locateTimeout := f.cfg.Browser.LocateTimeout

	currentURL, err := f.page.CurrentURL(ctx)
	if err != nil {
		return fmt.Errorf("reading location before punch: %w", err)
	}
	if !strings.Contains(currentURL, "psc2") {
		f.logger.Warn("Not on the sub-portal page; navigating before punching.",
			zap.String("current_url", currentURL))
		if nerr := f.page.Navigate(ctx, f.cfg.Portal.PortalURL); nerr != nil {
			f.logger.Warn("Sub-portal navigation did not complete.", zap.Error(nerr))
		}
	}

	punchSel, err := f.locator.Locate(ctx, "punch_button", punchButtonCandidates, locateTimeout, true)
	if err != nil {
		return err
	}

	f.logger.Info("Pressing punch button.", zap.String("action", action.Label()))
	if err := f.page.Click(ctx, punchSel); err != nil {
		return fmt.Errorf("clicking punch button: %w", err)
	}
	_ = f.page.WaitSettled(ctx, f.cfg.Browser.SettleWait)
	f.page.Screenshot(ctx, "08_after_punch")

	confirmSel, err := f.locator.Locate(ctx, "punch_confirmation", punchSuccessCandidates, punchConfirmTimeout, false)
	switch {
	case err == nil:
		f.logger.Info("Punch confirmation dialog observed.", zap.String("selector", confirmSel))
		f.page.Screenshot(ctx, "09_punch_confirmed")
		f.dismissConfirmation(ctx)
	case errors.Is(err, ErrNotFound):
		// The click went through; treat missing confirmation as weak success.
		f.logger.Warn("Punch button was pressed but no confirmation dialog appeared; verify the record in the portal.")
		f.page.Screenshot(ctx, "09_punch_unconfirmed")
	default:
		return err
	}

	f.logger.Info("Punch flow finished.", zap.String("action", action.Label()))
	return nil
}

// dismissConfirmation closes the success dialog so a final screenshot shows
// the page state underneath. Purely cosmetic and fully best effort.
func (f *Flow) dismissConfirmation(ctx context.Context) {
	closeSel, err := f.locator.Locate(ctx, "dialog_close", dialogCloseCandidates, dismissLocateTimeout, false)
	if err != nil {
		f.logger.Debug("No close control on the confirmation dialog; leaving it.")
		return
	}
	if cerr := f.page.Click(ctx, closeSel); cerr != nil {
		f.logger.Debug("Could not dismiss the confirmation dialog.", zap.Error(cerr))
		return
	}
	_ = f.page.WaitSettled(ctx, fieldSettleDelay)
	f.page.Screenshot(ctx, "10_dialog_dismissed")
}
