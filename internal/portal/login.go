// File: internal/portal/login.go
package portal

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kitsched/autopunch/internal/config"
)

// Timing constants for the login flow. The reference lookback pads the
// submit instant so clock skew or slow mail delivery cannot make a fresh
// code email look stale.
const (
	referenceLookback = 30 * time.Second

	credentialKeyDelayMin = 50 * time.Millisecond
	credentialKeyDelayMax = 150 * time.Millisecond
	otpKeyDelayMin        = 80 * time.Millisecond
	otpKeyDelayMax        = 200 * time.Millisecond

	fieldSettleDelay  = 500 * time.Millisecond
	otpSettleDelay    = 2 * time.Second
	autoSubmitWait    = 3 * time.Second
	otpProbeTimeout   = 2 * time.Second
	loginErrorTimeout = 2 * time.Second
)

// Flow runs the portal interaction for one attempt: the login state machine
// and the punch action, over one Page.
type Flow struct {
	page    Page
	locator *Locator
	cfg     *config.Config
	codes   CodeSource
	logger  *zap.Logger

	// now is injectable for tests; the reference instant derives from it.
	now func() time.Time
}

// NewFlow assembles a Flow over the given page. codes may be nil when no
// mailbox is configured; the flow then fails only if the portal actually
// presents a 2FA step.
func NewFlow(page Page, cfg *config.Config, codes CodeSource, logger *zap.Logger) *Flow {
	return &Flow{
		page:    page,
		locator: NewLocator(page, logger),
		cfg:     cfg,
		codes:   codes,
		logger:  logger.Named("portal"),
		now:     time.Now,
	}
}

// Login walks the strictly sequential login states: credential entry,
// submit, the optional 2FA step, the optional service-selection and
// sub-portal steps, and the final URL-based success verification. Mandatory
// locate failures abort immediately with a descriptive cause; translating
// that into a retry is the attempt controller's job.
func (f *Flow) Login(ctx context.Context) error {
	locateTimeout := f.cfg.Browser.LocateTimeout

	f.logger.Info("Navigating to login page.", zap.String("url", f.cfg.Portal.LoginURL))
	if err := f.page.Navigate(ctx, f.cfg.Portal.LoginURL); err != nil {
		return fmt.Errorf("login page navigation: %w", err)
	}
	f.page.Screenshot(ctx, "01_login_page")

	// State 1: credential entry.
	accountSel, err := f.locator.Locate(ctx, "account_field", accountFieldCandidates, locateTimeout, true)
	if err != nil {
		return err
	}
	passwordSel, err := f.locator.Locate(ctx, "password_field", passwordFieldCandidates, locateTimeout, true)
	if err != nil {
		return err
	}

	if err := f.page.ClearAndType(ctx, accountSel, f.cfg.Portal.Account, credentialKeyDelayMin, credentialKeyDelayMax); err != nil {
		return fmt.Errorf("typing account: %w", err)
	}
	_ = f.page.WaitSettled(ctx, fieldSettleDelay)

	if err := f.page.ClearAndType(ctx, passwordSel, f.cfg.Portal.Password, credentialKeyDelayMin, credentialKeyDelayMax); err != nil {
		return fmt.Errorf("typing password: %w", err)
	}
	_ = f.page.WaitSettled(ctx, fieldSettleDelay)
	f.page.Screenshot(ctx, "02_credentials_filled")

	// Capture the reference instant before submitting: only code emails
	// received at or after this moment are acceptable.
	referenceInstant := f.now().Add(-referenceLookback)

	submitSel, err := f.locator.Locate(ctx, "login_button", loginButtonCandidates, locateTimeout, true)
	if err != nil {
		return err
	}
	if err := f.page.Click(ctx, submitSel); err != nil {
		return fmt.Errorf("clicking login button: %w", err)
	}
	f.logger.Info("Login submitted, waiting for page response.")
	_ = f.page.WaitSettled(ctx, f.cfg.Browser.SettleWait)
	f.page.Screenshot(ctx, "03_after_submit")

	// State 2: two-factor detection. Absence means no 2FA is required (or
	// the session is already authenticated) and is not an error.
	otpSel, err := f.locator.Locate(ctx, "otp_input", otpInputCandidates, locateTimeout, false)
	switch {
	case err == nil:
		if err := f.resolveTwoFactor(ctx, otpSel, referenceInstant); err != nil {
			return err
		}
	case errors.Is(err, ErrNotFound):
		f.logger.Info("No 2FA input detected; continuing without a verification code.")
	default:
		return err
	}

	// State 4: post-login navigation, both sub-steps best effort. This runs
	// before the URL check: the service-selection page is served under the
	// login host, so verifying first would fail genuinely successful logins.
	// A rejected login gets redirected back to a login URL even after direct
	// navigation, so the check below still catches it.
	f.navigatePostLogin(ctx, locateTimeout)

	// State 5: success verification by URL.
	currentURL, err := f.page.CurrentURL(ctx)
	if err != nil {
		return fmt.Errorf("reading post-login location: %w", err)
	}
	f.logger.Info("Post-login location.", zap.String("url", currentURL))

	if strings.Contains(strings.ToLower(currentURL), "login") {
		if msg, terr := f.page.VisibleText(ctx, loginErrorSelector, loginErrorTimeout); terr == nil && msg != "" {
			f.logger.Error("Login rejected by portal.", zap.String("portal_message", msg))
		} else {
			f.logger.Error("Still on the login page after submit.")
		}
		f.page.Screenshot(ctx, "error_login_failed")
		return fmt.Errorf("login failed: still on login page")
	}

	f.logger.Info("Login successful.")
	return nil
}

// resolveTwoFactor fetches a code from the mailbox, types it, and makes sure
// it gets submitted. The platform usually auto-submits once the full code is
// typed; if the input is still visible afterwards we click a verify control,
// falling back to the Enter key.
func (f *Flow) resolveTwoFactor(ctx context.Context, otpSel string, after time.Time) error {
	f.logger.Info("2FA input detected; fetching verification code from mailbox.")

	if f.codes == nil || !f.cfg.Mailbox.Configured() {
		return fmt.Errorf("2FA required but mailbox access is not configured")
	}

	code, err := f.codes.WaitAndFetch(ctx, after)
	if err != nil {
		return fmt.Errorf("waiting for verification code: %w", err)
	}
	if code == "" {
		f.page.Screenshot(ctx, "error_no_verification_code")
		return fmt.Errorf("verification code did not arrive within the wait budget")
	}
	f.logger.Info("Verification code retrieved.", zap.Int("length", len(code)))

	if err := f.page.ClearAndType(ctx, otpSel, code, otpKeyDelayMin, otpKeyDelayMax); err != nil {
		return fmt.Errorf("typing verification code: %w", err)
	}
	_ = f.page.WaitSettled(ctx, otpSettleDelay)
	f.page.Screenshot(ctx, "04_code_filled")

	f.logger.Info("Waiting for OTP auto-submit.")
	_ = f.page.WaitSettled(ctx, autoSubmitWait)

	if err := f.page.WaitVisible(ctx, otpProbeSelector, otpProbeTimeout); err == nil {
		// Not auto-submitted; push it through manually.
		f.logger.Info("OTP input still present; submitting manually.")
		verifySel, lerr := f.locator.Locate(ctx, "verify_button", verifyButtonCandidates, f.cfg.Browser.LocateTimeout, false)
		if lerr == nil {
			if cerr := f.page.Click(ctx, verifySel); cerr != nil {
				return fmt.Errorf("clicking verify button: %w", cerr)
			}
		} else {
			f.logger.Info("No verify button found; submitting with Enter.")
			if kerr := f.page.PressEnter(ctx); kerr != nil {
				return fmt.Errorf("submitting code with Enter: %w", kerr)
			}
		}
	} else {
		f.logger.Info("OTP auto-submitted; page moved on.")
	}

	_ = f.page.WaitSettled(ctx, f.cfg.Browser.SettleWait)
	f.page.Screenshot(ctx, "05_after_verification")
	return nil
}

// navigatePostLogin handles the optional service-selection page and the
// sub-portal entry. The portal may already be past either step, so absence
// proceeds silently; the sub-portal falls back to direct navigation.
func (f *Flow) navigatePostLogin(ctx context.Context, locateTimeout time.Duration) {
	if serviceSel, err := f.locator.Locate(ctx, "service_link", serviceLinkCandidates, locateTimeout, false); err == nil {
		f.logger.Info("Service selection page detected; entering 104 Pro.")
		if cerr := f.page.Click(ctx, serviceSel); cerr != nil {
			f.logger.Warn("Could not click service link.", zap.Error(cerr))
		}
		_ = f.page.WaitSettled(ctx, f.cfg.Browser.SettleWait)
		f.page.Screenshot(ctx, "06_after_service_selection")
	} else {
		f.logger.Debug("No service selection page; likely already on the main page.")
	}

	if entrySel, err := f.locator.Locate(ctx, "subportal_entry", subPortalEntryCandidates, locateTimeout, false); err == nil {
		f.logger.Info("Entering the sub-portal.")
		if cerr := f.page.Click(ctx, entrySel); cerr != nil {
			f.logger.Warn("Could not click sub-portal entry.", zap.Error(cerr))
		}
		_ = f.page.WaitSettled(ctx, f.cfg.Browser.SettleWait)
		f.page.Screenshot(ctx, "07_after_subportal_entry")
	} else {
		f.logger.Info("Sub-portal entry not found; navigating directly.", zap.String("url", f.cfg.Portal.PortalURL))
		if nerr := f.page.Navigate(ctx, f.cfg.Portal.PortalURL); nerr != nil {
			f.logger.Warn("Direct sub-portal navigation did not complete.", zap.Error(nerr))
		}
		f.page.Screenshot(ctx, "07_direct_navigation")
	}
}
