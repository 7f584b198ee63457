// File: internal/portal/portal_test.go
package portal

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/kitsched/autopunch/internal/config"
)

// fakePage is a scripted Page implementation. Visibility is driven by the
// visible set; hooks let a test mutate page state mid-flow (e.g. the OTP
// input disappearing after auto-submit).
type fakePage struct {
	visible map[string]bool
	texts   map[string]string
	url     string

	probed       []string
	clicked      []string
	navigated    []string
	typed        map[string]string
	screenshots  []string
	enterPresses int

	onType     func(selector, text string)
	onClick    func(selector string)
	onNavigate func(url string) string
}

func newFakePage() *fakePage {
	return &fakePage{
		visible: make(map[string]bool),
		texts:   make(map[string]string),
		typed:   make(map[string]string),
	}
}

func (p *fakePage) show(selectors ...string) {
	for _, s := range selectors {
		p.visible[s] = true
	}
}

var errNotVisible = errors.New("not visible")

func (p *fakePage) Navigate(_ context.Context, url string) error {
	p.navigated = append(p.navigated, url)
	p.url = url
	// onNavigate models a server-side redirect, e.g. an unauthenticated
	// request to the sub-portal bouncing back to the login page.
	if p.onNavigate != nil {
		p.url = p.onNavigate(url)
	}
	return nil
}

func (p *fakePage) WaitVisible(_ context.Context, selector string, _ time.Duration) error {
	p.probed = append(p.probed, selector)
	if p.visible[selector] {
		return nil
	}
	return errNotVisible
}

func (p *fakePage) Click(_ context.Context, selector string) error {
	p.clicked = append(p.clicked, selector)
	if p.onClick != nil {
		p.onClick(selector)
	}
	return nil
}

func (p *fakePage) ClearAndType(_ context.Context, selector, text string, _, _ time.Duration) error {
	p.typed[selector] = text
	if p.onType != nil {
		p.onType(selector, text)
	}
	return nil
}

func (p *fakePage) PressEnter(context.Context) error {
	p.enterPresses++
	return nil
}

func (p *fakePage) CurrentURL(context.Context) (string, error) {
	return p.url, nil
}

func (p *fakePage) VisibleText(_ context.Context, selector string, _ time.Duration) (string, error) {
	if text, ok := p.texts[selector]; ok {
		return text, nil
	}
	return "", errNotVisible
}

func (p *fakePage) WaitSettled(context.Context, time.Duration) error { return nil }

func (p *fakePage) Screenshot(_ context.Context, label string) {
	p.screenshots = append(p.screenshots, label)
}

// fakeCodes is a scripted CodeSource.
type fakeCodes struct {
	code  string
	err   error
	calls int
	after time.Time
}

func (c *fakeCodes) WaitAndFetch(_ context.Context, after time.Time) (string, error) {
	c.calls++
	c.after = after
	return c.code, c.err
}

func testConfig() *config.Config {
	return &config.Config{
		Portal: config.PortalConfig{
			LoginURL:  "https://bsignin.104.com.tw/login",
			PortalURL: "https://pro.104.com.tw/psc2",
			Account:   "someone@example.com",
			Password:  "hunter2",
		},
		Browser: config.BrowserConfig{
			LocateTimeout: time.Millisecond,
			SettleWait:    0,
		},
		Mailbox: config.MailboxConfig{
			Address:  "inbox@example.com",
			Password: "app-password",
		},
	}
}

func newTestFlow(page *fakePage, cfg *config.Config, codes CodeSource) *Flow {
	return NewFlow(page, cfg, codes, zap.NewNop())
}
