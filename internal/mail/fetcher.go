// File: internal/mail/fetcher.go

// Package mail retrieves verification codes from an IMAP mailbox. One Fetch
// is a full connect-search-scan cycle over a fresh connection; Poller repeats
// cycles until a code arrives or the wait budget runs out.
package mail

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	gomail "github.com/emersion/go-message/mail"
	"go.uber.org/zap"

	"github.com/kitsched/autopunch/internal/config"
	"github.com/kitsched/autopunch/internal/otp"
)

// candidateMessage is the decoded form of one inbox message, reduced to the
// fields the scan needs. Keeping it plain makes the scan logic testable
// without a server.
type candidateMessage struct {
	senders []string
	subject string
	date    time.Time
	body    string
}

// Fetcher performs one-shot verification code lookups against the mailbox.
// Every call dials a fresh connection; IMAP sessions are cheap at this rate
// and a stale connection must never stall a login attempt.
type Fetcher struct {
	cfg       config.MailboxConfig
	extractor otp.Extractor
	logger    *zap.Logger
}

// NewFetcher returns a Fetcher for the given mailbox.
func NewFetcher(cfg config.MailboxConfig, logger *zap.Logger) *Fetcher {
	return &Fetcher{
		cfg:       cfg,
		extractor: otp.Extractor{ExpectedLength: cfg.CodeLength},
		logger:    logger.Named("mail"),
	}
}

// Fetch scans the inbox once for a verification code delivered at or after
// the reference instant. Transport and authentication failures are logged
// and reported as not-found so the poller simply tries again; only a genuine
// code yields found=true.
func (f *Fetcher) Fetch(ctx context.Context, after time.Time) (code string, found bool) {
	messages, err := f.collect(ctx, after)
	if err != nil {
		f.logger.Warn("Mailbox scan failed; will retry. Check AUTOPUNCH_MAILBOX_ADDRESS/PASSWORD if this persists.",
			zap.Error(err))
		return "", false
	}

	for _, msg := range messages {
		if code, ok := f.inspect(msg, after); ok {
			return code, true
		}
	}
	return "", false
}

// collect connects, searches, and decodes up to MaxScan recent messages,
// newest first.
func (f *Fetcher) collect(ctx context.Context, after time.Time) ([]candidateMessage, error) {
	addr := fmt.Sprintf("%s:%d", f.cfg.Host, f.cfg.Port)
	client, err := imapclient.DialTLS(addr, nil)
	if err != nil {
		return nil, fmt.Errorf("connecting to IMAP %s: %w", addr, err)
	}
	defer func() { _ = client.Logout().Wait() }()

	if err := client.Login(f.cfg.Address, f.cfg.Password).Wait(); err != nil {
		return nil, fmt.Errorf("IMAP authentication failed: %w", err)
	}

	if _, err := client.Select("INBOX", nil).Wait(); err != nil {
		return nil, fmt.Errorf("selecting INBOX: %w", err)
	}

	// IMAP SINCE has day granularity; the per-message date check below does
	// the fine-grained filtering.
	criteria := &imap.SearchCriteria{
		Since: sinceDay(after),
	}
	searchData, err := client.UIDSearch(criteria, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("searching messages: %w", err)
	}

	uids := searchData.AllUIDs()
	if len(uids) == 0 {
		f.logger.Debug("No recent messages in the inbox yet.")
		return nil, nil
	}
	if len(uids) > f.cfg.MaxScan {
		uids = uids[len(uids)-f.cfg.MaxScan:]
	}

	bodySection := &imap.FetchItemBodySection{Peek: true}
	fetchOpts := &imap.FetchOptions{
		Envelope:    true,
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{bodySection},
	}

	fetchCmd := client.Fetch(imap.UIDSetNum(uids...), fetchOpts)

	var messages []candidateMessage
	for {
		msg := fetchCmd.Next()
		if msg == nil {
			break
		}
		buf, err := msg.Collect()
		if err != nil {
			continue
		}
		messages = append(messages, decodeMessage(buf, bodySection))
	}
	if err := fetchCmd.Close(); err != nil {
		return nil, fmt.Errorf("fetching messages: %w", err)
	}

	// Newest first: a retried login must find its own code, not an older one.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// inspect applies the acceptance rules to one message: sender allow-list,
// delivery time at or after the reference instant, then code extraction from
// the subject first and the body second.
func (f *Fetcher) inspect(msg candidateMessage, after time.Time) (string, bool) {
	if !f.senderAllowed(msg.senders) {
		return "", false
	}

	// Compare wall-clock fields only. Envelope dates arrive in arbitrary
	// zones while the reference instant is local; mixing offsets into the
	// comparison rejects fresh codes. Zero (unparseable) dates pass through.
	if !msg.date.IsZero() && naive(msg.date).Before(naive(after)) {
		f.logger.Debug("Skipping message older than the reference instant.",
			zap.Time("message_date", msg.date), zap.String("subject", msg.subject))
		return "", false
	}

	if code, ok := f.extractor.Extract(msg.subject); ok {
		f.logger.Info("Verification code found in message subject.", zap.String("subject", msg.subject))
		return code, true
	}
	if code, ok := f.extractor.Extract(msg.body); ok {
		f.logger.Info("Verification code found in message body.", zap.String("subject", msg.subject))
		return code, true
	}
	return "", false
}

func (f *Fetcher) senderAllowed(senders []string) bool {
	for _, s := range senders {
		lower := strings.ToLower(s)
		for _, allowed := range f.cfg.Senders {
			if strings.Contains(lower, strings.ToLower(allowed)) {
				return true
			}
		}
	}
	return false
}

// sinceDay returns midnight of t's own calendar day. Truncating on absolute
// 24h boundaries would round on UTC days and, west of UTC, start the search
// a day late.
func sinceDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// naive strips the location from a timestamp, keeping its wall-clock fields.
func naive(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}

// decodeMessage reduces a fetched message buffer to a candidateMessage.
func decodeMessage(buf *imapclient.FetchMessageBuffer, section *imap.FetchItemBodySection) candidateMessage {
	msg := candidateMessage{}

	if buf.Envelope != nil {
		msg.subject = buf.Envelope.Subject
		msg.date = buf.Envelope.Date
		for _, from := range buf.Envelope.From {
			msg.senders = append(msg.senders, from.Name, from.Addr())
		}
	}

	if raw := buf.FindBodySection(section); raw != nil {
		msg.body = extractReadableBody(raw)
	}
	return msg
}

var htmlTagPattern = regexp.MustCompile(`<[^>]+>`)

// extractReadableBody walks the MIME tree and returns text suitable for code
// extraction: text/plain when present, tag-stripped text/html otherwise.
// Attachments are skipped. A message that fails MIME parsing is treated as
// raw plain text.
func extractReadableBody(raw []byte) string {
	mr, err := gomail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		return string(raw)
	}
	defer mr.Close()

	var plain, html string
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}

		header, ok := part.Header.(*gomail.InlineHeader)
		if !ok {
			continue
		}
		contentType, _, _ := header.ContentType()
		body, readErr := io.ReadAll(part.Body)
		if readErr != nil {
			continue
		}

		switch {
		case strings.HasPrefix(contentType, "text/plain") && plain == "":
			plain = string(body)
		case strings.HasPrefix(contentType, "text/html") && html == "":
			html = string(body)
		}
	}

	if plain != "" {
		return plain
	}
	return stripTags(html)
}

func stripTags(html string) string {
	return strings.TrimSpace(htmlTagPattern.ReplaceAllString(html, " "))
}
