// File: internal/mail/fetcher_test.go
package mail

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kitsched/autopunch/internal/config"
)

func testMailboxConfig() config.MailboxConfig {
	return config.MailboxConfig{
		Host:       "imap.gmail.com",
		Port:       993,
		Address:    "inbox@example.com",
		Password:   "app-password",
		Senders:    []string{"104.com.tw", "service@104.com.tw"},
		CodeLength: 6,
		MaxScan:    20,
	}
}

func newTestFetcher(t *testing.T) *Fetcher {
	t.Helper()
	return NewFetcher(testMailboxConfig(), zap.NewNop())
}

func TestInspect_AcceptsFreshAllowedSender(t *testing.T) {
	f := newTestFetcher(t)
	after := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)

	msg := candidateMessage{
		senders: []string{"104人力銀行", "noreply@104.com.tw"},
		subject: "104 登入驗證",
		date:    after.Add(10 * time.Second),
		body:    "您的驗證碼：483920，請於十分鐘內輸入。",
	}

	code, ok := f.inspect(msg, after)
	require.True(t, ok)
	assert.Equal(t, "483920", code)
}

func TestInspect_SubjectTakesPriorityOverBody(t *testing.T) {
	f := newTestFetcher(t)
	after := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)

	msg := candidateMessage{
		senders: []string{"service@104.com.tw"},
		subject: "驗證碼 111111",
		date:    after.Add(time.Minute),
		body:    "驗證碼 222222",
	}

	code, ok := f.inspect(msg, after)
	require.True(t, ok)
	assert.Equal(t, "111111", code)
}

func TestInspect_RejectsUnknownSender(t *testing.T) {
	f := newTestFetcher(t)
	after := time.Now()

	msg := candidateMessage{
		senders: []string{"Phishy", "codes@example.org"},
		subject: "驗證碼 483920",
		date:    after.Add(time.Minute),
	}

	_, ok := f.inspect(msg, after)
	assert.False(t, ok)
}

func TestInspect_SenderMatchIsCaseInsensitiveSubstring(t *testing.T) {
	f := newTestFetcher(t)
	after := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)

	msg := candidateMessage{
		senders: []string{"NOREPLY@104.COM.TW"},
		subject: "驗證碼 483920",
		date:    after.Add(time.Minute),
	}

	_, ok := f.inspect(msg, after)
	assert.True(t, ok)
}

func TestInspect_RejectsStaleMessage(t *testing.T) {
	f := newTestFetcher(t)
	after := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)

	msg := candidateMessage{
		senders: []string{"service@104.com.tw"},
		subject: "驗證碼 483920",
		date:    after.Add(-time.Hour),
	}

	_, ok := f.inspect(msg, after)
	assert.False(t, ok)
}

func TestInspect_ZeroDatePassesThrough(t *testing.T) {
	f := newTestFetcher(t)
	after := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)

	msg := candidateMessage{
		senders: []string{"service@104.com.tw"},
		subject: "驗證碼 483920",
	}

	code, ok := f.inspect(msg, after)
	require.True(t, ok)
	assert.Equal(t, "483920", code)
}

func TestInspect_ComparesWallClockAcrossZones(t *testing.T) {
	f := newTestFetcher(t)
	// Reference 09:00 local wall clock; message stamped 09:00:30 in a zone
	// eight hours behind. Absolute time would call it stale; wall-clock
	// comparison accepts it.
	after := time.Date(2025, 6, 2, 9, 0, 0, 0, time.FixedZone("CST", 8*3600))
	msgDate := time.Date(2025, 6, 2, 9, 0, 30, 0, time.UTC)

	msg := candidateMessage{
		senders: []string{"service@104.com.tw"},
		subject: "驗證碼 483920",
		date:    msgDate,
	}

	_, ok := f.inspect(msg, after)
	assert.True(t, ok)
}

func TestInspect_NoCodeAnywhere(t *testing.T) {
	f := newTestFetcher(t)
	after := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)

	msg := candidateMessage{
		senders: []string{"service@104.com.tw"},
		subject: "104 會員權益通知",
		date:    after.Add(time.Minute),
		body:    "親愛的會員您好，感謝您的使用。",
	}

	_, ok := f.inspect(msg, after)
	assert.False(t, ok)
}

func TestStripTags(t *testing.T) {
	html := `<html><body><p>您的驗證碼：</p><b>483920</b></body></html>`
	assert.Equal(t, "您的驗證碼：  483920", stripTags(html))
}

func TestExtractReadableBody_UnparseableFallsBackToRaw(t *testing.T) {
	raw := []byte("驗證碼 483920")
	assert.Equal(t, "驗證碼 483920", extractReadableBody(raw))
}

func TestExtractReadableBody_PlainTextPart(t *testing.T) {
	raw := []byte("From: service@104.com.tw\r\n" +
		"To: inbox@example.com\r\n" +
		"Subject: code\r\n" +
		"Content-Type: text/plain; charset=utf-8\r\n" +
		"\r\n" +
		"Your verification code is: 7261\r\n")

	body := extractReadableBody(raw)
	assert.Contains(t, body, "7261")
}

func TestExtractReadableBody_HTMLOnlyIsTagStripped(t *testing.T) {
	raw := []byte("From: service@104.com.tw\r\n" +
		"To: inbox@example.com\r\n" +
		"Subject: code\r\n" +
		"Content-Type: text/html; charset=utf-8\r\n" +
		"\r\n" +
		"<p>驗證碼：<b>483920</b></p>\r\n")

	body := extractReadableBody(raw)
	assert.NotContains(t, body, "<b>")
	assert.Contains(t, body, "483920")
}

func TestSinceDay(t *testing.T) {
	zone := time.FixedZone("PDT", -7*3600)

	t.Run("midnight of the local calendar day", func(t *testing.T) {
		after := time.Date(2026, 8, 23, 20, 0, 0, 0, zone)
		want := time.Date(2026, 8, 23, 0, 0, 0, 0, zone)
		assert.Equal(t, want, sinceDay(after))
	})

	t.Run("never lands on the next calendar day west of UTC", func(t *testing.T) {
		after := time.Date(2026, 8, 23, 20, 0, 0, 0, zone)
		got := sinceDay(after)
		assert.False(t, got.After(after))
		assert.Equal(t, 23, got.Day())
	})

	t.Run("utc input is unchanged except the clock", func(t *testing.T) {
		after := time.Date(2026, 8, 23, 2, 15, 0, 0, time.UTC)
		assert.Equal(t, time.Date(2026, 8, 23, 0, 0, 0, 0, time.UTC), sinceDay(after))
	})
}

func TestNaive(t *testing.T) {
	stamped := time.Date(2025, 6, 2, 17, 30, 5, 0, time.FixedZone("CST", 8*3600))
	want := time.Date(2025, 6, 2, 17, 30, 5, 0, time.UTC)
	assert.Equal(t, want, naive(stamped))
}
