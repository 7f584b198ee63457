// File: internal/otp/extract_test.go
package otp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractKeywordAnchored(t *testing.T) {
	e := Extractor{}

	cases := []struct {
		name string
		text string
		want string
	}{
		{"traditional chinese marker", "您的認證碼為 483920 請於十分鐘內輸入", "483920"},
		{"verification code marker", "Your verification code: 123456", "123456"},
		{"short code after otp label", "Your OTP is: 7261", "7261"},
		{"marker with fullwidth colon", "驗證碼：987654，請勿告知他人", "987654"},
		{"marker without separator", "確認碼55443322", "55443322"},
		{"case insensitive marker", "VERIFICATION CODE 024680", "024680"},
		{"generic code marker", "您的代碼: 1357", "1357"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := e.Extract(tc.text)
			assert.True(t, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestExtractKeywordWinsOverOtherDigits(t *testing.T) {
	e := Extractor{}
	// The date-looking run appears first, but the anchored rule must win.
	got, ok := e.Extract("Sent 20260823. 驗證碼: 112233")
	assert.True(t, ok)
	assert.Equal(t, "112233", got)
}

func TestExtractStandaloneRuns(t *testing.T) {

	t.Run("prefers run of expected length", func(t *testing.T) {
		e := Extractor{ExpectedLength: 6}
		got, ok := e.Extract("ref 1234 then 567890 end")
		assert.True(t, ok)
		assert.Equal(t, "567890", got)
	})

	t.Run("falls back to first run in document order", func(t *testing.T) {
		e := Extractor{ExpectedLength: 6}
		got, ok := e.Extract("first 1234 then 54321")
		assert.True(t, ok)
		assert.Equal(t, "1234", got)
	})

	t.Run("zero value extractor defaults to six digits", func(t *testing.T) {
		e := Extractor{}
		got, ok := e.Extract("a 12345 b 654321 c")
		assert.True(t, ok)
		assert.Equal(t, "654321", got)
	})

	t.Run("long runs are not codes", func(t *testing.T) {
		e := Extractor{}
		_, ok := e.Extract("order number 123456789 only")
		assert.False(t, ok)
	})

	t.Run("short runs are not codes", func(t *testing.T) {
		e := Extractor{}
		_, ok := e.Extract("room 101, floor 42")
		assert.False(t, ok)
	})

	t.Run("no digits at all", func(t *testing.T) {
		e := Extractor{}
		_, ok := e.Extract("nothing numeric here")
		assert.False(t, ok)
	})

	t.Run("empty text", func(t *testing.T) {
		e := Extractor{}
		_, ok := e.Extract("")
		assert.False(t, ok)
	})
}

func TestExtractBoundaryLengths(t *testing.T) {
	e := Extractor{}

	got, ok := e.Extract("pin 0042 end")
	assert.True(t, ok)
	assert.Equal(t, "0042", got)

	got, ok = e.Extract("token 86427531 end")
	assert.True(t, ok)
	assert.Equal(t, "86427531", got)
}
