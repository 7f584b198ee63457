// File: internal/portal/punch_test.go
package portal

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAction(t *testing.T) {
	testCases := []struct {
		input   string
		want    Action
		wantErr bool
	}{
		{input: "clock-in", want: ActionClockIn},
		{input: "clock-out", want: ActionClockOut},
		{input: " Clock-In ", want: ActionClockIn},
		{input: "clockin", wantErr: true},
		{input: "", wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			got, err := ParseAction(tc.input)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestActionLabel(t *testing.T) {
	assert.Equal(t, "Clock In", ActionClockIn.Label())
	assert.Equal(t, "Clock Out", ActionClockOut.Label())
}

func TestPunch_ConfirmedAndDismissed(t *testing.T) {
	page := newFakePage()
	page.url = "https://pro.104.com.tw/psc2"
	page.show(`span.btn.btn-lg.btn-block`)
	page.onClick = func(selector string) {
		if selector == `span.btn.btn-lg.btn-block` {
			page.show(
				`//div[contains(@class, "J104BoxDialog")]//*[contains(@class, "title") and contains(., "打卡成功")]`,
				`.J104BoxDialog .close.fa`,
			)
		}
	}
	flow := newTestFlow(page, testConfig(), nil)

	err := flow.Punch(context.Background(), ActionClockIn)

	require.NoError(t, err)
	assert.Contains(t, page.clicked, `span.btn.btn-lg.btn-block`)
	assert.Contains(t, page.clicked, `.J104BoxDialog .close.fa`)
	assert.Contains(t, page.screenshots, "09_punch_confirmed")
}

func TestPunch_NoConfirmationIsWeakSuccess(t *testing.T) {
	page := newFakePage()
	page.url = "https://pro.104.com.tw/psc2"
	page.show(`span.btn.btn-lg.btn-block`)
	flow := newTestFlow(page, testConfig(), nil)

	err := flow.Punch(context.Background(), ActionClockOut)

	require.NoError(t, err)
	assert.Contains(t, page.screenshots, "09_punch_unconfirmed")
}

func TestPunch_NavigatesWhenOffSubPortal(t *testing.T) {
	page := newFakePage()
	page.url = "https://pro.104.com.tw/"
	page.show(`span.btn.btn-lg.btn-block`)
	flow := newTestFlow(page, testConfig(), nil)

	err := flow.Punch(context.Background(), ActionClockIn)

	require.NoError(t, err)
	assert.Contains(t, page.navigated, "https://pro.104.com.tw/psc2")
}

func TestPunch_MissingButtonFails(t *testing.T) {
	page := newFakePage()
	page.url = "https://pro.104.com.tw/psc2"
	flow := newTestFlow(page, testConfig(), nil)

	err := flow.Punch(context.Background(), ActionClockIn)

	require.ErrorIs(t, err, ErrNotFound)
	assert.Contains(t, page.screenshots, "error_no_punch_button")
}
