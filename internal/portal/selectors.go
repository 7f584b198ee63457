// File: internal/portal/selectors.go
package portal

// Selector candidate lists for each UI role on the portal. The portal has no
// stable markup contract, so each role carries fallbacks ordered from most to
// least specific. XPath entries (prefixed //) cover cases only matchable by
// text content.
//
// Markup churn should be absorbed here, in data, not in the flow logic.
var (
	accountFieldCandidates = Candidates{
		`input[name="account"]`,
		`input[name="username"]`,
		`input[name="email"]`,
		`input[type="email"]`,
		`input[placeholder*="帳號"]`,
		`input[placeholder*="Email"]`,
		`#account`,
		`#username`,
	}

	passwordFieldCandidates = Candidates{
		`input[name="password"]`,
		`input[type="password"]`,
		`#password`,
	}

	loginButtonCandidates = Candidates{
		`button[type="submit"]`,
		`//button[contains(., "登入")]`,
		`input[type="submit"]`,
		`//a[contains(., "登入")]`,
		`.login-btn`,
		`#loginBtn`,
	}

	otpInputCandidates = Candidates{
		`input[name="otp"]`,
		`input[name="verificationCode"]`,
		`input[name="verification_code"]`,
		`input[name="code"]`,
		`input[placeholder*="驗證碼"]`,
		`input[placeholder*="認證碼"]`,
		`input[placeholder*="verification"]`,
		`input[type="tel"]`,
		`input[maxlength="6"]`,
		`.otp-input input`,
		`#verificationCode`,
		`#otp`,
	}

	// otpProbeSelector checks whether the OTP input is still on screen after
	// typing; the platform usually auto-submits once the code is complete.
	otpProbeSelector = `input[name="otp"]`

	verifyButtonCandidates = Candidates{
		`//button[contains(., "驗證")]`,
		`//button[contains(., "確認")]`,
		`//button[contains(., "送出")]`,
		`button[type="submit"]`,
	}

	serviceLinkCandidates = Candidates{
		`a[href="https://pro.104.com.tw/"]`,
		`a.block.py-24`,
		`.MultipleProduct__product a`,
		`//a[.//img[contains(@src, "104logo_pro")]]`,
		`//a[contains(., "企業大師")]`,
	}

	subPortalEntryCandidates = Candidates{
		`div.-major.widget.psc`,
		`//a[contains(., "私人秘書")]`,
		`//div[contains(@class, "widget") and contains(., "私人秘書")]`,
		`.widget.psc`,
	}

	punchButtonCandidates = Candidates{
		`span.btn.btn-lg.btn-block`,
		`.PSC-HomeWidget.clockIn span.btn`,
		`.PSC-HomeWidget span.btn-block`,
		`//span[contains(@class, "btn-block") and contains(., "打卡")]`,
		`.PSC-ClockIn-root span.btn`,
		`//span[contains(., "打卡")]`,
	}

	// The punch confirmation is a transient J104BoxDialog with a 打卡成功
	// title; it is unreliable across portal versions.
	punchSuccessCandidates = Candidates{
		`//div[contains(@class, "J104BoxDialog")]//*[contains(@class, "title") and contains(., "打卡成功")]`,
		`//div[contains(@class, "J104BoxDialog")][contains(., "打卡成功")]`,
		`//*[contains(text(), "打卡成功")]`,
	}

	dialogCloseCandidates = Candidates{
		`.J104BoxDialog .close.fa`,
		`.J104BoxDialog .close`,
		`//div[contains(@class, "J104BoxDialog")]//button[contains(., "確認")]`,
		`//div[contains(@class, "J104BoxDialog")]//button[contains(., "確定")]`,
		`//button[contains(., "確認")]`,
		`//button[contains(., "確定")]`,
	}

	loginErrorSelector = `.error-message, .alert-danger, .error, .text-danger`
)
