// File: internal/otp/extract.go

// Package otp extracts numeric verification codes from free-form text.
// OTP emails are not guaranteed to use a fixed template, so recognition is a
// two-tier cascade: keyword-anchored matching first (avoids false positives
// from dates and amounts when a marker is present), then a standalone
// digit-run fallback for unanchored formats.
package otp

import (
	"regexp"
)

const (
	// MinLength and MaxLength bound the accepted code length.
	MinLength = 4
	MaxLength = 8

	// DefaultLength is the expected code length when none is configured.
	DefaultLength = 6
)

// keywordPatterns anchor a 4-8 digit capture to a bilingual set of
// verification-code markers, separated by optional punctuation or whitespace.
// Order matters: first match wins.
var keywordPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)驗證碼[：:\s]*(\d{4,8})`),
	regexp.MustCompile(`(?i)verification\s*code[：:\s]*(\d{4,8})`),
	regexp.MustCompile(`(?i)認證碼[：:\s]*(\d{4,8})`),
	regexp.MustCompile(`(?i)確認碼[：:\s]*(\d{4,8})`),
	regexp.MustCompile(`(?i)OTP[：:\s]*(\d{4,8})`),
	regexp.MustCompile(`(?i)代碼[：:\s]*(\d{4,8})`),
}

// digitRun matches maximal runs of digits. A maximal run is by construction
// not adjacent to other digits, which stands in for the lookaround-based
// isolation check RE2 cannot express.
var digitRun = regexp.MustCompile(`\d+`)

// Extractor recognizes verification codes in unstructured text.
// The zero value uses DefaultLength.
type Extractor struct {
	// ExpectedLength is the preferred code length for the standalone-run
	// fallback. Runs of other lengths within [MinLength, MaxLength] are
	// still accepted when no run of the expected length exists.
	ExpectedLength int
}

// Extract returns the first verification code found in text, trying the
// keyword-anchored patterns first and falling back to standalone digit runs.
// The boolean is false when no plausible code is present.
func (e Extractor) Extract(text string) (string, bool) {
	for _, pat := range keywordPatterns {
		if m := pat.FindStringSubmatch(text); m != nil {
			return m[1], true
		}
	}

	expected := e.ExpectedLength
	if expected == 0 {
		expected = DefaultLength
	}

	var runs []string
	for _, run := range digitRun.FindAllString(text, -1) {
		if len(run) >= MinLength && len(run) <= MaxLength {
			runs = append(runs, run)
		}
	}
	if len(runs) == 0 {
		return "", false
	}
	// Prefer a run of the expected length; otherwise the first in document
	// order.
	for _, run := range runs {
		if len(run) == expected {
			return run, true
		}
	}
	return runs[0], true
}
