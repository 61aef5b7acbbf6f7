// Package masking redacts PII from conversation text before persistence,
// implementing the StoredMessage.pii_scrubbed behavior named in spec §3
// but not designed in detail there. Grounded on the teacher's
// pkg/masking.MaskingService: eagerly-compiled regex patterns applied in
// a fixed order. Patterns compile at package init, so Scrub has no
// runtime error path that could block the reply path.
package masking

import (
	"log/slog"
	"regexp"

	"github.com/canadianpizza/orderbot-core/pkg/validation"
)

// Result is the outcome of scrubbing a piece of text.
type Result struct {
	Text     string
	Scrubbed bool
}

// replacement pairs a security flag with the regex and redaction token
// used to scrub it. The regex set is intentionally the same family
// validation.patterns.go flags with (spec says nothing separates
// "detected" from "redacted" pattern sets), just applied destructively
// here instead of informationally.
type replacement struct {
	flag  validation.SecurityFlag
	regex *regexp.Regexp
	token string
}

var replacements = []replacement{
	{validation.FlagPIIEmail, regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`), "[REDACTED_EMAIL]"},
	{validation.FlagPIIPhone, regexp.MustCompile(`\+?\d{1,3}[-.\s]?\(?\d{2,4}\)?[-.\s]?\d{3,4}[-.\s]?\d{3,4}`), "[REDACTED_PHONE]"},
	{validation.FlagPIICreditCard, regexp.MustCompile(`\b(?:\d[ -]*?){13,16}\b`), "[REDACTED_CARD]"},
	{validation.FlagPIISSN, regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`), "[REDACTED_SSN]"},
}

// Scrub applies every PII pattern in order, replacing matches with a
// redaction token. Never errors — a pattern that fails to compile would
// be a programming bug caught at package init, not a runtime condition.
func Scrub(text string) Result {
	out := text
	scrubbed := false
	for _, r := range replacements {
		if r.regex.MatchString(out) {
			out = r.regex.ReplaceAllString(out, r.token)
			scrubbed = true
		}
	}
	if scrubbed {
		slog.Debug("scrubbed PII from message before persistence")
	}
	return Result{Text: out, Scrubbed: scrubbed}
}
