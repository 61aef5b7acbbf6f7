// Package validation implements the InputValidator syntactic gate
// described in spec §4.1: length/encoding/token checks, fixed pattern
// detection, and sanitization. Pattern detection is grounded on the
// teacher's pkg/masking compiled-regex-set approach, repurposed here for
// flagging rather than redaction.
package validation

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/canadianpizza/orderbot-core/pkg/apierr"
)

const (
	// MinBytes and MaxBytes bound the raw input before sanitization
	// (spec §3, §4.1, §8 boundary behaviors).
	MinBytes = 1
	MaxBytes = 5000

	// MaxTokenChars bounds any single whitespace-delimited token
	// (spec §4.1 buffer-overflow guard, §8 boundary behaviors).
	MaxTokenChars = 100
)

// ValidatedText is the InputValidator's successful output: a sanitized
// string plus any security flags raised by pattern detection.
type ValidatedText struct {
	Text          string
	SecurityFlags []SecurityFlag
}

// HasFlag reports whether the validated text matched the given pattern.
func (v ValidatedText) HasFlag(f SecurityFlag) bool {
	return hasFlag(v.SecurityFlags, f)
}

// Validate applies the InputValidator's rules to raw in spec §4.1 order:
// length, encoding, token-length, then sanitize, then re-check visible
// length, then pattern-detect (non-rejecting, except as noted).
func Validate(raw string) (ValidatedText, error) {
	if n := len(raw); n < MinBytes || n > MaxBytes {
		kind := apierr.ValidationTooShort
		if n > MaxBytes {
			kind = apierr.ValidationTooLong
		}
		return ValidatedText{}, apierr.NewValidationError(kind, "text byte length out of bounds")
	}

	if err := checkEncoding(raw); err != nil {
		return ValidatedText{}, err
	}

	if err := checkTokenLengths(raw); err != nil {
		return ValidatedText{}, err
	}

	sanitized := sanitize(raw)

	// Re-check visible length after sanitization: prevents the
	// whitespace-only bypass noted as an open issue in spec §4.1/§9.
	if utf8.RuneCountInString(strings.TrimSpace(sanitized)) == 0 {
		return ValidatedText{}, apierr.NewValidationError(apierr.ValidationTooShort, "visible length is zero after sanitization")
	}

	flags := detectFlags(sanitized)
	return ValidatedText{Text: sanitized, SecurityFlags: flags}, nil
}

// checkEncoding rejects null bytes, invalid UTF-8, or control characters
// other than tab/newline/carriage return (spec §4.1).
func checkEncoding(raw string) error {
	if strings.ContainsRune(raw, 0) {
		return apierr.NewValidationError(apierr.ValidationBadEncoding, "text contains a null byte")
	}
	if !utf8.ValidString(raw) {
		return apierr.NewValidationError(apierr.ValidationBadEncoding, "text is not valid UTF-8")
	}
	for _, r := range raw {
		if unicode.IsControl(r) && r != '\t' && r != '\n' && r != '\r' {
			return apierr.NewValidationError(apierr.ValidationBadEncoding, "text contains a disallowed control character")
		}
	}
	return nil
}

// checkTokenLengths rejects any whitespace-delimited token longer than
// MaxTokenChars (spec §4.1 buffer-overflow guard).
func checkTokenLengths(raw string) error {
	for _, tok := range strings.Fields(raw) {
		if utf8.RuneCountInString(tok) > MaxTokenChars {
			return apierr.NewValidationError(apierr.ValidationTokenTooLong, "a whitespace-delimited token exceeds 100 characters")
		}
	}
	return nil
}

// sanitize trims, collapses internal whitespace runs, strips null bytes,
// and NFC-normalizes, exactly as spec §4.1 requires.
func sanitize(raw string) string {
	stripped := strings.ReplaceAll(raw, "\x00", "")
	normalized := norm.NFC.String(stripped)
	collapsed := collapseWhitespace(normalized)
	return strings.TrimSpace(collapsed)
}

func collapseWhitespace(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inSpace := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			if !inSpace {
				b.WriteRune(' ')
				inSpace = true
			}
			continue
		}
		inSpace = false
		b.WriteRune(r)
	}
	return b.String()
}
