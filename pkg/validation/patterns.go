package validation

import "regexp"

// SecurityFlag names a pattern family matched against raw input text.
// A match sets a flag on the returned ValidatedText (spec §4.1) — it does
// not reject the message, except for SQLInjection which is rejected
// outright at the agent layer (see pkg/orchestrator).
type SecurityFlag string

const (
	FlagSQLInjection     SecurityFlag = "sql_injection"
	FlagCommandInjection SecurityFlag = "command_injection"
	FlagPathTraversal    SecurityFlag = "path_traversal"
	FlagScriptXSS        SecurityFlag = "script_xss"
	FlagPIIEmail         SecurityFlag = "pii_email"
	FlagPIIPhone         SecurityFlag = "pii_phone"
	FlagPIICreditCard    SecurityFlag = "pii_credit_card"
	FlagPIISSN           SecurityFlag = "pii_ssn"
)

// compiledPattern pairs a security flag with the regex that detects it,
// grounded on the teacher's pkg/masking CompiledPattern shape (name +
// compiled regex), repurposed here for detection rather than redaction.
type compiledPattern struct {
	Flag  SecurityFlag
	Regex *regexp.Regexp
}

// patterns is the fixed pattern set from spec §4.1. Compiled once at
// package init, matching the teacher's eager-compile-at-startup approach
// in pkg/masking.NewMaskingService.
var patterns = []compiledPattern{
	{FlagSQLInjection, regexp.MustCompile(`(?i)\b(SELECT|DROP|UNION)\b|'\s*OR\s|--`)},
	{FlagCommandInjection, regexp.MustCompile("&&|;|`|\\$\\(|\\||^/[a-zA-Z0-9_./-]+")},
	{FlagPathTraversal, regexp.MustCompile(`\.\./|%2e%2e%2f|\.\.%2f`)},
	{FlagScriptXSS, regexp.MustCompile(`(?i)<script[^>]*>|on\w+\s*=|javascript:`)},
	{FlagPIIEmail, regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)},
	{FlagPIIPhone, regexp.MustCompile(`\+?\d{1,3}[-.\s]?\(?\d{2,4}\)?[-.\s]?\d{3,4}[-.\s]?\d{3,4}`)},
	{FlagPIICreditCard, regexp.MustCompile(`\b(?:\d[ -]*?){13,16}\b`)},
	{FlagPIISSN, regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)},
}

// detectFlags returns every security flag whose pattern matches text.
func detectFlags(text string) []SecurityFlag {
	var flags []SecurityFlag
	for _, p := range patterns {
		if p.Regex.MatchString(text) {
			flags = append(flags, p.Flag)
		}
	}
	return flags
}

// hasFlag reports whether flags contains target.
func hasFlag(flags []SecurityFlag, target SecurityFlag) bool {
	for _, f := range flags {
		if f == target {
			return true
		}
	}
	return false
}
