// Package redact provides utilities for redacting sensitive information from strings
// before they are logged or returned in error responses. Task payloads carry keys,
// passwords and plaintext; this package keeps that material out of log lines and
// error messages that echo parts of a payload.
package redact

import (
	"regexp"
)

// Constants for redaction placeholders
const (
	RedactionPlaceholder    = "[REDACTED]"
	RedactedPathPlaceholder = "[REDACTED_PATH]"
	RedactedKeyPlaceholder  = "[REDACTED_KEY]"
	RedactedPEMPlaceholder  = "[REDACTED_PEM]"
	RedactedJWTPlaceholder  = "[REDACTED_JWT]"
	RedactedStackTrace      = "[STACK_TRACE_REDACTED]"
	RedactedEmail           = "[REDACTED_EMAIL]"
)

type rule struct {
	pattern     *regexp.Regexp
	replacement string
}

// Rules are applied in order; earlier rules consume text later rules would
// otherwise split (a PEM body contains base64 and slashes).
var rules = []rule{
	{
		pattern:     regexp.MustCompile(`-----BEGIN [A-Z ]+-----[\s\S]*?-----END [A-Z ]+-----`),
		replacement: RedactedPEMPlaceholder,
	},
	{
		pattern:     regexp.MustCompile(`eyJ[a-zA-Z0-9_-]+\.eyJ[a-zA-Z0-9_-]+\.[a-zA-Z0-9_-]+`),
		replacement: RedactedJWTPlaceholder,
	},
	{
		// key=value style secrets keep their name so the log stays readable.
		pattern: regexp.MustCompile(
			`(?i)\b(password|passwd|pwd|secret|api[_-]?key|token|key|nonce|salt|plaintext)(["']?\s*[=:]\s*["']?)[^"'&\s,}]{3,}`,
		),
		replacement: "${1}${2}" + RedactionPlaceholder,
	},
	{
		pattern:     regexp.MustCompile(`(?:goroutine \d+|panic:)[\s\S]*?(\n\t.*)+`),
		replacement: RedactedStackTrace,
	},
	{
		// Long hex or base64 runs are treated as key material or ciphertext.
		pattern:     regexp.MustCompile(`[A-Za-z0-9+/]{32,}={0,2}`),
		replacement: RedactedKeyPlaceholder,
	},
	{
		pattern:     regexp.MustCompile(`(/[\w.-]+){2,}`),
		replacement: RedactedPathPlaceholder,
	},
	{
		pattern:     regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`),
		replacement: RedactedEmail,
	},
}

// String redacts sensitive information from the input string
func String(input string) string {
	if input == "" {
		return input
	}

	result := input
	for _, r := range rules {
		result = r.pattern.ReplaceAllString(result, r.replacement)
	}
	return result
}

// Error redacts sensitive information from an error's Error() output
func Error(err error) string {
	if err == nil {
		return ""
	}

	return String(err.Error())
}
