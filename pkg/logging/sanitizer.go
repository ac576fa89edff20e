package logging

import (
	"regexp"
	"strings"
)

const (
	// MaxValueLogLength is the maximum length of a field value to log
	MaxValueLogLength = 100
	// RedactedText is the replacement text for sensitive data
	RedactedText = "[REDACTED]"
)

var (
	// Pattern to match potential passwords in connection strings
	// Matches: password=xxx, pwd=xxx, pass=xxx (until next delimiter)
	passwordPattern = regexp.MustCompile(`(?i)(password|pwd|pass)=[^;&\s]+`)

	// Pattern to match connection string credentials (user:pass@host format)
	connStringPattern = regexp.MustCompile(`://[^:]+:[^@]+@[^/\s]+`)

	// Pattern to match email addresses embedded in free text (errors, CSV rows)
	emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)

	phoneDigits = regexp.MustCompile(`\d`)
)

// SanitizeConnectionString removes credentials from connection strings.
// Use this before logging any connection string.
func SanitizeConnectionString(connStr string) string {
	if connStr == "" {
		return ""
	}

	sanitized := passwordPattern.ReplaceAllString(connStr, "${1}="+RedactedText)
	sanitized = connStringPattern.ReplaceAllString(sanitized, "://"+RedactedText+"@"+RedactedText)

	return sanitized
}

// MaskEmail masks the local part of an email address so log lines carry
// enough to correlate a record without exposing the full address.
// "corin.blanchard@example.org" -> "c***@example.org".
func MaskEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at <= 0 {
		return RedactedText
	}
	return email[:1] + "***" + email[at:]
}

// MaskPhone replaces all but the last two digits of a phone number.
func MaskPhone(phone string) string {
	digits := phoneDigits.FindAllStringIndex(phone, -1)
	if len(digits) <= 2 {
		return phone
	}
	out := []byte(phone)
	for _, d := range digits[:len(digits)-2] {
		out[d[0]] = '*'
	}
	return string(out)
}

// SanitizeError sanitizes error messages that might contain contact PII or
// datastore credentials, and caps them at MaxValueLogLength so an error
// quoting a whole CSV row does not dump the row into the log. Use this
// before logging errors from row processing.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}

	errStr := err.Error()

	sanitized := passwordPattern.ReplaceAllString(errStr, "${1}="+RedactedText)
	sanitized = connStringPattern.ReplaceAllString(sanitized, "://"+RedactedText+"@"+RedactedText)
	sanitized = emailPattern.ReplaceAllStringFunc(sanitized, MaskEmail)

	return TruncateString(sanitized, MaxValueLogLength)
}

// TruncateString truncates a string to maxLen and adds ellipsis if needed
func TruncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
