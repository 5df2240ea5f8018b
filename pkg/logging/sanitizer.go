package logging

import (
	"regexp"
)

const (
	// MaxQueryLogLength is the maximum length of user query text to log.
	MaxQueryLogLength = 100
	// RedactedText is the replacement text for sensitive data.
	RedactedText = "[REDACTED]"
)

var (
	// Matches password-style key/value pairs in connection or query strings.
	passwordPattern = regexp.MustCompile(`(?i)(password|pwd|pass|client_secret|secret)=[^;&\s]+`)

	// Matches bearer tokens (JWT or opaque).
	bearerPattern = regexp.MustCompile(`(?i)(Bearer|token)\s+[A-Za-z0-9-_.]+`)

	// Matches API key style parameters.
	apiKeyPattern = regexp.MustCompile(`(?i)(api[_-]?key|apikey|key)=[A-Za-z0-9-_]{20,}`)

	// Matches user:pass@host credentials embedded in URLs.
	urlCredsPattern = regexp.MustCompile(`://[^:/\s]+:[^@/\s]+@[^/\s]+`)
)

// SanitizeURL removes embedded credentials and secret query parameters from
// a URL before it is logged.
func SanitizeURL(raw string) string {
	if raw == "" {
		return ""
	}
	sanitized := passwordPattern.ReplaceAllString(raw, "${1}="+RedactedText)
	sanitized = apiKeyPattern.ReplaceAllString(sanitized, "${1}="+RedactedText)
	sanitized = urlCredsPattern.ReplaceAllString(sanitized, "://"+RedactedText+"@"+RedactedText)
	return sanitized
}

// SanitizeError sanitizes error messages that might contain credentials,
// tokens, or API keys. Use this before logging any error from the analytics
// or LLM clients.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	sanitized := passwordPattern.ReplaceAllString(err.Error(), "${1}="+RedactedText)
	sanitized = bearerPattern.ReplaceAllString(sanitized, "${1} "+RedactedText)
	sanitized = apiKeyPattern.ReplaceAllString(sanitized, "${1}="+RedactedText)
	sanitized = urlCredsPattern.ReplaceAllString(sanitized, "://"+RedactedText+"@"+RedactedText)
	return sanitized
}

// TruncateQuery shortens user query text for logging.
func TruncateQuery(query string) string {
	if len(query) <= MaxQueryLogLength {
		return query
	}
	return query[:MaxQueryLogLength] + "..."
}
