package logging

import (
	"regexp"
)

const (
	// MaxQueryLogLength is the maximum length of a user query to log
	MaxQueryLogLength = 200
	// RedactedText is the replacement text for sensitive data
	RedactedText = "[REDACTED]"
)

var (
	// Pattern to match bearer tokens (JWTs and provider API keys)
	bearerPattern = regexp.MustCompile(`(?i)bearer\s+[A-Za-z0-9-_.]+`)

	// Pattern to match potential API keys in URLs or payloads
	apiKeyPattern = regexp.MustCompile(`(?i)(api[_-]?key|apikey|key)=[A-Za-z0-9-_]{8,}`)
)

// SanitizeError sanitizes error messages that might contain credentials
// before they are attached to a log entry. Provider errors can echo the
// request, including the Authorization header.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}

	sanitized := bearerPattern.ReplaceAllString(err.Error(), "Bearer "+RedactedText)
	sanitized = apiKeyPattern.ReplaceAllString(sanitized, "${1}="+RedactedText)
	return sanitized
}

// SanitizeQuery truncates a user query for logging. Queries are free text
// and can be arbitrarily long.
func SanitizeQuery(query string) string {
	if len(query) <= MaxQueryLogLength {
		return query
	}
	return query[:MaxQueryLogLength] + "..."
}
