package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// Kind classifies a translation failure for HTTP status mapping.
type Kind string

const (
	// KindProviderUnavailable covers transport failures: timeouts, refused
	// connections, provider 5xx and rate limiting.
	KindProviderUnavailable Kind = "provider_unavailable"
	// KindResponseMalformed covers responses with no parseable JSON.
	KindResponseMalformed Kind = "response_malformed"
	// KindSchemaInvalid covers parseable JSON that lacks the filters list.
	KindSchemaInvalid Kind = "schema_invalid"
)

// Error represents a structured translation error with classification.
type Error struct {
	Kind       Kind   // Classification of the error
	Message    string // Human-readable message
	Provider   string // Provider name if known
	StatusCode int    // HTTP status code if applicable
	Cause      error  // Underlying error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var parts []string
	parts = append(parts, string(e.Kind))

	if e.Provider != "" {
		parts = append(parts, fmt.Sprintf("provider=%s", e.Provider))
	}
	if e.StatusCode > 0 {
		parts = append(parts, fmt.Sprintf("HTTP %d", e.StatusCode))
	}

	parts = append(parts, e.Message)

	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", strings.Join(parts, " "), e.Cause)
	}
	return strings.Join(parts, " ")
}

// Unwrap returns the underlying cause for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new structured translation error.
func NewError(kind Kind, message, provider string, cause error) *Error {
	return &Error{
		Kind:     kind,
		Message:  message,
		Provider: provider,
		Cause:    cause,
	}
}

// KindOf extracts the classification from an error chain. Unclassified
// errors report KindProviderUnavailable so callers fail safe on transport
// problems.
func KindOf(err error) Kind {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.Kind
	}
	return KindProviderUnavailable
}

// ClassifyTransportError categorizes an error from a provider call.
// Already-classified errors pass through unchanged.
func ClassifyTransportError(err error, provider string) *Error {
	if err == nil {
		return nil
	}

	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return NewError(KindProviderUnavailable, "request timed out", provider, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return NewError(KindProviderUnavailable, "request timed out", provider, err)
	}

	errStr := err.Error()
	lower := strings.ToLower(errStr)

	// Extract HTTP status code from error string
	statusCode := 0
	for _, code := range []int{400, 401, 403, 404, 429, 500, 502, 503, 504} {
		if strings.Contains(errStr, fmt.Sprintf("%d", code)) {
			statusCode = code
			break
		}
	}

	classified := NewError(KindProviderUnavailable, "provider request failed", provider, err)
	classified.StatusCode = statusCode

	switch {
	case strings.Contains(lower, "connection refused"),
		strings.Contains(lower, "no such host"),
		strings.Contains(lower, "timeout"),
		strings.Contains(lower, "deadline exceeded"):
		classified.Message = "provider unreachable"
	case statusCode == 429:
		classified.Message = "provider rate limited"
	case statusCode >= 500:
		classified.Message = "provider returned server error"
	case strings.Contains(lower, "unauthorized") || statusCode == 401:
		classified.Message = "provider rejected credentials"
	}

	return classified
}
