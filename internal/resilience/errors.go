// Package resilience provides the retry machinery and the typed error
// taxonomy for upstream API failures.
package resilience

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
)

// ValidationError reports bad construction arguments. It is fatal, raised
// immediately, and never retried.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// NewValidationError creates a ValidationError with a formatted message.
func NewValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// NotFoundError reports an unresolvable ticker, name, or CIK. Non-retryable.
type NotFoundError struct {
	Message string
	URL     string
}

func (e *NotFoundError) Error() string { return e.Message }

// RateLimitError reports an upstream throttling signal (403 or 429).
// Retryable up to the configured attempt bound.
type RateLimitError struct {
	Message    string
	StatusCode int
	URL        string
}

func (e *RateLimitError) Error() string { return e.Message }

// ServerError reports an upstream 5xx or a transport timeout. Retryable up
// to the configured attempt bound.
type ServerError struct {
	Message    string
	StatusCode int
	URL        string
}

func (e *ServerError) Error() string { return e.Message }

// EnrichmentError wraps any other unexpected failure during orchestration.
// Retryable by default.
type EnrichmentError struct {
	Err error
}

func (e *EnrichmentError) Error() string { return e.Err.Error() }
func (e *EnrichmentError) Unwrap() error { return e.Err }

// IsRetryable reports whether the error is safe to retry. Rate-limit and
// server errors are retryable; validation and not-found errors never are.
// Network-level transient failures count as retryable server-side trouble.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var ve *ValidationError
	var nfe *NotFoundError
	if errors.As(err, &ve) || errors.As(err, &nfe) {
		return false
	}

	var rle *RateLimitError
	var se *ServerError
	var ee *EnrichmentError
	if errors.As(err, &rle) || errors.As(err, &se) || errors.As(err, &ee) {
		return true
	}

	return isTransportTransient(err)
}

// IsRateLimit reports whether the error chain contains a RateLimitError.
func IsRateLimit(err error) bool {
	var rle *RateLimitError
	return errors.As(err, &rle)
}

// IsNotFound reports whether the error chain contains a NotFoundError.
func IsNotFound(err error) bool {
	var nfe *NotFoundError
	return errors.As(err, &nfe)
}

// isTransportTransient matches network timeouts, connection resets, and DNS
// failures that surface from the HTTP client without a status code.
func isTransportTransient(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return true
	}

	msg := strings.ToLower(err.Error())
	transientPatterns := []string{
		"connection reset by peer",
		"broken pipe",
		"temporary failure in name resolution",
		"no such host",
		"tls handshake timeout",
		"i/o timeout",
		"server closed idle connection",
		"transport connection broken",
	}
	for _, p := range transientPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}

	return false
}

// ErrorType returns the taxonomy name for an error, used in serialized
// results and log fields.
func ErrorType(err error) string {
	var ve *ValidationError
	var nfe *NotFoundError
	var rle *RateLimitError
	var se *ServerError
	switch {
	case errors.As(err, &ve):
		return "validation_error"
	case errors.As(err, &nfe):
		return "not_found"
	case errors.As(err, &rle):
		return "rate_limit"
	case errors.As(err, &se):
		return "server_error"
	default:
		return "enrichment_error"
	}
}

// StatusCode extracts the HTTP status code from a typed error, or 0.
func StatusCode(err error) int {
	var nfe *NotFoundError
	var rle *RateLimitError
	var se *ServerError
	switch {
	case errors.As(err, &nfe):
		return 404
	case errors.As(err, &rle):
		return rle.StatusCode
	case errors.As(err, &se):
		return se.StatusCode
	default:
		return 0
	}
}

// ErrorURL extracts the request URL from a typed error, if any.
func ErrorURL(err error) string {
	var nfe *NotFoundError
	var rle *RateLimitError
	var se *ServerError
	switch {
	case errors.As(err, &nfe):
		return nfe.URL
	case errors.As(err, &rle):
		return rle.URL
	case errors.As(err, &se):
		return se.URL
	default:
		return ""
	}
}
