// Package apierror defines the error taxonomy shared by every core
// operation and its mapping to HTTP statuses at the edge.
package apierror

import (
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
)

// Kind classifies a core failure. Kinds are stable contract values; the
// HTTP layer maps each kind to a status.
type Kind string

const (
	KindValidation          Kind = "VALIDATION"
	KindTenant              Kind = "TENANT"
	KindState               Kind = "STATE"
	KindImbalance           Kind = "IMBALANCE"
	KindPeriodClosed        Kind = "PERIOD_CLOSED"
	KindIdempotencyConflict Kind = "IDEMPOTENCY_CONFLICT"
	KindIntegrity           Kind = "INTEGRITY"
	KindResource            Kind = "RESOURCE"
	KindNotFound            Kind = "NOT_FOUND"
)

// Error is a classified core error.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return e.Message + ": " + e.cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

// New creates a classified error.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies an underlying error.
func Wrap(kind Kind, err error, message string) *Error {
	return &Error{Kind: kind, Message: message, cause: err}
}

// KindOf returns the kind of err, or KindResource for unclassified errors.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindResource
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// HTTPStatus maps an error to the status the edge returns for it.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindTenant:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindIdempotencyConflict:
		return http.StatusConflict
	case KindState, KindImbalance, KindPeriodClosed:
		return http.StatusUnprocessableEntity
	case KindIntegrity:
		return http.StatusInternalServerError
	case KindResource:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Patterns that indicate internal/sensitive errors
var sensitivePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)pq:|pgx:|sql:|postgres`),
	regexp.MustCompile(`(?i)connection|timeout|refused`),
	regexp.MustCompile(`(?i)/var/|/tmp/|/home/|/app/|\.go:\d+`),
	regexp.MustCompile(`(?i)dial tcp|network|socket`),
	regexp.MustCompile(`(?i)panic|runtime error`),
	regexp.MustCompile(`(?i)internal server|stack trace`),
	regexp.MustCompile(`\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}`), // IP addresses
}

const genericError = "An internal error occurred"

// Sanitize removes sensitive information from error messages
// Safe messages (validation errors, format errors) are passed through
func Sanitize(msg string) string {
	for _, pattern := range sensitivePatterns {
		if pattern.MatchString(msg) {
			return genericError
		}
	}

	// Additional check for file paths
	if strings.Contains(msg, "/") && (strings.Contains(msg, "open") || strings.Contains(msg, "read") || strings.Contains(msg, "write")) {
		return genericError
	}

	return msg
}
