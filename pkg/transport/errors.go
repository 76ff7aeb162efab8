package transport

import (
	"errors"
	"fmt"
)

// Sentinel errors classifying transport failures.
//
// Every error returned by a Client wraps exactly one of these, so callers
// classify with errors.Is (or the IsXxx helpers) and never inspect HTTP
// status codes directly.
var (
	// ErrAuth indicates an authentication or authorization failure (401/403).
	// Auth failures are not transient and must never be retried automatically.
	ErrAuth = errors.New("authentication failed")

	// ErrNotFound indicates the requested task does not exist.
	ErrNotFound = errors.New("task not found")

	// ErrValidation indicates the request was rejected as invalid (4xx other
	// than auth, conflict and throttling).
	ErrValidation = errors.New("invalid request")

	// ErrCursorInvalid indicates a pagination cursor was rejected, either as
	// malformed or as issued under different filter criteria.
	ErrCursorInvalid = errors.New("invalid cursor")

	// ErrIdempotencyConflict indicates the idempotency key was reused with a
	// different payload. Definitive failure, never retried.
	ErrIdempotencyConflict = errors.New("idempotency key conflict")

	// ErrThrottled indicates the request was rate limited (429).
	ErrThrottled = errors.New("request throttled")

	// ErrServer indicates a backend failure (5xx). Retryable on the normal
	// polling cadence.
	ErrServer = errors.New("server error")

	// ErrTransient indicates a network-level failure with no response
	// (timeout, connection refused). Retryable on the normal cadence.
	ErrTransient = errors.New("transient network error")
)

// APIError carries the processed, stable shape of a failed API call.
type APIError struct {
	// Op is the operation that failed (e.g., "FetchPage", "CreateRecord").
	Op string

	// StatusCode is the HTTP status, or zero when no response was received.
	StatusCode int

	// Code is the machine-readable error code from the response envelope,
	// if present (e.g., "INVALID_CURSOR", "IDEMPOTENCY_CONFLICT").
	Code string

	// Message is the server-supplied human-readable message.
	Message string

	// RequestID is the server-issued request id, if present.
	RequestID string

	// IdempotencyKey is the key carried by the failed create, if relevant.
	IdempotencyKey string

	// Err is the classifying sentinel, possibly wrapping a lower-level cause.
	Err error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Err.Error()
	}
	if e.RequestID != "" {
		return fmt.Sprintf("%s: %s (request %s)", e.Op, msg, e.RequestID)
	}
	return fmt.Sprintf("%s: %s", e.Op, msg)
}

// Unwrap returns the classifying error for errors.Is/As support.
func (e *APIError) Unwrap() error {
	return e.Err
}

// Classify maps an HTTP status and envelope code onto a sentinel.
// A zero status means no response was received.
func Classify(statusCode int, code string) error {
	switch {
	case statusCode == 0:
		return ErrTransient
	case statusCode == 401 || statusCode == 403:
		return ErrAuth
	case statusCode == 404:
		return ErrNotFound
	case statusCode == 409 && code == "IDEMPOTENCY_CONFLICT":
		return ErrIdempotencyConflict
	case statusCode == 429:
		return ErrThrottled
	case statusCode >= 500:
		return ErrServer
	case code == "INVALID_CURSOR" || code == "CURSOR_FILTER_MISMATCH":
		return ErrCursorInvalid
	case statusCode >= 400:
		return ErrValidation
	}
	return ErrServer
}

// IsAuth returns true if the error indicates an auth failure.
func IsAuth(err error) bool {
	return errors.Is(err, ErrAuth)
}

// IsNotFound returns true if the error indicates a missing task.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsCursorInvalid returns true if the error indicates a rejected cursor.
func IsCursorInvalid(err error) bool {
	return errors.Is(err, ErrCursorInvalid)
}

// IsIdempotencyConflict returns true if the error indicates key reuse with a
// different payload.
func IsIdempotencyConflict(err error) bool {
	return errors.Is(err, ErrIdempotencyConflict)
}

// IsRetryable returns true if the error may clear on a later attempt
// (transient network failures, throttling, server errors).
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransient) || errors.Is(err, ErrThrottled) || errors.Is(err, ErrServer)
}
