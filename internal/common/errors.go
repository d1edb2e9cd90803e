// Package common provides shared utilities and types used across the application.
package common

import (
	"context"
	"errors"
	"fmt"
)

// Common application errors.
var (
	// Local store errors.
	ErrStoreCorrupted   = errors.New("local store corrupted")
	ErrStoreUnavailable = errors.New("local store unavailable")

	// Remote authority errors.
	ErrRemoteConnection = errors.New("remote connection failed")
	ErrRemoteProtocol   = errors.New("unexpected remote response")

	// Sync errors.
	ErrNoBaseVersion = errors.New("no base version: pull from remote first")

	// Configuration errors.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// ErrorKind classifies a normalized remote failure.
type ErrorKind string

// Remote error kinds, mirroring the authority's error codes.
const (
	KindInvalidData     ErrorKind = "invalid-data"
	KindVersionConflict ErrorKind = "version-conflict"
	KindNotFound        ErrorKind = "not-found"
	KindInternalError   ErrorKind = "internal-error"
)

// RemoteError is the single normalized failure shape for remote calls:
// a human-readable message, an optional machine kind, and the original
// transport error for diagnostics.
type RemoteError struct {
	Cause   error
	Message string
	Kind    ErrorKind
}

func (e *RemoteError) Error() string {
	if e.Kind != "" {
		return fmt.Sprintf("%s (%s)", e.Message, e.Kind)
	}
	return e.Message
}

func (e *RemoteError) Unwrap() error {
	return e.Cause
}

// NewRemoteError creates a normalized remote failure.
func NewRemoteError(message string, kind ErrorKind, cause error) *RemoteError {
	return &RemoteError{Message: message, Kind: kind, Cause: cause}
}

// UserError represents an error that should be shown to the user.
type UserError struct {
	Err         error
	UserMessage string
}

func (e *UserError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.UserMessage, e.Err)
	}
	return e.UserMessage
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// NewUserError creates a new user-friendly error.
func NewUserError(userMessage string, err error) error {
	return &UserError{
		UserMessage: userMessage,
		Err:         err,
	}
}

// IsRetryable determines if an error should trigger a retry.
func IsRetryable(err error) bool {
	if errors.Is(err, ErrRemoteConnection) ||
		errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	// Structured remote errors are definitive answers, not transients.
	var remoteErr *RemoteError
	if errors.As(err, &remoteErr) {
		return remoteErr.Kind == KindInternalError
	}

	var retryableErr *RetryableError
	if errors.As(err, &retryableErr) {
		return retryableErr.Retryable
	}

	return false
}
