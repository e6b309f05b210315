package models

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

var (
	// ErrNotFound is returned when a requested document does not exist
	ErrNotFound = errors.New("resource not found")
	// ErrRevealForbidden is returned when a user asks to see other users' picks
	// for a week they have not finalized themselves
	ErrRevealForbidden = errors.New("finalize your own picks to see everyone else's")
)

// ValidationError reports a malformed payload field. The whole write is rejected.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// NewValidationError creates a ValidationError for field
func NewValidationError(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// ConflictReason distinguishes the kinds of write conflicts
type ConflictReason string

const (
	ConflictLocked     ConflictReason = "locked"
	ConflictClaimed    ConflictReason = "claimed"
	ConflictContention ConflictReason = "contention"
)

// ConflictError reports a write that cannot be applied in the current state
type ConflictError struct {
	Reason  ConflictReason
	Field   string
	Message string
}

func (e *ConflictError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s conflict on %s: %s", e.Reason, e.Field, e.Message)
	}
	return fmt.Sprintf("%s conflict: %s", e.Reason, e.Message)
}

// NewLockedError reports a write against a closed edit window
func NewLockedError(field, format string, args ...interface{}) error {
	return &ConflictError{Reason: ConflictLocked, Field: field, Message: fmt.Sprintf(format, args...)}
}

// NewClaimedError reports a scarce value already claimed by another finalized pick
func NewClaimedError(field, value string) error {
	return &ConflictError{
		Reason:  ConflictClaimed,
		Field:   field,
		Message: fmt.Sprintf("%q is already claimed this week", value),
	}
}

// UpstreamDataError reports missing, malformed or late feed data
type UpstreamDataError struct {
	Source string
	GameID string
	Err    error
}

func (e *UpstreamDataError) Error() string {
	if e.GameID != "" {
		return fmt.Sprintf("upstream data error from %s (game %s): %v", e.Source, e.GameID, e.Err)
	}
	return fmt.Sprintf("upstream data error from %s: %v", e.Source, e.Err)
}

func (e *UpstreamDataError) Unwrap() error { return e.Err }

// TransientStoreError reports contention or a timeout on a store write; safe to retry once
type TransientStoreError struct {
	Op  string
	Err error
}

func (e *TransientStoreError) Error() string {
	return fmt.Sprintf("transient store error during %s: %v", e.Op, e.Err)
}

func (e *TransientStoreError) Unwrap() error { return e.Err }

// IsConflict reports whether err is a ConflictError with the given reason
func IsConflict(err error, reason ConflictReason) bool {
	var conflict *ConflictError
	return errors.As(err, &conflict) && conflict.Reason == reason
}

// IsTransient reports whether err is a TransientStoreError
func IsTransient(err error) bool {
	var transient *TransientStoreError
	return errors.As(err, &transient)
}
