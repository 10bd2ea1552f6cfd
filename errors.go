package main

import (
	"errors"
	"fmt"
	"strings"
)

// Failure taxonomy. Validation and authorization are checked before any
// mutation; store and webhook failures are wrapped at the call site and
// mapped to a short inline message near the triggering form.
var (
	ErrValidation   = errors.New("missing or malformed field")
	ErrUnauthorized = errors.New("unauthorized")
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
)

// PersistenceError wraps a write the entity store rejected.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// IsUniqueViolation reports whether a store error is a uniqueness conflict,
// so callers can show a friendlier message than the raw driver text.
func IsUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// UpstreamError is a failed call to the messaging webhook: either the
// transport failed or the response envelope carried a non-success status.
type UpstreamError struct {
	Action  string
	Message string
	Err     error
}

func (e *UpstreamError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("webhook %s: %v", e.Action, e.Err)
	}

	return fmt.Sprintf("webhook %s: %s", e.Action, e.Message)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}
