package models

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidTransition  = errors.New("invalid transition")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrStaleState         = errors.New("stale state")
	ErrSessionConflict    = errors.New("session conflict")
	ErrNoActiveSession    = errors.New("no active session")
	ErrNoSample           = errors.New("no sample")
	ErrValidation         = errors.New("validation error")
	ErrNotFound           = errors.New("not found")
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// StaleStateError is returned to the loser of a transition race.
type StaleStateError struct {
	Expected OrderStatus
	Current  OrderStatus
}

func (e *StaleStateError) Error() string {
	return fmt.Sprintf("stale state: expected %s, order is %s", e.Expected, e.Current)
}

func (e *StaleStateError) Is(target error) bool { return target == ErrStaleState }

type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}
