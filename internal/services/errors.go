package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/cinevault/apiserver/internal/store"
)

var (
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrLocked              = errors.New("account locked")
	ErrUnauthenticated     = errors.New("unauthenticated")
	ErrInvalidSession      = errors.New("invalid session")
	ErrInvalidToken        = errors.New("invalid or expired token")
	ErrForbidden           = errors.New("forbidden")
	ErrProviderUnavailable = errors.New("video provider unavailable")

	ErrNotFound = store.ErrNotFound
	ErrConflict = store.ErrConflict

	ErrEmailTaken = fmt.Errorf("email already exists: %w", store.ErrConflict)
)

// LockedError reports a login rejected because the identifier is locked.
type LockedError struct {
	Until time.Time
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("account locked until %s", e.Until.UTC().Format(time.RFC3339))
}

func (e *LockedError) Unwrap() error { return ErrLocked }

// ValidationError describes malformed or missing input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
