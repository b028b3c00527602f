package models

import (
	"errors"
	"fmt"
)

var (
	// ErrRoomNotFound means the room id does not resolve to a document.
	ErrRoomNotFound = errors.New("room not found")

	// ErrRoomFull means the room already has both participants.
	ErrRoomFull = errors.New("room is full")

	// ErrUserNotFound means the participant is not in the room.
	ErrUserNotFound = errors.New("user not found in room")
)

// ValidationError reports missing or invalid input. Nothing was written.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NewValidationError builds a ValidationError for field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// StoreError wraps a failed read, write or subscribe against the tree
// store. Operations are never retried automatically.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("operation failed: %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// IsValidation reports whether err is a *ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// IsDomainError reports whether err belongs to the room error taxonomy
// rather than the underlying store.
func IsDomainError(err error) bool {
	return IsValidation(err) ||
		errors.Is(err, ErrRoomNotFound) ||
		errors.Is(err, ErrRoomFull) ||
		errors.Is(err, ErrUserNotFound)
}
