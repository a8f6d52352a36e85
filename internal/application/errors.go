package application

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when the requested reservation does not exist.
	ErrNotFound = errors.New("application: not found")
	// ErrPersistence is returned when the store could not durably complete an operation.
	ErrPersistence = errors.New("application: persistence failure")
	// ErrInvalidState is returned when a login flow cannot continue, for example an unknown or expired state.
	ErrInvalidState = errors.New("application: invalid state")
	// ErrUnauthenticated is returned when the identity provider rejects a login.
	ErrUnauthenticated = errors.New("application: unauthenticated")
)

// ValidationError captures field level validation issues that callers can surface to users.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil {
		return ""
	}
	return "validation failed"
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// add records a field level validation error. The first message for a field wins.
func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	if _, exists := v.FieldErrors[field]; exists {
		return
	}
	v.FieldErrors[field] = message
}

// ConflictError reports that a requested slot overlaps existing reservations.
type ConflictError struct {
	Conflicts []Reservation
}

// Error implements the error interface.
func (c *ConflictError) Error() string {
	if c == nil {
		return ""
	}
	return fmt.Sprintf("time slot conflicts with %d existing reservation(s)", len(c.Conflicts))
}
