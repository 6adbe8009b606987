package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel error kinds. Concrete errors match them through errors.Is.
var (
	ErrValidation  = errors.New("validation failed")
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrUnavailable = errors.New("persistence unavailable")
)

// ValidationError reports missing or malformed fields. It is raised before
// any persistence call is made.
type ValidationError struct {
	Entity EntityType
	Fields []string
	Reason string
}

func (e *ValidationError) Error() string {
	reason := e.Reason
	if reason == "" {
		reason = "required"
	}
	return fmt.Sprintf("invalid %s: %s %s", e.Entity, strings.Join(e.Fields, ", "), reason)
}

// Is matches ErrValidation.
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// NotFoundError is returned when a referenced record does not exist.
type NotFoundError struct {
	Entity EntityType
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Entity, e.ID)
}

// Is matches ErrNotFound.
func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// ConflictError is reported by adapters that detect concurrent or duplicate writes.
type ConflictError struct {
	Entity EntityType
	ID     string
	Err    error
}

func (e *ConflictError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %q conflict: %v", e.Entity, e.ID, e.Err)
	}
	return fmt.Sprintf("%s %q conflict", e.Entity, e.ID)
}

// Is matches ErrConflict.
func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

// Unwrap exposes the adapter cause.
func (e *ConflictError) Unwrap() error { return e.Err }

// UnavailableError wraps a backend failure that prevented an operation.
type UnavailableError struct {
	Op  string
	Err error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Is matches ErrUnavailable.
func (e *UnavailableError) Is(target error) bool { return target == ErrUnavailable }

// Unwrap exposes the backend cause.
func (e *UnavailableError) Unwrap() error { return e.Err }

// Unavailable wraps err as an UnavailableError unless it already carries a
// domain error kind.
func Unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrConflict) || errors.Is(err, ErrValidation) || errors.Is(err, ErrUnavailable) {
		return err
	}
	return &UnavailableError{Op: op, Err: err}
}
