// Package common defines shared sentinel errors used across MTMS layers.
// Callers should use errors.Is to match these values.
package common

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// Identity errors.
	ErrDuplicateUsername = errors.New("username already exists")
	ErrAuthFailed        = errors.New("invalid username or password")

	// Ledger errors.
	ErrValidation   = errors.New("validation error")
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrConflict     = errors.New("concurrent modification conflict")

	// Persistence errors.
	ErrPersistence       = errors.New("persistence error")
	ErrUnsupportedSchema = errors.New("unsupported snapshot schema version")
	ErrClosed            = errors.New("store is closed")

	// Session errors.
	ErrInvalidToken = errors.New("invalid token")
	ErrNoSession    = errors.New("no active session")
)

// ValidationError lists the offending fields of a rejected input.
// It matches ErrValidation via errors.Is.
type ValidationError struct {
	Fields map[string]string
}

// NewValidationError builds a ValidationError with a single field message.
func NewValidationError(field, msg string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: msg}}
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return ErrValidation.Error()
	}
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s: %s", name, e.Fields[name]))
	}
	return fmt.Sprintf("%s: %s", ErrValidation, strings.Join(parts, "; "))
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// Persistence wraps a storage failure so that it matches ErrPersistence
// while keeping the underlying cause reachable.
func Persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s: %w", ErrPersistence, op, err)
}
