package domain

import (
	"errors"
	"strings"
)

// Error kinds. Every error surfaced by the stores and services matches exactly
// one of these through errors.Is.
var (
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
	ErrValidation = errors.New("validation failed")
	ErrStore      = errors.New("store error")
)

type kindError struct {
	msg  string
	kind error
}

func (e *kindError) Error() string { return e.msg }
func (e *kindError) Unwrap() error { return e.kind }

// NotFoundError returns an error with the given message that matches ErrNotFound.
func NotFoundError(msg string) error {
	return &kindError{msg: msg, kind: ErrNotFound}
}

// ConflictError returns an error with the given message that matches ErrConflict.
func ConflictError(msg string) error {
	return &kindError{msg: msg, kind: ErrConflict}
}

// ValidationError lists every problem found in a payload.
type ValidationError struct {
	Fields []string
}

func NewValidationError(problems ...string) *ValidationError {
	return &ValidationError{Fields: problems}
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Fields, "; ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// StoreError wraps a persistence failure that is not a not-found or conflict.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *StoreError) Unwrap() error { return e.Err }

func (e *StoreError) Is(target error) bool {
	return target == ErrStore
}
