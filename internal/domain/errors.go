package domain

import (
	"errors"
	"strings"
)

var (
	ErrNotFound              = errors.New("not found")
	ErrDuplicateEmail        = errors.New("email already exists")
	ErrUnauthorized          = errors.New("unauthorized")
	ErrInvalidInput          = errors.New("invalid input")
	ErrInvalidCSRFToken      = errors.New("invalid csrf token")
	ErrTokenInvalidOrExpired = errors.New("reset token is invalid or has expired")
	ErrMailDispatch          = errors.New("mail dispatch failed")
)

// FieldError describes a single rejected form field.
type FieldError struct {
	Field   string
	Message string
}

// ValidationError carries every rule a submitted form violated.
// It matches ErrInvalidInput with errors.Is.
type ValidationError struct {
	Fields []FieldError
}

// NewValidationError builds a ValidationError for a single field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: []FieldError{{Field: field, Message: message}}}
}

// Add appends a field failure.
func (e *ValidationError) Add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}

// Empty reports whether no field failed.
func (e *ValidationError) Empty() bool {
	return e == nil || len(e.Fields) == 0
}

// Has reports whether the given field failed.
func (e *ValidationError) Has(field string) bool {
	if e == nil {
		return false
	}
	for _, f := range e.Fields {
		if f.Field == field {
			return true
		}
	}
	return false
}

// Error joins every field message.
func (e *ValidationError) Error() string {
	if e.Empty() {
		return ErrInvalidInput.Error()
	}
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, f.Message)
	}
	return strings.Join(msgs, "; ")
}

// First returns the first failure message.
func (e *ValidationError) First() string {
	if e.Empty() {
		return ""
	}
	return e.Fields[0].Message
}

func (e *ValidationError) Unwrap() error { return ErrInvalidInput }
