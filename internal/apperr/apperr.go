// Package apperr carries typed error kinds from the core to the HTTP boundary.
// The boundary is the only place a Kind becomes a status code.
package apperr

import (
	"errors"
	"fmt"
	"strings"
)

type Kind string

const (
	KindInternal          Kind = "internal"
	KindValidation        Kind = "validation"
	KindNotFound          Kind = "not_found"
	KindComputationFailed Kind = "computation_failed"
)

// FieldError names the input that failed and the constraint it broke.
type FieldError struct {
	Field      string `json:"field"`
	Constraint string `json:"constraint"`
}

type Error struct {
	Kind    Kind
	Message string
	Fields  []FieldError
	Details map[string]any
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if len(e.Fields) > 0 {
		parts := make([]string, 0, len(e.Fields))
		for _, f := range e.Fields {
			parts = append(parts, f.Field+" "+f.Constraint)
		}
		msg += ": " + strings.Join(parts, "; ")
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on Kind so errors.Is(err, apperr.ErrNotFound) works for any not-found error.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Message == "" && t.Fields == nil && t.Kind == e.Kind
}

var (
	// ErrNotFound matches every KindNotFound error via errors.Is.
	ErrNotFound = &Error{Kind: KindNotFound}
	// ErrValidation matches every KindValidation error via errors.Is.
	ErrValidation = &Error{Kind: KindValidation}
)

func Validation(fields ...FieldError) *Error {
	return &Error{Kind: KindValidation, Message: "invalid input", Fields: fields}
}

// Field is shorthand for building a FieldError.
func Field(name, format string, args ...any) FieldError {
	return FieldError{Field: name, Constraint: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func ComputationFailed(format string, args ...any) *Error {
	return &Error{Kind: KindComputationFailed, Message: fmt.Sprintf(format, args...)}
}

// Internal wraps an unexpected failure (usually the store) with context.
func Internal(err error, format string, args ...any) *Error {
	return &Error{Kind: KindInternal, Message: fmt.Sprintf(format, args...), Err: err}
}

// WithDetails attaches context a client can act on, e.g. the version it should refetch.
func (e *Error) WithDetails(kv map[string]any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any, len(kv))
	}
	for k, v := range kv {
		e.Details[k] = v
	}
	return e
}

// KindOf reports the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// As returns the first *Error in err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}
