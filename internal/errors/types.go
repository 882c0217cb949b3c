// Package errors provides structured error types for the repository server.
//
// Every failure surfaced to a client goes through a RepoError so that the
// dispatcher can turn it into a status message with a stable code, instead of
// dropping it. Kinds map onto the failure categories of the repository:
// validation (ownership and lifecycle rejections), not-found, storage I/O,
// transport (callback channel), connect (channel dialing exhausted), and
// parse (malformed version strings or payload documents).
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Kind represents different categories of errors.
type Kind string

const (
	KindValidation Kind = "validation"
	KindNotFound   Kind = "not_found"
	KindStorage    Kind = "storage"
	KindTransport  Kind = "transport"
	KindConnect    Kind = "connect"
	KindParse      Kind = "parse"
	KindInternal   Kind = "internal"
)

// RepoError is a structured error type with context.
type RepoError struct {
	Kind    Kind
	Code    string
	Message string
	Cause   error
	Context map[string]interface{}
	Package string
}

// Error implements the error interface.
func (e *RepoError) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}

	if e.Package != "" {
		parts = append(parts, "package:"+e.Package)
	}

	parts = append(parts, e.Message)

	result := strings.Join(parts, " ")

	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *RepoError) Unwrap() error {
	return e.Cause
}

// Is implements error comparison.
func (e *RepoError) Is(target error) bool {
	var t *RepoError
	if errors.As(target, &t) {
		return e.Kind == t.Kind && e.Code == t.Code
	}

	return false
}

// WithContext adds context information to the error.
func (e *RepoError) WithContext(key string, value interface{}) *RepoError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value

	return e
}

// WithPackage adds the versioned package name the error concerns.
func (e *RepoError) WithPackage(name string) *RepoError {
	e.Package = name

	return e
}

// WithCause attaches an underlying cause.
func (e *RepoError) WithCause(cause error) *RepoError {
	e.Cause = cause

	return e
}

// UserMessage returns the message a client should see in a status response.
// Context and causes stay in the server log; the client gets the message and,
// when set, the package name it concerns.
func (e *RepoError) UserMessage() string {
	if e.Package != "" {
		return fmt.Sprintf("%s: %s", e.Package, e.Message)
	}
	return e.Message
}

// Error creation functions

// NewValidationError creates a validation error.
func NewValidationError(code, message string) *RepoError {
	return &RepoError{
		Kind:    KindValidation,
		Code:    code,
		Message: message,
	}
}

// NewNotFoundError creates a not-found error.
func NewNotFoundError(code, message string) *RepoError {
	return &RepoError{
		Kind:    KindNotFound,
		Code:    code,
		Message: message,
	}
}

// NewStorageError creates a storage error wrapping an I/O cause.
func NewStorageError(code, message string, cause error) *RepoError {
	return &RepoError{
		Kind:    KindStorage,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewTransportError creates a transport error for a failed callback exchange.
func NewTransportError(code, message string, cause error) *RepoError {
	return &RepoError{
		Kind:    KindTransport,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewConnectError creates a connect error after channel dialing is exhausted.
func NewConnectError(code, message string, cause error) *RepoError {
	return &RepoError{
		Kind:    KindConnect,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewParseError creates a parse error.
func NewParseError(code, message string) *RepoError {
	return &RepoError{
		Kind:    KindParse,
		Code:    code,
		Message: message,
	}
}

// NewInternalError creates an internal error.
func NewInternalError(code, message string, cause error) *RepoError {
	return &RepoError{
		Kind:    KindInternal,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// IsKind reports whether err is a RepoError of the given kind.
func IsKind(err error, kind Kind) bool {
	var re *RepoError
	if errors.As(err, &re) {
		return re.Kind == kind
	}
	return false
}

// IsNotFound reports whether err is a not-found error.
func IsNotFound(err error) bool {
	return IsKind(err, KindNotFound)
}

// IsValidation reports whether err is a validation error.
func IsValidation(err error) bool {
	return IsKind(err, KindValidation)
}

// AsRepoError extracts a RepoError from err, wrapping unknown errors as
// internal so every failure has a kind and a user message.
func AsRepoError(err error) *RepoError {
	var re *RepoError
	if errors.As(err, &re) {
		return re
	}
	return NewInternalError("internal_error", "internal server error", err)
}
