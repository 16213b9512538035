// Package domainerrors carries coded errors from services to transports.
//
// Services return *Error values; the HTTP layer maps Code to a status without
// inspecting messages. Infrastructure facts (not found, conflict) come from
// pkg/platform/sentinel and are translated into codes by the service layer.
package domainerrors

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Code classifies a domain error.
type Code string

const (
	CodeValidation          Code = "validation_error"
	CodeBadRequest          Code = "bad_request"
	CodeIdentityMismatch    Code = "identity_mismatch"
	CodeNotFound            Code = "not_found"
	CodeDuplicateIdentity   Code = "duplicate_identity"
	CodeConcurrencyConflict Code = "concurrency_conflict"
	CodeUnavailable         Code = "unavailable"
	CodeTimeout             Code = "timeout"
	CodeInternal            Code = "internal_error"
)

// FieldErrors maps a JSON field name to its violation messages.
type FieldErrors map[string][]string

// Add appends a message for field.
func (f FieldErrors) Add(field, message string) {
	f[field] = append(f[field], message)
}

// Fields returns the violated field names in sorted order.
func (f FieldErrors) Fields() []string {
	names := make([]string, 0, len(f))
	for name := range f {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Error is a coded domain error with an optional wrapped cause.
type Error struct {
	Code    Code
	Message string
	Fields  FieldErrors
	cause   error
}

func (e *Error) Error() string {
	msg := e.Message
	if len(e.Fields) > 0 {
		parts := make([]string, 0, len(e.Fields))
		for _, name := range e.Fields.Fields() {
			parts = append(parts, name+": "+strings.Join(e.Fields[name], "; "))
		}
		msg = fmt.Sprintf("%s (%s)", msg, strings.Join(parts, ", "))
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.cause)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.cause
}

// New builds a coded error.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap builds a coded error around cause. errors.Is/As still reach the cause.
func Wrap(cause error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, cause: cause}
}

// NewValidation builds a CodeValidation error listing every violated field.
func NewValidation(message string, fields FieldErrors) *Error {
	return &Error{Code: CodeValidation, Message: message, Fields: fields}
}

// CodeOf returns the code of the outermost *Error in err's chain, or CodeInternal.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	return errors.As(err, &de) && de.Code == code
}

// Is is an alias of HasCode kept for handler readability.
func Is(err error, code Code) bool {
	return HasCode(err, code)
}

// FieldsOf returns the field violations carried by err, if any.
func FieldsOf(err error) FieldErrors {
	var de *Error
	if errors.As(err, &de) {
		return de.Fields
	}
	return nil
}
