// Package apperr defines the kind-tagged errors that flow from services to the HTTP layer.
package apperr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindValidation      Kind = "validation"
	KindUnauthenticated Kind = "unauthenticated"
	KindNotFound        Kind = "not_found"
	KindUploadRejected  Kind = "upload_rejected"
	KindInternal        Kind = "internal"
)

type Error struct {
	Kind    Kind
	Code    string
	Message string
	Details map[string]string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

func Validation(message string, details map[string]string) *Error {
	return &Error{Kind: KindValidation, Code: "VALIDATION_ERROR", Message: message, Details: details}
}

// FieldError is shorthand for a single-field validation failure.
func FieldError(field, problem string) *Error {
	return Validation("invalid request", map[string]string{field: problem})
}

func NotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Code: "NOT_FOUND", Message: message}
}

func UploadRejected(message string) *Error {
	return &Error{Kind: KindUploadRejected, Code: "UPLOAD_REJECTED", Message: message}
}

func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Code: "INTERNAL_ERROR", Message: "internal error", Err: err}
}

// KindOf reports the kind of err, treating untagged errors as internal.
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

func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
