// Package apperr defines the error taxonomy shared by services and handlers.
// Every error that reaches a handler is decoded into an HTTP status, a stable
// machine-readable code and a message safe to show to the caller.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	CodeValidation          = "VALIDATION_ERROR"
	CodeUnauthorized        = "UNAUTHORIZED"
	CodeForbidden           = "FORBIDDEN"
	CodeNotFound            = "NOT_FOUND"
	CodeConflict            = "CONFLICT"
	CodeInsufficientCredits = "INSUFFICIENT_CREDITS"
	CodeDefinitiveFailure   = "DEFINITIVE_FAILURE"
	CodeInvalidTransition   = "INVALID_TRANSITION"
	CodeInternal            = "INTERNAL_ERROR"
)

// Error is a classified application error.
type Error struct {
	Status  int
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Is matches on Code so that copies created by the constructors below still
// satisfy errors.Is against the sentinels.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// Sentinels, usable with errors.Is.
var (
	ErrValidation          = &Error{Status: http.StatusBadRequest, Code: CodeValidation, Message: "invalid request"}
	ErrUnauthorized        = &Error{Status: http.StatusUnauthorized, Code: CodeUnauthorized, Message: "authentication required"}
	ErrForbidden           = &Error{Status: http.StatusForbidden, Code: CodeForbidden, Message: "insufficient permissions"}
	ErrNotFound            = &Error{Status: http.StatusNotFound, Code: CodeNotFound, Message: "resource not found"}
	ErrConflict            = &Error{Status: http.StatusConflict, Code: CodeConflict, Message: "resource already exists"}
	ErrInsufficientCredits = &Error{Status: http.StatusPaymentRequired, Code: CodeInsufficientCredits, Message: "insufficient credits"}
	ErrDefinitiveFailure   = &Error{Status: http.StatusConflict, Code: CodeDefinitiveFailure, Message: "retry budget exhausted"}
	ErrInvalidTransition   = &Error{Status: http.StatusConflict, Code: CodeInvalidTransition, Message: "invalid status transition"}
	ErrInternal            = &Error{Status: http.StatusInternalServerError, Code: CodeInternal, Message: "internal server error"}
)

func newf(base *Error, format string, args ...any) *Error {
	return &Error{Status: base.Status, Code: base.Code, Message: fmt.Sprintf(format, args...)}
}

func Validation(format string, args ...any) *Error   { return newf(ErrValidation, format, args...) }
func Unauthorized(format string, args ...any) *Error { return newf(ErrUnauthorized, format, args...) }
func Forbidden(format string, args ...any) *Error    { return newf(ErrForbidden, format, args...) }
func NotFound(format string, args ...any) *Error     { return newf(ErrNotFound, format, args...) }
func Conflict(format string, args ...any) *Error     { return newf(ErrConflict, format, args...) }

func InsufficientCredits(format string, args ...any) *Error {
	return newf(ErrInsufficientCredits, format, args...)
}

func DefinitiveFailure(format string, args ...any) *Error {
	return newf(ErrDefinitiveFailure, format, args...)
}

func InvalidTransition(format string, args ...any) *Error {
	return newf(ErrInvalidTransition, format, args...)
}

// Decode converts any error into (status, code, message). Unclassified errors
// become a generic 500 so that internal details never reach the client.
func Decode(err error) (int, string, string) {
	if err == nil {
		return http.StatusOK, "", ""
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Status, appErr.Code, appErr.Message
	}
	return ErrInternal.Status, ErrInternal.Code, ErrInternal.Message
}
