// Package errors defines the typed failures returned by the matching and
// negotiation core. Every failure carries a transport-neutral Code and a
// stable Reason that the presentation layer maps to a localized message.
package errors

import (
	stderrors "errors"
	"fmt"
)

type AppError struct {
	Code    Code   `json:"code"`
	Reason  string `json:"reason"`
	Message string `json:"message"`
	Cause   error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Cause }

// Is matches on Reason so that a copy carrying extra detail or a cause still
// compares equal to the package sentinel.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	if t.Reason == "" {
		return e == t
	}
	return e.Reason == t.Reason
}

// WithDetail returns a copy of e with a more specific message.
func (e *AppError) WithDetail(format string, args ...any) *AppError {
	cp := *e
	cp.Message = fmt.Sprintf("%s: %s", e.Message, fmt.Sprintf(format, args...))
	return &cp
}

// Constructors
func New(code Code, reason, message string) *AppError {
	return &AppError{Code: code, Reason: reason, Message: message}
}

func Wrap(code Code, reason, message string, cause error) *AppError {
	return &AppError{Code: code, Reason: reason, Message: message, Cause: cause}
}

func InvalidArg(reason, msg string) *AppError {
	return New(CodeInvalidArgument, reason, msg)
}

func NotFound(reason, msg string) *AppError {
	return New(CodeNotFound, reason, msg)
}

func AlreadyExists(reason, msg string) *AppError {
	return New(CodeAlreadyExists, reason, msg)
}

func Forbidden(reason, msg string) *AppError {
	return New(CodePermissionDenied, reason, msg)
}

func Unauthorized(reason, msg string) *AppError {
	return New(CodeUnauthenticated, reason, msg)
}

func FailedPrecondition(reason, msg string) *AppError {
	return New(CodeFailedPrecondition, reason, msg)
}

func Exhausted(reason, msg string) *AppError {
	return New(CodeResourceExhausted, reason, msg)
}

// As returns the AppError in err's chain, if any.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// CodeOf reports the code of err, CodeUnknown for foreign errors and "" for nil.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	if appErr, ok := As(err); ok {
		return appErr.Code
	}
	return CodeUnknown
}
