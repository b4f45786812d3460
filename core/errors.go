package core

import (
	stderrors "errors"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrUnauthorized     = errors.New("user not authenticated")
	ErrPermissionDenied = errors.New("permission denied")
)

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Unwrap() error { return err.Err }

func (err ValidationError) Error() string {
	if err.Err == nil {
		if len(err.Fields) > 0 {
			return err.Fields[0].Field + ": " + err.Fields[0].Error
		}
		return "validation failed"
	}
	return err.Err.Error()
}

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}

// StatusMessage converts err into the short, human-readable status string shown inline to users.
// Unknown errors are never described beyond a generic message.
func StatusMessage(err error) string {
	if err == nil {
		return ""
	}
	var sm interface{ StatusMessage() string }
	if stderrors.As(err, &sm) {
		return sm.StatusMessage()
	}
	var vErr *ValidationError
	if stderrors.As(err, &vErr) {
		return vErr.Error()
	}
	var fErrs validator.ValidationErrors
	if stderrors.As(err, &fErrs) && len(fErrs) > 0 {
		return fErrs[0].Field() + " is invalid"
	}
	switch {
	case stderrors.Is(err, ErrNotFound):
		return "Something went wrong, please try again."
	case stderrors.Is(err, ErrUnauthorized):
		return "Please sign in again."
	case stderrors.Is(err, ErrPermissionDenied):
		return "You are not allowed to do this."
	}
	return "Something went wrong, please try again."
}
