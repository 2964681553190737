package chat

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	CodeValidation  = "validation"
	CodeNotFound    = "not_found"
	CodeUnavailable = "unavailable"
	CodeInternal    = "internal"
)

// Error is the service-boundary error. Transports map Code onto their own
// status vocabulary.
type Error struct {
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Err: cause}
}

func validationError(message string) error {
	return newError(CodeValidation, message, nil)
}

func internalError(message string, cause error) error {
	return newError(CodeInternal, message, cause)
}

// Code returns the error code carried by err, or CodeInternal for errors that
// did not originate in this package.
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// Message returns a client-safe description of err.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "internal error"
}

// HTTPStatus maps err onto an HTTP status code.
func HTTPStatus(err error) int {
	switch Code(err) {
	case CodeValidation:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
