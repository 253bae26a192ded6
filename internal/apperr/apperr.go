// Package apperr defines the error kinds shared by the POS services and the
// HTTP status each kind maps to.
package apperr

import (
	"errors"
	"net/http"
)

var (
	// ErrValidation marks input rejected before any write happens.
	ErrValidation = errors.New("validation failed")
	// ErrConflict marks a rejection caused by current persisted state, such as
	// stock that ran out between scan and commit. Clients may retry.
	ErrConflict = errors.New("conflict")
	ErrNotFound = errors.New("not found")
	// ErrExternal marks a failure reported by an outside collaborator, such as
	// the card terminal.
	ErrExternal = errors.New("external dependency failed")
)

// Coded is implemented by errors that carry a stable machine-readable code.
type Coded interface {
	Code() string
}

// Error is a kind plus a code and a human readable message.
type Error struct {
	kind error
	code string
	msg  string
}

// New builds an error of the given kind. errors.Is(err, kind) holds.
func New(kind error, code, msg string) *Error {
	return &Error{kind: kind, code: code, msg: msg}
}

func (e *Error) Error() string { return e.msg }
func (e *Error) Code() string  { return e.code }
func (e *Error) Unwrap() error { return e.kind }

// HTTPStatus maps an error to the status code a handler should answer with.
func HTTPStatus(err error) int {
	var withStatus interface{ HTTPStatus() int }
	if errors.As(err, &withStatus) {
		return withStatus.HTTPStatus()
	}

	switch {
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrExternal):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Code returns the machine code of err, or "internal_error" when it has none.
func Code(err error) string {
	var c Coded
	if errors.As(err, &c) {
		return c.Code()
	}
	return "internal_error"
}

// WithStatus overrides the HTTP status derived from an error's kind.
func WithStatus(err *Error, status int) error {
	return &statusError{err: err, status: status}
}

type statusError struct {
	err    *Error
	status int
}

func (e *statusError) Error() string   { return e.err.Error() }
func (e *statusError) Code() string    { return e.err.Code() }
func (e *statusError) HTTPStatus() int { return e.status }
func (e *statusError) Unwrap() error   { return e.err }
