// Package apperror holds the error taxonomy shared by the socket protocol and
// the REST API.
package apperror

import (
	"errors"
	"net/http"
)

var (
	ErrAuthRequired         = errors.New("authentication required")
	ErrForbidden            = errors.New("forbidden")
	ErrNotFound             = errors.New("not found")
	ErrValidation           = errors.New("validation error")
	ErrRetrievalUnavailable = errors.New("retrieval unavailable")
	ErrGenerationTimeout    = errors.New("generation timed out")
	ErrGenerationFailed     = errors.New("generation failed")
	ErrPersistence          = errors.New("persistence error")
)

// Error carries a user facing message next to its kind.
type Error struct {
	Kind    error
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}

func New(kind error, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind error, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func Validation(message string) *Error {
	return New(ErrValidation, message)
}

func NotFound(message string) *Error {
	return New(ErrNotFound, message)
}

func Forbidden(message string) *Error {
	return New(ErrForbidden, message)
}

func Persistence(message string, err error) *Error {
	return Wrap(ErrPersistence, message, err)
}

var codes = []struct {
	kind   error
	code   string
	status int
}{
	{ErrAuthRequired, "auth_required", http.StatusUnauthorized},
	{ErrForbidden, "forbidden", http.StatusForbidden},
	{ErrNotFound, "not_found", http.StatusNotFound},
	{ErrValidation, "validation_error", http.StatusBadRequest},
	{ErrRetrievalUnavailable, "retrieval_unavailable", http.StatusServiceUnavailable},
	{ErrGenerationTimeout, "generation_timeout", http.StatusGatewayTimeout},
	{ErrGenerationFailed, "generation_error", http.StatusBadGateway},
	{ErrPersistence, "persistence_error", http.StatusInternalServerError},
}

// Code returns the wire code for err, "internal_error" when it has no kind.
func Code(err error) string {
	for _, c := range codes {
		if errors.Is(err, c.kind) {
			return c.code
		}
	}
	return "internal_error"
}

func HTTPStatus(err error) int {
	for _, c := range codes {
		if errors.Is(err, c.kind) {
			return c.status
		}
	}
	return http.StatusInternalServerError
}

// Message returns the user facing text. Errors without a kind get a generic
// message so internals do not leak.
func Message(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	for _, c := range codes {
		if errors.Is(err, c.kind) {
			return c.kind.Error()
		}
	}
	return "internal server error"
}
