// internal/apperr/apperr.go
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation failed")
	ErrIntegrity  = errors.New("integrity violation")
)

// Error is a domain error carrying one of the sentinel kinds above.
type Error struct {
	Kind  error
	Field string
	Msg   string
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Msg)
	}
	if e.Msg != "" {
		return e.Msg
	}
	if e.Kind != nil {
		return e.Kind.Error()
	}
	return "application error"
}

func (e *Error) Unwrap() error { return e.Kind }

func NotFound(entity string, key any) *Error {
	return &Error{Kind: ErrNotFound, Msg: fmt.Sprintf("%s %v not found", entity, key)}
}

func Invalid(field, format string, args ...any) *Error {
	return &Error{Kind: ErrValidation, Field: field, Msg: fmt.Sprintf(format, args...)}
}

func Integrity(format string, args ...any) *Error {
	return &Error{Kind: ErrIntegrity, Msg: fmt.Sprintf(format, args...)}
}

// Status maps an error to the HTTP status the transports answer with.
func Status(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrIntegrity):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func Code(err error) string {
	switch Status(err) {
	case http.StatusNotFound:
		return "not_found"
	case http.StatusBadRequest:
		return "validation_failed"
	case http.StatusConflict:
		return "integrity_violation"
	case http.StatusOK:
		return ""
	default:
		return "internal"
	}
}

// IsExpected reports whether err is one of the domain kinds, as opposed to
// an unexpected failure that should be logged and hidden from callers.
func IsExpected(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrValidation) || errors.Is(err, ErrIntegrity)
}
