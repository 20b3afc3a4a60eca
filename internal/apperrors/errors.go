// Package apperrors defines the error taxonomy shared by the booking core and
// its collaborators.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for callers and for the HTTP layer.
type Kind string

const (
	KindValidation      Kind = "VALIDATION_ERROR"
	KindSlotUnavailable Kind = "SLOT_UNAVAILABLE"
	KindNotFound        Kind = "NOT_FOUND"
	KindUpstream        Kind = "UPSTREAM_ERROR"
	KindConfig          Kind = "CONFIG_ERROR"
	KindInternal        Kind = "INTERNAL_ERROR"
)

// Sentinels for errors.Is matching. They compare by Kind only.
var (
	ErrValidation      = &Error{Kind: KindValidation}
	ErrSlotUnavailable = &Error{Kind: KindSlotUnavailable}
	ErrNotFound        = &Error{Kind: KindNotFound}
	ErrUpstream        = &Error{Kind: KindUpstream}
	ErrConfig          = &Error{Kind: KindConfig}
)

// Error is a classified application error.
type Error struct {
	Kind    Kind
	Message string
	Details map[string]any
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is a sentinel of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Message == "" && t.Err == nil && t.Kind == e.Kind
}

// WithDetails attaches structured details and returns the error.
func (e *Error) WithDetails(details map[string]any) *Error {
	e.Details = details
	return e
}

func Validation(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func SlotUnavailable(format string, args ...any) *Error {
	return &Error{Kind: KindSlotUnavailable, Message: fmt.Sprintf(format, args...)}
}

func NotFound(resource, id string) *Error {
	return &Error{
		Kind:    KindNotFound,
		Message: fmt.Sprintf("%s not found", resource),
		Details: map[string]any{"resource": resource, "id": id},
	}
}

// Upstream wraps a failed call to the external calendar.
func Upstream(op string, err error) *Error {
	return &Error{Kind: KindUpstream, Message: op, Err: err}
}

func Config(format string, args ...any) *Error {
	return &Error{Kind: KindConfig, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of the first classified error in the chain.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// HTTPStatus maps an error to the response status used by the API.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindSlotUnavailable:
		return http.StatusConflict
	case KindNotFound:
		return http.StatusNotFound
	case KindUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
