// Package apperr defines the error taxonomy shared by every service in the
// ingestion and metadata pipeline, and its mapping onto HTTP statuses.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind int

const (
	KindInternal Kind = iota
	KindBadRequest
	KindUnauthorized
	KindNotFound
	KindConflict
	KindUpstream
	KindPayloadTooLarge
	KindUnprocessable
	KindConfiguration
)

func (k Kind) String() string {
	switch k {
	case KindBadRequest:
		return "BAD_REQUEST"
	case KindUnauthorized:
		return "UNAUTHORIZED"
	case KindNotFound:
		return "NOT_FOUND"
	case KindConflict:
		return "CONFLICT"
	case KindUpstream:
		return "UPSTREAM_ERROR"
	case KindPayloadTooLarge:
		return "PAYLOAD_TOO_LARGE"
	case KindUnprocessable:
		return "UNPROCESSABLE_ENTITY"
	case KindConfiguration:
		return "CONFIGURATION_ERROR"
	default:
		return "INTERNAL_ERROR"
	}
}

// Error is a classified failure. Body carries the upstream response body
// when the failure originated in the video store or the model backend.
type Error struct {
	Kind    Kind
	Message string
	Body    string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func BadRequest(message string) *Error {
	return New(KindBadRequest, message)
}

func NotFound(message string) *Error {
	return New(KindNotFound, message)
}

func Conflict(message string) *Error {
	return New(KindConflict, message)
}

func Unprocessable(message string, err error) *Error {
	return Wrap(KindUnprocessable, message, err)
}

func Configuration(message string, err error) *Error {
	return Wrap(KindConfiguration, message, err)
}

func PayloadTooLarge(size, limit int64) *Error {
	return New(KindPayloadTooLarge, fmt.Sprintf("source is %d bytes, limit is %d bytes", size, limit))
}

// Upstream records a non-success answer from a remote collaborator.
func Upstream(message, body string, err error) *Error {
	return &Error{Kind: KindUpstream, Message: message, Body: body, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or
// KindInternal when err is unclassified.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Details returns the upstream body attached to err, if any.
func Details(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Body
	}
	return ""
}

func StatusCode(err error) int {
	switch KindOf(err) {
	case KindBadRequest:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindUpstream:
		return http.StatusBadGateway
	case KindPayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	case KindUnprocessable:
		return http.StatusUnprocessableEntity
	case KindConfiguration:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
