// Package booking defines the stable error taxonomy surfaced by the booking
// API. Every error carries a machine-readable kind and a human message;
// storage details never leak to callers.
package booking

import (
	"context"
	"errors"
	"net/http"
)

type Kind string

const (
	KindUnauthenticated    Kind = "unauthenticated"
	KindValidation         Kind = "validation"
	KindQuotaExceeded      Kind = "quota_exceeded"
	KindSlotConflict       Kind = "slot_conflict"
	KindNotFound           Kind = "not_found"
	KindAlreadyCancelled   Kind = "already_cancelled"
	KindServiceUnavailable Kind = "service_unavailable"
)

type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return string(e.Kind) + ": " + e.Message
}

func NewError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Validation(message string) *Error {
	return &Error{Kind: KindValidation, Message: message}
}

// KindOf returns the kind of err when it is (or wraps) a booking error.
// Context deadline expiry maps to service_unavailable: ledger operations time
// out rather than hang, and the caller may retry after backoff.
func KindOf(err error) (Kind, bool) {
	var be *Error
	if errors.As(err, &be) {
		return be.Kind, true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindServiceUnavailable, true
	}
	return "", false
}

// HTTPStatus maps an error kind to the API status code. Quota and conflict
// failures are client errors on this API, not 409s.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindValidation, KindQuotaExceeded, KindSlotConflict, KindAlreadyCancelled:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindServiceUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
