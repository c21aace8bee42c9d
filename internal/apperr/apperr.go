// Package apperr defines the error kinds the booking core returns to its
// callers and how each kind is presented at the HTTP boundary.
package apperr

import (
	"errors"
	"net/http"
)

// Kind is a machine-readable error category.
type Kind string

const (
	KindInternal               Kind = "INTERNAL"
	KindInvalidRequest         Kind = "INVALID_REQUEST"
	KindUnauthenticated        Kind = "UNAUTHENTICATED"
	KindForbidden              Kind = "FORBIDDEN"
	KindNotFound               Kind = "NOT_FOUND"
	KindConflict               Kind = "CONFLICT"
	KindInsufficientCapacity   Kind = "INSUFFICIENT_CAPACITY"
	KindAlreadyCancelled       Kind = "ALREADY_CANCELLED"
	KindEventClosed            Kind = "EVENT_CLOSED"
	KindEventHasActiveBookings Kind = "EVENT_HAS_ACTIVE_BOOKINGS"
	KindUnavailable            Kind = "UNAVAILABLE"
)

// HTTPStatus maps a kind to the status code used at the API boundary.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindInvalidRequest:
		return http.StatusBadRequest
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict, KindInsufficientCapacity, KindAlreadyCancelled:
		return http.StatusConflict
	case KindEventClosed, KindEventHasActiveBookings:
		return http.StatusUnprocessableEntity
	case KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Public reports whether the error message is safe to show to end users.
// Infrastructure failures are reported generically.
func (k Kind) Public() bool {
	return k != KindInternal && k != KindUnavailable
}

// Error is a domain error carrying a kind.
type Error struct {
	Kind     Kind           // Machine-readable kind
	Message  string         // Human-readable message
	Metadata map[string]any // Extra fields echoed in the error payload
	Cause    error          // Wrapped underlying error
}

func (e *Error) Error() string {
	if e.Cause != nil && !e.Kind.Public() {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Kind == t.Kind
	}
	return false
}

// New creates an error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates an error of the given kind wrapping cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// WithMetadata creates an error of the given kind with extra payload fields.
func WithMetadata(kind Kind, message string, metadata map[string]any) *Error {
	return &Error{Kind: kind, Message: message, Metadata: metadata}
}

// Sentinels for errors.Is checks. Matching is by kind only.
var (
	ErrInvalidRequest         = New(KindInvalidRequest, "invalid request")
	ErrUnauthenticated        = New(KindUnauthenticated, "authentication required")
	ErrForbidden              = New(KindForbidden, "forbidden")
	ErrNotFound               = New(KindNotFound, "not found")
	ErrConflict               = New(KindConflict, "conflict")
	ErrInsufficientCapacity   = New(KindInsufficientCapacity, "not enough seats available")
	ErrAlreadyCancelled       = New(KindAlreadyCancelled, "booking is already cancelled")
	ErrEventClosed            = New(KindEventClosed, "event has already taken place")
	ErrEventHasActiveBookings = New(KindEventHasActiveBookings, "cannot delete event with active bookings")
	ErrUnavailable            = New(KindUnavailable, "service unavailable")
)

// KindOf returns the kind of the first *Error in err's chain, or
// KindInternal when there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Invalid is shorthand for New(KindInvalidRequest, message).
func Invalid(message string) *Error {
	return New(KindInvalidRequest, message)
}
