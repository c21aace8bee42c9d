// Package storage declares the persistence contracts of the booking core:
// the capacity ledger, the event/booking/user stores and the unit of work
// that makes ledger and booking mutations commit together.
package storage

import (
	"context"
	"errors"

	"github.com/Shivanand-hulikatti/eventhub/internal/model"
)

// ErrDuplicateIdempotencyKey is returned by BookingStore.Create when the
// holder already has a booking with the same idempotency key.
var ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")

// ErrDuplicateEmail is returned by UserStore.Create for an email in use.
var ErrDuplicateEmail = errors.New("email already registered")

// Ledger is the authoritative record of each event's remaining seats.
//
// Every method is atomic with respect to other ledger calls on the same
// event and keeps 0 <= remaining <= total. Inside a transaction the event
// stays locked until commit or rollback, so concurrent reservations on one
// event are serializable. Different events never block each other.
type Ledger interface {
	// Reserve takes seats from the event's remaining capacity and returns
	// the new remaining count. It fails with apperr.KindNotFound for an
	// unknown event and apperr.KindInsufficientCapacity when seats exceeds
	// what is left; in both cases nothing changes. seats below 1 is rejected
	// with apperr.KindInvalidRequest.
	Reserve(ctx context.Context, eventID string, seats int) (int, error)

	// Release gives seats back, clamped at the event's total capacity.
	// seats below 1 is rejected with apperr.KindInvalidRequest.
	Release(ctx context.Context, eventID string, seats int) (int, error)

	// Resize changes the total capacity and shifts remaining by the same
	// delta. A total below the booked count is rejected.
	Resize(ctx context.Context, eventID string, total int) (int, error)
}

// EventStore persists events. Capacity columns are owned by the Ledger;
// Update never touches them.
type EventStore interface {
	Create(ctx context.Context, e *model.Event) error
	Get(ctx context.Context, id string) (*model.Event, error)
	// GetForUpdate reads an event and locks it until the transaction ends.
	GetForUpdate(ctx context.Context, id string) (*model.Event, error)
	List(ctx context.Context) ([]model.Event, error)
	Update(ctx context.Context, e *model.Event) error
	Delete(ctx context.Context, id string) error
}

// BookingStore persists bookings.
type BookingStore interface {
	Create(ctx context.Context, b *model.Booking) error
	Get(ctx context.Context, id string) (*model.Booking, error)
	// GetForUpdate reads a booking and locks it until the transaction ends.
	GetForUpdate(ctx context.Context, id string) (*model.Booking, error)
	FindByIdempotencyKey(ctx context.Context, userID, key string) (*model.Booking, error)
	// MarkCancelled moves an active booking to cancelled. It fails with
	// apperr.KindAlreadyCancelled when the booking is not active.
	MarkCancelled(ctx context.Context, b *model.Booking) error
	ListByUser(ctx context.Context, userID string) ([]model.BookingDetail, error)
	CountActiveByEvent(ctx context.Context, eventID string) (int, error)
}

// UserStore persists accounts.
type UserStore interface {
	Create(ctx context.Context, u *model.User) error
	Get(ctx context.Context, id string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
}

// Tx exposes the stores bound to one unit of work.
type Tx interface {
	Ledger() Ledger
	Events() EventStore
	Bookings() BookingStore
	Users() UserStore
}

// Store runs units of work. When fn returns an error every mutation made
// through tx is rolled back; otherwise all of them commit together.
type Store interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	Ping(ctx context.Context) error
	Close()
}
