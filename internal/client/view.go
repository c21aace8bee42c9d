package client

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/Shivanand-hulikatti/eventhub/internal/model"
)

// ErrPending is returned when a view already has a request in flight.
var ErrPending = errors.New("request already in progress")

// EventState is a snapshot of an EventView.
type EventState struct {
	Event     model.Event
	Pending   bool
	LastError error
}

// EventView is the displayed state of one event.
//
// Seat counts shown to the user only ever come from the server: Book
// replaces AvailableSeats with the value in the booking response and never
// does arithmetic on the previous value. A failed request leaves the event
// untouched and records the error.
type EventView struct {
	client *Client

	mu      sync.Mutex
	event   model.Event
	pending bool
	lastErr error
}

// NewEventView returns a view seeded with e.
func NewEventView(c *Client, e model.Event) *EventView {
	return &EventView{client: c, event: e}
}

// State returns a snapshot of the view.
func (v *EventView) State() EventState {
	v.mu.Lock()
	defer v.mu.Unlock()
	return EventState{Event: v.event, Pending: v.pending, LastError: v.lastErr}
}

// Reload replaces the event with the server's copy.
func (v *EventView) Reload(ctx context.Context) error {
	id, err := v.begin()
	if err != nil {
		return err
	}
	e, err := v.client.GetEvent(ctx, id)

	v.mu.Lock()
	defer v.mu.Unlock()
	v.pending = false
	if err != nil {
		v.lastErr = err
		return err
	}
	v.event = *e
	v.lastErr = nil
	return nil
}

// Book reserves seats on the viewed event. Pass a key from
// NewIdempotencyKey to make a retry safe; an empty key sends none.
func (v *EventView) Book(ctx context.Context, creds Credentials, seats int, idempotencyKey string) (*model.BookingResult, error) {
	id, err := v.begin()
	if err != nil {
		return nil, err
	}
	res, err := v.client.CreateBooking(ctx, creds, model.CreateBookingRequest{
		EventID:        id,
		SeatCount:      seats,
		IdempotencyKey: idempotencyKey,
	})

	v.mu.Lock()
	defer v.mu.Unlock()
	v.pending = false
	if err != nil {
		v.lastErr = err
		return nil, err
	}
	v.event.AvailableSeats = res.AvailableSeats
	v.lastErr = nil
	return res, nil
}

// ApplyCancellation takes in the remaining seat count the server reported
// when a booking on this event was cancelled, for example through a
// BookingsView.
func (v *EventView) ApplyCancellation(res *model.CancelResult) {
	if res == nil || !res.OK {
		return
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.event.AvailableSeats = res.AvailableSeats
}

func (v *EventView) begin() (string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.pending {
		return "", ErrPending
	}
	v.pending = true
	return v.event.ID, nil
}

// BookingsState is a snapshot of a BookingsView. LastError is the failure
// of the last request. RefreshError is set when an action succeeded but
// reloading the list afterwards failed.
type BookingsState struct {
	Bookings     []model.BookingDetail
	Pending      bool
	LastError    error
	RefreshError error
}

// BookingsView is the caller's "my bookings" list. The list is always
// replaced wholesale by what the server returns.
type BookingsView struct {
	client *Client

	mu         sync.Mutex
	bookings   []model.BookingDetail
	pending    bool
	lastErr    error
	refreshErr error
}

// NewBookingsView returns an empty view.
func NewBookingsView(c *Client) *BookingsView {
	return &BookingsView{client: c}
}

// State returns a snapshot of the view.
func (v *BookingsView) State() BookingsState {
	v.mu.Lock()
	defer v.mu.Unlock()
	return BookingsState{
		Bookings:     slices.Clone(v.bookings),
		Pending:      v.pending,
		LastError:    v.lastErr,
		RefreshError: v.refreshErr,
	}
}

// Refresh loads the caller's bookings.
func (v *BookingsView) Refresh(ctx context.Context, creds Credentials) error {
	if err := v.begin(); err != nil {
		return err
	}
	list, err := v.client.MyBookings(ctx, creds)
	v.finish(list, err)
	return err
}

// Cancel cancels a booking and then reloads the list from the server. If
// the cancellation fails the list is left as it was and the error is
// returned. If it succeeds but the reload fails, Cancel still returns the
// result; the booking is shown as cancelled, since the server confirmed
// it, and the reload error is kept in RefreshError.
func (v *BookingsView) Cancel(ctx context.Context, creds Credentials, bookingID string) (*model.CancelResult, error) {
	if err := v.begin(); err != nil {
		return nil, err
	}
	res, err := v.client.CancelBooking(ctx, creds, bookingID)
	if err != nil {
		v.finish(nil, err)
		return nil, err
	}
	list, err := v.client.MyBookings(ctx, creds)

	v.mu.Lock()
	defer v.mu.Unlock()
	v.pending = false
	v.lastErr = nil
	if err != nil {
		v.refreshErr = err
		for i := range v.bookings {
			if v.bookings[i].ID == bookingID {
				v.bookings[i].State = model.BookingCancelled
			}
		}
		return res, nil
	}
	v.bookings = list
	v.refreshErr = nil
	return res, nil
}

func (v *BookingsView) begin() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.pending {
		return ErrPending
	}
	v.pending = true
	return nil
}

func (v *BookingsView) finish(list []model.BookingDetail, err error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.pending = false
	if err != nil {
		v.lastErr = err
		return
	}
	v.bookings = list
	v.lastErr = nil
	v.refreshErr = nil
}
