// Package model defines the core domain types for the event booking system.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event represents a bookable event created by an organizer.
// MaxSeats is the event's total capacity and AvailableSeats what is left
// after active bookings; the ledger keeps 0 <= AvailableSeats <= MaxSeats.
type Event struct {
	ID             string          `json:"id"`
	OrganizerID    string          `json:"organizer_id"`
	Title          string          `json:"title"`
	Description    string          `json:"description"`
	Date           time.Time       `json:"date"`
	Location       string          `json:"location"`
	Category       string          `json:"category"`
	Image          string          `json:"image"`
	Price          decimal.Decimal `json:"price"`
	MaxSeats       int             `json:"max_seats"`
	AvailableSeats int             `json:"available_seats"`
	CreatedAt      time.Time       `json:"created_at"`
}

// Booked returns the number of seats held by active bookings.
func (e *Event) Booked() int {
	return e.MaxSeats - e.AvailableSeats
}

// IsFull returns true when no seats remain.
func (e *Event) IsFull() bool {
	return e.AvailableSeats <= 0
}

// HasStarted reports whether the event's scheduled time is at or before now.
func (e *Event) HasStarted(now time.Time) bool {
	return !e.Date.After(now)
}

// BookingState is the lifecycle state of a booking.
type BookingState string

const (
	BookingActive    BookingState = "active"
	BookingCancelled BookingState = "cancelled"
)

// Booking is a reservation of SeatCount seats on one event by one user.
type Booking struct {
	ID             string       `json:"id"`
	EventID        string       `json:"event_id"`
	UserID         string       `json:"user_id"`
	SeatCount      int          `json:"seat_count"`
	State          BookingState `json:"state"`
	IdempotencyKey string       `json:"-"`
	CreatedAt      time.Time    `json:"booking_date"`
	CancelledAt    *time.Time   `json:"cancelled_at,omitempty"`
}

// IsActive reports whether the booking still holds its seats.
func (b *Booking) IsActive() bool {
	return b.State == BookingActive
}

// BookingDetail is a booking joined with the event fields shown in a
// holder's booking list.
type BookingDetail struct {
	Booking
	EventTitle string    `json:"event_title"`
	EventDate  time.Time `json:"event_date"`
}

// User is an account. Organizers own events, everyone may book.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	IsOrganizer  bool      `json:"is_organizer"`
	CreatedAt    time.Time `json:"created_at"`
}

// ─── Requests ────────────────────────────────────────────────────────────────

// CreateEventRequest is the payload for creating a new event.
type CreateEventRequest struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Date        time.Time       `json:"date"`
	Location    string          `json:"location"`
	Category    string          `json:"category"`
	Image       string          `json:"image"`
	Price       decimal.Decimal `json:"price"`
	MaxSeats    int             `json:"max_seats"`
}

// UpdateEventRequest is a partial update; nil fields are left unchanged.
type UpdateEventRequest struct {
	Title       *string          `json:"title,omitempty"`
	Description *string          `json:"description,omitempty"`
	Date        *time.Time       `json:"date,omitempty"`
	Location    *string          `json:"location,omitempty"`
	Category    *string          `json:"category,omitempty"`
	Image       *string          `json:"image,omitempty"`
	Price       *decimal.Decimal `json:"price,omitempty"`
	MaxSeats    *int             `json:"max_seats,omitempty"`
}

// CreateBookingRequest is the payload for reserving seats. The idempotency
// key travels in the Idempotency-Key header, not the body.
type CreateBookingRequest struct {
	EventID        string `json:"event_id"`
	SeatCount      int    `json:"seat_count"`
	IdempotencyKey string `json:"-"`
}

// RegisterRequest is the payload for creating an account.
type RegisterRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	Name        string `json:"name"`
	IsOrganizer bool   `json:"is_organizer"`
}

// LoginRequest is the payload for exchanging credentials for a token.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ─── Responses ───────────────────────────────────────────────────────────────

// BookingResult is the outcome of a successful booking. AvailableSeats is
// the ledger's value right after the reservation and the only seat count a
// caller may display.
type BookingResult struct {
	Message        string   `json:"message"`
	Booking        *Booking `json:"booking"`
	AvailableSeats int      `json:"available_seats"`
	Replayed       bool     `json:"replayed,omitempty"`
}

// CancelResult is the outcome of a successful cancellation.
type CancelResult struct {
	OK             bool   `json:"ok"`
	Message        string `json:"message"`
	AvailableSeats int    `json:"available_seats"`
}

// EventCreatedResponse wraps a newly created event.
type EventCreatedResponse struct {
	Message string `json:"message"`
	Event   *Event `json:"event"`
}

// EventDeletedResponse confirms an event deletion.
type EventDeletedResponse struct {
	Message        string `json:"message"`
	DeletedEventID string `json:"deleted_event_id"`
}

// AuthResponse carries a freshly issued access token.
type AuthResponse struct {
	AccessToken string `json:"access_token"`
	User        *User  `json:"user"`
}

// ErrorResponse is a standard JSON error envelope.
type ErrorResponse struct {
	Error          string `json:"error"`
	AvailableSeats *int   `json:"available_seats,omitempty"`
	BookingsCount  *int   `json:"bookings_count,omitempty"`
}
