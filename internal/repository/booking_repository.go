package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/Shivanand-hulikatti/eventhub/internal/apperr"
	"github.com/Shivanand-hulikatti/eventhub/internal/model"
	"github.com/Shivanand-hulikatti/eventhub/internal/storage"
)

const bookingColumns = `id, event_id, user_id, seat_count, state,
	COALESCE(idempotency_key, ''), created_at, cancelled_at`

// BookingRepository handles persistence for bookings.
type BookingRepository struct {
	q querier
}

func scanBooking(row pgx.Row) (*model.Booking, error) {
	var b model.Booking
	err := row.Scan(&b.ID, &b.EventID, &b.UserID, &b.SeatCount, &b.State,
		&b.IdempotencyKey, &b.CreatedAt, &b.CancelledAt)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// Create inserts a booking. A repeated (user, idempotency key) pair returns
// storage.ErrDuplicateIdempotencyKey.
func (r *BookingRepository) Create(ctx context.Context, b *model.Booking) error {
	var key *string
	if b.IdempotencyKey != "" {
		key = &b.IdempotencyKey
	}
	_, err := r.q.Exec(ctx,
		`INSERT INTO bookings (id, event_id, user_id, seat_count, state, idempotency_key, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		b.ID, b.EventID, b.UserID, b.SeatCount, b.State, key, b.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err, "bookings_user_idempotency_key") {
			return storage.ErrDuplicateIdempotencyKey
		}
		return fmt.Errorf("insert booking: %w", err)
	}
	return nil
}

// Get returns a single booking or a NotFound error.
func (r *BookingRepository) Get(ctx context.Context, id string) (*model.Booking, error) {
	b, err := scanBooking(r.q.QueryRow(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "booking", "get booking")
	}
	return b, nil
}

// GetForUpdate returns a booking and holds its row lock until the
// transaction ends, so two cancellations of one booking serialize.
func (r *BookingRepository) GetForUpdate(ctx context.Context, id string) (*model.Booking, error) {
	b, err := scanBooking(r.q.QueryRow(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, notFound(err, "booking", "lock booking")
	}
	return b, nil
}

// FindByIdempotencyKey returns the holder's booking created with key.
func (r *BookingRepository) FindByIdempotencyKey(ctx context.Context, userID, key string) (*model.Booking, error) {
	b, err := scanBooking(r.q.QueryRow(ctx,
		`SELECT `+bookingColumns+`
		 FROM bookings
		 WHERE user_id = $1 AND idempotency_key = $2`,
		userID, key))
	if err != nil {
		return nil, notFound(err, "booking", "find booking by idempotency key")
	}
	return b, nil
}

// MarkCancelled moves an active booking to cancelled. The state predicate
// makes the transition a compare-and-swap.
func (r *BookingRepository) MarkCancelled(ctx context.Context, b *model.Booking) error {
	now := time.Now().UTC()
	if b.CancelledAt != nil {
		now = *b.CancelledAt
	}
	tag, err := r.q.Exec(ctx,
		`UPDATE bookings
		 SET state = $2, cancelled_at = $3
		 WHERE id = $1 AND state = $4`,
		b.ID, model.BookingCancelled, now, model.BookingActive,
	)
	if err != nil {
		return fmt.Errorf("cancel booking: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.Get(ctx, b.ID); err != nil {
			return err
		}
		return apperr.ErrAlreadyCancelled
	}
	b.State = model.BookingCancelled
	b.CancelledAt = &now
	return nil
}

// ListByUser returns the holder's bookings with event title and date,
// newest first.
func (r *BookingRepository) ListByUser(ctx context.Context, userID string) ([]model.BookingDetail, error) {
	rows, err := r.q.Query(ctx,
		`SELECT b.id, b.event_id, b.user_id, b.seat_count, b.state,
		        COALESCE(b.idempotency_key, ''), b.created_at, b.cancelled_at,
		        e.title, e.date
		 FROM bookings b
		 JOIN events e ON e.id = b.event_id
		 WHERE b.user_id = $1
		 ORDER BY b.created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	defer rows.Close()

	var out []model.BookingDetail
	for rows.Next() {
		var d model.BookingDetail
		if err := rows.Scan(&d.ID, &d.EventID, &d.UserID, &d.SeatCount, &d.State,
			&d.IdempotencyKey, &d.CreatedAt, &d.CancelledAt,
			&d.EventTitle, &d.EventDate); err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// CountActiveByEvent returns how many active bookings reference an event.
func (r *BookingRepository) CountActiveByEvent(ctx context.Context, eventID string) (int, error) {
	var n int
	err := r.q.QueryRow(ctx,
		`SELECT COUNT(*) FROM bookings WHERE event_id = $1 AND state = $2`,
		eventID, model.BookingActive,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count active bookings: %w", err)
	}
	return n, nil
}
