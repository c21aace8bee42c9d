package memory

import (
	"context"
	"fmt"

	"github.com/Shivanand-hulikatti/eventhub/internal/apperr"
)

type ledger struct{ t *tx }

func (l ledger) Reserve(ctx context.Context, eventID string, seats int) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if seats < 1 {
		return 0, apperr.Invalid("seat count must be positive")
	}
	l.t.lockEvent(eventID)

	e, err := l.t.stageEvent(eventID)
	if err != nil {
		return 0, err
	}
	if seats > e.AvailableSeats {
		return e.AvailableSeats, apperr.WithMetadata(apperr.KindInsufficientCapacity,
			"not enough seats available",
			map[string]any{"available_seats": e.AvailableSeats})
	}
	e.AvailableSeats -= seats
	return e.AvailableSeats, nil
}

func (l ledger) Release(ctx context.Context, eventID string, seats int) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if seats < 1 {
		return 0, apperr.Invalid("seat count must be positive")
	}
	l.t.lockEvent(eventID)

	e, err := l.t.stageEvent(eventID)
	if err != nil {
		return 0, err
	}
	e.AvailableSeats = min(e.AvailableSeats+seats, e.MaxSeats)
	return e.AvailableSeats, nil
}

func (l ledger) Resize(ctx context.Context, eventID string, total int) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if total < 1 {
		return 0, apperr.Invalid("max_seats must be positive")
	}
	l.t.lockEvent(eventID)

	e, err := l.t.stageEvent(eventID)
	if err != nil {
		return 0, err
	}
	booked := e.MaxSeats - e.AvailableSeats
	if total < booked {
		return 0, apperr.Invalid(fmt.Sprintf("cannot reduce seats below booked count (%d)", booked))
	}
	e.MaxSeats = total
	e.AvailableSeats = total - booked
	return e.AvailableSeats, nil
}
