package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/Shivanand-hulikatti/eventhub/internal/apperr"
)

// Ledger is the capacity ledger backed by the events table.
type Ledger struct {
	q querier
}

// Reserve takes seats from an event's remaining capacity.
//
// ─────────────────────────────────────────────────────────────────────────────
// RACE CONDITION EXPLAINED
// ─────────────────────────────────────────────────────────────────────────────
//
// Naive read-then-write approach (BROKEN):
//
//	tx A: SELECT capacity_remaining FROM events WHERE id = X  → 5
//	tx B: SELECT capacity_remaining FROM events WHERE id = X  → 5
//	tx A: 3 <= 5, OK → UPDATE capacity_remaining = 2
//	tx B: 3 <= 5, OK → UPDATE capacity_remaining = 2
//	Result: 6 seats sold from a 5-seat pool. OVERBOOKED.
//
// SOLUTION: one conditional UPDATE.
//
//	The check (capacity_remaining >= $2) and the decrement run in the same
//	statement. The statement takes the row lock; a concurrent reservation
//	blocks on it and, once the first transaction commits, re-evaluates the
//	WHERE clause against the new row version. The lock is held until our
//	transaction ends, so the booking row inserted afterwards commits
//	together with the decrement.
//
// ─────────────────────────────────────────────────────────────────────────────
func (l *Ledger) Reserve(ctx context.Context, eventID string, seats int) (int, error) {
	if seats < 1 {
		return 0, apperr.Invalid("seat count must be positive")
	}

	var remaining int
	err := l.q.QueryRow(ctx,
		`UPDATE events
		 SET capacity_remaining = capacity_remaining - $2
		 WHERE id = $1 AND capacity_remaining >= $2
		 RETURNING capacity_remaining`,
		eventID, seats,
	).Scan(&remaining)
	if err == nil {
		return remaining, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("reserve seats: %w", err)
	}

	// No row matched: either the event is missing or it lacks capacity.
	err = l.q.QueryRow(ctx,
		`SELECT capacity_remaining FROM events WHERE id = $1`,
		eventID,
	).Scan(&remaining)
	if err != nil {
		return 0, notFound(err, "event", "read remaining capacity")
	}
	return remaining, apperr.WithMetadata(apperr.KindInsufficientCapacity,
		"not enough seats available",
		map[string]any{"available_seats": remaining})
}

// Release gives seats back, clamped at capacity_total so a repeated release
// can never push remaining above the total.
func (l *Ledger) Release(ctx context.Context, eventID string, seats int) (int, error) {
	if seats < 1 {
		return 0, apperr.Invalid("seat count must be positive")
	}

	var remaining int
	err := l.q.QueryRow(ctx,
		`UPDATE events
		 SET capacity_remaining = LEAST(capacity_total, capacity_remaining + $2)
		 WHERE id = $1
		 RETURNING capacity_remaining`,
		eventID, seats,
	).Scan(&remaining)
	if err != nil {
		return 0, notFound(err, "event", "release seats")
	}
	return remaining, nil
}

// Resize changes capacity_total, keeping the booked count fixed.
func (l *Ledger) Resize(ctx context.Context, eventID string, total int) (int, error) {
	if total < 1 {
		return 0, apperr.Invalid("max_seats must be positive")
	}

	var curTotal, curRemaining int
	err := l.q.QueryRow(ctx,
		`SELECT capacity_total, capacity_remaining
		 FROM events
		 WHERE id = $1
		 FOR UPDATE`,
		eventID,
	).Scan(&curTotal, &curRemaining)
	if err != nil {
		return 0, notFound(err, "event", "lock event row")
	}

	booked := curTotal - curRemaining
	if total < booked {
		return 0, apperr.Invalid(fmt.Sprintf("cannot reduce seats below booked count (%d)", booked))
	}

	var remaining int
	err = l.q.QueryRow(ctx,
		`UPDATE events
		 SET capacity_total = $2, capacity_remaining = $3
		 WHERE id = $1
		 RETURNING capacity_remaining`,
		eventID, total, total-booked,
	).Scan(&remaining)
	if err != nil {
		return 0, fmt.Errorf("resize capacity: %w", err)
	}
	return remaining, nil
}
