package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/Shivanand-hulikatti/eventhub/internal/apperr"
	"github.com/Shivanand-hulikatti/eventhub/internal/model"
)

const eventColumns = `id, organizer_id, title, description, date, location, category, image,
	price::text, capacity_total, capacity_remaining, created_at`

// EventRepository handles persistence for events.
type EventRepository struct {
	q querier
}

func scanEvent(row pgx.Row) (*model.Event, error) {
	var (
		e     model.Event
		price string
	)
	err := row.Scan(&e.ID, &e.OrganizerID, &e.Title, &e.Description, &e.Date, &e.Location,
		&e.Category, &e.Image, &price, &e.MaxSeats, &e.AvailableSeats, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	if e.Price, err = decimal.NewFromString(price); err != nil {
		return nil, fmt.Errorf("parse price %q: %w", price, err)
	}
	return &e, nil
}

// Create inserts a new event.
func (r *EventRepository) Create(ctx context.Context, e *model.Event) error {
	_, err := r.q.Exec(ctx,
		`INSERT INTO events (id, organizer_id, title, description, date, location, category, image,
		                     price, capacity_total, capacity_remaining, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::numeric, $10, $11, $12)`,
		e.ID, e.OrganizerID, e.Title, e.Description, e.Date, e.Location, e.Category, e.Image,
		e.Price.String(), e.MaxSeats, e.AvailableSeats, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// Get returns a single event or a NotFound error.
func (r *EventRepository) Get(ctx context.Context, id string) (*model.Event, error) {
	e, err := scanEvent(r.q.QueryRow(ctx,
		`SELECT `+eventColumns+` FROM events WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "event", "get event")
	}
	return e, nil
}

// GetForUpdate returns an event and holds its row lock until the
// transaction ends.
func (r *EventRepository) GetForUpdate(ctx context.Context, id string) (*model.Event, error) {
	e, err := scanEvent(r.q.QueryRow(ctx,
		`SELECT `+eventColumns+` FROM events WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, notFound(err, "event", "lock event")
	}
	return e, nil
}

// List returns all events ordered by creation time descending.
func (r *EventRepository) List(ctx context.Context) ([]model.Event, error) {
	rows, err := r.q.Query(ctx,
		`SELECT `+eventColumns+` FROM events ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, *e)
	}
	return events, rows.Err()
}

// Update writes the descriptive fields. Capacity belongs to the Ledger.
func (r *EventRepository) Update(ctx context.Context, e *model.Event) error {
	tag, err := r.q.Exec(ctx,
		`UPDATE events
		 SET title = $2, description = $3, date = $4, location = $5,
		     category = $6, image = $7, price = $8::numeric
		 WHERE id = $1`,
		e.ID, e.Title, e.Description, e.Date, e.Location, e.Category, e.Image, e.Price.String(),
	)
	if err != nil {
		return fmt.Errorf("update event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.New(apperr.KindNotFound, "event not found")
	}
	return nil
}

// Delete removes an event; bookings go with it (ON DELETE CASCADE).
func (r *EventRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.q.Exec(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.New(apperr.KindNotFound, "event not found")
	}
	return nil
}
