package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Shivanand-hulikatti/eventhub/internal/apperr"
	"github.com/Shivanand-hulikatti/eventhub/internal/auth"
	"github.com/Shivanand-hulikatti/eventhub/internal/broker"
	"github.com/Shivanand-hulikatti/eventhub/internal/model"
	"github.com/Shivanand-hulikatti/eventhub/internal/storage"
)

const maxSeatsLimit = 100_000

// EventService orchestrates event-related business operations.
type EventService struct {
	store storage.Store
	deps
}

// NewEventService constructs an EventService with its dependencies.
func NewEventService(store storage.Store, opts ...Option) *EventService {
	return &EventService{store: store, deps: newDeps(opts)}
}

// CreateEvent validates the request and stores a new event owned by the
// session user. Only organizers may create events.
func (s *EventService) CreateEvent(ctx context.Context, sess auth.Session, req model.CreateEventRequest) (_ *model.Event, err error) {
	ctx, span := tracer.Start(ctx, "EventService.CreateEvent")
	defer func() { endSpan(span, err) }()

	if err := requireSession(sess); err != nil {
		return nil, err
	}
	if !sess.IsOrganizer {
		return nil, apperr.New(apperr.KindForbidden, "only organizers can create events")
	}

	req.Title = strings.TrimSpace(req.Title)
	req.Location = strings.TrimSpace(req.Location)
	req.Category = strings.TrimSpace(req.Category)
	now := s.now().UTC()
	switch {
	case req.Title == "":
		return nil, apperr.Invalid("title is required")
	case req.Location == "":
		return nil, apperr.Invalid("location is required")
	case req.Category == "":
		return nil, apperr.Invalid("category is required")
	case req.Date.IsZero():
		return nil, apperr.Invalid("date is required")
	case !req.Date.After(now):
		return nil, apperr.Invalid("date must be in the future")
	case req.Price.IsNegative():
		return nil, apperr.Invalid("price cannot be negative")
	}
	if err := validateMaxSeats(req.MaxSeats); err != nil {
		return nil, err
	}

	e := &model.Event{
		ID:             uuid.NewString(),
		OrganizerID:    sess.UserID,
		Title:          req.Title,
		Description:    strings.TrimSpace(req.Description),
		Date:           req.Date.UTC(),
		Location:       req.Location,
		Category:       req.Category,
		Image:          strings.TrimSpace(req.Image),
		Price:          req.Price,
		MaxSeats:       req.MaxSeats,
		AvailableSeats: req.MaxSeats,
		CreatedAt:      now,
	}
	err = s.store.WithinTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		return tx.Events().Create(ctx, e)
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, broker.TopicEventCreated, broker.EventMessage{
		EventID:     e.ID,
		OrganizerID: e.OrganizerID,
		Title:       e.Title,
		MaxSeats:    e.MaxSeats,
		OccurredAt:  now,
	})
	return e, nil
}

// ListEvents returns all events.
func (s *EventService) ListEvents(ctx context.Context) ([]model.Event, error) {
	var out []model.Event
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		var err error
		out, err = tx.Events().List(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []model.Event{}
	}
	return out, nil
}

// GetEvent returns a single event by ID.
func (s *EventService) GetEvent(ctx context.Context, id string) (*model.Event, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperr.Invalid("event id is required")
	}
	var e *model.Event
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		var err error
		e, err = tx.Events().Get(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return e, nil
}

// UpdateEvent applies a partial update to an event the session user owns.
// A new max_seats goes through the ledger, which keeps the booked count and
// rejects a total below it.
func (s *EventService) UpdateEvent(ctx context.Context, sess auth.Session, id string, req model.UpdateEventRequest) (_ *model.Event, err error) {
	ctx, span := tracer.Start(ctx, "EventService.UpdateEvent", trace.WithAttributes(
		attribute.String("event.id", id),
	))
	defer func() { endSpan(span, err) }()

	if err := requireSession(sess); err != nil {
		return nil, err
	}
	if req.MaxSeats != nil {
		if err := validateMaxSeats(*req.MaxSeats); err != nil {
			return nil, err
		}
	}
	if req.Price != nil && req.Price.IsNegative() {
		return nil, apperr.Invalid("price cannot be negative")
	}
	if req.Date != nil && !req.Date.After(s.now()) {
		return nil, apperr.Invalid("date must be in the future")
	}

	var updated *model.Event
	err = s.store.WithinTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		e, err := tx.Events().GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if e.OrganizerID != sess.UserID {
			return apperr.New(apperr.KindForbidden, "you can only update your own events")
		}
		if err := applyUpdate(e, req); err != nil {
			return err
		}
		if err := tx.Events().Update(ctx, e); err != nil {
			return err
		}
		if req.MaxSeats != nil && *req.MaxSeats != e.MaxSeats {
			if _, err := tx.Ledger().Resize(ctx, e.ID, *req.MaxSeats); err != nil {
				return err
			}
		}
		updated, err = tx.Events().Get(ctx, e.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func applyUpdate(e *model.Event, req model.UpdateEventRequest) error {
	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			return apperr.Invalid("title cannot be empty")
		}
		e.Title = title
	}
	if req.Description != nil {
		e.Description = strings.TrimSpace(*req.Description)
	}
	if req.Date != nil {
		e.Date = req.Date.UTC()
	}
	if req.Location != nil {
		loc := strings.TrimSpace(*req.Location)
		if loc == "" {
			return apperr.Invalid("location cannot be empty")
		}
		e.Location = loc
	}
	if req.Category != nil {
		cat := strings.TrimSpace(*req.Category)
		if cat == "" {
			return apperr.Invalid("category cannot be empty")
		}
		e.Category = cat
	}
	if req.Image != nil {
		e.Image = strings.TrimSpace(*req.Image)
	}
	if req.Price != nil {
		e.Price = *req.Price
	}
	return nil
}

// DeleteEvent removes an event the session user owns. Deletion is refused
// while any booking on the event is still active; cancelled bookings go
// with the event.
func (s *EventService) DeleteEvent(ctx context.Context, sess auth.Session, id string) (err error) {
	ctx, span := tracer.Start(ctx, "EventService.DeleteEvent", trace.WithAttributes(
		attribute.String("event.id", id),
	))
	defer func() { endSpan(span, err) }()

	if err := requireSession(sess); err != nil {
		return err
	}

	var organizer string
	err = s.store.WithinTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		e, err := tx.Events().GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if e.OrganizerID != sess.UserID {
			return apperr.New(apperr.KindForbidden, "you can only delete your own events")
		}
		active, err := tx.Bookings().CountActiveByEvent(ctx, id)
		if err != nil {
			return err
		}
		if active > 0 {
			return apperr.WithMetadata(apperr.KindEventHasActiveBookings,
				"cannot delete event with active bookings",
				map[string]any{"bookings_count": active})
		}
		organizer = e.OrganizerID
		return tx.Events().Delete(ctx, id)
	})
	if err != nil {
		return err
	}

	s.publish(ctx, broker.TopicEventDeleted, broker.EventMessage{
		EventID:     id,
		OrganizerID: organizer,
		OccurredAt:  s.now().UTC(),
	})
	return nil
}

func validateMaxSeats(n int) error {
	if n <= 0 {
		return apperr.Invalid("max_seats must be a positive integer")
	}
	if n > maxSeatsLimit {
		return apperr.Invalid(fmt.Sprintf("max_seats cannot exceed %d", maxSeatsLimit))
	}
	return nil
}
