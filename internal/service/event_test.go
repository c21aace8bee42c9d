package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shivanand-hulikatti/eventhub/internal/apperr"
	"github.com/Shivanand-hulikatti/eventhub/internal/broker"
	"github.com/Shivanand-hulikatti/eventhub/internal/model"
)

func TestCreateEvent_Validation(t *testing.T) {
	f := newFixture(t)
	valid := func() model.CreateEventRequest {
		return model.CreateEventRequest{
			Title:    "Jazz Night",
			Date:     f.clock().Add(24 * time.Hour),
			Location: "Blue Note",
			Category: "music",
			Price:    decimal.NewFromInt(10),
			MaxSeats: 50,
		}
	}

	cases := []struct {
		name   string
		mutate func(*model.CreateEventRequest)
	}{
		{"blank title", func(r *model.CreateEventRequest) { r.Title = "   " }},
		{"missing location", func(r *model.CreateEventRequest) { r.Location = "" }},
		{"missing category", func(r *model.CreateEventRequest) { r.Category = "" }},
		{"missing date", func(r *model.CreateEventRequest) { r.Date = time.Time{} }},
		{"past date", func(r *model.CreateEventRequest) { r.Date = f.clock().Add(-time.Hour) }},
		{"negative price", func(r *model.CreateEventRequest) { r.Price = decimal.NewFromInt(-1) }},
		{"zero seats", func(r *model.CreateEventRequest) { r.MaxSeats = 0 }},
		{"too many seats", func(r *model.CreateEventRequest) { r.MaxSeats = 100_001 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := valid()
			tc.mutate(&req)
			_, err := f.events.CreateEvent(context.Background(), organizer, req)
			requireKind(t, err, apperr.ErrInvalidRequest)
		})
	}

	e, err := f.events.CreateEvent(context.Background(), organizer, valid())
	require.NoError(t, err)
	assert.Equal(t, 50, e.MaxSeats)
	assert.Equal(t, 50, e.AvailableSeats)
	assert.Equal(t, organizer.UserID, e.OrganizerID)
	assert.Contains(t, f.publisher.Topics(), broker.TopicEventCreated)
}

func TestCreateEvent_RequiresOrganizer(t *testing.T) {
	f := newFixture(t)

	_, err := f.events.CreateEvent(context.Background(), alice, model.CreateEventRequest{
		Title:    "Open Mic",
		Date:     f.clock().Add(time.Hour),
		Location: "Cafe",
		Category: "music",
		MaxSeats: 10,
	})
	requireKind(t, err, apperr.ErrForbidden)
}

func TestListEvents(t *testing.T) {
	f := newFixture(t)

	empty, err := f.events.ListEvents(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	f.createEvent(t, 10)
	f.advance(time.Minute)
	newest := f.createEvent(t, 20)

	list, err := f.events.ListEvents(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, newest.ID, list[0].ID)
}

func TestGetEvent_NotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.events.GetEvent(context.Background(), "missing")
	requireKind(t, err, apperr.ErrNotFound)

	_, err = f.events.GetEvent(context.Background(), "")
	requireKind(t, err, apperr.ErrInvalidRequest)
}

func TestUpdateEvent_FieldsAndCapacity(t *testing.T) {
	f := newFixture(t)
	e := f.createEvent(t, 10)
	_, err := f.book(alice, e.ID, 4)
	require.NoError(t, err)

	title := "Late Jazz Night"
	seats := 20
	updated, err := f.events.UpdateEvent(context.Background(), organizer, e.ID, model.UpdateEventRequest{
		Title:    &title,
		MaxSeats: &seats,
	})
	require.NoError(t, err)
	assert.Equal(t, title, updated.Title)
	assert.Equal(t, 20, updated.MaxSeats)
	assert.Equal(t, 16, updated.AvailableSeats)
	assert.Equal(t, "Blue Note", updated.Location)
}

func TestUpdateEvent_CannotShrinkBelowBooked(t *testing.T) {
	f := newFixture(t)
	e := f.createEvent(t, 10)
	_, err := f.book(alice, e.ID, 4)
	require.NoError(t, err)

	title := "Renamed"
	seats := 3
	_, err = f.events.UpdateEvent(context.Background(), organizer, e.ID, model.UpdateEventRequest{
		Title:    &title,
		MaxSeats: &seats,
	})
	requireKind(t, err, apperr.ErrInvalidRequest)

	got, err := f.events.GetEvent(context.Background(), e.ID)
	require.NoError(t, err)
	assert.Equal(t, "Jazz Night", got.Title)
	assert.Equal(t, 10, got.MaxSeats)
	assert.Equal(t, 6, got.AvailableSeats)
}

func TestUpdateEvent_OnlyOwner(t *testing.T) {
	f := newFixture(t)
	e := f.createEvent(t, 10)

	title := "Hijacked"
	_, err := f.events.UpdateEvent(context.Background(), alice, e.ID, model.UpdateEventRequest{Title: &title})
	requireKind(t, err, apperr.ErrForbidden)
}

func TestDeleteEvent_BlockedByActiveBookings(t *testing.T) {
	f := newFixture(t)
	e := f.createEvent(t, 10)
	res, err := f.book(alice, e.ID, 2)
	require.NoError(t, err)

	err = f.events.DeleteEvent(context.Background(), organizer, e.ID)
	requireKind(t, err, apperr.ErrEventHasActiveBookings)
	var appErr *apperr.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, 1, appErr.Metadata["bookings_count"])

	_, err = f.bookings.CancelBooking(context.Background(), alice, res.Booking.ID)
	require.NoError(t, err)

	require.NoError(t, f.events.DeleteEvent(context.Background(), organizer, e.ID))
	_, err = f.events.GetEvent(context.Background(), e.ID)
	requireKind(t, err, apperr.ErrNotFound)

	// Cancelled bookings are removed with the event.
	list, err := f.bookings.ListMyBookings(context.Background(), alice)
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.Contains(t, f.publisher.Topics(), broker.TopicEventDeleted)
}

func TestDeleteEvent_OnlyOwner(t *testing.T) {
	f := newFixture(t)
	e := f.createEvent(t, 10)

	err := f.events.DeleteEvent(context.Background(), bob, e.ID)
	requireKind(t, err, apperr.ErrForbidden)
	assert.Equal(t, 10, f.available(t, e.ID))
}
