package memory

import (
	"context"
	"sort"
	"time"

	"github.com/Shivanand-hulikatti/eventhub/internal/apperr"
	"github.com/Shivanand-hulikatti/eventhub/internal/model"
	"github.com/Shivanand-hulikatti/eventhub/internal/storage"
)

// ─── Events ──────────────────────────────────────────────────────────────────

type events struct{ t *tx }

func (r events) Create(_ context.Context, e *model.Event) error {
	row := *e
	r.t.events[e.ID] = &row
	return nil
}

func (r events) Get(_ context.Context, id string) (*model.Event, error) {
	e, ok := r.t.event(id)
	if !ok {
		return nil, eventNotFound()
	}
	return e, nil
}

func (r events) GetForUpdate(ctx context.Context, id string) (*model.Event, error) {
	r.t.lockEvent(id)
	return r.Get(ctx, id)
}

func (r events) List(_ context.Context) ([]model.Event, error) {
	rows := make(map[string]model.Event)
	s := r.t.s
	s.mu.RLock()
	for id, e := range s.events {
		rows[id] = *e
	}
	s.mu.RUnlock()

	for id, e := range r.t.events {
		if e == nil {
			delete(rows, id)
			continue
		}
		rows[id] = *e
	}

	out := make([]model.Event, 0, len(rows))
	for _, e := range rows {
		out = append(out, e)
	}
	sortEvents(out)
	return out, nil
}

func (r events) Update(_ context.Context, e *model.Event) error {
	r.t.lockEvent(e.ID)
	row, err := r.t.stageEvent(e.ID)
	if err != nil {
		return err
	}
	row.Title = e.Title
	row.Description = e.Description
	row.Date = e.Date
	row.Location = e.Location
	row.Category = e.Category
	row.Image = e.Image
	row.Price = e.Price
	return nil
}

// Delete removes the event and every booking that references it.
func (r events) Delete(_ context.Context, id string) error {
	r.t.lockEvent(id)
	if _, err := r.t.stageEvent(id); err != nil {
		return err
	}
	r.t.events[id] = nil

	for _, b := range r.t.bookingsWhere(func(b *model.Booking) bool { return b.EventID == id }) {
		r.t.bookings[b.ID] = nil
	}
	return nil
}

// ─── Bookings ────────────────────────────────────────────────────────────────

type bookings struct{ t *tx }

func (r bookings) Create(ctx context.Context, b *model.Booking) error {
	r.t.lockEvent(b.EventID)
	if _, ok := r.t.event(b.EventID); !ok {
		return eventNotFound()
	}
	if b.IdempotencyKey != "" {
		k := idemKey(b.UserID, b.IdempotencyKey)
		s := r.t.s
		ok, err := r.t.claim(ctx, "idem:"+k, func() bool {
			_, dup := s.idem[k]
			return dup
		})
		if err != nil {
			return err
		}
		if !ok {
			return storage.ErrDuplicateIdempotencyKey
		}
	}
	row := *b
	r.t.bookings[b.ID] = &row
	return nil
}

func (r bookings) Get(_ context.Context, id string) (*model.Booking, error) {
	b, ok := r.t.booking(id)
	if !ok {
		return nil, bookingNotFound()
	}
	return b, nil
}

// GetForUpdate locks the booking's event, which covers every mutation of
// the booking since bookings never move between events.
func (r bookings) GetForUpdate(ctx context.Context, id string) (*model.Booking, error) {
	b, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	r.t.lockEvent(b.EventID)
	return r.Get(ctx, id)
}

func (r bookings) FindByIdempotencyKey(_ context.Context, userID, key string) (*model.Booking, error) {
	for _, b := range r.t.bookings {
		if b != nil && b.UserID == userID && b.IdempotencyKey == key {
			out := *b
			return &out, nil
		}
	}

	s := r.t.s
	s.mu.RLock()
	id, ok := s.idem[idemKey(userID, key)]
	s.mu.RUnlock()
	if !ok {
		return nil, bookingNotFound()
	}
	b, ok := r.t.booking(id)
	if !ok {
		return nil, bookingNotFound()
	}
	return b, nil
}

func (r bookings) MarkCancelled(_ context.Context, b *model.Booking) error {
	cur, ok := r.t.booking(b.ID)
	if !ok {
		return bookingNotFound()
	}
	r.t.lockEvent(cur.EventID)
	row, err := r.t.stageBooking(b.ID)
	if err != nil {
		return err
	}
	if row.State != model.BookingActive {
		return apperr.ErrAlreadyCancelled
	}
	now := time.Now().UTC()
	if b.CancelledAt != nil {
		now = *b.CancelledAt
	}
	row.State = model.BookingCancelled
	row.CancelledAt = &now

	b.State = row.State
	b.CancelledAt = row.CancelledAt
	return nil
}

func (r bookings) ListByUser(_ context.Context, userID string) ([]model.BookingDetail, error) {
	rows := r.t.bookingsWhere(func(b *model.Booking) bool { return b.UserID == userID })

	out := make([]model.BookingDetail, 0, len(rows))
	for _, b := range rows {
		d := model.BookingDetail{Booking: b}
		if e, ok := r.t.event(b.EventID); ok {
			d.EventTitle = e.Title
			d.EventDate = e.Date
		}
		out = append(out, d)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (r bookings) CountActiveByEvent(_ context.Context, eventID string) (int, error) {
	rows := r.t.bookingsWhere(func(b *model.Booking) bool {
		return b.EventID == eventID && b.State == model.BookingActive
	})
	return len(rows), nil
}

// ─── Users ───────────────────────────────────────────────────────────────────

type users struct{ t *tx }

func (r users) Create(ctx context.Context, u *model.User) error {
	s := r.t.s
	ok, err := r.t.claim(ctx, "email:"+u.Email, func() bool {
		_, dup := s.emails[u.Email]
		return dup
	})
	if err != nil {
		return err
	}
	if !ok {
		return storage.ErrDuplicateEmail
	}
	row := *u
	r.t.users[u.ID] = &row
	return nil
}

func (r users) Get(_ context.Context, id string) (*model.User, error) {
	if u, ok := r.t.users[id]; ok {
		out := *u
		return &out, nil
	}
	s := r.t.s
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, apperr.New(apperr.KindNotFound, "user not found")
	}
	out := *u
	return &out, nil
}

func (r users) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	for _, u := range r.t.users {
		if u.Email == email {
			out := *u
			return &out, nil
		}
	}
	r.t.s.mu.RLock()
	id, ok := r.t.s.emails[email]
	r.t.s.mu.RUnlock()
	if !ok {
		return nil, apperr.New(apperr.KindNotFound, "user not found")
	}
	return r.Get(ctx, id)
}
