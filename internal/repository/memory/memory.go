// Package memory is an in-process implementation of the storage contracts.
//
// It mirrors the PostgreSQL repository's isolation. A unit of work stages
// its writes in its own buffer and applies them to the shared maps in one
// step when it commits, so other readers only ever see committed rows.
// Rolling back discards the buffer. A unit of work that touches an event
// holds that event's lock until it ends, which serializes ledger mutation
// per event while different events proceed in parallel. Unique keys (user
// emails, idempotency keys) are claimed when written; a second writer of the
// same key waits for the first to finish, as a unique index would.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/Shivanand-hulikatti/eventhub/internal/apperr"
	"github.com/Shivanand-hulikatti/eventhub/internal/model"
	"github.com/Shivanand-hulikatti/eventhub/internal/storage"
)

// Store keeps committed rows in maps guarded by mu. Event locks are
// separate so holding one never blocks readers.
type Store struct {
	mu       sync.RWMutex
	events   map[string]*model.Event
	bookings map[string]*model.Booking
	users    map[string]*model.User
	emails   map[string]string
	idem     map[string]string
	claims   map[string]*claim

	locksMu    sync.Mutex
	eventLocks map[string]*sync.Mutex
}

// claim marks a unique key written by an open transaction. done is closed
// when that transaction ends.
type claim struct {
	owner *tx
	done  chan struct{}
}

// New returns an empty store.
func New() *Store {
	return &Store{
		events:     make(map[string]*model.Event),
		bookings:   make(map[string]*model.Booking),
		users:      make(map[string]*model.User),
		emails:     make(map[string]string),
		idem:       make(map[string]string),
		claims:     make(map[string]*claim),
		eventLocks: make(map[string]*sync.Mutex),
	}
}

var _ storage.Store = (*Store)(nil)

func (s *Store) eventLock(id string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	m, ok := s.eventLocks[id]
	if !ok {
		m = &sync.Mutex{}
		s.eventLocks[id] = m
	}
	return m
}

// WithinTx runs fn as one unit of work.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx storage.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t := &tx{
		s:        s,
		held:     make(map[string]*sync.Mutex),
		events:   make(map[string]*model.Event),
		bookings: make(map[string]*model.Booking),
		users:    make(map[string]*model.User),
	}
	defer t.unlockAll()

	if err := fn(ctx, t); err != nil {
		t.discard()
		return err
	}
	t.commit()
	return nil
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

// Close is a no-op.
func (s *Store) Close() {}

// tx is one unit of work. The staged maps belong to the goroutine running
// it; a nil entry marks a deleted row.
type tx struct {
	s    *Store
	held map[string]*sync.Mutex

	events   map[string]*model.Event
	bookings map[string]*model.Booking
	users    map[string]*model.User
	claimed  []string
}

func (t *tx) lockEvent(id string) {
	if _, ok := t.held[id]; ok {
		return
	}
	m := t.s.eventLock(id)
	m.Lock()
	t.held[id] = m
}

func (t *tx) unlockAll() {
	for id, m := range t.held {
		m.Unlock()
		delete(t.held, id)
	}
}

// commit applies the staged rows to the shared maps in one critical
// section.
func (t *tx) commit() {
	s := t.s
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, e := range t.events {
		if e == nil {
			delete(s.events, id)
			continue
		}
		s.events[id] = e
	}
	for id, b := range t.bookings {
		if b == nil {
			if old, ok := s.bookings[id]; ok && old.IdempotencyKey != "" {
				delete(s.idem, idemKey(old.UserID, old.IdempotencyKey))
			}
			delete(s.bookings, id)
			continue
		}
		s.bookings[id] = b
		if b.IdempotencyKey != "" {
			s.idem[idemKey(b.UserID, b.IdempotencyKey)] = id
		}
	}
	for id, u := range t.users {
		s.users[id] = u
		s.emails[u.Email] = id
	}
	t.releaseClaims()
}

// discard drops the staged rows.
func (t *tx) discard() {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	t.releaseClaims()
}

// releaseClaims must run with mu held.
func (t *tx) releaseClaims() {
	for _, key := range t.claimed {
		if c, ok := t.s.claims[key]; ok && c.owner == t {
			close(c.done)
			delete(t.s.claims, key)
		}
	}
	t.claimed = nil
}

// claim reserves a unique key for t. taken reports whether the key is
// already committed and runs with mu held. While another open transaction
// holds the key, claim waits for it to end and checks again.
func (t *tx) claim(ctx context.Context, key string, taken func() bool) (bool, error) {
	s := t.s
	for {
		s.mu.Lock()
		if taken() {
			s.mu.Unlock()
			return false, nil
		}
		c, ok := s.claims[key]
		if !ok || c.owner == t {
			if !ok {
				s.claims[key] = &claim{owner: t, done: make(chan struct{})}
				t.claimed = append(t.claimed, key)
			}
			s.mu.Unlock()
			return true, nil
		}
		s.mu.Unlock()

		select {
		case <-c.done:
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}
}

// event returns a copy of the event as this transaction sees it.
func (t *tx) event(id string) (*model.Event, bool) {
	if e, ok := t.events[id]; ok {
		if e == nil {
			return nil, false
		}
		out := *e
		return &out, true
	}
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	e, ok := t.s.events[id]
	if !ok {
		return nil, false
	}
	out := *e
	return &out, true
}

// stageEvent returns the event's staged row, copying it from the
// committed state on first write.
func (t *tx) stageEvent(id string) (*model.Event, error) {
	if e, ok := t.events[id]; ok {
		if e == nil {
			return nil, eventNotFound()
		}
		return e, nil
	}
	e, ok := t.event(id)
	if !ok {
		return nil, eventNotFound()
	}
	t.events[id] = e
	return e, nil
}

func (t *tx) booking(id string) (*model.Booking, bool) {
	if b, ok := t.bookings[id]; ok {
		if b == nil {
			return nil, false
		}
		out := *b
		return &out, true
	}
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	b, ok := t.s.bookings[id]
	if !ok {
		return nil, false
	}
	out := *b
	return &out, true
}

func (t *tx) stageBooking(id string) (*model.Booking, error) {
	if b, ok := t.bookings[id]; ok {
		if b == nil {
			return nil, bookingNotFound()
		}
		return b, nil
	}
	b, ok := t.booking(id)
	if !ok {
		return nil, bookingNotFound()
	}
	t.bookings[id] = b
	return b, nil
}

// bookingsWhere returns copies of every booking visible to t that match.
func (t *tx) bookingsWhere(match func(*model.Booking) bool) []model.Booking {
	rows := make(map[string]model.Booking)
	t.s.mu.RLock()
	for id, b := range t.s.bookings {
		if match(b) {
			rows[id] = *b
		}
	}
	t.s.mu.RUnlock()

	for id, b := range t.bookings {
		if b == nil || !match(b) {
			delete(rows, id)
			continue
		}
		rows[id] = *b
	}

	out := make([]model.Booking, 0, len(rows))
	for _, b := range rows {
		out = append(out, b)
	}
	return out
}

func (t *tx) Ledger() storage.Ledger         { return ledger{t} }
func (t *tx) Events() storage.EventStore     { return events{t} }
func (t *tx) Bookings() storage.BookingStore { return bookings{t} }
func (t *tx) Users() storage.UserStore       { return users{t} }

func idemKey(userID, key string) string {
	return userID + "\x00" + key
}

func sortEvents(list []model.Event) {
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})
}

func eventNotFound() error {
	return apperr.New(apperr.KindNotFound, "event not found")
}

func bookingNotFound() error {
	return apperr.New(apperr.KindNotFound, "booking not found")
}
