package service_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/Shivanand-hulikatti/eventhub/internal/auth"
	"github.com/Shivanand-hulikatti/eventhub/internal/model"
	"github.com/Shivanand-hulikatti/eventhub/internal/repository/memory"
	"github.com/Shivanand-hulikatti/eventhub/internal/service"
	"github.com/Shivanand-hulikatti/eventhub/internal/storage"
)

var (
	organizer = auth.Session{UserID: "org-1", Email: "org@example.com", IsOrganizer: true}
	alice     = auth.Session{UserID: "alice", Email: "alice@example.com"}
	bob       = auth.Session{UserID: "bob", Email: "bob@example.com"}
)

// spyStore wraps a store so tests can count ledger calls and make Release
// fail on demand.
type spyStore struct {
	storage.Store
	ledgerCalls atomic.Int32
	failRelease error
}

func (s *spyStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx storage.Tx) error) error {
	return s.Store.WithinTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		return fn(ctx, spyTx{Tx: tx, s: s})
	})
}

type spyTx struct {
	storage.Tx
	s *spyStore
}

func (t spyTx) Ledger() storage.Ledger { return spyLedger{Ledger: t.Tx.Ledger(), s: t.s} }

type spyLedger struct {
	storage.Ledger
	s *spyStore
}

func (l spyLedger) Reserve(ctx context.Context, eventID string, seats int) (int, error) {
	l.s.ledgerCalls.Add(1)
	return l.Ledger.Reserve(ctx, eventID, seats)
}

func (l spyLedger) Release(ctx context.Context, eventID string, seats int) (int, error) {
	l.s.ledgerCalls.Add(1)
	if l.s.failRelease != nil {
		return 0, l.s.failRelease
	}
	return l.Ledger.Release(ctx, eventID, seats)
}

type recordingPublisher struct {
	mu     sync.Mutex
	topics []string
}

func (p *recordingPublisher) Publish(_ context.Context, topic string, _ any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) Topics() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.topics...)
}

type countingRecorder struct {
	mu                 sync.Mutex
	bookings, cancels  int
	reserved, released int
}

func (r *countingRecorder) BookingOutcome(err error, seats int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bookings++
	if err == nil {
		r.reserved += seats
	}
}

func (r *countingRecorder) CancellationOutcome(err error, seats int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancels++
	if err == nil {
		r.released += seats
	}
}

type fixture struct {
	store     *spyStore
	bookings  *service.BookingService
	events    *service.EventService
	publisher *recordingPublisher
	recorder  *countingRecorder

	mu  sync.Mutex
	now time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:     &spyStore{Store: memory.New()},
		publisher: &recordingPublisher{},
		recorder:  &countingRecorder{},
		now:       time.Date(2026, time.June, 1, 12, 0, 0, 0, time.UTC),
	}
	opts := []service.Option{
		service.WithPublisher(f.publisher),
		service.WithRecorder(f.recorder),
		service.WithClock(f.clock),
	}
	f.bookings = service.NewBookingService(f.store, opts...)
	f.events = service.NewEventService(f.store, opts...)
	return f
}

func (f *fixture) clock() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fixture) advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func (f *fixture) createEvent(t *testing.T, seats int) *model.Event {
	t.Helper()
	e, err := f.events.CreateEvent(context.Background(), organizer, model.CreateEventRequest{
		Title:    "Jazz Night",
		Date:     f.clock().Add(48 * time.Hour),
		Location: "Blue Note",
		Category: "music",
		Price:    decimal.RequireFromString("25.00"),
		MaxSeats: seats,
	})
	require.NoError(t, err)
	return e
}

func (f *fixture) available(t *testing.T, eventID string) int {
	t.Helper()
	e, err := f.events.GetEvent(context.Background(), eventID)
	require.NoError(t, err)
	return e.AvailableSeats
}

func (f *fixture) book(sess auth.Session, eventID string, seats int) (*model.BookingResult, error) {
	return f.bookings.CreateBooking(context.Background(), sess, model.CreateBookingRequest{
		EventID:   eventID,
		SeatCount: seats,
	})
}

func requireKind(t *testing.T, err error, target error) {
	t.Helper()
	require.Error(t, err)
	require.True(t, errors.Is(err, target), "got %v, want %v", err, target)
}
