package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shivanand-hulikatti/eventhub/internal/apperr"
	"github.com/Shivanand-hulikatti/eventhub/internal/model"
	"github.com/Shivanand-hulikatti/eventhub/internal/storage"
)

func seedEvent(t *testing.T, s *Store, id string, total int) {
	t.Helper()
	err := s.WithinTx(context.Background(), func(ctx context.Context, tx storage.Tx) error {
		return tx.Events().Create(ctx, &model.Event{
			ID:             id,
			OrganizerID:    "org-1",
			Title:          "Jazz Night",
			Date:           time.Now().Add(24 * time.Hour),
			MaxSeats:       total,
			AvailableSeats: total,
			CreatedAt:      time.Now(),
		})
	})
	require.NoError(t, err)
}

func remaining(t *testing.T, s *Store, id string) int {
	t.Helper()
	var n int
	err := s.WithinTx(context.Background(), func(ctx context.Context, tx storage.Tx) error {
		e, err := tx.Events().Get(ctx, id)
		if err != nil {
			return err
		}
		n = e.AvailableSeats
		return nil
	})
	require.NoError(t, err)
	return n
}

func reserve(s *Store, id string, seats int) (int, error) {
	var n int
	err := s.WithinTx(context.Background(), func(ctx context.Context, tx storage.Tx) error {
		var err error
		n, err = tx.Ledger().Reserve(ctx, id, seats)
		return err
	})
	return n, err
}

func TestLedger_ReserveAndRelease(t *testing.T) {
	s := New()
	seedEvent(t, s, "ev-1", 10)

	n, err := reserve(s, "ev-1", 4)
	require.NoError(t, err)
	assert.Equal(t, 6, n)

	err = s.WithinTx(context.Background(), func(ctx context.Context, tx storage.Tx) error {
		n, err = tx.Ledger().Release(ctx, "ev-1", 4)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, 10, n)
}

func TestLedger_ReserveInsufficientCapacity(t *testing.T) {
	s := New()
	seedEvent(t, s, "ev-1", 5)

	_, err := reserve(s, "ev-1", 6)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrInsufficientCapacity))
	assert.Equal(t, 5, remaining(t, s, "ev-1"))
}

func TestLedger_UnknownEvent(t *testing.T) {
	s := New()

	_, err := reserve(s, "missing", 1)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))

	err = s.WithinTx(context.Background(), func(ctx context.Context, tx storage.Tx) error {
		_, err := tx.Ledger().Release(ctx, "missing", 1)
		return err
	})
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestLedger_ReleaseClampsAtTotal(t *testing.T) {
	s := New()
	seedEvent(t, s, "ev-1", 10)

	_, err := reserve(s, "ev-1", 2)
	require.NoError(t, err)

	var n int
	err = s.WithinTx(context.Background(), func(ctx context.Context, tx storage.Tx) error {
		n, err = tx.Ledger().Release(ctx, "ev-1", 5)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, 10, n)
}

func TestLedger_Resize(t *testing.T) {
	s := New()
	seedEvent(t, s, "ev-1", 10)
	_, err := reserve(s, "ev-1", 4)
	require.NoError(t, err)

	var n int
	err = s.WithinTx(context.Background(), func(ctx context.Context, tx storage.Tx) error {
		n, err = tx.Ledger().Resize(ctx, "ev-1", 20)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, 16, n)

	err = s.WithinTx(context.Background(), func(ctx context.Context, tx storage.Tx) error {
		_, err := tx.Ledger().Resize(ctx, "ev-1", 3)
		return err
	})
	assert.True(t, errors.Is(err, apperr.ErrInvalidRequest))
	assert.Equal(t, 16, remaining(t, s, "ev-1"))
}

func TestWithinTx_RollsBackOnError(t *testing.T) {
	s := New()
	seedEvent(t, s, "ev-1", 10)
	boom := errors.New("boom")

	err := s.WithinTx(context.Background(), func(ctx context.Context, tx storage.Tx) error {
		if _, err := tx.Ledger().Reserve(ctx, "ev-1", 3); err != nil {
			return err
		}
		if err := tx.Bookings().Create(ctx, &model.Booking{
			ID: "b-1", EventID: "ev-1", UserID: "u-1", SeatCount: 3,
			State: model.BookingActive, IdempotencyKey: "k-1",
		}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	assert.Equal(t, 10, remaining(t, s, "ev-1"))
	err = s.WithinTx(context.Background(), func(ctx context.Context, tx storage.Tx) error {
		_, err := tx.Bookings().Get(ctx, "b-1")
		return err
	})
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestBookings_MarkCancelledTwice(t *testing.T) {
	s := New()
	seedEvent(t, s, "ev-1", 10)
	err := s.WithinTx(context.Background(), func(ctx context.Context, tx storage.Tx) error {
		return tx.Bookings().Create(ctx, &model.Booking{
			ID: "b-1", EventID: "ev-1", UserID: "u-1", SeatCount: 1, State: model.BookingActive,
		})
	})
	require.NoError(t, err)

	cancel := func() error {
		return s.WithinTx(context.Background(), func(ctx context.Context, tx storage.Tx) error {
			b, err := tx.Bookings().GetForUpdate(ctx, "b-1")
			if err != nil {
				return err
			}
			return tx.Bookings().MarkCancelled(ctx, b)
		})
	}
	require.NoError(t, cancel())
	assert.True(t, errors.Is(cancel(), apperr.ErrAlreadyCancelled))
}

func TestBookings_DuplicateIdempotencyKey(t *testing.T) {
	s := New()
	seedEvent(t, s, "ev-1", 10)
	create := func(id string) error {
		return s.WithinTx(context.Background(), func(ctx context.Context, tx storage.Tx) error {
			return tx.Bookings().Create(ctx, &model.Booking{
				ID: id, EventID: "ev-1", UserID: "u-1", SeatCount: 1,
				State: model.BookingActive, IdempotencyKey: "same",
			})
		})
	}
	require.NoError(t, create("b-1"))
	assert.ErrorIs(t, create("b-2"), storage.ErrDuplicateIdempotencyKey)
}

// Many concurrent single-seat reservations must never overdraw capacity.
func TestLedger_ConcurrentReservationsNeverOverdraw(t *testing.T) {
	s := New()
	seedEvent(t, s, "ev-1", 50)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		ok, full int
	)
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := reserve(s, "ev-1", 1)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				ok++
			} else if errors.Is(err, apperr.ErrInsufficientCapacity) {
				full++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, ok)
	assert.Equal(t, 150, full)
	assert.Equal(t, 0, remaining(t, s, "ev-1"))
}

func TestLedger_RejectsNonPositiveSeats(t *testing.T) {
	s := New()
	seedEvent(t, s, "ev-1", 10)
	_, err := reserve(s, "ev-1", 4)
	require.NoError(t, err)

	for _, seats := range []int{0, -5} {
		_, err := reserve(s, "ev-1", seats)
		assert.True(t, errors.Is(err, apperr.ErrInvalidRequest), "reserve %d", seats)

		err = s.WithinTx(context.Background(), func(ctx context.Context, tx storage.Tx) error {
			_, err := tx.Ledger().Release(ctx, "ev-1", seats)
			return err
		})
		assert.True(t, errors.Is(err, apperr.ErrInvalidRequest), "release %d", seats)
	}
	assert.Equal(t, 6, remaining(t, s, "ev-1"))
}

// Readers outside an open unit of work see only committed state, both
// while it is in flight and after it rolls back.
func TestWithinTx_UncommittedWritesAreInvisible(t *testing.T) {
	s := New()
	seedEvent(t, s, "ev-1", 10)
	boom := errors.New("boom")

	staged := make(chan struct{})
	finish := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- s.WithinTx(context.Background(), func(ctx context.Context, tx storage.Tx) error {
			if _, err := tx.Ledger().Reserve(ctx, "ev-1", 4); err != nil {
				return err
			}
			if err := tx.Bookings().Create(ctx, &model.Booking{
				ID: "b-x", EventID: "ev-1", UserID: "u-1", SeatCount: 4,
				State: model.BookingActive, IdempotencyKey: "k-x",
			}); err != nil {
				return err
			}

			// The unit of work sees its own writes.
			e, err := tx.Events().Get(ctx, "ev-1")
			if err != nil {
				return err
			}
			if e.AvailableSeats != 6 {
				return errors.New("own reservation not visible")
			}
			close(staged)
			<-finish
			return boom
		})
	}()

	<-staged
	err := s.WithinTx(context.Background(), func(ctx context.Context, tx storage.Tx) error {
		e, err := tx.Events().Get(ctx, "ev-1")
		require.NoError(t, err)
		assert.Equal(t, 10, e.AvailableSeats)

		list, err := tx.Bookings().ListByUser(ctx, "u-1")
		require.NoError(t, err)
		assert.Empty(t, list)

		_, err = tx.Bookings().FindByIdempotencyKey(ctx, "u-1", "k-x")
		assert.True(t, errors.Is(err, apperr.ErrNotFound))

		n, err := tx.Bookings().CountActiveByEvent(ctx, "ev-1")
		require.NoError(t, err)
		assert.Zero(t, n)
		return nil
	})
	require.NoError(t, err)

	close(finish)
	require.ErrorIs(t, <-done, boom)
	assert.Equal(t, 10, remaining(t, s, "ev-1"))
}

func TestWithinTx_CommitPublishesAllWrites(t *testing.T) {
	s := New()
	seedEvent(t, s, "ev-1", 10)

	err := s.WithinTx(context.Background(), func(ctx context.Context, tx storage.Tx) error {
		if _, err := tx.Ledger().Reserve(ctx, "ev-1", 3); err != nil {
			return err
		}
		return tx.Bookings().Create(ctx, &model.Booking{
			ID: "b-1", EventID: "ev-1", UserID: "u-1", SeatCount: 3,
			State: model.BookingActive, IdempotencyKey: "k-1", CreatedAt: time.Now(),
		})
	})
	require.NoError(t, err)

	err = s.WithinTx(context.Background(), func(ctx context.Context, tx storage.Tx) error {
		b, err := tx.Bookings().FindByIdempotencyKey(ctx, "u-1", "k-1")
		require.NoError(t, err)
		assert.Equal(t, "b-1", b.ID)

		list, err := tx.Bookings().ListByUser(ctx, "u-1")
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, "Jazz Night", list[0].EventTitle)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 7, remaining(t, s, "ev-1"))
}

func TestEvents_DeleteCascadesOnCommit(t *testing.T) {
	s := New()
	seedEvent(t, s, "ev-1", 10)
	err := s.WithinTx(context.Background(), func(ctx context.Context, tx storage.Tx) error {
		return tx.Bookings().Create(ctx, &model.Booking{
			ID: "b-1", EventID: "ev-1", UserID: "u-1", SeatCount: 1,
			State: model.BookingActive, IdempotencyKey: "k-1",
		})
	})
	require.NoError(t, err)

	err = s.WithinTx(context.Background(), func(ctx context.Context, tx storage.Tx) error {
		return tx.Events().Delete(ctx, "ev-1")
	})
	require.NoError(t, err)

	err = s.WithinTx(context.Background(), func(ctx context.Context, tx storage.Tx) error {
		_, err := tx.Bookings().Get(ctx, "b-1")
		assert.True(t, errors.Is(err, apperr.ErrNotFound))
		_, err = tx.Bookings().FindByIdempotencyKey(ctx, "u-1", "k-1")
		assert.True(t, errors.Is(err, apperr.ErrNotFound))
		list, err := tx.Events().List(ctx)
		require.NoError(t, err)
		assert.Empty(t, list)
		return nil
	})
	require.NoError(t, err)
}

// Two open units of work writing the same email: the second waits for the
// first and fails once it commits.
func TestUsers_ConcurrentDuplicateEmail(t *testing.T) {
	s := New()
	ctx := context.Background()

	claimed := make(chan struct{})
	finish := make(chan struct{})
	first := make(chan error, 1)
	go func() {
		first <- s.WithinTx(ctx, func(ctx context.Context, tx storage.Tx) error {
			if err := tx.Users().Create(ctx, &model.User{ID: "u-1", Email: "a@example.com"}); err != nil {
				return err
			}
			close(claimed)
			<-finish
			return nil
		})
	}()
	<-claimed

	second := make(chan error, 1)
	go func() {
		second <- s.WithinTx(ctx, func(ctx context.Context, tx storage.Tx) error {
			return tx.Users().Create(ctx, &model.User{ID: "u-2", Email: "a@example.com"})
		})
	}()

	select {
	case err := <-second:
		t.Fatalf("second writer finished while the first was open: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	close(finish)
	require.NoError(t, <-first)
	assert.ErrorIs(t, <-second, storage.ErrDuplicateEmail)
}

// When the first writer of a key rolls back, the waiting writer succeeds.
func TestBookings_ClaimReleasedOnRollback(t *testing.T) {
	s := New()
	seedEvent(t, s, "ev-1", 10)
	seedEvent(t, s, "ev-2", 10)
	ctx := context.Background()
	boom := errors.New("boom")

	claimed := make(chan struct{})
	finish := make(chan struct{})
	first := make(chan error, 1)
	go func() {
		first <- s.WithinTx(ctx, func(ctx context.Context, tx storage.Tx) error {
			if err := tx.Bookings().Create(ctx, &model.Booking{
				ID: "b-1", EventID: "ev-1", UserID: "u-1", SeatCount: 1,
				State: model.BookingActive, IdempotencyKey: "same",
			}); err != nil {
				return err
			}
			close(claimed)
			<-finish
			return boom
		})
	}()
	<-claimed

	second := make(chan error, 1)
	go func() {
		second <- s.WithinTx(ctx, func(ctx context.Context, tx storage.Tx) error {
			return tx.Bookings().Create(ctx, &model.Booking{
				ID: "b-2", EventID: "ev-2", UserID: "u-1", SeatCount: 1,
				State: model.BookingActive, IdempotencyKey: "same",
			})
		})
	}()

	close(finish)
	require.ErrorIs(t, <-first, boom)
	require.NoError(t, <-second)
}
