package repository

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shivanand-hulikatti/eventhub/internal/apperr"
	"github.com/Shivanand-hulikatti/eventhub/internal/database"
	"github.com/Shivanand-hulikatti/eventhub/internal/model"
	"github.com/Shivanand-hulikatti/eventhub/internal/storage"
)

// openTestStore connects to EVENTHUB_TEST_DATABASE_URL and skips the test
// when it is unset.
func openTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("EVENTHUB_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("EVENTHUB_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, database.Migrate(ctx, pool))
	return NewStore(pool)
}

func seed(t *testing.T, s *Store, total int) (organizerID, eventID string) {
	t.Helper()
	organizerID = uuid.NewString()
	eventID = uuid.NewString()
	err := s.WithinTx(context.Background(), func(ctx context.Context, tx storage.Tx) error {
		if err := tx.Users().Create(ctx, &model.User{
			ID: organizerID, Email: organizerID + "@example.com", Name: "Org",
			PasswordHash: "x", IsOrganizer: true, CreatedAt: time.Now().UTC(),
		}); err != nil {
			return err
		}
		return tx.Events().Create(ctx, &model.Event{
			ID: eventID, OrganizerID: organizerID, Title: "Gig",
			Date: time.Now().Add(48 * time.Hour).UTC(), Location: "Hall", Category: "music",
			Price: decimal.RequireFromString("12.50"), MaxSeats: total, AvailableSeats: total,
			CreatedAt: time.Now().UTC(),
		})
	})
	require.NoError(t, err)
	return organizerID, eventID
}

func TestPostgres_EventRoundTrip(t *testing.T) {
	s := openTestStore(t)
	_, eventID := seed(t, s, 10)

	err := s.WithinTx(context.Background(), func(ctx context.Context, tx storage.Tx) error {
		e, err := tx.Events().Get(ctx, eventID)
		require.NoError(t, err)
		assert.Equal(t, "Gig", e.Title)
		assert.True(t, decimal.RequireFromString("12.5").Equal(e.Price))
		assert.Equal(t, 10, e.MaxSeats)
		assert.Equal(t, 10, e.AvailableSeats)
		return nil
	})
	require.NoError(t, err)
}

func TestPostgres_ReserveReleaseAndCapacityErrors(t *testing.T) {
	s := openTestStore(t)
	_, eventID := seed(t, s, 5)
	ctx := context.Background()

	var n int
	err := s.WithinTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		var err error
		n, err = tx.Ledger().Reserve(ctx, eventID, 3)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	err = s.WithinTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		_, err := tx.Ledger().Reserve(ctx, eventID, 3)
		return err
	})
	assert.True(t, errors.Is(err, apperr.ErrInsufficientCapacity))

	err = s.WithinTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		_, err := tx.Ledger().Reserve(ctx, uuid.NewString(), 1)
		return err
	})
	assert.True(t, errors.Is(err, apperr.ErrNotFound))

	err = s.WithinTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		var err error
		n, err = tx.Ledger().Release(ctx, eventID, 10)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, 5, n, "release is clamped at capacity_total")
}

func TestPostgres_ConcurrentReservations(t *testing.T) {
	s := openTestStore(t)
	_, eventID := seed(t, s, 5)

	var (
		wg   sync.WaitGroup
		errs = make([]error, 2)
	)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = s.WithinTx(context.Background(), func(ctx context.Context, tx storage.Tx) error {
				_, err := tx.Ledger().Reserve(ctx, eventID, 3)
				return err
			})
		}(i)
	}
	wg.Wait()

	failed := 0
	for _, err := range errs {
		if err != nil {
			assert.True(t, errors.Is(err, apperr.ErrInsufficientCapacity))
			failed++
		}
	}
	assert.Equal(t, 1, failed)
}

func TestPostgres_RollbackLeavesNoBooking(t *testing.T) {
	s := openTestStore(t)
	organizerID, eventID := seed(t, s, 5)
	bookingID := uuid.NewString()
	boom := errors.New("boom")

	err := s.WithinTx(context.Background(), func(ctx context.Context, tx storage.Tx) error {
		if _, err := tx.Ledger().Reserve(ctx, eventID, 2); err != nil {
			return err
		}
		if err := tx.Bookings().Create(ctx, &model.Booking{
			ID: bookingID, EventID: eventID, UserID: organizerID, SeatCount: 2,
			State: model.BookingActive, CreatedAt: time.Now().UTC(),
		}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	err = s.WithinTx(context.Background(), func(ctx context.Context, tx storage.Tx) error {
		e, err := tx.Events().Get(ctx, eventID)
		require.NoError(t, err)
		assert.Equal(t, 5, e.AvailableSeats)
		_, err = tx.Bookings().Get(ctx, bookingID)
		assert.True(t, errors.Is(err, apperr.ErrNotFound))
		return nil
	})
	require.NoError(t, err)
}

// Seat counts below one are rejected before the database is touched.
func TestLedger_RejectsNonPositiveSeats(t *testing.T) {
	l := &Ledger{}
	ctx := context.Background()

	for _, seats := range []int{0, -3} {
		_, err := l.Reserve(ctx, "ev-1", seats)
		assert.True(t, errors.Is(err, apperr.ErrInvalidRequest), "reserve %d", seats)

		_, err = l.Release(ctx, "ev-1", seats)
		assert.True(t, errors.Is(err, apperr.ErrInvalidRequest), "release %d", seats)
	}
}
