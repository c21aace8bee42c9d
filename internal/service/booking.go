package service

import (
	"context"
	"errors"
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

const maxIdempotencyKeyLen = 128

// BookingService creates and cancels bookings against the capacity ledger.
type BookingService struct {
	store storage.Store
	deps
}

// NewBookingService constructs a BookingService.
func NewBookingService(store storage.Store, opts ...Option) *BookingService {
	return &BookingService{store: store, deps: newDeps(opts)}
}

// CreateBooking reserves req.SeatCount seats on req.EventID for the session
// user. The reservation and the booking row commit together; on any error
// neither exists.
//
// The returned AvailableSeats is the ledger's value right after this
// reservation. Callers display it as-is instead of deriving a count from
// what they showed before, since other bookings may have landed meanwhile.
//
// With an idempotency key, a retry of a request that already succeeded
// returns the original booking (Replayed) with the current remaining seats
// and reserves nothing.
func (s *BookingService) CreateBooking(ctx context.Context, sess auth.Session, req model.CreateBookingRequest) (res *model.BookingResult, err error) {
	ctx, span := tracer.Start(ctx, "BookingService.CreateBooking", trace.WithAttributes(
		attribute.String("event.id", req.EventID),
		attribute.Int("booking.seat_count", req.SeatCount),
	))
	defer func() {
		reserved := req.SeatCount
		if res != nil && res.Replayed {
			reserved = 0
		}
		s.recorder.BookingOutcome(err, reserved)
		endSpan(span, err)
	}()

	if err := requireSession(sess); err != nil {
		return nil, err
	}
	req.EventID = strings.TrimSpace(req.EventID)
	req.IdempotencyKey = strings.TrimSpace(req.IdempotencyKey)
	if req.EventID == "" {
		return nil, apperr.Invalid("event_id is required")
	}
	if req.SeatCount < 1 {
		return nil, apperr.Invalid("seat_count must be a positive integer")
	}
	if len(req.IdempotencyKey) > maxIdempotencyKeyLen {
		return nil, apperr.Invalid(fmt.Sprintf("idempotency key exceeds %d characters", maxIdempotencyKeyLen))
	}

	res, err = s.book(ctx, sess, req)
	if errors.Is(err, storage.ErrDuplicateIdempotencyKey) {
		// A concurrent request with the same key committed first.
		res, err = s.book(ctx, sess, req)
	}
	if err != nil {
		return nil, err
	}

	if !res.Replayed {
		s.publish(ctx, broker.TopicBookingCreated, broker.BookingMessage{
			BookingID:      res.Booking.ID,
			EventID:        res.Booking.EventID,
			UserID:         res.Booking.UserID,
			SeatCount:      res.Booking.SeatCount,
			AvailableSeats: res.AvailableSeats,
			OccurredAt:     res.Booking.CreatedAt,
		})
	}
	return res, nil
}

func (s *BookingService) book(ctx context.Context, sess auth.Session, req model.CreateBookingRequest) (*model.BookingResult, error) {
	var res *model.BookingResult
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		if req.IdempotencyKey != "" {
			prior, err := tx.Bookings().FindByIdempotencyKey(ctx, sess.UserID, req.IdempotencyKey)
			switch {
			case err == nil:
				res, err = replay(ctx, tx, prior, req)
				return err
			case !errors.Is(err, apperr.ErrNotFound):
				return err
			}
		}

		event, err := tx.Events().Get(ctx, req.EventID)
		if err != nil {
			return err
		}
		now := s.now().UTC()
		if event.HasStarted(now) {
			return apperr.New(apperr.KindEventClosed, "event has already taken place")
		}

		remaining, err := tx.Ledger().Reserve(ctx, event.ID, req.SeatCount)
		if err != nil {
			return err
		}

		b := &model.Booking{
			ID:             uuid.NewString(),
			EventID:        event.ID,
			UserID:         sess.UserID,
			SeatCount:      req.SeatCount,
			State:          model.BookingActive,
			IdempotencyKey: req.IdempotencyKey,
			CreatedAt:      now,
		}
		if err := tx.Bookings().Create(ctx, b); err != nil {
			return err
		}

		res = &model.BookingResult{
			Message:        "Booking created successfully",
			Booking:        b,
			AvailableSeats: remaining,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// replay answers a retried request with the booking it already created.
func replay(ctx context.Context, tx storage.Tx, prior *model.Booking, req model.CreateBookingRequest) (*model.BookingResult, error) {
	if prior.EventID != req.EventID || prior.SeatCount != req.SeatCount {
		return nil, apperr.New(apperr.KindConflict, "idempotency key was already used for a different booking")
	}
	event, err := tx.Events().Get(ctx, prior.EventID)
	if err != nil {
		return nil, err
	}
	return &model.BookingResult{
		Message:        "Booking already created",
		Booking:        prior,
		AvailableSeats: event.AvailableSeats,
		Replayed:       true,
	}, nil
}

// CancelBooking cancels the session user's booking and returns its seats
// to the ledger.
//
// The state transition and the release run in one unit of work. If the
// release fails the transition is rolled back, the booking stays active,
// and the error is returned: a booking is never cancelled without its
// seats coming back.
func (s *BookingService) CancelBooking(ctx context.Context, sess auth.Session, bookingID string) (res *model.CancelResult, err error) {
	ctx, span := tracer.Start(ctx, "BookingService.CancelBooking", trace.WithAttributes(
		attribute.String("booking.id", bookingID),
	))
	var released *model.Booking
	defer func() {
		seats := 0
		if released != nil {
			seats = released.SeatCount
		}
		s.recorder.CancellationOutcome(err, seats)
		endSpan(span, err)
	}()

	if err := requireSession(sess); err != nil {
		return nil, err
	}
	bookingID = strings.TrimSpace(bookingID)
	if bookingID == "" {
		return nil, apperr.Invalid("booking id is required")
	}

	var remaining int
	err = s.store.WithinTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		b, err := tx.Bookings().GetForUpdate(ctx, bookingID)
		if err != nil {
			return err
		}
		if b.UserID != sess.UserID {
			return apperr.New(apperr.KindForbidden, "you can only cancel your own bookings")
		}
		if !b.IsActive() {
			return apperr.New(apperr.KindAlreadyCancelled, "booking is already cancelled")
		}

		now := s.now().UTC()
		b.CancelledAt = &now
		if err := tx.Bookings().MarkCancelled(ctx, b); err != nil {
			return err
		}
		remaining, err = tx.Ledger().Release(ctx, b.EventID, b.SeatCount)
		if err != nil {
			return fmt.Errorf("release seats: %w", err)
		}
		released = b
		return nil
	})
	if err != nil {
		released = nil
		return nil, err
	}

	s.publish(ctx, broker.TopicBookingCancelled, broker.BookingMessage{
		BookingID:      released.ID,
		EventID:        released.EventID,
		UserID:         released.UserID,
		SeatCount:      released.SeatCount,
		AvailableSeats: remaining,
		OccurredAt:     *released.CancelledAt,
	})
	return &model.CancelResult{
		OK:             true,
		Message:        "Booking cancelled successfully",
		AvailableSeats: remaining,
	}, nil
}

// ListMyBookings returns the session user's bookings, newest first.
func (s *BookingService) ListMyBookings(ctx context.Context, sess auth.Session) ([]model.BookingDetail, error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}
	var out []model.BookingDetail
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		var err error
		out, err = tx.Bookings().ListByUser(ctx, sess.UserID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []model.BookingDetail{}
	}
	return out, nil
}
