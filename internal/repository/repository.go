// Package repository implements the storage contracts on PostgreSQL.
// It uses pgx directly (no ORM) for transparency and performance.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Shivanand-hulikatti/eventhub/internal/apperr"
	"github.com/Shivanand-hulikatti/eventhub/internal/storage"
)

// querier is the subset of pgx.Tx the repositories need.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store runs units of work as PostgreSQL transactions.
type Store struct {
	db *pgxpool.Pool
}

// NewStore constructs a Store on an open pool.
func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

var _ storage.Store = (*Store)(nil)

// WithinTx runs fn inside one READ COMMITTED transaction.
//
// Row locks taken by the ledger (the conditional UPDATE on the event row)
// and by GetForUpdate are held until COMMIT or ROLLBACK, so a booking's
// capacity change and its booking row become visible together or not at
// all. A failure to begin or commit means the ledger is unreachable and is
// reported as apperr.KindUnavailable.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx storage.Tx) error) (err error) {
	pgTx, err := s.db.Begin(ctx)
	if err != nil {
		return apperr.Wrap(apperr.KindUnavailable, "storage unavailable", err)
	}
	defer func() {
		if err != nil {
			_ = pgTx.Rollback(ctx)
		}
	}()

	if err = fn(ctx, &tx{q: pgTx}); err != nil {
		return err
	}
	if err = pgTx.Commit(ctx); err != nil {
		return apperr.Wrap(apperr.KindUnavailable, "commit transaction", err)
	}
	return nil
}

// Ping checks database reachability.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the pool.
func (s *Store) Close() {
	s.db.Close()
}

type tx struct {
	q querier
}

func (t *tx) Ledger() storage.Ledger         { return &Ledger{q: t.q} }
func (t *tx) Events() storage.EventStore     { return &EventRepository{q: t.q} }
func (t *tx) Bookings() storage.BookingStore { return &BookingRepository{q: t.q} }
func (t *tx) Users() storage.UserStore       { return &UserRepository{q: t.q} }

// isUniqueViolation reports whether err is a unique_violation on constraint.
func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "23505" && (constraint == "" || pgErr.ConstraintName == constraint)
}

// notFound maps pgx.ErrNoRows to a NotFound error for the named entity.
func notFound(err error, entity, op string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.New(apperr.KindNotFound, entity+" not found")
	}
	return fmt.Errorf("%s: %w", op, err)
}
