package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/Shivanand-hulikatti/eventhub/internal/model"
	"github.com/Shivanand-hulikatti/eventhub/internal/storage"
)

const userColumns = `id, email, name, password_hash, is_organizer, created_at`

// UserRepository handles persistence for accounts.
type UserRepository struct {
	q querier
}

func scanUser(row pgx.Row) (*model.User, error) {
	var u model.User
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.IsOrganizer, &u.CreatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

// Create inserts a user; a taken email returns storage.ErrDuplicateEmail.
func (r *UserRepository) Create(ctx context.Context, u *model.User) error {
	_, err := r.q.Exec(ctx,
		`INSERT INTO users (id, email, name, password_hash, is_organizer, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		u.ID, u.Email, u.Name, u.PasswordHash, u.IsOrganizer, u.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err, "users_email_key") {
			return storage.ErrDuplicateEmail
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// Get returns a user by ID.
func (r *UserRepository) Get(ctx context.Context, id string) (*model.User, error) {
	u, err := scanUser(r.q.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "user", "get user")
	}
	return u, nil
}

// GetByEmail returns a user by normalized email.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	u, err := scanUser(r.q.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
	if err != nil {
		return nil, notFound(err, "user", "get user by email")
	}
	return u, nil
}
