package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/Shivanand-hulikatti/eventhub/internal/apperr"
	"github.com/Shivanand-hulikatti/eventhub/internal/auth"
	"github.com/Shivanand-hulikatti/eventhub/internal/model"
	"github.com/Shivanand-hulikatti/eventhub/internal/storage"
)

const minPasswordLen = 8

// TokenIssuer signs access tokens. *auth.Tokens implements it.
type TokenIssuer interface {
	Issue(u *model.User) (string, error)
}

// AccountService registers users and exchanges credentials for tokens.
type AccountService struct {
	store  storage.Store
	tokens TokenIssuer
	deps
}

// NewAccountService constructs an AccountService.
func NewAccountService(store storage.Store, tokens TokenIssuer, opts ...Option) *AccountService {
	return &AccountService{store: store, tokens: tokens, deps: newDeps(opts)}
}

// Register creates an account and returns a token for it.
func (s *AccountService) Register(ctx context.Context, req model.RegisterRequest) (*model.AuthResponse, error) {
	req.Email = normalizeEmail(req.Email)
	req.Name = strings.TrimSpace(req.Name)
	if req.Email == "" {
		return nil, apperr.Invalid("email is required")
	}
	if !isValidEmail(req.Email) {
		return nil, apperr.Invalid("email is not a valid email address")
	}
	if len(req.Password) < minPasswordLen {
		return nil, apperr.Invalid("password must be at least 8 characters")
	}
	if req.Name == "" {
		return nil, apperr.Invalid("name is required")
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}
	u := &model.User{
		ID:           uuid.NewString(),
		Email:        req.Email,
		Name:         req.Name,
		PasswordHash: hash,
		IsOrganizer:  req.IsOrganizer,
		CreatedAt:    s.now().UTC(),
	}
	err = s.store.WithinTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		return tx.Users().Create(ctx, u)
	})
	if errors.Is(err, storage.ErrDuplicateEmail) {
		return nil, apperr.New(apperr.KindConflict, "email already exists")
	}
	if err != nil {
		return nil, err
	}
	return s.issue(u)
}

// Login verifies credentials. Unknown emails and wrong passwords produce
// the same error.
func (s *AccountService) Login(ctx context.Context, req model.LoginRequest) (*model.AuthResponse, error) {
	email := normalizeEmail(req.Email)
	if email == "" || req.Password == "" {
		return nil, apperr.Invalid("email and password are required")
	}

	var u *model.User
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		var err error
		u, err = tx.Users().GetByEmail(ctx, email)
		return err
	})
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, apperr.New(apperr.KindUnauthenticated, "invalid email or password")
	}
	if err != nil {
		return nil, err
	}
	if !auth.CheckPassword(u.PasswordHash, req.Password) {
		return nil, apperr.New(apperr.KindUnauthenticated, "invalid email or password")
	}
	return s.issue(u)
}

// Me returns the session user's account.
func (s *AccountService) Me(ctx context.Context, sess auth.Session) (*model.User, error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}
	var u *model.User
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		var err error
		u, err = tx.Users().Get(ctx, sess.UserID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (s *AccountService) issue(u *model.User) (*model.AuthResponse, error) {
	token, err := s.tokens.Issue(u)
	if err != nil {
		return nil, err
	}
	return &model.AuthResponse{AccessToken: token, User: u}, nil
}

func normalizeEmail(email string) string {
	return strings.TrimSpace(strings.ToLower(email))
}

// isValidEmail does a basic structural check.
func isValidEmail(email string) bool {
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return false
	}
	return len(parts[0]) > 0 && strings.Contains(parts[1], ".")
}
