package filesvc

import (
	"context"
	"errors"
	"fmt"

	"github.com/hossein1376/fm/internal/auth"
	"github.com/hossein1376/fm/internal/db"
	"github.com/hossein1376/fm/internal/hostfs"
	"github.com/hossein1376/fm/internal/validate"
)

// Session is what a successful register or login hands back.
type Session struct {
	Token string
	User  *db.User
}

// Register creates an account and signs a token for it.
func (s *Service) Register(ctx context.Context, username, password string) (*Session, error) {
	if err := validate.Username(username); err != nil {
		return nil, fmt.Errorf("%w: %v", hostfs.ErrValidation, err)
	}
	if err := validate.Password(password); err != nil {
		return nil, fmt.Errorf("%w: %v", hostfs.ErrValidation, err)
	}
	hash, err := auth.HashPassword(password, s.argon2)
	if err != nil {
		return nil, err
	}
	u, err := s.store.CreateUser(ctx, username, hash)
	if errors.Is(err, db.ErrUsernameTaken) {
		return nil, fmt.Errorf("username %w", ErrConflict)
	}
	if err != nil {
		return nil, err
	}
	s.logger.Info("user registered", "user_id", u.ID, "username", u.Username)
	return s.session(u)
}

// Login verifies a password. Unknown users and wrong passwords are
// indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, username, password string) (*Session, error) {
	if username == "" || password == "" {
		return nil, ErrInvalidCredentials
	}
	u, ok, err := s.store.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}
	match, err := auth.VerifyPassword(password, u.PassHash)
	if err != nil {
		s.logger.Error("stored password hash unreadable", "user_id", u.ID, "err", err)
		return nil, ErrInvalidCredentials
	}
	if !match {
		return nil, ErrInvalidCredentials
	}
	if auth.NeedsRehash(u.PassHash, s.argon2) {
		s.rehash(ctx, u, password)
	}
	return s.session(u)
}

// rehash stores password under the current argon2 settings. Failure only
// costs the upgrade, so it is logged and the login goes ahead.
func (s *Service) rehash(ctx context.Context, u *db.User, password string) {
	hash, err := auth.HashPassword(password, s.argon2)
	if err == nil {
		_, err = s.store.UpdatePasswordHash(ctx, u.ID, hash)
	}
	if err != nil {
		s.logger.Warn("password rehash failed", "user_id", u.ID, "err", err)
		return
	}
	u.PassHash = hash
	s.logger.Info("password hash upgraded", "user_id", u.ID)
}

// Authenticate maps a bearer token to the caller's user ID.
func (s *Service) Authenticate(token string) (*auth.Claims, error) {
	return s.tokens.Verify(token)
}

func (s *Service) session(u *db.User) (*Session, error) {
	tok, err := s.tokens.Issue(u.ID, u.Username)
	if err != nil {
		return nil, err
	}
	return &Session{Token: tok, User: u}, nil
}
