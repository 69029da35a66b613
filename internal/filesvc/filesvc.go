// Package filesvc is the boundary between the HTTP API and the host layer.
// Every host-scoped call loads the host, checks the caller owns it, and only
// then hands the operation to the dispatcher.
package filesvc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hossein1376/fm/internal/auth"
	"github.com/hossein1376/fm/internal/db"
	"github.com/hossein1376/fm/internal/dispatch"
	"github.com/hossein1376/fm/internal/guard"
	"github.com/hossein1376/fm/internal/hostfs"
	"github.com/hossein1376/fm/internal/metrics"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrConflict           = errors.New("already exists")
)

// Store is the persistence the service needs. *db.DB implements it.
type Store interface {
	CreateUser(ctx context.Context, username, passHash string) (*db.User, error)
	GetUserByUsername(ctx context.Context, username string) (*db.User, bool, error)
	GetUserByID(ctx context.Context, id string) (*db.User, bool, error)
	UpdatePasswordHash(ctx context.Context, id, passHash string) (bool, error)
	CreateHost(ctx context.Context, userID, name string, typ db.HostType, cfg db.HostConfig) (*db.Host, error)
	GetHost(ctx context.Context, id string) (*db.Host, bool, error)
	ListHostsByOwner(ctx context.Context, userID string) ([]db.Host, error)
	DeleteHost(ctx context.Context, id string) (bool, error)
}

// Vault seals host credentials. *vault.Vault implements it.
type Vault interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(token string) (string, error)
}

type Options struct {
	Store      Store
	Vault      Vault
	Dispatcher *dispatch.Dispatcher
	Tokens     *auth.Issuer
	Metrics    *metrics.Metrics
	Logger     *slog.Logger
	// Argon2 defaults to auth.DefaultArgon2Params.
	Argon2 *auth.Argon2Params
}

type Service struct {
	store   Store
	vault   Vault
	disp    *dispatch.Dispatcher
	tokens  *auth.Issuer
	metrics *metrics.Metrics
	logger  *slog.Logger
	argon2  auth.Argon2Params
}

func New(opt Options) (*Service, error) {
	if opt.Store == nil || opt.Vault == nil || opt.Dispatcher == nil || opt.Tokens == nil {
		return nil, errors.New("store, vault, dispatcher, and token issuer are required")
	}
	lg := opt.Logger
	if lg == nil {
		lg = slog.Default()
	}
	p := auth.DefaultArgon2Params()
	if opt.Argon2 != nil {
		p = *opt.Argon2
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &Service{
		store:   opt.Store,
		vault:   opt.Vault,
		disp:    opt.Dispatcher,
		tokens:  opt.Tokens,
		metrics: opt.Metrics,
		logger:  lg,
		argon2:  p,
	}, nil
}

// Tokens exposes the issuer so transports can verify bearer tokens.
func (s *Service) Tokens() *auth.Issuer { return s.tokens }

// ownedHost loads hostID and checks callerID owns it.
func (s *Service) ownedHost(ctx context.Context, callerID, hostID string) (*db.Host, error) {
	if hostID == "" {
		return nil, fmt.Errorf("%w: host_id is required", hostfs.ErrValidation)
	}
	h, ok, err := s.store.GetHost(ctx, hostID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("host %w", hostfs.ErrNotFound)
	}
	if err := guard.Authorize(callerID, h); err != nil {
		s.logger.Warn("host access denied", "host_id", hostID, "caller", callerID)
		return nil, err
	}
	return h, nil
}

// Browse lists a directory on the caller's host.
func (s *Service) Browse(ctx context.Context, callerID, hostID, p string) ([]hostfs.FileInfo, error) {
	h, err := s.ownedHost(ctx, callerID, hostID)
	if err != nil {
		return nil, err
	}
	return s.disp.List(ctx, callerID, h, p)
}

func (s *Service) ReadFile(ctx context.Context, callerID, hostID, p string) ([]byte, error) {
	if p == "" {
		return nil, fmt.Errorf("%w: path is required", hostfs.ErrValidation)
	}
	h, err := s.ownedHost(ctx, callerID, hostID)
	if err != nil {
		return nil, err
	}
	b, err := s.disp.ReadFile(ctx, callerID, h, p)
	if err != nil {
		return nil, err
	}
	s.metrics.IncDownloads()
	return b, nil
}

func (s *Service) WriteFile(ctx context.Context, callerID, hostID, p string, data []byte) error {
	if p == "" {
		return fmt.Errorf("%w: path is required", hostfs.ErrValidation)
	}
	h, err := s.ownedHost(ctx, callerID, hostID)
	if err != nil {
		return err
	}
	if err := s.disp.WriteFile(ctx, callerID, h, p, data); err != nil {
		return err
	}
	s.metrics.IncUploads()
	return nil
}

func (s *Service) DeleteFile(ctx context.Context, callerID, hostID, p string) error {
	h, err := s.ownedHost(ctx, callerID, hostID)
	if err != nil {
		return err
	}
	return s.disp.Remove(ctx, callerID, h, p)
}

func (s *Service) CreateDirectory(ctx context.Context, callerID, hostID, p string) error {
	h, err := s.ownedHost(ctx, callerID, hostID)
	if err != nil {
		return err
	}
	return s.disp.Mkdir(ctx, callerID, h, p)
}

// EncryptSecret seals plaintext with the server's vault key.
func (s *Service) EncryptSecret(plaintext string) (string, error) {
	if plaintext == "" {
		return "", fmt.Errorf("%w: secret is required", hostfs.ErrValidation)
	}
	return s.vault.Encrypt(plaintext)
}

// DecryptSecret opens a token produced by EncryptSecret.
func (s *Service) DecryptSecret(token string) (string, error) {
	plain, err := s.vault.Decrypt(token)
	if err != nil {
		return "", fmt.Errorf("%w: %w", hostfs.ErrCredential, err)
	}
	return plain, nil
}
