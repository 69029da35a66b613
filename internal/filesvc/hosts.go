package filesvc

import (
	"context"
	"errors"
	"fmt"

	"github.com/hossein1376/fm/internal/db"
	"github.com/hossein1376/fm/internal/hostfs"
	"github.com/hossein1376/fm/internal/validate"
)

// HostInput describes a host to create. Password is plaintext and is sealed
// before it reaches the store. PasswordSealed is a token already produced by
// this server's vault (fm seal); it is checked and stored unchanged.
type HostInput struct {
	Name           string
	Type           db.HostType
	Config         db.HostConfig
	Password       string
	PasswordSealed string
}

func (s *Service) CreateHost(ctx context.Context, callerID string, in HostInput) (*db.Host, error) {
	name, err := validate.HostName(in.Name)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", hostfs.ErrValidation, err)
	}
	cfg, err := s.normalizeConfig(in)
	if err != nil {
		return nil, err
	}

	h, err := s.store.CreateHost(ctx, callerID, name, in.Type, cfg)
	if errors.Is(err, db.ErrOwnerNotFound) {
		return nil, fmt.Errorf("owner %w", hostfs.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	s.logger.Info("host created", "host_id", h.ID, "owner", callerID, "type", string(h.Type))
	return h, nil
}

// normalizeConfig keeps only the fields relevant to the host type and seals
// the password.
func (s *Service) normalizeConfig(in HostInput) (db.HostConfig, error) {
	invalid := func(err error) (db.HostConfig, error) {
		return db.HostConfig{}, fmt.Errorf("%w: %v", hostfs.ErrValidation, err)
	}
	c := in.Config
	switch in.Type {
	case db.HostLocal:
		root, err := validate.RootPath(c.Path)
		if err != nil {
			return invalid(err)
		}
		return db.HostConfig{Path: root}, nil
	case db.HostHTTP:
		u, err := validate.BaseURL(c.URL)
		if err != nil {
			return invalid(err)
		}
		return db.HostConfig{URL: u}, nil
	case db.HostSFTP:
		host, err := validate.RemoteHost(c.Host)
		if err != nil {
			return invalid(err)
		}
		base, err := validate.RemotePath(c.Path)
		if err != nil {
			return invalid(err)
		}
		if c.Username == "" {
			return invalid(errors.New("username is required"))
		}
		sealed, err := s.sealPassword(in)
		if err != nil {
			return db.HostConfig{}, err
		}
		return db.HostConfig{
			Path:              base,
			Host:              host,
			Port:              c.Port,
			Username:          c.Username,
			PasswordEncrypted: sealed,
		}, nil
	default:
		return invalid(fmt.Errorf("unknown host type %q", in.Type))
	}
}

// sealPassword returns the token to store for an SFTP host.
func (s *Service) sealPassword(in HostInput) (string, error) {
	password := in.Password
	if password == "" {
		// Older clients send the plaintext in password_encrypted.
		password = in.Config.PasswordEncrypted
	}
	if in.PasswordSealed != "" {
		if password != "" {
			return "", fmt.Errorf("%w: send either password or password_sealed", hostfs.ErrValidation)
		}
		plain, err := s.vault.Decrypt(in.PasswordSealed)
		if err != nil || plain == "" {
			return "", fmt.Errorf("%w: password_sealed was not sealed with this server's key", hostfs.ErrValidation)
		}
		return in.PasswordSealed, nil
	}
	if password == "" {
		return "", fmt.Errorf("%w: password is required", hostfs.ErrValidation)
	}
	sealed, err := s.vault.Encrypt(password)
	if err != nil {
		return "", fmt.Errorf("%w: %w", hostfs.ErrCredential, err)
	}
	return sealed, nil
}

func (s *Service) GetHost(ctx context.Context, callerID, hostID string) (*db.Host, error) {
	return s.ownedHost(ctx, callerID, hostID)
}

func (s *Service) ListHosts(ctx context.Context, callerID string) ([]db.Host, error) {
	hosts, err := s.store.ListHostsByOwner(ctx, callerID)
	if err != nil {
		return nil, err
	}
	if hosts == nil {
		hosts = []db.Host{}
	}
	return hosts, nil
}

func (s *Service) DeleteHost(ctx context.Context, callerID, hostID string) error {
	if _, err := s.ownedHost(ctx, callerID, hostID); err != nil {
		return err
	}
	ok, err := s.store.DeleteHost(ctx, hostID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("host %w", hostfs.ErrNotFound)
	}
	s.logger.Info("host deleted", "host_id", hostID, "owner", callerID)
	return nil
}
