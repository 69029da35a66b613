// Package dispatch routes a file operation on a stored host to the backend
// driver for the host's type, decrypting the host's credentials on the way.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hossein1376/fm/internal/db"
	"github.com/hossein1376/fm/internal/guard"
	"github.com/hossein1376/fm/internal/hostfs"
	"github.com/hossein1376/fm/internal/hostfs/httpfs"
	"github.com/hossein1376/fm/internal/hostfs/localfs"
	"github.com/hossein1376/fm/internal/hostfs/sftpfs"
	"github.com/hossein1376/fm/internal/metrics"
	"github.com/hossein1376/fm/internal/workpool"
)

// Decrypter opens sealed host credentials. *vault.Vault implements it.
type Decrypter interface {
	Decrypt(token string) (string, error)
}

type Options struct {
	HTTPClient *resty.Client

	SFTPPool             *workpool.Pool
	SFTPDialTimeout      time.Duration
	SFTPHandshakeTimeout time.Duration
	SFTPHostKeys         *sftpfs.HostKeyPolicy

	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

type Dispatcher struct {
	vault Decrypter
	opt   Options
}

func New(v Decrypter, opt Options) *Dispatcher {
	if opt.HTTPClient == nil {
		opt.HTTPClient = httpfs.NewClient(httpfs.DefaultTimeout)
	}
	if opt.SFTPPool == nil {
		opt.SFTPPool = workpool.New(workpool.DefaultSize)
	}
	if opt.SFTPHostKeys == nil {
		opt.SFTPHostKeys = sftpfs.InsecureHostKeys()
	}
	if opt.Logger == nil {
		opt.Logger = slog.Default()
	}
	return &Dispatcher{vault: v, opt: opt}
}

var supported = map[db.HostType]map[hostfs.Op]bool{
	db.HostLocal: {hostfs.OpList: true, hostfs.OpRead: true, hostfs.OpWrite: true, hostfs.OpDelete: true, hostfs.OpMkdir: true},
	db.HostHTTP:  {hostfs.OpList: true, hostfs.OpRead: true},
	db.HostSFTP:  {hostfs.OpList: true, hostfs.OpRead: true, hostfs.OpWrite: true},
}

// Supports reports whether hosts of type t implement op.
func Supports(t db.HostType, op hostfs.Op) bool {
	return supported[t][op]
}

func (d *Dispatcher) List(ctx context.Context, callerID string, host *db.Host, p string) ([]hostfs.FileInfo, error) {
	var out []hostfs.FileInfo
	err := d.do(ctx, callerID, host, hostfs.OpList, p, func(fs hostfs.FS) error {
		var err error
		out, err = fs.List(ctx, p)
		return err
	})
	return out, err
}

func (d *Dispatcher) ReadFile(ctx context.Context, callerID string, host *db.Host, p string) ([]byte, error) {
	var out []byte
	err := d.do(ctx, callerID, host, hostfs.OpRead, p, func(fs hostfs.FS) error {
		var err error
		out, err = fs.ReadFile(ctx, p)
		return err
	})
	return out, err
}

func (d *Dispatcher) WriteFile(ctx context.Context, callerID string, host *db.Host, p string, data []byte) error {
	return d.do(ctx, callerID, host, hostfs.OpWrite, p, func(fs hostfs.FS) error {
		return fs.WriteFile(ctx, p, data)
	})
}

func (d *Dispatcher) Remove(ctx context.Context, callerID string, host *db.Host, p string) error {
	return d.do(ctx, callerID, host, hostfs.OpDelete, p, func(fs hostfs.FS) error {
		return fs.Remove(ctx, p)
	})
}

func (d *Dispatcher) Mkdir(ctx context.Context, callerID string, host *db.Host, p string) error {
	return d.do(ctx, callerID, host, hostfs.OpMkdir, p, func(fs hostfs.FS) error {
		return fs.Mkdir(ctx, p)
	})
}

func (d *Dispatcher) do(ctx context.Context, callerID string, host *db.Host, op hostfs.Op, p string, fn func(hostfs.FS) error) error {
	start := time.Now()
	fs, err := d.Open(callerID, host, op)
	if err == nil {
		err = fn(fs)
		d.opt.Metrics.ObserveBackend(string(host.Type), string(op), start, err)
	}
	if err == nil {
		return nil
	}
	hostID := ""
	if host != nil {
		hostID = host.ID
	}
	d.opt.Logger.LogAttrs(ctx, slog.LevelDebug, "host operation failed",
		slog.String("host_id", hostID),
		slog.String("op", string(op)),
		slog.String("path", p),
		slog.String("err", err.Error()),
	)
	return &hostfs.OpError{Op: op, HostID: hostID, Path: p, Err: err}
}

// Open checks ownership, operation support, and the host's required
// configuration, then builds the driver. No network I/O happens here.
func (d *Dispatcher) Open(callerID string, host *db.Host, op hostfs.Op) (hostfs.FS, error) {
	if err := guard.Authorize(callerID, host); err != nil {
		return nil, err
	}
	if _, ok := supported[host.Type]; !ok {
		return nil, fmt.Errorf("%w: unknown host type %q", hostfs.ErrValidation, host.Type)
	}
	if !Supports(host.Type, op) {
		return nil, hostfs.ErrUnsupported
	}

	cfg := host.Config
	switch host.Type {
	case db.HostLocal:
		if cfg.Path == "" {
			return nil, &hostfs.MissingFieldError{Field: "path"}
		}
		return localfs.New(cfg.Path), nil
	case db.HostHTTP:
		if cfg.URL == "" {
			return nil, &hostfs.MissingFieldError{Field: "url"}
		}
		return httpfs.New(cfg.URL, d.opt.HTTPClient), nil
	default:
		for _, f := range []struct{ name, val string }{
			{"host", cfg.Host},
			{"username", cfg.Username},
			{"password_encrypted", cfg.PasswordEncrypted},
		} {
			if f.val == "" {
				return nil, &hostfs.MissingFieldError{Field: f.name}
			}
		}
		password, err := d.vault.Decrypt(cfg.PasswordEncrypted)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", hostfs.ErrCredential, err)
		}
		return sftpfs.New(sftpfs.Config{
			Host:             cfg.Host,
			Port:             int(cfg.Port),
			Username:         cfg.Username,
			Password:         password,
			Base:             cfg.Path,
			DialTimeout:      d.opt.SFTPDialTimeout,
			HandshakeTimeout: d.opt.SFTPHandshakeTimeout,
			HostKeys:         d.opt.SFTPHostKeys,
		}, d.opt.SFTPPool), nil
	}
}
