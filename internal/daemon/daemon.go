// Package daemon wires the store, vault, dispatcher and HTTP API together
// and runs them until the context is cancelled.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"golang.org/x/time/rate"

	"github.com/hossein1376/fm/internal/auth"
	"github.com/hossein1376/fm/internal/config"
	"github.com/hossein1376/fm/internal/db"
	"github.com/hossein1376/fm/internal/dispatch"
	"github.com/hossein1376/fm/internal/filesvc"
	"github.com/hossein1376/fm/internal/hostfs/httpfs"
	"github.com/hossein1376/fm/internal/hostfs/sftpfs"
	"github.com/hossein1376/fm/internal/httpapi"
	"github.com/hossein1376/fm/internal/metrics"
	"github.com/hossein1376/fm/internal/vault"
	"github.com/hossein1376/fm/internal/workpool"
)

type Options struct {
	Config config.Config
	// BaseDir anchors relative paths in Config, normally the config file's directory.
	BaseDir string
	Logger  *slog.Logger
}

// App is the assembled server. Build it with New, then call Run.
type App struct {
	DB      *db.DB
	Service *filesvc.Service
	API     *httpapi.Server
	Metrics *metrics.Metrics
	logger  *slog.Logger
}

// New opens the database and builds every component from the config.
// The caller owns the returned App and must Close it.
func New(ctx context.Context, opt Options) (*App, error) {
	c := opt.Config
	lg := opt.Logger
	if lg == nil {
		lg = slog.Default()
	}

	d, err := db.Open(ctx, ResolvePath(opt.BaseDir, c.DB.Path))
	if err != nil {
		return nil, err
	}
	initialized, err := d.IsInitialized(ctx)
	if err != nil {
		_ = d.Close()
		return nil, err
	}
	if !initialized {
		_ = d.Close()
		return nil, errors.New("not initialized; run setup")
	}

	app, err := build(d, opt.BaseDir, c, lg)
	if err != nil {
		_ = d.Close()
		return nil, err
	}
	return app, nil
}

func build(d *db.DB, baseDir string, c config.Config, lg *slog.Logger) (*App, error) {
	derivation, err := vault.ParseDerivation(c.Encryption.KeyDerivation)
	if err != nil {
		return nil, err
	}
	v, err := vault.New(c.Encryption.Key, vault.WithDerivation(derivation))
	if err != nil {
		return nil, err
	}
	tokens, err := auth.NewIssuer(c.Auth.TokenSecret, c.Auth.TokenTTL)
	if err != nil {
		return nil, err
	}

	hostKeys := sftpfs.InsecureHostKeys()
	if kh := ResolvePath(baseDir, c.Backends.SFTP.KnownHosts); kh != "" {
		hostKeys, err = sftpfs.KnownHosts(kh)
		if err != nil {
			return nil, fmt.Errorf("backends.sftp.known_hosts: %w", err)
		}
	} else {
		lg.Warn("sftp host keys are not verified; set backends.sftp.known_hosts to enable checking")
	}

	m := metrics.New()
	disp := dispatch.New(v, dispatch.Options{
		HTTPClient:           httpfs.NewClient(c.Backends.HTTP.Timeout),
		SFTPPool:             workpool.New(c.Backends.SFTP.Workers),
		SFTPDialTimeout:      c.Backends.SFTP.DialTimeout,
		SFTPHandshakeTimeout: c.Backends.SFTP.HandshakeTimeout,
		SFTPHostKeys:         hostKeys,
		Metrics:              m,
		Logger:               lg,
	})
	svc, err := filesvc.New(filesvc.Options{
		Store:      d,
		Vault:      v,
		Dispatcher: disp,
		Tokens:     tokens,
		Metrics:    m,
		Logger:     lg,
		Argon2:     &c.Auth.Argon2,
	})
	if err != nil {
		return nil, err
	}

	api := &httpapi.Server{
		Service:        svc,
		Metrics:        m,
		Logger:         lg,
		BindAddr:       c.HTTP.Bind,
		Port:           c.HTTP.Port,
		CertPath:       ResolvePath(baseDir, c.HTTP.TLS.CertPath),
		KeyPath:        ResolvePath(baseDir, c.HTTP.TLS.KeyPath),
		MaxUploadBytes: int64(c.HTTP.MaxUploadMB) << 20,
	}
	if n := c.HTTP.AuthRatePerMin; n > 0 {
		api.AuthLimiter = httpapi.NewIPLimiter(rate.Limit(float64(n)/60), n)
	}

	return &App{DB: d, Service: svc, API: api, Metrics: m, logger: lg}, nil
}

// Run serves the HTTP API until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("fm starting", "bind", a.API.BindAddr, "port", a.API.Port)
	err := a.API.ListenAndServe(ctx)
	a.logger.Info("fm stopped")
	return err
}

func (a *App) Close() error {
	if a.API.AuthLimiter != nil {
		a.API.AuthLimiter.Stop()
	}
	return a.DB.Close()
}

// Run builds the app and serves until ctx is cancelled.
func Run(ctx context.Context, opt Options) error {
	app, err := New(ctx, opt)
	if err != nil {
		return err
	}
	defer app.Close()
	return app.Run(ctx)
}

// ResolvePath makes p absolute against baseDir unless it already is.
func ResolvePath(baseDir, p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	if filepath.IsAbs(p) || baseDir == "" {
		return p
	}
	return filepath.Join(baseDir, p)
}
