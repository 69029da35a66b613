// Package sftpfs serves a host backed by a remote SFTP server.
//
// Every call opens its own SSH connection and SFTP session and closes both
// before returning. The blocking work runs on a shared workpool.Pool so the
// number of concurrent sessions stays bounded.
package sftpfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"path"
	"strconv"
	"time"

	"github.com/hossein1376/fm/internal/hostfs"
	"github.com/hossein1376/fm/internal/workpool"
	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
)

const (
	DefaultPort             = 22
	DefaultDialTimeout      = 10 * time.Second
	DefaultHandshakeTimeout = 15 * time.Second
)

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	// Base is the remote directory caller paths are relative to.
	Base string

	DialTimeout      time.Duration
	HandshakeTimeout time.Duration
	HostKeys         *HostKeyPolicy
}

type FS struct {
	cfg  Config
	pool *workpool.Pool
}

var _ hostfs.FS = (*FS)(nil)

func New(cfg Config, pool *workpool.Pool) *FS {
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.Base == "" {
		cfg.Base = "/"
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = DefaultDialTimeout
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if pool == nil {
		pool = workpool.New(workpool.DefaultSize)
	}
	return &FS{cfg: cfg, pool: pool}
}

func (f *FS) Supports(op hostfs.Op) bool {
	switch op {
	case hostfs.OpList, hostfs.OpRead, hostfs.OpWrite:
		return true
	default:
		return false
	}
}

func (f *FS) List(ctx context.Context, p string) ([]hostfs.FileInfo, error) {
	remote := f.remote(p)
	return session(ctx, f, func(c *sftp.Client) ([]hostfs.FileInfo, error) {
		infos, err := c.ReadDir(remote)
		if err != nil {
			return nil, classify(err)
		}
		out := make([]hostfs.FileInfo, 0, len(infos))
		for _, fi := range infos {
			e := hostfs.FileInfo{
				Name:     fi.Name(),
				Path:     hostfs.ChildPath(p, fi.Name()),
				IsDir:    fi.IsDir(),
				Size:     fi.Size(),
				Modified: hostfs.ModTime(fi.ModTime()),
			}
			out = append(out, e)
		}
		hostfs.SortEntries(out)
		return out, nil
	})
}

func (f *FS) ReadFile(ctx context.Context, p string) ([]byte, error) {
	remote := f.remote(p)
	return session(ctx, f, func(c *sftp.Client) ([]byte, error) {
		fh, err := c.Open(remote)
		if err != nil {
			return nil, classify(err)
		}
		defer fh.Close()
		b, err := io.ReadAll(fh)
		if err != nil {
			return nil, classify(err)
		}
		return b, nil
	})
}

// WriteFile creates missing parent directories and truncates existing files.
func (f *FS) WriteFile(ctx context.Context, p string, data []byte) error {
	remote := f.remote(p)
	if remote == path.Clean(f.cfg.Base) {
		return fmt.Errorf("%w: cannot write to the host root", hostfs.ErrValidation)
	}
	_, err := session(ctx, f, func(c *sftp.Client) (struct{}, error) {
		if err := c.MkdirAll(path.Dir(remote)); err != nil {
			return struct{}{}, classify(err)
		}
		fh, err := c.Create(remote)
		if err != nil {
			return struct{}{}, classify(err)
		}
		if _, err := fh.Write(data); err != nil {
			_ = fh.Close()
			return struct{}{}, classify(err)
		}
		return struct{}{}, classify(fh.Close())
	})
	return err
}

func (f *FS) Remove(context.Context, string) error { return hostfs.ErrUnsupported }

func (f *FS) Mkdir(context.Context, string) error { return hostfs.ErrUnsupported }

func (f *FS) remote(p string) string {
	return hostfs.CleanRemote(f.cfg.Base, p)
}

func (f *FS) addr() string {
	return net.JoinHostPort(f.cfg.Host, strconv.Itoa(f.cfg.Port))
}

// session runs fn against a fresh SFTP client on the pool.
func session[T any](ctx context.Context, f *FS, fn func(*sftp.Client) (T, error)) (T, error) {
	return workpool.Do(ctx, f.pool, func() (T, error) {
		var zero T
		c, closeFn, err := f.connect()
		if err != nil {
			return zero, err
		}
		defer closeFn()
		return fn(c)
	})
}

// connect dials, authenticates and opens the sftp subsystem. The handshake
// runs under a deadline that is cleared once the session is up.
func (f *FS) connect() (*sftp.Client, func(), error) {
	addr := f.addr()
	conn, err := net.DialTimeout("tcp", addr, f.cfg.DialTimeout)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: dial %s: %v", hostfs.ErrBackendUnavailable, addr, err)
	}

	cc := &ssh.ClientConfig{
		User:    f.cfg.Username,
		Auth:    []ssh.AuthMethod{ssh.Password(f.cfg.Password)},
		Timeout: f.cfg.DialTimeout,
	}
	f.cfg.HostKeys.apply(cc, addr)

	_ = conn.SetDeadline(time.Now().Add(f.cfg.HandshakeTimeout))
	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, cc)
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("%w: ssh handshake with %s: %v", hostfs.ErrBackendUnavailable, addr, err)
	}
	client := ssh.NewClient(sshConn, chans, reqs)

	sc, err := sftp.NewClient(client)
	if err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("%w: sftp subsystem on %s: %v", hostfs.ErrBackendUnavailable, addr, err)
	}
	_ = conn.SetDeadline(time.Time{})

	return sc, func() {
		_ = sc.Close()
		_ = client.Close()
	}, nil
}

func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("%w: %v", hostfs.ErrNotFound, err)
	default:
		return err
	}
}
