// Package httpfs serves a read-only host backed by a plain HTTP endpoint.
package httpfs

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hossein1376/fm/internal/hostfs"
)

const DefaultTimeout = 30 * time.Second

// NewClient returns a resty client suitable for sharing across hosts.
// Requests are never retried.
func NewClient(timeout time.Duration) *resty.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return resty.New().
		SetTimeout(timeout).
		SetRetryCount(0).
		SetHeader("User-Agent", "fm")
}

type FS struct {
	base   string
	client *resty.Client
}

var _ hostfs.FS = (*FS)(nil)

func New(baseURL string, client *resty.Client) *FS {
	if client == nil {
		client = NewClient(DefaultTimeout)
	}
	return &FS{base: baseURL, client: client}
}

func (f *FS) Supports(op hostfs.Op) bool {
	return op == hostfs.OpList || op == hostfs.OpRead
}

// List always returns an empty listing: a plain HTTP endpoint has no
// standard directory format, so no request is made.
func (f *FS) List(ctx context.Context, _ string) ([]hostfs.FileInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return []hostfs.FileInfo{}, nil
}

func (f *FS) ReadFile(ctx context.Context, p string) ([]byte, error) {
	target, err := f.url(p)
	if err != nil {
		return nil, err
	}
	resp, err := f.client.R().SetContext(ctx).Get(target)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %v", hostfs.ErrBackendUnavailable, err)
	}
	if !resp.IsSuccess() {
		return nil, &hostfs.RemoteStatusError{Status: resp.StatusCode()}
	}
	return resp.Body(), nil
}

func (f *FS) WriteFile(context.Context, string, []byte) error { return hostfs.ErrUnsupported }

func (f *FS) Remove(context.Context, string) error { return hostfs.ErrUnsupported }

func (f *FS) Mkdir(context.Context, string) error { return hostfs.ErrUnsupported }

// url appends p to the base URL. ".." segments cannot climb above the
// base URL's own path.
func (f *FS) url(p string) (string, error) {
	u, err := url.Parse(f.base)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return "", fmt.Errorf("%w: invalid url", hostfs.ErrMisconfigured)
	}
	return u.JoinPath(hostfs.CleanRemote("/", p)).String(), nil
}
