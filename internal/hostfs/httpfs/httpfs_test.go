package httpfs

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hossein1376/fm/internal/hostfs"
)

func TestReadFileFetchesJoinedPath(t *testing.T) {
	var gotPath atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath.Store(r.URL.Path)
		_, _ = w.Write([]byte("remote body"))
	}))
	defer srv.Close()

	fs := New(srv.URL+"/files/", NewClient(time.Second))
	b, err := fs.ReadFile(context.Background(), "/docs/readme.txt")
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(b) != "remote body" {
		t.Fatalf("unexpected body %q", b)
	}
	if p := gotPath.Load().(string); p != "/files/docs/readme.txt" {
		t.Fatalf("unexpected request path %q", p)
	}
}

// TestReadFileCannotClimbAboveBase keeps .. inside the base URL path.
func TestReadFileCannotClimbAboveBase(t *testing.T) {
	var gotPath atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath.Store(r.URL.Path)
	}))
	defer srv.Close()

	fs := New(srv.URL+"/files", nil)
	if _, err := fs.ReadFile(context.Background(), "../../admin/secret"); err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if p := gotPath.Load().(string); p != "/files/admin/secret" {
		t.Fatalf("unexpected request path %q", p)
	}
}

func TestReadFileNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()
	fs := New(srv.URL, nil)

	_, err := fs.ReadFile(context.Background(), "/missing")
	var rs *hostfs.RemoteStatusError
	if !errors.As(err, &rs) || rs.Status != 404 {
		t.Fatalf("expected RemoteStatusError 404, got %v", err)
	}
	if !errors.Is(err, hostfs.ErrNotFound) {
		t.Fatalf("404 should classify as not found")
	}

	_, err = fs.ReadFile(context.Background(), "/broken")
	if !errors.Is(err, hostfs.ErrRemoteRequestFailed) || errors.Is(err, hostfs.ErrNotFound) {
		t.Fatalf("expected remote failure, got %v", err)
	}
}

// TestReadFileDoesNotRetry counts exactly one request per failing read.
func TestReadFileDoesNotRetry(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, _ = New(srv.URL, nil).ReadFile(context.Background(), "/x")
	if n := atomic.LoadInt32(&hits); n != 1 {
		t.Fatalf("expected 1 request, got %d", n)
	}
}

func TestReadFileUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := New(url, NewClient(time.Second)).ReadFile(context.Background(), "/x")
	if !errors.Is(err, hostfs.ErrBackendUnavailable) {
		t.Fatalf("expected ErrBackendUnavailable, got %v", err)
	}
}

func TestInvalidBaseURL(t *testing.T) {
	for _, base := range []string{"", "ftp://example.com", "not a url", "http://"} {
		_, err := New(base, nil).ReadFile(context.Background(), "/x")
		if !errors.Is(err, hostfs.ErrMisconfigured) {
			t.Fatalf("base %q: expected ErrMisconfigured, got %v", base, err)
		}
	}
}

// TestListIsEmptyPlaceholder makes no request and returns no entries.
func TestListIsEmptyPlaceholder(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer srv.Close()

	got, err := New(srv.URL, nil).List(context.Background(), "/")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil listing, got %#v", got)
	}
	if hits != 0 {
		t.Fatalf("List should not hit the network")
	}
}

func TestMutationsUnsupported(t *testing.T) {
	fs := New("http://example.invalid", nil)
	ctx := context.Background()
	if err := fs.WriteFile(ctx, "/a", []byte("x")); !errors.Is(err, hostfs.ErrUnsupported) {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := fs.Remove(ctx, "/a"); !errors.Is(err, hostfs.ErrUnsupported) {
		t.Fatalf("Remove: %v", err)
	}
	if err := fs.Mkdir(ctx, "/a"); !errors.Is(err, hostfs.ErrUnsupported) {
		t.Fatalf("Mkdir: %v", err)
	}
	for op, want := range map[hostfs.Op]bool{hostfs.OpList: true, hostfs.OpRead: true, hostfs.OpWrite: false, hostfs.OpDelete: false, hostfs.OpMkdir: false} {
		if fs.Supports(op) != want {
			t.Fatalf("Supports(%s) != %v", op, want)
		}
	}
}
