package sftpfs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/hossein1376/fm/internal/hostfs"
	"github.com/hossein1376/fm/internal/hostfs/sftpfs/sftptest"
	"github.com/hossein1376/fm/internal/workpool"
	"github.com/skeema/knownhosts"
)

type testServer struct {
	root string
	host string
	port int
	srv  *sftptest.Server
}

// startServer runs an in-process SFTP endpoint over a temp directory.
func startServer(t *testing.T) *testServer {
	t.Helper()
	root := t.TempDir()
	srv, err := sftptest.New(sftptest.Options{
		Root:     root,
		Username: "alice",
		Password: "s3cret",
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("sftptest.New: %v", err)
	}
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = srv.Serve(ctx, ln) }()
	t.Cleanup(cancel)

	host, portStr, _ := net.SplitHostPort(ln.Addr().String())
	port, _ := strconv.Atoi(portStr)
	return &testServer{root: root, host: host, port: port, srv: srv}
}

func (s *testServer) fs(mut func(*Config)) *FS {
	cfg := Config{
		Host:        s.host,
		Port:        s.port,
		Username:    "alice",
		Password:    "s3cret",
		DialTimeout: 2 * time.Second,
		HostKeys:    FixedHostKey(s.srv.PublicKey()),
	}
	if mut != nil {
		mut(&cfg)
	}
	return New(cfg, workpool.New(2))
}

func TestListOrdersDirectoriesFirst(t *testing.T) {
	s := startServer(t)
	for name, body := range map[string]string{"b.txt": "bb", "a.txt": "a"} {
		if err := os.WriteFile(filepath.Join(s.root, name), []byte(body), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := os.Mkdir(filepath.Join(s.root, "z"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	got, err := s.fs(nil).List(context.Background(), "/")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	want := []string{"z", "a.txt", "b.txt"}
	if len(got) != len(want) {
		t.Fatalf("got %+v", got)
	}
	for i, n := range want {
		if got[i].Name != n || got[i].Path != "/"+n {
			t.Fatalf("entry %d: got %+v want %s", i, got[i], n)
		}
	}
	zst, err := os.Stat(filepath.Join(s.root, "z"))
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	// Directories report their stat size like files do.
	if got[2].Size != 2 || got[0].Size != zst.Size() || !got[0].IsDir {
		t.Fatalf("unexpected sizes %+v", got)
	}
	if got[1].Modified == nil {
		t.Fatalf("expected remote mtime")
	}
}

func TestWriteThenRead(t *testing.T) {
	s := startServer(t)
	fs := s.fs(nil)
	ctx := context.Background()

	if err := fs.WriteFile(ctx, "/up/load.txt", []byte("via sftp")); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	b, err := os.ReadFile(filepath.Join(s.root, "up", "load.txt"))
	if err != nil || string(b) != "via sftp" {
		t.Fatalf("remote content %q, %v", b, err)
	}

	got, err := fs.ReadFile(ctx, "up/load.txt")
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(got) != "via sftp" {
		t.Fatalf("unexpected read %q", got)
	}
}

// TestBaseDirectoryScopesPaths maps caller paths under Config.Base.
func TestBaseDirectoryScopesPaths(t *testing.T) {
	s := startServer(t)
	if err := os.MkdirAll(filepath.Join(s.root, "srv", "data"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(s.root, "srv", "data", "f"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	fs := s.fs(func(c *Config) { c.Base = "/srv/data" })

	got, err := fs.List(context.Background(), "/../..")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 1 || got[0].Name != "f" {
		t.Fatalf("expected listing of base, got %+v", got)
	}
}

func TestReadMissingFile(t *testing.T) {
	s := startServer(t)
	_, err := s.fs(nil).ReadFile(context.Background(), "/nope.txt")
	if !errors.Is(err, hostfs.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestWrongPasswordIsUnavailable(t *testing.T) {
	s := startServer(t)
	fs := s.fs(func(c *Config) { c.Password = "wrong" })
	if _, err := fs.List(context.Background(), "/"); !errors.Is(err, hostfs.ErrBackendUnavailable) {
		t.Fatalf("expected ErrBackendUnavailable, got %v", err)
	}
}

func TestUnexpectedHostKeyIsUnavailable(t *testing.T) {
	s := startServer(t)
	other := startServer(t)
	fs := s.fs(func(c *Config) { c.HostKeys = FixedHostKey(other.srv.PublicKey()) })
	if _, err := fs.List(context.Background(), "/"); !errors.Is(err, hostfs.ErrBackendUnavailable) {
		t.Fatalf("expected ErrBackendUnavailable, got %v", err)
	}
}

func TestKnownHostsPolicy(t *testing.T) {
	s := startServer(t)
	addr := net.JoinHostPort(s.host, strconv.Itoa(s.port))
	khPath := filepath.Join(t.TempDir(), "known_hosts")
	line := knownhosts.Line([]string{addr}, s.srv.PublicKey())
	if err := os.WriteFile(khPath, []byte(line+"\n"), 0o600); err != nil {
		t.Fatalf("write known_hosts: %v", err)
	}
	policy, err := KnownHosts(khPath)
	if err != nil {
		t.Fatalf("KnownHosts: %v", err)
	}
	if policy.Insecure() {
		t.Fatalf("known_hosts policy should not be insecure")
	}
	fs := s.fs(func(c *Config) { c.HostKeys = policy })
	if _, err := fs.List(context.Background(), "/"); err != nil {
		t.Fatalf("List with known_hosts: %v", err)
	}

	other := startServer(t)
	fs = other.fs(func(c *Config) { c.HostKeys = policy })
	if _, err := fs.List(context.Background(), "/"); !errors.Is(err, hostfs.ErrBackendUnavailable) {
		t.Fatalf("unknown host should be rejected, got %v", err)
	}
}

func TestUnreachableHost(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	_, portStr, _ := net.SplitHostPort(ln.Addr().String())
	port, _ := strconv.Atoi(portStr)
	_ = ln.Close()

	fs := New(Config{Host: "127.0.0.1", Port: port, Username: "u", Password: "p", DialTimeout: time.Second}, nil)
	if _, err := fs.ReadFile(context.Background(), "/x"); !errors.Is(err, hostfs.ErrBackendUnavailable) {
		t.Fatalf("expected ErrBackendUnavailable, got %v", err)
	}
}

func TestUnsupportedOperations(t *testing.T) {
	fs := New(Config{Host: "example.invalid", Username: "u", Password: "p"}, nil)
	ctx := context.Background()
	if err := fs.Remove(ctx, "/a"); !errors.Is(err, hostfs.ErrUnsupported) {
		t.Fatalf("Remove: %v", err)
	}
	if err := fs.Mkdir(ctx, "/a"); !errors.Is(err, hostfs.ErrUnsupported) {
		t.Fatalf("Mkdir: %v", err)
	}
	if fs.Supports(hostfs.OpDelete) || fs.Supports(hostfs.OpMkdir) || !fs.Supports(hostfs.OpWrite) {
		t.Fatalf("unexpected Supports matrix")
	}
	if fs.cfg.Port != DefaultPort {
		t.Fatalf("expected default port, got %d", fs.cfg.Port)
	}
}
