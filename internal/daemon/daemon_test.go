package daemon

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hossein1376/fm/internal/config"
	"github.com/hossein1376/fm/internal/db"
)

func testConfig(t *testing.T) (config.Config, string) {
	t.Helper()
	c := config.Default()
	c.DB.Path = "fm.db"
	c.Encryption.Key = "daemon-test-key"
	c.Auth.TokenSecret = "0123456789abcdef0123"
	return c, t.TempDir()
}

func initDB(t *testing.T, path string) {
	t.Helper()
	d, err := db.Open(context.Background(), path)
	if err != nil {
		t.Fatalf("db.Open: %v", err)
	}
	defer d.Close()
	if err := d.SetInitialized(context.Background()); err != nil {
		t.Fatalf("SetInitialized: %v", err)
	}
}

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestNewRequiresSetup(t *testing.T) {
	c, base := testConfig(t)
	_, err := New(context.Background(), Options{Config: c, BaseDir: base, Logger: quiet()})
	if err == nil || !strings.Contains(err.Error(), "run setup") {
		t.Fatalf("err = %v", err)
	}
}

func TestNewWiresAPI(t *testing.T) {
	c, base := testConfig(t)
	initDB(t, filepath.Join(base, "fm.db"))

	app, err := New(context.Background(), Options{Config: c, BaseDir: base, Logger: quiet()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer app.Close()
	if app.API.AuthLimiter == nil {
		t.Fatalf("expected auth limiter from default config")
	}
	if app.API.MaxUploadBytes != 64<<20 {
		t.Fatalf("MaxUploadBytes = %d", app.API.MaxUploadBytes)
	}

	srv := httptest.NewServer(app.API.Handler())
	defer srv.Close()
	resp, err := http.Post(srv.URL+"/api/auth/register", "application/json",
		strings.NewReader(`{"username":"alice","password":"correct horse"}`))
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Fatalf("register status=%d", resp.StatusCode)
	}
}

func TestNewRejectsMissingKnownHosts(t *testing.T) {
	c, base := testConfig(t)
	initDB(t, filepath.Join(base, "fm.db"))
	c.Backends.SFTP.KnownHosts = "does-not-exist"

	if _, err := New(context.Background(), Options{Config: c, BaseDir: base, Logger: quiet()}); err == nil {
		t.Fatalf("expected known_hosts error")
	}
}

func TestResolvePath(t *testing.T) {
	if got := ResolvePath("/etc/fm", "data/fm.db"); got != "/etc/fm/data/fm.db" {
		t.Fatalf("relative = %q", got)
	}
	if got := ResolvePath("/etc/fm", "/var/fm.db"); got != "/var/fm.db" {
		t.Fatalf("absolute = %q", got)
	}
	if got := ResolvePath("/etc/fm", " "); got != "" {
		t.Fatalf("empty = %q", got)
	}
}
