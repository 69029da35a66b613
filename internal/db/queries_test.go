// Package db tests verify database CRUD behavior.
package db

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	d, err := Open(context.Background(), t.TempDir()+"/test.db")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func TestCreateAndGetUser(t *testing.T) {
	ctx := context.Background()
	d := openTestDB(t)

	u, err := d.CreateUser(ctx, "alice", "hash")
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if u.ID == "" {
		t.Fatalf("expected generated id")
	}
	got, ok, err := d.GetUserByUsername(ctx, "alice")
	if err != nil || !ok {
		t.Fatalf("GetUserByUsername: %v %v", ok, err)
	}
	if got.ID != u.ID || got.PassHash != "hash" {
		t.Fatalf("unexpected user %+v", got)
	}
	if _, ok, err := d.GetUserByID(ctx, "missing"); err != nil || ok {
		t.Fatalf("expected missing user, got ok=%v err=%v", ok, err)
	}

	if _, err := d.CreateUser(ctx, "alice", "other"); !errors.Is(err, ErrUsernameTaken) {
		t.Fatalf("expected ErrUsernameTaken, got %v", err)
	}
}

func TestHostCRUD(t *testing.T) {
	ctx := context.Background()
	d := openTestDB(t)
	u, err := d.CreateUser(ctx, "bob", "hash")
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	cfg := HostConfig{Host: "sftp.example.com", Port: 2222, Username: "bob", PasswordEncrypted: "tok"}
	h, err := d.CreateHost(ctx, u.ID, "box", HostSFTP, cfg)
	if err != nil {
		t.Fatalf("CreateHost: %v", err)
	}

	got, ok, err := d.GetHost(ctx, h.ID)
	if err != nil || !ok {
		t.Fatalf("GetHost: %v %v", ok, err)
	}
	if got.UserID != u.ID || got.Type != HostSFTP || got.Config != cfg {
		t.Fatalf("unexpected host %+v", got)
	}

	if _, err := d.CreateHost(ctx, u.ID, "disk", HostLocal, HostConfig{Path: "/srv"}); err != nil {
		t.Fatalf("CreateHost: %v", err)
	}
	hosts, err := d.ListHostsByOwner(ctx, u.ID)
	if err != nil {
		t.Fatalf("ListHostsByOwner: %v", err)
	}
	if len(hosts) != 2 {
		t.Fatalf("expected 2 hosts, got %d", len(hosts))
	}
	other, err := d.ListHostsByOwner(ctx, "someone-else")
	if err != nil || len(other) != 0 {
		t.Fatalf("expected no hosts for other owner, got %d %v", len(other), err)
	}

	ok, err = d.DeleteHost(ctx, h.ID)
	if err != nil || !ok {
		t.Fatalf("DeleteHost: %v %v", ok, err)
	}
	ok, err = d.DeleteHost(ctx, h.ID)
	if err != nil || ok {
		t.Fatalf("second DeleteHost should report missing: %v %v", ok, err)
	}
}

func TestCreateHostRequiresOwner(t *testing.T) {
	d := openTestDB(t)
	_, err := d.CreateHost(context.Background(), "nobody", "x", HostLocal, HostConfig{Path: "/tmp"})
	if !errors.Is(err, ErrOwnerNotFound) {
		t.Fatalf("expected ErrOwnerNotFound, got %v", err)
	}
}

// TestDeleteUserCascadesHosts relies on the hosts.user_id foreign key.
func TestDeleteUserCascadesHosts(t *testing.T) {
	ctx := context.Background()
	d := openTestDB(t)
	u, _ := d.CreateUser(ctx, "carol", "hash")
	h, err := d.CreateHost(ctx, u.ID, "disk", HostLocal, HostConfig{Path: "/srv"})
	if err != nil {
		t.Fatalf("CreateHost: %v", err)
	}
	if err := d.DeleteUser(ctx, u.ID); err != nil {
		t.Fatalf("DeleteUser: %v", err)
	}
	if _, ok, err := d.GetHost(ctx, h.ID); err != nil || ok {
		t.Fatalf("host should be gone: ok=%v err=%v", ok, err)
	}
}

func TestUpdatePasswordHash(t *testing.T) {
	ctx := context.Background()
	d := openTestDB(t)
	u, _ := d.CreateUser(ctx, "dave", "old")
	ok, err := d.UpdatePasswordHash(ctx, u.ID, "new")
	if err != nil || !ok {
		t.Fatalf("UpdatePasswordHash: %v %v", ok, err)
	}
	got, _, _ := d.GetUserByID(ctx, u.ID)
	if got.PassHash != "new" {
		t.Fatalf("PassHash = %q", got.PassHash)
	}
	if ok, err := d.UpdatePasswordHash(ctx, "missing", "x"); err != nil || ok {
		t.Fatalf("missing user: ok=%v err=%v", ok, err)
	}
}

func TestInitializedFlag(t *testing.T) {
	ctx := context.Background()
	d := openTestDB(t)
	ok, err := d.IsInitialized(ctx)
	if err != nil || ok {
		t.Fatalf("fresh db should not be initialized: %v %v", ok, err)
	}
	if err := d.SetInitialized(ctx); err != nil {
		t.Fatalf("SetInitialized: %v", err)
	}
	if ok, _ := d.IsInitialized(ctx); !ok {
		t.Fatalf("expected initialized")
	}
}

func TestHostTypeJSON(t *testing.T) {
	for _, in := range []string{`"sftp"`, `{"type":"sftp"}`, `"SFTP"`} {
		var ht HostType
		if err := json.Unmarshal([]byte(in), &ht); err != nil {
			t.Fatalf("Unmarshal(%s): %v", in, err)
		}
		if ht != HostSFTP {
			t.Fatalf("Unmarshal(%s) = %q", in, ht)
		}
	}
	var ht HostType
	if err := json.Unmarshal([]byte(`"ftp"`), &ht); err == nil {
		t.Fatalf("expected error for unknown type")
	}
	b, _ := json.Marshal(HostHTTP)
	if string(b) != `"http"` {
		t.Fatalf("unexpected marshal %s", b)
	}
}

func TestHostConfigJSON(t *testing.T) {
	var c HostConfig
	if err := json.Unmarshal([]byte(`{"host":"h","port":"2022","username":"u"}`), &c); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if c.Port != 2022 {
		t.Fatalf("string port not parsed: %d", c.Port)
	}
	if err := json.Unmarshal([]byte(`{"port":22}`), &c); err != nil || c.Port != 22 {
		t.Fatalf("numeric port: %d %v", c.Port, err)
	}
	if err := json.Unmarshal([]byte(`{"port":70000}`), &c); err == nil {
		t.Fatalf("expected out-of-range port to fail")
	}

	b, err := json.Marshal(HostConfig{Path: "/srv"})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(b) != `{"path":"/srv"}` {
		t.Fatalf("unused fields should be omitted, got %s", b)
	}
}
