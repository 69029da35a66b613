package hostfs

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestChildPath(t *testing.T) {
	cases := []struct{ dir, name, want string }{
		{"", "a", "/a"},
		{"/", "a", "/a"},
		{"/docs", "a", "/docs/a"},
		{"/docs/", "a", "/docs/a"},
		{"docs", "a", "docs/a"},
	}
	for _, c := range cases {
		if got := ChildPath(c.dir, c.name); got != c.want {
			t.Fatalf("ChildPath(%q, %q) = %q, want %q", c.dir, c.name, got, c.want)
		}
	}
}

// TestSortEntries pins directories-first, then byte-wise name order.
func TestSortEntries(t *testing.T) {
	in := []FileInfo{{Name: "b.txt"}, {Name: "z", IsDir: true}, {Name: "a.txt"}, {Name: "B", IsDir: true}}
	SortEntries(in)
	want := []string{"B", "z", "a.txt", "b.txt"}
	for i, n := range want {
		if in[i].Name != n {
			t.Fatalf("position %d: got %q want %q (%+v)", i, in[i].Name, n, in)
		}
	}
}

func TestCleanRemote(t *testing.T) {
	cases := []struct{ base, p, want string }{
		{"", "", "/"},
		{"/", "a/b", "/a/b"},
		{"/srv/data", "../../etc/passwd", "/srv/data/etc/passwd"},
		{"/srv/data", "/x/../y", "/srv/data/y"},
	}
	for _, c := range cases {
		if got := CleanRemote(c.base, c.p); got != c.want {
			t.Fatalf("CleanRemote(%q, %q) = %q, want %q", c.base, c.p, got, c.want)
		}
	}
}

func TestErrorClassification(t *testing.T) {
	var err error = &MissingFieldError{Field: "username"}
	if !errors.Is(err, ErrMisconfigured) {
		t.Fatalf("MissingFieldError should match ErrMisconfigured")
	}
	wrapped := &OpError{Op: OpList, HostID: "h1", Path: "/", Err: fmt.Errorf("dispatch: %w", err)}
	var mf *MissingFieldError
	if !errors.As(wrapped, &mf) || mf.Field != "username" {
		t.Fatalf("expected MissingFieldError through OpError, got %v", wrapped)
	}

	nf := &RemoteStatusError{Status: 404}
	if !errors.Is(nf, ErrRemoteRequestFailed) || !errors.Is(nf, ErrNotFound) {
		t.Fatalf("404 should match remote-failed and not-found")
	}
	srv := &RemoteStatusError{Status: 502}
	if errors.Is(srv, ErrNotFound) {
		t.Fatalf("502 should not match not-found")
	}
}

func TestModTime(t *testing.T) {
	if ModTime(time.Time{}) != nil {
		t.Fatalf("zero time should map to nil")
	}
	now := time.Now()
	if got := ModTime(now); got == nil || !got.Equal(now) {
		t.Fatalf("unexpected mod time %v", got)
	}
}
