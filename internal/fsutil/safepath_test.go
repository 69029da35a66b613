// Package fsutil tests validate path traversal protections.
package fsutil

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

// TestResolveRejectsTraversal blocks obvious .. escapes.
func TestResolveRejectsTraversal(t *testing.T) {
	root := t.TempDir()
	for _, p := range []string{"../etc/passwd", "/../etc/passwd", "../../etc/passwd", "a/../../x"} {
		if _, err := Resolve(root, p); !errors.Is(err, ErrPathTraversal) {
			t.Fatalf("Resolve(%q): expected ErrPathTraversal, got %v", p, err)
		}
	}
}

// TestResolveRootAliases maps "", "/" and "." to the root itself.
func TestResolveRootAliases(t *testing.T) {
	root := t.TempDir()
	canon, err := filepath.EvalSymlinks(root)
	if err != nil {
		t.Fatalf("EvalSymlinks: %v", err)
	}
	for _, p := range []string{"", "/", ".", "//"} {
		got, err := Resolve(root, p)
		if err != nil {
			t.Fatalf("Resolve(%q): %v", p, err)
		}
		if got != canon {
			t.Fatalf("Resolve(%q) = %q, want %q", p, got, canon)
		}
		if !IsRoot(root, got) {
			t.Fatalf("IsRoot(%q) = false", got)
		}
	}
}

// TestResolveMissingLeaf allows paths that do not exist yet.
func TestResolveMissingLeaf(t *testing.T) {
	root := t.TempDir()
	canon, _ := filepath.EvalSymlinks(root)
	got, err := Resolve(root, "/new/dir/file.txt")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	want := filepath.Join(canon, "new", "dir", "file.txt")
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
	if IsRoot(root, got) {
		t.Fatalf("leaf reported as root")
	}
}

func TestResolveRejectsMissingRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "missing")
	if _, err := Resolve(root, "x"); !errors.Is(err, ErrInvalidRoot) {
		t.Fatalf("expected ErrInvalidRoot, got %v", err)
	}
	if _, err := Resolve("", "x"); !errors.Is(err, ErrInvalidRoot) {
		t.Fatalf("expected ErrInvalidRoot for empty root, got %v", err)
	}
}

// TestResolveRejectsSymlinkEscape blocks symlink-based escapes.
func TestResolveRejectsSymlinkEscape(t *testing.T) {
	if runtime.GOOS == "windows" {
		// Symlink creation may require privileges.
		t.Skip("symlink behavior varies on windows")
	}
	root := t.TempDir()
	outside := t.TempDir()
	if err := os.WriteFile(filepath.Join(outside, "secret"), []byte("x"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	// root/link -> outside
	if err := os.Symlink(outside, filepath.Join(root, "link")); err != nil {
		t.Skipf("symlink not supported: %v", err)
	}

	for _, p := range []string{"link", "link/secret", "link/escape.txt", "link/new/dir"} {
		if _, err := Resolve(root, p); !errors.Is(err, ErrPathTraversal) {
			t.Fatalf("Resolve(%q): expected ErrPathTraversal, got %v", p, err)
		}
	}
}

// TestResolveAllowsInternalSymlink follows links that stay inside root.
func TestResolveAllowsInternalSymlink(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlink behavior varies on windows")
	}
	root := t.TempDir()
	canon, _ := filepath.EvalSymlinks(root)
	if err := os.Mkdir(filepath.Join(root, "real"), 0o700); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.Symlink(filepath.Join(root, "real"), filepath.Join(root, "alias")); err != nil {
		t.Skipf("symlink not supported: %v", err)
	}
	got, err := Resolve(root, "alias/f.txt")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if want := filepath.Join(canon, "real", "f.txt"); got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

// TestResolveFileAsDirectory treats a regular file used as a directory
// component as a missing path, not an escape.
func TestResolveFileAsDirectory(t *testing.T) {
	root := t.TempDir()
	canon, _ := filepath.EvalSymlinks(root)
	if err := os.WriteFile(filepath.Join(root, "a.txt"), []byte("a"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := Resolve(root, "a.txt/missing")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if want := filepath.Join(canon, "a.txt", "missing"); got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

// TestResolveDanglingSymlink checks where a link with a missing target points.
func TestResolveDanglingSymlink(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlink behavior varies on windows")
	}
	root := t.TempDir()
	canon, _ := filepath.EvalSymlinks(root)
	outside := t.TempDir()

	if err := os.Symlink(filepath.Join(outside, "evil.txt"), filepath.Join(root, "evil")); err != nil {
		t.Skipf("symlink not supported: %v", err)
	}
	if _, err := Resolve(root, "evil"); !errors.Is(err, ErrPathTraversal) {
		t.Fatalf("outward dangling link: expected ErrPathTraversal, got %v", err)
	}

	// relative target, chained through a second dangling link
	if err := os.Symlink("next", filepath.Join(root, "first")); err != nil {
		t.Fatalf("symlink: %v", err)
	}
	if err := os.Symlink("later.txt", filepath.Join(root, "next")); err != nil {
		t.Fatalf("symlink: %v", err)
	}
	got, err := Resolve(root, "first")
	if err != nil {
		t.Fatalf("inward dangling link: %v", err)
	}
	if want := filepath.Join(canon, "later.txt"); got != want {
		t.Fatalf("got %q want %q", got, want)
	}

	if err := os.Symlink("loop", filepath.Join(root, "loop")); err != nil {
		t.Fatalf("symlink: %v", err)
	}
	if _, err := Resolve(root, "loop"); err == nil {
		t.Fatalf("expected error for symlink loop")
	}
}
