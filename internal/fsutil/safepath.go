package fsutil

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"syscall"
)

// maxLinkHops bounds how many dangling symlinks are followed by hand.
const maxLinkHops = 40

var (
	ErrPathTraversal = errors.New("path escapes root")
	ErrInvalidRoot   = errors.New("invalid root")
)

// Resolve maps a caller-supplied path to a canonical local path under root.
// Leading separators are ignored, so "/a" and "a" name the same entry.
// Paths that escape root lexically or through a symlink are rejected.
func Resolve(root, requested string) (string, error) {
	if root == "" {
		return "", ErrInvalidRoot
	}
	rootAbs, err := filepath.Abs(root)
	if err != nil {
		return "", ErrInvalidRoot
	}
	rootCanon, err := filepath.EvalSymlinks(rootAbs)
	if err != nil {
		return "", ErrInvalidRoot
	}
	rootCanon = filepath.Clean(rootCanon)

	// Force relative paths.
	p := strings.TrimLeft(requested, "/\\")
	joined := filepath.Clean(filepath.Join(rootCanon, filepath.FromSlash(p)))

	// Lexical check before touching the filesystem.
	if !isWithin(rootCanon, joined) {
		return "", ErrPathTraversal
	}

	resolved, err := canonicalize(joined)
	if err != nil {
		return "", err
	}
	if !isWithin(rootCanon, resolved) {
		return "", ErrPathTraversal
	}
	return resolved, nil
}

// canonicalize resolves symlinks in p. When p does not exist yet, the nearest
// existing ancestor is resolved and the missing tail re-appended, so a write
// through a symlinked parent is still caught. A dangling symlink is resolved
// through its target so the caller can check where it points.
func canonicalize(p string) (string, error) {
	return canonicalizeHops(p, 0)
}

func canonicalizeHops(p string, hops int) (string, error) {
	existing := nearestExisting(p)
	if existing == "" {
		return "", ErrPathTraversal
	}
	resolved, err := filepath.EvalSymlinks(existing)
	if err != nil {
		resolved, err = resolveDangling(existing, err, hops)
		if err != nil {
			return "", err
		}
	}
	if existing == p {
		return filepath.Clean(resolved), nil
	}
	tail, err := filepath.Rel(existing, p)
	if err != nil {
		return "", ErrPathTraversal
	}
	return filepath.Clean(filepath.Join(resolved, tail)), nil
}

// resolveDangling handles an existing entry whose symlink target is missing.
// Any other EvalSymlinks failure is returned unchanged.
func resolveDangling(link string, evalErr error, hops int) (string, error) {
	if !errors.Is(evalErr, fs.ErrNotExist) {
		return "", evalErr
	}
	fi, err := os.Lstat(link)
	if err != nil || fi.Mode()&os.ModeSymlink == 0 {
		return "", evalErr
	}
	if hops >= maxLinkHops {
		return "", &os.PathError{Op: "resolve", Path: link, Err: syscall.ELOOP}
	}
	target, err := os.Readlink(link)
	if err != nil {
		return "", err
	}
	if !filepath.IsAbs(target) {
		target = filepath.Join(filepath.Dir(link), target)
	}
	return canonicalizeHops(filepath.Clean(target), hops+1)
}

// IsRoot reports whether resolved names root itself.
func IsRoot(root, resolved string) bool {
	rootCanon, err := filepath.EvalSymlinks(root)
	if err != nil {
		return false
	}
	return filepath.Clean(rootCanon) == filepath.Clean(resolved)
}

func isWithin(root, candidate string) bool {
	root = filepath.Clean(root)
	candidate = filepath.Clean(candidate)
	if root == candidate {
		return true
	}
	sep := string(filepath.Separator)
	if !strings.HasSuffix(root, sep) {
		root += sep
	}
	return strings.HasPrefix(candidate, root)
}

func nearestExisting(p string) string {
	cur := p
	for {
		_, err := os.Lstat(cur)
		if err == nil {
			return cur
		}
		// A regular file used as a directory component means the path does
		// not exist, not that it escapes.
		if !os.IsNotExist(err) && !errors.Is(err, syscall.ENOTDIR) {
			return ""
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return ""
		}
		cur = parent
	}
}
