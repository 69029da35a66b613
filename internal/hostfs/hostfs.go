// Package hostfs defines the file operation contract every host backend
// implements, plus the listing conventions they share.
package hostfs

import (
	"context"
	"path"
	"sort"
	"strings"
	"time"
)

// Op names a file operation.
type Op string

const (
	OpList   Op = "list"
	OpRead   Op = "read"
	OpWrite  Op = "write"
	OpDelete Op = "delete"
	OpMkdir  Op = "mkdir"
)

// FileInfo describes one directory entry. Path is the caller-facing path,
// never a backend-internal one.
type FileInfo struct {
	Name     string     `json:"name"`
	Path     string     `json:"path"`
	IsDir    bool       `json:"is_dir"`
	Size     int64      `json:"size"`
	Modified *time.Time `json:"modified,omitempty"`
}

// FS is implemented by each backend driver. Operations a backend cannot
// perform return ErrUnsupported and report false from Supports.
type FS interface {
	List(ctx context.Context, p string) ([]FileInfo, error)
	ReadFile(ctx context.Context, p string) ([]byte, error)
	WriteFile(ctx context.Context, p string, data []byte) error
	Remove(ctx context.Context, p string) error
	Mkdir(ctx context.Context, p string) error
	Supports(op Op) bool
}

// ChildPath builds the caller-facing path of entry name inside dir.
func ChildPath(dir, name string) string {
	if dir == "" || dir == "/" {
		return "/" + name
	}
	return strings.TrimRight(dir, "/") + "/" + name
}

// SortEntries orders directories first, then by byte-wise name.
func SortEntries(entries []FileInfo) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].IsDir != entries[j].IsDir {
			return entries[i].IsDir
		}
		return entries[i].Name < entries[j].Name
	})
}

// CleanRemote joins a caller path onto a remote base without letting ".."
// climb above base.
func CleanRemote(base, p string) string {
	if base == "" {
		base = "/"
	}
	return path.Join(base, path.Clean("/"+p))
}

// ModTime returns a pointer to t, or nil for the zero time.
func ModTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	t = t.UTC()
	return &t
}
