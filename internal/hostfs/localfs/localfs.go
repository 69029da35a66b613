// Package localfs serves a host backed by a directory on the server's disk.
package localfs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"syscall"

	"github.com/hossein1376/fm/internal/fsutil"
	"github.com/hossein1376/fm/internal/hostfs"
	"github.com/hossein1376/fm/internal/jailfs"
	"github.com/spf13/afero"
)

const (
	dirPerm  os.FileMode = 0o755
	filePerm os.FileMode = 0o644
)

type FS struct {
	jail *jailfs.FS
}

var _ hostfs.FS = (*FS)(nil)

func New(root string) *FS {
	return &FS{jail: jailfs.New(root)}
}

func (f *FS) Supports(hostfs.Op) bool { return true }

func (f *FS) List(ctx context.Context, p string) ([]hostfs.FileInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	infos, err := afero.ReadDir(f.jail, p)
	if err != nil {
		return nil, classifyLookup(err)
	}
	out := make([]hostfs.FileInfo, 0, len(infos))
	for _, fi := range infos {
		out = append(out, hostfs.FileInfo{
			Name:     fi.Name(),
			Path:     hostfs.ChildPath(p, fi.Name()),
			IsDir:    fi.IsDir(),
			Size:     fi.Size(),
			Modified: hostfs.ModTime(fi.ModTime()),
		})
	}
	hostfs.SortEntries(out)
	return out, nil
}

func (f *FS) ReadFile(ctx context.Context, p string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b, err := afero.ReadFile(f.jail, p)
	if err != nil {
		return nil, classifyLookup(err)
	}
	return b, nil
}

// WriteFile creates missing parent directories and replaces existing content.
func (f *FS) WriteFile(ctx context.Context, p string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	root, err := f.jail.IsRoot(p)
	if err != nil {
		return classify(err)
	}
	if root {
		return fmt.Errorf("%w: cannot write to the host root", hostfs.ErrValidation)
	}
	return classify(afero.WriteFile(f.jail, p, data, filePerm))
}

// Remove deletes a file, or a directory and everything below it.
// The root itself is never removed.
func (f *FS) Remove(ctx context.Context, p string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	root, err := f.jail.IsRoot(p)
	if err != nil {
		return classify(err)
	}
	if root {
		return fmt.Errorf("%w: cannot delete the host root", hostfs.ErrValidation)
	}
	fi, err := f.jail.Stat(p)
	if err != nil {
		return classifyLookup(err)
	}
	if fi.IsDir() {
		return classify(f.jail.RemoveAll(p))
	}
	return classify(f.jail.Remove(p))
}

// Mkdir creates p and any missing parents; an existing directory is not an error.
func (f *FS) Mkdir(ctx context.Context, p string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return classify(f.jail.MkdirAll(p, dirPerm))
}

func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, fsutil.ErrPathTraversal):
		return err
	case errors.Is(err, fsutil.ErrInvalidRoot):
		return fmt.Errorf("%w: local root is not accessible", hostfs.ErrBackendUnavailable)
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("%w: %v", hostfs.ErrNotFound, err)
	case errors.Is(err, fs.ErrExist), errors.Is(err, syscall.ENOTDIR), errors.Is(err, syscall.EISDIR):
		return fmt.Errorf("%w: %v", hostfs.ErrValidation, err)
	default:
		return err
	}
}

// classifyLookup is classify for reads: a file used as a directory component
// means the requested entry does not exist.
func classifyLookup(err error) error {
	if errors.Is(err, syscall.ENOTDIR) && !errors.Is(err, fsutil.ErrPathTraversal) {
		return fmt.Errorf("%w: %v", hostfs.ErrNotFound, err)
	}
	return classify(err)
}
