// Package jailfs exposes a local directory as an afero.Fs whose every path
// argument is resolved inside the directory first.
package jailfs

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/hossein1376/fm/internal/fsutil"
	"github.com/spf13/afero"
)

const (
	dirPerm  os.FileMode = 0o755
	filePerm os.FileMode = 0o644
)

var errChown = errors.New("chown not supported")

type FS struct {
	root string
	osfs afero.Fs
}

var _ afero.Fs = (*FS)(nil)

func New(root string) *FS {
	return &FS{root: root, osfs: afero.NewOsFs()}
}

// Resolve returns the canonical local path for name.
func (f *FS) Resolve(name string) (string, error) {
	return fsutil.Resolve(f.root, name)
}

// IsRoot reports whether name resolves to the jail root itself.
func (f *FS) IsRoot(name string) (bool, error) {
	p, err := f.Resolve(name)
	if err != nil {
		return false, err
	}
	return fsutil.IsRoot(f.root, p), nil
}

func (f *FS) Create(name string) (afero.File, error) {
	p, err := f.Resolve(name)
	if err != nil {
		return nil, err
	}
	if err := f.osfs.MkdirAll(filepath.Dir(p), dirPerm); err != nil {
		return nil, err
	}
	return f.osfs.Create(p)
}

func (f *FS) Mkdir(name string, perm os.FileMode) error {
	p, err := f.Resolve(name)
	if err != nil {
		return err
	}
	return f.osfs.Mkdir(p, perm)
}

func (f *FS) MkdirAll(path string, perm os.FileMode) error {
	p, err := f.Resolve(path)
	if err != nil {
		return err
	}
	return f.osfs.MkdirAll(p, perm)
}

func (f *FS) Open(name string) (afero.File, error) {
	p, err := f.Resolve(name)
	if err != nil {
		return nil, err
	}
	return f.osfs.Open(p)
}

// OpenFile creates missing parent directories when O_CREATE is set.
func (f *FS) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	p, err := f.Resolve(name)
	if err != nil {
		return nil, err
	}
	if flag&os.O_CREATE != 0 {
		if err := f.osfs.MkdirAll(filepath.Dir(p), dirPerm); err != nil {
			return nil, err
		}
		if perm == 0 {
			perm = filePerm
		}
	}
	return f.osfs.OpenFile(p, flag, perm)
}

func (f *FS) Remove(name string) error {
	p, err := f.Resolve(name)
	if err != nil {
		return err
	}
	return f.osfs.Remove(p)
}

func (f *FS) RemoveAll(path string) error {
	p, err := f.Resolve(path)
	if err != nil {
		return err
	}
	return f.osfs.RemoveAll(p)
}

func (f *FS) Rename(oldname, newname string) error {
	oldp, err := f.Resolve(oldname)
	if err != nil {
		return err
	}
	newp, err := f.Resolve(newname)
	if err != nil {
		return err
	}
	return f.osfs.Rename(oldp, newp)
}

func (f *FS) Stat(name string) (os.FileInfo, error) {
	p, err := f.Resolve(name)
	if err != nil {
		return nil, err
	}
	return f.osfs.Stat(p)
}

func (f *FS) Name() string { return "jailfs" }

func (f *FS) Chmod(name string, mode os.FileMode) error {
	p, err := f.Resolve(name)
	if err != nil {
		return err
	}
	return f.osfs.Chmod(p, mode)
}

func (f *FS) Chown(string, int, int) error { return errChown }

func (f *FS) Chtimes(name string, atime time.Time, mtime time.Time) error {
	p, err := f.Resolve(name)
	if err != nil {
		return err
	}
	return f.osfs.Chtimes(p, atime, mtime)
}
