// Package sftptest runs an in-process, password-authenticated SFTP server
// over a jailed local directory, for tests of SFTP clients, in the manner of
// net/http/httptest. It is not used by the fm binary.
package sftptest

import (
	"errors"
	"io"
	"os"

	"github.com/hossein1376/fm/internal/jailfs"
	"github.com/pkg/sftp"
)

// Handlers implements sftp.Handlers on top of a jailed directory.
type Handlers struct {
	FS *jailfs.FS
}

func (h Handlers) sftpHandlers() sftp.Handlers {
	return sftp.Handlers{FileGet: h, FilePut: h, FileCmd: h, FileList: h}
}

func (h Handlers) Fileread(r *sftp.Request) (io.ReaderAt, error) {
	return h.FS.Open(r.Filepath)
}

func (h Handlers) Filewrite(r *sftp.Request) (io.WriterAt, error) {
	pf := r.Pflags()
	flags := os.O_WRONLY
	if pf.Read {
		flags = os.O_RDWR
	}
	if pf.Creat {
		flags |= os.O_CREATE
	}
	if pf.Trunc {
		flags |= os.O_TRUNC
	}
	if pf.Excl {
		flags |= os.O_EXCL
	}
	// Do NOT use O_APPEND with WriterAt.
	return h.FS.OpenFile(r.Filepath, flags, 0o644)
}

func (h Handlers) Filecmd(r *sftp.Request) error {
	switch r.Method {
	case "Setstat":
		return nil
	case "Rename":
		return h.FS.Rename(r.Filepath, r.Target)
	case "Rmdir", "Remove":
		return h.FS.Remove(r.Filepath)
	case "Mkdir":
		return h.FS.Mkdir(r.Filepath, 0o755)
	default:
		return errors.New("unsupported command")
	}
}

func (h Handlers) Filelist(r *sftp.Request) (sftp.ListerAt, error) {
	switch r.Method {
	case "List":
		d, err := h.FS.Open(r.Filepath)
		if err != nil {
			return nil, err
		}
		defer d.Close()
		infos, err := d.Readdir(-1)
		if err != nil {
			return nil, err
		}
		return staticLister(infos), nil
	case "Stat":
		fi, err := h.FS.Stat(r.Filepath)
		if err != nil {
			return nil, err
		}
		return staticLister([]os.FileInfo{fi}), nil
	default:
		return nil, errors.New("unsupported list")
	}
}

// staticLister wraps a fixed slice of FileInfo for listing.
type staticLister []os.FileInfo

func (l staticLister) ListAt(dst []os.FileInfo, offset int64) (int, error) {
	if offset < 0 || offset >= int64(len(l)) {
		return 0, io.EOF
	}
	n := copy(dst, l[offset:])
	if int64(n)+offset >= int64(len(l)) {
		return n, io.EOF
	}
	return n, nil
}
