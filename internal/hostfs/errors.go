package hostfs

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/hossein1376/fm/internal/fsutil"
)

// Error classes shared by every backend. Callers classify with errors.Is.
var (
	ErrValidation          = errors.New("invalid request")
	ErrNotFound            = errors.New("not found")
	ErrForbidden           = errors.New("access denied")
	ErrCredential          = errors.New("host credential unavailable")
	ErrPathTraversal       = fsutil.ErrPathTraversal
	ErrBackendUnavailable  = errors.New("backend unavailable")
	ErrUnsupported         = errors.New("operation not supported for this host type")
	ErrMisconfigured       = errors.New("host misconfigured")
	ErrRemoteRequestFailed = errors.New("remote request failed")
)

// MissingFieldError reports a host config field required by its type.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("host misconfigured: missing %s", e.Field)
}

func (e *MissingFieldError) Is(target error) bool { return target == ErrMisconfigured }

// RemoteStatusError carries a non-2xx status from an HTTP backend.
type RemoteStatusError struct {
	Status int
}

func (e *RemoteStatusError) Error() string {
	return fmt.Sprintf("remote request failed: %d %s", e.Status, http.StatusText(e.Status))
}

func (e *RemoteStatusError) Is(target error) bool {
	if target == ErrRemoteRequestFailed {
		return true
	}
	return target == ErrNotFound && e.Status == http.StatusNotFound
}

// OpError annotates a backend failure with the operation and host it hit.
type OpError struct {
	Op     Op
	HostID string
	Path   string
	Err    error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("%s %s:%s: %v", e.Op, e.HostID, e.Path, e.Err)
}

func (e *OpError) Unwrap() error { return e.Err }
