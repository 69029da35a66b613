package httpapi

import (
	"errors"
	"net/http"

	"github.com/hossein1376/fm/internal/auth"
	"github.com/hossein1376/fm/internal/filesvc"
	"github.com/hossein1376/fm/internal/hostfs"
)

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, filesvc.ErrInvalidCredentials), errors.Is(err, auth.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, filesvc.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, hostfs.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, hostfs.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, hostfs.ErrValidation),
		errors.Is(err, hostfs.ErrMisconfigured),
		errors.Is(err, hostfs.ErrUnsupported),
		errors.Is(err, hostfs.ErrPathTraversal):
		return http.StatusBadRequest
	case isRetryableDBErr(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// publicMessage is the error text sent to clients. Server-side failures get a
// fixed message; the detail goes to the log only.
func publicMessage(status int, err error) string {
	switch status {
	case http.StatusUnauthorized:
		if errors.Is(err, auth.ErrInvalidToken) {
			return "invalid token"
		}
		return "invalid credentials"
	case http.StatusForbidden:
		return "access denied"
	case http.StatusBadRequest, http.StatusNotFound:
		// Backend errors may carry resolved host paths; only the class is shown.
		var op *hostfs.OpError
		if !errors.As(err, &op) {
			return err.Error()
		}
		var missing *hostfs.MissingFieldError
		if errors.As(err, &missing) {
			return missing.Error()
		}
		for _, class := range []error{
			hostfs.ErrPathTraversal,
			hostfs.ErrUnsupported,
			hostfs.ErrNotFound,
			hostfs.ErrValidation,
		} {
			if errors.Is(err, class) {
				return class.Error()
			}
		}
		return "invalid request"
	case http.StatusServiceUnavailable:
		return "server busy"
	case http.StatusInternalServerError:
		switch {
		case errors.Is(err, hostfs.ErrBackendUnavailable):
			return "host unavailable"
		case errors.Is(err, hostfs.ErrRemoteRequestFailed):
			return "remote request failed"
		case errors.Is(err, hostfs.ErrCredential):
			return "host credentials could not be used"
		}
		return "server error"
	default:
		return err.Error()
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.Logger.Error("request failed", "path", r.URL.Path, "status", status, "err", err)
	}
	if status == http.StatusServiceUnavailable {
		w.Header().Set("retry-after", "1")
	}
	writeJSON(w, status, map[string]string{"error": publicMessage(status, err)})
}
