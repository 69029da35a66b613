package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/hossein1376/fm/internal/hostfs"
)

// hostRef is a host ID given either as a string or wrapped as
// {"id":{"String":"..."}}.
type hostRef string

func (h *hostRef) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*h = hostRef(s)
		return nil
	}
	var wrapped struct {
		ID *struct {
			String *string `json:"String"`
		} `json:"id"`
	}
	if err := json.Unmarshal(b, &wrapped); err != nil {
		return errors.New("invalid host_id format")
	}
	if wrapped.ID == nil || wrapped.ID.String == nil {
		return errors.New("invalid host_id format")
	}
	*h = hostRef(*wrapped.ID.String)
	return nil
}

func parseHostRef(s string) (string, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "{") {
		return s, nil
	}
	var h hostRef
	if err := h.UnmarshalJSON([]byte(s)); err != nil {
		return "", err
	}
	return string(h), nil
}

type fileRequest struct {
	HostID hostRef `json:"host_id"`
	Path   string  `json:"path"`
}

func (s *Server) readFileRequest(w http.ResponseWriter, r *http.Request) (fileRequest, bool) {
	var req fileRequest
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return req, false
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return req, false
	}
	return req, true
}

func (s *Server) handleBrowse(w http.ResponseWriter, r *http.Request) {
	req, ok := s.readFileRequest(w, r)
	if !ok {
		return
	}
	files, err := s.Service.Browse(r.Context(), callerID(r), string(req.HostID), req.Path)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if files == nil {
		files = []hostfs.FileInfo{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"path": req.Path, "files": files})
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	req, ok := s.readFileRequest(w, r)
	if !ok {
		return
	}
	b, err := s.Service.ReadFile(r.Context(), callerID(r), string(req.HostID), req.Path)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	ctype := mime.TypeByExtension(path.Ext(req.Path))
	if ctype == "" {
		ctype = "application/octet-stream"
	}
	name := path.Base("/" + req.Path)
	w.Header().Set("content-type", ctype)
	w.Header().Set("content-length", strconv.Itoa(len(b)))
	w.Header().Set("content-disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(b)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	limit := s.maxUploadBytes()
	r.Body = http.MaxBytesReader(w, r.Body, limit+(1<<20))
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "upload too large"})
			return
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid multipart form"})
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	hostID, err := parseHostRef(r.FormValue("host_id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	target := r.FormValue("path")

	file, hdr, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "no file provided"})
		return
	}
	defer file.Close()
	if hdr.Size > limit {
		writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "upload too large"})
		return
	}
	data, err := io.ReadAll(io.LimitReader(file, limit+1))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "failed to read upload"})
		return
	}
	if int64(len(data)) > limit {
		writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "upload too large"})
		return
	}

	if err := s.Service.WriteFile(r.Context(), callerID(r), hostID, target, data); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "file uploaded"})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	req, ok := s.readFileRequest(w, r)
	if !ok {
		return
	}
	if err := s.Service.DeleteFile(r.Context(), callerID(r), string(req.HostID), req.Path); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "deleted"})
}

func (s *Server) handleMkdir(w http.ResponseWriter, r *http.Request) {
	req, ok := s.readFileRequest(w, r)
	if !ok {
		return
	}
	if err := s.Service.CreateDirectory(r.Context(), callerID(r), string(req.HostID), req.Path); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "directory created"})
}
