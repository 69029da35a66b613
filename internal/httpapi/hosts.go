package httpapi

import (
	"net/http"

	"github.com/hossein1376/fm/internal/db"
	"github.com/hossein1376/fm/internal/filesvc"
)

// hostConfigView never carries the sealed password.
type hostConfigView struct {
	Path        string  `json:"path,omitempty"`
	URL         string  `json:"url,omitempty"`
	Host        string  `json:"host,omitempty"`
	Port        db.Port `json:"port,omitempty"`
	Username    string  `json:"username,omitempty"`
	HasPassword bool    `json:"has_password,omitempty"`
}

type hostView struct {
	ID        string         `json:"id"`
	UserID    string         `json:"user_id"`
	Name      string         `json:"name"`
	HostType  db.HostType    `json:"host_type"`
	Config    hostConfigView `json:"config"`
	CreatedAt int64          `json:"created_at"`
}

func viewHost(h *db.Host) hostView {
	return hostView{
		ID:       h.ID,
		UserID:   h.UserID,
		Name:     h.Name,
		HostType: h.Type,
		Config: hostConfigView{
			Path:        h.Config.Path,
			URL:         h.Config.URL,
			Host:        h.Config.Host,
			Port:        h.Config.Port,
			Username:    h.Config.Username,
			HasPassword: h.Config.PasswordEncrypted != "",
		},
		CreatedAt: h.CreatedAt,
	}
}

type createHostRequest struct {
	Name     string        `json:"name"`
	HostType db.HostType   `json:"host_type"`
	Config   db.HostConfig `json:"config"`
	// Password is plaintext. Clients that predate it put the plaintext in
	// config.password_encrypted instead.
	Password string `json:"password"`
	// PasswordSealed is the output of fm seal, stored without re-encryption.
	PasswordSealed string `json:"password_sealed"`
}

func (s *Server) handleHosts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		hosts, err := s.Service.ListHosts(r.Context(), callerID(r))
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		out := make([]hostView, 0, len(hosts))
		for i := range hosts {
			out = append(out, viewHost(&hosts[i]))
		}
		writeJSON(w, http.StatusOK, out)
	case http.MethodPost:
		var req createHostRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
			return
		}
		h, err := s.Service.CreateHost(r.Context(), callerID(r), filesvc.HostInput{
			Name:           req.Name,
			Type:           req.HostType,
			Config:         req.Config,
			Password:       req.Password,
			PasswordSealed: req.PasswordSealed,
		})
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, viewHost(h))
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleHostByID(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	switch r.Method {
	case http.MethodGet:
		h, err := s.Service.GetHost(r.Context(), callerID(r), id)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, viewHost(h))
	case http.MethodDelete:
		if err := s.Service.DeleteHost(r.Context(), callerID(r), id); err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "host deleted"})
	default:
		methodNotAllowed(w)
	}
}
