package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/hossein1376/fm/internal/auth"
	"github.com/hossein1376/fm/internal/db"
	"github.com/hossein1376/fm/internal/filesvc"
)

type ctxKey string

const ctxClaims ctxKey = "claims"

type userView struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	CreatedAt int64  `json:"created_at"`
}

type authResponse struct {
	Token string   `json:"token"`
	User  userView `json:"user"`
}

func viewUser(u *db.User) userView {
	return userView{ID: u.ID, Username: u.Username, CreatedAt: u.CreatedAt}
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	s.handleCredentials(w, r, s.Service.Register)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	s.handleCredentials(w, r, s.Service.Login)
}

func (s *Server) handleCredentials(w http.ResponseWriter, r *http.Request, fn func(context.Context, string, string) (*filesvc.Session, error)) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req credentials
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	sess, err := fn(r.Context(), strings.TrimSpace(req.Username), req.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, authResponse{Token: sess.Token, User: viewUser(sess.User)})
}

// withUser requires a valid bearer token and stores its claims on the context.
func (s *Server) withUser(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tok, ok := bearerToken(r)
		if !ok {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
			return
		}
		claims, err := s.Service.Authenticate(tok)
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid token"})
			return
		}
		ctx := context.WithValue(r.Context(), ctxClaims, claims)
		next(w, r.WithContext(ctx))
	}
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("authorization")
	scheme, tok, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	tok = strings.TrimSpace(tok)
	return tok, tok != ""
}

// callerID is the authenticated user's ID. Only valid behind withUser.
func callerID(r *http.Request) string {
	c, _ := r.Context().Value(ctxClaims).(*auth.Claims)
	if c == nil {
		return ""
	}
	return c.Subject
}
