package httpapi

import (
	"net/http"
	"runtime/debug"
)

// withRecover turns a handler panic into a 500 JSON error.
// http.ErrAbortHandler is re-raised so net/http can drop the connection.
func (s *Server) withRecover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			v := recover()
			if v == nil {
				return
			}
			if v == http.ErrAbortHandler {
				panic(v)
			}
			s.Logger.Error("handler panic",
				"method", r.Method,
				"path", r.URL.Path,
				"panic", v,
				"stack", string(debug.Stack()),
			)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "server error"})
		}()
		next.ServeHTTP(w, r)
	})
}
