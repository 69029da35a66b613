// Package httpapi exposes the JSON API over the file service.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/hossein1376/fm/internal/filesvc"
	"github.com/hossein1376/fm/internal/metrics"
)

// DefaultMaxUploadBytes caps multipart uploads when MaxUploadBytes is unset.
const DefaultMaxUploadBytes = 64 << 20

type Server struct {
	Service *filesvc.Service
	Metrics *metrics.Metrics
	Logger  *slog.Logger

	BindAddr string
	Port     int
	CertPath string
	KeyPath  string

	MaxUploadBytes int64

	// AuthLimiter throttles register and login per client IP. Nil disables it.
	AuthLimiter *IPLimiter
}

// Handler builds the routed handler with the full middleware chain.
func (s *Server) Handler() http.Handler {
	if s.Logger == nil {
		s.Logger = slog.Default()
	}
	mux := http.NewServeMux()

	mux.HandleFunc("/api/auth/register", s.withAuthLimit(s.handleRegister))
	mux.HandleFunc("/api/auth/login", s.withAuthLimit(s.handleLogin))

	mux.HandleFunc("/api/hosts", s.withUser(s.handleHosts))
	mux.HandleFunc("/api/hosts/{id}", s.withUser(s.handleHostByID))

	mux.HandleFunc("/api/files/browse", s.withUser(s.handleBrowse))
	mux.HandleFunc("/api/files/download", s.withUser(s.handleDownload))
	mux.HandleFunc("/api/files/upload", s.withUser(s.handleUpload))
	mux.HandleFunc("/api/files/delete", s.withUser(s.handleDelete))
	mux.HandleFunc("/api/files/mkdir", s.withUser(s.handleMkdir))

	mux.Handle("/metrics", s.Metrics.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	var h http.Handler = mux
	h = withSecurityHeaders(h)
	h = s.withMetrics(h)
	h = s.withRecover(h)
	h = s.withRequestLog(h)
	return h
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
// TLS is used when both CertPath and KeyPath are set.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if s.Service == nil {
		return errors.New("file service is required")
	}
	addr := net.JoinHostPort(s.BindAddr, strconv.Itoa(s.Port))
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		tls := s.CertPath != "" && s.KeyPath != ""
		s.Logger.Info("http api listening", "addr", addr, "tls", tls)
		var err error
		if tls {
			err = httpServer.ListenAndServeTLS(s.CertPath, s.KeyPath)
		} else {
			err = httpServer.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errCh <- err
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if s.AuthLimiter != nil {
		s.AuthLimiter.Stop()
	}
	return <-errCh
}

func (s *Server) maxUploadBytes() int64 {
	if s.MaxUploadBytes > 0 {
		return s.MaxUploadBytes
	}
	return DefaultMaxUploadBytes
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	return dec.Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("content-type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func methodNotAllowed(w http.ResponseWriter) {
	writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
}

func withSecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("x-content-type-options", "nosniff")
		w.Header().Set("x-frame-options", "DENY")
		w.Header().Set("referrer-policy", "no-referrer")
		w.Header().Set("content-security-policy", "default-src 'none'; frame-ancestors 'none'")
		if r.TLS != nil {
			w.Header().Set("strict-transport-security", "max-age=31536000")
		}
		next.ServeHTTP(w, r)
	})
}
