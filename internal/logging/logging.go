// Package logging provides simple configuration for slog loggers.
// It normalizes user log-level strings, sets handler options, and masks
// attributes that look like secrets.
package logging

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"
)

// ParseLevel normalizes a log level string into slog.Level.
// Unknown values return slog.LevelInfo with an error.
func ParseLevel(s string) (slog.Level, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, "_", "")
	s = strings.ReplaceAll(s, "-", "")
	if s == "" {
		return slog.LevelInfo, nil
	}
	switch s {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error", "err":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, errors.New("invalid log level")
	}
}

// Options controls logger formatting and defaults.
// Writer defaults to stderr when not provided.
type Options struct {
	Level       string
	AddSource   bool
	JSON        bool
	Writer      io.Writer
	DefaultSlog bool
	// KeepSecrets disables masking of sensitive attributes.
	KeepSecrets bool
}

// Redacted replaces the value of any attribute whose key names a secret.
const Redacted = "[redacted]"

var sensitiveKeys = []string{"password", "secret", "token", "key", "authorization"}

// IsSensitiveKey reports whether an attribute key names secret material.
func IsSensitiveKey(k string) bool {
	k = strings.ToLower(k)
	for _, s := range sensitiveKeys {
		if strings.Contains(k, s) {
			return true
		}
	}
	return false
}

func redact(_ []string, a slog.Attr) slog.Attr {
	if a.Value.Kind() != slog.KindGroup && IsSensitiveKey(a.Key) {
		return slog.String(a.Key, Redacted)
	}
	return a
}

// New constructs a configured slog.Logger and returns its parsed level.
// When DefaultSlog is true, slog.SetDefault is called.
func New(opt Options) (*slog.Logger, slog.Level, error) {
	level, err := ParseLevel(opt.Level)
	if err != nil {
		return nil, 0, err
	}
	var w io.Writer = os.Stderr
	if opt.Writer != nil {
		w = opt.Writer
	}
	if w == nil {
		w = io.Discard
	}
	lo := &slog.HandlerOptions{
		Level:     level,
		AddSource: opt.AddSource || level == slog.LevelDebug,
	}
	if !opt.KeepSecrets {
		lo.ReplaceAttr = redact
	}

	var h slog.Handler
	if opt.JSON {
		h = slog.NewJSONHandler(w, lo)
	} else {
		h = slog.NewTextHandler(w, lo)
	}
	lg := slog.New(h)
	if opt.DefaultSlog {
		slog.SetDefault(lg)
	}
	return lg, level, nil
}
