// Package validate contains simple input validation helpers.
package validate

import (
	"errors"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"
)

// usernameRe enforces a conservative username pattern.
var usernameRe = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{0,63}$`)

// hostnameRe accepts DNS names and IPv4 literals; IPv6 literals are checked separately.
var hostnameRe = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9.-]{0,252}[a-zA-Z0-9])?$`)

// Username validates a username string for length and allowed characters.
func Username(s string) error {
	if !usernameRe.MatchString(s) {
		return errors.New("invalid username")
	}
	return nil
}

// Password enforces a minimum length for account passwords.
func Password(s string) error {
	if utf8.RuneCountInString(s) < 8 {
		return errors.New("password must be at least 8 characters")
	}
	if len(s) > 1024 {
		return errors.New("password is too long")
	}
	return nil
}

// HostName validates the display name of a host.
func HostName(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", errors.New("host name is required")
	}
	if utf8.RuneCountInString(s) > 128 {
		return "", errors.New("host name is too long")
	}
	return s, nil
}

// RootPath validates and normalizes a filesystem root path.
func RootPath(p string) (string, error) {
	if p == "" {
		return "", errors.New("root path is required")
	}
	clean := filepath.Clean(p)
	if !filepath.IsAbs(clean) {
		return "", errors.New("root path must be absolute")
	}
	// Reject volume root ("/", "C:\\", etc.).
	if filepath.Dir(clean) == clean {
		return "", errors.New("root path cannot be filesystem root")
	}
	// Avoid trailing separators for stable comparisons.
	clean = strings.TrimRight(clean, string(filepath.Separator))
	if clean == "" {
		return "", errors.New("invalid root path")
	}
	return clean, nil
}

// BaseURL checks that s is an absolute http(s) URL without credentials.
func BaseURL(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", errors.New("url is required")
	}
	u, err := url.Parse(s)
	if err != nil {
		return "", errors.New("invalid url")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", errors.New("url scheme must be http or https")
	}
	if u.Host == "" {
		return "", errors.New("url host is required")
	}
	if u.User != nil {
		return "", errors.New("url must not embed credentials")
	}
	return s, nil
}

// RemoteHost validates an SFTP server host name or IP literal.
func RemoteHost(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", errors.New("host is required")
	}
	if strings.Contains(s, ":") {
		if ip := strings.Trim(s, "[]"); strings.Count(ip, ":") >= 2 {
			return ip, nil
		}
		return "", errors.New("host must not include a port")
	}
	if !hostnameRe.MatchString(s) {
		return "", errors.New("invalid host")
	}
	return s, nil
}

// RemotePath validates an optional absolute remote base directory.
func RemotePath(p string) (string, error) {
	if p == "" {
		return "", nil
	}
	if !strings.HasPrefix(p, "/") {
		return "", errors.New("remote path must be absolute")
	}
	return p, nil
}
