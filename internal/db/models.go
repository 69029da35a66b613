// Package db defines persistence models for fm.
package db

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// User is an account that owns hosts. Users are never updated in place.
type User struct {
	ID        string
	Username  string
	PassHash  string
	CreatedAt int64
}

// HostType selects the backend driver for a host.
type HostType string

const (
	HostLocal HostType = "local"
	HostHTTP  HostType = "http"
	HostSFTP  HostType = "sftp"
)

func ParseHostType(s string) (HostType, error) {
	switch t := HostType(strings.ToLower(strings.TrimSpace(s))); t {
	case HostLocal, HostHTTP, HostSFTP:
		return t, nil
	default:
		return "", fmt.Errorf("unknown host type %q", s)
	}
}

// UnmarshalJSON accepts "sftp" as well as the tagged form {"type":"sftp"}.
func (t *HostType) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	var s string
	if len(b) > 0 && b[0] == '{' {
		var tagged struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(b, &tagged); err != nil {
			return err
		}
		s = tagged.Type
	} else if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	v, err := ParseHostType(s)
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// Port is a TCP port that decodes from a JSON number or numeric string.
type Port uint16

func (p *Port) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		*p = 0
		return nil
	}
	n, err := strconv.ParseUint(s, 10, 16)
	if err != nil {
		return errors.New("port must be a number between 0 and 65535")
	}
	*p = Port(n)
	return nil
}

// HostConfig is the sparse per-type configuration of a host.
// Only fields relevant to the host's type are set.
type HostConfig struct {
	Path              string `json:"path,omitempty"`
	URL               string `json:"url,omitempty"`
	Host              string `json:"host,omitempty"`
	Port              Port   `json:"port,omitempty"`
	Username          string `json:"username,omitempty"`
	PasswordEncrypted string `json:"password_encrypted,omitempty"`
}

type Host struct {
	ID        string
	UserID    string
	Name      string
	Type      HostType
	Config    HostConfig
	CreatedAt int64
}

// Config keys stored in the config table.
const (
	ConfigInitialized = "initialized"
)
