package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

// ErrInvalidHash marks a stored password hash that cannot be parsed.
var ErrInvalidHash = errors.New("invalid password hash")

// ErrEmptyPassword is returned when hashing an empty password.
var ErrEmptyPassword = errors.New("password is required")

// Argon2Params are the argon2id cost settings, configured under auth.argon2.
// Memory is in KiB.
type Argon2Params struct {
	Memory      uint32 `yaml:"memory_kib"`
	Iterations  uint32 `yaml:"iterations"`
	Parallelism uint8  `yaml:"parallelism"`
	SaltLen     uint32 `yaml:"salt_len"`
	KeyLen      uint32 `yaml:"key_len"`
}

func DefaultArgon2Params() Argon2Params {
	return Argon2Params{
		Memory:      64 * 1024,
		Iterations:  3,
		Parallelism: 4,
		SaltLen:     16,
		KeyLen:      32,
	}
}

// Validate rejects settings too weak to store or too large to run per login.
func (p Argon2Params) Validate() error {
	switch {
	case p.Memory < 1024 || p.Memory > 4*1024*1024:
		return errors.New("argon2 memory_kib must be between 1024 and 4194304")
	case p.Iterations < 1 || p.Iterations > 64:
		return errors.New("argon2 iterations must be between 1 and 64")
	case p.Parallelism < 1:
		return errors.New("argon2 parallelism must be at least 1")
	case p.SaltLen < 16 || p.SaltLen > 64:
		return errors.New("argon2 salt_len must be between 16 and 64")
	case p.KeyLen < 16 || p.KeyLen > 64:
		return errors.New("argon2 key_len must be between 16 and 64")
	}
	return nil
}

// phcHash is a decoded argon2id PHC string:
// argon2id$v=19$m=65536,t=3,p=4$<salt_b64>$<key_b64>
type phcHash struct {
	params Argon2Params
	salt   []byte
	key    []byte
}

var phcEncoding = base64.RawStdEncoding

func (h phcHash) String() string {
	return fmt.Sprintf("argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		h.params.Memory, h.params.Iterations, h.params.Parallelism,
		phcEncoding.EncodeToString(h.salt),
		phcEncoding.EncodeToString(h.key),
	)
}

func derive(password string, salt []byte, p Argon2Params, keyLen uint32) []byte {
	return argon2.IDKey([]byte(password), salt, p.Iterations, p.Memory, p.Parallelism, keyLen)
}

// HashPassword returns a PHC-style argon2id string for password.
func HashPassword(password string, p Argon2Params) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}
	if err := p.Validate(); err != nil {
		return "", err
	}
	salt := make([]byte, p.SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	return phcHash{params: p, salt: salt, key: derive(password, salt, p, p.KeyLen)}.String(), nil
}

// VerifyPassword reports whether password matches the PHC string encoded.
// An empty password never matches.
func VerifyPassword(password, encoded string) (bool, error) {
	if password == "" || encoded == "" {
		return false, nil
	}
	h, err := parsePHC(encoded)
	if err != nil {
		return false, err
	}
	got := derive(password, h.salt, h.params, uint32(len(h.key)))
	return subtle.ConstantTimeCompare(got, h.key) == 1, nil
}

// NeedsRehash reports whether encoded was produced with settings other than p,
// so a verified login can replace it. Unparseable hashes always need it.
func NeedsRehash(encoded string, p Argon2Params) bool {
	h, err := parsePHC(encoded)
	if err != nil {
		return true
	}
	return h.params.Memory != p.Memory ||
		h.params.Iterations != p.Iterations ||
		h.params.Parallelism != p.Parallelism ||
		uint32(len(h.salt)) != p.SaltLen ||
		uint32(len(h.key)) != p.KeyLen
}

func parsePHC(s string) (phcHash, error) {
	bad := func(what string) (phcHash, error) {
		return phcHash{}, fmt.Errorf("%w: %s", ErrInvalidHash, what)
	}
	parts := strings.Split(s, "$")
	if len(parts) != 5 {
		return bad("wrong number of fields")
	}
	if parts[0] != "argon2id" {
		return bad("unsupported algorithm")
	}
	ver, ok := strings.CutPrefix(parts[1], "v=")
	if !ok {
		return bad("invalid argon2 version")
	}
	if v, err := strconv.Atoi(ver); err != nil || v != argon2.Version {
		return bad("unsupported argon2 version")
	}

	var h phcHash
	for _, kv := range strings.Split(parts[2], ",") {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			return bad("invalid argon2 parameters")
		}
		bits := 32
		if k == "p" {
			bits = 8
		}
		n, err := strconv.ParseUint(v, 10, bits)
		if err != nil {
			return bad("invalid argon2 parameter " + k)
		}
		switch k {
		case "m":
			h.params.Memory = uint32(n)
		case "t":
			h.params.Iterations = uint32(n)
		case "p":
			h.params.Parallelism = uint8(n)
		default:
			return bad("unknown argon2 parameter")
		}
	}
	if h.params.Iterations == 0 || h.params.Parallelism == 0 {
		return bad("zero argon2 cost")
	}

	var err error
	if h.salt, err = phcEncoding.DecodeString(parts[3]); err != nil {
		return bad("invalid argon2 salt")
	}
	if h.key, err = phcEncoding.DecodeString(parts[4]); err != nil {
		return bad("invalid argon2 hash")
	}
	if len(h.key) < 16 {
		return bad("invalid argon2 hash length")
	}
	h.params.SaltLen = uint32(len(h.salt))
	h.params.KeyLen = uint32(len(h.key))
	return h, nil
}
